package interpretations_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/JaimeStill/vetrecords/internal/interpretations"
	"github.com/JaimeStill/vetrecords/internal/schema"
)

func ptr(s string) *string { return &s }

func schemaValues(p interpretations.Payload, key string) []string {
	for _, e := range p.GlobalSchema {
		if e.Key == key {
			return e.Values
		}
	}
	return nil
}

func TestEditNoOp(t *testing.T) {
	b, _ := newBuilder(t)
	base := b.Build(recordText, nil)
	species, _ := fieldOf(base, "species")

	tests := []struct {
		name   string
		change interpretations.Change
	}{
		{"same value", interpretations.Change{Op: interpretations.OpUpdate, FieldID: species.ID, Value: ptr("Canino")}},
		{"same value padded", interpretations.Change{Op: interpretations.OpUpdate, FieldID: species.ID, Value: ptr("  Canino ")}},
		{"same value and type", interpretations.Change{Op: interpretations.OpUpdate, Key: "species", Value: ptr("Canino"), ValueType: schema.TypeString}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, changes, err := b.Edit(base, []interpretations.Change{tt.change})
			if err != nil {
				t.Fatalf("Edit() error = %v", err)
			}
			if len(changes) != 0 {
				t.Errorf("changes = %+v, want none", changes)
			}
			if !reflect.DeepEqual(next, base) {
				t.Error("Edit() returned a different payload for a no-op")
			}
		})
	}
}

func TestEditUpdate(t *testing.T) {
	b, _ := newBuilder(t)
	base := b.Build(recordText, nil)
	species, _ := fieldOf(base, "species")

	next, changes, err := b.Edit(base, []interpretations.Change{
		{Op: interpretations.OpUpdate, FieldID: species.ID, Value: ptr("Felino")},
	})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(changes))
	}

	fc := changes[0]
	if fc.Op != interpretations.OpUpdate || *fc.OldValue != "Canino" || *fc.NewValue != "Felino" {
		t.Errorf("change = %+v, want Canino -> Felino", fc)
	}
	if !reflect.DeepEqual(fc.MappingID, species.MappingID) {
		t.Errorf("change mapping id = %v, want %v", fc.MappingID, species.MappingID)
	}

	updated, _ := fieldOf(next, "species")
	if updated.ID != species.ID {
		t.Errorf("field id = %s, want %s", updated.ID, species.ID)
	}
	if updated.Origin != interpretations.OriginHuman {
		t.Errorf("Origin = %s, want human", updated.Origin)
	}
	if updated.CandidateConfidence != 0.5 || updated.ReviewHistoryAdjustment != 0 || updated.MappingConfidence != 0.5 {
		t.Errorf("confidence = %v/%v/%v, want neutral", updated.CandidateConfidence, updated.ReviewHistoryAdjustment, updated.MappingConfidence)
	}
	if got := schemaValues(next, "species"); !reflect.DeepEqual(got, []string{"Felino"}) {
		t.Errorf("global schema species = %v, want [Felino]", got)
	}

	if orig, _ := fieldOf(base, "species"); *orig.Value != "Canino" {
		t.Errorf("base payload mutated: species = %s", *orig.Value)
	}
}

func TestEditValueTypeChange(t *testing.T) {
	b, _ := newBuilder(t)
	base := b.Build(recordText, nil)

	_, changes, err := b.Edit(base, []interpretations.Change{
		{Op: interpretations.OpUpdate, Key: "species", Value: ptr("Canino"), ValueType: schema.TypeText},
	})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if len(changes) != 1 || changes[0].ValueType != schema.TypeText {
		t.Errorf("changes = %+v, want one value type change", changes)
	}
}

func TestEditAddAndDelete(t *testing.T) {
	b, _ := newBuilder(t)
	base := b.Build(recordText, nil)
	chip, _ := fieldOf(base, "microchip_id")

	next, changes, err := b.Edit(base, []interpretations.Change{
		{Op: interpretations.OpAdd, Key: "diagnosis", Value: ptr("dermatitis")},
		{Op: interpretations.OpAdd, Key: "breed", Value: ptr("Beagle")},
		{Op: interpretations.OpDelete, FieldID: chip.ID},
	})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("changes = %d, want 3", len(changes))
	}

	if len(next.Fields) != len(base.Fields)+1 {
		t.Errorf("fields = %d, want %d", len(next.Fields), len(base.Fields)+1)
	}
	if _, ok := fieldOf(next, "microchip_id"); ok {
		t.Error("microchip_id still present after DELETE")
	}
	if got := schemaValues(next, "microchip_id"); len(got) != 0 {
		t.Errorf("global schema microchip_id = %v, want empty", got)
	}

	breed, ok := fieldOf(next, "breed")
	if !ok {
		t.Fatal("breed field missing after ADD")
	}
	if breed.Origin != interpretations.OriginHuman || breed.MappingID != nil || breed.ValueType != schema.TypeString {
		t.Errorf("breed = %+v, want human string field without mapping id", breed)
	}
	if changes[1].Op != interpretations.OpAdd || changes[1].OldValue != nil {
		t.Errorf("add change = %+v", changes[1])
	}
	if changes[2].Op != interpretations.OpDelete || *changes[2].OldValue != *chip.Value || changes[2].NewValue != nil {
		t.Errorf("delete change = %+v", changes[2])
	}

	if _, err := interpretations.EncodePayload(next); err != nil {
		t.Errorf("EncodePayload() error = %v", err)
	}
}

func TestEditRejects(t *testing.T) {
	b, _ := newBuilder(t)
	base := b.Build(recordText, nil)

	tests := []struct {
		name    string
		changes []interpretations.Change
		want    error
	}{
		{
			"unknown op",
			[]interpretations.Change{{Op: "MERGE", Key: "species"}},
			interpretations.ErrInvalidChange,
		},
		{
			"unknown key",
			[]interpretations.Change{{Op: interpretations.OpAdd, Key: "favorite_toy", Value: ptr("ball")}},
			schema.ErrUnknownKey,
		},
		{
			"add without value",
			[]interpretations.Change{{Op: interpretations.OpAdd, Key: "breed", Value: ptr("  ")}},
			interpretations.ErrInvalidChange,
		},
		{
			"add to filled single key",
			[]interpretations.Change{{Op: interpretations.OpAdd, Key: "species", Value: ptr("Felino")}},
			interpretations.ErrInvalidChange,
		},
		{
			"missing field",
			[]interpretations.Change{{Op: interpretations.OpUpdate, FieldID: "missing", Value: ptr("x")}},
			interpretations.ErrFieldNotFound,
		},
		{
			"delete without locator",
			[]interpretations.Change{{Op: interpretations.OpDelete}},
			interpretations.ErrInvalidChange,
		},
		{
			"unknown value type",
			[]interpretations.Change{{Op: interpretations.OpUpdate, Key: "species", Value: ptr("x"), ValueType: "color"}},
			interpretations.ErrInvalidChange,
		},
		{
			"valid change then invalid",
			[]interpretations.Change{
				{Op: interpretations.OpUpdate, Key: "species", Value: ptr("Felino")},
				{Op: interpretations.OpDelete, FieldID: "missing"},
			},
			interpretations.ErrFieldNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, changes, err := b.Edit(base, tt.changes)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Edit() error = %v, want %v", err, tt.want)
			}
			if changes != nil {
				t.Errorf("changes = %+v, want nil", changes)
			}
			if !reflect.DeepEqual(next, base) {
				t.Error("Edit() returned a modified payload on error")
			}
		})
	}
}
