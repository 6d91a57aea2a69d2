package reviews_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/internal/calibration"
	"github.com/JaimeStill/vetrecords/internal/interpretations"
	"github.com/JaimeStill/vetrecords/internal/reviews"
)

func ptr(s string) *string { return &s }

const contextKey = "3f1c2a9e7b6d5c4f3e2d1c0b9a8f7e6d5c4b3a2f1e0d9c8b7a6f5e4d3c2b1a09"

func interpretation(fields ...interpretations.Field) *interpretations.Interpretation {
	return &interpretations.Interpretation{
		ID:            uuid.New(),
		RunID:         uuid.New(),
		VersionNumber: 1,
		Payload: interpretations.Payload{
			SchemaVersion: "v1",
			PolicyVersion: "v1",
			ContextKey:    contextKey,
			Language:      "es",
			Fields:        fields,
		},
	}
}

func TestSignalsAccepts(t *testing.T) {
	interp := interpretation(
		interpretations.Field{ID: "f1", Key: "patient_name", Value: ptr("Luna"), IsCritical: true, Origin: interpretations.OriginMachine, MappingID: ptr("label:patient_name:paciente")},
		interpretations.Field{ID: "f2", Key: "species", Value: ptr("canino"), IsCritical: false, Origin: interpretations.OriginMachine},
		interpretations.Field{ID: "f3", Key: "owner_name", Value: ptr("Ana"), IsCritical: true, Origin: interpretations.OriginHuman},
		interpretations.Field{ID: "f4", Key: "visit_date", Value: ptr(""), IsCritical: true, Origin: interpretations.OriginMachine},
		interpretations.Field{ID: "f5", Key: "diagnosis", Value: nil, IsCritical: true, Origin: interpretations.OriginMachine},
	)

	deltas := reviews.Signals(interp, nil)

	if len(deltas) != 1 {
		t.Fatalf("deltas = %d, want 1: %+v", len(deltas), deltas)
	}
	d := deltas[0]
	if d.Signal != calibration.SignalAcceptedUnchanged {
		t.Errorf("signal = %s, want accepted_unchanged", d.Signal)
	}
	if d.FieldKey != "patient_name" || d.MappingID != "label:patient_name:paciente" {
		t.Errorf("scope = (%s, %s)", d.FieldKey, d.MappingID)
	}
	if d.Accept != 1 || d.Edit != 0 {
		t.Errorf("counts = (%d, %d), want (1, 0)", d.Accept, d.Edit)
	}
	if d.ContextKey != contextKey || d.PolicyVersion != "v1" {
		t.Errorf("context = (%s, %s)", d.ContextKey, d.PolicyVersion)
	}
}

func TestSignalsEditsPerScope(t *testing.T) {
	interp := interpretation()
	changes := []interpretations.ChangeLog{
		{FieldKey: "patient_name", MappingID: ptr("label:patient_name:paciente"), Op: interpretations.OpUpdate},
		{FieldKey: "patient_name", MappingID: ptr("label:patient_name:paciente"), Op: interpretations.OpUpdate},
		{FieldKey: "patient_name", MappingID: ptr("label:patient_name:nombre"), Op: interpretations.OpDelete},
		{FieldKey: "weight", Op: interpretations.OpAdd},
	}

	deltas := reviews.Signals(interp, changes)

	want := []calibration.Scope{
		{FieldKey: "patient_name", MappingID: "label:patient_name:paciente"},
		{FieldKey: "patient_name", MappingID: "label:patient_name:nombre"},
		{FieldKey: "weight", MappingID: ""},
	}
	if len(deltas) != len(want) {
		t.Fatalf("deltas = %d, want %d", len(deltas), len(want))
	}
	for i, w := range want {
		d := deltas[i]
		if d.Signal != calibration.SignalEdited {
			t.Errorf("delta[%d] signal = %s, want edited", i, d.Signal)
		}
		if d.FieldKey != w.FieldKey || d.MappingID != w.MappingID {
			t.Errorf("delta[%d] scope = (%s, %s), want (%s, %s)", i, d.FieldKey, d.MappingID, w.FieldKey, w.MappingID)
		}
		if d.Accept != 0 || d.Edit != 1 {
			t.Errorf("delta[%d] counts = (%d, %d), want (0, 1)", i, d.Accept, d.Edit)
		}
	}
}

func TestSignalsRevertToZero(t *testing.T) {
	interp := interpretation(
		interpretations.Field{ID: "f1", Key: "patient_name", Value: ptr("Luna"), IsCritical: true, Origin: interpretations.OriginMachine},
	)
	changes := []interpretations.ChangeLog{{FieldKey: "species", Op: interpretations.OpUpdate}}

	counts := make(map[calibration.Scope]calibration.Counts)
	apply := func(ds []calibration.Delta) {
		for _, d := range ds {
			s := calibration.Scope{FieldKey: d.FieldKey, MappingID: d.MappingID}
			c := counts[s]
			c.Accept += d.Accept
			c.Edit += d.Edit
			counts[s] = c
		}
	}

	deltas := reviews.Signals(interp, changes)
	apply(deltas)
	inverse := make([]calibration.Delta, len(deltas))
	for i, d := range deltas {
		inverse[i] = d.Inverse()
	}
	apply(inverse)

	for s, c := range counts {
		if c.Accept != 0 || c.Edit != 0 {
			t.Errorf("%+v = %+v after revert, want zero", s, c)
		}
	}
}

func TestSignalsEmpty(t *testing.T) {
	if deltas := reviews.Signals(interpretation(), nil); len(deltas) != 0 {
		t.Errorf("deltas = %+v, want none", deltas)
	}
}
