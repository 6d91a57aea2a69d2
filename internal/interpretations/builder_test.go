package interpretations_test

import (
	"math"
	"regexp"
	"testing"

	"github.com/JaimeStill/vetrecords/internal/calibration"
	"github.com/JaimeStill/vetrecords/internal/interpretations"
	"github.com/JaimeStill/vetrecords/internal/schema"
)

const recordText = "Paciente: Luna\n" +
	"Especie: Canino\n" +
	"Propietario: Ana Lopez\n" +
	"Microchip: 00023035139\n" +
	"Fecha: 14/03/2024\n" +
	"Diagnostico: otitis externa leve en oido derecho\n"

func testPolicy() calibration.Policy {
	cfg := calibration.Config{}
	if err := cfg.Finalize(nil); err != nil {
		panic(err)
	}
	return cfg.Policy()
}

func newBuilder(t *testing.T) (*interpretations.Builder, *schema.Contract) {
	t.Helper()
	c, err := schema.Load()
	if err != nil {
		t.Fatalf("schema.Load() error = %v", err)
	}
	return interpretations.NewBuilder(c, testPolicy()), c
}

func fieldOf(p interpretations.Payload, key string) (interpretations.Field, bool) {
	for _, f := range p.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return interpretations.Field{}, false
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBuild(t *testing.T) {
	b, c := newBuilder(t)

	table := calibration.Table{
		{FieldKey: "patient_name", MappingID: "label:patient_name:paciente"}: {Accept: 9, Edit: 1},
	}
	p := b.Build(recordText, table)

	if p.SchemaVersion != c.Version {
		t.Errorf("SchemaVersion = %q, want %q", p.SchemaVersion, c.Version)
	}
	if p.Language != "es" {
		t.Errorf("Language = %q, want es", p.Language)
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(p.ContextKey) {
		t.Errorf("ContextKey = %q, want sha256 hex", p.ContextKey)
	}

	patient, ok := fieldOf(p, "patient_name")
	if !ok {
		t.Fatal("patient_name field missing")
	}
	if patient.Value == nil || *patient.Value != "Luna" {
		t.Errorf("patient_name = %v, want Luna", patient.Value)
	}
	if patient.ReviewHistoryAdjustment != 10.0 {
		t.Errorf("adjustment = %v, want 10.0", patient.ReviewHistoryAdjustment)
	}
	if !near(patient.MappingConfidence, 0.76) {
		t.Errorf("mapping confidence = %v, want 0.76", patient.MappingConfidence)
	}
	if patient.Band != calibration.BandHigh {
		t.Errorf("Band = %s, want high", patient.Band)
	}
	if !patient.IsCritical || patient.Origin != interpretations.OriginMachine {
		t.Errorf("patient_name = %+v, want critical machine field", patient)
	}
	if patient.Evidence == nil || patient.Evidence.Page != 1 {
		t.Errorf("Evidence = %+v, want page 1", patient.Evidence)
	}

	species, ok := fieldOf(p, "species")
	if !ok {
		t.Fatal("species field missing")
	}
	if species.ReviewHistoryAdjustment != 0 || !near(species.MappingConfidence, 0.66) {
		t.Errorf("species confidence = %v/%v, want 0/0.66", species.ReviewHistoryAdjustment, species.MappingConfidence)
	}
	if species.Band != calibration.BandMid {
		t.Errorf("species Band = %s, want mid", species.Band)
	}

	if len(p.GlobalSchema) != len(c.Keys) {
		t.Fatalf("GlobalSchema has %d entries, want %d", len(p.GlobalSchema), len(c.Keys))
	}
	for i, entry := range p.GlobalSchema {
		if entry.Key != c.Keys[i].Key {
			t.Errorf("GlobalSchema[%d] = %s, want %s", i, entry.Key, c.Keys[i].Key)
		}
	}
}

func TestBuildConfidenceBounds(t *testing.T) {
	b, _ := newBuilder(t)

	table := calibration.Table{}
	for _, f := range b.Build(recordText, nil).Fields {
		mid := ""
		if f.MappingID != nil {
			mid = *f.MappingID
		}
		table[calibration.Scope{FieldKey: f.Key, MappingID: mid}] = calibration.Counts{Accept: 1000}
	}

	for _, f := range b.Build(recordText, table).Fields {
		if f.MappingConfidence < 0 || f.MappingConfidence > 1 {
			t.Errorf("%s mapping confidence = %v, want within [0, 1]", f.Key, f.MappingConfidence)
		}
		if f.ReviewHistoryAdjustment > calibration.MaxAdjustment {
			t.Errorf("%s adjustment = %v, want <= %v", f.Key, f.ReviewHistoryAdjustment, calibration.MaxAdjustment)
		}
	}
}

func TestBuildEncodes(t *testing.T) {
	b, _ := newBuilder(t)
	p := b.Build(recordText, nil)

	data, err := interpretations.EncodePayload(p)
	if err != nil {
		t.Fatalf("EncodePayload() error = %v", err)
	}

	got, err := interpretations.DecodePayload(data)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if len(got.Fields) != len(p.Fields) {
		t.Errorf("decoded %d fields, want %d", len(got.Fields), len(p.Fields))
	}
}

func TestBuildEmptyText(t *testing.T) {
	b, _ := newBuilder(t)
	p := b.Build("", nil)

	if len(p.Fields) != 0 {
		t.Errorf("Fields = %+v, want none", p.Fields)
	}
	if _, err := interpretations.EncodePayload(p); err != nil {
		t.Errorf("EncodePayload() error = %v", err)
	}
}

func TestBuildDeterministicValues(t *testing.T) {
	b, _ := newBuilder(t)
	first := b.Build(recordText, nil)
	second := b.Build(recordText, nil)

	if len(first.Fields) != len(second.Fields) {
		t.Fatalf("field counts differ: %d vs %d", len(first.Fields), len(second.Fields))
	}
	for i := range first.Fields {
		a, z := first.Fields[i], second.Fields[i]
		if a.Key != z.Key || *a.Value != *z.Value || a.MappingConfidence != z.MappingConfidence {
			t.Errorf("field %d differs: %+v vs %+v", i, a, z)
		}
	}
}
