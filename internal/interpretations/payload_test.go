package interpretations_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/JaimeStill/vetrecords/internal/interpretations"
)

func TestDecodePayloadRejects(t *testing.T) {
	b, _ := newBuilder(t)
	valid, err := interpretations.EncodePayload(b.Build(recordText, nil))
	if err != nil {
		t.Fatalf("EncodePayload() error = %v", err)
	}

	mutate := func(fn func(m map[string]any)) []byte {
		var m map[string]any
		if err := json.Unmarshal(valid, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		fn(m)
		out, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return out
	}
	firstField := func(m map[string]any) map[string]any {
		return m["fields"].([]any)[0].(map[string]any)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("{")},
		{"unknown property", mutate(func(m map[string]any) { m["extra"] = true })},
		{"missing canonical", mutate(func(m map[string]any) { delete(m, "canonical") })},
		{"confidence above one", mutate(func(m map[string]any) { firstField(m)["field_mapping_confidence"] = 1.2 })},
		{"adjustment out of range", mutate(func(m map[string]any) { firstField(m)["field_review_history_adjustment"] = -20 })},
		{"unknown origin", mutate(func(m map[string]any) { firstField(m)["origin"] = "robot" })},
		{"value not a string", mutate(func(m map[string]any) { firstField(m)["value"] = 42 })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := interpretations.DecodePayload(tt.data); !errors.Is(err, interpretations.ErrInvalidPayload) {
				t.Errorf("DecodePayload() error = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestEncodePayloadRejects(t *testing.T) {
	b, _ := newBuilder(t)
	p := b.Build(recordText, nil)
	p.Fields[0].CandidateConfidence = 1.5

	if _, err := interpretations.EncodePayload(p); !errors.Is(err, interpretations.ErrInvalidPayload) {
		t.Errorf("EncodePayload() error = %v, want ErrInvalidPayload", err)
	}
}

func TestWorkbook(t *testing.T) {
	b, _ := newBuilder(t)
	interp := &interpretations.Interpretation{
		ID:               uuid.New(),
		RunID:            uuid.New(),
		InterpretationID: uuid.New(),
		VersionNumber:    1,
		Payload:          b.Build(recordText, nil),
	}

	data, err := interpretations.Workbook(interp)
	if err != nil {
		t.Fatalf("Workbook() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Fields")
	if err != nil {
		t.Fatalf("GetRows(Fields) error = %v", err)
	}
	if len(rows) != len(interp.Payload.Fields)+1 {
		t.Fatalf("Fields rows = %d, want %d", len(rows), len(interp.Payload.Fields)+1)
	}
	if rows[0][0] != "Key" || rows[0][1] != "Value" {
		t.Errorf("header = %v, want Key, Value first", rows[0])
	}

	first := interp.Payload.Fields[0]
	if rows[1][0] != first.Key || rows[1][1] != *first.Value {
		t.Errorf("row 2 = %v, want %s = %s", rows[1][:2], first.Key, *first.Value)
	}

	if idx, _ := f.GetSheetIndex("Visits"); idx == -1 {
		t.Error("Visits sheet missing")
	}
}
