package schema_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/vetrecords/internal/schema"
)

func TestLoad(t *testing.T) {
	c, err := schema.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Version != "v1" {
		t.Errorf("Version = %q, want v1", c.Version)
	}

	visit := []string{
		"symptoms", "diagnosis", "procedure", "medication", "treatment_plan",
		"allergies", "vaccinations", "lab_result", "imaging",
	}
	for _, key := range visit {
		if !c.VisitScoped(key) {
			t.Errorf("VisitScoped(%q) = false, want true", key)
		}
	}
	if c.VisitScoped("visit_date") {
		t.Error("VisitScoped(visit_date) = true, want false")
	}

	k, ok := c.Lookup("microchip_id")
	if !ok {
		t.Fatal("Lookup(microchip_id) not found")
	}
	if !k.Critical || k.Repeatable || k.ValueType != schema.TypeIdentifier {
		t.Errorf("Lookup(microchip_id) = %+v, want critical non-repeatable identifier", k)
	}

	if c.Position("clinic_name") != 0 {
		t.Errorf("Position(clinic_name) = %d, want 0", c.Position("clinic_name"))
	}
	if c.Position("missing") != -1 {
		t.Errorf("Position(missing) = %d, want -1", c.Position("missing"))
	}
}

func TestLabelsLongestFirst(t *testing.T) {
	c, err := schema.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	labels := c.Labels()
	for i := 1; i < len(labels); i++ {
		if len([]rune(labels[i].Text)) > len([]rune(labels[i-1].Text)) {
			t.Fatalf("Labels()[%d] = %q longer than previous %q", i, labels[i].Text, labels[i-1].Text)
		}
	}
	for _, l := range labels {
		if !c.Has(l.Key) {
			t.Errorf("Labels() references unknown key %s", l.Key)
		}
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{
			"duplicate key",
			`version: v1
keys:
  - {key: species, value_type: string, scope: document, labels: [especie]}
  - {key: species, value_type: string, scope: document, labels: [species]}`,
			schema.ErrDuplicateKey,
		},
		{
			"missing scope",
			`version: v1
keys:
  - {key: species, value_type: string, labels: [especie]}`,
			schema.ErrInvalidContract,
		},
		{
			"unknown value type",
			`version: v1
keys:
  - {key: species, value_type: color, scope: document, labels: [especie]}`,
			schema.ErrInvalidContract,
		},
		{
			"no labels",
			`version: v1
keys:
  - {key: species, value_type: string, scope: document, labels: []}`,
			schema.ErrInvalidContract,
		},
		{
			"visit key not repeatable",
			`version: v1
keys:
  - {key: diagnosis, value_type: text, scope: visit, labels: [diagnostico]}`,
			schema.ErrIncompleteKey,
		},
		{"not yaml", "version: [", schema.ErrInvalidContract},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Parse([]byte(tt.yaml))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMigrateKey(t *testing.T) {
	c, err := schema.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name    string
		from    string
		key     string
		want    string
		wantErr error
	}{
		{"current version", "v1", "owner_name", "owner_name", nil},
		{"renamed legacy key", "v0", "chip_id", "microchip_id", nil},
		{"unchanged legacy key", "v0", "species", "species", nil},
		{"unknown version", "v9", "species", "", schema.ErrUnknownVersion},
		{"unknown key", "v1", "favorite_toy", "", schema.ErrUnknownKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.MigrateKey(tt.from, tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("MigrateKey(%q, %q) error = %v, want %v", tt.from, tt.key, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MigrateKey(%q, %q) = %q, want %q", tt.from, tt.key, got, tt.want)
			}
		})
	}
}
