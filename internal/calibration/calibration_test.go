package calibration_test

import (
	"math"
	"testing"

	"github.com/JaimeStill/vetrecords/internal/calibration"
)

func TestAdjustment(t *testing.T) {
	tests := []struct {
		name   string
		accept int
		edit   int
		want   float64
	}{
		{"no history", 0, 0, 0},
		{"below volume", 2, 0, 0},
		{"edits below volume", 0, 2, 0},
		{"mostly accepted", 9, 1, 10.0},
		{"all accepted", 3, 0, 9.0},
		{"all edited", 0, 3, -9.0},
		{"balanced", 5, 5, 0},
		{"large accepted", 1000, 0, 14.9},
		{"large edited", 0, 1000, -14.9},
		{"negative counts", -4, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calibration.Adjustment(tt.accept, tt.edit)
			if math.Abs(got-tt.want) > 0.05 {
				t.Errorf("Adjustment(%d, %d) = %v, want %v", tt.accept, tt.edit, got, tt.want)
			}
		})
	}
}

func TestAdjustmentMostlyAcceptedIsPositive(t *testing.T) {
	if got := calibration.Adjustment(9, 1); got <= 0 {
		t.Errorf("Adjustment(9, 1) = %v, want positive", got)
	}
}

func TestAdjustmentBounds(t *testing.T) {
	for accept := range 60 {
		for edit := range 60 {
			got := calibration.Adjustment(accept, edit)
			if got < -calibration.MaxAdjustment || got > calibration.MaxAdjustment {
				t.Fatalf("Adjustment(%d, %d) = %v, outside ±%v", accept, edit, got, calibration.MaxAdjustment)
			}
			if accept+edit < calibration.MinVolume && got != 0 {
				t.Fatalf("Adjustment(%d, %d) = %v, want 0 below volume", accept, edit, got)
			}
		}
	}
}

func TestMappingConfidenceBounds(t *testing.T) {
	for c := 0.0; c <= 1.0; c += 0.05 {
		for a := -15.0; a <= 15.0; a += 0.5 {
			got := calibration.MappingConfidence(c, a)
			if got < 0 || got > 1 {
				t.Fatalf("MappingConfidence(%v, %v) = %v, outside [0, 1]", c, a, got)
			}
		}
	}

	tests := []struct {
		c, a, want float64
	}{
		{0.66, 0, 0.66},
		{0.66, 10, 0.76},
		{0.50, -15, 0.35},
		{0.95, 15, 1},
		{0.05, -15, 0},
		{1.5, 0, 1},
		{-0.2, 0, 0},
	}
	for _, tt := range tests {
		if got := calibration.MappingConfidence(tt.c, tt.a); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("MappingConfidence(%v, %v) = %v, want %v", tt.c, tt.a, got, tt.want)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{-1, 0},
		{2, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := calibration.ClampConfidence(tt.in); got != tt.want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func testPolicy(t *testing.T) calibration.Policy {
	t.Helper()
	var cfg calibration.Config
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	return cfg.Policy()
}

func TestContextKey(t *testing.T) {
	p := testPolicy(t)

	defaults := p.ContextKey(calibration.ContextInput{})
	explicit := p.ContextKey(calibration.ContextInput{
		ContextVersion: "V1",
		DocumentType:   "Veterinary_Record",
		Language:       " ES ",
	})
	if defaults != explicit {
		t.Errorf("ContextKey(defaults) = %s, want %s", defaults, explicit)
	}
	if len(defaults) != 64 {
		t.Errorf("len(ContextKey) = %d, want 64", len(defaults))
	}

	english := p.ContextKey(calibration.ContextInput{Language: "en"})
	if english == defaults {
		t.Error("ContextKey(en) equals ContextKey(es)")
	}
	if again := p.ContextKey(calibration.ContextInput{Language: "en"}); again != english {
		t.Errorf("ContextKey not deterministic: %s != %s", again, english)
	}
}

func TestPolicyBand(t *testing.T) {
	p := testPolicy(t)

	tests := []struct {
		conf float64
		want calibration.Band
	}{
		{0.10, calibration.BandLow},
		{0.49, calibration.BandLow},
		{0.50, calibration.BandMid},
		{0.66, calibration.BandMid},
		{0.75, calibration.BandHigh},
		{1.00, calibration.BandHigh},
	}
	for _, tt := range tests {
		if got := p.Band(tt.conf); got != tt.want {
			t.Errorf("Band(%v) = %s, want %s", tt.conf, got, tt.want)
		}
	}
}

func TestTableAdjustment(t *testing.T) {
	table := calibration.Table{
		{FieldKey: "microchip_id", MappingID: "label:microchip_id:microchip"}: {Accept: 9, Edit: 1},
		{FieldKey: "owner_name", MappingID: ""}:                               {Accept: 1, Edit: 0},
	}

	if got := table.Adjustment("microchip_id", "label:microchip_id:microchip"); got != 10.0 {
		t.Errorf("Adjustment(microchip_id) = %v, want 10", got)
	}
	if got := table.Adjustment("owner_name", ""); got != 0 {
		t.Errorf("Adjustment(owner_name) = %v, want 0", got)
	}
	if got := table.Adjustment("species", "keyword:species"); got != 0 {
		t.Errorf("Adjustment(species) = %v, want 0", got)
	}
}

func TestDeltaInverse(t *testing.T) {
	d := calibration.Delta{FieldKey: "species", Accept: 1, Edit: 0}
	inv := d.Inverse()
	if inv.Accept != -1 || inv.Edit != 0 || inv.FieldKey != "species" {
		t.Errorf("Inverse() = %+v, want accept -1", inv)
	}
	if d.Accept != 1 {
		t.Errorf("Inverse() mutated receiver: %+v", d)
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg calibration.Config
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
		if cfg.PolicyVersion != "v1" {
			t.Errorf("PolicyVersion = %q, want v1", cfg.PolicyVersion)
		}
		if cfg.NeutralConfidence != 0.50 {
			t.Errorf("NeutralConfidence = %v, want 0.5", cfg.NeutralConfidence)
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		env := &calibration.Env{
			PolicyVersion: "TEST_CAL_POLICY_VERSION",
			MidBandCutoff: "TEST_CAL_MID_BAND",
		}
		t.Setenv(env.PolicyVersion, "v2")
		t.Setenv(env.MidBandCutoff, "0.8")

		var cfg calibration.Config
		if err := cfg.Finalize(env); err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
		if cfg.PolicyVersion != "v2" {
			t.Errorf("PolicyVersion = %q, want v2", cfg.PolicyVersion)
		}
		if cfg.MidBandCutoff != 0.8 {
			t.Errorf("MidBandCutoff = %v, want 0.8", cfg.MidBandCutoff)
		}
	})

	t.Run("invalid float", func(t *testing.T) {
		env := &calibration.Env{LowBandCutoff: "TEST_CAL_LOW_BAND"}
		t.Setenv(env.LowBandCutoff, "low")

		var cfg calibration.Config
		if err := cfg.Finalize(env); err == nil {
			t.Error("Finalize() error = nil, want error")
		}
	})

	t.Run("inverted cutoffs", func(t *testing.T) {
		cfg := calibration.Config{LowBandCutoff: 0.8, MidBandCutoff: 0.6}
		if err := cfg.Finalize(nil); err == nil {
			t.Error("Finalize() error = nil, want error")
		}
	})

	t.Run("merge", func(t *testing.T) {
		base := calibration.Config{PolicyVersion: "v1", DefaultLanguage: "es"}
		base.Merge(&calibration.Config{DefaultLanguage: "en"})
		if base.PolicyVersion != "v1" || base.DefaultLanguage != "en" {
			t.Errorf("Merge() = %+v", base)
		}
	})
}
