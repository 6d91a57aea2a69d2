package formatting_test

import (
	"testing"

	"github.com/JaimeStill/vetrecords/pkg/formatting"
)

const (
	kib = int64(1024)
	mib = kib * 1024
	gib = mib * 1024
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"2048", 2048, false},
		{"512B", 512, false},
		{"1KB", kib, false},
		{"4KiB", 4 * kib, false},
		{"10MB", 10 * mib, false},
		{"10mb", 10 * mib, false},
		{"1.5 GB", gib + gib/2, false},
		{"  25 MiB ", 25 * mib, false},
		{"3k", 3 * kib, false},
		{"", 0, true},
		{"MB", 0, true},
		{"-5MB", 0, true},
		{"12 parsecs", 0, true},
		{"1.2.3MB", 0, true},
		{"99999999EB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n         int64
		precision int
		want      string
	}{
		{0, 2, "0 B"},
		{1023, 2, "1023 B"},
		{kib, 0, "1 KB"},
		{1536 * kib, 1, "1.5 MB"},
		{184 * kib, 2, "184.00 KB"},
		{3 * gib, -4, "3 GB"},
		{-2 * mib, 0, "-2 MB"},
	}

	for _, tt := range tests {
		if got := formatting.FormatBytes(tt.n, tt.precision); got != tt.want {
			t.Errorf("FormatBytes(%d, %d) = %q, want %q", tt.n, tt.precision, got, tt.want)
		}
	}
}

func TestUploadLimitRoundTrip(t *testing.T) {
	for _, n := range []int64{kib, 10 * mib, 2 * gib} {
		s := formatting.FormatBytes(n, 0)
		got, err := formatting.ParseBytes(s)
		if err != nil {
			t.Fatalf("ParseBytes(%q): %v", s, err)
		}
		if got != n {
			t.Errorf("round trip %d -> %q -> %d", n, s, got)
		}
	}
}
