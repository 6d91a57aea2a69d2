// Package formatting converts byte sizes between counts and the
// human-readable strings used in configuration files and CLI output.
package formatting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

const step = 1024

var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders n with base-1024 units and the given number of
// decimals. Negative sizes keep their sign; negative precision means zero.
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)

	sign := ""
	size := float64(n)
	if n < 0 {
		sign = "-"
		size = -size
	}

	unit := 0
	for size >= step && unit < len(units)-1 {
		size /= step
		unit++
	}

	if unit == 0 {
		return sign + strconv.FormatInt(int64(size), 10) + " B"
	}
	return sign + strconv.FormatFloat(size, 'f', precision, 64) + " " + units[unit]
}

// ParseBytes reads sizes such as "10MB", "1.5 gb", "512" or "4KiB". A bare
// number is a byte count. Units are base-1024 and case-insensitive.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})

	number, suffix := s, ""
	if split >= 0 {
		number, suffix = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size %q: missing number", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	exp, err := unitExponent(suffix)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	bytes := value * math.Pow(step, float64(exp))
	if bytes > math.MaxInt64 {
		return 0, fmt.Errorf("invalid byte size %q: overflows int64", s)
	}
	return int64(bytes), nil
}

func unitExponent(suffix string) (int, error) {
	u := strings.ToUpper(suffix)
	if u == "" || u == "B" {
		return 0, nil
	}

	u = strings.TrimSuffix(u, "IB")
	u = strings.TrimSuffix(u, "B")
	for i, unit := range units[1:] {
		if u == unit[:1] {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unknown unit %q", suffix)
}
