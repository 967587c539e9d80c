package attribution

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a non-negative monetary value in minor units (cents).
type Amount int64

// MaxAmount is the exclusive ceiling for a single conversion value (10,000,000.00).
const MaxAmount Amount = 1_000_000_000

// Float64 returns the amount in major units.
func (a Amount) Float64() float64 {
	return float64(a) / 100
}

func (a Amount) String() string {
	return fmt.Sprintf("%d.%02d", a/100, a%100)
}

// NormalizeAmount parses a loosely formatted monetary value such as "₴1,234.50",
// "$1,234.50", "1.234,50" or "1234.5". Currency symbols and whitespace are dropped and
// thousands separators removed. Unparseable, negative or out of range values become zero
// so a malformed value never rejects the whole conversion.
func NormalizeAmount(raw string) Amount {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}

		return -1
	}, raw)

	if cleaned == "" || strings.Contains(cleaned, "-") {
		return 0
	}

	value, err := strconv.ParseFloat(resolveSeparators(cleaned), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}

	cents := Amount(math.Round(value * 100))
	if cents < 0 || cents >= MaxAmount {
		return 0
	}

	return cents
}

// resolveSeparators rewrites s so that "." is the only decimal separator and no
// thousands separators remain.
func resolveSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// whichever separator comes last is the decimal one
		if lastDot > lastComma {
			return strings.ReplaceAll(s, ",", "")
		}

		return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			return strings.Replace(s, ",", ".", 1)
		}

		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}
