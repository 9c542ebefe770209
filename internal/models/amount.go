package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nkiryanov/payengine/internal/apperrors"
)

const (
	amountScale      = 10_000
	amountFracDigits = 4
)

// Amount is a signed fixed-point decimal with four implicit fractional digits.
// It is stored as an int64 scaled by 10000, so all arithmetic is exact and
// overflow-checked. Zero value is 0.0000.
type Amount struct {
	raw int64
}

// AmountFromRaw builds an Amount from an already scaled value
func AmountFromRaw(raw int64) Amount {
	return Amount{raw: raw}
}

// AmountFromParts builds an Amount from a signed integer part and a fractional
// digit string of up to four digits. Sub-unit negative amounts ("-0.5") cannot
// be expressed through this constructor, use ParseAmount for those.
func AmountFromParts(units int64, fraction string) (Amount, error) {
	frac, err := parseFraction(fraction)
	if err != nil {
		return Amount{}, err
	}

	scaled, ok := mulCheck(units, amountScale)
	if !ok {
		return Amount{}, apperrors.ErrOverflow
	}
	if units < 0 {
		frac = -frac
	}

	raw, ok := addCheck(scaled, frac)
	if !ok {
		return Amount{}, apperrors.ErrOverflow
	}

	return Amount{raw: raw}, nil
}

// ParseAmount parses a decimal string like "1", "1.5" or "0.0001".
// An optional leading sign is accepted, fractional digits are limited to four.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)

	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart = s[:dot]
		fracPart = s[dot+1:]
	}

	units, err := strconv.ParseUint(intPart, 10, 64)
	switch {
	case err == nil:
	case errors.Is(err, strconv.ErrRange):
		return Amount{}, apperrors.ErrOverflow
	default:
		return Amount{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidAmount, s)
	}

	frac, err := parseFraction(fracPart)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidAmount, s)
	}

	if units > uint64(1<<63-1)/amountScale {
		return Amount{}, apperrors.ErrOverflow
	}
	raw, ok := addCheck(int64(units)*amountScale, frac)
	if !ok {
		return Amount{}, apperrors.ErrOverflow
	}

	if negative {
		raw = -raw
	}

	return Amount{raw: raw}, nil
}

// parseFraction parses up to four fractional digits, right-padded with zeros.
// An empty string means zero ("1." parses the same way "1" does).
func parseFraction(fraction string) (int64, error) {
	if len(fraction) > amountFracDigits {
		return 0, apperrors.ErrInvalidAmount
	}

	var frac int64
	for _, c := range []byte(fraction) {
		if c < '0' || c > '9' {
			return 0, apperrors.ErrInvalidAmount
		}
		frac = frac*10 + int64(c-'0')
	}
	for i := len(fraction); i < amountFracDigits; i++ {
		frac *= 10
	}

	return frac, nil
}

// Raw returns the scaled integer value
func (a Amount) Raw() int64 {
	return a.raw
}

// CheckedAdd returns a+b or apperrors.ErrOverflow if the sum wraps
func (a Amount) CheckedAdd(b Amount) (Amount, error) {
	raw, ok := addCheck(a.raw, b.raw)
	if !ok {
		return Amount{}, apperrors.ErrOverflow
	}
	return Amount{raw: raw}, nil
}

// CheckedSub returns a-b or apperrors.ErrOverflow if the difference wraps
func (a Amount) CheckedSub(b Amount) (Amount, error) {
	raw, ok := subCheck(a.raw, b.raw)
	if !ok {
		return Amount{}, apperrors.ErrOverflow
	}
	return Amount{raw: raw}, nil
}

func (a Amount) IsZero() bool     { return a.raw == 0 }
func (a Amount) IsPositive() bool { return a.raw > 0 }
func (a Amount) IsNegative() bool { return a.raw < 0 }

// Cmp compares two amounts: -1 if a < b, 0 if equal, 1 if a > b
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.raw < b.raw:
		return -1
	case a.raw > b.raw:
		return 1
	default:
		return 0
	}
}

// String formats the amount with exactly four fractional digits
func (a Amount) String() string {
	// Negate via uint64 so MinInt64 formats correctly
	u := uint64(a.raw)
	sign := ""
	if a.raw < 0 {
		sign = "-"
		u = -u
	}

	return fmt.Sprintf("%s%d.%04d", sign, u/amountScale, u%amountScale)
}

// MarshalJSON encodes the amount as a decimal string to keep it exact
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes a decimal string produced by MarshalJSON
func (a *Amount) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidAmount, data)
	}

	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}

	*a = parsed
	return nil
}

func addCheck(a, b int64) (int64, bool) {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return 0, false
	}
	return sum, true
}

func subCheck(a, b int64) (int64, bool) {
	diff := a - b
	if (a >= 0 && b < 0 && diff < 0) || (a < 0 && b > 0 && diff >= 0) {
		return 0, false
	}
	return diff, true
}

func mulCheck(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a {
		return 0, false
	}
	return product, true
}
