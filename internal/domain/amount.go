package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Amount is a fixed-point monetary value kept as a decimal string with up to
// 2 decimal places (e.g. "100.00"). Strings avoid the precision loss of
// binary floats and match the wire and storage representation.
type Amount string

var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// maxIntegerDigits matches the NUMERIC(15,2) storage columns and keeps the
// cents representation well inside the int64 range.
const maxIntegerDigits = 13

// ParseAmount validates a decimal string and returns it as an Amount.
// The value must be strictly positive and fit in 13 integer digits.
func ParseAmount(value string) (Amount, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: amount is empty", ErrInvalidAmount)
	}

	if !amountPattern.MatchString(value) {
		return "", fmt.Errorf("%w: %q is not a decimal with up to 2 decimal places", ErrInvalidAmount, value)
	}

	whole, _, _ := strings.Cut(value, ".")
	if len(strings.TrimLeft(whole, "0")) > maxIntegerDigits {
		return "", fmt.Errorf("%w: %q exceeds %d integer digits", ErrInvalidAmount, value, maxIntegerDigits)
	}

	cents, err := amountCents(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	if cents <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	return Amount(value), nil
}

// Validate reports whether the amount is well formed and strictly positive.
func (a Amount) Validate() error {
	_, err := ParseAmount(string(a))
	return err
}

// Cents returns the amount as an integer number of cents.
// The amount must have been validated first.
func (a Amount) Cents() (int64, error) {
	return amountCents(string(a))
}

// String returns the decimal representation.
func (a Amount) String() string {
	return string(a)
}

// amountCents converts a validated decimal string into cents without going
// through floating point.
func amountCents(value string) (int64, error) {
	whole, frac, _ := strings.Cut(value, ".")

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer part %q: %w", whole, err)
	}

	for len(frac) < 2 {
		frac += "0"
	}

	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fractional part %q: %w", frac, err)
	}

	return units*100 + cents, nil
}
