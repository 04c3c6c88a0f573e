package domain

import "fmt"

// MaxNumberLen is the longest accepted number string.
const MaxNumberLen = 22

// Number is a validated phone number: 1 to MaxNumberLen ASCII digits.
type Number string

// ParseNumber validates s and returns it as a Number.
func ParseNumber(s string) (Number, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty number", ErrInvalidNumberFormat)
	}
	if len(s) > MaxNumberLen {
		return "", fmt.Errorf("%w: length %d exceeds %d", ErrInvalidNumberFormat, len(s), MaxNumberLen)
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < '0' || c > '9' {
			return "", fmt.Errorf("%w: %q at position %d is not a digit", ErrInvalidNumberFormat, c, i)
		}
	}
	return Number(s), nil
}

// MustParseNumber is ParseNumber for literals known to be valid. It panics otherwise.
func MustParseNumber(s string) Number {
	n, err := ParseNumber(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the digits.
func (n Number) String() string {
	return string(n)
}
