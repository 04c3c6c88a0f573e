package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseNumber_Valid(t *testing.T) {
	for _, s := range []string{"0", "100", "48221234567", strings.Repeat("9", MaxNumberLen)} {
		n, err := ParseNumber(s)
		require.NoError(t, err, "input %q", s)
		require.Equal(t, s, n.String())
	}
}

func TestParseNumber_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"too long", strings.Repeat("1", MaxNumberLen+1)},
		{"letter", "12a4"},
		{"plus prefix", "+48123"},
		{"space", "12 34"},
		{"embedded nul", "12\x0034"},
		{"newline", "1234\n"},
		{"unicode digit", "١٢٣"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNumber(tt.in)
			require.ErrorIs(t, err, ErrInvalidNumberFormat)
		})
	}
}

func TestMustParseNumber_Panics(t *testing.T) {
	require.Panics(t, func() { MustParseNumber("abc") })
	require.NotPanics(t, func() { MustParseNumber("123") })
}

func TestParseNumber_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		_, err := ParseNumber(s)

		valid := len(s) >= 1 && len(s) <= MaxNumberLen
		for i := 0; i < len(s) && valid; i++ {
			valid = s[i] >= '0' && s[i] <= '9'
		}
		if valid {
			require.NoError(t, err)
		} else {
			require.ErrorIs(t, err, ErrInvalidNumberFormat)
		}
	})
}

func TestHandle_RoundTrip(t *testing.T) {
	h, err := ParseHandle(Handle(42).String())
	require.NoError(t, err)
	require.Equal(t, Handle(42), h)

	_, err = ParseHandle("-1")
	require.Error(t, err)
	_, err = ParseHandle("x")
	require.Error(t, err)
}
