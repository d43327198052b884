package asterisk

import (
	"strings"
)

// Spellings FormatBool writes.
const (
	Yes = "yes"
	No  = "no"
)

var (
	trueValues  = []string{Yes, "true", "on", "1", "ok"}
	falseValues = []string{No, "false", "off", "0", "non"}
	nullValues  = []string{"null", ""}
)

// TrueValues returns the accepted spellings of true.
func TrueValues() []string { return append([]string(nil), trueValues...) }

// FalseValues returns the accepted spellings of false.
func FalseValues() []string { return append([]string(nil), falseValues...) }

// NullValues returns the spellings of an unset boolean.
func NullValues() []string { return append([]string(nil), nullValues...) }

// Bool returns a pointer to v, for tri-state literals.
func Bool(v bool) *bool {
	return &v
}

// ParseBool decodes an Asterisk boolean. Blank and null-like values decode
// to nil; anything outside the vocabulary fails with ErrUnrecognizedBoolean.
func ParseBool(value string) (*bool, error) {
	test := strings.ToLower(strings.TrimSpace(value))
	if test == "" {
		return nil, nil
	}

	switch {
	case contains(nullValues, test):
		return nil, nil
	case contains(trueValues, test):
		return Bool(true), nil
	case contains(falseValues, test):
		return Bool(false), nil
	}
	return nil, &ValueError{Kind: ErrUnrecognizedBoolean, Value: value}
}

// FormatBool encodes a tri-state boolean as "yes" or "no". The second
// result is false when value is unset.
func FormatBool(value *bool) (string, bool) {
	if value == nil {
		return "", false
	}
	if *value {
		return Yes, true
	}
	return No, true
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
