package core

// convert.go provides cell cleanup and type checks shared by validation and
// materialization.
//
// Validation and coercion must agree on what a number or a boolean is, so
// both go through the helpers here:
//   - ParseNumber: finite decimal, optional sign, fraction and exponent
//   - ParseBool: true for "true", "yes", "1", "on" (any case), false otherwise
//   - IsEmail: simple local@domain.tld check

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// emailRegex matches a simple local@domain.tld address.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// numericRegex validates that a string is a finite decimal literal.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// maxNumberExponent bounds the decimal exponent of the leading digit of a
// number so every accepted value is a finite, non-subnormal float64.
const maxNumberExponent = 307

// truthy lists the lowercase cell values that coerce to true.
var truthy = map[string]bool{
	"true": true,
	"yes":  true,
	"1":    true,
	"on":   true,
}

// CleanCell trims whitespace and strips a single pair of surrounding double
// quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return s
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ParseNumber parses s as a finite decimal number.
// Returns false for blank input, NaN/Infinity spellings, values outside the
// float64 range (such as 1e400 or 1e-400), or any other text.
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !numericRegex.MatchString(s) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if d.IsZero() {
		return decimal.Zero, true
	}
	if lead := int64(d.NumDigits()) + int64(d.Exponent()) - 1; lead > maxNumberExponent || lead < -maxNumberExponent {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseBool coerces s to a boolean: true iff its lowercase form is one of
// "true", "yes", "1" or "on".
func ParseBool(s string) bool {
	return truthy[strings.ToLower(strings.TrimSpace(s))]
}

// IsEmail reports whether s looks like local@domain.tld.
func IsEmail(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// defaultValue returns the value inserted for a required field that has no
// mapped data.
func defaultValue(t FieldType) Value {
	switch t {
	case FieldNumber:
		return NumberValue(decimal.Zero)
	case FieldBoolean:
		return BoolValue(false)
	default:
		return TextValue("")
	}
}
