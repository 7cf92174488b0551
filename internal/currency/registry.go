// Package currency is a flat code -> descriptor registry, adapted from the
// teacher's pkg/commerce/currency. Per spec §9, the Currency taxonomy is
// purely ornamental to the core: this package never participates in the
// freshness/dedup decision, it only turns a three-letter code into a
// friendlier name for validation error text (UnknownCode DLT reasons).
package currency

// Descriptor is a human-readable label for a three-letter code. Unlike the
// teacher's Dollar/Euro/Ruble/Yuan subtype hierarchy, this is intentionally
// just data.
type Descriptor struct {
	Code string
	Name string
}

var registry = map[string]Descriptor{
	"USD": {"USD", "United States Dollar"},
	"EUR": {"EUR", "Euro"},
	"RUB": {"RUB", "Russian Ruble"},
	"CNY": {"CNY", "Chinese Yuan"},
	"GBP": {"GBP", "British Pound Sterling"},
	"JPY": {"JPY", "Japanese Yen"},
	"CHF": {"CHF", "Swiss Franc"},
	"CAD": {"CAD", "Canadian Dollar"},
	"AUD": {"AUD", "Australian Dollar"},
}

// Describe returns a descriptor for code, falling back to the bare code if
// it isn't in the registry (the registry is a convenience, not a validator —
// the wire-format code pattern in internal/domain is the source of truth for
// what a "valid" code looks like).
func Describe(code string) Descriptor {
	if d, ok := registry[code]; ok {
		return d
	}
	return Descriptor{Code: code, Name: code}
}

// Label renders "CODE: Name" for use in dead-letter reasons and log lines.
func Label(code string) string {
	d := Describe(code)
	if d.Name == d.Code {
		return d.Code
	}
	return d.Code + ": " + d.Name
}
