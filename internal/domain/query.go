// Package domain holds the wire-level types shared by every tier: the
// request kind, the "<kind>:<argument>" envelope, and the response JSON
// shape. None of it talks to the bus or a store directly.
package domain

import (
	"regexp"
	"strings"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
)

// Kind is the query discriminator carried in every envelope.
type Kind string

const (
	KindAll    Kind = "ALL"
	KindSingle Kind = "SINGLE"
	KindFilter Kind = "FILTER"
)

var codePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ParseKind validates a raw kind string against the three supported kinds.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindAll, KindSingle, KindFilter:
		return Kind(raw), nil
	default:
		return "", errors.InvalidArgument("unknown request kind: "+raw, nil)
	}
}

// ValidateArgument checks that argument matches what kind requires:
// empty for ALL, a single three-letter code for SINGLE, a comma-separated
// list of three-letter codes for FILTER.
func ValidateArgument(kind Kind, argument string) error {
	switch kind {
	case KindAll:
		if argument != "" {
			return errors.InvalidArgument("ALL requests must not carry an argument", nil)
		}
		return nil
	case KindSingle:
		if !codePattern.MatchString(argument) {
			return errors.InvalidArgument("SINGLE argument must be a three-letter code", nil)
		}
		return nil
	case KindFilter:
		codes := strings.Split(argument, ",")
		if len(codes) == 0 {
			return errors.InvalidArgument("FILTER requires at least one code", nil)
		}
		for _, c := range codes {
			if !codePattern.MatchString(c) {
				return errors.InvalidArgument("FILTER argument contains an invalid code: "+c, nil)
			}
		}
		return nil
	default:
		return errors.InvalidArgument("unknown request kind", nil)
	}
}

// Codes returns the set of three-letter codes named by argument, given kind.
// ALL returns nil (it names no specific codes; everything upstream offers is
// in scope). SINGLE returns one code; FILTER returns each comma-separated
// code, in the order given.
func Codes(kind Kind, argument string) []string {
	switch kind {
	case KindSingle:
		return []string{argument}
	case KindFilter:
		return strings.Split(argument, ",")
	default:
		return nil
	}
}
