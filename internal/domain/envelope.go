package domain

import (
	"strings"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
)

// Envelope is the literal "<kind>:<argument>" string carried as a request-
// or fetch-topic message body. It is treated as text verbatim: the same
// Envelope string is the payload ledger's primary key, so two requests that
// mean the same thing but format their argument differently (e.g. a
// reordered FILTER list) are, by design, different payload rows — see
// spec's Open Question (ii) on exact-text payload keys vs set-based
// containment checks.
type Envelope string

// NewEnvelope renders kind and argument into their wire form.
func NewEnvelope(kind Kind, argument string) Envelope {
	return Envelope(string(kind) + ":" + argument)
}

// Parse splits an envelope back into its kind and argument, validating both.
func Parse(body string) (Kind, string, error) {
	idx := strings.IndexByte(body, ':')
	if idx < 0 {
		return "", "", errors.InvalidArgument("envelope missing ':' separator", nil)
	}

	kind, err := ParseKind(body[:idx])
	if err != nil {
		return "", "", err
	}

	argument := body[idx+1:]
	if err := ValidateArgument(kind, argument); err != nil {
		return "", "", err
	}

	return kind, argument, nil
}

// HasRecognisedPrefix reports whether body starts with one of the three
// known kind prefixes, without fully validating the argument. Used for the
// cheap "Unrecognised" sanity check before the full Parse.
func HasRecognisedPrefix(body string) bool {
	for _, k := range []Kind{KindAll, KindSingle, KindFilter} {
		if strings.HasPrefix(body, string(k)+":") {
			return true
		}
	}
	return false
}
