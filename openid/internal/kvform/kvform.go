// Package kvform implements the OpenID "key-value form" used for associate
// and check_authentication POST bodies and responses: lines of
// "key:value\n", keys and values trimmed of surrounding whitespace, keys
// forbidden from containing ':' or '\n', values forbidden from containing
// '\n'.
package kvform

import (
	"fmt"
	"strings"
)

// Encode renders pairs, in order, as key-value form. Order matters to
// callers that sign the resulting bytes (e.g. AssociationEngine's associate
// request body does not need a stable order, but ResponseVerifier's signed
// payload reconstruction does - this function always preserves pairs'
// order, never re-sorting).
func Encode(pairs []Pair) (string, error) {
	var b strings.Builder
	for _, p := range pairs {
		if strings.ContainsAny(p.Key, ":\n") {
			return "", fmt.Errorf("kvform: key %q contains ':' or newline", p.Key)
		}
		if strings.Contains(p.Value, "\n") {
			return "", fmt.Errorf("kvform: value for key %q contains newline", p.Key)
		}
		b.WriteString(p.Key)
		b.WriteByte(':')
		b.WriteString(p.Value)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Pair is one key-value form entry. A slice of Pair (rather than a map) is
// the wire-level type because the protocol's signature step depends on
// preserving caller-supplied order.
type Pair struct {
	Key   string
	Value string
}

// Decode parses key-value form text into an ordered list of pairs,
// preserving duplicate keys and insertion order. Leading/trailing whitespace
// around keys and values is stripped. Lines without a ':' are skipped, the
// same leniency python-openid and php-openid show toward stray blank lines.
func Decode(text string) []Pair {
	lines := strings.Split(text, "\n")
	pairs := make([]Pair, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	return pairs
}

// Map decodes text into a map of last-value-wins, convenient for callers
// that only need to look fields up by name (associate responses).
func Map(text string) map[string]string {
	m := make(map[string]string)
	for _, p := range Decode(text) {
		m[p.Key] = p.Value
	}
	return m
}
