package codes

import (
	"strings"
	"unicode"
)

// JoinStrategy selects how children are gathered under a parent record.
// Legacy datasets reference parents three different ways, so the aggregation
// engine queries with every strategy and unions the results.
type JoinStrategy int

const (
	// ByDocumentID matches children whose parent id column holds the parent's
	// document id.
	ByDocumentID JoinStrategy = iota
	// ByBusinessNumber matches children whose parent number column holds the
	// parent's business number (package_number / pallet_number).
	ByBusinessNumber
	// ByLegacyNumericID matches children whose parent id column holds the
	// parent's numeric id from the old local database.
	ByLegacyNumericID
)

func (s JoinStrategy) String() string {
	switch s {
	case ByDocumentID:
		return "document_id"
	case ByBusinessNumber:
		return "business_number"
	case ByLegacyNumericID:
		return "legacy_numeric_id"
	default:
		return "unknown"
	}
}

// JoinRef is one (strategy, value) pair to query children by. Strategies with
// an empty value are skipped by the aggregation engine.
type JoinRef struct {
	Strategy JoinStrategy
	Value    string
}

// Normalize canonicalizes a scanned or typed code: trims whitespace,
// uppercases, and repairs the common scanner defect where the trailing
// letter of a 13-digit component code is dropped or mangled. A bare run of
// 13 digits gets a "Q" appended; 13 digits followed by a single letter has
// that letter forced to "Q". Normalize is idempotent.
func Normalize(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return ""
	}

	digits := 0
	for digits < len(c) && c[digits] >= '0' && c[digits] <= '9' {
		digits++
	}

	if digits == 13 {
		if len(c) == 13 {
			return c + "Q"
		}
		if len(c) == 14 && isASCIILetter(c[13]) {
			return c[:13] + "Q"
		}
	}
	return c
}

// NormalizeKey canonicalizes a package or pallet business number: trim and
// uppercase only. The trailing-letter repair in Normalize is specific to
// component codes and must not touch other keys, or a 13-digit package
// number would grow a spurious check letter.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

func isASCIILetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// CanonicalComponentCode is the dedup key for component codes. It is a plain
// upper-casing so that case variants of the same physical label collapse to
// one entry without triggering the scanner repair in Normalize.
func CanonicalComponentCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsDocumentID reports whether a stored parent reference looks like a
// database document id rather than a legacy numeric id. Document ids are
// long opaque strings; legacy ids are short decimal integers.
func IsDocumentID(id string) bool {
	if len(id) < 16 {
		return false
	}
	for _, r := range id {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// CaseVariants returns the lookup candidates for a code in retry order:
// the value as given, then upper-cased, then lower-cased. Duplicates are
// removed while preserving order.
func CaseVariants(code string) []string {
	variants := []string{code, strings.ToUpper(code), strings.ToLower(code)}
	seen := make(map[string]struct{}, len(variants))
	out := variants[:0]
	for _, v := range variants {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// FindByCaseVariants runs lookup for each case variant of code until one
// returns a non-nil result. A nil result with a nil error from every variant
// means not found.
func FindByCaseVariants[T any](code string, lookup func(string) (*T, error)) (*T, error) {
	for _, variant := range CaseVariants(code) {
		result, err := lookup(variant)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}
