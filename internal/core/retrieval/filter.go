package retrieval

import (
	"fmt"
)

// Filterable metadata fields. Backends interpolate field names into their
// predicate language, so the set is closed: anything else is rejected before a
// query string is ever built. Values always travel as bound parameters (or the
// backend's structured equivalent), never as spliced literals.
var filterableFields = map[string]struct{}{
	"doc_id":             {},
	"work":               {},
	"source":             {},
	"edition":            {},
	"title":              {},
	"chapter":            {},
	"section_path":       {},
	"loc":                {},
	"source_reliability": {},
	"edition_confidence": {},
}

// Predicate constrains one metadata field. A single value means equality, more
// than one means set membership.
type Predicate struct {
	Field  string
	Values []string
}

// Filter is an ordered list of predicates combined with AND. The zero value
// means "no constraint".
type Filter []Predicate

// Eq appends an equality predicate. An empty value is treated as "no
// constraint" and dropped, matching the handling of absent filter keys.
func (f Filter) Eq(field, value string) Filter {
	if value == "" {
		return f
	}
	return append(f, Predicate{Field: field, Values: []string{value}})
}

// In appends a set-membership predicate. Empty values are dropped; if nothing
// remains the predicate is omitted entirely.
func (f Filter) In(field string, values ...string) Filter {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return f
	}
	return append(f, Predicate{Field: field, Values: kept})
}

// Validate rejects predicates on fields outside the filterable set.
func (f Filter) Validate() error {
	for _, p := range f {
		if _, ok := filterableFields[p.Field]; !ok {
			return fmt.Errorf("filter field %q is not filterable", p.Field)
		}
		if len(p.Values) == 0 {
			return fmt.Errorf("filter field %q has no values", p.Field)
		}
	}
	return nil
}
