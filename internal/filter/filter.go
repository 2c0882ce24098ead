// Package filter defines the canonical filter model and validates the
// loosely shaped configuration records it is loaded from.
package filter

// FieldSet selects which message fields participate in a search.
type FieldSet struct {
	From    bool
	CC      bool
	BCC     bool
	Subject bool
	Body    bool
}

// None reports whether no field is selected. Such a filter cannot construct
// a search and is rejected before any network call.
func (fs FieldSet) None() bool {
	return !fs.From && !fs.CC && !fs.BCC && !fs.Subject && !fs.Body
}

// Rule is a top-level filter: the unit of matching intent. Rules are owned
// by the configuration loaded at startup; the search engine borrows them
// read-only.
type Rule struct {
	Search     string
	Fields     FieldSet
	Label      string
	AllMatch   bool // term must appear in every selected field, not just one
	ExactMatch bool // parsed field value must equal the term exactly
	SubFilters []SubRule
}

// SubRule is a one-level-deep auxiliary constraint whose result set is
// intersected with its parent's. It carries no label and no further
// sub-filters, so the depth-1 nesting limit holds by construction.
type SubRule struct {
	Search     string
	Fields     FieldSet
	AllMatch   bool
	ExactMatch bool
}

// Config is the resolved filter configuration consumed by the batch runner.
type Config struct {
	UserEmail    string
	UserPassword string
	Filters      []Rule
}
