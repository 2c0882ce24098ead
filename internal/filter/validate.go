package filter

import (
	"fmt"
)

// FieldTypeError reports a configuration key that is present but carries a
// value of the wrong type.
type FieldTypeError struct {
	Field string
	Got   string
	Want  string
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("filter key %q contains invalid type %s, expected %s", e.Field, e.Got, e.Want)
}

// Documented defaults: an absent key takes its default, a present key must
// match the default's type.
func stringKey(raw map[string]any, key, def string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &FieldTypeError{Field: key, Got: fmt.Sprintf("%T", v), Want: "string"}
	}
	return s, nil
}

func boolKey(raw map[string]any, key string, def bool) (bool, error) {
	v, ok := raw[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, &FieldTypeError{Field: key, Got: fmt.Sprintf("%T", v), Want: "bool"}
	}
	return b, nil
}

func validateFields(raw map[string]any) (search string, fields FieldSet, allMatch, exactMatch bool, err error) {
	if search, err = stringKey(raw, "search", ""); err != nil {
		return
	}
	if fields.From, err = boolKey(raw, "from", false); err != nil {
		return
	}
	if fields.CC, err = boolKey(raw, "cc", false); err != nil {
		return
	}
	if fields.BCC, err = boolKey(raw, "bcc", false); err != nil {
		return
	}
	if fields.Subject, err = boolKey(raw, "subject", false); err != nil {
		return
	}
	if fields.Body, err = boolKey(raw, "body", false); err != nil {
		return
	}
	if allMatch, err = boolKey(raw, "all_match", true); err != nil {
		return
	}
	if exactMatch, err = boolKey(raw, "exact_match", true); err != nil {
		return
	}
	return
}

// ValidateFilter normalizes one raw top-level filter record into a canonical
// Rule, applying the documented default for every absent key. A sub_filters
// entry that is absent or not a list defaults to empty.
func ValidateFilter(raw map[string]any) (Rule, error) {
	search, fields, allMatch, exactMatch, err := validateFields(raw)
	if err != nil {
		return Rule{}, err
	}
	label, err := stringKey(raw, "label", "Inbox")
	if err != nil {
		return Rule{}, err
	}

	rule := Rule{
		Search:     search,
		Fields:     fields,
		Label:      label,
		AllMatch:   allMatch,
		ExactMatch: exactMatch,
		SubFilters: []SubRule{},
	}

	entries, ok := raw["sub_filters"].([]any)
	if !ok {
		return rule, nil
	}
	for i, entry := range entries {
		sub, ok := entry.(map[string]any)
		if !ok {
			return Rule{}, fmt.Errorf("sub_filters[%d]: expected object, got %T", i, entry)
		}
		subRule, err := ValidateSubFilter(sub)
		if err != nil {
			return Rule{}, fmt.Errorf("sub_filters[%d]: %w", i, err)
		}
		rule.SubFilters = append(rule.SubFilters, subRule)
	}
	return rule, nil
}

// ValidateSubFilter normalizes a raw sub-filter record. Any label or
// sub_filters key the input erroneously carries is dropped: labels belong to
// top-level filters only and nesting stops at one level. A label key of the
// wrong type is still rejected.
func ValidateSubFilter(raw map[string]any) (SubRule, error) {
	search, fields, allMatch, exactMatch, err := validateFields(raw)
	if err != nil {
		return SubRule{}, err
	}
	if _, err := stringKey(raw, "label", ""); err != nil {
		return SubRule{}, err
	}
	return SubRule{
		Search:     search,
		Fields:     fields,
		AllMatch:   allMatch,
		ExactMatch: exactMatch,
	}, nil
}
