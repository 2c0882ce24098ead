package filter

import (
	"errors"
	"testing"
)

func TestValidateFilterDefaults(t *testing.T) {
	rule, err := ValidateFilter(map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Rule{
		Search:     "",
		Label:      "Inbox",
		AllMatch:   true,
		ExactMatch: true,
		SubFilters: []SubRule{},
	}
	if rule.Search != want.Search || rule.Label != want.Label ||
		rule.AllMatch != want.AllMatch || rule.ExactMatch != want.ExactMatch {
		t.Fatalf("unexpected defaults: %+v", rule)
	}
	if !rule.Fields.None() {
		t.Fatalf("expected no fields selected, got %+v", rule.Fields)
	}
	if len(rule.SubFilters) != 0 {
		t.Fatalf("expected empty sub filters, got %d", len(rule.SubFilters))
	}
}

func TestValidateFilterTypeMismatch(t *testing.T) {
	tests := []struct {
		name  string
		raw   map[string]any
		field string
	}{
		{name: "search as number", raw: map[string]any{"search": 5.0}, field: "search"},
		{name: "from as string", raw: map[string]any{"from": "yes"}, field: "from"},
		{name: "label as bool", raw: map[string]any{"label": true}, field: "label"},
		{name: "all_match as string", raw: map[string]any{"all_match": "true"}, field: "all_match"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateFilter(tc.raw)
			var typeErr *FieldTypeError
			if !errors.As(err, &typeErr) {
				t.Fatalf("expected FieldTypeError, got %v", err)
			}
			if typeErr.Field != tc.field {
				t.Fatalf("error names field %q, want %q", typeErr.Field, tc.field)
			}
		})
	}
}

func TestValidateFilterNonListSubFilters(t *testing.T) {
	rule, err := ValidateFilter(map[string]any{"sub_filters": "oops"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rule.SubFilters) != 0 {
		t.Fatalf("non-list sub_filters should default to empty, got %d", len(rule.SubFilters))
	}
}

func TestValidateSubFilterStripsNestedKeys(t *testing.T) {
	sub, err := ValidateSubFilter(map[string]any{
		"search":      "term",
		"from":        true,
		"label":       "Spam",
		"sub_filters": []any{map[string]any{"search": "deeper"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Search != "term" || !sub.Fields.From {
		t.Fatalf("unexpected sub rule: %+v", sub)
	}
	// SubRule has no Label or SubFilters field at all; the keys above must
	// simply be ignored, not rejected.
}

func TestValidateSubFilterLabelTypeChecked(t *testing.T) {
	_, err := ValidateSubFilter(map[string]any{"label": 3.0})
	var typeErr *FieldTypeError
	if !errors.As(err, &typeErr) || typeErr.Field != "label" {
		t.Fatalf("expected label type error, got %v", err)
	}
}

func TestValidateFilterNestedSubFilters(t *testing.T) {
	rule, err := ValidateFilter(map[string]any{
		"search":  "urgent",
		"subject": true,
		"sub_filters": []any{
			map[string]any{"search": "spam@x.com", "from": true},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rule.SubFilters) != 1 {
		t.Fatalf("expected 1 sub filter, got %d", len(rule.SubFilters))
	}
	if !rule.SubFilters[0].Fields.From {
		t.Fatalf("sub filter lost its field selection: %+v", rule.SubFilters[0])
	}
}
