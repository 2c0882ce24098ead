package filter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LintReport captures settings-file findings without touching the network.
type LintReport struct {
	Filters  int
	Upgraded bool
	Findings []Finding
}

// Finding identifies one problem in a settings file.
type Finding struct {
	Filter int // index into the filters list, -1 for config-level findings
	Reason string
}

// Lint inspects a JSON settings payload and reports everything that would
// stop or degrade a sweep: malformed records, filters that select no fields,
// and legacy shapes that would be upgraded on load. Only undecodable JSON is
// an error; all other problems are findings.
func Lint(data []byte) (LintReport, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LintReport{}, fmt.Errorf("decode settings: %w", err)
	}

	var rep LintReport
	_, hadFilters := raw["filters"]
	raw = UpgradeLegacy(raw)
	if _, ok := raw["filters"]; ok && !hadFilters {
		rep.Upgraded = true
	}

	for _, key := range []string{"user_email", "user_password", "filters"} {
		if _, ok := raw[key]; !ok {
			rep.Findings = append(rep.Findings, Finding{Filter: -1, Reason: fmt.Sprintf("missing key %q", key)})
		}
	}

	entries, _ := raw["filters"].([]any)
	rep.Filters = len(entries)
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			rep.Findings = append(rep.Findings, Finding{Filter: i, Reason: fmt.Sprintf("expected object, got %T", entry)})
			continue
		}
		rule, err := ValidateFilter(m)
		if err != nil {
			rep.Findings = append(rep.Findings, Finding{Filter: i, Reason: err.Error()})
			continue
		}
		if rule.Fields.None() {
			rep.Findings = append(rep.Findings, Finding{Filter: i, Reason: "selects no fields; the sweep will skip it"})
		}
		for j, sub := range rule.SubFilters {
			if sub.Fields.None() {
				rep.Findings = append(rep.Findings, Finding{
					Filter: i,
					Reason: fmt.Sprintf("sub_filters[%d] selects no fields; the sweep will skip the filter", j),
				})
			}
		}
	}
	return rep, nil
}

// ShouldFail reports whether the findings warrant a non-zero exit.
func (r LintReport) ShouldFail() bool {
	return len(r.Findings) > 0
}

// HumanSummary renders a concise CLI summary.
func (r LintReport) HumanSummary() string {
	builder := &strings.Builder{}
	fmt.Fprintf(builder, "filtermail lint — %d filter(s)\n", r.Filters)
	if r.Upgraded {
		builder.WriteString("legacy blocked_emails list upgraded to filters\n")
	}
	if len(r.Findings) == 0 {
		builder.WriteString("no findings\n")
		return builder.String()
	}
	for _, f := range r.Findings {
		if f.Filter < 0 {
			fmt.Fprintf(builder, "  config — %s\n", f.Reason)
			continue
		}
		fmt.Fprintf(builder, "  filters[%d] — %s\n", f.Filter, f.Reason)
	}
	return builder.String()
}
