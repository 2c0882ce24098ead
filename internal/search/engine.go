// Package search turns canonical filter rules into IMAP search queries,
// combines the server's result sets, and verifies exact matches client-side.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/filtermail/filtermail/internal/filter"
	"github.com/filtermail/filtermail/internal/mailbox"
	"github.com/filtermail/filtermail/internal/rate"
)

// ErrInvalidQuery marks a filter that selects no fields. It is rejected
// before any network call.
var ErrInvalidQuery = errors.New("filter selects no fields")

// Set is a result set of message UIDs.
type Set map[mailbox.MessageID]struct{}

// Engine evaluates filter rules against the currently selected label.
type Engine struct {
	Client  mailbox.Client
	Limiter rate.Limiter
	Logger  *slog.Logger
}

// NewEngine constructs an Engine with sane defaults.
func NewEngine(client mailbox.Client, limiter rate.Limiter, logger *slog.Logger) *Engine {
	if limiter == nil {
		limiter = rate.NoLimit{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Engine{Client: client, Limiter: limiter, Logger: logger}
}

// Run evaluates one top-level rule and returns the surviving UID set. The
// caller must have selected the rule's label beforehand.
//
// A sub-filter carrying no term of its own reuses the parent's search term
// and narrows by different fields only. Each sub-filter's result set is
// intersected with the primary set, so a message survives only when it
// appears in the primary set and in every sub-filter's set.
func (e *Engine) Run(ctx context.Context, rule filter.Rule) (Set, error) {
	primary, err := e.serverSearch(ctx, rule.Search, rule.Fields, rule.AllMatch)
	if err != nil {
		return nil, err
	}

	for _, sub := range rule.SubFilters {
		subSet, err := e.runSub(ctx, rule.Search, sub)
		if err != nil {
			return nil, err
		}
		primary = intersect(primary, subSet)
	}

	if !rule.ExactMatch {
		return primary, nil
	}
	return e.verifyExact(ctx, rule.Search, rule.Fields, primary)
}

func (e *Engine) runSub(ctx context.Context, parentTerm string, sub filter.SubRule) (Set, error) {
	term := sub.Search
	if term == "" {
		term = parentTerm
	}
	set, err := e.serverSearch(ctx, term, sub.Fields, sub.AllMatch)
	if err != nil {
		return nil, err
	}
	if !sub.ExactMatch {
		return set, nil
	}
	return e.verifyExact(ctx, term, sub.Fields, set)
}

// serverSearch issues the IMAP queries for one field selection. AllMatch
// sends a single conjunctive query; otherwise each clause is queried
// separately and the UID sets are unioned.
func (e *Engine) serverSearch(ctx context.Context, term string, fields filter.FieldSet, allMatch bool) (Set, error) {
	clauses := clausesFor(fields, term)
	if len(clauses) == 0 {
		return nil, ErrInvalidQuery
	}

	if allMatch {
		if err := e.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
		ids, err := e.Client.Search(ctx, mailbox.Query{Clauses: clauses})
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		return toSet(ids), nil
	}

	out := make(Set)
	for _, clause := range clauses {
		if err := e.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
		ids, err := e.Client.Search(ctx, mailbox.Query{Clauses: []mailbox.Clause{clause}})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", clause.Field, err)
		}
		for _, id := range ids {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// verifyExact fetches the candidate records and keeps only those where the
// term equals a selected field's parsed value. The first matching field
// keeps the record; the all/any policy already shaped the candidate set
// server-side and is not re-applied here.
func (e *Engine) verifyExact(ctx context.Context, term string, fields filter.FieldSet, candidates Set) (Set, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	if err := e.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	records, err := e.Client.FetchRecords(ctx, SortedIDs(candidates))
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	kept := make(Set)
	for _, rec := range records {
		if matchesExact(rec, fields, term) {
			kept[rec.ID] = struct{}{}
		}
	}
	e.Logger.DebugContext(ctx, "exact match verification",
		slog.Int("candidates", len(candidates)), slog.Int("kept", len(kept)))
	return kept, nil
}

func matchesExact(rec mailbox.MessageRecord, fields filter.FieldSet, term string) bool {
	if fields.From && (rec.From.Raw == term || (rec.From.Email != "" && rec.From.Email == term)) {
		return true
	}
	if fields.CC && rec.CC == term {
		return true
	}
	if fields.BCC && rec.BCC == term {
		return true
	}
	if fields.Subject && rec.Subject == term {
		return true
	}
	if fields.Body && rec.HasBody && rec.Body == term {
		return true
	}
	return false
}

// clausesFor builds one search clause per selected field, in a stable order.
func clausesFor(fields filter.FieldSet, term string) []mailbox.Clause {
	var clauses []mailbox.Clause
	if fields.From {
		clauses = append(clauses, mailbox.Clause{Field: mailbox.FieldFrom, Term: term})
	}
	if fields.CC {
		clauses = append(clauses, mailbox.Clause{Field: mailbox.FieldCC, Term: term})
	}
	if fields.BCC {
		clauses = append(clauses, mailbox.Clause{Field: mailbox.FieldBCC, Term: term})
	}
	if fields.Subject {
		clauses = append(clauses, mailbox.Clause{Field: mailbox.FieldSubject, Term: term})
	}
	if fields.Body {
		clauses = append(clauses, mailbox.Clause{Field: mailbox.FieldBody, Term: term})
	}
	return clauses
}

func toSet(ids []mailbox.MessageID) Set {
	out := make(Set, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func intersect(a, b Set) Set {
	out := make(Set)
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// SortedIDs returns the set as a deterministic slice, for fetch calls and
// for callers that log or delete in order.
func SortedIDs(set Set) []mailbox.MessageID {
	ids := make([]mailbox.MessageID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
