package sweep

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/filtermail/filtermail/internal/filter"
	"github.com/filtermail/filtermail/internal/mailbox"
	"github.com/filtermail/filtermail/internal/mailtext"
)

type labeledMessage struct {
	id      mailbox.MessageID
	from    string
	subject string
}

// fakeClient holds messages per label and implements substring search over
// the currently selected label.
type fakeClient struct {
	labels    map[string][]labeledMessage
	selected  string
	deleted   []mailbox.MessageID
	deleteErr map[mailbox.MessageID]error
	loggedOut bool
}

func (f *fakeClient) SelectLabel(ctx context.Context, name string) error {
	_ = ctx
	if _, ok := f.labels[name]; !ok {
		return &mailbox.LabelNotFoundError{Label: name, ServerMsg: "NO [NONEXISTENT] Unknown Mailbox"}
	}
	f.selected = name
	return nil
}

func (f *fakeClient) Labels(ctx context.Context) (map[string]string, error) {
	_ = ctx
	out := make(map[string]string, len(f.labels))
	for name := range f.labels {
		out[name] = name
	}
	return out, nil
}

func (f *fakeClient) Search(ctx context.Context, q mailbox.Query) ([]mailbox.MessageID, error) {
	_ = ctx
	var out []mailbox.MessageID
	for _, m := range f.labels[f.selected] {
		matched := true
		for _, clause := range q.Clauses {
			var value string
			switch clause.Field {
			case mailbox.FieldFrom:
				value = m.from
			case mailbox.FieldSubject:
				value = m.subject
			}
			if !strings.Contains(value, clause.Term) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, m.id)
		}
	}
	return out, nil
}

func (f *fakeClient) FetchRecords(ctx context.Context, ids []mailbox.MessageID) ([]mailbox.MessageRecord, error) {
	_ = ctx
	want := make(map[mailbox.MessageID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []mailbox.MessageRecord
	for _, m := range f.labels[f.selected] {
		if _, ok := want[m.id]; !ok {
			continue
		}
		email, name := mailtext.SplitDisplayName(m.from)
		out = append(out, mailbox.MessageRecord{
			ID:      m.id,
			From:    mailbox.Address{Raw: m.from, Email: email, Name: name},
			Subject: m.subject,
		})
	}
	return out, nil
}

func (f *fakeClient) Delete(ctx context.Context, id mailbox.MessageID) error {
	_ = ctx
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeClient) Logout() error {
	f.loggedOut = true
	return nil
}

func newTestService(client mailbox.Client) *Service {
	return NewService(client, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func exactFromRule(term string) filter.Rule {
	return filter.Rule{
		Search:     term,
		Fields:     filter.FieldSet{From: true},
		Label:      "Inbox",
		AllMatch:   true,
		ExactMatch: true,
	}
}

func TestRunDeletesOnlyExactSender(t *testing.T) {
	fake := &fakeClient{labels: map[string][]labeledMessage{
		"Inbox": {
			{id: "1", from: "spam@x.com", subject: "offer"},
			{id: "2", from: "spam@x.com.evil.com", subject: "offer"},
		},
	}}
	svc := newTestService(fake)

	cfg := filter.Config{Filters: []filter.Rule{exactFromRule("spam@x.com")}}
	res, err := svc.Run(context.Background(), cfg, Spec{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Deleted != 1 || len(fake.deleted) != 1 || fake.deleted[0] != "1" {
		t.Fatalf("expected only message 1 deleted, got %+v (deleted %v)", res, fake.deleted)
	}
}

func TestRunSkipsBadLabelAndContinues(t *testing.T) {
	fake := &fakeClient{labels: map[string][]labeledMessage{
		"Inbox": {{id: "1", from: "spam@x.com"}},
	}}
	svc := newTestService(fake)

	bad := exactFromRule("spam@x.com")
	bad.Label = "DoesNotExist"
	cfg := filter.Config{Filters: []filter.Rule{bad, exactFromRule("spam@x.com")}}

	res, err := svc.Run(context.Background(), cfg, Spec{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.SkippedRules != 1 {
		t.Fatalf("expected 1 skipped filter, got %d", res.SkippedRules)
	}
	if res.Deleted != 1 {
		t.Fatalf("remaining filter should still delete, got %+v", res)
	}
}

func TestRunFailsWhenEveryFilterSkipped(t *testing.T) {
	fake := &fakeClient{labels: map[string][]labeledMessage{}}
	svc := newTestService(fake)

	bad := exactFromRule("spam@x.com")
	bad.Label = "Missing"
	_, err := svc.Run(context.Background(), filter.Config{Filters: []filter.Rule{bad}}, Spec{})
	if err == nil {
		t.Fatalf("expected an error when the only filter is skipped")
	}
}

func TestRunSkipsZeroFieldFilter(t *testing.T) {
	fake := &fakeClient{labels: map[string][]labeledMessage{
		"Inbox": {{id: "1", from: "spam@x.com"}},
	}}
	svc := newTestService(fake)

	empty := filter.Rule{Search: "spam@x.com", Label: "Inbox", AllMatch: true, ExactMatch: true}
	cfg := filter.Config{Filters: []filter.Rule{empty, exactFromRule("spam@x.com")}}

	res, err := svc.Run(context.Background(), cfg, Spec{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.SkippedRules != 1 || res.Deleted != 1 {
		t.Fatalf("expected the empty filter skipped and the other applied, got %+v", res)
	}
}

func TestRunDryRunSkipsDeletion(t *testing.T) {
	fake := &fakeClient{labels: map[string][]labeledMessage{
		"Inbox": {{id: "1", from: "spam@x.com"}},
	}}
	svc := newTestService(fake)

	cfg := filter.Config{Filters: []filter.Rule{exactFromRule("spam@x.com")}}
	res, err := svc.Run(context.Background(), cfg, Spec{DryRun: true})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(fake.deleted) != 0 {
		t.Fatalf("dry-run must not delete, got %v", fake.deleted)
	}
	if len(res.IDs) != 1 {
		t.Fatalf("dry-run should still report matches, got %+v", res)
	}
}

func TestRunConfirmDeclined(t *testing.T) {
	fake := &fakeClient{labels: map[string][]labeledMessage{
		"Inbox": {{id: "1", from: "spam@x.com"}},
	}}
	svc := newTestService(fake)
	svc.Confirm = func(ids []mailbox.MessageID) bool { return false }

	cfg := filter.Config{Filters: []filter.Rule{exactFromRule("spam@x.com")}}
	res, err := svc.Run(context.Background(), cfg, Spec{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(fake.deleted) != 0 || res.Deleted != 0 {
		t.Fatalf("declined confirmation must not delete, got %+v", res)
	}
}

func TestRunDeleteFailureDoesNotStopBatch(t *testing.T) {
	fake := &fakeClient{
		labels: map[string][]labeledMessage{
			"Inbox": {
				{id: "1", from: "spam@x.com"},
				{id: "2", from: "spam@x.com"},
			},
		},
		deleteErr: map[mailbox.MessageID]error{"1": fmt.Errorf("server said no")},
	}
	svc := newTestService(fake)

	cfg := filter.Config{Filters: []filter.Rule{exactFromRule("spam@x.com")}}
	res, err := svc.Run(context.Background(), cfg, Spec{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.FailedDeletes != 1 || res.Deleted != 1 {
		t.Fatalf("expected 1 failure and 1 success, got %+v", res)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "2" {
		t.Fatalf("message 2 should still be deleted, got %v", fake.deleted)
	}
}

func TestRunCollapsesDuplicatesAcrossFilters(t *testing.T) {
	fake := &fakeClient{labels: map[string][]labeledMessage{
		"Inbox": {{id: "1", from: "spam@x.com", subject: "spam@x.com deal"}},
	}}
	svc := newTestService(fake)

	bySubject := filter.Rule{
		Search: "spam@x.com", Fields: filter.FieldSet{Subject: true},
		Label: "Inbox", AllMatch: true,
	}
	cfg := filter.Config{Filters: []filter.Rule{exactFromRule("spam@x.com"), bySubject}}
	res, err := svc.Run(context.Background(), cfg, Spec{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Deleted != 1 || len(fake.deleted) != 1 {
		t.Fatalf("duplicate match must collapse to one delete, got %+v (deleted %v)", res, fake.deleted)
	}
}
