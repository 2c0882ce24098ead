// Package runtime adapts an emersion/go-imap connection to the narrow
// mailbox.Client surface the rest of filtermail consumes.
package runtime

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"

	"github.com/filtermail/filtermail/internal/mailbox"
)

func init() {
	// Servers hand back non-UTF-8 literals for international mail.
	goimap.CharsetReader = charset.Reader
}

// gmailExtension marks servers exposing labels rather than true folders;
// deletion then goes through the trash label store.
const gmailExtension = "X-GM-EXT-1"

type imapClient struct {
	c      *client.Client
	labels map[string]string // memoized display name → server path
	gmail  bool
}

var _ mailbox.Client = (*imapClient)(nil)

// NewClient dials addr over TLS and logs in. A rejected login wraps
// mailbox.ErrAuth and closes the connection before returning.
//
// The returned client owns a single connection and must not be shared
// between goroutines; go-imap calls block until the server responds, so the
// context is only consulted between commands.
func NewClient(ctx context.Context, addr, user, pass string) (mailbox.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", addr, err)
	}
	c, err := client.DialTLS(addr, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	if err := c.Login(user, pass); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("login as %s: %w: %v", user, mailbox.ErrAuth, err)
	}
	caps, err := c.Capability()
	if err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("capability: %w", err)
	}
	return &imapClient{c: c, gmail: caps[gmailExtension]}, nil
}

func (ic *imapClient) SelectLabel(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, selectErr := ic.c.Select(name, false)
	if selectErr == nil {
		return nil
	}

	// The literal name was rejected; resolve it case-insensitively against
	// the label namespace and retry with the server-side path.
	labels, err := ic.Labels(ctx)
	if err == nil {
		if path, ok := resolveLabel(labels, name); ok {
			if _, err := ic.c.Select(path, false); err == nil {
				return nil
			}
		}
	}
	return &mailbox.LabelNotFoundError{Label: name, ServerMsg: selectErr.Error()}
}

func (ic *imapClient) Labels(ctx context.Context) (map[string]string, error) {
	if ic.labels != nil {
		return ic.labels, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos := make(chan *goimap.MailboxInfo, 32)
	done := make(chan error, 1)
	go func() {
		done <- ic.c.List("", "*", infos)
	}()

	out := make(map[string]string)
	for info := range infos {
		if isContainer(info) {
			continue
		}
		display := displayName(info.Name, info.Delimiter)
		if _, ok := out[display]; !ok {
			out[display] = info.Name
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	ic.labels = out
	return out, nil
}

func (ic *imapClient) Search(ctx context.Context, q mailbox.Query) ([]mailbox.MessageID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	criteria := goimap.NewSearchCriteria()
	for _, clause := range q.Clauses {
		switch clause.Field {
		case mailbox.FieldFrom:
			criteria.Header.Add("From", clause.Term)
		case mailbox.FieldCC:
			criteria.Header.Add("Cc", clause.Term)
		case mailbox.FieldBCC:
			criteria.Header.Add("Bcc", clause.Term)
		case mailbox.FieldSubject:
			criteria.Header.Add("Subject", clause.Term)
		case mailbox.FieldBody:
			criteria.Body = append(criteria.Body, clause.Term)
		}
	}
	uids, err := ic.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	ids := make([]mailbox.MessageID, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, mailbox.MessageID(strconv.FormatUint(uint64(uid), 10)))
	}
	return ids, nil
}

func (ic *imapClient) FetchRecords(ctx context.Context, ids []mailbox.MessageID) ([]mailbox.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	seqset := new(goimap.SeqSet)
	for _, id := range ids {
		uid, err := strconv.ParseUint(string(id), 10, 32)
		if err != nil {
			continue
		}
		seqset.AddNum(uint32(uid))
	}

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{goimap.FetchUid, section.FetchItem()}
	messages := make(chan *goimap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- ic.c.UidFetch(seqset, items, messages)
	}()

	var out []mailbox.MessageRecord
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		id := mailbox.MessageID(strconv.FormatUint(uint64(msg.Uid), 10))
		rec, ok := parseRecord(id, body)
		if !ok {
			// One unparsable message never aborts the fetch.
			continue
		}
		out = append(out, rec)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("uid fetch: %w", err)
	}
	return out, nil
}

func (ic *imapClient) Delete(ctx context.Context, id mailbox.MessageID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	uid, err := strconv.ParseUint(string(id), 10, 32)
	if err != nil {
		return fmt.Errorf("bad message id %q: %w", id, err)
	}
	seqset := new(goimap.SeqSet)
	seqset.AddNum(uint32(uid))

	if ic.gmail {
		// Gmail moves a message to the bin via its label store.
		item := goimap.StoreItem("+X-GM-LABELS")
		if err := ic.c.UidStore(seqset, item, []interface{}{"\\Trash"}, nil); err != nil {
			return fmt.Errorf("move to trash: %w", err)
		}
	} else {
		item := goimap.FormatFlagsOp(goimap.AddFlags, true)
		flags := []interface{}{goimap.DeletedFlag}
		if err := ic.c.UidStore(seqset, item, flags, nil); err != nil {
			return fmt.Errorf("flag deleted: %w", err)
		}
	}
	if err := ic.c.Expunge(nil); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}
	return nil
}

func (ic *imapClient) Logout() error {
	return ic.c.Logout()
}

// isContainer reports whether the entry is a non-selectable container such
// as the provider's root pseudo-label.
func isContainer(info *goimap.MailboxInfo) bool {
	for _, attr := range info.Attributes {
		if strings.EqualFold(attr, goimap.NoSelectAttr) {
			return true
		}
	}
	return false
}

// displayName maps a full server path to the human label name: the last
// path segment.
func displayName(path, delimiter string) string {
	if delimiter == "" {
		return path
	}
	segments := strings.Split(path, delimiter)
	return segments[len(segments)-1]
}

// resolveLabel looks a name up case-insensitively against both display
// names and full server paths.
func resolveLabel(labels map[string]string, name string) (string, bool) {
	for display, path := range labels {
		if strings.EqualFold(display, name) || strings.EqualFold(path, name) {
			return path, true
		}
	}
	return "", false
}
