package mailbox

import "context"

// Client is the narrow IMAP surface required by filtermail. Implementations
// own a single authenticated connection and are not safe for concurrent use:
// all calls on one client must be serialized.
type Client interface {
	// SelectLabel selects the named label, retrying with a case-insensitive
	// lookup against Labels when the literal name is rejected. Returns a
	// *LabelNotFoundError when the label cannot be resolved at all.
	SelectLabel(ctx context.Context, name string) error

	// Labels maps display names to full server-side label paths. Built
	// lazily, memoized for the session; container pseudo-labels are omitted.
	Labels(ctx context.Context) (map[string]string, error)

	// Search runs one SEARCH against the selected label and returns the
	// matching UIDs.
	Search(ctx context.Context, q Query) ([]MessageID, error)

	// FetchRecords fetches headers and body for the given UIDs. Messages
	// whose content cannot be parsed are skipped, never fatal.
	FetchRecords(ctx context.Context, ids []MessageID) ([]MessageRecord, error)

	// Delete moves one message to the trash state and expunges it.
	Delete(ctx context.Context, id MessageID) error

	// Logout closes the session. Safe to call after a failed operation.
	Logout() error
}
