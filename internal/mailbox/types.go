package mailbox

// MessageID is a message UID scoped to the currently selected label. It is
// only stable within one session/label selection and must not be persisted.
type MessageID string

// Field identifies a searchable message field.
type Field int

const (
	FieldFrom Field = iota
	FieldCC
	FieldBCC
	FieldSubject
	FieldBody
)

// String returns the IMAP search key for the field.
func (f Field) String() string {
	switch f {
	case FieldFrom:
		return "FROM"
	case FieldCC:
		return "CC"
	case FieldBCC:
		return "BCC"
	case FieldSubject:
		return "SUBJECT"
	case FieldBody:
		return "BODY"
	default:
		return "UNKNOWN"
	}
}

// Clause is a single server-side search predicate: substring containment of
// Term in Field.
type Clause struct {
	Field Field
	Term  string
}

// Query is a conjunction of clauses, executed as one SEARCH round trip.
type Query struct {
	Clauses []Clause
}

// Address is a parsed From header.
type Address struct {
	Raw   string // the header value as received
	Email string // bare address, empty when it could not be extracted
	Name  string // display name, empty when absent or unknown
}

// MessageRecord is the parsed representation of a message used for
// exact-match verification. Records are transient: label selection
// invalidates their IDs.
type MessageRecord struct {
	ID      MessageID
	From    Address
	To      string
	CC      string
	BCC     string
	Date    string
	Subject string // decoded from MIME encoded-word form
	Body    string // first text/plain part, header lines stripped
	HasBody bool
}
