package mailbox

import (
	"errors"
	"fmt"
)

// ErrAuth marks a rejected login. No search or delete may be attempted after
// it is returned.
var ErrAuth = errors.New("authentication rejected")

// LabelNotFoundError reports a label that does not exist even after
// case-insensitive resolution against the label namespace.
type LabelNotFoundError struct {
	Label     string
	ServerMsg string
}

func (e *LabelNotFoundError) Error() string {
	if e.ServerMsg == "" {
		return fmt.Sprintf("label %q not found", e.Label)
	}
	return fmt.Sprintf("label %q not found: %s", e.Label, e.ServerMsg)
}
