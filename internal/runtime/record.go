package runtime

import (
	"io"
	"mime"
	"net/mail"
	"strings"

	"github.com/filtermail/filtermail/internal/mailbox"
	"github.com/filtermail/filtermail/internal/mailtext"
)

// parseRecord builds a MessageRecord from one raw RFC 822 message. The
// second return value is false when the message cannot be parsed; callers
// skip such messages.
func parseRecord(id mailbox.MessageID, r io.Reader) (mailbox.MessageRecord, bool) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return mailbox.MessageRecord{}, false
	}

	rawFrom := msg.Header.Get("From")
	email, name := mailtext.SplitDisplayName(rawFrom)
	rec := mailbox.MessageRecord{
		ID:      id,
		From:    mailbox.Address{Raw: rawFrom, Email: email, Name: name},
		To:      msg.Header.Get("To"),
		CC:      msg.Header.Get("Cc"),
		BCC:     msg.Header.Get("Bcc"),
		Date:    msg.Header.Get("Date"),
		Subject: mailtext.DecodeSubject(msg.Header.Get("Subject")),
	}

	payload, err := io.ReadAll(msg.Body)
	if err != nil {
		return rec, true // headers alone still make a usable record
	}
	rec.Body, rec.HasBody = extractBody(msg.Header.Get("Content-Type"), payload)
	return rec, true
}

// extractBody finds the plaintext content of a message body. Multipart
// messages are scanned for their first text/plain part; single-part
// messages count as plaintext unless they declare another content type.
func extractBody(contentType string, payload []byte) (string, bool) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || contentType == "" {
		return strings.TrimSpace(string(payload)), true
	}
	if strings.HasPrefix(mediaType, "multipart/") {
		return mailtext.ExtractPlainBodyBytes(payload, params["boundary"])
	}
	if mediaType == "text/plain" {
		return strings.TrimSpace(string(payload)), true
	}
	return "", false
}
