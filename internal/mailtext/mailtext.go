// Package mailtext parses the loosely structured text fields of an email:
// addresses, encoded-word subjects, and multipart bodies.
package mailtext

import (
	"mime"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// Conservative address grammar: restricted local part, alnum+hyphen domain
// segments, at least one dot after the @.
var emailRe = regexp.MustCompile(`^[A-Za-z0-9_.+-]+@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)+$`)

// ValidEmail reports whether s is a syntactically plausible address. Strings
// with multiple @ signs or a missing TLD segment are rejected.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// DecodeSubject decodes a subject that arrived in base64 MIME encoded-word
// form. The raw value is split on whitespace, each token is decoded, and the
// results are concatenated. Any decode failure returns the raw string
// unchanged.
func DecodeSubject(raw string) string {
	if !strings.Contains(strings.ToLower(raw), "?b?") || !strings.Contains(raw, "=?") {
		return raw
	}
	dec := new(mime.WordDecoder)
	var b strings.Builder
	for _, token := range strings.Fields(raw) {
		word, err := dec.Decode(token)
		if err != nil {
			return raw
		}
		b.WriteString(word)
	}
	return b.String()
}

// SplitDisplayName separates a From header into its address and display
// name. A bare valid address is returned as-is with no name. Otherwise the
// header is split on spaces: when the last token is an angle-bracketed valid
// address, it is the email and the remaining tokens form the name. Anything
// else yields two empty strings.
func SplitDisplayName(raw string) (email, name string) {
	raw = strings.TrimSpace(raw)
	if ValidEmail(raw) {
		return raw, ""
	}
	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return "", ""
	}
	last := tokens[len(tokens)-1]
	if !strings.HasPrefix(last, "<") || !strings.HasSuffix(last, ">") {
		return "", ""
	}
	addr := strings.TrimSuffix(strings.TrimPrefix(last, "<"), ">")
	if !ValidEmail(addr) {
		return "", ""
	}
	return addr, strings.Join(tokens[:len(tokens)-1], " ")
}

// ExtractPlainBody finds the first text/plain section of a multipart payload
// and returns its content with the Content-Type and
// Content-Transfer-Encoding header lines stripped. The second return value
// is false when no plaintext section exists.
func ExtractPlainBody(payload, boundary string) (string, bool) {
	if boundary == "" {
		return "", false
	}
	for _, segment := range strings.Split(payload, boundary) {
		segment = strings.Trim(segment, "-")
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		body, cs, ok := scanSegment(segment)
		if !ok {
			continue
		}
		return decodeCharset(body, cs), true
	}
	return "", false
}

// ExtractPlainBodyBytes is ExtractPlainBody for payloads delivered as raw
// bytes rather than pre-decoded text.
func ExtractPlainBodyBytes(payload []byte, boundary string) (string, bool) {
	return ExtractPlainBody(string(payload), boundary)
}

// scanSegment strips the per-part header lines and reports whether the
// segment declared a text/plain content type, along with any charset named
// in that declaration.
func scanSegment(segment string) (body, charset string, plain bool) {
	var kept []string
	for _, line := range strings.Split(segment, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(lower, "content-type:"):
			if strings.Contains(lower, "text/plain") {
				plain = true
				charset = charsetOf(line)
			}
		case strings.HasPrefix(lower, "content-transfer-encoding:"):
		default:
			kept = append(kept, strings.TrimRight(line, "\r"))
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), charset, plain
}

func charsetOf(line string) string {
	_, value, ok := strings.Cut(line, ":")
	if !ok {
		return ""
	}
	_, params, err := mime.ParseMediaType(strings.TrimSpace(value))
	if err != nil {
		return ""
	}
	return params["charset"]
}

// decodeCharset converts body text from the named charset to UTF-8, falling
// back to the input when the charset is unknown or the conversion fails.
func decodeCharset(body, charset string) string {
	if charset == "" || strings.EqualFold(charset, "utf-8") {
		return body
	}
	enc, err := ianaindex.IANA.Encoding(strings.ToLower(charset))
	if err != nil || enc == nil {
		return body
	}
	decoded, err := enc.NewDecoder().String(body)
	if err != nil {
		return body
	}
	return decoded
}
