package register

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/regsift/fsregister/pkg/pipeline/redact"
)

// HTTPError is a sanitized summary of a non-2xx register response.
//
// Important: raw response bodies are not retained verbatim; they can carry
// account details.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string

	// FSRStatus and FSRMessage carry the register's envelope fields when the
	// error body still parsed as an envelope.
	FSRStatus  string
	FSRMessage string

	// Snippet is a redacted, truncated hint for non-envelope bodies.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "register http error"
	}
	parts := []string{
		fmt.Sprintf("register api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.FSRStatus) != "" {
		parts = append(parts, "fsrStatus="+strings.TrimSpace(e.FSRStatus))
	}
	if strings.TrimSpace(e.FSRMessage) != "" {
		parts = append(parts, fmt.Sprintf("fsrMessage=%q", strings.TrimSpace(e.FSRMessage)))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

func newHTTPError(op string, resp *http.Response, body []byte) error {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}

	// Best effort: the register reports some failures inside its usual envelope.
	var env Envelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		h.FSRStatus = strings.TrimSpace(env.Status)
		h.FSRMessage = strings.TrimSpace(env.Message)
		if h.FSRStatus != "" || h.FSRMessage != "" {
			return h
		}
	}

	h.Snippet = redactAndTruncate(body)
	return h
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain sensitive data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
