package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/vietddude/softscan/internal/core/domain"
)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type verdictPayload struct {
	Safety *string          `json:"safety"`
	RCA    *json.RawMessage `json:"rca"`
}

// ParseVerdict extracts the classification from a chat-completion body.
// It never fails: anything it cannot read becomes
// (UNKNOWN, "Could not parse response").
func ParseVerdict(body []byte) domain.Verdict {
	fail := domain.UnknownVerdict(domain.RCAParseFailure)

	var envelope chatResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fail
	}
	if len(envelope.Choices) == 0 || envelope.Choices[0].Message.Content == nil {
		return fail
	}

	content := stripCodeFence(*envelope.Choices[0].Message.Content)

	var payload verdictPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return fail
	}
	if payload.Safety == nil {
		return fail
	}

	return domain.Verdict{
		Safety: domain.Safety(*payload.Safety),
		RCA:    rcaText(payload.RCA),
	}
}

// rcaText returns the rca field as plain text. Non-string values are kept in
// their compact JSON form.
func rcaText(raw *json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(*raw, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(*raw), []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, *raw); err != nil {
		return string(*raw)
	}
	return buf.String()
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
