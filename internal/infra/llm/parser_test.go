package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vietddude/softscan/internal/core/domain"
)

func TestParseVerdict(t *testing.T) {
	parseFailure := domain.UnknownVerdict(domain.RCAParseFailure)

	tests := []struct {
		name string
		body string
		want domain.Verdict
	}{
		{
			name: "safe",
			body: `{"choices":[{"message":{"content":"{\"safety\":\"SAFE\",\"rca\":\"\"}"}}]}`,
			want: domain.Verdict{Safety: domain.SafetySafe},
		},
		{
			name: "harmful with rca",
			body: `{"choices":[{"message":{"content":"{\"safety\":\"HARMFUL\",\"rca\":\"known backdoor\"}"}}]}`,
			want: domain.Verdict{Safety: domain.SafetyHarmful, RCA: "known backdoor"},
		},
		{
			name: "unexpected safety passes through",
			body: `{"choices":[{"message":{"content":"{\"safety\":\"SUSPICIOUS\",\"rca\":\"maybe\"}"}}]}`,
			want: domain.Verdict{Safety: "SUSPICIOUS", RCA: "maybe"},
		},
		{
			name: "fenced inner json",
			body: `{"choices":[{"message":{"content":"` + "```json\\n{\\\"safety\\\":\\\"SAFE\\\",\\\"rca\\\":\\\"ok\\\"}\\n```" + `"}}]}`,
			want: domain.Verdict{Safety: domain.SafetySafe, RCA: "ok"},
		},
		{
			name: "missing rca defaults to empty",
			body: `{"choices":[{"message":{"content":"{\"safety\":\"SAFE\"}"}}]}`,
			want: domain.Verdict{Safety: domain.SafetySafe},
		},
		{
			name: "structured rca is kept as json",
			body: `{"choices":[{"message":{"content":"{\"safety\":\"HARMFUL\",\"rca\":{\"cve\":\"CVE-2024-3094\"}}"}}]}`,
			want: domain.Verdict{Safety: domain.SafetyHarmful, RCA: `{"cve":"CVE-2024-3094"}`},
		},
		{name: "outer not json", body: `<html>gateway</html>`, want: parseFailure},
		{name: "no choices", body: `{"choices":[]}`, want: parseFailure},
		{name: "no content", body: `{"choices":[{"message":{}}]}`, want: parseFailure},
		{name: "content not json", body: `{"choices":[{"message":{"content":"It is safe."}}]}`, want: parseFailure},
		{name: "inner not an object", body: `{"choices":[{"message":{"content":"[1,2]"}}]}`, want: parseFailure},
		{name: "inner without safety", body: `{"choices":[{"message":{"content":"{\"rca\":\"x\"}"}}]}`, want: parseFailure},
		{name: "empty body", body: ``, want: parseFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVerdict([]byte(tt.body)))
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"```json{\"a\":1}```":     `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}
	for in, want := range tests {
		assert.Equal(t, want, stripCodeFence(in), "input %q", in)
	}
}
