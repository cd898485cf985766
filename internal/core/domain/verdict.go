package domain

import "strings"

// Safety is the verdict returned by the classification service.
// Values other than the constants below are passed through untouched.
type Safety string

const (
	SafetySafe    Safety = "SAFE"
	SafetyHarmful Safety = "HARMFUL"
	SafetyUnknown Safety = "UNKNOWN"
)

// Known reports whether s is SAFE or HARMFUL, ignoring case.
func (s Safety) Known() bool {
	switch Safety(strings.ToUpper(string(s))) {
	case SafetySafe, SafetyHarmful:
		return true
	}
	return false
}

// RCA texts used when an item could not be classified.
const (
	RCAMaxRetries   = "Max retries exceeded"
	RCAFetchError   = "Error fetching data"
	RCAParseFailure = "Could not parse response"
)

// Verdict is the (safety, rca) pair for a single item.
type Verdict struct {
	Safety Safety `json:"safety"`
	RCA    string `json:"rca"`
}

// UnknownVerdict builds an UNKNOWN verdict carrying reason as its RCA.
func UnknownVerdict(reason string) Verdict {
	return Verdict{Safety: SafetyUnknown, RCA: reason}
}

// ClassificationRequest carries what the request client needs for one item.
type ClassificationRequest struct {
	ItemName   string
	Credential string
}

// ClassificationResult is produced exactly once per item of a batch.
type ClassificationResult struct {
	ItemIndex int    `json:"item_index"`
	Name      string `json:"name"`
	Safety    Safety `json:"safety"`
	RCA       string `json:"rca"`
}

// BatchProgress tracks how many results of a batch have been emitted.
type BatchProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent returns floor(100 * completed / total). An empty batch is complete.
func (p BatchProgress) Percent() int {
	if p.Total <= 0 {
		return 100
	}
	return 100 * p.Completed / p.Total
}

// Done reports whether every item has emitted its result.
func (p BatchProgress) Done() bool {
	return p.Completed >= p.Total
}
