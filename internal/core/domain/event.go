package domain

// Event is one entry of a batch's ordered output stream.
type Event struct {
	Type     EventType             `json:"type"`
	BatchID  string                `json:"batch_id"`
	Result   *ClassificationResult `json:"result,omitempty"`
	Progress *BatchProgress        `json:"progress,omitempty"`
	Percent  int                   `json:"percent"`
}

type EventType string

const (
	EventTypeResultReady EventType = "result_ready"
	EventTypeProgress    EventType = "progress"
)
