package worker

// CheckSubmitPayload is one queued duplicate check.
type CheckSubmitPayload struct {
	Content       string `json:"content"`
	Summary       string `json:"summary,omitempty"`
	CorrelationID string `json:"correlation_id"`
}
