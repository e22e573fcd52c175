package models

// Capture job states.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// CaptureJob tracks an asynchronous research run.
type CaptureJob struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	URL       string          `json:"url"`
	Report    *ResearchReport `json:"report,omitempty"`
	CreatedAt int64           `json:"created_at"` // unix timestamp
}
