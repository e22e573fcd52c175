package models

// DetectResponse is the response for POST /api/v1/detect.
type DetectResponse struct {
	Success bool      `json:"success"`
	Verdict *Verdict  `json:"verdict,omitempty"`
	Page    *PageInfo `json:"page,omitempty"`

	// CacheStatus is "hit" or "miss" when the verdict cache is enabled.
	CacheStatus string `json:"cache_status,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`
}

// BatchDetectResponse is the response for POST /api/v1/detect/batch.
// Results are in request order.
type BatchDetectResponse struct {
	Success bool              `json:"success"`
	Results []*DetectResponse `json:"results"`
	Blocked int               `json:"blocked"`
}

// CaptureResponse is the response for POST /api/v1/capture.
//
// Synchronous requests carry the report; asynchronous ones (webhook_url set)
// carry the job ID to poll.
type CaptureResponse struct {
	Success bool            `json:"success"`
	JobID   string          `json:"job_id,omitempty"`
	Status  string          `json:"status,omitempty"`
	Report  *ResearchReport `json:"report,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string    `json:"status"` // "healthy" or "degraded"
	Uptime       string    `json:"uptime"`
	PoolStats    PoolStats `json:"pool_stats"`
	OCRAvailable bool      `json:"ocr_available"`
	Version      string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}

// ErrorResponse is the body of a request rejected before reaching a handler
// (auth, rate limiting) or failing as a whole.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
