package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/stealthshot/models"
	"github.com/use-agent/stealthshot/webhook"
)

// Researcher runs captures and probes. *research.Runner satisfies it.
type Researcher interface {
	Run(ctx context.Context, req *models.ResearchRequest) (*models.ResearchReport, error)
	Probe(ctx context.Context, rawURL string, headers map[string]string) *models.ProbeReport
}

// captureStore holds asynchronous capture jobs. Values are immutable
// *models.CaptureJob snapshots; a job is updated by storing a new one.
var captureStore sync.Map

// jobTimeout bounds an asynchronous research run.
const jobTimeout = 15 * time.Minute

func init() {
	// Background goroutine to expire capture jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			expireJobs(time.Now().Add(-1 * time.Hour).Unix())
		}
	}()
}

func expireJobs(cutoff int64) {
	captureStore.Range(func(key, value any) bool {
		if value.(*models.CaptureJob).CreatedAt < cutoff {
			captureStore.Delete(key)
		}
		return true
	})
}

// PostCapture returns a handler for POST /api/v1/capture.
//
// Without webhook_url the research runs inside the request and the report is
// returned. With it, a job ID is returned immediately and the report is
// delivered as a capture.completed (or capture.failed) event. An
// output_dir must lie under root.
func PostCapture(rn Researcher, root string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ResearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		dir, err := confine(root, req.OutputDir)
		if err != nil {
			respondError(c, err)
			return
		}
		req.OutputDir = dir

		if req.WebhookURL == "" {
			report, err := rn.Run(c.Request.Context(), &req)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, models.CaptureResponse{
				Success: true,
				Status:  models.JobCompleted,
				Report:  report,
			})
			return
		}

		job := &models.CaptureJob{
			ID:        "capture-" + randomID(),
			Status:    models.JobProcessing,
			URL:       req.URL,
			CreatedAt: time.Now().Unix(),
		}
		captureStore.Store(job.ID, job)

		go runCaptureJob(rn, *job, req)

		c.JSON(http.StatusAccepted, models.CaptureResponse{
			Success: true,
			JobID:   job.ID,
			Status:  job.Status,
		})
	}
}

// GetCapture returns a handler for GET /api/v1/capture/:id.
func GetCapture() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := captureStore.Load(c.Param("id"))
		if !ok {
			respondError(c, models.NewCaptureError(models.ErrCodeNotFound, "capture job not found", nil))
			return
		}
		c.JSON(http.StatusOK, val.(*models.CaptureJob))
	}
}

// runCaptureJob runs the research detached from the HTTP request and
// publishes the outcome to the job store and the webhook.
func runCaptureJob(rn Researcher, job models.CaptureJob, req models.ResearchRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report, err := rn.Run(ctx, &req)

	var event *webhook.Event
	if err != nil {
		job.Status = models.JobFailed
		event = webhook.NewEvent(webhook.EventCaptureFailed, job.ID, toCaptureError(err).ToDetail())
	} else {
		job.Status = models.JobCompleted
		job.Report = report
		event = webhook.NewEvent(webhook.EventCaptureCompleted, job.ID, report)
	}
	captureStore.Store(job.ID, &job)

	slog.Info("capture job finished", "id", job.ID, "status", job.Status, "url", job.URL)
	webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, event)
}
