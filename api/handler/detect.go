package handler

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/stealthshot/cache"
	"github.com/use-agent/stealthshot/models"
	"github.com/use-agent/stealthshot/pageinfo"
	"golang.org/x/sync/errgroup"
)

// Evaluator judges captured artifacts. *detect.Detector satisfies it.
type Evaluator interface {
	EvaluateContext(ctx context.Context, screenshotPath, html string) *models.Verdict
	OCRAvailable() bool
}

// maxHTMLUpload caps an uploaded HTML document.
const maxHTMLUpload = 20 << 20

// Detect returns a handler for POST /api/v1/detect.
//
// Accepts either a JSON DetectRequest naming files under root, or a
// multipart form with a "screenshot" file and an "html" file or field.
func Detect(det Evaluator, cc *cache.Cache, root string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DetectRequest

		if strings.HasPrefix(c.ContentType(), "multipart/") {
			cleanup, err := bindMultipart(c, &req)
			defer cleanup()
			if err != nil {
				badRequest(c, err.Error())
				return
			}
		} else {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
			if err := confineDetect(root, &req); err != nil {
				respondError(c, err)
				return
			}
		}

		resp, err := evaluateOne(c.Request.Context(), det, cc, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// DetectBatch returns a handler for POST /api/v1/detect/batch. Items are
// evaluated concurrently, at most workers at a time; results keep request
// order. A bad item fails on its own without failing the batch.
func DetectBatch(det Evaluator, cc *cache.Cache, workers int, root string) gin.HandlerFunc {
	if workers <= 0 {
		workers = 1
	}
	return func(c *gin.Context) {
		var req models.BatchDetectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		results := make([]*models.DetectResponse, len(req.Items))
		g, ctx := errgroup.WithContext(c.Request.Context())
		g.SetLimit(workers)
		for i := range req.Items {
			g.Go(func() error {
				item := &req.Items[i]
				var resp *models.DetectResponse
				err := confineDetect(root, item)
				if err == nil {
					resp, err = evaluateOne(ctx, det, cc, item)
				}
				if err != nil {
					resp = &models.DetectResponse{Error: toCaptureError(err).ToDetail()}
				}
				results[i] = resp
				return nil
			})
		}
		_ = g.Wait()

		blocked := 0
		for _, r := range results {
			if r.Verdict != nil && r.Verdict.Blocked() {
				blocked++
			}
		}

		c.JSON(http.StatusOK, models.BatchDetectResponse{
			Success: true,
			Results: results,
			Blocked: blocked,
		})
	}
}

// evaluateOne resolves the request's HTML, consults the cache and runs the
// detector. Only an unreadable html_path is an error; a missing screenshot
// just skips the screenshot checks.
func evaluateOne(ctx context.Context, det Evaluator, cc *cache.Cache, req *models.DetectRequest) (*models.DetectResponse, error) {
	html := req.HTML
	if html == "" && req.HTMLPath != "" {
		data, err := os.ReadFile(req.HTMLPath)
		if err != nil {
			return nil, models.NewCaptureError(models.ErrCodeInvalidInput, "cannot read html_path: "+err.Error(), err)
		}
		html = string(data)
	}

	resp := &models.DetectResponse{Success: true}

	var key string
	if cc != nil {
		key = cache.Key(req.ScreenshotPath, html)
		if v, hit := cc.Get(key); hit {
			resp.Verdict = v
			resp.CacheStatus = "hit"
		}
	}
	if resp.Verdict == nil {
		resp.Verdict = det.EvaluateContext(ctx, req.ScreenshotPath, html)
		if cc != nil {
			cc.Set(key, resp.Verdict)
			resp.CacheStatus = "miss"
		}
	}
	if html != "" {
		resp.Page = pageinfo.Inspect(html)
	}
	return resp, nil
}

// bindMultipart saves an uploaded screenshot to a temp file and fills req.
// The returned cleanup removes the temp file and is always non-nil.
func bindMultipart(c *gin.Context, req *models.DetectRequest) (func(), error) {
	cleanup := func() {}

	if fh, err := c.FormFile("screenshot"); err == nil {
		path, err := saveUpload(c, fh)
		if err != nil {
			return cleanup, err
		}
		cleanup = func() {
			if err := os.Remove(path); err != nil {
				slog.Warn("failed to remove uploaded screenshot", "path", path, "error", err)
			}
		}
		req.ScreenshotPath = path
	}

	if fh, err := c.FormFile("html"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return cleanup, err
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxHTMLUpload))
		if err != nil {
			return cleanup, err
		}
		req.HTML = string(data)
	} else {
		req.HTML = c.PostForm("html")
	}
	return cleanup, nil
}

func saveUpload(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	tmp, err := os.CreateTemp("", "stealthshot-upload-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	tmp.Close()

	if err := c.SaveUploadedFile(fh, path); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
