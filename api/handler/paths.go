package handler

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/use-agent/stealthshot/models"
)

// confine resolves p inside root and rejects anything that leaves it,
// including through symlinks. Relative paths are taken relative to root.
// An empty p stays empty.
func confine(root, p string) (string, error) {
	if p == "" {
		return "", nil
	}
	base, err := filepath.Abs(root)
	if err != nil {
		return "", models.NewCaptureError(models.ErrCodeInternal, "resolve artifact root", err)
	}
	base = resolveExisting(base)

	target := p
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	target = resolveExisting(filepath.Clean(target))

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", models.NewCaptureError(models.ErrCodeInvalidInput, "path is outside the artifact directory: "+p, nil)
	}
	return target, nil
}

// resolveExisting follows symlinks in the longest existing prefix of path
// and appends the part that does not exist yet.
func resolveExisting(path string) string {
	rest := ""
	for cur := path; ; {
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(real, rest)
		} else if !os.IsNotExist(err) {
			return path
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

// confineDetect rewrites the request's server paths to their resolved form.
func confineDetect(root string, req *models.DetectRequest) error {
	shot, err := confine(root, req.ScreenshotPath)
	if err != nil {
		return err
	}
	html, err := confine(root, req.HTMLPath)
	if err != nil {
		return err
	}
	req.ScreenshotPath, req.HTMLPath = shot, html
	return nil
}
