package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// maxNameAttempts bounds how far writeArtifacts bumps the timestamp when a
// name is already taken by a concurrent capture.
const maxNameAttempts = 1000

// writeArtifacts stores png and html as stealth-<epoch_ms>.png and
// stealth-<epoch_ms>.html in dir, creating dir (0755) if needed. Both files
// share the same stem. When the stem is taken the millisecond value is
// bumped until a free one is found.
func writeArtifacts(dir string, now time.Time, png []byte, html string) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}

	ms := now.UnixMilli()
	for range maxNameAttempts {
		stem := filepath.Join(dir, fmt.Sprintf("stealth-%d", ms))
		shotPath, htmlPath := stem+".png", stem+".html"

		f, err := os.OpenFile(shotPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			ms++
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("create screenshot: %w", err)
		}
		if _, err := f.Write(png); err != nil {
			f.Close()
			return "", "", fmt.Errorf("write screenshot: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", "", fmt.Errorf("close screenshot: %w", err)
		}

		if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
			return "", "", fmt.Errorf("write html: %w", err)
		}
		return shotPath, htmlPath, nil
	}
	return "", "", fmt.Errorf("no free artifact name near stealth-%d", now.UnixMilli())
}
