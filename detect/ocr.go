package detect

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// OCR extracts plain text from a raster image on disk.
type OCR interface {
	Text(ctx context.Context, imagePath string) (string, error)
}

// Tesseract runs the tesseract command-line engine.
type Tesseract struct {
	bin  string
	lang string
}

// NewTesseract resolves the tesseract executable. It fails when the binary
// cannot be found, which callers treat as "OCR unavailable".
func NewTesseract(bin, lang string) (*Tesseract, error) {
	if bin == "" {
		bin = "tesseract"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	return &Tesseract{bin: path, lang: lang}, nil
}

// Text returns the text recognised in the image.
func (t *Tesseract) Text(ctx context.Context, imagePath string) (string, error) {
	args := []string{imagePath, "stdout"}
	if t.lang != "" {
		args = append(args, "-l", t.lang)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("ocr: tesseract: %w", err)
		}
		return "", fmt.Errorf("ocr: tesseract: %w: %s", err, msg)
	}
	return stdout.String(), nil
}
