package detect

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/use-agent/stealthshot/config"
)

// basePNG is a tiny valid PNG that pngOfSize pads.
var basePNG = func() []byte {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 4)
	}
	img.SetGray(0, 0, color.Gray{Y: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

// minPNGSize is the smallest size pngOfSize can produce.
var minPNGSize = len(basePNG) + 12 + len("Comment\x00")

// pngOfSize returns a decodable PNG of exactly size bytes. The padding is a
// tEXt chunk inserted before IEND.
func pngOfSize(size int) ([]byte, error) {
	if size < minPNGSize {
		return nil, fmt.Errorf("size %d below minimum %d", size, minPNGSize)
	}
	data := append([]byte("Comment\x00"), bytes.Repeat([]byte{'a'}, size-minPNGSize)...)

	chunk := make([]byte, 0, 12+len(data))
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(data)))
	chunk = append(chunk, "tEXt"...)
	chunk = append(chunk, data...)
	crc := crc32.NewIEEE()
	crc.Write(chunk[4:])
	chunk = binary.BigEndian.AppendUint32(chunk, crc.Sum32())

	iend := len(basePNG) - 12
	out := make([]byte, 0, size)
	out = append(out, basePNG[:iend]...)
	out = append(out, chunk...)
	out = append(out, basePNG[iend:]...)
	return out, nil
}

// writePNG writes a valid PNG of exactly size bytes and returns its path.
func writePNG(t *testing.T, size int) string {
	t.Helper()
	data, err := pngOfSize(size)
	if err != nil {
		t.Fatal(err)
	}
	return writeFile(t, "shot.png", data)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// benignHTML returns an n-character document with no block vocabulary.
func benignHTML(n int) string {
	const head, tail = "<html><body><p>", "</p></body></html>"
	filler := strings.Repeat("lorem ipsum dolor sit amet ", n/27+1)
	return head + filler[:n-len(head)-len(tail)] + tail
}

// htmlWith returns an n-character document embedding phrase.
func htmlWith(n int, phrase string) string {
	const head, tail = "<html><body><h1>", "</h1><p>"
	const end = "</p></body></html>"
	prefix := head + phrase + tail
	filler := strings.Repeat("lorem ipsum dolor sit amet ", n/27+1)
	return prefix + filler[:n-len(prefix)-len(end)] + end
}

func configForTest() config.DetectConfig {
	return config.Default().Detect
}

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Text(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestPNGOfSize(t *testing.T) {
	for _, size := range []int{minPNGSize, 10_000, 200_000} {
		data, err := pngOfSize(size)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) != size {
			t.Fatalf("pngOfSize(%d) produced %d bytes", size, len(data))
		}
		if _, err := png.Decode(bytes.NewReader(data)); err != nil {
			t.Fatalf("pngOfSize(%d) not decodable: %v", size, err)
		}
	}
}
