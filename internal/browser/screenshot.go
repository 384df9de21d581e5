package browser

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MaxScreenshotBytes is the maximum screenshot size before JPEG compression (2MB).
const MaxScreenshotBytes = 2 * 1024 * 1024

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Recorder writes diagnostic screenshots to a directory. A nil Recorder or
// one with an empty Dir discards captures.
type Recorder struct {
	Dir    string
	Logger zerolog.Logger

	now func() time.Time
}

// NewRecorder creates a Recorder writing into dir.
func NewRecorder(dir string, logger zerolog.Logger) *Recorder {
	return &Recorder{Dir: dir, Logger: logger, now: time.Now}
}

// Capture takes a screenshot from d and stores it under a name derived from
// label. It returns the written path, or "" when recording is disabled.
func (r *Recorder) Capture(ctx context.Context, d Driver, label string) (string, error) {
	if r == nil || r.Dir == "" {
		return "", nil
	}

	pngBytes, err := d.Screenshot(ctx)
	if err != nil {
		return "", err
	}

	data, ext, err := encodeScreenshot(pngBytes)
	if err != nil {
		return "", fmt.Errorf("failed to encode screenshot: %w", err)
	}

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	now := time.Now
	if r.now != nil {
		now = r.now
	}
	name := fmt.Sprintf("%s-%s.%s", sanitizeLabel(label), now().UTC().Format("20060102T150405.000"), ext)
	path := filepath.Join(r.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	r.Logger.Info().Str("path", path).Int("bytes", len(data)).Msg("screenshot saved")
	return path, nil
}

// encodeScreenshot returns the bytes to store and their file extension.
// If the PNG exceeds MaxScreenshotBytes, it is compressed to JPEG at 80% quality.
func encodeScreenshot(pngBytes []byte) ([]byte, string, error) {
	if len(pngBytes) <= MaxScreenshotBytes {
		return pngBytes, "png", nil
	}

	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode PNG for compression: %w", err)
	}

	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, "", fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return jpegBuf.Bytes(), "jpg", nil
}

func sanitizeLabel(label string) string {
	s := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(label), "-"), "-")
	if s == "" {
		return "screenshot"
	}
	return s
}
