package report

import (
	"chat-bot/internal/logger"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Writer stores report files in the downloads directory
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write saves content to a new file named after prefix and returns its path.
// The caller removes the file once it has been sent.
func (w *Writer) Write(prefix, content string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create downloads dir: %w", err)
	}

	name := unsafeChars.ReplaceAllString(prefix, "_")
	if len(name) > 60 {
		name = name[:60]
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s_%s.txt", name, uuid.NewString()))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Remove deletes a sent report, logging instead of failing
func (w *Writer) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Log.WithError(err).WithField("path", path).Warn("Failed to remove report file")
	}
}
