// Package ocr turns invoice files (PDFs and scanned images) into plain text.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrUnsupportedFormat is returned for file types the service cannot read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

type Config struct {
	Language string // tesseract language, default "eng"
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI for scanned PDFs, default 300
	MaxPages int    // 0 = no limit

	// Scans shorter than MinHeight pixels are upscaled before recognition.
	MinHeight int
}

// Service extracts text from invoice files.
type Service struct {
	cfg        Config
	runner     Runner
	recognizer Recognizer
}

// NewService returns a Service backed by Tesseract and pdftoppm
func NewService(cfg Config) *Service {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinHeight <= 0 {
		cfg.MinHeight = 800
	}
	return &Service{cfg: cfg, runner: execRunner{}, recognizer: tesseract{}}
}

// ExtractText returns the normalized text of the file at path. A file without
// readable text yields "" and no error.
func (s *Service) ExtractText(ctx context.Context, path string) (string, error) {
	start := time.Now()
	ext := strings.ToLower(filepath.Ext(path))
	logger := log.WithFields(log.Fields{"path": path, "ext": ext})
	logger.Debug("starting ocr extraction")

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = s.extractPDF(ctx, path)
	case ".png", ".jpg", ".jpeg":
		text, err = s.extractImage(ctx, path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		logger.WithError(err).Error("ocr extraction failed")
		return "", err
	}

	text = Normalize(text)
	logger.WithFields(log.Fields{
		"chars":       len(text),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("ocr extraction finished")
	return text, nil
}

var (
	reTrailingSpace = regexp.MustCompile(`[ \t\r\f\v]+\n`)
	reInlineSpace   = regexp.MustCompile(`[ \t\r\f\v]+`)
	reBlankLines    = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses horizontal whitespace, drops trailing spaces and keeps
// at most one blank line between blocks. Line breaks are preserved because
// the rule-based parser works line by line.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = reTrailingSpace.ReplaceAllString(text, "\n")
	text = reInlineSpace.ReplaceAllString(text, " ")
	text = reBlankLines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
