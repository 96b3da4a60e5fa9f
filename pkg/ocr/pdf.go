package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	log "github.com/sirupsen/logrus"
)

// extractPDF prefers the PDF's embedded text and falls back to rasterizing
// and recognizing every page for scanned documents.
func (s *Service) extractPDF(ctx context.Context, path string) (string, error) {
	text, err := readPDFText(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("embedded pdf text unreadable, falling back to ocr")
	}
	if strings.TrimSpace(text) != "" {
		return text, nil
	}
	return s.pdfToOCR(ctx, path)
}

// readPDFText concatenates the text rows of every page.
func readPDFText(path string) (text string, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", err
		}
		for _, row := range rows {
			for _, word := range row.Content {
				b.WriteString(word.S + " ")
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func (s *Service) pdfToOCR(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "invoice-pages-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			log.WithError(err).WithField("dir", tmpDir).Warn("failed to remove temp dir")
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, stderr, err := s.runner.Run(ctx, s.cfg.Pdftoppm, "-r", strconv.Itoa(s.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", fmt.Errorf("rasterizing pdf: %w: %s", err, strings.TrimSpace(string(stderr)))
	}

	// collect generated pngs (page-1.png, page-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if s.cfg.MaxPages > 0 && len(matches) > s.cfg.MaxPages {
		matches = matches[:s.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("rasterizing pdf: no pages rendered")
	}

	var b strings.Builder
	for _, img := range matches {
		txt, err := s.extractImage(ctx, img)
		if err != nil {
			log.WithError(err).WithField("page", filepath.Base(img)).Warn("page ocr failed")
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
	}
	return b.String(), nil
}
