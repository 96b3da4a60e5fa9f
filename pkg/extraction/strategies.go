package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/erzulfequar/OCR-Backend/pkg/models"
	"github.com/erzulfequar/OCR-Backend/pkg/parsers"
)

// Source is one document to extract. Text is used when there is no file or
// when a strategy only works on text.
type Source struct {
	Text     string
	FilePath string
	FileName string
}

// Outcome is what a strategy produced: a raw record, the plain text it
// worked from, or both.
type Outcome struct {
	Raw  models.RawExtraction
	Text string
}

// ErrSkipped is returned by a strategy that has no input it can work on,
// such as a text-only strategy given a file upload. Skips are not failures.
var ErrSkipped = errors.New("strategy not applicable")

// Strategy is one way of turning a Source into a raw record.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, src Source) (Outcome, error)
}

// TextExtractor reads plain text out of a file; implemented by ocr.Service.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Strategy names as reported in results and logs.
const (
	StrategyAI    = "ai"
	StrategyOCR   = "ocr"
	StrategyRules = "rules"
	StrategyText  = "raw-text"
)

// AIStrategy asks a generative model for the invoice fields.
type AIStrategy struct {
	Generator parsers.TextGenerator
}

func (s *AIStrategy) Name() string { return StrategyAI }

func (s *AIStrategy) Extract(ctx context.Context, src Source) (Outcome, error) {
	var raw models.RawExtraction
	switch {
	case src.FilePath != "":
		name := src.FileName
		if name == "" {
			name = src.FilePath
		}
		mimeType, ok := parsers.DetectMimeType(name)
		if !ok {
			return Outcome{}, fmt.Errorf("no MIME type for %q", name)
		}
		content, err := os.ReadFile(src.FilePath)
		if err != nil {
			return Outcome{}, fmt.Errorf("error reading file: %w", err)
		}
		raw = parsers.ExtractInvoiceFromFile(ctx, s.Generator, content, mimeType)
	case src.Text != "":
		raw = parsers.ExtractInvoiceWithGemini(ctx, s.Generator, src.Text)
	default:
		return Outcome{}, ErrSkipped
	}

	if msg, failed := raw["error"]; failed {
		return Outcome{}, fmt.Errorf("ai extraction: %v", msg)
	}
	return Outcome{Raw: raw}, nil
}

// OCRStrategy reads the file's text and runs the rule-based parser on it.
type OCRStrategy struct {
	OCR TextExtractor
}

func (s *OCRStrategy) Name() string { return StrategyOCR }

func (s *OCRStrategy) Extract(ctx context.Context, src Source) (Outcome, error) {
	if src.FilePath == "" {
		return Outcome{}, ErrSkipped
	}
	text, err := s.OCR.ExtractText(ctx, src.FilePath)
	if err != nil {
		return Outcome{}, err
	}
	if text == "" {
		return Outcome{}, nil
	}
	return parseText(text)
}

// RulesStrategy runs the rule-based parser over the source text.
type RulesStrategy struct{}

func (RulesStrategy) Name() string { return StrategyRules }

func (RulesStrategy) Extract(_ context.Context, src Source) (Outcome, error) {
	if src.Text == "" {
		return Outcome{}, ErrSkipped
	}
	return parseText(src.Text)
}

func parseText(text string) (Outcome, error) {
	bill, err := parsers.ParseBill(text)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Raw: bill.Raw(), Text: text}, nil
}
