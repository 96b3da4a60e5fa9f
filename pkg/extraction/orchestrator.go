// Package extraction runs the fallback chain that turns an invoice file or
// text into a canonical document: AI extraction first, then OCR with the
// rule-based parser, then the rule-based parser on plain text.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/erzulfequar/OCR-Backend/pkg/models"
	"github.com/erzulfequar/OCR-Backend/pkg/synonyms"
)

var (
	// ErrExtraction is returned when every strategy failed and none produced text.
	ErrExtraction = errors.New("all extraction strategies failed")
	// ErrTimeout is returned when the context expires before the chain finishes.
	ErrTimeout = errors.New("extraction timed out")
)

// Result is the outcome of one chain run.
type Result struct {
	Strategy string                  `json:"strategy"`
	Raw      models.RawExtraction    `json:"raw"`
	Document *models.InvoiceDocument `json:"document"`
}

// Orchestrator tries its strategies in order and stops at the first one whose
// raw record has at least one item.
type Orchestrator struct {
	strategies []Strategy
	table      *synonyms.Table
	timeout    time.Duration
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTable sets the synonym table used to normalize results.
func WithTable(t *synonyms.Table) Option {
	return func(o *Orchestrator) { o.table = t }
}

// WithStrategyTimeout bounds each strategy call. Zero means no bound.
func WithStrategyTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// New returns an Orchestrator running strategies in the given order.
func New(strategies []Strategy, opts ...Option) *Orchestrator {
	o := &Orchestrator{strategies: strategies, table: synonyms.DefaultTable()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the chain for one document. When no strategy yields items,
// the last text seen is returned as a single pseudo-item, and failing that
// the last raw record.
func (o *Orchestrator) Run(ctx context.Context, src Source) (*Result, error) {
	logger := log.WithField("document", documentName(src))

	var (
		errs             []error
		ran              int
		lastRaw          models.RawExtraction
		lastRawStrategy  string
		lastText         string
		lastTextStrategy string
	)
	for _, s := range o.strategies {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}

		start := time.Now()
		out, err := o.try(ctx, s, src)
		entry := logger.WithFields(log.Fields{
			"strategy":    s.Name(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if errors.Is(err, ErrSkipped) {
			entry.Debug("extraction strategy skipped")
			continue
		}
		ran++
		if err != nil {
			entry.WithError(err).Warn("extraction strategy failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}

		if out.Text != "" {
			lastText, lastTextStrategy = out.Text, s.Name()
		}
		if out.Raw == nil {
			entry.Debug("extraction strategy produced nothing")
			continue
		}
		lastRaw, lastRawStrategy = out.Raw, s.Name()

		items := len(synonyms.RawItems(out.Raw, o.table))
		entry.WithField("items", items).Info("extraction strategy finished")
		if items > 0 {
			return o.result(s.Name(), out.Raw)
		}
	}

	allFailed := len(errs) > 0 && len(errs) == ran
	if err := ctx.Err(); err != nil && allFailed {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	switch {
	case lastText != "":
		logger.WithField("strategy", lastTextStrategy).Info("no items found, returning raw text")
		return o.result(lastTextStrategy, textRecord(lastText))
	case lastRaw != nil:
		return o.result(lastRawStrategy, lastRaw)
	case allFailed:
		return nil, fmt.Errorf("%w: %w", ErrExtraction, errors.Join(errs...))
	default:
		return o.result(StrategyText, textRecord(""))
	}
}

// try runs one strategy, turning a panic into an error.
func (o *Orchestrator) try(ctx context.Context, s Strategy, src Source) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = Outcome{}, fmt.Errorf("strategy panicked: %v", r)
		}
	}()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return s.Extract(ctx, src)
}

func (o *Orchestrator) result(strategy string, raw models.RawExtraction) (*Result, error) {
	doc, err := synonyms.Normalize(raw, o.table)
	if err != nil {
		return nil, err
	}
	return &Result{Strategy: strategy, Raw: raw, Document: doc}, nil
}

// textRecord wraps plain text as a record with one item so that callers
// always have something to display.
func textRecord(text string) models.RawExtraction {
	return models.RawExtraction{
		"invoice_no": nil,
		"date":       nil,
		"items":      []any{map[string]any{"description": text}},
		"total":      nil,
	}
}

func documentName(src Source) string {
	if src.FileName != "" {
		return src.FileName
	}
	if src.FilePath != "" {
		return src.FilePath
	}
	return "(text)"
}
