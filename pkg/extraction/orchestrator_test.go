package extraction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
	parts    []genai.Part
}

func (f *fakeGenerator) GenerateText(_ context.Context, parts ...genai.Part) (string, error) {
	f.calls++
	f.parts = parts
	return f.response, f.err
}

type fakeOCR struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeOCR) ExtractText(_ context.Context, _ string) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

// stubStrategy lets a test script a strategy's behaviour.
type stubStrategy struct {
	name    string
	extract func(ctx context.Context, src Source) (Outcome, error)
}

func (s stubStrategy) Name() string { return s.name }

func (s stubStrategy) Extract(ctx context.Context, src Source) (Outcome, error) {
	return s.extract(ctx, src)
}

var errBoom = errors.New("boom")

const itemText = "Widget 2 1,500.00\nTotal: 1,500.00"

func writeInvoice(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunFallsThroughWhenAIReturnsNoItems(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n{\"items\": []}\n```"}
	ocr := &fakeOCR{text: itemText}
	o := New([]Strategy{&AIStrategy{Generator: gen}, &OCRStrategy{OCR: ocr}, RulesStrategy{}})

	path := writeInvoice(t, "invoice.pdf")
	res, err := o.Run(context.Background(), Source{FilePath: path, FileName: "invoice.pdf"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Strategy != StrategyOCR {
		t.Errorf("Strategy = %q, want %q", res.Strategy, StrategyOCR)
	}
	if len(res.Document.Items) == 0 {
		t.Fatal("expected items from the OCR text")
	}
	if gen.calls != 1 || ocr.calls.Load() != 1 {
		t.Errorf("calls: ai = %d, ocr = %d", gen.calls, ocr.calls.Load())
	}
	if blob, ok := gen.parts[1].(genai.Blob); !ok || blob.MIMEType != "application/pdf" {
		t.Errorf("AI strategy sent %#v, want a PDF blob", gen.parts[1])
	}
}

func TestRunStopsAtFirstStrategyWithItems(t *testing.T) {
	gen := &fakeGenerator{response: `{"Invoice No.":"A-1","items":[{"description":"Consulting","taxable_amount":"100","tax_rate":"18"}]}`}
	ocr := &fakeOCR{text: itemText}
	o := New([]Strategy{&AIStrategy{Generator: gen}, &OCRStrategy{OCR: ocr}, RulesStrategy{}})

	res, err := o.Run(context.Background(), Source{Text: "Invoice A-1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Strategy != StrategyAI {
		t.Errorf("Strategy = %q, want %q", res.Strategy, StrategyAI)
	}
	if res.Document.InvoiceNumber != "A-1" {
		t.Errorf("InvoiceNumber = %v, want A-1", res.Document.InvoiceNumber)
	}
	if got := res.Document.Items[0].LineTotal.String(); got != "118" {
		t.Errorf("LineTotal = %s, want 118", got)
	}
	if ocr.calls.Load() != 0 {
		t.Error("OCR ran although the AI result had items")
	}
}

func TestRunAIErrorFallsBackToRules(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{name: "API error", gen: &fakeGenerator{err: errBoom}},
		{name: "Not JSON", gen: &fakeGenerator{response: "I cannot read this invoice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New([]Strategy{&AIStrategy{Generator: tt.gen}, &OCRStrategy{OCR: &fakeOCR{}}, RulesStrategy{}})
			res, err := o.Run(context.Background(), Source{Text: itemText})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.Strategy != StrategyRules {
				t.Errorf("Strategy = %q, want %q", res.Strategy, StrategyRules)
			}
		})
	}
}

func TestRunRecoversFromPanics(t *testing.T) {
	panicking := stubStrategy{name: "panics", extract: func(context.Context, Source) (Outcome, error) {
		panic("nil map")
	}}
	o := New([]Strategy{panicking, RulesStrategy{}})

	res, err := o.Run(context.Background(), Source{Text: itemText})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Strategy != StrategyRules || len(res.Document.Items) == 0 {
		t.Errorf("Run() = %+v", res)
	}
}

func TestRunReturnsTextAsPseudoItem(t *testing.T) {
	ocr := &fakeOCR{text: "Thank you for your business"}
	o := New([]Strategy{&AIStrategy{Generator: &fakeGenerator{response: `{}`}}, &OCRStrategy{OCR: ocr}, RulesStrategy{}})

	res, err := o.Run(context.Background(), Source{FilePath: writeInvoice(t, "scan.png")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Strategy != StrategyOCR {
		t.Errorf("Strategy = %q, want %q", res.Strategy, StrategyOCR)
	}
	if len(res.Document.Items) != 1 || res.Document.Items[0].Description != "Thank you for your business" {
		t.Errorf("Items = %+v, want the OCR text as a single item", res.Document.Items)
	}
}

func TestRunReturnsLastRecordWithoutText(t *testing.T) {
	gen := &fakeGenerator{response: `{"Invoice No.":"Q-7","items":[]}`}
	o := New([]Strategy{&AIStrategy{Generator: gen}, &OCRStrategy{OCR: &fakeOCR{}}})

	res, err := o.Run(context.Background(), Source{FilePath: writeInvoice(t, "scan.jpg")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Strategy != StrategyAI || res.Document.InvoiceNumber != "Q-7" {
		t.Errorf("Run() = %+v", res)
	}
}

func TestRunAllStrategiesFail(t *testing.T) {
	failing := func(name string) Strategy {
		return stubStrategy{name: name, extract: func(context.Context, Source) (Outcome, error) {
			return Outcome{}, errBoom
		}}
	}
	o := New([]Strategy{failing("a"), failing("b")})

	_, err := o.Run(context.Background(), Source{Text: "x"})
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("Run() error = %v, want ErrExtraction", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("Run() error = %v, want it to wrap the strategy errors", err)
	}
}

func TestRunUploadFailsWhenEveryApplicableStrategyFails(t *testing.T) {
	ocrErr := errors.New("tesseract exited with status 1")
	o := New([]Strategy{
		&AIStrategy{Generator: &fakeGenerator{err: errBoom}},
		&OCRStrategy{OCR: &fakeOCR{err: ocrErr}},
		RulesStrategy{},
	})

	res, err := o.Run(context.Background(), Source{FilePath: writeInvoice(t, "scan.pdf")})
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("Run() = %+v, %v, want ErrExtraction", res, err)
	}
	if !errors.Is(err, ocrErr) {
		t.Errorf("Run() error = %v, want it to carry the OCR error", err)
	}
}

func TestRunAllStrategiesSkipped(t *testing.T) {
	o := New([]Strategy{&OCRStrategy{OCR: &fakeOCR{}}, RulesStrategy{}})

	res, err := o.Run(context.Background(), Source{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Strategy != StrategyText {
		t.Errorf("Strategy = %q, want %q", res.Strategy, StrategyText)
	}
}

func TestStrategiesSkipWithoutInput(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		src      Source
	}{
		{name: "AI", strategy: &AIStrategy{Generator: &fakeGenerator{}}, src: Source{}},
		{name: "OCR without file", strategy: &OCRStrategy{OCR: &fakeOCR{}}, src: Source{Text: itemText}},
		{name: "Rules without text", strategy: RulesStrategy{}, src: Source{FilePath: "scan.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.strategy.Extract(context.Background(), tt.src); !errors.Is(err, ErrSkipped) {
				t.Errorf("Extract() error = %v, want ErrSkipped", err)
			}
		})
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New([]Strategy{RulesStrategy{}})
	if _, err := o.Run(ctx, Source{Text: itemText}); !errors.Is(err, ErrTimeout) {
		t.Errorf("Run() error = %v, want ErrTimeout", err)
	}
}

func TestRunStrategyTimeout(t *testing.T) {
	slow := stubStrategy{name: "slow", extract: func(ctx context.Context, _ Source) (Outcome, error) {
		<-ctx.Done()
		return Outcome{}, ctx.Err()
	}}
	o := New([]Strategy{slow, RulesStrategy{}}, WithStrategyTimeout(10*time.Millisecond))

	res, err := o.Run(context.Background(), Source{Text: itemText})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Strategy != StrategyRules {
		t.Errorf("Strategy = %q, want %q", res.Strategy, StrategyRules)
	}
}

func TestProcessBatch(t *testing.T) {
	o := New([]Strategy{RulesStrategy{}})
	sources := []Source{
		{Text: "Invoice No. 1\n" + itemText},
		{Text: "Invoice No. 2\n" + itemText},
		{Text: "Invoice No. 3\n" + itemText},
	}

	results := o.ProcessBatch(context.Background(), sources, 2)
	if len(results) != len(sources) {
		t.Fatalf("got %d results, want %d", len(results), len(sources))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("document %d: %v", i, r.Err)
			continue
		}
		want := string(rune('1' + i))
		if r.Result.Document.InvoiceNumber != want {
			t.Errorf("document %d InvoiceNumber = %v, want %s", i, r.Result.Document.InvoiceNumber, want)
		}
	}
}

func TestTextRecordNormalizes(t *testing.T) {
	raw := textRecord("hello")
	if _, ok := raw["items"]; !ok {
		t.Fatal("text record has no items")
	}
	o := New(nil)
	res, err := o.result(StrategyText, raw)
	if err != nil {
		t.Fatal(err)
	}
	if res.Document.Items[0].Description != "hello" {
		t.Errorf("Description = %v", res.Document.Items[0].Description)
	}
}
