package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erzulfequar/OCR-Backend/pkg/normalize"
)

// RawExtraction is a key-value record as produced by the AI extractor or the
// rule-based parser. Its keys and value types are not trusted.
type RawExtraction map[string]any

// DecodeRawExtraction parses a JSON object, keeping numbers as json.Number so
// amounts are not rounded through float64.
func DecodeRawExtraction(data []byte) (RawExtraction, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return RawExtraction(obj), nil
}

// InvoiceDocument is the canonical, ERP-ready shape of an invoice.
// Scalar fields keep the value found in the source record as-is; use Total
// and Date for typed access.
type InvoiceDocument struct {
	InvoiceNumber any                        `json:"InvoiceNumber"`
	InvoiceDate   any                        `json:"InvoiceDate"`
	BuyerName     any                        `json:"BuyerName"`
	BuyerAddress  any                        `json:"BuyerAddress"`
	SellerName    any                        `json:"SellerName"`
	SellerAddress any                        `json:"SellerAddress"`
	SellerGSTIN   any                        `json:"SellerGSTIN"`
	BuyerGSTIN    any                        `json:"BuyerGSTIN"`
	TotalAmount   any                        `json:"TotalAmount"`
	Items         []LineItem                 `json:"Items"`
	Taxes         map[string]decimal.Decimal `json:"Taxes"`
}

// Total returns TotalAmount as a decimal, or an invalid NullDecimal when it is
// absent or not numeric.
func (d *InvoiceDocument) Total() decimal.NullDecimal {
	return normalize.DecimalOrAbsent(d.TotalAmount)
}

// Date returns InvoiceDate as an ISO-8601 date.
func (d *InvoiceDocument) Date() (string, bool) {
	s, ok := d.InvoiceDate.(string)
	if !ok {
		return "", false
	}
	return normalize.ParseDate(s)
}

// LineItem is one normalized invoice line. Decimal fields are encoded as
// JSON strings ("Quantity": "2") so amounts keep their exact value; an
// absent NullDecimal is encoded as null.
type LineItem struct {
	Description  any                 `json:"Description"`
	HSNSAC       any                 `json:"HSN/SAC"`
	Quantity     decimal.NullDecimal `json:"Quantity"`
	Rate         decimal.NullDecimal `json:"Rate"`
	LineSubtotal decimal.NullDecimal `json:"LineSubtotal"`
	LineTaxes    []TaxEntry          `json:"LineTaxes"`
	LineTotal    decimal.Decimal     `json:"LineTotal"`
}

// TaxEntry is a tax applied to a single line. Rate and amount are encoded
// as JSON strings, like the decimals on LineItem.
type TaxEntry struct {
	TaxName   string          `json:"TaxName"`
	TaxRate   decimal.Decimal `json:"TaxRate"`
	TaxAmount decimal.Decimal `json:"TaxAmount"`
}

// Bill is the output of the rule-based parser.
type Bill struct {
	InvoiceNo *string         `json:"invoice_no"`
	Date      *string         `json:"date"`
	From      *string         `json:"from"`
	To        *string         `json:"to"`
	Items     []BillItem      `json:"items"`
	Taxes     BillTaxes       `json:"taxes"`
	Total     decimal.Decimal `json:"total"`
}

// BillItem is one line recognized by the rule-based parser. Rate and Amount
// both carry the line's rightmost amount.
type BillItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

// BillTaxes holds the GST components found in the text.
type BillTaxes struct {
	CGST     decimal.Decimal `json:"cgst"`
	SGST     decimal.Decimal `json:"sgst"`
	IGST     decimal.Decimal `json:"igst"`
	GSTTotal decimal.Decimal `json:"gst_total"`
}

// Raw converts the bill into the generic record accepted by the synonym normalizer.
func (b *Bill) Raw() RawExtraction {
	items := make([]any, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, map[string]any{
			"description": it.Description,
			"quantity":    it.Quantity,
			"rate":        it.Rate,
			"amount":      it.Amount,
		})
	}
	return RawExtraction{
		"invoice_no": stringOrNil(b.InvoiceNo),
		"date":       stringOrNil(b.Date),
		"from":       stringOrNil(b.From),
		"to":         stringOrNil(b.To),
		"items":      items,
		"taxes": map[string]any{
			"cgst":      b.Taxes.CGST,
			"sgst":      b.Taxes.SGST,
			"igst":      b.Taxes.IGST,
			"gst_total": b.Taxes.GSTTotal,
		},
		"total": b.Total,
	}
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// StoredInvoice represents a normalized invoice persisted in the database
type StoredInvoice struct {
	ID           int             `json:"id"`
	Document     json.RawMessage `json:"document"`
	RawRecord    json.RawMessage `json:"raw_record,omitempty"`
	DocumentName string          `json:"document_name"`
	Strategy     string          `json:"strategy"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// FinalizeRequest represents the request body for the finalize-parsed-fields endpoint
type FinalizeRequest struct {
	Document     json.RawMessage `json:"document" validate:"required"`
	DocumentName string          `json:"document_name" validate:"required"`
	Strategy     string          `json:"strategy" validate:"omitempty,max=32"`
}
