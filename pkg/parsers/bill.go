package parsers

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/erzulfequar/OCR-Backend/pkg/models"
)

// ErrInput is returned when the parser is handed something that is not text.
var ErrInput = errors.New("invalid parser input")

// ParseBill runs every field extractor over text and assembles the results.
// Extractors are independent: a field that cannot be found is left empty and
// never stops the others.
func ParseBill(text string) (*models.Bill, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrInput)
	}

	bill := &models.Bill{Items: []models.BillItem{}}
	if v, ok := ExtractInvoiceNumber(text); ok {
		bill.InvoiceNo = &v
	}
	if v, ok := ExtractDate(text); ok {
		bill.Date = &v
	}
	if v, ok := ExtractSeller(text); ok {
		bill.From = &v
	}
	if v, ok := ExtractBuyer(text); ok {
		bill.To = &v
	}
	if items := ExtractItems(text); items != nil {
		bill.Items = items
	}
	bill.Taxes = ExtractTaxes(text)
	bill.Total = ExtractTotal(text, bill.Items, bill.Taxes)
	return bill, nil
}

// ParseInput is ParseBill for values of unknown type, such as decoded request
// bodies. Only strings and byte slices are accepted.
func ParseInput(input any) (*models.Bill, error) {
	switch v := input.(type) {
	case string:
		return ParseBill(v)
	case []byte:
		return ParseBill(string(v))
	default:
		return nil, fmt.Errorf("%w: expected text, got %T", ErrInput, input)
	}
}
