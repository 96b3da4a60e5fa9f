package parsers

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

const sampleInvoice = `ACME Technologies Pvt Ltd
GSTIN: 27ABCDE1234F1Z5
Tax Invoice No: INV/2023/0042
Date: 05/03/2023
Bill To: Globex Corporation
221B Baker Street
Ship To: Warehouse 9
Widget A 2 750.00 1,500.00
Service fee 1 250.00
CGST: 157.50
SGST: 157.50
Grand Total: 2,065.00`

func TestParseBillScenario(t *testing.T) {
	bill, err := ParseBill("Invoice No. 5521\nTotal: 2,000.50")
	if err != nil {
		t.Fatalf("ParseBill() error = %v", err)
	}
	if bill.InvoiceNo == nil || *bill.InvoiceNo != "5521" {
		t.Errorf("InvoiceNo = %v, want 5521", bill.InvoiceNo)
	}
	if !bill.Total.Equal(decimal.RequireFromString("2000.50")) {
		t.Errorf("Total = %s, want 2000.50", bill.Total)
	}
}

func TestParseBillSample(t *testing.T) {
	bill, err := ParseBill(sampleInvoice)
	if err != nil {
		t.Fatalf("ParseBill() error = %v", err)
	}

	if bill.InvoiceNo == nil || *bill.InvoiceNo != "2023" {
		t.Errorf("InvoiceNo = %v, want 2023", bill.InvoiceNo)
	}
	if bill.Date == nil || *bill.Date != "2023-03-05" {
		t.Errorf("Date = %v, want 2023-03-05", bill.Date)
	}
	wantFrom := "ACME Technologies Pvt Ltd, GSTIN: 27ABCDE1234F1Z5"
	if bill.From == nil || *bill.From != wantFrom {
		t.Errorf("From = %v, want %q", bill.From, wantFrom)
	}
	wantTo := "Globex Corporation 221B Baker Street"
	if bill.To == nil || *bill.To != wantTo {
		t.Errorf("To = %v, want %q", bill.To, wantTo)
	}
	if !bill.Taxes.CGST.Equal(decimal.RequireFromString("157.50")) {
		t.Errorf("CGST = %s, want 157.50", bill.Taxes.CGST)
	}
	if !bill.Total.Equal(decimal.RequireFromString("2065")) {
		t.Errorf("Total = %s, want 2065", bill.Total)
	}
	if len(bill.Items) == 0 {
		t.Fatal("expected items")
	}
}

func TestParseBillEmptyText(t *testing.T) {
	bill, err := ParseBill("")
	if err != nil {
		t.Fatalf("ParseBill() error = %v", err)
	}
	if bill.InvoiceNo != nil || bill.Date != nil || bill.From != nil || bill.To != nil {
		t.Errorf("expected empty fields, got %+v", bill)
	}
	if bill.Items == nil || len(bill.Items) != 0 {
		t.Errorf("Items = %v, want empty non-nil slice", bill.Items)
	}
	if !bill.Total.IsZero() {
		t.Errorf("Total = %s, want 0", bill.Total)
	}
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantErr bool
	}{
		{name: "String", input: "Invoice 12"},
		{name: "Bytes", input: []byte("Invoice 12")},
		{name: "Number", input: 42, wantErr: true},
		{name: "Nil", input: nil, wantErr: true},
		{name: "Map", input: map[string]any{"text": "x"}, wantErr: true},
		{name: "Invalid UTF-8", input: string([]byte{0xff, 0xfe}), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInput(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInput) {
					t.Errorf("ParseInput(%v) error = %v, want ErrInput", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseInput(%v) unexpected error = %v", tt.input, err)
			}
		})
	}
}

func TestExtractInvoiceNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "Invoice label", input: "Invoice No. 5521", expected: "5521", ok: true},
		{name: "Estimate", input: "ESTIMATE # 77", expected: "77", ok: true},
		{name: "Quotation", input: "quotation ref: Q-103", expected: "103", ok: true},
		{name: "Receipt", input: "Receipt 9", expected: "9", ok: true},
		{name: "First label wins", input: "Bill 1\nInvoice 2", expected: "1", ok: true},
		{name: "No label", input: "Order 123", ok: false},
		{name: "Label without digits", input: "Invoice", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ExtractInvoiceNumber(tt.input)
			if result != tt.expected || ok != tt.ok {
				t.Errorf("ExtractInvoiceNumber(%q) = (%q, %v), want (%q, %v)", tt.input, result, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "Day first", input: "Dated 12/01/2024", expected: "2024-01-12", ok: true},
		{name: "Year first", input: "Date: 2024-01-12", expected: "2024-01-12", ok: true},
		{name: "Month name", input: "Issued January 12, 2024", expected: "2024-01-12", ok: true},
		{name: "First candidate wins", input: "01/02/2024 and 2024-12-31", expected: "2024-02-01", ok: true},
		{name: "Unparseable candidate", input: "Ref 99/99/2024", ok: false},
		{name: "Fuzzy words only", input: "Invoice Date: sometime last week", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ExtractDate(tt.input)
			if result != tt.expected || ok != tt.ok {
				t.Errorf("ExtractDate(%q) = (%q, %v), want (%q, %v)", tt.input, result, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestExtractSeller(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "Suffix line", input: "Header\nFoo Pvt. Ltd.\nBar", expected: "Foo Pvt. Ltd.", ok: true},
		{name: "With GSTIN", input: "Foo LLP\nGSTIN 29AAAAA0000A1Z5", expected: "Foo LLP, GSTIN: 29AAAAA0000A1Z5", ok: true},
		{name: "Suffix inside a word is ignored", input: "Income statement", ok: false},
		{name: "Incl is not Inc", input: "Rates Incl. GST 18%", ok: false},
		{name: "Name before suffix is kept", input: "Acme Widgets Technologies, Pune", expected: "Acme Widgets Technologies, Pune", ok: true},
		{name: "No suffix", input: "Jane Doe\nMain Street", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ExtractSeller(tt.input)
			if result != tt.expected || ok != tt.ok {
				t.Errorf("ExtractSeller(%q) = (%q, %v), want (%q, %v)", tt.input, result, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestExtractBuyer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "Up to Ship To", input: "Bill To: Globex\n[Main St]\nShip To: Depot", expected: "Globex Main St", ok: true},
		{name: "Up to end", input: "Customer- Jane | Doe", expected: "Jane Doe", ok: true},
		{name: "Client label", input: "client: Initech", expected: "Initech", ok: true},
		{name: "No label", input: "Sold to nobody", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ExtractBuyer(tt.input)
			if result != tt.expected || ok != tt.ok {
				t.Errorf("ExtractBuyer(%q) = (%q, %v), want (%q, %v)", tt.input, result, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestExtractItems(t *testing.T) {
	text := "Description Qty Amount\n| Widget A | 2 | 1,500.00 |\ncontinued description\n\nService 1 250"

	items := ExtractItems(text)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}

	first := items[0]
	if first.Description != "Widget A 2 1,500.00" {
		t.Errorf("Description = %q", first.Description)
	}
	if !first.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Quantity = %s, want 2", first.Quantity)
	}
	if !first.Rate.Equal(decimal.NewFromInt(1500)) || !first.Amount.Equal(first.Rate) {
		t.Errorf("Rate/Amount = %s/%s, want 1500/1500", first.Rate, first.Amount)
	}
	if !items[1].Amount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("second Amount = %s, want 250", items[1].Amount)
	}
}

func TestExtractTaxes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		cgst  string
		sgst  string
		igst  string
	}{
		{name: "All labels", input: "CGST: 9.00\nSGST 9.00\nIGST: 1,000.25", cgst: "9", sgst: "9", igst: "1000.25"},
		{name: "Synonyms", input: "Central Tax 45\nState GST: 45.50", cgst: "45", sgst: "45.5", igst: "0"},
		{name: "None", input: "no taxes here", cgst: "0", sgst: "0", igst: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taxes := ExtractTaxes(tt.input)
			if !taxes.CGST.Equal(decimal.RequireFromString(tt.cgst)) ||
				!taxes.SGST.Equal(decimal.RequireFromString(tt.sgst)) ||
				!taxes.IGST.Equal(decimal.RequireFromString(tt.igst)) {
				t.Errorf("ExtractTaxes(%q) = %+v", tt.input, taxes)
			}
			if !taxes.GSTTotal.Equal(taxes.CGST.Add(taxes.SGST).Add(taxes.IGST)) {
				t.Errorf("GSTTotal = %s, want cgst+sgst+igst", taxes.GSTTotal)
			}
		})
	}
}

func TestExtractTotalFallsBackToItems(t *testing.T) {
	text := "Widget 2 100.10\nGadget 1 200.20\nCGST: 0.35\nSGST: 0.35"
	bill, err := ParseBill(text)
	if err != nil {
		t.Fatalf("ParseBill() error = %v", err)
	}
	// CGST/SGST lines are item lines too, so they are part of the item sum.
	want := decimal.RequireFromString("100.10").
		Add(decimal.RequireFromString("200.20")).
		Add(decimal.RequireFromString("0.35")).
		Add(decimal.RequireFromString("0.35")).
		Add(decimal.RequireFromString("0.70"))
	if !bill.Total.Equal(want) {
		t.Errorf("Total = %s, want %s", bill.Total, want)
	}
}

func TestBillRawRoundTripsKeys(t *testing.T) {
	bill, err := ParseBill("Invoice 7\nTotal 10")
	if err != nil {
		t.Fatalf("ParseBill() error = %v", err)
	}
	raw := bill.Raw()
	for _, key := range []string{"invoice_no", "date", "from", "to", "items", "taxes", "total"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Raw() missing key %q", key)
		}
	}
	if raw["invoice_no"] != "7" {
		t.Errorf("invoice_no = %v, want 7", raw["invoice_no"])
	}
	if raw["date"] != nil {
		t.Errorf("date = %v, want nil", raw["date"])
	}
}
