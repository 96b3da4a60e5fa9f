package synonyms

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Canonical field names of an InvoiceDocument
const (
	InvoiceNumber = "InvoiceNumber"
	InvoiceDate   = "InvoiceDate"
	BuyerName     = "BuyerName"
	BuyerAddress  = "BuyerAddress"
	SellerName    = "SellerName"
	SellerAddress = "SellerAddress"
	TotalAmount   = "TotalAmount"
	Items         = "Items"
	Taxes         = "Taxes"
)

// Field maps one canonical key to the source keys accepted for it, in priority order.
type Field struct {
	Canonical string   `yaml:"canonical"`
	Synonyms  []string `yaml:"synonyms"`
}

// ItemKeys lists the accepted source keys for each line-item attribute.
type ItemKeys struct {
	Description []string `yaml:"description"`
	HSN         []string `yaml:"hsn"`
	Quantity    []string `yaml:"quantity"`
	Rate        []string `yaml:"rate"`
	Amount      []string `yaml:"amount"`
	TaxRate     []string `yaml:"tax_rate"`
	LineTaxes   []string `yaml:"line_taxes"`
}

// Table is the normalizer's policy. It is plain data so that deployments can
// tune it from a YAML file.
type Table struct {
	Fields      []Field  `yaml:"fields"`
	SellerGSTIN []string `yaml:"seller_gstin"`
	BuyerGSTIN  []string `yaml:"buyer_gstin"`
	Item        ItemKeys `yaml:"item"`
	TaxCodes    []string `yaml:"tax_codes"`
}

// DefaultTable returns the built-in synonym table. Source labels come first,
// then the rule-based parser's keys, then the canonical name itself so that
// an already normalized document maps onto itself.
func DefaultTable() *Table {
	return &Table{
		Fields: []Field{
			{Canonical: InvoiceNumber, Synonyms: []string{"Invoice No.", "Doc No.", "Ref. No.", "Estimate No.", "invoice_no", InvoiceNumber}},
			{Canonical: InvoiceDate, Synonyms: []string{"Date", "Dated", "Estimate Date", "Bill Date", "date", InvoiceDate}},
			{Canonical: BuyerName, Synonyms: []string{"To", "Buyer (Bill to)", "Customer", "to", BuyerName}},
			{Canonical: BuyerAddress, Synonyms: []string{"Ship To", "Bill To Address", BuyerAddress}},
			{Canonical: SellerName, Synonyms: []string{"From", "Vendor", "Supplier", "from", SellerName}},
			{Canonical: SellerAddress, Synonyms: []string{"Dispatch From", "From Address", SellerAddress}},
			{Canonical: TotalAmount, Synonyms: []string{"Total InvAmt", "Grand Total", "Net Payable", "total", TotalAmount}},
			{Canonical: Items, Synonyms: []string{"Items", "Line Items", "Products", "items"}},
		},
		SellerGSTIN: []string{"GSTIN", "GSTIN/UIN", "SellerGSTIN"},
		BuyerGSTIN:  []string{"GSTIN/UIN >", "GSTIN/UIN", "BuyerGSTIN"},
		Item: ItemKeys{
			Description: []string{"description", "Description"},
			HSN:         []string{"hsn_sac", "HSN/SAC"},
			Quantity:    []string{"quantity", "Quantity"},
			Rate:        []string{"rate", "Rate", "Price"},
			Amount:      []string{"taxable_amount", "Amount", "amount", "LineSubtotal"},
			TaxRate:     []string{"tax_rate"},
			LineTaxes:   []string{"LineTaxes"},
		},
		TaxCodes: []string{"CGST", "SGST", "IGST", "VAT", "TAX"},
	}
}

// LoadTable reads a synonym table from a YAML file
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading synonym table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes a YAML synonym table and checks that it names every
// canonical field exactly once.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("error parsing synonym table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate reports missing, unknown or duplicated canonical fields.
func (t *Table) Validate() error {
	known := map[string]bool{
		InvoiceNumber: true, InvoiceDate: true, BuyerName: true, BuyerAddress: true,
		SellerName: true, SellerAddress: true, TotalAmount: true, Items: true,
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if !known[f.Canonical] {
			return fmt.Errorf("synonym table: unknown canonical field %q", f.Canonical)
		}
		if seen[f.Canonical] {
			return fmt.Errorf("synonym table: duplicate canonical field %q", f.Canonical)
		}
		seen[f.Canonical] = true
	}
	for name := range known {
		if !seen[name] {
			return fmt.Errorf("synonym table: missing canonical field %q", name)
		}
	}
	return nil
}

// synonymsFor returns the synonym list of a canonical field
func (t *Table) synonymsFor(canonical string) []string {
	for _, f := range t.Fields {
		if f.Canonical == canonical {
			return f.Synonyms
		}
	}
	return nil
}
