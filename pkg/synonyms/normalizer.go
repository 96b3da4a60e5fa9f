// Package synonyms maps records with arbitrary key names onto the canonical
// InvoiceDocument schema, driven by a synonym table.
package synonyms

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erzulfequar/OCR-Backend/pkg/models"
	"github.com/erzulfequar/OCR-Backend/pkg/normalize"
)

// ErrNormalization is returned when the raw record is not a key-value structure.
var ErrNormalization = errors.New("raw record is not a key-value structure")

// lineTaxName is the only per-item tax the source schema can express.
const lineTaxName = "GST"

// FirstPresent returns the value of the first key in keys that exists in
// record. A key counts as present even when its value is empty.
func FirstPresent[V any](record map[string]V, keys []string) (V, string, bool) {
	for _, k := range keys {
		if v, ok := record[k]; ok {
			return v, k, true
		}
	}
	var zero V
	return zero, "", false
}

// Normalize builds a canonical document from raw. Every canonical field is
// set from the first synonym present in raw, or left nil. Conversion
// failures inside fields never fail the call.
func Normalize(raw models.RawExtraction, table *Table) (*models.InvoiceDocument, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: record is nil", ErrNormalization)
	}
	if table == nil {
		table = DefaultTable()
	}

	doc := &models.InvoiceDocument{
		Items: []models.LineItem{},
		Taxes: map[string]decimal.Decimal{},
	}
	scalars := map[string]*any{
		InvoiceNumber: &doc.InvoiceNumber,
		InvoiceDate:   &doc.InvoiceDate,
		BuyerName:     &doc.BuyerName,
		BuyerAddress:  &doc.BuyerAddress,
		SellerName:    &doc.SellerName,
		SellerAddress: &doc.SellerAddress,
		TotalAmount:   &doc.TotalAmount,
	}
	for _, f := range table.Fields {
		dst, ok := scalars[f.Canonical]
		if !ok {
			continue
		}
		if v, _, found := FirstPresent(raw, f.Synonyms); found {
			*dst = v
		}
	}

	// GSTINs share label text on real invoices, so they use their own
	// alternate lists and skip empty values.
	doc.SellerGSTIN = firstNonEmpty(raw, table.SellerGSTIN)
	doc.BuyerGSTIN = firstNonEmpty(raw, table.BuyerGSTIN)

	for _, item := range RawItems(raw, table) {
		doc.Items = append(doc.Items, normalizeItem(item, table.Item))
	}

	doc.Taxes = documentTaxes(raw, table.TaxCodes)
	return doc, nil
}

// NormalizeJSON decodes data as a JSON object and normalizes it.
func NormalizeJSON(data []byte, table *Table) (*models.InvoiceDocument, error) {
	raw, err := models.DecodeRawExtraction(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNormalization, err)
	}
	return Normalize(raw, table)
}

// NormalizeValue normalizes an already decoded value, rejecting anything
// that is not an object.
func NormalizeValue(v any, table *Table) (*models.InvoiceDocument, error) {
	switch rec := v.(type) {
	case models.RawExtraction:
		return Normalize(rec, table)
	case map[string]any:
		return Normalize(models.RawExtraction(rec), table)
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNormalization, v)
	}
}

// RawItems returns the item objects of raw, found under the Items synonyms.
// Entries that are not objects are dropped.
func RawItems(raw models.RawExtraction, table *Table) []map[string]any {
	if table == nil {
		table = DefaultTable()
	}
	v, _, ok := FirstPresent(raw, table.synonymsFor(Items))
	if !ok {
		return nil
	}

	var items []map[string]any
	switch list := v.(type) {
	case []any:
		for _, e := range list {
			if m, ok := asObject(e); ok {
				items = append(items, m)
			}
		}
	case []map[string]any:
		items = append(items, list...)
	}
	return items
}

func normalizeItem(item map[string]any, keys ItemKeys) models.LineItem {
	description, _, _ := FirstPresent(item, keys.Description)
	hsn, _, _ := FirstPresent(item, keys.HSN)
	quantity, _, _ := FirstPresent(item, keys.Quantity)
	rate, _, _ := FirstPresent(item, keys.Rate)
	amount, _, _ := FirstPresent(item, keys.Amount)

	li := models.LineItem{
		Description:  description,
		HSNSAC:       hsn,
		Quantity:     normalize.DecimalOrAbsent(quantity),
		Rate:         normalize.DecimalOrAbsent(rate),
		LineSubtotal: normalize.DecimalOrAbsent(amount),
		LineTaxes:    []models.TaxEntry{},
	}

	if li.LineSubtotal.Valid {
		taxRate := itemTaxRate(item, keys)
		taxAmount := li.LineSubtotal.Decimal.Mul(taxRate).Shift(-2)
		if !taxAmount.IsZero() {
			li.LineTaxes = append(li.LineTaxes, models.TaxEntry{
				TaxName:   lineTaxName,
				TaxRate:   taxRate,
				TaxAmount: taxAmount,
			})
		}
	}

	li.LineTotal = decimal.Zero
	if li.LineSubtotal.Valid {
		li.LineTotal = li.LineSubtotal.Decimal
	}
	for _, t := range li.LineTaxes {
		li.LineTotal = li.LineTotal.Add(t.TaxAmount)
	}
	return li
}

// itemTaxRate reads the item's tax rate in percent. A record that was
// normalized before carries it in its first line tax instead.
func itemTaxRate(item map[string]any, keys ItemKeys) decimal.Decimal {
	if v, _, ok := FirstPresent(item, keys.TaxRate); ok {
		return normalize.DecimalOrZero(v)
	}
	v, _, ok := FirstPresent(item, keys.LineTaxes)
	if !ok {
		return decimal.Zero
	}
	taxes, _ := v.([]any)
	if len(taxes) == 0 {
		return decimal.Zero
	}
	first, ok := asObject(taxes[0])
	if !ok {
		return decimal.Zero
	}
	return normalize.DecimalOrZero(first["TaxRate"])
}

// documentTaxes collects document-level taxes from a nested Taxes object and
// from top-level keys named after a tax code. Top-level keys win.
func documentTaxes(raw models.RawExtraction, codes []string) map[string]decimal.Decimal {
	known := make(map[string]bool, len(codes))
	for _, c := range codes {
		known[strings.ToUpper(c)] = true
	}

	taxes := map[string]decimal.Decimal{}
	collect := func(rec map[string]any) {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			code := strings.ToUpper(k)
			if known[code] {
				taxes[code] = normalize.DecimalOrZero(rec[k])
			}
		}
	}

	for _, key := range []string{"Taxes", "taxes"} {
		if nested, ok := asObject(raw[key]); ok {
			collect(nested)
		}
	}
	collect(raw)
	return taxes
}

func firstNonEmpty(raw models.RawExtraction, keys []string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && !isEmpty(v) {
			return v
		}
	}
	return nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case bool:
		return !val
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case models.RawExtraction:
		return m, true
	default:
		return nil, false
	}
}
