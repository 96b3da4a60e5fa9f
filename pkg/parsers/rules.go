package parsers

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erzulfequar/OCR-Backend/pkg/models"
	"github.com/erzulfequar/OCR-Backend/pkg/normalize"
)

// Label synonyms. Alternation order matters only where one label is a
// prefix of another at the same position.
var (
	reInvoiceNo = regexp.MustCompile(`(?i)(?:Invoice|Bill|Est|Estimate|Quotation|Quote|Ref No|Receipt|Tax Invoice|estimate date)[^\d]*(\d+)`)

	reDate = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}[/-]\d{1,2}[/-]\d{1,2}|\w{3,9}\s+\d{1,2},?\s+\d{2,4}\b`)

	reSellerLine = regexp.MustCompile(`(?im)^.*\b(?:Ltd|Private|Pvt|LLP|Inc|Technologies)\b.*$`)
	reGSTIN      = regexp.MustCompile(`(?i)GSTIN[:\s]*([0-9A-Z]{15})`)
	reBuyer      = regexp.MustCompile(`(?is)(?:Bill\s*To|Customer|Client)[:\-]?\s*(.*?)(?:Ship\s*To|$)`)

	reQuantity   = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	reItemAmount = regexp.MustCompile(`\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?`)

	reCGST  = regexp.MustCompile(`(?i)(?:CGST|Central GST|Central Tax)[:\s]*([\d,]+\.\d{1,2}|\d+)`)
	reSGST  = regexp.MustCompile(`(?i)(?:SGST|State GST|State Tax)[:\s]*([\d,]+\.\d{1,2}|\d+)`)
	reIGST  = regexp.MustCompile(`(?i)(?:IGST|Integrated GST|Integrated Tax)[:\s]*([\d,]+\.\d{1,2}|\d+)`)
	reTotal = regexp.MustCompile(`(?i)(?:Total|Grand Total|Amount Payable|Net Amount)[:\s]*([\d,]+\.\d{1,2}|\d+)`)
)

// ExtractInvoiceNumber returns the first digit run following an invoice-like label.
func ExtractInvoiceNumber(text string) (string, bool) {
	m := reInvoiceNo.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractDate normalizes the first date-looking substring of text.
// A candidate that cannot be read is treated as no date at all.
func ExtractDate(text string) (string, bool) {
	candidate := reDate.FindString(text)
	if candidate == "" {
		return "", false
	}
	return normalize.ParseDate(candidate)
}

// ExtractSeller returns the first line mentioning a legal-entity suffix,
// followed by the document's GSTIN when one is printed anywhere. The whole
// line is taken, not just the text from the suffix onwards, and suffixes
// only match as whole words, so "Incl. GST" does not count as "Inc".
func ExtractSeller(text string) (string, bool) {
	line := reSellerLine.FindString(text)
	if line == "" {
		return "", false
	}
	seller := strings.TrimSpace(line)
	if gst := reGSTIN.FindStringSubmatch(text); gst != nil {
		seller += ", GSTIN: " + gst[1]
	}
	return seller, true
}

// ExtractBuyer captures the text after a Bill To/Customer/Client label up to
// a Ship To label or the end of the text.
func ExtractBuyer(text string) (string, bool) {
	m := reBuyer.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return normalize.CleanText(m[1]), true
}

// ExtractItems treats every line holding both a bare number and a grouped
// amount as a new item. Lines without that pair are skipped, so wrapped
// descriptions are lost.
//
// Rate and Amount are both set from the line's rightmost amount: the text
// alone does not tell a unit rate from a line total.
func ExtractItems(text string) []models.BillItem {
	var items []models.BillItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		qty := reQuantity.FindString(line)
		if qty == "" || !reItemAmount.MatchString(line) {
			continue
		}
		amount := normalize.ParseAmount(line)
		items = append(items, models.BillItem{
			Description: normalize.CleanText(line),
			Quantity:    decimal.RequireFromString(qty),
			Rate:        amount,
			Amount:      amount,
		})
	}
	return items
}

// ExtractTaxes reads the CGST, SGST and IGST amounts; missing ones are zero.
func ExtractTaxes(text string) models.BillTaxes {
	taxes := models.BillTaxes{
		CGST: labelledAmount(reCGST, text),
		SGST: labelledAmount(reSGST, text),
		IGST: labelledAmount(reIGST, text),
	}
	taxes.GSTTotal = taxes.CGST.Add(taxes.SGST).Add(taxes.IGST)
	return taxes
}

// ExtractTotal reads the labelled document total. Without a label, the total
// is the sum of item amounts plus GST.
func ExtractTotal(text string, items []models.BillItem, taxes models.BillTaxes) decimal.Decimal {
	if m := reTotal.FindStringSubmatch(text); m != nil {
		return normalize.DecimalOrZero(m[1])
	}
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount)
	}
	return subtotal.Add(taxes.GSTTotal)
}

func labelledAmount(re *regexp.Regexp, text string) decimal.Decimal {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero
	}
	return normalize.DecimalOrZero(m[1])
}
