// Package normalize turns locale-formatted numbers, fuzzy dates and noisy
// OCR strings into canonical values. None of its functions return errors:
// a value that cannot be read is reported as absent.
package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

var (
	reAmount     = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?\b`)
	reNoiseChars = regexp.MustCompile(`[|{}\[\]]`)
	reSpaces     = regexp.MustCompile(`\s+`)

	// date-looking substrings, used to drop surrounding words before parsing
	reDateLike = regexp.MustCompile(`(?i)\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}` +
		`|\d{4}[/.-]\d{1,2}[/.-]\d{1,2}` +
		`|[a-z]{3,9}\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{2,4}` +
		`|\d{1,2}(?:st|nd|rd|th)?\s+[a-z]{3,9}\.?,?\s+\d{2,4}`)
	reOrdinal = regexp.MustCompile(`(?i)(\d)(?:st|nd|rd|th)\b`)
)

// dayFirstLayouts are tried before the generic parser so that ambiguous
// numeric dates resolve as D/M/Y.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
	"2.1.06",
	"2006/1/2",
	"2006-1-2",
	"2006.1.2",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan. 2, 2006",
	"2 January 2006",
	"2 January, 2006",
	"2 Jan 2006",
	"2 Jan, 2006",
	"2-Jan-2006",
	"2-Jan-06",
}

// ParseAmount returns the last thousands-grouped number in text, or zero when
// the text holds none. In tabular lines the rightmost number is the amount.
func ParseAmount(text string) decimal.Decimal {
	matches := reAmount.FindAllString(text, -1)
	if len(matches) == 0 {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(matches[len(matches)-1], ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// CleanText removes bracket, brace and pipe characters and collapses runs of
// whitespace into a single space.
func CleanText(text string) string {
	text = reNoiseChars.ReplaceAllString(text, "")
	text = reSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ParseDate reads a day-first date out of text and returns it as YYYY-MM-DD.
func ParseDate(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.ContainsAny(text, "0123456789") {
		return "", false
	}
	if t, ok := parseTime(text); ok {
		return t.Format(time.DateOnly), true
	}
	// fuzzy: retry on the date-looking part only
	if m := reDateLike.FindString(text); m != "" && m != text {
		if t, ok := parseTime(m); ok {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

func parseTime(s string) (time.Time, bool) {
	s = reOrdinal.ReplaceAllString(reSpaces.ReplaceAllString(s, " "), "$1")
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	t, err := dateparse.ParseAny(s, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DecimalOrAbsent converts numbers and numeric strings (with optional comma
// thousands separators) to a decimal. Anything else, including NaN and
// infinite floats, is reported as absent.
func DecimalOrAbsent(v any) decimal.NullDecimal {
	switch val := v.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.Decimal:
		return decimal.NewNullDecimal(val)
	case decimal.NullDecimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(*val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(decimal.NewFromFloat(val))
	case float32:
		if f := float64(val); math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(decimal.NewFromFloat32(val))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(val)))
	case int32:
		return decimal.NewNullDecimal(decimal.NewFromInt32(val))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(val))
	case json.Number:
		return fromString(string(val))
	case string:
		return fromString(val)
	default:
		return decimal.NullDecimal{}
	}
}

// DecimalOrZero is DecimalOrAbsent with absent mapped to zero.
func DecimalOrZero(v any) decimal.Decimal {
	d := DecimalOrAbsent(v)
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func fromString(s string) decimal.NullDecimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
