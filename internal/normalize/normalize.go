// Package normalize holds the value normalization rules shared by both
// parsers and the preflight validator: match keys, ids, strings, headers,
// dates and composite year fields.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

var (
	floatArtifact = regexp.MustCompile(`\.0+$`)
	nonDigit      = regexp.MustCompile(`[^0-9]`)
	fourDigits    = regexp.MustCompile(`\d{4}`)
	centuryYear   = regexp.MustCompile(`\b(20\d{2})\b`)
	serialNumber  = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// nullLiterals are the spellings spreadsheet tooling uses for a missing cell.
var nullLiterals = map[string]bool{
	"nan":  true,
	"nat":  true,
	"none": true,
	"null": true,
}

// MatchKey strips a trailing ".0" float artifact and then drops every
// non-digit character. Leading zeros are preserved. MatchKey is idempotent.
func MatchKey(raw string) string {
	s := CleanString(raw)
	s = floatArtifact.ReplaceAllString(s, "")
	return nonDigit.ReplaceAllString(s, "")
}

// StripLeadingZeros returns the zero-insensitive form of a match key.
func StripLeadingZeros(key string) string {
	return strings.TrimLeft(key, "0")
}

// HasLeadingZeros reports whether the key starts with a zero.
func HasLeadingZeros(key string) bool {
	return strings.HasPrefix(key, "0")
}

// CleanID removes the ".0" suffix left behind when an id column round-trips
// through a numeric cell.
func CleanID(raw string) string {
	s := CleanString(raw)
	return strings.TrimSuffix(s, ".0")
}

// CleanString trims the value and maps literal null markers to "".
func CleanString(raw string) string {
	s := strings.TrimSpace(raw)
	if nullLiterals[strings.ToLower(s)] {
		return ""
	}
	return s
}

// Header folds a header cell for comparison: NFC, Hebrew geresh and
// gershayim mapped to ASCII quotes, whitespace collapsed.
func Header(raw string) string {
	s := norm.NFC.String(raw)
	s = headerReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

var headerReplacer = strings.NewReplacer(
	"\u05f3", "'", // geresh
	"\u05f4", `"`, // gershayim
	"\u2019", "'",
	"\u2018", "'",
	"\u201d", `"`,
	"\u201c", `"`,
	"\u200f", "", // right-to-left mark
	"\u200e", "",
)

// ExtractYear reads the tax year out of a composite "code: label" value.
// The segment after the last colon is searched for a four digit token
// first; failing that, the whole value is scanned for a year in 2000-2099.
func ExtractYear(raw string) (int, bool) {
	s := CleanString(raw)
	if s == "" {
		return 0, false
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		if m := fourDigits.FindString(s[i+1:]); m != "" {
			y, _ := strconv.Atoi(m)
			return y, true
		}
	}
	if m := centuryYear.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		return y, true
	}
	return 0, false
}

// dateLayouts are tried in order. Day-first layouts come before any
// ambiguous alternative.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"02/01/06",
	"2/1/06",
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000000",
	time.RFC3339,
	"2006/01/02",
	"20060102",
}

// Excel serial numbers in this range map to 1900-01-01 .. 9999-12-31.
const (
	minSerial = 1
	maxSerial = 2958465
)

// ParseDate is a tolerant date parser. Unparseable input yields an absent
// date instead of an error.
func ParseDate(raw string) types.Date {
	s := CleanString(raw)
	if s == "" {
		return types.Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return types.NewDate(t)
		}
	}
	if serialNumber.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && f >= minSerial && f <= maxSerial {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				return types.NewDate(t)
			}
		}
	}
	return types.Date{}
}
