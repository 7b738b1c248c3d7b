package banks

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a statement amount in either Indonesian locale
// (1.234.567,89) or international locale (1,234,567.89). Currency prefixes,
// DB/CR markers and surrounding whitespace are stripped; parentheses mean a
// negative amount. Empty and dash cells parse as zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "Rp")
	cleaned = strings.TrimPrefix(cleaned, "IDR")
	cleaned = strings.TrimSpace(cleaned)

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	if strings.HasPrefix(cleaned, "-") {
		negative = true
		cleaned = cleaned[1:]
	}

	upper := strings.ToUpper(cleaned)
	for _, suffix := range []string{"DB", "DR", "CR", "D", "K", "C"} {
		if !strings.HasSuffix(upper, suffix) {
			continue
		}
		rest := strings.TrimSpace(cleaned[:len(cleaned)-len(suffix)])
		if rest != "" && isDigit(rest[len(rest)-1]) {
			cleaned = rest
		}
		break
	}

	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || cleaned == "-" || cleaned == "–" {
		return decimal.Zero, nil
	}

	normalized, err := normalizeSeparators(cleaned)
	if err != nil {
		return decimal.Zero, err
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators rewrites an amount to use '.' as the decimal point.
// The locale is inferred from the separator layout: when both separators
// appear, the rightmost one is the decimal point; a lone separator followed
// by exactly two digits is treated as the decimal point, otherwise as a
// thousands separator.
func normalizeSeparators(s string) (string, error) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// Indonesian: 1.234.567,89
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// International: 1,234,567.89
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		decimals := len(s) - lastComma - 1
		if decimals == 2 && strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		decimals := len(s) - lastDot - 1
		if decimals != 2 || strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return "", fmt.Errorf("unexpected character %q in amount", r)
		}
	}
	return s, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// statementDateLayouts are tried in order by ParseDate
var statementDateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02/01/06",
	"2006-01-02",
	"02 Jan 2006",
	"02-Jan-2006",
	"2 Jan 2006",
	"02 January 2006",
}

// indonesianMonths translates Indonesian month names to English for date
// parsing. Full names come first so an abbreviation never clobbers a longer
// name it is a prefix of ("Agu" inside "Agustus").
var indonesianMonths = [][2]string{
	{"Januari", "January"}, {"Februari", "February"}, {"Maret", "March"},
	{"April", "April"}, {"Juni", "June"}, {"Juli", "July"},
	{"Agustus", "August"}, {"September", "September"}, {"Oktober", "October"},
	{"November", "November"}, {"Desember", "December"},
	{"Mei", "May"}, {"Agu", "Aug"}, {"Okt", "Oct"}, {"Des", "Dec"},
}

// ParseDate parses a statement date cell. Day-first layouts dominate
// Indonesian statements; Indonesian month names are translated before
// parsing. Dates printed without a year (BCA does this) take the year from
// the statement period.
func ParseDate(s string, periodYear int) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, month := range indonesianMonths {
		cleaned = strings.ReplaceAll(cleaned, month[0], month[1])
	}

	for _, layout := range statementDateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}

	// Day/month without year, e.g. "01/03"
	if periodYear > 0 {
		for _, layout := range []string{"02/01", "02-01"} {
			if t, err := time.Parse(layout, cleaned); err == nil {
				return time.Date(periodYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// LooksLikeDate reports whether a cell parses as a statement date
func LooksLikeDate(s string, periodYear int) bool {
	_, err := ParseDate(s, periodYear)
	return err == nil
}
