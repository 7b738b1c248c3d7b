package banks

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// columnLayout describes where a bank's statement table keeps each value.
// Column indexes are 0-based; -1 marks a column the bank does not print.
// Banks either split debit/credit into two columns or print one amount
// column with a D/C flag column next to it.
type columnLayout struct {
	MinColumns int
	DateCol    int
	DescCol    int
	RefCol     int
	DebitCol   int
	CreditCol  int
	AmountCol  int
	FlagCol    int
	DebitFlag  string
	CreditFlag string
	BalanceCol int
}

// identityPatterns extract the account identity from the statement header
// text. Nil patterns are skipped.
type identityPatterns struct {
	AccountNumber *regexp.Regexp
	AccountHolder *regexp.Regexp
	Period        *regexp.Regexp
	Branch        *regexp.Regexp
	Currency      *regexp.Regexp
	OpeningSaldo  *regexp.Regexp
	ClosingSaldo  *regexp.Regexp
}

var yearRe = regexp.MustCompile(`20\d{2}`)

// tableAdapter is the shared statement parsing engine. Each bank supplies
// detection markers, the table column layout and header regexes; the engine
// owns row classification, amount parsing and saldo bookkeeping.
type tableAdapter struct {
	name     string
	code     string
	markers  []string
	layout   columnLayout
	identity identityPatterns
	logger   arbor.ILogger
}

var _ interfaces.BankAdapter = (*tableAdapter)(nil)

func (a *tableAdapter) BankName() string { return a.name }
func (a *tableAdapter) BankCode() string { return a.code }

// Detect probes the statement text for the bank's markers
func (a *tableAdapter) Detect(text string) bool {
	upper := strings.ToUpper(text)
	for _, marker := range a.markers {
		if strings.Contains(upper, strings.ToUpper(marker)) {
			return true
		}
	}
	return false
}

// Parse walks the OCR tables row by row. Rows whose date cell does not parse
// are either header rows, saldo summary rows or continuation lines of the
// previous transaction's description.
func (a *tableAdapter) Parse(ocr *models.OCRResult) (*models.BankParseOutput, error) {
	out := &models.BankParseOutput{
		Account: a.extractIdentity(ocr.Text),
	}
	periodYear := a.periodYear(out.Account.Period)

	openingSet := false
	seq := 0
	var last *models.StandardizedTransaction

	for _, page := range ocr.Pages {
		for _, table := range page.Tables {
			for _, row := range table.Rows {
				if len(row) < a.layout.MinColumns {
					a.appendContinuation(last, row)
					continue
				}

				joined := strings.ToUpper(strings.Join(row, " "))
				if strings.Contains(joined, "SALDO AWAL") {
					if v, err := a.cellAmount(row, a.layout.BalanceCol); err == nil {
						out.OpeningSaldo = v
						openingSet = true
					}
					continue
				}
				if strings.Contains(joined, "SALDO AKHIR") {
					if v, err := a.cellAmount(row, a.layout.BalanceCol); err == nil {
						out.ClosingSaldo = v
					}
					continue
				}

				date, err := ParseDate(row[a.layout.DateCol], periodYear)
				if err != nil {
					a.appendContinuation(last, row)
					continue
				}

				tx, err := a.parseRow(row, date)
				if err != nil {
					a.logger.Debug().
						Err(err).
						Str("bank", a.code).
						Msg("Skipping unparseable statement row")
					continue
				}
				tx.SourceSeq = seq
				seq++
				tx.BankName = a.name
				tx.AccountNumber = out.Account.AccountNumber
				tx.AccountHolder = out.Account.AccountHolder

				out.Transactions = append(out.Transactions, *tx)
				last = &out.Transactions[len(out.Transactions)-1]
			}
		}
	}

	if len(out.Transactions) == 0 {
		return nil, models.NewProcessError(models.ErrKindExtractorParse, "banks."+a.code,
			fmt.Errorf("no transactions recognized"))
	}

	if m := matchAmount(a.identity.OpeningSaldo, ocr.Text); m != nil {
		out.OpeningSaldo = *m
		openingSet = true
	}
	if m := matchAmount(a.identity.ClosingSaldo, ocr.Text); m != nil {
		out.ClosingSaldo = *m
	}
	if !openingSet {
		first := out.Transactions[0]
		out.OpeningSaldo = first.Balance.Add(first.Debit).Sub(first.Credit)
	}
	if out.ClosingSaldo.IsZero() {
		out.ClosingSaldo = out.Transactions[len(out.Transactions)-1].Balance
	}
	return out, nil
}

// parseRow builds one transaction from a table row
func (a *tableAdapter) parseRow(row []string, date time.Time) (*models.StandardizedTransaction, error) {
	tx := &models.StandardizedTransaction{Date: date}
	tx.Description = cell(row, a.layout.DescCol)
	tx.RefNumber = cell(row, a.layout.RefCol)

	if a.layout.AmountCol >= 0 {
		amount, err := a.cellAmount(row, a.layout.AmountCol)
		if err != nil {
			return nil, err
		}
		flagCell := strings.ToUpper(cell(row, a.layout.FlagCol))
		switch {
		case a.layout.DebitFlag != "" && strings.Contains(flagCell, strings.ToUpper(a.layout.DebitFlag)):
			tx.Debit = amount.Abs()
		case a.layout.CreditFlag != "" && strings.Contains(flagCell, strings.ToUpper(a.layout.CreditFlag)):
			tx.Credit = amount.Abs()
		default:
			// No flag printed: sign decides
			if amount.IsNegative() {
				tx.Debit = amount.Abs()
			} else {
				tx.Credit = amount
			}
		}
	} else {
		debit, err := a.cellAmount(row, a.layout.DebitCol)
		if err != nil {
			return nil, err
		}
		credit, err := a.cellAmount(row, a.layout.CreditCol)
		if err != nil {
			return nil, err
		}
		tx.Debit = debit.Abs()
		tx.Credit = credit.Abs()
	}

	if a.layout.BalanceCol >= 0 {
		balance, err := a.cellAmount(row, a.layout.BalanceCol)
		if err == nil {
			tx.Balance = balance
		}
	}

	if !tx.Valid() {
		return nil, fmt.Errorf("debit/credit exclusivity violated")
	}
	return tx, nil
}

// appendContinuation folds a non-transaction row into the previous
// transaction's description. Statement descriptions regularly wrap over
// several table rows.
func (a *tableAdapter) appendContinuation(last *models.StandardizedTransaction, row []string) {
	if last == nil {
		return
	}
	var parts []string
	for _, c := range row {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		// Amount-looking cells in continuation rows are noise
		if _, err := ParseAmount(c); err == nil && len(c) > 3 {
			continue
		}
		parts = append(parts, c)
	}
	if len(parts) == 0 {
		return
	}
	last.Description = strings.TrimSpace(last.Description + " " + strings.Join(parts, " "))
}

func (a *tableAdapter) extractIdentity(text string) models.AccountIdentity {
	id := models.AccountIdentity{BankName: a.name, Currency: "IDR"}
	id.AccountNumber = matchGroup(a.identity.AccountNumber, text)
	id.AccountHolder = matchGroup(a.identity.AccountHolder, text)
	id.Period = matchGroup(a.identity.Period, text)
	id.Branch = matchGroup(a.identity.Branch, text)
	if c := matchGroup(a.identity.Currency, text); c != "" {
		id.Currency = c
	}
	return id
}

func (a *tableAdapter) periodYear(period string) int {
	m := yearRe.FindString(period)
	if m == "" {
		return 0
	}
	year := 0
	fmt.Sscanf(m, "%d", &year)
	return year
}

func (a *tableAdapter) cellAmount(row []string, col int) (decimal.Decimal, error) {
	if col < 0 || col >= len(row) {
		return decimal.Zero, nil
	}
	return ParseAmount(row[col])
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// matchGroup returns the first non-empty capture group, so alternated
// patterns (English|Indonesian labels) work with one regex.
func matchGroup(re *regexp.Regexp, text string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	for i := 1; i < len(m); i++ {
		if g := strings.TrimSpace(m[i]); g != "" {
			return g
		}
	}
	return ""
}

func matchAmount(re *regexp.Regexp, text string) *decimal.Decimal {
	raw := matchGroup(re, text)
	if raw == "" {
		return nil
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return nil
	}
	return &v
}
