package banks

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// NewMandiri parses Bank Mandiri statements: full dates, a reference column
// and split debit/credit columns.
func NewMandiri(logger arbor.ILogger) *tableAdapter {
	return &tableAdapter{
		name:    "Bank Mandiri",
		code:    "MANDIRI",
		logger:  logger,
		markers: []string{"BANK MANDIRI", "LIVIN' BY MANDIRI", "MANDIRI TABUNGAN"},
		layout: columnLayout{
			MinColumns: 5,
			DateCol:    0,
			DescCol:    1,
			RefCol:     2,
			DebitCol:   3,
			CreditCol:  4,
			AmountCol:  -1,
			FlagCol:    -1,
			BalanceCol: 5,
		},
		identity: identityPatterns{
			AccountNumber: regexp.MustCompile(`(?i)NOMOR\s+REKENING\s*[:.]?\s*([0-9][0-9\-]+)`),
			AccountHolder: regexp.MustCompile(`(?i)NAMA\s*[:.]?\s*([^\n]+)`),
			Period:        regexp.MustCompile(`(?i)PERIODE\s+TRANSAKSI\s*[:.]?\s*([^\n]+)|PERIODE\s*[:.]?\s*([^\n]+)`),
			Branch:        regexp.MustCompile(`(?i)CABANG\s*[:.]?\s*([^\n]+)`),
			Currency:      regexp.MustCompile(`(?i)MATA\s+UANG\s*[:.]?\s*([A-Z]{3})`),
		},
	}
}
