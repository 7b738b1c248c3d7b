package banks

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// NewBTN parses BTN (Bank Tabungan Negara) statements: a transaction code
// column and a signed mutation column where withdrawals print negative.
func NewBTN(logger arbor.ILogger) *tableAdapter {
	return &tableAdapter{
		name:    "Bank Tabungan Negara",
		code:    "BTN",
		logger:  logger,
		markers: []string{"BANK TABUNGAN NEGARA", "BANK BTN", "BTN BATARA"},
		layout: columnLayout{
			MinColumns: 4,
			DateCol:    0,
			DescCol:    2,
			RefCol:     1,
			DebitCol:   -1,
			CreditCol:  -1,
			AmountCol:  3,
			FlagCol:    -1,
			BalanceCol: 4,
		},
		identity: identityPatterns{
			AccountNumber: regexp.MustCompile(`(?i)NO\.?\s*REKENING\s*[:.]?\s*([0-9][0-9\-]+)`),
			AccountHolder: regexp.MustCompile(`(?i)NAMA\s*[:.]?\s*([^\n]+)`),
			Period:        regexp.MustCompile(`(?i)PERIODE\s*[:.]?\s*([^\n]+)`),
			Branch:        regexp.MustCompile(`(?i)KANTOR\s+CABANG\s*[:.]?\s*([^\n]+)|CABANG\s*[:.]?\s*([^\n]+)`),
		},
	}
}
