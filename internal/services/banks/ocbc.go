package banks

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// NewOCBC parses OCBC NISP statements with split debit/credit columns.
func NewOCBC(logger arbor.ILogger) *tableAdapter {
	return &tableAdapter{
		name:    "OCBC NISP",
		code:    "OCBC",
		logger:  logger,
		markers: []string{"OCBC NISP", "ONE MOBILE", "BANK OCBC"},
		layout: columnLayout{
			MinColumns: 4,
			DateCol:    0,
			DescCol:    1,
			RefCol:     -1,
			DebitCol:   2,
			CreditCol:  3,
			AmountCol:  -1,
			FlagCol:    -1,
			BalanceCol: 4,
		},
		identity: identityPatterns{
			AccountNumber: regexp.MustCompile(`(?i)ACCOUNT\s+NUMBER\s*[:.]?\s*([0-9][0-9\-]+)|NO\.?\s*REKENING\s*[:.]?\s*([0-9][0-9\-]+)`),
			AccountHolder: regexp.MustCompile(`(?i)ACCOUNT\s+HOLDER\s*[:.]?\s*([^\n]+)|NAMA\s*[:.]?\s*([^\n]+)`),
			Period:        regexp.MustCompile(`(?i)PERIOD\s*[:.]?\s*([^\n]+)|PERIODE\s*[:.]?\s*([^\n]+)`),
			Branch:        regexp.MustCompile(`(?i)BRANCH\s*[:.]?\s*([^\n]+)`),
			Currency:      regexp.MustCompile(`(?i)CURRENCY\s*[:.]?\s*([A-Z]{3})`),
		},
	}
}
