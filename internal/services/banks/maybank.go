package banks

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// NewMaybank parses Maybank Indonesia statements with split debit/kredit
// columns.
func NewMaybank(logger arbor.ILogger) *tableAdapter {
	return &tableAdapter{
		name:    "Maybank Indonesia",
		code:    "MAYBANK",
		logger:  logger,
		markers: []string{"MAYBANK", "M2U", "BANK INTERNASIONAL INDONESIA"},
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
			AccountNumber: regexp.MustCompile(`(?i)NO\.?\s*REKENING\s*[:.]?\s*([0-9][0-9\-]+)`),
			AccountHolder: regexp.MustCompile(`(?i)NAMA\s*[:.]?\s*([^\n]+)`),
			Period:        regexp.MustCompile(`(?i)PERIODE\s*[:.]?\s*([^\n]+)`),
			Branch:        regexp.MustCompile(`(?i)CABANG\s*[:.]?\s*([^\n]+)`),
		},
	}
}
