package banks

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// NewDanamon parses Bank Danamon statements with split debit/kredit columns.
func NewDanamon(logger arbor.ILogger) *tableAdapter {
	return &tableAdapter{
		name:    "Bank Danamon",
		code:    "DANAMON",
		logger:  logger,
		markers: []string{"BANK DANAMON", "DANAMON ONLINE", "D-BANK"},
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
