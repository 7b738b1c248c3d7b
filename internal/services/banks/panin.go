package banks

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// NewPanin parses PaninBank statements: one mutation column with a DB/CR
// flag column.
func NewPanin(logger arbor.ILogger) *tableAdapter {
	return &tableAdapter{
		name:    "PaninBank",
		code:    "PANIN",
		logger:  logger,
		markers: []string{"PANINBANK", "PANIN BANK", "MOBILEPANIN"},
		layout: columnLayout{
			MinColumns: 5,
			DateCol:    0,
			DescCol:    1,
			RefCol:     -1,
			DebitCol:   -1,
			CreditCol:  -1,
			AmountCol:  2,
			FlagCol:    3,
			DebitFlag:  "DB",
			CreditFlag: "CR",
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
