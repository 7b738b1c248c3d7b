package banks

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// NewPermata parses PermataBank statements: one amount column with a
// separate D/K flag column.
func NewPermata(logger arbor.ILogger) *tableAdapter {
	return &tableAdapter{
		name:    "PermataBank",
		code:    "PERMATA",
		logger:  logger,
		markers: []string{"PERMATABANK", "BANK PERMATA", "PERMATAMOBILE"},
		layout: columnLayout{
			MinColumns: 5,
			DateCol:    0,
			DescCol:    1,
			RefCol:     -1,
			DebitCol:   -1,
			CreditCol:  -1,
			AmountCol:  2,
			FlagCol:    3,
			DebitFlag:  "D",
			CreditFlag: "K",
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
