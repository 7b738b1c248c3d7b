package banks

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// NewBRI parses BRI (Bank Rakyat Indonesia) statements: a transaction code
// column (sandi) between description and the split amount columns.
func NewBRI(logger arbor.ILogger) *tableAdapter {
	return &tableAdapter{
		name:    "Bank Rakyat Indonesia",
		code:    "BRI",
		logger:  logger,
		markers: []string{"BANK RAKYAT INDONESIA", "BRITAMA", "BRIMO"},
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
			Period:        regexp.MustCompile(`(?i)PERIODE\s*[:.]?\s*([^\n]+)`),
			Branch:        regexp.MustCompile(`(?i)UNIT\s+KERJA\s*[:.]?\s*([^\n]+)|CABANG\s*[:.]?\s*([^\n]+)`),
		},
	}
}
