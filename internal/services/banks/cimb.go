package banks

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// NewCIMB parses CIMB Niaga statements with a cheque number column and split
// debit/credit columns.
func NewCIMB(logger arbor.ILogger) *tableAdapter {
	return &tableAdapter{
		name:    "CIMB Niaga",
		code:    "CIMB",
		logger:  logger,
		markers: []string{"CIMB NIAGA", "OCTO MOBILE", "OCTO CLICKS"},
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
			AccountNumber: regexp.MustCompile(`(?i)ACCOUNT\s+NO\.?\s*[:.]?\s*([0-9][0-9\-]+)|NO\.?\s*REKENING\s*[:.]?\s*([0-9][0-9\-]+)`),
			AccountHolder: regexp.MustCompile(`(?i)ACCOUNT\s+NAME\s*[:.]?\s*([^\n]+)|NAMA\s*[:.]?\s*([^\n]+)`),
			Period:        regexp.MustCompile(`(?i)STATEMENT\s+PERIOD\s*[:.]?\s*([^\n]+)|PERIODE\s*[:.]?\s*([^\n]+)`),
			Branch:        regexp.MustCompile(`(?i)BRANCH\s*[:.]?\s*([^\n]+)`),
			Currency:      regexp.MustCompile(`(?i)CURRENCY\s*[:.]?\s*([A-Z]{3})`),
		},
	}
}
