package banks

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// NewBCA parses BCA (Bank Central Asia) statements. BCA prints dates without
// a year (DD/MM), a single mutation column with a trailing DB marker for
// debits, and the branch code between description and amount.
func NewBCA(logger arbor.ILogger) *tableAdapter {
	return &tableAdapter{
		name:    "Bank Central Asia",
		code:    "BCA",
		logger:  logger,
		markers: []string{"BANK CENTRAL ASIA", "KLIKBCA", "REKENING TAHAPAN BCA"},
		layout: columnLayout{
			MinColumns: 4,
			DateCol:    0,
			DescCol:    1,
			RefCol:     -1,
			DebitCol:   -1,
			CreditCol:  -1,
			AmountCol:  3,
			FlagCol:    3,
			DebitFlag:  "DB",
			BalanceCol: 4,
		},
		identity: identityPatterns{
			AccountNumber: regexp.MustCompile(`(?i)NO\.?\s*REKENING\s*[:.]?\s*([0-9][0-9.\-]+)`),
			AccountHolder: regexp.MustCompile(`(?i)NAMA\s*[:.]?\s*([^\n]+)`),
			Period:        regexp.MustCompile(`(?i)PERIODE\s*[:.]?\s*([^\n]+)`),
			Branch:        regexp.MustCompile(`(?i)KCU\s+([^\n]+)|KCP\s+([^\n]+)`),
			OpeningSaldo:  regexp.MustCompile(`(?i)SALDO\s+AWAL\s*[:.]?\s*([0-9.,]+)`),
			ClosingSaldo:  regexp.MustCompile(`(?i)SALDO\s+AKHIR\s*[:.]?\s*([0-9.,]+)`),
		},
	}
}
