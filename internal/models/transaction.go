package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// StandardizedTransaction is the canonical bank-statement row shape shared by
// all adapters and exporters. Amounts are fixed-point decimals; exactly one of
// Debit/Credit is non-zero for a valid row.
type StandardizedTransaction struct {
	Date           time.Time       `json:"date"`
	PostingDate    *time.Time      `json:"posting_date,omitempty"`
	EffectiveDate  *time.Time      `json:"effective_date,omitempty"`
	Description    string          `json:"description"`
	TxType         string          `json:"transaction_type"`
	RefNumber      string          `json:"reference_number"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	Balance        decimal.Decimal `json:"balance"`
	Branch         string          `json:"branch,omitempty"`
	AdditionalInfo string          `json:"additional_info,omitempty"`
	BankName       string          `json:"bank_name,omitempty"`
	AccountNumber  string          `json:"account_number,omitempty"`
	AccountHolder  string          `json:"account_holder,omitempty"`
	// SourceSeq preserves the position within the source page for
	// deterministic ordering after parallel chunk processing.
	SourceSeq int `json:"-"`
}

// Fingerprint identifies a transaction for deduplication across chunk
// overlaps: (date, debit, credit, balance).
func (t *StandardizedTransaction) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%s",
		t.Date.Format("2006-01-02"),
		t.Debit.String(),
		t.Credit.String(),
		t.Balance.String(),
	)
}

// Valid reports whether the debit/credit exclusivity invariant holds
func (t *StandardizedTransaction) Valid() bool {
	if t.Debit.IsNegative() || t.Credit.IsNegative() {
		return false
	}
	return !(t.Debit.IsPositive() && t.Credit.IsPositive())
}

// DedupeTransactions removes fingerprint duplicates, keeping the first
// occurrence, and restores deterministic (date, source sequence) ordering.
func DedupeTransactions(txs []StandardizedTransaction) []StandardizedTransaction {
	seen := make(map[string]struct{}, len(txs))
	out := make([]StandardizedTransaction, 0, len(txs))
	for _, tx := range txs {
		fp := tx.Fingerprint()
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].SourceSeq < out[j].SourceSeq
	})
	return out
}

// AccountIdentity is the bank/account metadata extracted alongside transactions
type AccountIdentity struct {
	BankName      string `json:"nama_bank"`
	AccountNumber string `json:"nomor_rekening"`
	AccountHolder string `json:"nama_pemegang"`
	Period        string `json:"periode"`
	Currency      string `json:"mata_uang,omitempty"`
	Branch        string `json:"cabang,omitempty"`
}

// BankParseOutput is what a bank adapter emits for one statement
type BankParseOutput struct {
	Account      AccountIdentity           `json:"account"`
	Transactions []StandardizedTransaction `json:"transactions"`
	OpeningSaldo decimal.Decimal           `json:"saldo_awal"`
	ClosingSaldo decimal.Decimal           `json:"saldo_akhir"`
}
