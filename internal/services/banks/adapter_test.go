package banks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
)

func bcaStatement() *models.OCRResult {
	headerText := "PT BANK CENTRAL ASIA Tbk\n" +
		"REKENING TAHAPAN BCA\n" +
		"NO. REKENING : 1234567890\n" +
		"NAMA : PT MAJU JAYA\n" +
		"PERIODE : MARET 2025\n"
	return &models.OCRResult{
		Text: headerText,
		Pages: []models.OCRPage{{
			PageNumber: 1,
			Text:       headerText,
			Tables: []models.OCRTable{{Rows: [][]string{
				{"TANGGAL", "KETERANGAN", "CBG", "MUTASI", "SALDO"},
				{"", "SALDO AWAL", "", "", "10.000.000,00"},
				{"01/03", "TRSF E-BANKING CR", "0000", "5.000.000,00", "15.000.000,00"},
				{"03/03", "BI-FAST DB", "0000", "2.500.000,00 DB", "12.500.000,00"},
				{"", "TANGGAL :01/03", "", "", ""},
				{"05/03", "BIAYA ADM", "0000", "17.500,00 DB", "12.482.500,00"},
			}}},
		}},
	}
}

func TestBCAParse(t *testing.T) {
	adapter := NewBCA(common.GetLogger())
	require.True(t, adapter.Detect(bcaStatement().Text))

	out, err := adapter.Parse(bcaStatement())
	require.NoError(t, err)

	assert.Equal(t, "1234567890", out.Account.AccountNumber)
	assert.Equal(t, "PT MAJU JAYA", out.Account.AccountHolder)
	assert.Equal(t, "Bank Central Asia", out.Account.BankName)
	assert.Equal(t, "10000000", out.OpeningSaldo.String())
	assert.Equal(t, "12482500", out.ClosingSaldo.String())

	require.Len(t, out.Transactions, 3)

	first := out.Transactions[0]
	assert.Equal(t, "2025-03-01", first.Date.Format("2006-01-02"))
	assert.Equal(t, "5000000", first.Credit.String())
	assert.True(t, first.Debit.IsZero())
	// Continuation row folded into the description
	assert.Contains(t, first.Description, "TRSF E-BANKING CR")

	second := out.Transactions[1]
	assert.Equal(t, "2500000", second.Debit.String())
	assert.True(t, second.Credit.IsZero())

	third := out.Transactions[2]
	assert.Equal(t, "17500", third.Debit.String())
	assert.Equal(t, "12482500", third.Balance.String())
}

func TestMandiriParse(t *testing.T) {
	header := "PT BANK MANDIRI (PERSERO) Tbk\nNOMOR REKENING : 900-00-1234567-8\nPERIODE TRANSAKSI : 01/03/2025 - 31/03/2025\n"
	ocr := &models.OCRResult{
		Text: header,
		Pages: []models.OCRPage{{
			PageNumber: 1,
			Tables: []models.OCRTable{{Rows: [][]string{
				{"Tanggal", "Keterangan", "Referensi", "Debit", "Kredit", "Saldo"},
				{"02/03/2025", "TRANSFER MASUK", "FT25061ABC", "", "10.000.000,00", "25.000.000,00"},
				{"04/03/2025", "PEMBAYARAN SUPPLIER", "FT25063DEF", "7.500.000,00", "", "17.500.000,00"},
			}}},
		}},
	}

	adapter := NewMandiri(common.GetLogger())
	require.True(t, adapter.Detect(header))

	out, err := adapter.Parse(ocr)
	require.NoError(t, err)

	assert.Equal(t, "900-00-1234567-8", out.Account.AccountNumber)
	require.Len(t, out.Transactions, 2)
	assert.Equal(t, "FT25061ABC", out.Transactions[0].RefNumber)
	assert.Equal(t, "10000000", out.Transactions[0].Credit.String())
	assert.Equal(t, "7500000", out.Transactions[1].Debit.String())
	// Opening saldo reconstructed from the first transaction
	assert.Equal(t, "15000000", out.OpeningSaldo.String())
	assert.Equal(t, "17500000", out.ClosingSaldo.String())
}

func TestPermataFlagColumn(t *testing.T) {
	header := "PERMATABANK\nNO. REKENING : 410123456\nPERIODE : 03/2025\n"
	ocr := &models.OCRResult{
		Text: header,
		Pages: []models.OCRPage{{
			Tables: []models.OCRTable{{Rows: [][]string{
				{"10/03/2025", "SETORAN TUNAI", "1.000.000,00", "K", "3.000.000,00"},
				{"11/03/2025", "TARIKAN ATM", "500.000,00", "D", "2.500.000,00"},
			}}},
		}},
	}

	out, err := NewPermata(common.GetLogger()).Parse(ocr)
	require.NoError(t, err)
	require.Len(t, out.Transactions, 2)
	assert.Equal(t, "1000000", out.Transactions[0].Credit.String())
	assert.Equal(t, "500000", out.Transactions[1].Debit.String())
}

func TestBTNSignedAmountColumn(t *testing.T) {
	header := "BANK TABUNGAN NEGARA\nNO REKENING : 00012-01-55-123456-7\n"
	ocr := &models.OCRResult{
		Text: header,
		Pages: []models.OCRPage{{
			Tables: []models.OCRTable{{Rows: [][]string{
				{"05/03/2025", "C01", "SETORAN", "2.000.000,00", "4.000.000,00"},
				{"06/03/2025", "D02", "PENARIKAN", "-750.000,00", "3.250.000,00"},
			}}},
		}},
	}

	out, err := NewBTN(common.GetLogger()).Parse(ocr)
	require.NoError(t, err)
	require.Len(t, out.Transactions, 2)
	assert.Equal(t, "2000000", out.Transactions[0].Credit.String())
	assert.Equal(t, "SETORAN", out.Transactions[0].Description)
	assert.Equal(t, "C01", out.Transactions[0].RefNumber)
	assert.Equal(t, "750000", out.Transactions[1].Debit.String())
}

func TestParseFailsWithoutTransactions(t *testing.T) {
	ocr := &models.OCRResult{
		Text:  "PT BANK CENTRAL ASIA Tbk",
		Pages: []models.OCRPage{{Text: "no tables here"}},
	}

	_, err := NewBCA(common.GetLogger()).Parse(ocr)
	require.Error(t, err)
	assert.Equal(t, models.ErrKindExtractorParse, models.KindOf(err))
}

func TestRegistryDetectIsDeterministic(t *testing.T) {
	registry := NewRegistry(common.GetLogger())

	adapter, ok := registry.Detect("PT BANK CENTRAL ASIA Tbk REKENING KORAN")
	require.True(t, ok)
	assert.Equal(t, "BCA", adapter.BankCode())

	adapter, ok = registry.Detect("LAPORAN CIMB NIAGA OCTO MOBILE")
	require.True(t, ok)
	assert.Equal(t, "CIMB", adapter.BankCode())

	_, ok = registry.Detect("SOME FOREIGN BANK STATEMENT")
	assert.False(t, ok)

	assert.Len(t, registry.Adapters(), 11)
}

func TestRegistryCoversElevenBanks(t *testing.T) {
	registry := NewRegistry(common.GetLogger())

	codes := make(map[string]bool)
	for _, adapter := range registry.Adapters() {
		codes[adapter.BankCode()] = true
	}
	for _, code := range []string{"BCA", "MANDIRI", "BNI", "BRI", "CIMB", "DANAMON", "PERMATA", "PANIN", "OCBC", "BTN", "MAYBANK"} {
		assert.True(t, codes[code], "missing adapter %s", code)
	}
}

func TestDedupeAcrossChunkOverlap(t *testing.T) {
	header := "PT BANK MANDIRI (PERSERO) Tbk\nPERIODE : 01/03/2025 - 31/03/2025\n"
	rows := [][]string{
		{"02/03/2025", "TRANSFER MASUK", "REF1", "", "10.000.000,00", "25.000.000,00"},
	}
	ocr := &models.OCRResult{
		Text: header,
		Pages: []models.OCRPage{
			{Tables: []models.OCRTable{{Rows: rows}}},
			{Tables: []models.OCRTable{{Rows: rows}}}, // overlap page seen twice
		},
	}

	out, err := NewMandiri(common.GetLogger()).Parse(ocr)
	require.NoError(t, err)
	require.Len(t, out.Transactions, 2)

	deduped := models.DedupeTransactions(out.Transactions)
	assert.Len(t, deduped, 1)
}
