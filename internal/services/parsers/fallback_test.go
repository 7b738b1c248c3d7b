package parsers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
)

func TestFallbackFakturPajak(t *testing.T) {
	text := "FAKTUR PAJAK\n" +
		"Kode dan Nomor Seri Faktur Pajak: 010.000-25.00000123\n" +
		"Pengusaha Kena Pajak\nNPWP : 01.234.567.8-901.000\n" +
		"Pembeli\nNPWP : 02.345.678.9-012.000\n" +
		"Dasar Pengenaan Pajak : 100.000.000,00\n" +
		"Total PPN : 11.000.000,00\n" +
		"Tanggal 15/03/2025\n"

	f := NewFallback(common.GetLogger())
	raw, err := f.Extract(models.DocTypeFakturPajak, &models.OCRResult{Text: text})
	require.NoError(t, err)

	var p models.FakturPajakPayload
	require.NoError(t, json.Unmarshal(raw, &p))

	assert.Equal(t, "010.000-25.00000123", p.Invoice.Number)
	assert.Equal(t, "01.234.567.8-901.000", p.Seller.NPWP)
	assert.Equal(t, "02.345.678.9-012.000", p.Buyer.NPWP)
	assert.Equal(t, "100000000", p.Financials.DPP.String())
	assert.Equal(t, "11000000", p.Financials.PPN.String())
}

func TestFallbackPPh23(t *testing.T) {
	text := "BUKTI PEMOTONGAN PPH PASAL 23\n" +
		"NOMOR : BP23-0001234\n" +
		"MASA PAJAK : 03-2025\n" +
		"NPWP : 01.234.567.8-901.000\n" +
		"DPP : 50.000.000,00\n" +
		"TARIF : 2\n" +
		"PPH DIPOTONG : 1.000.000,00\n"

	f := NewFallback(common.GetLogger())
	raw, err := f.Extract(models.DocTypePPh23, &models.OCRResult{Text: text})
	require.NoError(t, err)

	var p models.PPh23Payload
	require.NoError(t, json.Unmarshal(raw, &p))

	assert.Equal(t, "BP23-0001234", p.NomorDokumen)
	assert.Equal(t, "03-2025", p.MasaPajak)
	assert.Equal(t, "50000000", p.DPP.String())
	assert.Equal(t, "1000000", p.PPh.String())
}

func TestFallbackInvoice(t *testing.T) {
	text := "INVOICE NO: INV/2025/03/0042\nDate 20/03/2025\nGRAND TOTAL : Rp 5.500.000,00\n"

	f := NewFallback(common.GetLogger())
	raw, err := f.Extract(models.DocTypeInvoice, &models.OCRResult{Text: text})
	require.NoError(t, err)

	var p models.InvoicePayload
	require.NoError(t, json.Unmarshal(raw, &p))

	assert.Equal(t, "INV/2025/03/0042", p.Number)
	assert.Equal(t, "20/03/2025", p.Date)
	assert.Equal(t, "5500000", p.Financials.Total.String())
}

func TestFallbackNothingMatched(t *testing.T) {
	f := NewFallback(common.GetLogger())

	_, err := f.Extract(models.DocTypeFakturPajak, &models.OCRResult{Text: "lorem ipsum dolor"})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindExtractorParse, models.KindOf(err))

	_, err = f.Extract(models.DocTypeFakturPajak, &models.OCRResult{Text: "   "})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindExtractorParse, models.KindOf(err))
}

func TestFallbackRejectsBankStatements(t *testing.T) {
	f := NewFallback(common.GetLogger())
	_, err := f.Extract(models.DocTypeRekeningKoran, &models.OCRResult{Text: "PT BANK CENTRAL ASIA"})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindUnsupportedType, models.KindOf(err))
}
