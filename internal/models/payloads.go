package models

import (
	"github.com/shopspring/decimal"
)

// Party identifies a seller, buyer or vendor on a tax document
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	NPWP    string `json:"npwp,omitempty"`
	Email   string `json:"email,omitempty"`
}

// LineItem is one goods/services row on an invoice or faktur
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// FakturPajakPayload is the structured record for a Faktur Pajak (VAT invoice)
type FakturPajakPayload struct {
	Seller  Party `json:"seller"`
	Buyer   Party `json:"buyer"`
	Invoice struct {
		Number    string `json:"number"`
		IssueDate string `json:"issue_date"`
		Reference string `json:"reference,omitempty"`
	} `json:"invoice"`
	Financials struct {
		DPP   decimal.Decimal `json:"dpp"`
		PPN   decimal.Decimal `json:"ppn"`
		Total decimal.Decimal `json:"total"`
	} `json:"financials"`
	Items []LineItem `json:"items"`
}

// PPh21Payload is the structured record for a PPh21 withholding slip
type PPh21Payload struct {
	Dokumen struct {
		Nomor     string `json:"nomor"`
		MasaPajak string `json:"masa_pajak"`
		Tanggal   string `json:"tanggal"`
	} `json:"dokumen"`
	DokumenDasar struct {
		Jenis   string `json:"jenis"`
		Tanggal string `json:"tanggal"`
		Nomor   string `json:"nomor"`
	} `json:"dokumen_dasar"`
	IdentitasPemotong Party `json:"identitas_pemotong"`
	Penerima          Party `json:"penerima"`
	Financials        struct {
		DPP   decimal.Decimal `json:"dpp"`
		Tarif decimal.Decimal `json:"tarif"`
		PPh   decimal.Decimal `json:"pph"`
	} `json:"financials"`
}

// PPh23Payload is the structured record for a PPh23 withholding slip.
// Field order matches the 20-column export contract.
type PPh23Payload struct {
	NomorDokumen        string          `json:"nomor_dokumen"`
	MasaPajak           string          `json:"masa_pajak"`
	TanggalDokumen      string          `json:"tanggal_dokumen"`
	StatusDokumen       string          `json:"status_dokumen"`
	NamaPenerima        string          `json:"nama_penerima"`
	NPWPPenerima        string          `json:"npwp_penerima"`
	NIKPenerima         string          `json:"nik_penerima"`
	AlamatPenerima      string          `json:"alamat_penerima"`
	NamaPemotong        string          `json:"nama_pemotong"`
	NPWPPemotong        string          `json:"npwp_pemotong"`
	AlamatPemotong      string          `json:"alamat_pemotong"`
	KodeObjekPajak      string          `json:"kode_objek_pajak"`
	NamaObjekPajak      string          `json:"nama_objek_pajak"`
	DPP                 decimal.Decimal `json:"dpp"`
	Tarif               decimal.Decimal `json:"tarif"`
	PPh                 decimal.Decimal `json:"pph"`
	JenisDokumenDasar   string          `json:"jenis_dokumen_dasar"`
	NomorDokumenDasar   string          `json:"nomor_dokumen_dasar"`
	TanggalDokumenDasar string          `json:"tanggal_dokumen_dasar"`
	Keterangan          string          `json:"keterangan"`
}

// InvoicePayload is the structured record for a commercial invoice
type InvoicePayload struct {
	Number     string     `json:"number"`
	Date       string     `json:"date"`
	Vendor     Party      `json:"vendor"`
	Customer   Party      `json:"customer"`
	LineItems  []LineItem `json:"line_items"`
	Financials struct {
		Subtotal decimal.Decimal `json:"subtotal"`
		Tax      decimal.Decimal `json:"tax"`
		Total    decimal.Decimal `json:"total"`
	} `json:"financials"`
}

// RekeningKoranPayload is the structured record for a bank statement
type RekeningKoranPayload struct {
	BankInfo  AccountIdentity `json:"bank_info"`
	SaldoInfo struct {
		Awal  decimal.Decimal `json:"awal"`
		Akhir decimal.Decimal `json:"akhir"`
	} `json:"saldo_info"`
	Transactions []StandardizedTransaction `json:"transactions"`
	// ParseError is set when the AI extractor repeatedly returned
	// unparseable output; the merge policy treats this as mapper failure.
	ParseError bool `json:"parse_error,omitempty"`
}
