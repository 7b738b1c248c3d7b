package exporters

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/xuri/excelize/v2"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// fakturHeaders is the 19-column flat-table contract. Seller, buyer, invoice
// and financial fields repeat on every item row so the sheet filters and
// pivots without merged cells.
var fakturHeaders = []string{
	"No",
	"Nomor Faktur",
	"Tanggal Faktur",
	"Referensi",
	"Nama Penjual",
	"NPWP Penjual",
	"Alamat Penjual",
	"Nama Pembeli",
	"NPWP Pembeli",
	"Alamat Pembeli",
	"Deskripsi Barang/Jasa",
	"Kuantitas",
	"Harga Satuan",
	"Total Baris",
	"DPP",
	"PPN",
	"Total Faktur",
	"Confidence",
	"File ID",
}

const (
	fakturColTotalBaris = 14
	fakturColDPP        = 15
	fakturColPPN        = 16
)

// FakturXLSX renders Faktur Pajak results into the 19-column spreadsheet
type FakturXLSX struct {
	logger arbor.ILogger
}

var _ interfaces.Exporter = (*FakturXLSX)(nil)

func NewFakturXLSX(logger arbor.ILogger) *FakturXLSX {
	return &FakturXLSX{logger: logger}
}

func (e *FakturXLSX) ContentType() string   { return xlsxContentType }
func (e *FakturXLSX) FileExtension() string { return "xlsx" }

func (e *FakturXLSX) Render(results []*models.ScanResult) ([]byte, error) {
	b, err := newSheetBuilder("Faktur Pajak")
	if err != nil {
		return nil, err
	}
	if err := b.writeHeader(fakturHeaders); err != nil {
		return nil, err
	}
	firstDataRow := b.row

	no := 0
	for _, result := range results {
		var p models.FakturPajakPayload
		if err := result.DecodePayload(&p); err != nil {
			return nil, models.NewProcessError(models.ErrKindInternal, "exporters.faktur",
				fmt.Errorf("result %s: %w", result.ID, err))
		}

		items := p.Items
		if len(items) == 0 {
			// Header-only extraction still gets one row. Its item total stays
			// zero; the document totals live in the DPP/PPN columns and the
			// grand-total SUM must not count them twice.
			items = []models.LineItem{{}}
		}
		for _, item := range items {
			no++
			if err := b.writeRow([]interface{}{
				no,
				p.Invoice.Number,
				p.Invoice.IssueDate,
				p.Invoice.Reference,
				p.Seller.Name,
				p.Seller.NPWP,
				p.Seller.Address,
				p.Buyer.Name,
				p.Buyer.NPWP,
				p.Buyer.Address,
				item.Description,
				item.Quantity,
				item.UnitPrice,
				item.Total,
				p.Financials.DPP,
				p.Financials.PPN,
				p.Financials.Total,
				result.Confidence,
				result.FileID,
			}); err != nil {
				return nil, err
			}
		}
	}

	// Grand-total row: SUM formulas over the item totals so edited cells
	// recompute in the consumer.
	totalRow := b.row
	cell, _ := excelize.CoordinatesToCellName(11, totalRow)
	if err := b.file.SetCellValue(b.sheet, cell, "GRAND TOTAL"); err != nil {
		return nil, err
	}
	for _, col := range []int{fakturColTotalBaris, fakturColDPP, fakturColPPN} {
		if err := b.sumFormula(col, firstDataRow); err != nil {
			return nil, err
		}
	}
	if err := b.bold(1, len(fakturHeaders), totalRow); err != nil {
		return nil, err
	}

	e.logger.Debug().Int("results", len(results)).Int("rows", no).Msg("Rendered faktur pajak workbook")
	return b.bytes()
}
