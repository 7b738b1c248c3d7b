package exporters

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// rekeningHeaders is the 13-column bank statement contract, one row per
// transaction with account identity repeated.
var rekeningHeaders = []string{
	"No",
	"Nama Bank",
	"Nomor Rekening",
	"Nama Pemegang",
	"Periode",
	"Mata Uang",
	"Tanggal",
	"Keterangan",
	"No. Referensi",
	"Jenis Transaksi",
	"Debit",
	"Kredit",
	"Saldo",
}

// RekeningXLSX renders bank statements, one row per transaction
type RekeningXLSX struct {
	logger arbor.ILogger
}

var _ interfaces.Exporter = (*RekeningXLSX)(nil)

func NewRekeningXLSX(logger arbor.ILogger) *RekeningXLSX {
	return &RekeningXLSX{logger: logger}
}

func (e *RekeningXLSX) ContentType() string   { return xlsxContentType }
func (e *RekeningXLSX) FileExtension() string { return "xlsx" }

func (e *RekeningXLSX) Render(results []*models.ScanResult) ([]byte, error) {
	b, err := newSheetBuilder("Rekening Koran")
	if err != nil {
		return nil, err
	}
	if err := b.writeHeader(rekeningHeaders); err != nil {
		return nil, err
	}

	no := 0
	for _, result := range results {
		var p models.RekeningKoranPayload
		if err := result.DecodePayload(&p); err != nil {
			return nil, models.NewProcessError(models.ErrKindInternal, "exporters.rekening",
				fmt.Errorf("result %s: %w", result.ID, err))
		}
		for _, tx := range p.Transactions {
			no++
			if err := b.writeRow([]interface{}{
				no,
				p.BankInfo.BankName,
				p.BankInfo.AccountNumber,
				p.BankInfo.AccountHolder,
				p.BankInfo.Period,
				p.BankInfo.Currency,
				tx.Date.Format("02/01/2006"),
				tx.Description,
				tx.RefNumber,
				tx.TxType,
				tx.Debit,
				tx.Credit,
				tx.Balance,
			}); err != nil {
				return nil, err
			}
		}
	}

	e.logger.Debug().Int("results", len(results)).Int("transactions", no).Msg("Rendered rekening koran workbook")
	return b.bytes()
}
