package exporters

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// pph23Headers is the 20-column contract, ordered to match the payload
// field order exactly.
var pph23Headers = []string{
	"Nomor Dokumen",
	"Masa Pajak",
	"Tanggal Dokumen",
	"Status Dokumen",
	"Nama Penerima",
	"NPWP Penerima",
	"NIK Penerima",
	"Alamat Penerima",
	"Nama Pemotong",
	"NPWP Pemotong",
	"Alamat Pemotong",
	"Kode Objek Pajak",
	"Nama Objek Pajak",
	"DPP",
	"Tarif (%)",
	"PPh",
	"Jenis Dokumen Dasar",
	"Nomor Dokumen Dasar",
	"Tanggal Dokumen Dasar",
	"Keterangan",
}

// PPh23XLSX renders PPh23 withholding slips, one row per document
type PPh23XLSX struct {
	logger arbor.ILogger
}

var _ interfaces.Exporter = (*PPh23XLSX)(nil)

func NewPPh23XLSX(logger arbor.ILogger) *PPh23XLSX {
	return &PPh23XLSX{logger: logger}
}

func (e *PPh23XLSX) ContentType() string   { return xlsxContentType }
func (e *PPh23XLSX) FileExtension() string { return "xlsx" }

func (e *PPh23XLSX) Render(results []*models.ScanResult) ([]byte, error) {
	b, err := newSheetBuilder("PPh23")
	if err != nil {
		return nil, err
	}
	if err := b.writeHeader(pph23Headers); err != nil {
		return nil, err
	}

	for _, result := range results {
		var p models.PPh23Payload
		if err := result.DecodePayload(&p); err != nil {
			return nil, models.NewProcessError(models.ErrKindInternal, "exporters.pph23",
				fmt.Errorf("result %s: %w", result.ID, err))
		}
		if err := b.writeRow([]interface{}{
			p.NomorDokumen,
			p.MasaPajak,
			p.TanggalDokumen,
			p.StatusDokumen,
			p.NamaPenerima,
			p.NPWPPenerima,
			p.NIKPenerima,
			p.AlamatPenerima,
			p.NamaPemotong,
			p.NPWPPemotong,
			p.AlamatPemotong,
			p.KodeObjekPajak,
			p.NamaObjekPajak,
			p.DPP,
			p.Tarif,
			p.PPh,
			p.JenisDokumenDasar,
			p.NomorDokumenDasar,
			p.TanggalDokumenDasar,
			p.Keterangan,
		}); err != nil {
			return nil, err
		}
	}

	e.logger.Debug().Int("results", len(results)).Msg("Rendered PPh23 workbook")
	return b.bytes()
}
