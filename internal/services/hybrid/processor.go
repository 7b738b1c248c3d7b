package hybrid

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
	"github.com/arvetta/berkas/internal/services/banks"
)

// Confidence weights for the merged bank-statement record. Adapter rows are
// deterministic and carry most of the weight; mapper output and metadata
// completeness make up the rest.
const (
	weightAdapter  = 0.50
	weightMapper   = 0.30
	weightMetadata = 0.20
)

// Result is the merged output of one bank statement
type Result struct {
	Payload     models.RekeningKoranPayload
	Confidence  float64
	ModelID     string
	AdapterCode string
}

// Processor runs the rule-based bank adapter and the AI mapper concurrently
// over the same OCR output and merges the two: adapter transactions are
// trusted over mapper transactions, mapper metadata is trusted over adapter
// metadata, and each side fills the other's gaps. Both sides failing yields
// an empty record with confidence zero rather than a failed file.
type Processor struct {
	registry *banks.Registry
	mapper   interfaces.SmartMapper
	logger   arbor.ILogger
}

// NewProcessor creates the hybrid bank statement processor
func NewProcessor(registry *banks.Registry, mapper interfaces.SmartMapper, logger arbor.ILogger) *Processor {
	return &Processor{
		registry: registry,
		mapper:   mapper,
		logger:   logger,
	}
}

// Process extracts a merged bank statement record from OCR output
func (p *Processor) Process(ctx context.Context, ocr *models.OCRResult) (*Result, error) {
	var (
		wg sync.WaitGroup

		adapterOut  *models.BankParseOutput
		adapterCode string
		adapterErr  error

		mapperOut *models.RekeningKoranPayload
		modelID   string
		mapperErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		adapter, ok := p.registry.Detect(ocr.Text)
		if !ok {
			adapterErr = models.NewProcessError(models.ErrKindUnsupportedType, "hybrid.adapter", nil)
			return
		}
		adapterCode = adapter.BankCode()
		adapterOut, adapterErr = adapter.Parse(ocr)
	}()
	go func() {
		defer wg.Done()
		var payload json.RawMessage
		payload, modelID, mapperErr = p.mapper.Map(ctx, models.DocTypeRekeningKoran, ocr)
		if mapperErr != nil {
			return
		}
		var parsed models.RekeningKoranPayload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			mapperErr = models.NewProcessError(models.ErrKindExtractorParse, "hybrid.mapper", err)
			return
		}
		if parsed.ParseError {
			mapperErr = models.NewProcessError(models.ErrKindExtractorParse, "hybrid.mapper", nil)
			return
		}
		mapperOut = &parsed
	}()
	wg.Wait()

	if ctx.Err() != nil {
		return nil, models.NewProcessError(models.ErrKindCancelled, "hybrid", ctx.Err())
	}

	adapterOK := adapterErr == nil && adapterOut != nil
	mapperOK := mapperErr == nil && mapperOut != nil

	if adapterErr != nil {
		p.logger.Warn().Err(adapterErr).Msg("Bank adapter side failed")
	}
	if mapperErr != nil {
		p.logger.Warn().Err(mapperErr).Str("model", modelID).Msg("AI mapper side failed")
	}

	result := &Result{
		ModelID:     modelID,
		AdapterCode: adapterCode,
	}

	switch {
	case adapterOK && mapperOK:
		result.Payload = p.merge(adapterOut, mapperOut)
	case adapterOK:
		result.Payload = fromAdapter(adapterOut)
	case mapperOK:
		mapperOut.Transactions = models.DedupeTransactions(mapperOut.Transactions)
		result.Payload = *mapperOut
	default:
		// Both sides failed: an empty record, not a failed file
		result.Payload = models.RekeningKoranPayload{ParseError: true}
		result.Confidence = 0
		return result, nil
	}

	result.Confidence = p.confidence(adapterOK, mapperOK, &result.Payload)
	return result, nil
}

// Combine merges per-window statement results into one document-level
// result. Transactions concatenate and dedupe by fingerprint, identity
// fields take the first non-empty value, the closing saldo the last, and
// confidence averages across windows.
func Combine(parts []*Result) *Result {
	if len(parts) == 0 {
		return &Result{Payload: models.RekeningKoranPayload{ParseError: true}}
	}
	if len(parts) == 1 {
		return parts[0]
	}

	out := &Result{}
	var txs []models.StandardizedTransaction
	var confidenceSum float64
	parseErrors := 0
	for _, part := range parts {
		txs = append(txs, part.Payload.Transactions...)
		fillIdentity(&out.Payload.BankInfo, &part.Payload.BankInfo)
		if out.Payload.SaldoInfo.Awal.IsZero() {
			out.Payload.SaldoInfo.Awal = part.Payload.SaldoInfo.Awal
		}
		if !part.Payload.SaldoInfo.Akhir.IsZero() {
			out.Payload.SaldoInfo.Akhir = part.Payload.SaldoInfo.Akhir
		}
		if out.ModelID == "" {
			out.ModelID = part.ModelID
		}
		if out.AdapterCode == "" {
			out.AdapterCode = part.AdapterCode
		}
		if part.Payload.ParseError {
			parseErrors++
		}
		confidenceSum += part.Confidence
	}
	out.Payload.Transactions = models.DedupeTransactions(txs)
	if parseErrors == len(parts) {
		out.Payload.ParseError = true
		return out
	}
	out.Confidence = confidenceSum / float64(len(parts))
	return out
}

// merge combines both sides: adapter transactions, mapper metadata, each
// side filling the other's blanks.
func (p *Processor) merge(adapter *models.BankParseOutput, mapper *models.RekeningKoranPayload) models.RekeningKoranPayload {
	out := models.RekeningKoranPayload{}

	out.Transactions = models.DedupeTransactions(adapter.Transactions)

	out.BankInfo = mapper.BankInfo
	fillIdentity(&out.BankInfo, &adapter.Account)

	out.SaldoInfo = mapper.SaldoInfo
	if out.SaldoInfo.Awal.IsZero() {
		out.SaldoInfo.Awal = adapter.OpeningSaldo
	}
	if out.SaldoInfo.Akhir.IsZero() {
		out.SaldoInfo.Akhir = adapter.ClosingSaldo
	}
	return out
}

func fromAdapter(adapter *models.BankParseOutput) models.RekeningKoranPayload {
	out := models.RekeningKoranPayload{
		BankInfo:     adapter.Account,
		Transactions: models.DedupeTransactions(adapter.Transactions),
	}
	out.SaldoInfo.Awal = adapter.OpeningSaldo
	out.SaldoInfo.Akhir = adapter.ClosingSaldo
	return out
}

// fillIdentity copies adapter identity values into fields the mapper left
// empty
func fillIdentity(dst *models.AccountIdentity, src *models.AccountIdentity) {
	if dst.BankName == "" {
		dst.BankName = src.BankName
	}
	if dst.AccountNumber == "" {
		dst.AccountNumber = src.AccountNumber
	}
	if dst.AccountHolder == "" {
		dst.AccountHolder = src.AccountHolder
	}
	if dst.Period == "" {
		dst.Period = src.Period
	}
	if dst.Currency == "" {
		dst.Currency = src.Currency
	}
	if dst.Branch == "" {
		dst.Branch = src.Branch
	}
}

// confidence scores the merged record: adapter success, mapper success and
// the fraction of metadata fields that ended up filled.
func (p *Processor) confidence(adapterOK, mapperOK bool, payload *models.RekeningKoranPayload) float64 {
	score := 0.0
	if adapterOK {
		score += weightAdapter
	}
	if mapperOK {
		score += weightMapper
	}
	score += weightMetadata * metadataFill(payload)
	return score
}

// metadataFill is the filled fraction of the identity and saldo fields
func metadataFill(payload *models.RekeningKoranPayload) float64 {
	fields := []bool{
		payload.BankInfo.BankName != "",
		payload.BankInfo.AccountNumber != "",
		payload.BankInfo.AccountHolder != "",
		payload.BankInfo.Period != "",
		payload.BankInfo.Currency != "",
		!payload.SaldoInfo.Awal.IsZero(),
		!payload.SaldoInfo.Akhir.IsZero(),
	}
	filled := 0
	for _, ok := range fields {
		if ok {
			filled++
		}
	}
	return float64(filled) / float64(len(fields))
}
