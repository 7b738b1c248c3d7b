package mapper

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
	"github.com/arvetta/berkas/internal/templates"
)

type fakeProvider struct {
	modelID   string
	responses []string
	err       error
	calls     int
	lastUser  string
}

func (f *fakeProvider) ModelID() string { return f.modelID }

func (f *fakeProvider) Complete(ctx context.Context, system, user string) (string, error) {
	f.lastUser = user
	idx := f.calls
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func newTestMapper(t *testing.T, tax, bank Provider) *Mapper {
	t.Helper()
	store, err := templates.Load()
	require.NoError(t, err)
	return NewMapper(store, tax, bank, common.GetLogger())
}

const fakturResponse = `{
	"seller": {"name": "PT Maju Jaya", "npwp": "01.234.567.8-901.000"},
	"buyer": {"name": "CV Berkah"},
	"invoice": {"number": "010.000-24.00000001", "issue_date": "2025-03-14"},
	"financials": {"dpp": "1000000", "ppn": "110000", "total": "1110000"},
	"items": []
}`

func TestMapExtractsTaxDocument(t *testing.T) {
	tax := &fakeProvider{modelID: "claude-test", responses: []string{fakturResponse}}
	bank := &fakeProvider{modelID: "gemini-test"}
	m := newTestMapper(t, tax, bank)

	ocr := &models.OCRResult{Pages: []models.OCRPage{{PageNumber: 1, Text: "FAKTUR PAJAK ..."}}}
	payload, modelID, err := m.Map(context.Background(), models.DocTypeFakturPajak, ocr)
	require.NoError(t, err)
	assert.Equal(t, "claude-test", modelID)
	assert.Equal(t, 1, tax.calls)
	assert.Equal(t, 0, bank.calls)

	var parsed models.FakturPajakPayload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "PT Maju Jaya", parsed.Seller.Name)
	assert.Equal(t, "110000", parsed.Financials.PPN.String())
}

func TestMapRoutesBankStatementsToBankProvider(t *testing.T) {
	tax := &fakeProvider{modelID: "claude-test"}
	bank := &fakeProvider{modelID: "gemini-test", responses: []string{
		`{"bank_info": {"nama_bank": "BCA"}, "saldo_info": {"awal": "100", "akhir": "200"}, "transactions": []}`,
	}}
	m := newTestMapper(t, tax, bank)

	ocr := &models.OCRResult{Pages: []models.OCRPage{{PageNumber: 1, Text: "REKENING KORAN"}}}
	payload, modelID, err := m.Map(context.Background(), models.DocTypeRekeningKoran, ocr)
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", modelID)
	assert.Equal(t, 0, tax.calls)

	var parsed models.RekeningKoranPayload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "BCA", parsed.BankInfo.BankName)
	assert.False(t, parsed.ParseError)
}

func TestMapStripsCodeFences(t *testing.T) {
	tax := &fakeProvider{modelID: "claude-test", responses: []string{
		"Here is the extraction:\n```json\n" + fakturResponse + "\n```\n",
	}}
	m := newTestMapper(t, tax, &fakeProvider{})

	ocr := &models.OCRResult{Pages: []models.OCRPage{{PageNumber: 1, Text: "..."}}}
	payload, _, err := m.Map(context.Background(), models.DocTypeFakturPajak, ocr)
	require.NoError(t, err)
	assert.Equal(t, 1, tax.calls)

	var parsed models.FakturPajakPayload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "CV Berkah", parsed.Buyer.Name)
}

func TestMapRetriesOnceOnParseFailure(t *testing.T) {
	tax := &fakeProvider{modelID: "claude-test", responses: []string{
		"I could not find any fields, sorry.",
		fakturResponse,
	}}
	m := newTestMapper(t, tax, &fakeProvider{})

	ocr := &models.OCRResult{Pages: []models.OCRPage{{PageNumber: 1, Text: "..."}}}
	_, _, err := m.Map(context.Background(), models.DocTypeFakturPajak, ocr)
	require.NoError(t, err)
	assert.Equal(t, 2, tax.calls)
	assert.Contains(t, tax.lastUser, "ONLY the JSON object")
}

func TestMapTaxDocFailsAfterSecondParseFailure(t *testing.T) {
	tax := &fakeProvider{modelID: "claude-test", responses: []string{"not json", "still not json"}}
	m := newTestMapper(t, tax, &fakeProvider{})

	ocr := &models.OCRResult{Pages: []models.OCRPage{{PageNumber: 1, Text: "..."}}}
	_, _, err := m.Map(context.Background(), models.DocTypePPh23, ocr)
	require.Error(t, err)
	assert.Equal(t, models.ErrKindExtractorParse, models.KindOf(err))
}

func TestMapBankStatementDegradesToParseErrorFlag(t *testing.T) {
	bank := &fakeProvider{modelID: "gemini-test", responses: []string{"garbage", "more garbage"}}
	m := newTestMapper(t, &fakeProvider{}, bank)

	ocr := &models.OCRResult{Pages: []models.OCRPage{{PageNumber: 1, Text: "..."}}}
	payload, modelID, err := m.Map(context.Background(), models.DocTypeRekeningKoran, ocr)
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", modelID)
	assert.Equal(t, 2, bank.calls)

	var parsed models.RekeningKoranPayload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.True(t, parsed.ParseError)
	assert.Empty(t, parsed.Transactions)
}

func TestMapPropagatesProviderError(t *testing.T) {
	tax := &fakeProvider{
		modelID: "claude-test",
		err:     models.NewProcessError(models.ErrKindUpstreamTransient, "mapper.claude", assert.AnError),
	}
	m := newTestMapper(t, tax, &fakeProvider{})

	ocr := &models.OCRResult{Pages: []models.OCRPage{{PageNumber: 1, Text: "..."}}}
	_, _, err := m.Map(context.Background(), models.DocTypeInvoice, ocr)
	require.Error(t, err)
	assert.True(t, models.IsRetryable(err))
}

func TestMapUnknownDocType(t *testing.T) {
	m := newTestMapper(t, &fakeProvider{}, &fakeProvider{})

	_, _, err := m.Map(context.Background(), "passport", &models.OCRResult{})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindUnsupportedType, models.KindOf(err))
}

func TestUserPromptCarriesTablesAndSchema(t *testing.T) {
	store, err := templates.Load()
	require.NoError(t, err)
	tmpl, err := store.Get(models.DocTypeRekeningKoran)
	require.NoError(t, err)

	ocr := &models.OCRResult{Pages: []models.OCRPage{{
		PageNumber: 1,
		Text:       "header text",
		Tables: []models.OCRTable{{Rows: [][]string{
			{"01/03/2025", "TRSF E-BANKING", "100.000,00", "", "5.000.000,00"},
		}}},
	}}}

	prompt := buildUserPrompt(tmpl, ocr)
	assert.Contains(t, prompt, "TRSF E-BANKING | 100.000,00")
	assert.Contains(t, prompt, `"nama_bank"`)
	assert.Contains(t, prompt, "transactions[].balance")
}

func TestExtractRetryDelay(t *testing.T) {
	err := assert.AnError
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(err))

	wrapped := models.NewProcessError(models.ErrKindUpstreamTransient, "mapper.gemini",
		errWithMessage("Error 429, Please retry in 45.5s., Status: RESOURCE_EXHAUSTED"))
	assert.Equal(t, 45500*time.Millisecond, ExtractRetryDelay(wrapped))
	assert.True(t, IsRateLimitError(wrapped))
}

type errWithMessage string

func (e errWithMessage) Error() string { return string(e) }
