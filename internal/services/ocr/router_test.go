package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
)

type fakeEngine struct {
	id     string
	result *models.OCRResult
	err    error
	calls  int
}

func (f *fakeEngine) ID() string { return f.id }

func (f *fakeEngine) Process(ctx context.Context, path string) (*models.OCRResult, error) {
	f.calls++
	return f.result, f.err
}

func TestRouterUsesPrimaryOnSuccess(t *testing.T) {
	primary := &fakeEngine{id: "cloud", result: &models.OCRResult{EngineID: "cloud", Text: "ok"}}
	fallback := &fakeEngine{id: "local"}
	router := NewRouterWithEngines(common.GetLogger(), primary, fallback)

	result, err := router.Process(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "cloud", result.EngineID)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestRouterFallsBackOnFailure(t *testing.T) {
	primary := &fakeEngine{
		id:  "cloud",
		err: models.NewProcessError(models.ErrKindUpstreamTransient, "ocr.cloud", assert.AnError),
	}
	fallback := &fakeEngine{id: "local", result: &models.OCRResult{EngineID: "local", Text: "ok"}}
	router := NewRouterWithEngines(common.GetLogger(), primary, fallback)

	result, err := router.Process(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "local", result.EngineID)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestRouterReturnsLastErrorWhenAllFail(t *testing.T) {
	primary := &fakeEngine{
		id:  "cloud",
		err: models.NewProcessError(models.ErrKindUpstreamTransient, "ocr.cloud", assert.AnError),
	}
	fallback := &fakeEngine{
		id:  "local",
		err: models.NewProcessError(models.ErrKindExtractorParse, "ocr.local", assert.AnError),
	}
	router := NewRouterWithEngines(common.GetLogger(), primary, fallback)

	_, err := router.Process(context.Background(), "doc.pdf")
	require.Error(t, err)
	assert.Equal(t, models.ErrKindExtractorParse, models.KindOf(err))
}

func TestRouterDoesNotFallBackOnCancellation(t *testing.T) {
	primary := &fakeEngine{
		id:  "cloud",
		err: models.NewProcessError(models.ErrKindCancelled, "ocr.cloud", context.Canceled),
	}
	fallback := &fakeEngine{id: "local", result: &models.OCRResult{EngineID: "local"}}
	router := NewRouterWithEngines(common.GetLogger(), primary, fallback)

	_, err := router.Process(context.Background(), "doc.pdf")
	require.Error(t, err)
	assert.Equal(t, models.ErrKindCancelled, models.KindOf(err))
	assert.Equal(t, 0, fallback.calls)
}

func TestNewRouterModes(t *testing.T) {
	logger := common.GetLogger()

	router, err := NewRouter(common.OCRConfig{Mode: ModeLocalOnly}, logger)
	require.NoError(t, err)
	require.Len(t, router.engines, 1)
	assert.Equal(t, "local", router.engines[0].ID())

	router, err = NewRouter(common.OCRConfig{Mode: ModeCloudPrimary}, logger)
	require.NoError(t, err)
	require.Len(t, router.engines, 2)
	assert.Equal(t, "cloud", router.engines[0].ID())
	assert.Equal(t, "local", router.engines[1].ID())

	router, err = NewRouter(common.OCRConfig{Mode: ModeLocalPrimary}, logger)
	require.NoError(t, err)
	require.Len(t, router.engines, 2)
	assert.Equal(t, "local", router.engines[0].ID())

	_, err = NewRouter(common.OCRConfig{Mode: "bogus"}, logger)
	assert.Error(t, err)
}

func TestCloudEngineAnchorResolution(t *testing.T) {
	doc := "Hello world"
	layout := docAILayout{}
	layout.TextAnchor.TextSegments = []struct {
		StartIndex string `json:"startIndex"`
		EndIndex   string `json:"endIndex"`
	}{
		{StartIndex: "", EndIndex: "5"},
		{StartIndex: "6", EndIndex: "11"},
	}

	assert.Equal(t, "Helloworld", anchorText(doc, layout))
}

func TestMimeTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", mimeTypeFor("statement.pdf"))
	assert.Equal(t, "image/png", mimeTypeFor("scan.PNG"))
	assert.Equal(t, "image/jpeg", mimeTypeFor("scan.jpeg"))
	assert.Equal(t, "application/pdf", mimeTypeFor("noext"))
}
