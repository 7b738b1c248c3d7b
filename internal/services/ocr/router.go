package ocr

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// Routing modes. The mode fixes the probe order, so the same input always
// reaches the same engine sequence.
const (
	ModeCloudPrimary = "cloud_primary" // cloud first, local on failure
	ModeCloudOnly    = "cloud_only"
	ModeLocalPrimary = "local_primary" // local first, cloud on failure
	ModeLocalOnly    = "local_only"
)

// Router selects an OCR engine per the configured mode and falls back to the
// secondary engine when the primary fails. Cancellation is never retried on
// the fallback engine.
type Router struct {
	engines []interfaces.OCREngine
	mode    string
	logger  arbor.ILogger
}

var _ interfaces.OCRRouter = (*Router)(nil)

// NewRouter builds the engine chain for the configured mode
func NewRouter(config common.OCRConfig, logger arbor.ILogger) (*Router, error) {
	local := NewLocalEngine(logger)

	var engines []interfaces.OCREngine
	switch config.Mode {
	case ModeLocalOnly:
		engines = []interfaces.OCREngine{local}
	case ModeCloudOnly:
		cloud, err := NewCloudEngine(config, logger)
		if err != nil {
			return nil, err
		}
		engines = []interfaces.OCREngine{cloud}
	case ModeLocalPrimary:
		cloud, err := NewCloudEngine(config, logger)
		if err != nil {
			return nil, err
		}
		engines = []interfaces.OCREngine{local, cloud}
	case ModeCloudPrimary, "":
		cloud, err := NewCloudEngine(config, logger)
		if err != nil {
			return nil, err
		}
		engines = []interfaces.OCREngine{cloud, local}
	default:
		return nil, fmt.Errorf("unknown OCR mode: %s", config.Mode)
	}

	return &Router{engines: engines, mode: config.Mode, logger: logger}, nil
}

// NewRouterWithEngines builds a router over an explicit engine chain
func NewRouterWithEngines(logger arbor.ILogger, engines ...interfaces.OCREngine) *Router {
	return &Router{engines: engines, logger: logger}
}

// Process tries each engine in order and returns the first success. The last
// engine's error is returned when all fail.
func (r *Router) Process(ctx context.Context, path string) (*models.OCRResult, error) {
	if len(r.engines) == 0 {
		return nil, models.NewProcessError(models.ErrKindInternal, "ocr.router",
			fmt.Errorf("no OCR engines configured"))
	}

	var lastErr error
	for i, engine := range r.engines {
		result, err := engine.Process(ctx, path)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if models.KindOf(err) == models.ErrKindCancelled {
			return nil, err
		}
		if i < len(r.engines)-1 {
			r.logger.Warn().
				Err(err).
				Str("engine", engine.ID()).
				Str("next_engine", r.engines[i+1].ID()).
				Msg("OCR engine failed, falling back")
		}
	}
	return nil, lastErr
}
