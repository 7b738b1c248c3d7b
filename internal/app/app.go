package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/handlers"
	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/pipeline"
	"github.com/arvetta/berkas/internal/scheduler"
	"github.com/arvetta/berkas/internal/services/audit"
	"github.com/arvetta/berkas/internal/services/auth"
	"github.com/arvetta/berkas/internal/services/banks"
	"github.com/arvetta/berkas/internal/services/events"
	"github.com/arvetta/berkas/internal/services/hybrid"
	"github.com/arvetta/berkas/internal/services/mapper"
	"github.com/arvetta/berkas/internal/services/ocr"
	"github.com/arvetta/berkas/internal/services/parsers"
	"github.com/arvetta/berkas/internal/services/pdf"
	"github.com/arvetta/berkas/internal/storage/badger"
	"github.com/arvetta/berkas/internal/templates"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *badger.Manager
	EventService   *events.Service
	AuditLogger    interfaces.AuditLogger

	OCRRouter     *ocr.Router
	Chunker       *pdf.Chunker
	Mapper        *mapper.Mapper
	BankRegistry  *banks.Registry
	BankProcessor *hybrid.Processor
	Fallback      *parsers.Fallback
	Pipeline      *pipeline.Pipeline
	Scheduler     *scheduler.Service

	// HTTP handlers
	BatchHandler  *handlers.BatchHandler
	ResultHandler *handlers.ResultHandler
	ExportHandler *handlers.ExportHandler
	WSHandler     *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.EventService = events.NewService(logger)

	if cfg.Audit.Path != "" {
		auditLogger, err := audit.NewFileAuditLogger(cfg.Audit.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		app.AuditLogger = auditLogger
	} else {
		app.AuditLogger = audit.NewNullAuditLogger()
	}

	if err := app.initExtraction(); err != nil {
		return nil, err
	}

	app.Scheduler = scheduler.NewService(cfg,
		storageManager.BatchStorage(), storageManager.DocumentStorage(), storageManager.ResultStorage(),
		app.Pipeline, app.EventService, app.AuditLogger, logger)

	app.BatchHandler = handlers.NewBatchHandler(app.Scheduler, logger)
	app.ResultHandler = handlers.NewResultHandler(storageManager.ResultStorage(), app.AuditLogger, logger)
	app.ExportHandler = handlers.NewExportHandler(app.Scheduler, storageManager.ResultStorage(), logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService,
		auth.ForSecret(cfg.WebSocket.SharedSecret), &cfg.WebSocket, logger)

	logger.Info().
		Str("environment", cfg.Environment).
		Int("worker_pool", cfg.Scheduler.WorkerPoolSize).
		Msg("Application initialized")

	return app, nil
}

// initExtraction wires the OCR, mapping and parsing stages into the pipeline
func (a *App) initExtraction() error {
	router, err := ocr.NewRouter(a.Config.OCR, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OCR router: %w", err)
	}
	a.OCRRouter = router
	a.Chunker = pdf.NewChunker(a.Config.Chunker, a.Logger)

	store, err := templates.Load()
	if err != nil {
		return fmt.Errorf("failed to load extraction templates: %w", err)
	}
	taxProvider, err := mapper.NewClaudeProvider(&a.Config.Claude, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tax extraction provider: %w", err)
	}
	bankProvider, err := mapper.NewGeminiProvider(&a.Config.Gemini, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize bank extraction provider: %w", err)
	}
	a.Mapper = mapper.NewMapper(store, taxProvider, bankProvider, a.Logger)

	a.BankRegistry = banks.NewRegistry(a.Logger)
	a.BankProcessor = hybrid.NewProcessor(a.BankRegistry, a.Mapper, a.Logger)
	a.Fallback = parsers.NewFallback(a.Logger)

	// One slot per worker times per-file chunk concurrency bounds every
	// in-flight extraction call across the process.
	slots := int64(a.Config.Scheduler.WorkerPoolSize * a.Config.Scheduler.ChunkConcurrency)
	if slots <= 0 {
		slots = 1
	}

	a.Pipeline = pipeline.New(pipeline.Deps{
		Config:    a.Config,
		Batches:   a.StorageManager.BatchStorage(),
		Files:     a.StorageManager.DocumentStorage(),
		Results:   a.StorageManager.ResultStorage(),
		OCR:       router,
		Chunker:   a.Chunker,
		Mapper:    a.Mapper,
		Banks:     a.BankProcessor,
		Fallback:  a.Fallback,
		Events:    a.EventService,
		Semaphore: semaphore.NewWeighted(slots),
		Logger:    a.Logger,
	})
	return nil
}

// Start brings up the background workers
func (a *App) Start() error {
	return a.Scheduler.Start()
}

// Close shuts components down in reverse dependency order
func (a *App) Close() {
	a.Scheduler.Stop()
	a.EventService.Close()
	if err := a.AuditLogger.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Audit log close failed")
	}
	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Storage close failed")
	}
}
