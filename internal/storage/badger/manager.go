package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/interfaces"
)

// gcInterval is how often the value log garbage collector runs
const gcInterval = 10 * time.Minute

// Manager owns the database connection and the typed storage facades
type Manager struct {
	db      *BadgerDB
	logger  arbor.ILogger
	Batches *BatchStorage
	Files   *DocumentStorage
	Results *ResultStorage
	stopGC  chan struct{}
}

// NewManager opens the database and wires the storage facades
func NewManager(logger arbor.ILogger, config *common.Config) (*Manager, error) {
	db, err := NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	m := &Manager{
		db:      db,
		logger:  logger,
		Batches: NewBatchStorage(db, logger),
		Files:   NewDocumentStorage(db, logger),
		Results: NewResultStorage(db, logger),
		stopGC:  make(chan struct{}),
	}
	go m.gcLoop()
	return m, nil
}

func (m *Manager) gcLoop() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopGC:
			return
		case <-ticker.C:
			m.db.RunValueLogGC()
		}
	}
}

// BatchStorage returns the batch facade
func (m *Manager) BatchStorage() interfaces.BatchStorage { return m.Batches }

// DocumentStorage returns the per-file facade
func (m *Manager) DocumentStorage() interfaces.DocumentStorage { return m.Files }

// ResultStorage returns the scan result facade
func (m *Manager) ResultStorage() interfaces.ResultStorage { return m.Results }

// PurgeBatch removes a batch and everything hanging off it. Results and
// files go first so a crash mid-delete leaves no orphans pointing at a
// missing batch row.
func (m *Manager) PurgeBatch(ctx context.Context, batchID string) error {
	if err := m.Results.DeleteByBatch(ctx, batchID); err != nil {
		return err
	}
	if err := m.Files.DeleteByBatch(ctx, batchID); err != nil {
		return err
	}
	if err := m.Batches.DeleteBatch(ctx, batchID); err != nil {
		return err
	}
	m.logger.Info().Str("batch_id", batchID).Msg("Purged batch")
	return nil
}

// Close closes the underlying database
func (m *Manager) Close() error {
	close(m.stopGC)
	return m.db.Close()
}
