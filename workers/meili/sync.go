// Package meili keeps the proposal search index in step with the database.
package meili

import (
	"sync"
	"time"

	"github.com/xiaoyuanzhu-com/hound/db"
	"github.com/xiaoyuanzhu-com/hound/log"
	"github.com/xiaoyuanzhu-com/hound/models"
)

var logger = log.GetLogger("MeiliSync")

const (
	// syncBatchSize is the max number of proposals to push per batch
	syncBatchSize = 50

	// DefaultSyncInterval is how often pending proposals are polled
	DefaultSyncInterval = 10 * time.Second

	// DefaultInitialDelay before the first poll
	DefaultInitialDelay = 5 * time.Second
)

// Store tracks which proposals still need indexing
type Store interface {
	ListUnindexedProposals(limit int) ([]db.PendingProposal, error)
	MarkProposalIndexed(entityID, proposalID string) error
}

// Index receives proposal documents
type Index interface {
	IndexProposal(entityID string, p models.TaskProposal) error
}

// Config holds sync worker timing
type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

// SyncWorker pushes unindexed proposals to Meilisearch. Proposals failing to
// index stay pending and are retried on the next cycle.
type SyncWorker struct {
	store Store
	index Index
	cfg   Config

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// nudgeChan allows immediate sync after a proposal is stored
	nudgeChan chan struct{}
}

// NewSyncWorker creates a new Meilisearch sync worker
func NewSyncWorker(cfg Config, store Store, index Index) *SyncWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSyncInterval
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	return &SyncWorker{
		store:     store,
		index:     index,
		cfg:       cfg,
		stopChan:  make(chan struct{}),
		nudgeChan: make(chan struct{}, 1), // buffered so nudge never blocks
	}
}

// Start begins the sync loop
func (w *SyncWorker) Start() {
	w.wg.Add(1)
	go w.loop()
	logger.Info().Dur("interval", w.cfg.Interval).Msg("meili sync worker started")
}

// Stop signals the worker to exit and waits for it to finish
func (w *SyncWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	w.wg.Wait()
	logger.Info().Msg("meili sync worker stopped")
}

// Nudge asks the worker to run a sync cycle as soon as possible.
// A nudge while one is already pending is a no-op.
func (w *SyncWorker) Nudge() {
	select {
	case w.nudgeChan <- struct{}{}:
	default:
	}
}

// IndexProposal lets the ingest worker hand off indexing. The proposal is
// already stored as unindexed, so a nudge is enough.
func (w *SyncWorker) IndexProposal(entityID string, p models.TaskProposal) error {
	w.Nudge()
	return nil
}

func (w *SyncWorker) loop() {
	defer w.wg.Done()

	select {
	case <-time.After(w.cfg.InitialDelay):
	case <-w.stopChan:
		return
	}

	// Backfill anything stored while the index was unreachable
	w.SyncPending()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.SyncPending()
		case <-w.nudgeChan:
			w.SyncPending()
		case <-w.stopChan:
			return
		}
	}
}

// SyncPending pushes pending proposals in batches until none are left or a
// whole batch fails. Returns the number indexed and failed.
func (w *SyncWorker) SyncPending() (indexed, failed int) {
	for {
		pending, err := w.store.ListUnindexedProposals(syncBatchSize)
		if err != nil {
			logger.Error().Err(err).Msg("failed to list unindexed proposals")
			return indexed, failed
		}
		if len(pending) == 0 {
			break
		}

		batchIndexed := 0
		for _, item := range pending {
			select {
			case <-w.stopChan:
				logger.Info().Int("indexed", indexed).Msg("sync interrupted by shutdown")
				return indexed, failed
			default:
			}

			if err := w.index.IndexProposal(item.EntityID, item.Proposal); err != nil {
				logger.Warn().Err(err).
					Str("entityId", item.EntityID).
					Str("proposalId", item.Proposal.ProposalID).
					Msg("failed to index proposal")
				failed++
				continue
			}

			if err := w.store.MarkProposalIndexed(item.EntityID, item.Proposal.ProposalID); err != nil {
				logger.Error().Err(err).Str("proposalId", item.Proposal.ProposalID).Msg("failed to mark proposal indexed")
				failed++
				continue
			}
			indexed++
			batchIndexed++
		}

		// Failed items stay pending; retry them next cycle instead of spinning
		if batchIndexed == 0 || len(pending) < syncBatchSize {
			break
		}
	}

	if indexed > 0 || failed > 0 {
		logger.Info().Int("indexed", indexed).Int("failed", failed).Msg("sync cycle complete")
	}
	return indexed, failed
}
