package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/xiaoyuanzhu-com/hound/models"
)

// ProposalBuilder runs task inference on one message
type ProposalBuilder interface {
	Build(ctx context.Context, msg models.MessageContext) *models.TaskProposal
}

// Store persists proposals and the dedup log
type Store interface {
	HasSeenMessage(hash string) (bool, error)
	MarkMessageSeen(hash string) error
	AddProposal(entityID string, p models.TaskProposal) error
}

// Indexer makes stored proposals searchable
type Indexer interface {
	IndexProposal(entityID string, p models.TaskProposal) error
}

// Notifier announces new proposals
type Notifier interface {
	NotifyProposalCreated(entityID string, p models.TaskProposal)
}

// Job is one normalized message awaiting inference
type Job struct {
	EntityID string
	Message  models.MessageContext
}

// Stats are cumulative worker counters
type Stats struct {
	Queued     int64 `json:"queued"`
	Dropped    int64 `json:"dropped"`
	Processed  int64 `json:"processed"`
	Duplicates int64 `json:"duplicates"`
	Proposals  int64 `json:"proposals"`
	Failed     int64 `json:"failed"`
}

// Worker runs task inference for queued messages
type Worker struct {
	cfg      Config
	builder  ProposalBuilder
	store    Store
	indexer  Indexer
	notifier Notifier

	ctx    context.Context
	cancel context.CancelFunc

	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	queue      chan Job
	processing sync.Map // Hashes currently being processed

	queued, dropped, processed, duplicates, proposals, failed atomic.Int64
}

// NewWorker creates a new ingest worker with dependencies. indexer and
// notifier may be nil.
func NewWorker(cfg Config, builder ProposalBuilder, store Store, indexer Indexer, notifier Notifier) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		cfg:      cfg,
		builder:  builder,
		store:    store,
		indexer:  indexer,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
		queue:    make(chan Job, cfg.QueueSize),
	}
}

// Start begins processing queued messages
func (w *Worker) Start() {
	logger.Info().Int("workers", w.cfg.Workers).Int("queueSize", w.cfg.QueueSize).Msg("starting ingest worker")

	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go w.processLoop(i)
	}
}

// Stop stops the ingest worker. In-flight inference is cancelled and queued
// messages are discarded.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.cancel()
	})
	w.wg.Wait()
	logger.Info().Msg("ingest worker stopped")
}

// EntityID returns the entity that owns webhook proposals
func (w *Worker) EntityID() string {
	return w.cfg.EntityID
}

// Filter returns the message filter options
func (w *Worker) Filter() FilterOptions {
	return w.cfg.Filter
}

// Enqueue queues a message for inference. It returns false when the queue is
// full or the worker has stopped.
func (w *Worker) Enqueue(job Job) bool {
	if job.EntityID == "" {
		job.EntityID = w.cfg.EntityID
	}

	select {
	case <-w.stopChan:
		return false
	default:
	}

	select {
	case w.queue <- job:
		w.queued.Add(1)
		logger.Debug().
			Str("source", string(job.Message.Source)).
			Str("sender", job.Message.Sender).
			Msg("queued message for inference")
		return true
	default:
		w.dropped.Add(1)
		logger.Warn().Str("source", string(job.Message.Source)).Msg("ingest queue full, dropping message")
		return false
	}
}

// Stats returns a snapshot of the worker counters
func (w *Worker) Stats() Stats {
	return Stats{
		Queued:     w.queued.Load(),
		Dropped:    w.dropped.Load(),
		Processed:  w.processed.Load(),
		Duplicates: w.duplicates.Load(),
		Proposals:  w.proposals.Load(),
		Failed:     w.failed.Load(),
	}
}

// processLoop processes messages from the queue
func (w *Worker) processLoop(id int) {
	defer w.wg.Done()

	for {
		select {
		case job := <-w.queue:
			if _, err := w.Process(w.ctx, job); err != nil {
				logger.Error().Err(err).Int("worker", id).Msg("failed to process message")
			}
		case <-w.stopChan:
			return
		}
	}
}

// Process runs one message through dedup, inference and storage. It returns
// the stored proposal, or nil when the message was a duplicate or carried no
// actionable task.
func (w *Worker) Process(ctx context.Context, job Job) (*models.TaskProposal, error) {
	if job.EntityID == "" {
		job.EntityID = w.cfg.EntityID
	}
	msg := job.Message
	hash := MessageHash(msg)

	// Check if already processing
	if _, loaded := w.processing.LoadOrStore(hash, true); loaded {
		w.duplicates.Add(1)
		logger.Debug().Str("hash", hash).Msg("already processing, skipping")
		return nil, nil
	}
	defer w.processing.Delete(hash)

	seen, err := w.store.HasSeenMessage(hash)
	if err != nil {
		w.failed.Add(1)
		return nil, fmt.Errorf("failed to check seen message: %w", err)
	}
	if seen {
		w.duplicates.Add(1)
		logger.Info().Str("hash", hash).Str("source", string(msg.Source)).Msg("skipping duplicate message")
		return nil, nil
	}
	if err := w.store.MarkMessageSeen(hash); err != nil {
		w.failed.Add(1)
		return nil, fmt.Errorf("failed to mark message seen: %w", err)
	}

	w.processed.Add(1)
	logger.Info().
		Str("source", string(msg.Source)).
		Str("sender", msg.Sender).
		Str("channel", msg.Channel).
		Str("subject", msg.Subject).
		Msg("processing message")

	proposal := w.builder.Build(ctx, msg)
	if proposal == nil {
		logger.Info().Str("source", string(msg.Source)).Msg("no actionable task detected")
		return nil, nil
	}

	if err := w.store.AddProposal(job.EntityID, *proposal); err != nil {
		w.failed.Add(1)
		return nil, fmt.Errorf("failed to save proposal: %w", err)
	}
	w.proposals.Add(1)

	if w.indexer != nil {
		if err := w.indexer.IndexProposal(job.EntityID, *proposal); err != nil {
			logger.Warn().Err(err).Str("proposalId", proposal.ProposalID).Msg("failed to index proposal")
		}
	}
	if w.notifier != nil {
		w.notifier.NotifyProposalCreated(job.EntityID, *proposal)
	}

	logger.Info().
		Str("entityId", job.EntityID).
		Str("proposalId", proposal.ProposalID).
		Str("title", proposal.Title).
		Msg("created proposal")
	return proposal, nil
}
