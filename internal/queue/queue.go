package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/core/ingest"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
	"github.com/jmiran15/chatmate-ingest/internal/models"
)

// Job is one unit of ingestion work. Either the document is looked up by ID,
// or a parent job (a website crawl fanning out into page documents) hands
// over a full snapshot so the child does not re-read a row that may still be
// settling.
type Job struct {
	DocumentID string
	Document   *models.Document
}

// Status is the observable state of a document's ingestion run.
type Status struct {
	State    string  // "queued", "processing", "completed", "failed"
	Progress float64 // 0..100
	Err      string
}

const (
	StateQueued     = "queued"
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// Queue is a bounded channel-backed job queue drained by a fixed worker pool.
// Each worker processes one document at a time: resolve content, then run the
// document or Q&A pipeline depending on the document kind.
type Queue struct {
	db        core.DbClient
	extractor *ingest.Extractor
	docs      *ingest.Orchestrator
	qa        *ingest.QAOrchestrator
	log       *logger.Logger

	jobs    chan Job
	workers int

	mu     sync.Mutex
	status map[string]Status

	wg sync.WaitGroup
}

func New(db core.DbClient, extractor *ingest.Extractor, docs *ingest.Orchestrator, qa *ingest.QAOrchestrator, workers, depth int, log *logger.Logger) *Queue {
	if workers <= 0 {
		workers = 4
	}
	if depth <= 0 {
		depth = 64
	}
	return &Queue{
		db:        db,
		extractor: extractor,
		docs:      docs,
		qa:        qa,
		log:       log,
		jobs:      make(chan Job, depth),
		workers:   workers,
		status:    make(map[string]Status),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled and
// Wait returns once all of them have drained their current job.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(worker int) {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q.jobs:
					q.process(ctx, job)
				}
			}
		}(i)
	}
	q.log.Info("queue workers started", "workers", q.workers, "depth", cap(q.jobs))
}

// Wait blocks until all workers have stopped.
func (q *Queue) Wait() { q.wg.Wait() }

// Enqueue schedules a job, blocking while the queue is full.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	id := job.id()
	if id == "" {
		return fmt.Errorf("%w: job carries neither document id nor snapshot", core.ErrInvalidArgument)
	}
	q.setStatus(id, Status{State: StateQueued})
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue schedules a job without blocking. It reports false when the
// queue is full so callers can shed load.
func (q *Queue) TryEnqueue(job Job) (bool, error) {
	id := job.id()
	if id == "" {
		return false, fmt.Errorf("%w: job carries neither document id nor snapshot", core.ErrInvalidArgument)
	}
	select {
	case q.jobs <- job:
		q.setStatus(id, Status{State: StateQueued})
		return true, nil
	default:
		return false, nil
	}
}

// Status returns the last observed state for a document.
func (q *Queue) Status(documentID string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.status[documentID]
	return s, ok
}

func (q *Queue) process(ctx context.Context, job Job) {
	id := job.id()
	q.setStatus(id, Status{State: StateProcessing})

	doc := job.Document
	if doc == nil {
		var err error
		doc, err = q.db.GetDocumentByID(ctx, job.DocumentID)
		if err != nil || doc == nil {
			q.fail(id, fmt.Errorf("load document: %w", err))
			return
		}
	}

	if err := q.extractor.ResolveContent(ctx, doc); err != nil {
		q.fail(id, err)
		return
	}

	report := func(ctx context.Context, percent float64) error {
		q.setProgress(id, percent)
		return nil
	}

	var err error
	if doc.IsQA() {
		err = q.qa.Ingest(ctx, doc, report)
	} else {
		err = q.docs.Ingest(ctx, doc, report)
	}
	if err != nil {
		q.fail(id, err)
		return
	}
	q.setStatus(id, Status{State: StateCompleted, Progress: 100})
}

func (q *Queue) fail(documentID string, err error) {
	q.log.Error("ingestion job failed", "document_id", documentID, "error", err)
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.status[documentID]
	s.State = StateFailed
	s.Err = err.Error()
	q.status[documentID] = s
}

func (q *Queue) setStatus(documentID string, s Status) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.status[documentID] = s
}

func (q *Queue) setProgress(documentID string, percent float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.status[documentID]
	s.Progress = percent
	q.status[documentID] = s
}

func (j Job) id() string {
	if j.Document != nil {
		return j.Document.ID
	}
	return j.DocumentID
}
