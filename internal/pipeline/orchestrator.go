package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Orchestrator manages the talk ingestion pipeline.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	worker  *Worker
	log     *slog.Logger
	maxSize int
	workers int

	cancel    context.CancelFunc
	workersWg sync.WaitGroup
	cleanupWg sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(worker *Worker, workerCount, maxQueueSize int, jobTTL time.Duration, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(jobTTL),
		queue:   make(chan *Job, maxQueueSize),
		worker:  worker,
		log:     log,
		maxSize: maxQueueSize,
		workers: workerCount,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.workers; i++ {
		o.workersWg.Add(1)
		go func() {
			defer o.workersWg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.worker.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.cleanupWg.Add(1)
	go func() {
		defer o.cleanupWg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop shuts down the pipeline, abandoning queued and in-flight jobs.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.workersWg.Wait()
	o.cleanupWg.Wait()
}

// Drain closes the queue and waits for every submitted job to finish.
// Used by one-shot runs; Submit must not be called after Drain.
func (o *Orchestrator) Drain() {
	close(o.queue)
	o.workersWg.Wait()
	if o.cancel != nil {
		o.cancel()
	}
	o.cleanupWg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.maxSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
