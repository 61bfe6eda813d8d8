// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"codeberg.org/oliverandrich/accountdesk/internal/i18n"
	"github.com/google/uuid"
)

// Dispatcher queues jobs in a bounded channel drained by a fixed set of
// workers. Enqueueing never blocks the caller.
type Dispatcher struct {
	handler Handler
	jobs    chan Job
	workers int
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Call Start to launch the workers.
func NewDispatcher(handler Handler, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		handler: handler,
		jobs:    make(chan Job, queueSize),
		workers: workers,
		timeout: timeout,
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	for i := range d.workers {
		d.wg.Add(1)
		go d.work(i)
	}
}

// SendVerificationEmail queues a verification email and returns at once.
// When the queue is full or closed the email is dropped with a warning.
func (d *Dispatcher) SendVerificationEmail(ctx context.Context, to, name, token string) {
	job := Job{
		ID:        uuid.NewString(),
		To:        to,
		Name:      name,
		Token:     token,
		Locale:    i18n.GetLocale(ctx),
		CreatedAt: time.Now().UTC(),
	}

	if !d.Enqueue(job) {
		slog.Warn("verification_email_dropped", "job_id", job.ID, "to", to)
	}
}

// Enqueue adds job to the queue without blocking and reports whether it
// was accepted.
func (d *Dispatcher) Enqueue(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.jobs <- job:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or for
// ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail dispatcher shutdown: %w", ctx.Err())
	}
}

func (d *Dispatcher) work(worker int) {
	defer d.wg.Done()
	for job := range d.jobs {
		d.run(worker, job)
	}
}

func (d *Dispatcher) run(worker int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("mail_job_panic", "job_id", job.ID, "worker", worker, "panic", r)
		}
	}()

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	// The handler logs what it did with the job: sent or queued.
	if err := d.handler.Handle(ctx, job); err != nil {
		slog.Error("mail_job_failed", "job_id", job.ID, "to", job.To, "error", err)
		return
	}
	slog.Debug("mail_job_handled", "job_id", job.ID, "worker", worker)
}
