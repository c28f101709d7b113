package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/logging"
)

// DefaultInterval is the time between polls.
const DefaultInterval = 5 * time.Second

// pollTimeout bounds one status request.
const pollTimeout = 10 * time.Second

// Source is the status call the poller needs. *catalog.Client implements it.
type Source interface {
	JobStatus(ctx context.Context) (catalog.JobStatus, error)
}

// Sink receives every status fetched successfully. Failed polls are not
// delivered.
type Sink func(catalog.JobStatus)

// Poller fetches job status on a fixed interval.
// Uses context cancellation as the ONLY stop mechanism.
type Poller struct {
	source   Source
	interval time.Duration
	kick     chan struct{}
	wg       sync.WaitGroup
}

// NewPoller creates a poller. interval <= 0 uses DefaultInterval.
func NewPoller(src Source, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		source:   src,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Start polls once immediately, then every interval until ctx is cancelled.
func (p *Poller) Start(ctx context.Context, sink Sink) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.poll(ctx, sink)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.poll(ctx, sink)
			case <-p.kick:
				p.poll(ctx, sink)
			}
		}
	}()
}

// Kick requests an immediate poll, e.g. after a reprocess batch. Kicks
// that arrive while one is pending collapse into it.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Wait blocks until the background goroutine exits.
// Call after canceling the context passed to Start.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) poll(ctx context.Context, sink Sink) {
	if ctx.Err() != nil {
		return
	}
	pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	status, err := p.source.JobStatus(pollCtx)
	if err != nil {
		// Skipped silently; the next tick retries.
		logging.Debug("jobs: poll failed", "error", err)
		return
	}
	if sink != nil {
		sink(status)
	}
}
