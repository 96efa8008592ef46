package sessions

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/terrierbot/registrar/pkg/observability"
)

const (
	// DefaultReapInterval is how often the reaper sweeps for stale
	// sessions.
	DefaultReapInterval = 5 * time.Second
	// DefaultStaleAfter is how long a session may go without a
	// heartbeat before the reaper force-terminates it.
	DefaultStaleAfter = 45 * time.Second

	reapReason = "timed out"

	// reapConcurrency bounds the number of in-flight terminations per
	// sweep so a large stale batch cannot exhaust the connection pool.
	reapConcurrency = 4
)

// reaperRegistry is the slice of Registry the reaper needs.
type reaperRegistry interface {
	ListStale(heartbeatBefore int64) ([]int64, error)
	Terminate(sessionID int64, rec TerminationRecord) error
}

// Reaper periodically force-terminates sessions whose clients vanished
// without a clean shutdown. It goes through the same Terminate path a
// client would use, so the one-termination-record-per-session invariant
// holds no matter who ends the session.
type Reaper struct {
	registry   reaperRegistry
	logger     *observability.Logger
	metrics    *observability.Metrics
	interval   time.Duration
	staleAfter time.Duration
}

// NewReaper creates a Reaper. metrics may be nil.
func NewReaper(registry reaperRegistry, logger *observability.Logger, metrics *observability.Metrics, interval, staleAfter time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Reaper{
		registry:   registry,
		logger:     logger.WithField("component", "reaper"),
		metrics:    metrics,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

// Run sweeps on a fixed interval until the context is cancelled. Sweep
// failures are logged and never stop the loop; the reaper is a
// process-lifetime background task.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.WithField("interval", r.interval.String()).
		WithField("stale_after", r.staleAfter.String()).
		Info("Liveness reaper started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Liveness reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs one reap pass. Each stale session is terminated
// independently; one bad row never halts the remainder of the batch. A
// pass that reaps nothing is the common case and logs nothing.
func (r *Reaper) Sweep() int {
	cutoff := time.Now().Add(-r.staleAfter).Unix()

	ids, err := r.registry.ListStale(cutoff)
	if err != nil {
		r.logger.WithError(err).Error("Failed to list stale sessions")
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	var reaped atomic.Int64
	var g errgroup.Group
	g.SetLimit(reapConcurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			rec := TerminationRecord{
				DidFinish: false,
				Crashed:   true,
				Reason:    reapReason,
				Timestamp: time.Now().Unix(),
			}
			err := r.registry.Terminate(id, rec)
			switch {
			case err == nil:
				reaped.Add(1)
			case errors.Is(err, ErrNotAlive):
				// Lost the race to a client shutdown between listing and
				// terminating; the session is closed either way.
			default:
				r.logger.WithError(err).WithField("session_id", id).
					Error("Failed to reap session")
			}
			return nil
		})
	}
	g.Wait()

	count := int(reaped.Load())
	if count > 0 {
		r.logger.WithField("count", count).Info("Reaped stale sessions")
		if r.metrics != nil {
			r.metrics.SessionsReapedTotal.Add(float64(count))
		}
	}
	return count
}
