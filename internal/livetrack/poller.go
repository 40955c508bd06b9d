package livetrack

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fleetconsole.org/livemap/internal/feed"
	"fleetconsole.org/livemap/internal/logging"
	"fleetconsole.org/livemap/internal/telemetry"
)

// FetchFunc produces one cycle's vehicles. It must not fail; an unreachable
// backend is an empty slice.
type FetchFunc func(ctx context.Context) []telemetry.Vehicle

// PublishFunc receives each accepted cycle. seq increases strictly between calls.
type PublishFunc func(seq uint64, vehicles []telemetry.Vehicle)

// Pipeline wires a telemetry source to the normalizer.
func Pipeline(source feed.Source, normalizer *telemetry.Normalizer) FetchFunc {
	return func(ctx context.Context) []telemetry.Vehicle {
		return normalizer.NormalizeAll(source.Fetch(ctx))
	}
}

// Poller runs a FetchFunc on a fixed interval.
type Poller struct {
	fetch    FetchFunc
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewPoller(fetch FetchFunc, interval, timeout time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Poller{
		fetch:    fetch,
		interval: interval,
		timeout:  timeout,
		logger:   logging.Component(logger, "live_poller"),
	}
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Handle controls one running poll loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	stopped   bool
	published uint64
	stale     uint64
}

// Start launches the loop; the first fetch happens immediately. Each tick's
// fetch runs in its own goroutine so a slow backend never delays the timer.
// Results are tagged with the tick's sequence number and a result older
// than the last published one is dropped.
func (p *Poller) Start(parent context.Context, publish PublishFunc) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer h.markStopped()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		var seq uint64
		for {
			seq++
			go p.cycle(ctx, h, seq, publish)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return h
}

func (p *Poller) cycle(ctx context.Context, h *Handle, seq uint64, publish PublishFunc) {
	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	vehicles := p.fetch(fctx)
	if ctx.Err() != nil {
		return
	}
	if vehicles == nil {
		vehicles = []telemetry.Vehicle{}
	}

	if !h.deliver(seq, vehicles, publish) {
		p.logger.Debug("poll_result_discarded", slog.Uint64("seq", seq))
		return
	}
	logging.LogOperation(p.logger, "poll_cycle",
		slog.Uint64("seq", seq),
		slog.Int("vehicles", len(vehicles)),
		slog.Duration("duration", time.Since(start)))
}

// deliver publishes under the handle lock so Cancel cannot interleave with
// a publish, and nothing publishes once Cancel has returned.
func (h *Handle) deliver(seq uint64, vehicles []telemetry.Vehicle, publish PublishFunc) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}
	if seq <= h.published {
		h.stale++
		return false
	}
	h.published = seq
	publish(seq, vehicles)
	return true
}

func (h *Handle) markStopped() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

// Cancel stops the timer, cancels any in-flight fetch and blocks until the
// loop has exited. It is safe to call more than once.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		h.markStopped()
		h.cancel()
		<-h.done
	})
}

// Done is closed when the loop goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Published is the sequence number of the last accepted cycle.
func (h *Handle) Published() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.published
}

// Stale counts results dropped because a newer cycle had already published.
func (h *Handle) Stale() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stale
}
