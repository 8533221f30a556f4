package resource

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shrinkray/internal/logging"
)

// Provider supplies resource snapshots. Read must return quickly and must
// not perform blocking I/O: the orchestration goroutine calls it directly
// before every admission and throttle check.
type Provider interface {
	Read() Snapshot
}

// Prober performs the actual (possibly slow) platform reads. Probers run on
// a background goroutine owned by CachedProvider, never on the caller.
type Prober interface {
	Probe(ctx context.Context) (Snapshot, error)
}

// CachedProvider wraps a Prober and serves the last known snapshot
// synchronously while refreshing it in the background at a fixed interval.
type CachedProvider struct {
	prober   Prober
	interval time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	latest Snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCachedProvider constructs a provider that refreshes from prober every
// interval. Call Start before the first Read and Stop on shutdown.
func NewCachedProvider(prober Prober, interval time.Duration, logger *slog.Logger) *CachedProvider {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &CachedProvider{
		prober:   prober,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "resource"),
	}
}

// Start takes an initial snapshot synchronously, then launches the refresh
// loop. The initial probe keeps the first admission decision from seeing a
// zero snapshot.
func (p *CachedProvider) Start(ctx context.Context) error {
	initial, err := p.prober.Probe(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.latest = initial
	p.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.refreshLoop(loopCtx)
	return nil
}

// Stop terminates the refresh loop and waits for it to exit.
func (p *CachedProvider) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
}

// Read returns the last known snapshot without blocking.
func (p *CachedProvider) Read() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

func (p *CachedProvider) refreshLoop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snapshot, err := p.prober.Probe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("resource probe failed; serving stale snapshot",
				logging.Error(err),
				logging.String(logging.FieldEventType, "resource_probe_failed"),
			)
			continue
		}
		p.mu.Lock()
		p.latest = snapshot
		p.mu.Unlock()
	}
}

// StaticProvider serves a fixed snapshot. Useful for tests and one-shot
// assessments where the caller already holds a reading.
type StaticProvider struct {
	Snapshot Snapshot
}

func (p StaticProvider) Read() Snapshot { return p.Snapshot }
