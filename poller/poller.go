package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is used when Attach is given a non-positive interval.
const DefaultInterval = 5 * time.Second

// Fetch executes one refresh query.
type Fetch func(ctx context.Context) (interface{}, error)

// Apply receives the result of a successful fetch.
type Apply func(value interface{})

// Poller hands out periodic-refresh attachments. Each attachment owns
// its timer and cancellation state through the returned Handle, so
// detaching one caller never disturbs another.
type Poller struct {
	logger *zap.Logger
}

// New creates a Poller.
func New(logger *zap.Logger) *Poller {
	return &Poller{logger: logger}
}

// Handle is one live attachment.
type Handle struct {
	mu       sync.Mutex
	detached bool
	inFlight bool
	err      error
	stopCh   chan struct{}
	cancel   context.CancelFunc
}

// Attach starts polling: one immediate fetch, then one per interval tick.
// A tick is skipped while a previous fetch is still outstanding, so
// results are never applied out of order. Fetch failures set a sticky
// error on the handle (cleared by the next success) and never stop the
// loop; the next tick retries unconditionally.
//
// The apply callback runs under the handle's lock, which is what
// guarantees no callback fires after Detach returns; consequently apply
// must not call Detach itself.
func (p *Poller) Attach(fetch Fetch, apply Apply, interval time.Duration) *Handle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		stopCh: make(chan struct{}),
		cancel: cancel,
	}

	run := func() {
		h.mu.Lock()
		if h.detached || h.inFlight {
			h.mu.Unlock()
			return
		}
		h.inFlight = true
		h.mu.Unlock()

		go func() {
			value, err := fetch(ctx)

			h.mu.Lock()
			defer h.mu.Unlock()
			h.inFlight = false
			if h.detached {
				return
			}
			if err != nil {
				h.err = err
				p.logger.Warn("poll fetch failed", zap.Error(err))
				return
			}
			h.err = nil
			if apply != nil {
				apply(value)
			}
		}()
	}

	go func() {
		run()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				run()
			case <-h.stopCh:
				return
			}
		}
	}()

	return h
}

// Detach stops the attachment. The timer is cancelled synchronously and
// a fetch in flight at this moment will discard its result: once Detach
// returns, the apply callback can no longer fire.
func (h *Handle) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detached {
		return
	}
	h.detached = true
	h.cancel()
	close(h.stopCh)
}

// Detach stops the given attachment; see Handle.Detach.
func (p *Poller) Detach(h *Handle) {
	h.Detach()
}

// Err returns the sticky error from the most recent failed fetch, or nil
// if the last fetch succeeded.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Active reports whether the attachment is still polling.
func (h *Handle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.detached
}
