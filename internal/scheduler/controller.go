// Package scheduler drives the discovery and refresh passes from a single
// background loop that can be started and stopped at runtime.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solana-token-radar/internal/observability"
)

// Defaults.
const (
	DefaultDiscoveryInterval = 5 * time.Second
	DefaultRefreshInterval   = time.Minute
)

// State of the controller.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// PassFunc runs one pass.
type PassFunc func(ctx context.Context) error

// Options configures a Controller.
type Options struct {
	Discover          PassFunc
	Refresh           PassFunc
	DiscoveryInterval time.Duration
	RefreshInterval   time.Duration
	SkipInitialRun    bool // by default both passes run once when the loop starts

	// Context passed to passes. Stop never cancels it; cancel it to abort
	// in-flight upstream calls on process shutdown.
	Context context.Context
	Logger  *zap.Logger
}

// Controller owns the scheduler state. Start and Stop are state
// transitions; at most one loop is active at any time.
type Controller struct {
	discover          PassFunc
	refresh           PassFunc
	discoveryInterval time.Duration
	refreshInterval   time.Duration
	initialRun        bool
	ctx               context.Context
	logger            *zap.Logger

	mu    sync.Mutex
	state State
	stop  chan struct{} // closed by Stop for the current loop
	done  chan struct{} // closed when the current loop exits

	active atomic.Int32
}

// NewController creates a stopped controller.
func NewController(opts Options) *Controller {
	if opts.DiscoveryInterval <= 0 {
		opts.DiscoveryInterval = DefaultDiscoveryInterval
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		discover:          opts.Discover,
		refresh:           opts.Refresh,
		discoveryInterval: opts.DiscoveryInterval,
		refreshInterval:   opts.RefreshInterval,
		initialRun:        !opts.SkipInitialRun,
		ctx:               opts.Context,
		logger:            opts.Logger.Named("scheduler"),
		state:             StateStopped,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveLoops returns the number of loops currently executing.
func (c *Controller) ActiveLoops() int {
	return int(c.active.Load())
}

// Start transitions to running and launches the loop. If a previous loop is
// still finishing an in-flight pass, the new loop waits for it to exit first.
// Returns false if already running.
func (c *Controller) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		return false
	}

	prev := c.done
	stop := make(chan struct{})
	done := make(chan struct{})
	c.state = StateRunning
	c.stop = stop
	c.done = done
	observability.SetSchedulerRunning(true)

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		c.loop(stop)
	}()

	c.logger.Info("scheduler started")
	return true
}

// Stop transitions to stopped. An in-flight pass runs to completion; no new
// pass starts afterwards. Returns false if already stopped.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		return false
	}
	c.state = StateStopped
	close(c.stop)
	observability.SetSchedulerRunning(false)

	c.logger.Info("scheduler stopped")
	return true
}

// Wait blocks until the most recent loop has exited or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) loop(stop <-chan struct{}) {
	if stopped(stop) {
		return
	}
	c.active.Add(1)
	defer c.active.Add(-1)

	if c.initialRun {
		c.run(stop, "discovery", c.discover)
		c.run(stop, "refresh", c.refresh)
	}

	discoveryTicker := time.NewTicker(c.discoveryInterval)
	defer discoveryTicker.Stop()
	refreshTicker := time.NewTicker(c.refreshInterval)
	defer refreshTicker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-discoveryTicker.C:
			c.run(stop, "discovery", c.discover)
		case <-refreshTicker.C:
			c.run(stop, "refresh", c.refresh)
		}
	}
}

// run executes one pass unless stop has been requested.
func (c *Controller) run(stop <-chan struct{}, name string, pass PassFunc) {
	if pass == nil || stopped(stop) {
		return
	}
	if err := pass(c.ctx); err != nil {
		c.logger.Warn("pass failed", zap.String("pass", name), zap.Error(err))
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
