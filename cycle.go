package trafficlight

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

var ErrAlreadyStarted = errors.New("cycle already started")

// Cycle toggles between red and green at randomized intervals and publishes
// every new phase through a Queue.
type Cycle struct {
	minDuration    time.Duration
	maxDuration    time.Duration
	tick           time.Duration
	redrawEachTick bool

	phase   atomic.Int32
	queue   *Queue[Phase]
	started atomic.Bool
	done    chan struct{}

	mu       sync.Mutex
	watchers map[*Watcher]struct{}
}

func NewCycle(cfg *CycleConfig) (*Cycle, error) {
	if cfg == nil {
		cfg = NewCycleConfig()
	}
	c2 := *cfg
	cfg = &c2
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	initial, err := cfg.InitialPhase()
	if err != nil {
		return nil, err
	}
	c := &Cycle{
		minDuration:    cfg.MinDuration,
		maxDuration:    cfg.MaxDuration,
		tick:           cfg.Tick,
		redrawEachTick: cfg.RedrawEachTick,
		queue:          NewQueue[Phase](),
		done:           make(chan struct{}),
		watchers:       make(map[*Watcher]struct{}),
	}
	c.phase.Store(int32(initial))
	return c, nil
}

// Start launches the driver goroutine. It runs until ctx is done.
func (c *Cycle) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go c.run(ctx)
	return nil
}

// Run starts the driver and blocks until it stops.
func (c *Cycle) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	c.Wait()
	return nil
}

// Done is closed when the driver goroutine has exited. It is never closed
// if the cycle is not started.
func (c *Cycle) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the driver goroutine has exited. It returns at once if
// the cycle was never started.
func (c *Cycle) Wait() {
	if !c.started.Load() {
		return
	}
	<-c.done
}

func (c *Cycle) CurrentPhase() Phase {
	return Phase(c.phase.Load())
}

// WaitForPhase blocks until a transition to target is received from the
// cycle's queue. The queue has a single consumer: when several goroutines
// wait at once, each transition releases only one of them.
func (c *Cycle) WaitForPhase(ctx context.Context, target Phase) error {
	for {
		p, err := c.queue.ReceiveContext(ctx)
		if err != nil {
			return err
		}
		if p == target {
			return nil
		}
	}
}

// Watch registers a Watcher that receives the latest transition
// independently of WaitForPhase and of other watchers. Transitions that are
// not received before the next one are dropped.
func (c *Cycle) Watch() *Watcher {
	return c.register(&Watcher{cycle: c, queue: NewQueue[Phase]()})
}

// WatchAll registers a Watcher that receives every transition in order.
// Up to size transitions are buffered; when the buffer is full further
// transitions are dropped and logged.
func (c *Cycle) WatchAll(size int) *Watcher {
	if size <= 0 {
		size = 1
	}
	return c.register(&Watcher{cycle: c, events: make(chan Phase, size)})
}

func (c *Cycle) register(w *Watcher) *Watcher {
	c.mu.Lock()
	c.watchers[w] = struct{}{}
	c.mu.Unlock()
	return w
}

func (c *Cycle) run(ctx context.Context) {
	defer close(c.done)
	logger := newLoggerFromContext(context.WithValue(ctx, moduleKey, "cycle"))

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	lastUpdate := time.Now()
	threshold := c.drawThreshold()
	logger.Debug("cycle started", "phase", c.CurrentPhase().String(), "threshold", threshold.String())
	for {
		select {
		case <-ctx.Done():
			logger.Debug("cycle stopped", "phase", c.CurrentPhase().String())
			return
		case <-ticker.C:
		}
		if c.redrawEachTick {
			threshold = c.drawThreshold()
		}
		elapsed := time.Since(lastUpdate)
		if elapsed < threshold {
			continue
		}
		prev := c.CurrentPhase()
		next := prev.Next()
		c.phase.Store(int32(next))
		c.publish(next)
		lastUpdate = time.Now()
		if !c.redrawEachTick {
			threshold = c.drawThreshold()
		}
		logger.Debug("phase changed",
			"from", prev.String(),
			"to", next.String(),
			"elapsed", elapsed.String(),
		)
	}
}

func (c *Cycle) publish(p Phase) {
	c.queue.Send(p)
	c.mu.Lock()
	defer c.mu.Unlock()
	for w := range c.watchers {
		w.send(p)
	}
}

// drawThreshold returns a duration in [minDuration, maxDuration) with
// millisecond granularity.
func (c *Cycle) drawThreshold() time.Duration {
	span := int64((c.maxDuration - c.minDuration) / time.Millisecond)
	if span <= 0 {
		return c.minDuration
	}
	return c.minDuration + time.Duration(rand.Int64N(span))*time.Millisecond
}

// Watcher receives the phase transitions of a Cycle.
type Watcher struct {
	cycle  *Cycle
	queue  *Queue[Phase] // latest only, see Watch
	events chan Phase    // in order, see WatchAll
}

func (w *Watcher) send(p Phase) {
	if w.events == nil {
		w.queue.Send(p)
		return
	}
	select {
	case w.events <- p:
	default:
		slog.Warn("watcher buffer full, transition dropped", "module", "cycle", "phase", p.String())
	}
}

func (w *Watcher) Next(ctx context.Context) (Phase, error) {
	if w.events == nil {
		return w.queue.ReceiveContext(ctx)
	}
	select {
	case p := <-w.events:
		return p, nil
	case <-ctx.Done():
		return PhaseRed, ctx.Err()
	}
}

// Close stops delivery to w.
func (w *Watcher) Close() {
	w.cycle.mu.Lock()
	delete(w.cycle.watchers, w)
	w.cycle.mu.Unlock()
}
