package trafficlight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// Responder serves the current phase over HTTP. Green answers 200, red 503.
type Responder struct {
	addr    string
	current Phase
	mu      *sync.Mutex
	watcher *Watcher
}

func NewResponder(cfg *ResponderConfig, c *Cycle) *Responder {
	return &Responder{
		addr:    cfg.Addr,
		current: c.CurrentPhase(),
		mu:      &sync.Mutex{},
		watcher: c.Watch(),
	}
}

func (r *Responder) Run(ctx context.Context) error {
	ctx = context.WithValue(ctx, moduleKey, "responder")
	logger := newLoggerFromContext(ctx)
	srv := http.Server{
		Addr:    r.addr,
		Handler: r.handler(),
	}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	go r.phaseListener(ctx)

	logger.Info("listening", "addr", r.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("responder failed: %w", err)
	}
	return nil
}

func (r *Responder) setCurrentPhase(ctx context.Context, p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == p {
		return
	}
	newLoggerFromContext(ctx).Debug("phase changed", "from", r.current.String(), "to", p.String())
	r.current = p
}

func (r *Responder) getCurrentPhase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Responder) phaseListener(ctx context.Context) {
	defer r.watcher.Close()
	for {
		p, err := r.watcher.Next(ctx)
		if err != nil {
			return
		}
		r.setCurrentPhase(ctx, p)
	}
}

func (r *Responder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		code := http.StatusOK
		p := r.getCurrentPhase()
		switch p {
		case PhaseGreen:
		case PhaseRed:
			code = http.StatusServiceUnavailable
		default:
			slog.Warn("unknown phase", "module", "responder", "phase", p.String())
			code = http.StatusInternalServerError
		}
		w.WriteHeader(code)
		fmt.Fprintln(w, p.String())
	})
}
