package trafficlight

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

var Version = "dev"

type TrafficLight struct {
	Config *Config

	cycle        *Cycle
	responder    *Responder
	intersection *Intersection
	vehicles     []*Vehicle
	hooks        []Hook
}

func Run(ctx context.Context, cli *CLI) error {
	SetDebug(cli.Debug)
	cfg, err := LoadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	t, err := NewTrafficLight(cfg)
	if err != nil {
		return err
	}
	return t.Run(ctx)
}

func NewTrafficLight(cfg *Config) (*TrafficLight, error) {
	cycle, err := NewCycle(cfg.Cycle)
	if err != nil {
		return nil, err
	}
	t := &TrafficLight{
		Config: cfg,
		cycle:  cycle,
	}
	for i, c := range cfg.Hooks {
		h, err := NewCommandHook(c)
		if err != nil {
			return nil, fmt.Errorf("hooks[%d]: %w", i, err)
		}
		t.hooks = append(t.hooks, h)
	}
	if cfg.Responder != nil && cfg.Responder.Addr != "" {
		t.responder = NewResponder(cfg.Responder, cycle)
	}
	if cfg.Intersection != nil && cfg.Intersection.Vehicles > 0 {
		t.intersection = NewIntersection(cycle, cfg.Intersection)
		for i := 0; i < cfg.Intersection.Vehicles; i++ {
			t.vehicles = append(t.vehicles, NewVehicle(cfg.Intersection.ArrivalInterval))
		}
	}
	return t, nil
}

// Cycle returns the phase cycle driven by t.
func (t *TrafficLight) Cycle() *Cycle {
	return t.cycle
}

func (t *TrafficLight) Run(ctx context.Context) error {
	logger := newLoggerFromContext(ctx)
	logger.Info("starting", "version", Version, "phase", t.cycle.CurrentPhase().String())

	eg, ctx := errgroup.WithContext(ctx)
	if len(t.hooks) > 0 {
		runner := newHookRunner(t.cycle.WatchAll(hookBufferSize), t.hooks)
		eg.Go(func() error { return runner.Run(ctx) })
	}
	if t.responder != nil {
		eg.Go(func() error { return t.responder.Run(ctx) })
	}
	if t.intersection != nil {
		eg.Go(func() error { return t.intersection.Run(ctx) })
		for _, v := range t.vehicles {
			eg.Go(func() error { return v.Run(ctx, t.intersection) })
		}
	}
	if iv := t.Config.StatusInterval; iv > 0 {
		eg.Go(func() error { return t.printStatus(ctx, iv) })
	}
	eg.Go(func() error { return t.cycle.Run(ctx) })

	err := eg.Wait()
	logger.Info("stopped", "phase", t.cycle.CurrentPhase().String())
	return err
}

func (t *TrafficLight) printStatus(ctx context.Context, interval time.Duration) error {
	logger := newLoggerFromContext(context.WithValue(ctx, moduleKey, "status"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			logger.Info("current phase", "phase", t.cycle.CurrentPhase().String())
		}
	}
}
