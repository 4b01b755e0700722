package trafficlight

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Intersection lets vehicles through one at a time while its cycle is
// green. A single goroutine consumes the cycle's queue through
// WaitForPhase, so vehicles never compete for the same transition.
type Intersection struct {
	cycle        *Cycle
	crossingTime time.Duration
	waiting      chan *arrival
}

type arrival struct {
	id      string
	granted chan struct{}
}

func NewIntersection(c *Cycle, cfg *IntersectionConfig) *Intersection {
	crossing := cfg.CrossingTime
	if crossing <= 0 {
		crossing = DefaultCrossingTime
	}
	return &Intersection{
		cycle:        c,
		crossingTime: crossing,
		waiting:      make(chan *arrival),
	}
}

// Enter queues the vehicle id and blocks until it is allowed to cross.
// Vehicles are let through in arrival order.
func (in *Intersection) Enter(ctx context.Context, id string) error {
	a := &arrival{id: id, granted: make(chan struct{})}
	select {
	case in.waiting <- a:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-a.granted:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes waiting vehicles until ctx is done.
func (in *Intersection) Run(ctx context.Context) error {
	ctx = context.WithValue(ctx, moduleKey, "intersection")
	logger := newLoggerFromContext(ctx)
	for {
		var a *arrival
		select {
		case <-ctx.Done():
			return nil
		case a = <-in.waiting:
		}
		// the queue may still hold a green sent just before a switch to red
		for in.cycle.CurrentPhase() != PhaseGreen {
			if err := in.cycle.WaitForPhase(ctx, PhaseGreen); err != nil {
				return nil
			}
		}
		close(a.granted)
		logger.Debug("vehicle granted entry", "vehicle", a.id)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(in.crossingTime):
		}
	}
}

// Vehicle repeatedly arrives at an intersection after a random delay and
// waits for its turn to cross.
type Vehicle struct {
	ID              string
	ArrivalInterval time.Duration
}

func NewVehicle(arrivalInterval time.Duration) *Vehicle {
	return &Vehicle{
		ID:              uuid.NewString(),
		ArrivalInterval: arrivalInterval,
	}
}

func (v *Vehicle) Run(ctx context.Context, in *Intersection) error {
	ctx = context.WithValue(ctx, moduleKey, "vehicle")
	ctx = context.WithValue(ctx, vehicleKey, v.ID)
	logger := newLoggerFromContext(ctx)
	for {
		delay := time.Duration(0)
		if v.ArrivalInterval > 0 {
			delay = time.Duration(rand.Int64N(int64(v.ArrivalInterval)))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		arrived := time.Now()
		logger.Debug("arrived at intersection")
		if err := in.Enter(ctx, v.ID); err != nil {
			return nil
		}
		logger.Info("crossing intersection", "waited", time.Since(arrived).String())
	}
}
