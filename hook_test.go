package trafficlight_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fujiwara/trafficlight"
	"github.com/fujiwara/trafficlight/mocks"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommandHook(t *testing.T) {
	testCases := []struct {
		name      string
		cfg       *trafficlight.HookConfig
		wantMatch map[trafficlight.Phase]bool
		wantErr   bool
	}{
		{
			name: "on green",
			cfg:  &trafficlight.HookConfig{Name: "g", On: "green", Command: "echo go"},
			wantMatch: map[trafficlight.Phase]bool{
				trafficlight.PhaseGreen: true,
				trafficlight.PhaseRed:   false,
			},
		},
		{
			name: "every phase",
			cfg:  &trafficlight.HookConfig{Name: "all", Command: "echo any"},
			wantMatch: map[trafficlight.Phase]bool{
				trafficlight.PhaseGreen: true,
				trafficlight.PhaseRed:   true,
			},
		},
		{
			name:    "empty command",
			cfg:     &trafficlight.HookConfig{Name: "empty"},
			wantErr: true,
		},
		{
			name:    "unterminated quote",
			cfg:     &trafficlight.HookConfig{Name: "broken", Command: `echo "oops`},
			wantErr: true,
		},
		{
			name:    "invalid phase",
			cfg:     &trafficlight.HookConfig{Name: "bad", On: "amber", Command: "true"},
			wantErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := trafficlight.NewCommandHook(tc.cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cfg.Name, h.Name())
			for p, want := range tc.wantMatch {
				assert.Equal(t, want, h.Match(p), "phase %s", p)
			}
		})
	}
}

func TestCommandHook_Run(t *testing.T) {
	out := filepath.Join(t.TempDir(), "phase.txt")
	h, err := trafficlight.NewCommandHook(&trafficlight.HookConfig{
		Name:    "write",
		Command: `sh -c 'printf "%s" "$TRAFFICLIGHT_PHASE" > ` + out + `'`,
		Timeout: time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, h.Run(context.Background(), trafficlight.PhaseGreen))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "green", string(b))
}

func TestCommandHook_RunFailure(t *testing.T) {
	h, err := trafficlight.NewCommandHook(&trafficlight.HookConfig{
		Name:    "fail",
		Command: "sh -c 'exit 3'",
		Timeout: time.Second,
	})
	require.NoError(t, err)
	assert.Error(t, h.Run(context.Background(), trafficlight.PhaseRed))
}

func TestCommandHook_RunTimeout(t *testing.T) {
	h, err := trafficlight.NewCommandHook(&trafficlight.HookConfig{
		Name:    "slow",
		Command: "sleep 5",
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	start := time.Now()
	assert.Error(t, h.Run(context.Background(), trafficlight.PhaseRed))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestHookRunner(t *testing.T) {
	testCases := []struct {
		name  string
		phase trafficlight.Phase
		mock  func(ctrl *gomock.Controller, done chan struct{}) trafficlight.Hook
	}{
		{
			name:  "matching hook runs",
			phase: trafficlight.PhaseGreen,
			mock: func(ctrl *gomock.Controller, done chan struct{}) trafficlight.Hook {
				h := mocks.NewMockHook(ctrl)
				h.EXPECT().Match(trafficlight.PhaseGreen).Return(true)
				h.EXPECT().Run(gomock.Any(), trafficlight.PhaseGreen).
					DoAndReturn(func(ctx context.Context, p trafficlight.Phase) error {
						close(done)
						return nil
					})
				return h
			},
		},
		{
			name:  "failing hook is logged",
			phase: trafficlight.PhaseRed,
			mock: func(ctrl *gomock.Controller, done chan struct{}) trafficlight.Hook {
				h := mocks.NewMockHook(ctrl)
				h.EXPECT().Match(trafficlight.PhaseRed).Return(true)
				h.EXPECT().Run(gomock.Any(), trafficlight.PhaseRed).
					DoAndReturn(func(ctx context.Context, p trafficlight.Phase) error {
						close(done)
						return errors.New("boom")
					})
				h.EXPECT().Name().Return("boom").AnyTimes()
				return h
			},
		},
		{
			name:  "non matching hook is skipped",
			phase: trafficlight.PhaseRed,
			mock: func(ctrl *gomock.Controller, done chan struct{}) trafficlight.Hook {
				h := mocks.NewMockHook(ctrl)
				h.EXPECT().Match(trafficlight.PhaseRed).
					DoAndReturn(func(p trafficlight.Phase) bool {
						close(done)
						return false
					})
				return h
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			c := newTestCycle(t, false)
			done := make(chan struct{})
			runner := trafficlight.NewHookRunner(c.WatchAll(trafficlight.HookBufferSize), []trafficlight.Hook{tc.mock(ctrl, done)})

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() {
				errCh <- runner.Run(ctx)
			}()
			c.Publish(tc.phase)

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("hook was not dispatched")
			}
			cancel()
			select {
			case err := <-errCh:
				assert.NoError(t, err)
			case <-time.After(time.Second):
				t.Fatal("runner did not stop")
			}
			assert.Equal(t, 0, c.NumWatchers())
		})
	}
}

func TestHookRunner_SlowHookSeesEveryTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var mu sync.Mutex
	var seen []trafficlight.Phase
	done := make(chan struct{})
	h := mocks.NewMockHook(ctrl)
	h.EXPECT().Match(gomock.Any()).Return(true).Times(3)
	h.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, p trafficlight.Phase) error {
			time.Sleep(100 * time.Millisecond)
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, p)
			if len(seen) == 3 {
				close(done)
			}
			return nil
		}).Times(3)

	c := newTestCycle(t, false)
	runner := trafficlight.NewHookRunner(c.WatchAll(trafficlight.HookBufferSize), []trafficlight.Hook{h})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- runner.Run(ctx)
	}()

	c.Publish(trafficlight.PhaseGreen)
	time.Sleep(20 * time.Millisecond)
	c.Publish(trafficlight.PhaseRed)
	c.Publish(trafficlight.PhaseGreen)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hook did not see every transition")
	}
	cancel()
	require.NoError(t, <-errCh)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []trafficlight.Phase{
		trafficlight.PhaseGreen,
		trafficlight.PhaseRed,
		trafficlight.PhaseGreen,
	}, seen)
}
