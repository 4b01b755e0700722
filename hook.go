package trafficlight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/Songmu/wrapcommander"
	"github.com/mattn/go-shellwords"
)

// Hook is run by the cycle on phase transitions it matches.
type Hook interface {
	Name() string
	Match(p Phase) bool
	Run(ctx context.Context, p Phase) error
}

type CommandHook struct {
	name     string
	on       *Phase
	commands []string
	timeout  time.Duration
}

func NewCommandHook(cfg *HookConfig) (*CommandHook, error) {
	cmds, err := shellwords.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %s %w", cfg.Command, err)
	}
	if len(cmds) == 0 {
		return nil, errors.New("no command")
	}
	h := &CommandHook{
		name:     cfg.Name,
		commands: cmds,
		timeout:  cfg.Timeout,
	}
	if h.timeout <= 0 {
		h.timeout = DefaultHookTimeout
	}
	if cfg.On != "" {
		p, err := ParsePhase(cfg.On)
		if err != nil {
			return nil, err
		}
		h.on = &p
	}
	return h, nil
}

func (h *CommandHook) Name() string {
	return h.name
}

// Match reports whether the hook runs on transitions to p. A hook without
// a phase matches every transition.
func (h *CommandHook) Match(p Phase) bool {
	return h.on == nil || *h.on == p
}

func (h *CommandHook) Run(ctx context.Context, p Phase) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	logger := newLoggerFromContext(ctx).With(
		"name", h.name,
		"phase", p.String(),
		"commands", fmt.Sprintf("%v", h.commands),
	)
	logger.Debug("executing command")
	var cmd *exec.Cmd
	if len(h.commands) == 1 {
		cmd = exec.CommandContext(ctx, h.commands[0])
	} else {
		cmd = exec.CommandContext(ctx, h.commands[0], h.commands[1:]...)
	}
	cmd.Env = append(os.Environ(), "TRAFFICLIGHT_PHASE="+p.String())
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 3 * time.Second
	out, err := cmd.CombinedOutput()
	if err != nil {
		logger.Info("command failed",
			slog.Int("exit_code", wrapcommander.ResolveExitCode(err)),
			slog.String("output", string(out)),
			slog.String("error", err.Error()),
		)
		return err
	}
	logger.Debug("command succeeded",
		slog.Int("exit_code", wrapcommander.ResolveExitCode(err)),
		slog.String("output", string(out)),
	)
	return nil
}

// hookBufferSize is how many transitions may wait while hooks are running.
const hookBufferSize = 64

// hookRunner dispatches the transitions seen by a Watcher to hooks, one
// transition at a time and in order. Hook failures are logged and do not
// stop the runner.
type hookRunner struct {
	hooks   []Hook
	watcher *Watcher
}

func newHookRunner(w *Watcher, hooks []Hook) *hookRunner {
	return &hookRunner{hooks: hooks, watcher: w}
}

func (r *hookRunner) Run(ctx context.Context) error {
	defer r.watcher.Close()
	ctx = context.WithValue(ctx, moduleKey, "hook")
	logger := newLoggerFromContext(ctx)
	for {
		p, err := r.watcher.Next(ctx)
		if err != nil {
			// context done
			return nil
		}
		for _, h := range r.hooks {
			if !h.Match(p) {
				continue
			}
			if err := h.Run(ctx, p); err != nil {
				logger.Warn("hook failed", "name", h.Name(), "phase", p.String(), "error", err.Error())
			}
		}
	}
}
