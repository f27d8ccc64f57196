// Package systemd drives the service manager through the systemctl CLI.
package systemd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Per-operation timeouts. A manager call that exceeds its timeout is a
// terminal failure for that unit, never a process hang.
const (
	ReloadTimeout = 30 * time.Second
	EnableTimeout = 30 * time.Second
	QueryTimeout  = 10 * time.Second
)

// State is a unit's observed activation state.
type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
	StateFailed   State = "failed"
	StateUnknown  State = "unknown"
)

// Manager is the control interface to the service manager. Repeated
// EnableNow calls for the same unit are idempotent.
type Manager interface {
	// DaemonReload asks the manager to re-read unit definitions from its
	// discovery directories.
	DaemonReload(ctx context.Context) error

	// EnableNow enables the unit and starts it in one step.
	EnableNow(ctx context.Context, unit string) error

	// IsActive queries the unit's current activation state.
	IsActive(ctx context.Context, unit string) (State, error)
}

// runFunc executes a command and returns its stdout, stderr, and error.
// It exists so tests can fake systemctl without a running manager.
type runFunc func(ctx context.Context, name string, args ...string) (string, string, error)

// Client shells out to systemctl.
type Client struct {
	// UserMode selects the per-user manager (systemctl --user).
	UserMode bool

	run runFunc
}

// Compile-time interface verification.
var _ Manager = (*Client)(nil)

// NewClient creates a systemctl-backed Manager.
func NewClient(userMode bool) *Client {
	return &Client{UserMode: userMode, run: runCommand}
}

// runCommand is the real runFunc.
func runCommand(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// systemctl builds the argument list, inserting --user when configured.
func (c *Client) systemctl(args ...string) []string {
	if c.UserMode {
		return append([]string{"--user"}, args...)
	}
	return args
}

// DaemonReload implements Manager.
func (c *Client) DaemonReload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ReloadTimeout)
	defer cancel()

	_, stderr, err := c.run(ctx, "systemctl", c.systemctl("daemon-reload")...)
	if err != nil {
		return fmt.Errorf("daemon-reload failed: %w: %s", err, strings.TrimSpace(stderr))
	}
	return nil
}

// EnableNow implements Manager.
func (c *Client) EnableNow(ctx context.Context, unit string) error {
	ctx, cancel := context.WithTimeout(ctx, EnableTimeout)
	defer cancel()

	_, stderr, err := c.run(ctx, "systemctl", c.systemctl("enable", "--now", unit)...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("enable %s: %w", unit, ctx.Err())
		}
		return fmt.Errorf("enable %s failed: %w: %s", unit, err, strings.TrimSpace(stderr))
	}
	return nil
}

// IsActive implements Manager. systemctl is-active exits nonzero for any
// non-active unit, so the exit code alone is not an error: the printed
// state is authoritative when it parses.
func (c *Client) IsActive(ctx context.Context, unit string) (State, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	stdout, stderr, err := c.run(ctx, "systemctl", c.systemctl("is-active", unit)...)
	if ctx.Err() != nil {
		return StateUnknown, fmt.Errorf("query %s: %w", unit, ctx.Err())
	}

	switch State(strings.TrimSpace(stdout)) {
	case StateActive:
		return StateActive, nil
	case StateInactive:
		return StateInactive, nil
	case StateFailed:
		return StateFailed, nil
	case "activating", "deactivating", "reloading":
		// Transitional states count as not yet active.
		return StateInactive, nil
	}

	if err != nil {
		return StateUnknown, fmt.Errorf("query %s failed: %w: %s", unit, err, strings.TrimSpace(stderr))
	}
	return StateUnknown, fmt.Errorf("query %s: unrecognized state %q", unit, strings.TrimSpace(stdout))
}
