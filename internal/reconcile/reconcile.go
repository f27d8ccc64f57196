// Package reconcile converges running services to match the template catalog.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/calebsnider/deckhand/internal/catalog"
	"github.com/calebsnider/deckhand/internal/fileutil"
	"github.com/calebsnider/deckhand/internal/systemd"
	"github.com/calebsnider/deckhand/internal/template"
	"github.com/calebsnider/deckhand/internal/ui"
	"github.com/calebsnider/deckhand/internal/vars"
)

// RecordState is a service record's position in the deployment state machine.
type RecordState string

const (
	// StateUndeployed means the unit never reached the install directory.
	StateUndeployed RecordState = "undeployed"
	// StateMaterialized means the rendered unit is installed but not enabled.
	StateMaterialized RecordState = "materialized"
	// StateEnabled means the manager accepted enable-and-start.
	StateEnabled RecordState = "enabled"
	// StateActive means the manager reports the unit running.
	StateActive RecordState = "active"
	// StateFailed means the unit failed to enable, start, or respond.
	StateFailed RecordState = "failed"
)

// FailureKind classifies why a record did not reach StateActive.
type FailureKind string

const (
	FailureNone     FailureKind = ""
	FailureUnbound  FailureKind = "unbound-variable"
	FailureWrite    FailureKind = "write-error"
	FailureEnable   FailureKind = "enable-error"
	FailureTimeout  FailureKind = "manager-timeout"
	FailureInactive FailureKind = "not-running"
)

// Result is the terminal outcome for one service record.
type Result struct {
	// Name is the service name.
	Name string
	// State is the terminal state after this run.
	State RecordState
	// Change is what this run did to the installed unit file.
	Change catalog.Change
	// Failure classifies the error when State is not StateActive.
	Failure FailureKind
	// Err carries the underlying error for failed records.
	Err error
}

// Outcome is the result of one reconciliation run.
type Outcome struct {
	// Results holds one entry per discovered template, in catalog order.
	Results []Result
	// Orphans lists installed units with no backing template.
	Orphans []string
	// Bindings is the variable set the run rendered with.
	Bindings vars.Bindings
	// Duration is the wall-clock run time.
	Duration time.Duration
}

// Config holds the reconciliation configuration.
type Config struct {
	// TemplatesDir holds one unit template per service.
	TemplatesDir string
	// InstallDir is the service manager's unit discovery directory.
	InstallDir string
	// EnvFile is the flat key=value bindings file.
	EnvFile string
	// ValuesFile is an optional YAML overlay applied over EnvFile.
	ValuesFile string
	// SecretsFile is an optional SOPS-encrypted overlay applied last.
	SecretsFile string
	// BackupDir receives copies of units about to be overwritten.
	BackupDir string
	// BackupsToKeep is the number of backup sets to retain.
	BackupsToKeep int

	// UserMode selects the per-user service manager.
	UserMode bool
	// DryRun renders and reports without writing or touching the manager.
	DryRun bool
	// SettleDelay is the bounded wait between enabling units and the single
	// status query.
	SettleDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BackupsToKeep: 5,
		SettleDelay:   2 * time.Second,
	}
}

// Reconciler drives the install/enable/status convergence for one run.
type Reconciler struct {
	config   *Config
	manager  systemd.Manager
	lockFile string
	lockFd   *os.File
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithManager sets the service manager implementation.
func WithManager(m systemd.Manager) Option {
	return func(r *Reconciler) {
		r.manager = m
	}
}

// WithLockFile sets the lock file path.
func WithLockFile(path string) Option {
	return func(r *Reconciler) {
		r.lockFile = path
	}
}

// NewReconciler creates a Reconciler with the given configuration.
func NewReconciler(cfg *Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		config:   cfg,
		manager:  systemd.NewClient(cfg.UserMode),
		lockFile: filepath.Join(os.TempDir(), "deckhand.lock"),
		sleep:    sleepCtx,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes one reconciliation pass. Configuration errors (missing or
// malformed bindings, unreadable template directory) abort the run before
// any side effects. Per-template errors never do: each service is
// independent, and one broken definition must not block the rest.
func (r *Reconciler) Run(ctx context.Context) (*Outcome, error) {
	start := time.Now()

	if err := r.acquireLock(); err != nil {
		return nil, fmt.Errorf("another deployment may be in progress: %w", err)
	}
	defer r.releaseLock()

	bindings, err := r.loadBindings(ctx)
	if err != nil {
		return nil, err
	}

	templates, err := catalog.Discover(r.config.TemplatesDir)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Bindings: bindings}

	orphans, err := catalog.Orphans(r.config.InstallDir, templates)
	if err != nil {
		ui.Warning("Could not check for orphaned units: %v", err)
	}
	outcome.Orphans = orphans

	// Phase 1: render and materialize, in catalog order.
	for _, tmpl := range templates {
		if err := ctx.Err(); err != nil {
			outcome.Duration = time.Since(start)
			return outcome, err
		}
		outcome.Results = append(outcome.Results, r.materializeOne(tmpl, bindings))
	}

	if r.config.DryRun {
		outcome.Duration = time.Since(start)
		return outcome, nil
	}

	// Phase 2: one daemon-reload so the manager sees the installed set.
	if countState(outcome.Results, StateMaterialized) > 0 {
		if err := r.manager.DaemonReload(ctx); err != nil {
			ui.Warning("daemon-reload failed, enable may pick up stale units: %v", err)
		}
	}

	// Phase 3: enable-and-start each materialized unit.
	for i := range outcome.Results {
		res := &outcome.Results[i]
		if res.State != StateMaterialized {
			continue
		}
		if err := ctx.Err(); err != nil {
			outcome.Duration = time.Since(start)
			return outcome, err
		}
		r.enableOne(ctx, res)
	}

	// Phase 4: one bounded settle delay, then a single status query per unit.
	if countState(outcome.Results, StateEnabled) > 0 {
		if err := r.sleep(ctx, r.config.SettleDelay); err != nil {
			outcome.Duration = time.Since(start)
			return outcome, err
		}
		for i := range outcome.Results {
			res := &outcome.Results[i]
			if res.State != StateEnabled {
				continue
			}
			r.observeOne(ctx, res)
		}
	}

	outcome.Duration = time.Since(start)
	return outcome, nil
}

// loadBindings loads the env file and layers the optional overlays on top.
func (r *Reconciler) loadBindings(ctx context.Context) (vars.Bindings, error) {
	bindings, err := vars.Load(r.config.EnvFile)
	if err != nil {
		return nil, err
	}

	if r.config.ValuesFile != "" {
		overlay, err := vars.FromYAML(r.config.ValuesFile)
		if err != nil {
			return nil, err
		}
		bindings = bindings.Merge(overlay)
	}

	if r.config.SecretsFile != "" {
		overlay, err := vars.FromSOPS(ctx, r.config.SecretsFile)
		if err != nil {
			return nil, err
		}
		bindings = bindings.Merge(overlay)
	}

	return bindings, nil
}

// materializeOne renders one template and installs it. In dry-run mode the
// install step is skipped and only the pending change is recorded.
func (r *Reconciler) materializeOne(tmpl catalog.Template, bindings vars.Bindings) Result {
	res := Result{Name: tmpl.Name, State: StateUndeployed}

	text, err := template.Render(tmpl.Text, bindings)
	if err != nil {
		res.Failure = FailureUnbound
		res.Err = fmt.Errorf("render %s: %w", tmpl.Name, err)
		return res
	}

	unit := catalog.RenderedUnit{Name: tmpl.Name, FileName: tmpl.FileName(), Text: text}

	change, err := catalog.PendingChange(unit, r.config.InstallDir)
	if err != nil {
		res.Failure = FailureWrite
		res.Err = err
		return res
	}
	res.Change = change

	if r.config.DryRun {
		return res
	}

	if change == catalog.ChangeUpdated {
		r.backupInstalled(unit.FileName)
	}

	if _, err := catalog.Materialize(unit, r.config.InstallDir); err != nil {
		res.Failure = FailureWrite
		res.Err = err
		return res
	}

	res.State = StateMaterialized
	return res
}

// enableOne asks the manager to enable-and-start one unit. Enable failures
// are terminal for this run; they are reported, not retried.
func (r *Reconciler) enableOne(ctx context.Context, res *Result) {
	if err := r.manager.EnableNow(ctx, res.Name); err != nil {
		res.State = StateFailed
		res.Failure = FailureEnable
		if errors.Is(err, context.DeadlineExceeded) {
			res.Failure = FailureTimeout
		}
		res.Err = err
		return
	}
	res.State = StateEnabled
}

// observeOne performs the single post-settle status query for one unit.
func (r *Reconciler) observeOne(ctx context.Context, res *Result) {
	state, err := r.manager.IsActive(ctx, res.Name)
	if err != nil {
		res.State = StateFailed
		res.Failure = FailureTimeout
		res.Err = err
		return
	}

	switch state {
	case systemd.StateActive:
		res.State = StateActive
	default:
		res.State = StateFailed
		res.Failure = FailureInactive
		res.Err = fmt.Errorf("unit %s is %s after start", res.Name, state)
	}
}

// backupInstalled copies the installed unit into a timestamped backup set
// before it is overwritten. Backup failures are warnings, never fatal.
func (r *Reconciler) backupInstalled(fileName string) {
	if r.config.BackupDir == "" {
		return
	}

	backupSet := filepath.Join(r.config.BackupDir, "backup-"+time.Now().Format("20060102-150405"))
	src := filepath.Join(r.config.InstallDir, fileName)
	if err := fileutil.CopyFile(src, filepath.Join(backupSet, fileName)); err != nil {
		ui.Warning("Could not back up %s: %v", fileName, err)
		return
	}

	if err := pruneBackups(r.config.BackupDir, r.config.BackupsToKeep); err != nil {
		ui.Warning("Could not prune old backups: %v", err)
	}
}

// countState counts results currently in the given state.
func countState(results []Result, state RecordState) int {
	n := 0
	for _, res := range results {
		if res.State == state {
			n++
		}
	}
	return n
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
