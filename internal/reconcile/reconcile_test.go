package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebsnider/deckhand/internal/catalog"
	"github.com/calebsnider/deckhand/internal/systemd"
)

// fakeManager implements systemd.Manager with overridable behavior and an
// ordered call log.
type fakeManager struct {
	calls []string

	reloadErr error
	enableErr map[string]error
	states    map[string]systemd.State
	stateErr  map[string]error
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		enableErr: make(map[string]error),
		states:    make(map[string]systemd.State),
		stateErr:  make(map[string]error),
	}
}

func (m *fakeManager) DaemonReload(ctx context.Context) error {
	m.calls = append(m.calls, "daemon-reload")
	return m.reloadErr
}

func (m *fakeManager) EnableNow(ctx context.Context, unit string) error {
	m.calls = append(m.calls, "enable "+unit)
	return m.enableErr[unit]
}

func (m *fakeManager) IsActive(ctx context.Context, unit string) (systemd.State, error) {
	m.calls = append(m.calls, "is-active "+unit)
	if err := m.stateErr[unit]; err != nil {
		return systemd.StateUnknown, err
	}
	if state, ok := m.states[unit]; ok {
		return state, nil
	}
	return systemd.StateActive, nil
}

// fixture builds a project layout with the given templates and env content.
type fixture struct {
	cfg     *Config
	manager *fakeManager
}

func newFixture(t *testing.T, env string, templates map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()

	templatesDir := filepath.Join(root, "templates")
	require.NoError(t, os.Mkdir(templatesDir, 0755))
	for name, text := range templates {
		require.NoError(t, os.WriteFile(filepath.Join(templatesDir, name), []byte(text), 0644))
	}

	envFile := filepath.Join(root, "deckhand.env")
	require.NoError(t, os.WriteFile(envFile, []byte(env), 0644))

	cfg := DefaultConfig()
	cfg.TemplatesDir = templatesDir
	cfg.EnvFile = envFile
	cfg.InstallDir = filepath.Join(root, "install")
	cfg.BackupDir = filepath.Join(root, "backups")
	cfg.SettleDelay = 0

	return &fixture{cfg: cfg, manager: newFakeManager()}
}

func (f *fixture) reconciler(t *testing.T) *Reconciler {
	t.Helper()
	return NewReconciler(f.cfg,
		WithManager(f.manager),
		WithLockFile(filepath.Join(t.TempDir(), "deckhand.lock")),
	)
}

func TestRunDeploysAllServices(t *testing.T) {
	f := newFixture(t, "SERVER_IP=10.0.0.5\nJELLYFIN_PORT=8096\nSONARR_PORT=8989\n", map[string]string{
		"jellyfin.container": "[Container]\nPublishPort=${JELLYFIN_PORT}:8096\n",
		"sonarr.container":   "[Container]\nPublishPort=${SONARR_PORT}:8989\n",
	})

	outcome, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, outcome.Results, 2)
	// Catalog order is lexicographic by name.
	assert.Equal(t, "jellyfin", outcome.Results[0].Name)
	assert.Equal(t, "sonarr", outcome.Results[1].Name)
	for _, res := range outcome.Results {
		assert.Equal(t, StateActive, res.State)
		assert.Equal(t, FailureNone, res.Failure)
		assert.NoError(t, res.Err)
	}

	// The rendered unit reached the install directory fully substituted.
	data, err := os.ReadFile(filepath.Join(f.cfg.InstallDir, "jellyfin.container"))
	require.NoError(t, err)
	assert.Equal(t, "[Container]\nPublishPort=8096:8096\n", string(data))

	// One reload, then enables, then status queries.
	assert.Equal(t, []string{
		"daemon-reload",
		"enable jellyfin",
		"enable sonarr",
		"is-active jellyfin",
		"is-active sonarr",
	}, f.manager.calls)
}

func TestRunIsolatesEnableFailure(t *testing.T) {
	f := newFixture(t, "A_PORT=1\nB_PORT=2\nC_PORT=3\n", map[string]string{
		"a.container": "PublishPort=${A_PORT}\n",
		"b.container": "PublishPort=${B_PORT}\n",
		"c.container": "PublishPort=${C_PORT}\n",
	})
	f.manager.enableErr["b"] = errors.New("manager rejected unit")

	outcome, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, outcome.Results, 3)
	assert.Equal(t, StateActive, outcome.Results[0].State)
	assert.Equal(t, StateFailed, outcome.Results[1].State)
	assert.Equal(t, FailureEnable, outcome.Results[1].Failure)
	assert.Equal(t, StateActive, outcome.Results[2].State)

	// The failed unit is never status-queried.
	assert.NotContains(t, f.manager.calls, "is-active b")
	assert.Contains(t, f.manager.calls, "is-active a")
	assert.Contains(t, f.manager.calls, "is-active c")
}

func TestRunSkipsUnboundTemplate(t *testing.T) {
	f := newFixture(t, "GOOD_PORT=8080\n", map[string]string{
		"bad.container":  "PublishPort=${MISSING_PORT}\n",
		"good.container": "PublishPort=${GOOD_PORT}\n",
	})

	outcome, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, outcome.Results, 2)

	bad := outcome.Results[0]
	assert.Equal(t, StateUndeployed, bad.State)
	assert.Equal(t, FailureUnbound, bad.Failure)
	assert.ErrorContains(t, bad.Err, "MISSING_PORT")
	assert.NoFileExists(t, filepath.Join(f.cfg.InstallDir, "bad.container"))

	good := outcome.Results[1]
	assert.Equal(t, StateActive, good.State)

	// The manager never hears about the template that failed to render.
	assert.NotContains(t, f.manager.calls, "enable bad")
}

func TestRunEnableTimeoutIsTerminalFailure(t *testing.T) {
	f := newFixture(t, "A_PORT=1\n", map[string]string{
		"a.container": "PublishPort=${A_PORT}\n",
	})
	f.manager.enableErr["a"] = fmt.Errorf("enable a: %w", context.DeadlineExceeded)

	outcome, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, outcome.Results, 1)
	assert.Equal(t, StateFailed, outcome.Results[0].State)
	assert.Equal(t, FailureTimeout, outcome.Results[0].Failure)
}

func TestRunReportsInactiveAsFailed(t *testing.T) {
	f := newFixture(t, "A_PORT=1\n", map[string]string{
		"a.container": "PublishPort=${A_PORT}\n",
	})
	f.manager.states["a"] = systemd.StateFailed

	outcome, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateFailed, outcome.Results[0].State)
	assert.Equal(t, FailureInactive, outcome.Results[0].Failure)
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	f := newFixture(t, "A_PORT=1\n", map[string]string{
		"a.container": "PublishPort=${A_PORT}\n",
	})
	f.cfg.DryRun = true

	outcome, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, outcome.Results, 1)
	assert.Equal(t, StateUndeployed, outcome.Results[0].State)
	assert.Equal(t, catalog.ChangeNew, outcome.Results[0].Change)
	assert.NoFileExists(t, filepath.Join(f.cfg.InstallDir, "a.container"))
	assert.Empty(t, f.manager.calls, "dry run must not touch the manager")
}

func TestRunIdempotentReruns(t *testing.T) {
	f := newFixture(t, "A_PORT=1\n", map[string]string{
		"a.container": "PublishPort=${A_PORT}\n",
	})

	_, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(f.cfg.InstallDir, "a.container"))
	require.NoError(t, err)

	outcome, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.ChangeUnchanged, outcome.Results[0].Change)

	second, err := os.ReadFile(filepath.Join(f.cfg.InstallDir, "a.container"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunAbortsOnMissingConfig(t *testing.T) {
	f := newFixture(t, "", map[string]string{
		"a.container": "plain\n",
	})
	f.cfg.EnvFile = filepath.Join(t.TempDir(), "missing.env")

	outcome, err := f.reconciler(t).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Empty(t, f.manager.calls)
	assert.NoFileExists(t, filepath.Join(f.cfg.InstallDir, "a.container"))
}

func TestRunCancelledBeforeFirstTemplate(t *testing.T) {
	f := newFixture(t, "A_PORT=1\n", map[string]string{
		"a.container": "PublishPort=${A_PORT}\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := f.reconciler(t).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, outcome)
	assert.Empty(t, outcome.Results)
	assert.Empty(t, f.manager.calls)
}

func TestRunReportsOrphans(t *testing.T) {
	f := newFixture(t, "A_PORT=1\n", map[string]string{
		"a.container": "PublishPort=${A_PORT}\n",
	})
	require.NoError(t, os.MkdirAll(f.cfg.InstallDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.InstallDir, "retired.container"), []byte("old"), 0644))

	outcome, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"retired.container"}, outcome.Orphans)
	// Orphans are reported, never removed.
	assert.FileExists(t, filepath.Join(f.cfg.InstallDir, "retired.container"))
}

func TestRunBacksUpChangedUnit(t *testing.T) {
	f := newFixture(t, "A_PORT=1\n", map[string]string{
		"a.container": "PublishPort=${A_PORT}\n",
	})
	require.NoError(t, os.MkdirAll(f.cfg.InstallDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.InstallDir, "a.container"), []byte("old content"), 0644))

	_, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)

	sets, err := os.ReadDir(f.cfg.BackupDir)
	require.NoError(t, err)
	require.Len(t, sets, 1)

	data, err := os.ReadFile(filepath.Join(f.cfg.BackupDir, sets[0].Name(), "a.container"))
	require.NoError(t, err)
	assert.Equal(t, "old content", string(data))
}

func TestRunSettleDelayBeforeStatusQuery(t *testing.T) {
	f := newFixture(t, "A_PORT=1\n", map[string]string{
		"a.container": "PublishPort=${A_PORT}\n",
	})
	f.cfg.SettleDelay = 50 * time.Millisecond

	r := f.reconciler(t)
	slept := false
	r.sleep = func(ctx context.Context, d time.Duration) error {
		assert.Equal(t, 50*time.Millisecond, d)
		assert.NotContains(t, f.manager.calls, "is-active a", "settle must precede the status query")
		assert.Contains(t, f.manager.calls, "enable a", "settle must follow enable")
		slept = true
		return nil
	}

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, slept)
}

func TestLockPreventsConcurrentRuns(t *testing.T) {
	lockFile := filepath.Join(t.TempDir(), "deckhand.lock")

	r1 := &Reconciler{lockFile: lockFile}
	r2 := &Reconciler{lockFile: lockFile}

	require.NoError(t, r1.acquireLock())
	defer r1.releaseLock()

	err := r2.acquireLock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock already held")

	r1.releaseLock()
	require.NoError(t, r2.acquireLock())
	r2.releaseLock()
}
