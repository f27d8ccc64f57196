package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0644))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "sonarr.container", "sonarr unit")
	writeTemplate(t, dir, "jellyfin.container", "jellyfin unit")
	writeTemplate(t, dir, "caddy.container", "caddy unit")
	writeTemplate(t, dir, ".hidden.container", "skip me")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))

	templates, err := Discover(dir)
	require.NoError(t, err)

	require.Len(t, templates, 3)
	assert.Equal(t, "caddy", templates[0].Name)
	assert.Equal(t, "jellyfin", templates[1].Name)
	assert.Equal(t, "sonarr", templates[2].Name)
	assert.Equal(t, ".container", templates[1].Ext)
	assert.Equal(t, "jellyfin.container", templates[1].FileName())
	assert.Equal(t, "jellyfin unit", templates[1].Text)
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestDiscoverEmptyDir(t *testing.T) {
	templates, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestMaterializeIdempotent(t *testing.T) {
	destDir := t.TempDir()
	unit := RenderedUnit{Name: "jellyfin", FileName: "jellyfin.container", Text: "[Container]\nImage=jellyfin\n"}

	first, err := Materialize(unit, destDir)
	require.NoError(t, err)

	second, err := Materialize(unit, destDir)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same path both times")

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, unit.Text, string(data), "byte-identical output")
}

func TestMaterializeCreatesDestDir(t *testing.T) {
	destDir := filepath.Join(t.TempDir(), "systemd")
	unit := RenderedUnit{Name: "a", FileName: "a.container", Text: "x"}

	path, err := Materialize(unit, destDir)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestMaterializeFailureLeavesPriorUnit(t *testing.T) {
	destDir := t.TempDir()

	good := RenderedUnit{Name: "a", FileName: "a.container", Text: "valid"}
	path, err := Materialize(good, destDir)
	require.NoError(t, err)

	// Point the destination at a path whose parent is a regular file; the
	// write cannot even stage a temp file there.
	badDest := filepath.Join(path, "nested")
	_, err = Materialize(good, badDest)
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "valid", string(data))
}

func TestPendingChange(t *testing.T) {
	destDir := t.TempDir()
	unit := RenderedUnit{Name: "a", FileName: "a.container", Text: "v1"}

	change, err := PendingChange(unit, destDir)
	require.NoError(t, err)
	assert.Equal(t, ChangeNew, change)

	_, err = Materialize(unit, destDir)
	require.NoError(t, err)

	change, err = PendingChange(unit, destDir)
	require.NoError(t, err)
	assert.Equal(t, ChangeUnchanged, change)

	unit.Text = "v2"
	change, err = PendingChange(unit, destDir)
	require.NoError(t, err)
	assert.Equal(t, ChangeUpdated, change)
}

func TestOrphans(t *testing.T) {
	templatesDir := t.TempDir()
	destDir := t.TempDir()

	writeTemplate(t, templatesDir, "jellyfin.container", "unit")
	templates, err := Discover(templatesDir)
	require.NoError(t, err)

	// Installed: the cataloged unit plus two leftovers.
	writeTemplate(t, destDir, "jellyfin.container", "unit")
	writeTemplate(t, destDir, "radarr.container", "old unit")
	writeTemplate(t, destDir, "bazarr.container", "old unit")

	orphans, err := Orphans(destDir, templates)
	require.NoError(t, err)
	assert.Equal(t, []string{"bazarr.container", "radarr.container"}, orphans)
}

func TestOrphansMissingInstallDir(t *testing.T) {
	orphans, err := Orphans(filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}
