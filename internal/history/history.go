// Package history records deployment runs for later inspection.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calebsnider/deckhand/internal/fileutil"
	"github.com/calebsnider/deckhand/internal/reconcile"
)

const (
	// filePrefix is the prefix for history record filenames.
	filePrefix = "run-"
	// dateFormat is the sortable timestamp embedded in filenames.
	dateFormat = "20060102-150405"
	// MaxRecords is the number of run records to retain.
	MaxRecords = 50
)

// ServiceResult is one service's terminal state within a run.
type ServiceResult struct {
	Name    string                `json:"name"`
	State   reconcile.RecordState `json:"state"`
	Failure string                `json:"failure,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// Record is one deployment run.
type Record struct {
	ID       string          `json:"id"`
	Started  time.Time       `json:"started"`
	Duration string          `json:"duration"`
	DryRun   bool            `json:"dry_run,omitempty"`
	Services []ServiceResult `json:"services"`
	Orphans  []string        `json:"orphans,omitempty"`
}

// NewRecord builds a Record from a reconciliation outcome.
func NewRecord(outcome *reconcile.Outcome, started time.Time, dryRun bool) Record {
	rec := Record{
		ID:       uuid.New().String(),
		Started:  started,
		Duration: outcome.Duration.Round(time.Millisecond).String(),
		DryRun:   dryRun,
		Orphans:  outcome.Orphans,
	}

	for _, res := range outcome.Results {
		sr := ServiceResult{
			Name:    res.Name,
			State:   res.State,
			Failure: string(res.Failure),
		}
		if res.Err != nil {
			sr.Error = res.Err.Error()
		}
		rec.Services = append(rec.Services, sr)
	}

	return rec
}

// Append writes a record into stateDir/history and prunes old records.
func Append(stateDir string, rec Record) error {
	dir := historyDir(stateDir)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}

	name := filePrefix + rec.Started.Format(dateFormat) + "-" + shortID(rec.ID) + ".json"
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, name), data, 0644); err != nil {
		return fmt.Errorf("write history record: %w", err)
	}

	return prune(dir, MaxRecords)
}

// List returns all recorded runs, newest first.
func List(stateDir string) ([]Record, error) {
	dir := historyDir(stateDir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history directory: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read history record %s: %w", entry.Name(), err)
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parse history record %s: %w", entry.Name(), err)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Started.After(records[j].Started)
	})

	return records, nil
}

// historyDir returns the history directory under the state directory.
func historyDir(stateDir string) string {
	return filepath.Join(stateDir, "history")
}

// shortID returns the first uuid segment, enough to disambiguate filenames
// that share a second-resolution timestamp.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// prune removes the oldest records beyond keep. Filenames embed a sortable
// timestamp, so lexicographic order is chronological order.
func prune(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read history directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), filePrefix) {
			names = append(names, entry.Name())
		}
	}

	if len(names) <= keep {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove history record %s: %w", name, err)
		}
	}

	return nil
}
