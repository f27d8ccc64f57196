package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// pruneBackups removes old backup sets, keeping only the most recent keep.
// Backup set names embed a sortable timestamp, so lexicographic order is
// chronological order.
func pruneBackups(backupDir string, keep int) error {
	if keep <= 0 {
		return nil
	}

	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read backup directory: %w", err)
	}

	var sets []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "backup-") {
			sets = append(sets, entry.Name())
		}
	}

	if len(sets) <= keep {
		return nil
	}

	sort.Strings(sets)
	for _, name := range sets[:len(sets)-keep] {
		if err := os.RemoveAll(filepath.Join(backupDir, name)); err != nil {
			return fmt.Errorf("remove backup %s: %w", name, err)
		}
	}

	return nil
}
