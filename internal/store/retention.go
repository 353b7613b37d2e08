package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sweep deletes period files under dir whose modification time is
// strictly older than maxAgeDays. A missing directory is a no-op.
// Deletions are independent: failures are collected and returned
// together, and never stop the sweep. Returns the deleted file names.
func Sweep(dir string, maxAgeDays int, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir %s: %w", dir, err)
	}

	maxAge := time.Duration(maxAgeDays) * 24 * time.Hour

	var deleted []string
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, periodFilePrefix) || !strings.HasSuffix(name, periodFileExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			errs = append(errs, fmt.Errorf("stat %s: %w", name, err))
			continue
		}

		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}

		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
			continue
		}
		deleted = append(deleted, name)
	}

	return deleted, errors.Join(errs...)
}
