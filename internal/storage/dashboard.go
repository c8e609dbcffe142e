package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Traderyo93/gapdash/internal/models"
)

// ErrNoDashboard is returned when the cache file has not been written yet.
var ErrNoDashboard = errors.New("dashboard cache not found")

const (
	cacheFilePermissions = 0644
	cacheDirPermissions  = 0755
)

// SaveDashboard writes the dashboard record to path atomically: readers see
// either the previous file or the complete new one.
func SaveDashboard(path string, d *models.Dashboard) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, cacheDirPermissions); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dashboard: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, cacheFilePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// LoadDashboard reads the dashboard record from path.
func LoadDashboard(path string) (*models.Dashboard, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoDashboard
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var d models.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dashboard: %w", err)
	}
	return &d, nil
}
