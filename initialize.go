// manifold/initialize.go

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
)

// InitializeApplication performs necessary setup tasks before the HTTP
// server starts: ensuring the data directory (and the diving upload/tmp
// subdirectories diving_handlers.go stages uploads into) exists, and
// standing up the user-account database auth_handlers.go authenticates
// against.
func InitializeApplication(config *Config) error {
	if config.DataPath == "" {
		return fmt.Errorf("data path not configured")
	}

	if _, err := os.Stat(config.DataPath); os.IsNotExist(err) {
		pterm.Info.Printf("Data directory '%s' does not exist, creating it...\n", config.DataPath)
		if err := os.MkdirAll(config.DataPath, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		pterm.Success.Printf("Data directory '%s' created successfully.\n", config.DataPath)
	} else if err != nil {
		return fmt.Errorf("failed to stat data directory: %w", err)
	}

	dirs := []string{
		filepath.Join(config.DataPath, "diving", "uploads"),
		filepath.Join(config.DataPath, "tmp"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := initUserDB(config); err != nil {
		return fmt.Errorf("failed to initialize user database: %w", err)
	}

	return nil
}
