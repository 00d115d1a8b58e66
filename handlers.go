// manifold/handlers.go
package main

import (
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
)

// configHandler handles requests to fetch the application configuration.
func configHandler(c echo.Context) error {
	config, err := LoadConfig("config.yaml")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load config"})
	}
	return c.JSON(http.StatusOK, config)
}

// getFileSystem returns the file system for serving static frontend files.
func getFileSystem() http.FileSystem {
	fsys, err := fs.Sub(frontendDist, "frontend/dist")
	if err != nil {
		log.Fatalf("Failed to get file system: %v", err)
	}
	return http.FS(fsys)
}
