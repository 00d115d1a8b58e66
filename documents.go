// manifold/documents.go
package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// generateUniqueFilename creates a unique filename to prevent overwriting existing files
func generateUniqueFilename(originalName string) string {
	ext := filepath.Ext(originalName)
	name := strings.TrimSuffix(originalName, ext)
	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("%s_%s%s", name, timestamp, ext)
}

func respondWithError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}
