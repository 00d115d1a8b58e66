// Package validate checks uploaded documents before they reach the converter.
package validate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Result reports the outcome of validating a file.
type Result struct {
	Valid   bool
	Reason  string
	SizeMB  float64
	Ext     string
}

// Options configures the checks performed by Validate.
type Options struct {
	MaxSizeMB  int
	Extensions []string // lower-cased, dot-prefixed, e.g. ".pdf"
	SniffBytes int
}

// Validate runs the extension/size/corruption checks a document must pass
// before it is handed to the converter. It never itself returns an error;
// failures are reported through Result so callers can surface them as the
// pipeline's validation_error stage without an extra type assertion.
func Validate(path string, opt Options) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Valid: false, Reason: fmt.Sprintf("file does not exist: %s", path)}
	}
	if info.IsDir() {
		return Result{Valid: false, Reason: fmt.Sprintf("path is not a file: %s", path)}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !extensionAllowed(ext, opt.Extensions) {
		return Result{Valid: false, Reason: fmt.Sprintf("unsupported format: %s", ext), Ext: ext}
	}

	sizeMB := float64(info.Size()) / (1024 * 1024)
	maxMB := opt.MaxSizeMB
	if maxMB <= 0 {
		maxMB = 50
	}
	if sizeMB > float64(maxMB) {
		return Result{
			Valid:  false,
			Reason: fmt.Sprintf("file too large: %.1fMB (max: %dMB)", sizeMB, maxMB),
			SizeMB: sizeMB,
			Ext:    ext,
		}
	}

	sniff := opt.SniffBytes
	if sniff <= 0 {
		sniff = 1024
	}
	if err := sniffReadable(path, sniff); err != nil {
		return Result{Valid: false, Reason: fmt.Sprintf("file corrupted or unreadable: %v", err), SizeMB: sizeMB, Ext: ext}
	}

	return Result{Valid: true, Reason: "valid", SizeMB: sizeMB, Ext: ext}
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

func sniffReadable(path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	buf := make([]byte, n)
	_, err = f.Read(buf)
	if errors.Is(err, io.EOF) {
		return nil // short files are valid, just smaller than the sniff window
	}
	return err
}
