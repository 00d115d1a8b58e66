package validate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate_MissingFile(t *testing.T) {
	res := Validate(filepath.Join(t.TempDir(), "nope.pdf"), Options{Extensions: []string{".pdf"}})
	if res.Valid {
		t.Fatalf("expected invalid result for missing file")
	}
}

func TestValidate_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manual.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	res := Validate(path, Options{Extensions: []string{".pdf", ".docx"}})
	if res.Valid {
		t.Fatalf("expected unsupported-extension rejection, got valid")
	}
}

func TestValidate_TooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manual.pdf")
	if err := os.WriteFile(path, make([]byte, 2*1024*1024), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	res := Validate(path, Options{Extensions: []string{".pdf"}, MaxSizeMB: 1})
	if res.Valid {
		t.Fatalf("expected too-large rejection, got valid")
	}
}

func TestValidate_OK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manual.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 minimal"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	res := Validate(path, Options{Extensions: []string{".pdf"}, MaxSizeMB: 50, SniffBytes: 8})
	if !res.Valid {
		t.Fatalf("expected valid result, got reason: %s", res.Reason)
	}
	if res.Ext != ".pdf" {
		t.Fatalf("expected ext .pdf, got %s", res.Ext)
	}
}
