// Package convert turns an uploaded document into plain structured text
// ready for chunking, delegating PDF/DOCX/PPT conversion to an external
// document-conversion sidecar (the OCR+table-structure pipeline) and
// handling HTML locally.
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Metadata mirrors dockling.py's extract_document_metadata: a small set of
// structural facts about the converted document.
type Metadata struct {
	Name        string `json:"name"`
	Origin      string `json:"origin"`
	NumPages    int    `json:"num_pages"`
	NumTables   int    `json:"num_tables"`
	NumPictures int    `json:"num_pictures"`
}

// Result is the converted document: its text body plus structural metadata.
type Result struct {
	Text     string
	Metadata Metadata
}

// Client converts a document at path into text + metadata.
type Client interface {
	Convert(ctx context.Context, path string) (Result, error)
}

// htmlExtensions are handled locally without the sidecar, matching the
// teacher's web-fetch pipeline (internal/tools/web/fetch.go).
var htmlExtensions = map[string]bool{".html": true, ".htm": true}

// SidecarClient talks to an external document-conversion service (the
// OCR + ACCURATE-table-structure pipeline described by dockling.py) over
// HTTP, falling back to a local HTML→Markdown conversion for .html/.htm
// files so the sidecar only needs to handle the heavy document formats.
type SidecarClient struct {
	Host       string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Option configures a SidecarClient.
type Option func(*SidecarClient)

// WithTimeout overrides the default conversion timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *SidecarClient) { c.Timeout = d }
}

// New builds a SidecarClient pointed at host, defaulting the timeout to
// 120s to match original_source's DOCLING_TIMEOUT default.
func New(host, apiKey string, opts ...Option) *SidecarClient {
	c := &SidecarClient{
		Host:       strings.TrimRight(host, "/"),
		APIKey:     apiKey,
		Timeout:    120 * time.Second,
		HTTPClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sidecarResponse is the wire shape of the conversion service's reply.
type sidecarResponse struct {
	Text        string `json:"text"`
	Name        string `json:"name"`
	Origin      string `json:"origin"`
	NumPages    int    `json:"num_pages"`
	NumTables   int    `json:"num_tables"`
	NumPictures int    `json:"num_pictures"`
}

// Convert converts the file at path, routing HTML locally and everything
// else (PDF, DOCX, PPTX, ...) to the sidecar.
func (c *SidecarClient) Convert(ctx context.Context, path string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if htmlExtensions[ext] {
		return c.convertHTML(path)
	}
	return c.convertViaSidecar(ctx, path)
}

func (c *SidecarClient) convertHTML(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read html: %w", err)
	}
	md, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return Result{}, fmt.Errorf("html→markdown: %w", err)
	}
	name := filepath.Base(path)
	return Result{
		Text: strings.TrimSpace(md),
		Metadata: Metadata{
			Name:     name,
			Origin:   path,
			NumPages: 1,
		},
	}, nil
}

func (c *SidecarClient) convertViaSidecar(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return Result{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return Result{}, fmt.Errorf("buffer document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("finalize upload: %w", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, c.Host+"/convert", &body)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		if cctx.Err() != nil {
			return Result{}, fmt.Errorf("conversion timeout after %s: %w", timeout, cctx.Err())
		}
		return Result{}, fmt.Errorf("conversion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("conversion service returned %d: %s", resp.StatusCode, string(payload))
	}

	var sr sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return Result{}, fmt.Errorf("decode conversion response: %w", err)
	}

	name := sr.Name
	if name == "" {
		name = filepath.Base(path)
	}
	return Result{
		Text: sr.Text,
		Metadata: Metadata{
			Name:        name,
			Origin:      sr.Origin,
			NumPages:    sr.NumPages,
			NumTables:   sr.NumTables,
			NumPictures: sr.NumPictures,
		},
	}, nil
}

var _ Client = (*SidecarClient)(nil)
