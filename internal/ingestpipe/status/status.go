// Package status tracks the per-upload processing state machine: stage,
// sub-stage, progress percentage, metrics and terminal outcome.
package status

import (
	"sync"
	"time"
)

// Stage names, matching original_source's process_document stage list.
const (
	StageQueued      = "queued"
	StageValidating  = "validating"
	StageConverting  = "converting"
	StageChunking    = "chunking"
	StageIngesting   = "ingesting"
	StageCompleted   = "completed"
	StageFailed      = "failed"
)

// Error categories, one per distinct failure mode the orchestrator can hit.
const (
	ErrorValidation = "validation_error"
	ErrorConversion = "conversion_error"
	ErrorTimeout    = "timeout_error"
	ErrorGraph      = "graph_error"
	ErrorUnknown    = "unknown_error"
)

// IngestionProgress tracks per-chunk ingestion counters while StageIngesting
// is active.
type IngestionProgress struct {
	ChunksTotal      int `json:"chunks_total"`
	ChunksSucceeded  int `json:"chunks_succeeded"`
	ChunksFailed     int `json:"chunks_failed"`
}

// Entry is one upload's full status record.
type Entry struct {
	UploadID        string             `json:"upload_id"`
	Filename        string             `json:"filename"`
	Status          string             `json:"status"` // "processing" | "completed" | "failed"
	Stage           string             `json:"stage"`
	SubStage        string             `json:"sub_stage,omitempty"`
	Progress        int                `json:"progress"` // 0-100, monotonic
	ProgressDetail  string             `json:"progress_detail,omitempty"`
	Ingestion       IngestionProgress  `json:"ingestion_progress"`
	Metrics         map[string]any     `json:"metrics,omitempty"`
	Durations       map[string]int64   `json:"durations_ms,omitempty"` // per-stage duration in ms
	StartedAt       time.Time          `json:"started_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Error           string             `json:"error,omitempty"`
	ErrorCategory   string             `json:"error_category,omitempty"`
}

// stageProgress gives each stage a floor percentage so progress is monotonic
// across the pipeline, matching processor.py's fixed per-stage percentages.
var stageProgress = map[string]int{
	StageQueued:     0,
	StageValidating: 5,
	StageConverting: 20,
	StageChunking:   45,
	StageIngesting:  60,
	StageCompleted:  100,
	StageFailed:     100,
}

// Registry is the interface both backends (in-memory, Redis) implement.
type Registry interface {
	Create(uploadID, filename string) Entry
	Get(uploadID string) (Entry, bool)
	List() []Entry
	UpdateStage(uploadID, stage, subStage, detail string)
	UpdateIngestionProgress(uploadID string, ip IngestionProgress)
	RecordDuration(uploadID, stage string, d time.Duration)
	Complete(uploadID string, metrics map[string]any)
	Fail(uploadID, category, errMsg string)
	CleanupOlderThan(maxAge time.Duration) int
}

// MemoryRegistry is the default, single-process backend: a mutex-guarded map,
// matching the teacher's own in-memory database backends (memory_graph.go,
// memory_search.go).
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryRegistry constructs an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]Entry), now: time.Now}
}

func (r *MemoryRegistry) Create(uploadID, filename string) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	e := Entry{
		UploadID:  uploadID,
		Filename:  filename,
		Status:    "processing",
		Stage:     StageQueued,
		Progress:  stageProgress[StageQueued],
		Durations: make(map[string]int64),
		StartedAt: now,
		UpdatedAt: now,
	}
	r.entries[uploadID] = e
	return e
}

func (r *MemoryRegistry) Get(uploadID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[uploadID]
	return e, ok
}

func (r *MemoryRegistry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

func (r *MemoryRegistry) UpdateStage(uploadID, stage, subStage, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uploadID]
	if !ok {
		return
	}
	e.Stage = stage
	e.SubStage = subStage
	e.ProgressDetail = detail
	if p, ok := stageProgress[stage]; ok && p > e.Progress {
		e.Progress = p
	}
	e.UpdatedAt = r.now()
	r.entries[uploadID] = e
}

func (r *MemoryRegistry) UpdateIngestionProgress(uploadID string, ip IngestionProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uploadID]
	if !ok {
		return
	}
	e.Ingestion = ip
	if ip.ChunksTotal > 0 {
		// Ingesting spans [60,100); scale progress within that band by chunk completion.
		done := ip.ChunksSucceeded + ip.ChunksFailed
		frac := float64(done) / float64(ip.ChunksTotal)
		band := stageProgress[StageIngesting] + int(frac*float64(100-stageProgress[StageIngesting]))
		if band > e.Progress {
			e.Progress = band
		}
	}
	e.UpdatedAt = r.now()
	r.entries[uploadID] = e
}

func (r *MemoryRegistry) RecordDuration(uploadID, stage string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uploadID]
	if !ok {
		return
	}
	if e.Durations == nil {
		e.Durations = make(map[string]int64)
	}
	e.Durations[stage] = d.Milliseconds()
	e.UpdatedAt = r.now()
	r.entries[uploadID] = e
}

func (r *MemoryRegistry) Complete(uploadID string, metrics map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uploadID]
	if !ok {
		return
	}
	now := r.now()
	e.Status = "completed"
	e.Stage = StageCompleted
	e.Progress = 100
	e.Metrics = metrics
	e.CompletedAt = &now
	e.UpdatedAt = now
	r.entries[uploadID] = e
}

func (r *MemoryRegistry) Fail(uploadID, category, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uploadID]
	if !ok {
		return
	}
	now := r.now()
	e.Status = "failed"
	e.Stage = StageFailed
	e.Progress = 100
	e.Error = errMsg
	e.ErrorCategory = category
	e.CompletedAt = &now
	e.UpdatedAt = now
	r.entries[uploadID] = e
}

func (r *MemoryRegistry) CleanupOlderThan(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxAge)
	removed := 0
	for id, e := range r.entries {
		if e.StartedAt.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

var _ Registry = (*MemoryRegistry)(nil)
