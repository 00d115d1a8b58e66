package status

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry is a Redis-backed Registry for multi-process deployments,
// following the teacher's redis.UniversalClient + JSON-blob-per-key pattern
// (see internal/workspaces/redis_cache.go).
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisRegistry dials addr and returns a RedisRegistry. It pings the
// server up front so misconfiguration surfaces at startup, not on first use.
func NewRedisRegistry(addr string, maxAge time.Duration) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisRegistry{client: client, prefix: "ingest:status:", ttl: maxAge, now: time.Now}, nil
}

func (r *RedisRegistry) key(uploadID string) string {
	return r.prefix + uploadID
}

func (r *RedisRegistry) load(ctx context.Context, uploadID string) (Entry, bool) {
	data, err := r.client.Get(ctx, r.key(uploadID)).Bytes()
	if err != nil {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

func (r *RedisRegistry) save(ctx context.Context, e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	r.client.Set(ctx, r.key(e.UploadID), data, r.ttl)
}

func (r *RedisRegistry) Create(uploadID, filename string) Entry {
	ctx := context.Background()
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
	r.save(ctx, e)
	return e
}

func (r *RedisRegistry) Get(uploadID string) (Entry, bool) {
	return r.load(context.Background(), uploadID)
}

func (r *RedisRegistry) List() []Entry {
	ctx := context.Background()
	keys, err := r.client.Keys(ctx, r.prefix+"*").Result()
	if err != nil {
		return nil
	}
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		data, err := r.client.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		var e Entry
		if json.Unmarshal(data, &e) == nil {
			out = append(out, e)
		}
	}
	return out
}

func (r *RedisRegistry) UpdateStage(uploadID, stage, subStage, detail string) {
	ctx := context.Background()
	e, ok := r.load(ctx, uploadID)
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
	r.save(ctx, e)
}

func (r *RedisRegistry) UpdateIngestionProgress(uploadID string, ip IngestionProgress) {
	ctx := context.Background()
	e, ok := r.load(ctx, uploadID)
	if !ok {
		return
	}
	e.Ingestion = ip
	if ip.ChunksTotal > 0 {
		done := ip.ChunksSucceeded + ip.ChunksFailed
		frac := float64(done) / float64(ip.ChunksTotal)
		band := stageProgress[StageIngesting] + int(frac*float64(100-stageProgress[StageIngesting]))
		if band > e.Progress {
			e.Progress = band
		}
	}
	e.UpdatedAt = r.now()
	r.save(ctx, e)
}

func (r *RedisRegistry) RecordDuration(uploadID, stage string, d time.Duration) {
	ctx := context.Background()
	e, ok := r.load(ctx, uploadID)
	if !ok {
		return
	}
	if e.Durations == nil {
		e.Durations = make(map[string]int64)
	}
	e.Durations[stage] = d.Milliseconds()
	e.UpdatedAt = r.now()
	r.save(ctx, e)
}

func (r *RedisRegistry) Complete(uploadID string, metrics map[string]any) {
	ctx := context.Background()
	e, ok := r.load(ctx, uploadID)
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
	r.save(ctx, e)
}

func (r *RedisRegistry) Fail(uploadID, category, errMsg string) {
	ctx := context.Background()
	e, ok := r.load(ctx, uploadID)
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
	r.save(ctx, e)
}

// CleanupOlderThan is a no-op for RedisRegistry: entries already expire via
// the per-key TTL that every write (re)sets, so an entry lives maxAge past
// its last update, matching the teacher's Redis-TTL idiom
// rather than a manual scan-and-delete loop.
func (r *RedisRegistry) CleanupOlderThan(time.Duration) int { return 0 }

var _ Registry = (*RedisRegistry)(nil)
