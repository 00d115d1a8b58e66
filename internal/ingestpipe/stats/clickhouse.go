package stats

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"manifold/internal/config"
)

// Event is one durable ingestion-pipeline record: a stage transition or
// terminal outcome for a single upload, mirroring the fields tracked in
// original_source's in-memory processing_status dict.
type Event struct {
	UploadID  string
	Filename  string
	Stage     string
	Status    string
	DurationMS int64
	Error     string
	At        time.Time
}

// EventSink durably records ingestion events.
type EventSink interface {
	Record(ctx context.Context, ev Event) error
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func sanitizeIdentifier(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("identifier is empty")
	}
	if !identPattern.MatchString(s) {
		return "", fmt.Errorf("identifier contains invalid characters: %s", s)
	}
	return s, nil
}

// ClickHouseSink writes ingestion events to a ClickHouse table, adapted from
// internal/agentd's clickhouse token-metrics reader: same DSN parsing and
// Ping-on-construct shape, but as a writer rather than a reader.
type ClickHouseSink struct {
	conn  clickhouse.Conn
	table string
}

// NewClickHouseSink connects to ClickHouse per cfg. Returns (nil, nil) when
// no DSN is configured, so callers can treat analytics as optional.
func NewClickHouseSink(ctx context.Context, cfg config.AnalyticsConfig) (*ClickHouseSink, error) {
	if !cfg.Enabled || strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil
	}

	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "ingestion_events"
	}
	table, err = sanitizeIdentifier(table)
	if err != nil {
		return nil, fmt.Errorf("invalid analytics table: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	return &ClickHouseSink{conn: conn, table: table}, nil
}

func (s *ClickHouseSink) Record(ctx context.Context, ev Event) error {
	if s == nil || s.conn == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (upload_id, filename, stage, status, duration_ms, error, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.table,
	)
	return s.conn.Exec(ctx, query, ev.UploadID, ev.Filename, ev.Stage, ev.Status, ev.DurationMS, ev.Error, ev.At)
}

var _ EventSink = (*ClickHouseSink)(nil)
