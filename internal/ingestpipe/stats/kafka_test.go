package stats

import (
	"context"
	"errors"
	"testing"

	"manifold/internal/config"
)

func TestNewKafkaSink_DisabledReturnsNil(t *testing.T) {
	sink, err := NewKafkaSink(config.EventsConfig{Enabled: false})
	if err != nil || sink != nil {
		t.Fatalf("expected (nil, nil) when disabled, got (%v, %v)", sink, err)
	}
}

func TestNewKafkaSink_NoBrokersReturnsNil(t *testing.T) {
	sink, err := NewKafkaSink(config.EventsConfig{Enabled: true})
	if err != nil || sink != nil {
		t.Fatalf("expected (nil, nil) with no brokers, got (%v, %v)", sink, err)
	}
}

type failingSink struct{ err error }

func (f failingSink) Record(context.Context, Event) error { return f.err }

func TestMultiSink_FansOutToEverySink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := MultiSink{Sinks: []EventSink{a, b}}

	ev := Event{UploadID: "u1", Stage: "ingest", Status: "completed"}
	if err := m.Record(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both sinks to receive the event, got a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestMultiSink_ContinuesPastOneSinkError(t *testing.T) {
	failing := failingSink{err: errors.New("broker unreachable")}
	ok := &recordingSink{}
	m := MultiSink{Sinks: []EventSink{failing, ok}}

	err := m.Record(context.Background(), Event{UploadID: "u1"})
	if err == nil {
		t.Fatalf("expected the first sink's error to be returned")
	}
	if len(ok.events) != 1 {
		t.Fatalf("expected the second sink to still receive the event despite the first's error")
	}
}

func TestMultiSink_NilSinksAreSkipped(t *testing.T) {
	ok := &recordingSink{}
	m := MultiSink{Sinks: []EventSink{nil, ok}}
	if err := m.Record(context.Background(), Event{UploadID: "u1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ok.events) != 1 {
		t.Fatalf("expected non-nil sink to receive the event")
	}
}
