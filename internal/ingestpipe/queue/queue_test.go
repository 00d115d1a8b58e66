package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitForStatus(t *testing.T, q *Queue, pred func(Stats) bool, timeout time.Duration) Stats {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s := q.Status()
		if pred(s) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for queue status condition")
	return Stats{}
}

func TestQueue_ProcessesSequentiallyFIFO(t *testing.T) {
	var mu sync.Mutex
	var order []string

	proc := func(_ context.Context, uploadID, _, _ string) error {
		mu.Lock()
		order = append(order, uploadID)
		mu.Unlock()
		return nil
	}

	q := New(proc, time.Millisecond, nil)
	q.Enqueue("a", "/tmp/a", "a.pdf")
	q.Enqueue("b", "/tmp/b", "b.pdf")
	q.Enqueue("c", "/tmp/c", "c.pdf")

	waitForStatus(t, q, func(s Stats) bool { return s.CompletedCount == 3 }, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected FIFO order [a b c], got %v", order)
	}
}

func TestQueue_FailedDocumentDoesNotStopQueue(t *testing.T) {
	proc := func(_ context.Context, uploadID, _, _ string) error {
		if uploadID == "bad" {
			return errors.New("boom")
		}
		return nil
	}

	q := New(proc, time.Millisecond, nil)
	q.Enqueue("bad", "/tmp/bad", "bad.pdf")
	q.Enqueue("good", "/tmp/good", "good.pdf")

	s := waitForStatus(t, q, func(s Stats) bool { return s.CompletedCount == 1 && s.FailedCount == 1 }, time.Second)
	if s.SuccessRatePct != 50 {
		t.Fatalf("expected 50%% success rate, got %v", s.SuccessRatePct)
	}
}

func TestQueue_GracefulShutdownDropsRemaining(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	secondStarted := false
	proc := func(_ context.Context, uploadID, _, _ string) error {
		if uploadID == "first" {
			close(started)
			<-release
		}
		if uploadID == "second" {
			secondStarted = true
		}
		return nil
	}

	q := New(proc, time.Millisecond, nil)
	q.Enqueue("first", "/tmp/first", "first.pdf")
	q.Enqueue("second", "/tmp/second", "second.pdf")

	<-started

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- q.Shutdown(context.Background()) }()
	// Give Shutdown time to flip the shutdown flag while "first" is still blocked.
	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-shutdownErr; err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	s := q.Status()
	if s.CompletedCount != 1 {
		t.Fatalf("expected exactly first document completed, got %d", s.CompletedCount)
	}
	if secondStarted {
		t.Fatal("expected second document to never start")
	}
}

func TestQueue_ClearHistory(t *testing.T) {
	proc := func(context.Context, string, string, string) error { return nil }
	q := New(proc, time.Millisecond, nil)
	q.Enqueue("a", "/tmp/a", "a.pdf")
	waitForStatus(t, q, func(s Stats) bool { return s.CompletedCount == 1 }, time.Second)

	q.ClearHistory()
	s := q.Status()
	if s.CompletedCount != 0 || s.FailedCount != 0 {
		t.Fatalf("expected history cleared, got %+v", s)
	}
}
