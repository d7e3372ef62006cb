package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// countStep counts concurrent executions.
type countStep struct {
	current atomic.Int64
	peak    atomic.Int64
}

func (s *countStep) Name() string { return "count" }

func (s *countStep) Do(_ context.Context, scan *model.ScanReport) error {
	cur := s.current.Add(1)
	for {
		peak := s.peak.Load()
		if cur <= peak || s.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	s.current.Add(-1)
	return nil
}

// TestBatchProcessor tests concurrent target scanning.
func TestBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("preserves target order in results", func(t *testing.T) {
		t.Parallel()

		factory := func(_ string) *Pipeline {
			p := New()
			var executed []string
			p.AddStep(&recordStep{name: "noop", executed: &executed})
			return p
		}

		bp := NewBatchProcessor(factory, WithConcurrency(3))
		targets := []string{
			"https://a.example.com",
			"https://b.example.com",
			"https://c.example.com",
		}

		results, err := bp.ProcessBatch(context.Background(), targets)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != len(targets) {
			t.Fatalf("expected %d results, got %d", len(targets), len(results))
		}
		for i, target := range targets {
			if results[i] == nil || results[i].Target != target {
				t.Errorf("result %d: expected %q, got %+v", i, target, results[i])
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		step := &countStep{}
		factory := func(_ string) *Pipeline {
			p := New()
			p.AddStep(step)
			return p
		}

		bp := NewBatchProcessor(factory, WithConcurrency(2))
		targets := make([]string, 8)
		for i := range targets {
			targets[i] = "https://example.com"
		}

		if _, err := bp.ProcessBatch(context.Background(), targets); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak := step.peak.Load(); peak > 2 {
			t.Errorf("expected at most 2 concurrent scans, observed %d", peak)
		}
	})

	t.Run("failed scans still produce reports", func(t *testing.T) {
		t.Parallel()

		factory := func(_ string) *Pipeline {
			p := New()
			var executed []string
			p.AddStep(&recordStep{name: "fail", err: context.DeadlineExceeded, executed: &executed})
			return p
		}

		bp := NewBatchProcessor(factory)
		results, err := bp.ProcessBatch(context.Background(), []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 1 || results[0].Error == nil {
			t.Error("expected report with recorded error")
		}
	})

	t.Run("callback receives each result", func(t *testing.T) {
		t.Parallel()

		factory := func(_ string) *Pipeline {
			p := New()
			var executed []string
			p.AddStep(&recordStep{name: "noop", executed: &executed})
			return p
		}

		bp := NewBatchProcessor(factory, WithConcurrency(2))
		targets := []string{"https://a.example.com", "https://b.example.com"}

		var mu sync.Mutex
		seen := make(map[int]string)
		err := bp.ProcessBatchWithCallback(context.Background(), targets, func(scan *model.ScanReport, index int) {
			mu.Lock()
			seen[index] = scan.Target
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(seen) != 2 || seen[0] != targets[0] || seen[1] != targets[1] {
			t.Errorf("unexpected callback results: %v", seen)
		}
	})
}
