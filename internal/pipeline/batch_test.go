package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chanonchantad/anon-pipeline/internal/model"
)

func testRecords(n int) []*model.Record {
	records := make([]*model.Record, n)
	for i := range records {
		records[i] = model.NewRecord(fmt.Sprintf("/ws/sorted/A/1/%03d.dcm", i))
	}
	return records
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []BatchOption
		want int
	}{
		{name: "default concurrency", want: DefaultConcurrency},
		{name: "custom concurrency", opts: []BatchOption{WithConcurrency(3)}, want: 3},
		{name: "non-positive ignored", opts: []BatchOption{WithConcurrency(0)}, want: DefaultConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bp := NewBatchProcessor(func() *Pipeline { return New() }, tt.opts...)
			if bp.concurrency != tt.want {
				t.Errorf("concurrency = %d, want %d", bp.concurrency, tt.want)
			}
		})
	}
}

// TestBatchProcessor_ProcessBatch tests concurrent processing.
func TestBatchProcessor_ProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes every record in order", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		factory := func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "count", doFunc: func(context.Context, *Item) error {
				calls.Add(1)
				return nil
			}})
			return p
		}

		records := testRecords(20)
		got, err := NewBatchProcessor(factory, WithConcurrency(4)).ProcessBatch(context.Background(), records)
		if err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if len(got) != 20 || calls.Load() != 20 {
			t.Fatalf("processed %d records, %d calls", len(got), calls.Load())
		}
		for i := range records {
			if got[i] != records[i] {
				t.Fatalf("result %d out of order", i)
			}
		}
	})

	t.Run("limits concurrency", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		factory := func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "slow", doFunc: func(context.Context, *Item) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			}})
			return p
		}

		if _, err := NewBatchProcessor(factory, WithConcurrency(2)).ProcessBatch(context.Background(), testRecords(10)); err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
		}
	})

	t.Run("record failures do not stop the batch", func(t *testing.T) {
		t.Parallel()

		factory := func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "fail", doFunc: func(context.Context, *Item) error {
				return model.ErrDecode
			}})
			return p
		}

		got, err := NewBatchProcessor(factory).ProcessBatch(context.Background(), testRecords(5))
		if err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		for _, r := range got {
			if !r.Failed() {
				t.Errorf("%s should be failed", r.Path)
			}
		}
		if len(got) != 5 {
			t.Errorf("processed %d, want 5", len(got))
		}
	})

	t.Run("invalid input kind aborts", func(t *testing.T) {
		t.Parallel()

		factory := func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "hash", doFunc: func(context.Context, *Item) error {
				return fmt.Errorf("(0010,0020): %w", model.ErrInvalidInputKind)
			}})
			return p
		}

		got, err := NewBatchProcessor(factory, WithConcurrency(1)).ProcessBatch(context.Background(), testRecords(50))
		if !errors.Is(err, model.ErrInvalidInputKind) {
			t.Fatalf("ProcessBatch() error = %v, want ErrInvalidInputKind", err)
		}
		if len(got) >= 50 {
			t.Errorf("processed %d records after abort", len(got))
		}
	})

	t.Run("cancellation lets in-flight records finish", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var once sync.Once
		factory := func() *Pipeline {
			p := New()
			p.AddSteps(
				&mockStep{name: "first", doFunc: func(context.Context, *Item) error {
					once.Do(cancel)
					return nil
				}},
				&mockStep{name: "second"},
			)
			return p
		}

		got, err := NewBatchProcessor(factory, WithConcurrency(1)).ProcessBatch(ctx, testRecords(10))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("ProcessBatch() error = %v, want context.Canceled", err)
		}
		if len(got) == 0 || len(got) == 10 {
			t.Fatalf("processed %d records", len(got))
		}
		if steps := got[0].PerformedSteps; len(steps) != 2 {
			t.Errorf("in-flight record steps = %v, want both", steps)
		}
	})

	t.Run("callback sees every record", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		seen := map[int]bool{}
		_, err := NewBatchProcessor(func() *Pipeline { return New() }).ProcessBatchWithCallback(
			context.Background(), testRecords(7),
			func(_ *model.Record, index int) {
				mu.Lock()
				seen[index] = true
				mu.Unlock()
			})
		if err != nil {
			t.Fatalf("ProcessBatchWithCallback() error = %v", err)
		}
		if len(seen) != 7 {
			t.Errorf("callback saw %d records, want 7", len(seen))
		}
	})
}
