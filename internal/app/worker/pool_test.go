package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(4, 16)
	p.Start(context.Background())

	var wg sync.WaitGroup
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		if err := p.Submit(func(context.Context) { n.Add(1); wg.Done() }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	p.Stop()
	if got := n.Load(); got != 10 {
		t.Fatalf("ran %d tasks, want 10", got)
	}
}

func TestPoolBackpressure(t *testing.T) {
	p := NewPool(1, 1)
	p.Start(context.Background())
	defer p.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit(func(context.Context) { close(started); <-release }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	if err := p.Submit(func(context.Context) {}); err != nil {
		t.Fatalf("Submit into free queue slot: %v", err)
	}
	if err := p.Submit(func(context.Context) {}); !errors.Is(err, ErrBackpressure) {
		t.Fatalf("Submit on full queue err = %v, want ErrBackpressure", err)
	}
	close(release)
}

func TestPoolSurvivesPanic(t *testing.T) {
	p := NewPool(1, 4)
	p.Start(context.Background())
	defer p.Stop()

	done := make(chan struct{})
	_ = p.Submit(func(context.Context) { panic("boom") })
	_ = p.Submit(func(context.Context) { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1)
	p.Start(context.Background())
	p.Stop()
	p.Stop()
	if err := p.Submit(func(context.Context) {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestSerialPreservesOrder(t *testing.T) {
	p := NewPool(8, 256)
	p.Start(context.Background())
	defer p.Stop()

	s := NewSerial(p, nil)
	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		if err := s.Submit(func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	wg.Wait()
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

// racingPool lets another caller queue on the serial while the serial's
// own submission is in flight, then rejects that submission.
type racingPool struct {
	during func()
}

func (r racingPool) Submit(Task) error {
	r.during()
	return ErrBackpressure
}

func TestSerialReportsTasksDroppedWithRejectedSubmit(t *testing.T) {
	var dropped int
	var dropErr error
	var s *Serial
	var lateErr error
	s = NewSerial(racingPool{during: func() {
		lateErr = s.Submit(func(context.Context) { t.Error("dropped task ran") })
	}}, func(n int, err error) {
		dropped, dropErr = n, err
	})

	if err := s.Submit(func(context.Context) {}); !errors.Is(err, ErrBackpressure) {
		t.Fatalf("Submit = %v, want ErrBackpressure", err)
	}
	if lateErr != nil {
		t.Fatalf("queued Submit = %v, want nil", lateErr)
	}
	if dropped != 1 || !errors.Is(dropErr, ErrBackpressure) {
		t.Fatalf("onDrop(%d, %v), want onDrop(1, ErrBackpressure)", dropped, dropErr)
	}

	ok := make(chan struct{})
	s.pool = inlinePool{}
	if err := s.Submit(func(context.Context) { close(ok) }); err != nil {
		t.Fatalf("Submit after reject = %v", err)
	}
	<-ok
}

type inlinePool struct{}

func (inlinePool) Submit(task Task) error {
	task(context.Background())
	return nil
}
