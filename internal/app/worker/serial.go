package worker

import (
	"context"
	"sync"
)

// Serial runs its tasks one at a time, in submission order, on a shared
// Submitter. Each connection owns one so its downstream effects stay
// ordered without pinning a worker.
type Serial struct {
	pool   Submitter
	onDrop func(dropped int, err error)

	mu      sync.Mutex
	queue   []Task
	running bool
}

// NewSerial returns a Serial on pool. When pool rejects the serial, the
// failing Submit returns the error and onDrop, if set, is told about the
// tasks other callers had already queued behind it.
func NewSerial(pool Submitter, onDrop func(dropped int, err error)) *Serial {
	return &Serial{pool: pool, onDrop: onDrop}
}

func (s *Serial) Submit(task Task) error {
	s.mu.Lock()
	s.queue = append(s.queue, task)
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	if err := s.pool.Submit(s.drain); err != nil {
		s.mu.Lock()
		// The queue was empty when this call started the serial, so every
		// task after the first belongs to a caller that was told nil.
		dropped := len(s.queue) - 1
		clear(s.queue)
		s.queue = s.queue[:0]
		s.running = false
		s.mu.Unlock()
		if dropped > 0 && s.onDrop != nil {
			s.onDrop(dropped, err)
		}
		return err
	}
	return nil
}

func (s *Serial) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		runTask(ctx, task)
	}
}
