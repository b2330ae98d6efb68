package concurrency

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrBusy = errors.New("system is busy")

// Limiter bounds the number of tasks running at once. TryAcquire never
// blocks; Acquire waits until a slot frees up or ctx is done.
type Limiter struct {
	sem    *semaphore.Weighted
	mu     sync.Mutex
	active int
	max    int
}

func NewLimiter(max int) *Limiter {
	if max < 1 {
		max = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(max)), max: max}
}

func (l *Limiter) TryAcquire() error {
	if !l.sem.TryAcquire(1) {
		return ErrBusy
	}
	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	return nil
}

func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	return nil
}

func (l *Limiter) Release() {
	l.mu.Lock()
	if l.active == 0 {
		l.mu.Unlock()
		return
	}
	l.active--
	l.mu.Unlock()
	l.sem.Release(1)
}

// Active reports how many slots are held.
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *Limiter) Cap() int { return l.max }

// Execute runs task if a slot is free and returns ErrBusy otherwise.
func (l *Limiter) Execute(task func() error) error {
	if err := l.TryAcquire(); err != nil {
		return err
	}
	defer l.Release()
	return task()
}
