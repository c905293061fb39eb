// Package poller repeatedly queries a status until it reaches a terminal
// value, with a hard cap on attempts and elapsed time.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when the policy's attempt or duration cap is hit
// before a terminal value was seen.
var ErrTimeout = errors.New("poller: no terminal state before the polling cap")

type Policy struct {
	Interval    time.Duration
	MaxAttempts int           // 0 means no attempt cap
	MaxDuration time.Duration // 0 means no wall-clock cap
}

type Query[T any] func(ctx context.Context) (T, error)

type Result[T any] struct {
	Value    T
	Attempts int
}

// Until runs query immediately and then once per interval. It stops at the
// first value for which terminal returns true; no query is issued after
// that. Query errors are handed to onError and count as attempts.
func Until[T any](ctx context.Context, p Policy, query Query[T], terminal func(T) bool, onError func(attempt int, err error)) (Result[T], error) {
	var res Result[T]
	if p.Interval <= 0 {
		return res, errors.New("poller: interval must be positive")
	}

	var deadline <-chan time.Time
	if p.MaxDuration > 0 {
		timer := time.NewTimer(p.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		res.Attempts++
		v, err := query(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if onError != nil {
				onError(res.Attempts, err)
			}
		case terminal(v):
			res.Value = v
			return res, nil
		default:
			res.Value = v
		}

		if p.MaxAttempts > 0 && res.Attempts >= p.MaxAttempts {
			return res, ErrTimeout
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-deadline:
			return res, ErrTimeout
		case <-ticker.C:
		}
	}
}

// Group runs at most one poll loop per key. Callers polling a key that is
// already being polled wait for the running loop instead of starting a new
// one. A loop is cancelled once every caller waiting on it has gone away.
type Group[T any] struct {
	policy   Policy
	terminal func(T) bool
	onError  func(key string, attempt int, err error)

	mu      sync.Mutex
	flights map[string]*flight[T]
}

type flight[T any] struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int
	res     Result[T]
	err     error
}

func NewGroup[T any](policy Policy, terminal func(T) bool, onError func(key string, attempt int, err error)) *Group[T] {
	return &Group[T]{
		policy:   policy,
		terminal: terminal,
		onError:  onError,
		flights:  make(map[string]*flight[T]),
	}
}

// Do polls key with query, or joins the loop already polling key.
func (g *Group[T]) Do(ctx context.Context, key string, query Query[T]) (Result[T], error) {
	g.mu.Lock()
	f, ok := g.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight[T]{done: make(chan struct{}), cancel: cancel}
		g.flights[key] = f
		go g.run(fctx, key, f, query)
	}
	f.waiters++
	g.mu.Unlock()

	select {
	case <-f.done:
		g.leave(key, f)
		return f.res, f.err
	case <-ctx.Done():
		g.leave(key, f)
		return Result[T]{}, ctx.Err()
	}
}

// Active returns the number of running poll loops.
func (g *Group[T]) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.flights)
}

func (g *Group[T]) run(ctx context.Context, key string, f *flight[T], query Query[T]) {
	defer f.cancel()

	var onError func(int, error)
	if g.onError != nil {
		onError = func(attempt int, err error) { g.onError(key, attempt, err) }
	}
	f.res, f.err = Until(ctx, g.policy, query, g.terminal, onError)

	g.mu.Lock()
	if g.flights[key] == f {
		delete(g.flights, key)
	}
	g.mu.Unlock()
	close(f.done)
}

func (g *Group[T]) leave(key string, f *flight[T]) {
	g.mu.Lock()
	defer g.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if g.flights[key] == f {
		delete(g.flights, key)
	}
}
