package composer

import (
	"context"
	"sync"
	"sync/atomic"
)

// Runner keeps the newest composition per session. Starting a run cancels
// the session's in-flight run, and a run that finishes after being replaced
// reports ErrSuperseded.
type Runner struct {
	mu       sync.Mutex
	inflight map[string]runToken
	counter  atomic.Uint64
}

type runToken struct {
	id     uint64
	cancel context.CancelFunc
}

func NewRunner() *Runner {
	return &Runner{inflight: make(map[string]runToken)}
}

// Run executes fn under a context that is cancelled once a newer run for
// session starts. An empty session is never superseded.
func (r *Runner) Run(ctx context.Context, session string, fn func(context.Context) (Result, error)) (Result, error) {
	if session == "" {
		return fn(ctx)
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	tok := runToken{id: r.counter.Add(1), cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.inflight[session]; ok {
		prev.cancel()
	}
	r.inflight[session] = tok
	r.mu.Unlock()

	res, err := fn(cctx)

	r.mu.Lock()
	cur, ok := r.inflight[session]
	latest := ok && cur.id == tok.id
	if latest {
		delete(r.inflight, session)
	}
	r.mu.Unlock()

	if !latest {
		return Result{}, ErrSuperseded
	}
	return res, err
}

// InFlight returns the number of sessions with a run in progress.
func (r *Runner) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
