package starlark

import (
	"sync"

	"go.starlark.net/starlark"
)

// DefaultMaxSteps bounds the abstract computation steps of one evaluation.
const DefaultMaxSteps uint64 = 1_000_000

// ThreadPool hands out Starlark threads for row evaluations and keeps a few
// idle ones around. Every thread it returns starts with a fresh step budget.
type ThreadPool struct {
	mu       sync.Mutex
	idle     []*starlark.Thread
	maxIdle  int
	maxSteps uint64
}

// NewThreadPool creates a pool that retains at most maxIdle idle threads.
func NewThreadPool(maxIdle int) *ThreadPool {
	if maxIdle <= 0 {
		maxIdle = 8
	}
	return &ThreadPool{
		idle:     make([]*starlark.Thread, 0, maxIdle),
		maxIdle:  maxIdle,
		maxSteps: DefaultMaxSteps,
	}
}

// WithMaxSteps sets the per-evaluation step budget. Zero means unlimited.
func (p *ThreadPool) WithMaxSteps(n uint64) *ThreadPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxSteps = n
	return p
}

// Get returns an idle thread or a new one. The name shows up in evaluation
// errors.
func (p *ThreadPool) Get(name string) *starlark.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	var thread *starlark.Thread
	if n := len(p.idle); n > 0 {
		thread = p.idle[n-1]
		p.idle = p.idle[:n-1]
	} else {
		thread = &starlark.Thread{Print: func(*starlark.Thread, string) {}}
	}
	thread.Name = name
	thread.Steps = 0
	thread.SetMaxExecutionSteps(p.maxSteps)
	return thread
}

// Put returns a thread for reuse. A thread that ran out of steps stays
// cancelled and is dropped, as are threads beyond the idle limit.
func (p *ThreadPool) Put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxSteps > 0 && thread.ExecutionSteps() >= p.maxSteps {
		return
	}
	if len(p.idle) < p.maxIdle {
		thread.Name = ""
		p.idle = append(p.idle, thread)
	}
}

// Do runs fn with a pooled thread.
func (p *ThreadPool) Do(name string, fn func(*starlark.Thread) error) error {
	thread := p.Get(name)
	defer p.Put(thread)
	return fn(thread)
}

// Idle returns the number of idle threads.
func (p *ThreadPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
