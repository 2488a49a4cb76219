package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/veneer/internal/clock"
)

// ErrClosed is returned by Do when the loop no longer accepts tasks.
var ErrClosed = errors.New("loop: closed")

// Loop is a FIFO task queue drained by a single Run goroutine.
//
// Thread-safety model:
//   - Post(), Do(), Close(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // buffered, size 1; coalesces wakeups
	done   chan struct{}
	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for task panics.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) {
		lp.logger = l
	}
}

// New creates an idle loop. Call Run to start draining it.
func New(opts ...Option) *Loop {
	l := &Loop{
		tasks:  make([]func(), 0, 32),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post enqueues a task. Returns false if the loop is closed.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.tasks = append(l.tasks, task)

	select {
	case l.signal <- struct{}{}:
	default:
	}
	return true
}

// Do posts task and blocks until it has run or ctx is done.
func (l *Loop) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		task()
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains tasks until ctx is cancelled or Close is called and the queue
// is empty. A panicking task is logged and the loop keeps going.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	for {
		if task, ok := l.next(); ok {
			l.runTask(task)
			continue
		}

		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.signal:
		}
	}
}

// Close stops accepting tasks. Run returns once the queue drains.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}
	task := l.tasks[0]
	// Nil out the slot so the closure can be collected.
	l.tasks[0] = nil
	if len(l.tasks) == 1 {
		l.tasks = l.tasks[:0]
	} else {
		l.tasks = l.tasks[1:]
	}
	return task, true
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked", "panic", r)
		}
	}()
	task()
}

// Clock returns a clock whose timer callbacks run as loop tasks.
func (l *Loop) Clock(base clock.Clock) clock.Clock {
	return &loopClock{base: base, loop: l}
}

type loopClock struct {
	base clock.Clock
	loop *Loop
}

func (c *loopClock) Now() time.Time { return c.base.Now() }

func (c *loopClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return c.base.AfterFunc(d, func() {
		c.loop.Post(f)
	})
}
