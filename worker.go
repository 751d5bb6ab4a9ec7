package ygggo_gamedb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// defaultWaitInterval bounds how long an idle worker blocks before
// re-checking its stop flag.
const defaultWaitInterval = 500 * time.Millisecond

// fifo is an unbounded multi-producer queue with a wakeup signal.
type fifo[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
}

func newFIFO[T any]() *fifo[T] {
	return &fifo[T]{signal: make(chan struct{}, 1)}
}

func (q *fifo[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop removes the oldest item.
func (q *fifo[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

func (q *fifo[T]) drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *fifo[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Worker owns the operation queue of one logical database and executes
// operations strictly in enqueue order on a single goroutine. Completion
// sinks run on a second goroutine so a slow sink never stalls the queue.
type Worker struct {
	db      *Database
	queue   *fifo[Operation]
	sinks   *fifo[func()]
	wait    time.Duration
	stopped atomic.Bool
	started atomic.Bool
	busy    atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func newWorker(db *Database, wait time.Duration) *Worker {
	if wait <= 0 {
		wait = defaultWaitInterval
	}
	return &Worker{
		db:     db,
		queue:  newFIFO[Operation](),
		sinks:  newFIFO[func()](),
		wait:   wait,
		stopCh: make(chan struct{}),
	}
}

// Start launches the worker and sink dispatcher goroutines. Calling it more
// than once has no effect.
func (w *Worker) Start() {
	if w.stopped.Load() || !w.started.CompareAndSwap(false, true) {
		return
	}
	w.wg.Add(2)
	go w.loop()
	go w.dispatch()
}

// Running reports whether the worker has started and not yet stopped.
func (w *Worker) Running() bool {
	return w.started.Load() && !w.stopped.Load()
}

// Enqueue appends op. Operations enqueued after Stop are failed immediately
// with ErrWorkerStopped.
func (w *Worker) Enqueue(op Operation) error {
	if w.stopped.Load() {
		w.abandon(op)
		return ErrWorkerStopped
	}
	w.queue.push(op)
	w.db.recordQueueDepth(context.Background(), 1)
	if w.stopped.Load() {
		// lost the race with Stop; the loop will not pop again
		for _, late := range w.queue.drain() {
			w.db.recordQueueDepth(context.Background(), -1)
			w.abandon(late)
		}
	}
	return nil
}

// QueueSize returns the number of operations waiting to run.
func (w *Worker) QueueSize() int {
	n := w.queue.len()
	if w.busy.Load() {
		n++
	}
	return n
}

// Stop stops accepting work and waits for the in-flight operation to finish.
// Operations still queued are failed with ErrWorkerStopped; sinks already
// scheduled still run.
func (w *Worker) Stop() {
	w.once.Do(func() {
		w.stopped.Store(true)
		close(w.stopCh)
	})
	if w.started.Load() {
		w.wg.Wait()
	}
	for _, op := range w.queue.drain() {
		w.db.recordQueueDepth(context.Background(), -1)
		w.abandon(op)
	}
	for _, fn := range w.sinks.drain() {
		w.invokeSink(fn)
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	timer := time.NewTimer(w.wait)
	defer timer.Stop()

	for {
		for {
			if w.stopped.Load() {
				return
			}
			op, ok := w.queue.pop()
			if !ok {
				break
			}
			w.db.recordQueueDepth(context.Background(), -1)
			w.execute(op)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.wait)
		select {
		case <-w.stopCh:
			return
		case <-w.queue.signal:
		case <-timer.C:
		}
	}
}

func (w *Worker) execute(op Operation) {
	w.busy.Store(true)
	defer w.busy.Store(false)

	err := w.db.runOperation(context.Background(), op)
	if sink := op.completion(); sink != nil {
		w.sinks.push(func() { sink(err) })
	}
}

func (w *Worker) dispatch() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case <-w.sinks.signal:
		}
		for {
			fn, ok := w.sinks.pop()
			if !ok {
				break
			}
			w.invokeSink(fn)
		}
	}
}

func (w *Worker) invokeSink(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.db.logEvent(context.Background(), slog.LevelError, "completion callback panicked",
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

func (w *Worker) abandon(op Operation) {
	op.Fail(ErrWorkerStopped)
	if sink := op.completion(); sink != nil {
		w.invokeSink(func() { sink(ErrWorkerStopped) })
	}
}
