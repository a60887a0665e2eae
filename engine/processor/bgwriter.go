package processor

import (
	"sync"

	"github.com/flowcore/runner/pkg/logger"
)

// bgWriter is the bounded background-writer pool: a buffered channel plus a
// fixed set of goroutines draining it, so task/flow-session persistence
// never blocks the per-session task loop. Fire-and-forget, but bounded —
// an unbounded `go` per write would let a slow DB unbound goroutine growth.
type bgWriter struct {
	jobs chan func()
	wg   sync.WaitGroup
	log  logger.Logger
}

func newBgWriter(workers, queueSize int, log logger.Logger) *bgWriter {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	w := &bgWriter{jobs: make(chan func(), queueSize), log: log}
	w.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go w.run()
	}
	return w
}

func (w *bgWriter) run() {
	defer w.wg.Done()
	for job := range w.jobs {
		job()
	}
}

// Submit enqueues a write job, blocking if the queue is full. Called with a
// job that itself owns its context/timeout — the pool never cancels work.
func (w *bgWriter) Submit(job func()) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("bgwriter: submit to closed pool", "recover", r)
		}
	}()
	w.jobs <- job
}

// Close stops accepting new jobs and blocks until every queued write has
// run.
func (w *bgWriter) Close() {
	close(w.jobs)
	w.wg.Wait()
}
