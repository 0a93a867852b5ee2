package task

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"mediafetch/internal/logging"
	"mediafetch/internal/worker"
)

// Dispatcher accepts new download requests: it validates them, allocates a
// task identifier, seeds the store and starts a Runner on a detached
// goroutine. Submit never blocks on the runner; the task outlives the
// request that created it.
type Dispatcher struct {
	store  *Store
	engine worker.Worker
	outDir string

	wg      sync.WaitGroup
	closing atomic.Bool
}

// NewDispatcher wires a dispatcher over the store and engine.
func NewDispatcher(store *Store, engine worker.Worker, outDir string) *Dispatcher {
	return &Dispatcher{store: store, engine: engine, outDir: outDir}
}

// Submit validates the request, seeds a pending task and launches its runner.
// Returns the task identifier, or ErrValidation without creating any task
// when either field is missing.
func (d *Dispatcher) Submit(url, format string) (string, error) {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(format) == "" {
		return "", ErrValidation
	}
	if d.closing.Load() {
		return "", ErrShuttingDown
	}

	id := newID()
	if err := d.store.Create(id, New()); err != nil {
		return "", err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Detached from the submitting request on purpose: the runner's
		// lifetime is the download's, not the connection's.
		NewRunner(d.store, d.engine, d.outDir, id, url, format).Run(context.Background())
	}()

	logging.LogTaskQueued(id, url, format)
	return id, nil
}

// StopAccepting rejects further submissions; running tasks are unaffected.
func (d *Dispatcher) StopAccepting() {
	d.closing.Store(true)
}

// Drain blocks until all runners have finished, or ctx expires. Downloads
// can run for minutes, so callers should bound the wait.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newID returns a fresh opaque task identifier. UUIDs are never reused, which
// keeps the one-task-per-identifier invariant trivially true.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
