package store

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"stacklume-engine/domain"
)

type layoutWriter interface {
	UpdateWidgetLayouts(ctx context.Context, patches []domain.LayoutPatch) error
}

// layoutFlusher coalesces layout writes into one debounced batch. Every
// enqueue resets the single pending timer, so a burst of drags produces
// exactly one write after the burst settles. Flush failures are logged
// and never rolled back; the next write carries the state anyway.
type layoutFlusher struct {
	writer  layoutWriter
	logger  *log.Logger
	delay   time.Duration
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]domain.LayoutPatch
	timer   *time.Timer
	closed  bool
}

func newLayoutFlusher(writer layoutWriter, logger *log.Logger, delay, timeout time.Duration) *layoutFlusher {
	return &layoutFlusher{
		writer:  writer,
		logger:  logger,
		delay:   delay,
		timeout: timeout,
		pending: make(map[string]domain.LayoutPatch),
	}
}

// Enqueue records the patches, keeping only the newest per widget, and
// restarts the debounce timer.
func (f *layoutFlusher) Enqueue(patches ...domain.LayoutPatch) {
	if len(patches) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for _, p := range patches {
		f.pending[p.ID] = p
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.delay, f.flush)
}

// Drop discards any pending patch for the widget. Deletes call this so
// a stale placement is never written for a gone widget.
func (f *layoutFlusher) Drop(id string) {
	f.mu.Lock()
	delete(f.pending, id)
	f.mu.Unlock()
}

func (f *layoutFlusher) flush() {
	f.mu.Lock()
	if f.closed || len(f.pending) == 0 {
		f.mu.Unlock()
		return
	}
	batch := make([]domain.LayoutPatch, 0, len(f.pending))
	for _, p := range f.pending {
		batch = append(batch, p)
	}
	f.pending = make(map[string]domain.LayoutPatch)
	f.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })

	m, ctx := newOpMetrics(context.Background(), f.logger, "widgets.flush")
	m.SetEntityCount(len(batch))
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	persistStart := time.Now()
	err := f.writer.UpdateWidgetLayouts(ctx, batch)
	m.ObservePersist(time.Since(persistStart))
	if err != nil {
		m.SetErrorStage("flush")
	}
	m.Log(err)
}

// Close stops the debounce timer and drops whatever is still pending.
// Layout writes are advisory, so teardown does not force a final flush.
func (f *layoutFlusher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.pending = nil
}
