// Package store holds the in-memory dashboard state and coordinates
// optimistic mutations against the persistence API. Every mutation
// validates, applies locally under the lock, then persists; a
// persistence failure restores the captured snapshot, so callers only
// ever observe applied or reverted state.
package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"stacklume-engine/domain"
)

const (
	defaultFlushInterval = 500 * time.Millisecond
	defaultFlushTimeout  = 10 * time.Second
)

// Config wires the store's collaborators and tunables.
type Config struct {
	Remote Remote
	Logger *log.Logger
	// FlushInterval is the debounce window for layout persistence.
	FlushInterval time.Duration
	// FlushTimeout bounds each background layout write.
	FlushTimeout time.Duration
}

// Store is the source of truth for one dashboard session. Reads hand
// out copies; mutations go through the coordinator path.
type Store struct {
	remote  Remote
	logger  *log.Logger
	flusher *layoutFlusher

	mu         sync.Mutex
	widgets    []domain.Widget
	links      []domain.Link
	categories []domain.Category
	tags       []domain.Tag
}

// New builds a Store from cfg. Remote and Logger are required.
func New(cfg Config) *Store {
	if cfg.Remote == nil {
		panic("store: remote is required")
	}
	if cfg.Logger == nil {
		panic("store: logger is required")
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}
	return &Store{
		remote:  cfg.Remote,
		logger:  cfg.Logger,
		flusher: newLayoutFlusher(cfg.Remote, cfg.Logger, cfg.FlushInterval, cfg.FlushTimeout),
	}
}

// Load replaces the whole state with the collaborator's view.
func (s *Store) Load(ctx context.Context) (err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "store.load")
	defer func() { m.Log(err) }()

	fetchStart := time.Now()
	widgets, err := s.remote.ListWidgets(ctx, nil)
	if err != nil {
		m.SetErrorStage("widgets")
		return err
	}
	links, err := s.remote.ListLinks(ctx)
	if err != nil {
		m.SetErrorStage("links")
		return err
	}
	categories, err := s.remote.ListCategories(ctx)
	if err != nil {
		m.SetErrorStage("categories")
		return err
	}
	tags, err := s.remote.ListTags(ctx)
	if err != nil {
		m.SetErrorStage("tags")
		return err
	}
	m.ObserveFetch(time.Since(fetchStart))
	m.SetEntityCount(len(widgets) + len(links) + len(categories) + len(tags))

	applyStart := time.Now()
	s.mu.Lock()
	s.widgets = widgets
	s.links = links
	s.categories = categories
	s.tags = tags
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))
	return nil
}

// Close stops the background layout flusher. Whatever is still pending
// is dropped; layout writes are advisory.
func (s *Store) Close() {
	s.flusher.Close()
}

// Widgets returns a copy of the widget collection in storage order.
func (s *Store) Widgets() []domain.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.widgets)
}

// ProjectWidgets returns the widgets of one board scope. A nil project
// selects the default board.
func (s *Store) ProjectWidgets(project *string) []domain.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Widget
	for _, w := range s.widgets {
		if w.SameProject(project) {
			out = append(out, w)
		}
	}
	return out
}

// WidgetByID returns a copy of one widget.
func (s *Store) WidgetByID(id string) (domain.Widget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := widgetIndex(s.widgets, id); i >= 0 {
		return s.widgets[i], true
	}
	return domain.Widget{}, false
}

// Links returns a copy of the link collection in storage order.
func (s *Store) Links() []domain.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLinks(s.links)
}

// LinkByID returns a copy of one link.
func (s *Store) LinkByID(id string) (domain.Link, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := linkIndex(s.links, id); i >= 0 {
		return copyLink(s.links[i]), true
	}
	return domain.Link{}, false
}

// Categories returns a copy of the category collection.
func (s *Store) Categories() []domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories)
}

// Tags returns a copy of the tag collection.
func (s *Store) Tags() []domain.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tags)
}

// placeholderID issues a local id for an optimistic record. The prefix
// keeps a half-created entity recognizable in logs until the server id
// replaces it.
func placeholderID() string {
	return "pending-" + uuid.NewString()
}

func widgetIndex(ws []domain.Widget, id string) int {
	return slices.IndexFunc(ws, func(w domain.Widget) bool { return w.ID == id })
}

func linkIndex(ls []domain.Link, id string) int {
	return slices.IndexFunc(ls, func(l domain.Link) bool { return l.ID == id })
}

func categoryIndex(cs []domain.Category, id string) int {
	return slices.IndexFunc(cs, func(c domain.Category) bool { return c.ID == id })
}

func tagIndex(ts []domain.Tag, id string) int {
	return slices.IndexFunc(ts, func(t domain.Tag) bool { return t.ID == id })
}

// copyLink detaches the tag id slice so callers can never alias the
// stored record.
func copyLink(l domain.Link) domain.Link {
	l.TagIDs = slices.Clone(l.TagIDs)
	return l
}

func copyLinks(ls []domain.Link) []domain.Link {
	out := make([]domain.Link, len(ls))
	for i, l := range ls {
		out[i] = copyLink(l)
	}
	return out
}
