package store

import (
	"context"
	"slices"
	"time"

	"stacklume-engine/domain"
	"stacklume-engine/grid"
)

// AddWidget validates the draft, gives it a placeholder id and a free
// spot on its board, and persists it. The placeholder record is
// replaced by the server issued widget on success and removed again on
// failure.
func (s *Store) AddWidget(ctx context.Context, draft domain.Widget) (created domain.Widget, err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "widgets.add")
	defer func() { m.Log(err) }()

	if !draft.Type.Known() {
		m.SetErrorStage("validate")
		err = &domain.ValidationError{Field: "type", Reason: "unknown widget type"}
		return domain.Widget{}, err
	}
	if draft.Config != nil {
		if err = draft.Config.Validate(); err != nil {
			m.SetErrorStage("validate")
			return domain.Widget{}, err
		}
	}

	draft.ID = placeholderID()
	now := time.Now().UTC()
	draft.CreatedAt, draft.UpdatedAt = now, now
	if !draft.Size.Known() {
		draft.Size = domain.SizeMedium
	}
	m.SetEntity(draft.ID)

	applyStart := time.Now()
	s.mu.Lock()
	prev := slices.Clone(s.widgets)
	if draft.Layout.IsZero() {
		w, h := draft.Size.Dims()
		draft.Layout = grid.FirstFree(s.scopeLayouts(draft.ProjectID), w, h)
	}
	s.widgets = append(s.widgets, draft)
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	created, perr := s.remote.CreateWidget(ctx, draft)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.restoreWidgets(prev)
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return domain.Widget{}, err
	}
	s.mergeWidget(draft.ID, created)
	m.SetEntity(created.ID)
	return created, nil
}

// UpdateWidget applies the patch locally, persists it, and restores the
// previous record if persistence fails. A non-nil response body from
// the collaborator wins over the optimistic record.
func (s *Store) UpdateWidget(ctx context.Context, id string, patch domain.WidgetPatch) (err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "widgets.update")
	m.SetEntity(id)
	defer func() { m.Log(err) }()

	if patch.Config != nil {
		if err = patch.Config.Validate(); err != nil {
			m.SetErrorStage("validate")
			return err
		}
	}

	applyStart := time.Now()
	s.mu.Lock()
	i := widgetIndex(s.widgets, id)
	if i < 0 {
		s.mu.Unlock()
		m.SetErrorStage("lookup")
		err = ErrNotFound
		return err
	}
	prev := s.widgets[i]
	patch.ApplyTo(&s.widgets[i])
	s.widgets[i].UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	updated, perr := s.remote.UpdateWidget(ctx, id, patch)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.restoreWidget(prev)
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return err
	}
	if updated != nil {
		s.mergeWidget(id, *updated)
	}
	return nil
}

// RemoveWidget deletes the widget optimistically and restores the
// collection if the delete does not persist. Pending layout patches for
// the widget are discarded so a stale placement is never written.
func (s *Store) RemoveWidget(ctx context.Context, id string) (err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "widgets.remove")
	m.SetEntity(id)
	defer func() { m.Log(err) }()

	applyStart := time.Now()
	s.mu.Lock()
	i := widgetIndex(s.widgets, id)
	if i < 0 {
		s.mu.Unlock()
		m.SetErrorStage("lookup")
		err = ErrNotFound
		return err
	}
	prev := slices.Clone(s.widgets)
	s.widgets = slices.Delete(s.widgets, i, i+1)
	s.mu.Unlock()
	s.flusher.Drop(id)
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	perr := s.remote.DeleteWidget(ctx, id)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.restoreWidgets(prev)
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return err
	}
	return nil
}

// SetWidgetLayout records a drag or resize. The rectangle is applied
// immediately and persisted through the debounced flusher, so a burst
// of moves costs a single write.
func (s *Store) SetWidgetLayout(id string, l domain.Layout) error {
	if l.X < 0 || l.Y < 0 || l.W < 1 || l.H < 1 || l.X+l.W > grid.Columns {
		return &domain.ValidationError{Field: "layout", Reason: "rectangle outside the grid"}
	}
	s.mu.Lock()
	i := widgetIndex(s.widgets, id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.widgets[i].Layout = l
	s.widgets[i].UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
	s.flusher.Enqueue(domain.LayoutPatch{ID: id, Layout: l})
	return nil
}

// AutoOrganize repacks one board scope and queues the changed layouts
// for persistence. The repack always lands locally; the write is best
// effort and a flush failure leaves the new layout in place. Returns
// the number of widgets that moved.
func (s *Store) AutoOrganize(ctx context.Context, project *string) int {
	m, _ := newOpMetrics(ctx, s.logger, "widgets.organize")

	applyStart := time.Now()
	s.mu.Lock()
	next, changed := grid.Organize(s.widgets, project)
	s.widgets = next
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))
	m.SetEntityCount(len(changed))

	if len(changed) > 0 {
		s.flusher.Enqueue(changed...)
	}
	m.Log(nil)
	return len(changed)
}

// scopeLayouts returns the taken rectangles of one board scope. Callers
// hold mu.
func (s *Store) scopeLayouts(project *string) []domain.Layout {
	var out []domain.Layout
	for _, w := range s.widgets {
		if w.SameProject(project) {
			out = append(out, w.Layout)
		}
	}
	return out
}

func (s *Store) restoreWidgets(prev []domain.Widget) {
	s.mu.Lock()
	s.widgets = prev
	s.mu.Unlock()
}

// restoreWidget puts prev back unless the record vanished meanwhile.
func (s *Store) restoreWidget(prev domain.Widget) {
	s.mu.Lock()
	if i := widgetIndex(s.widgets, prev.ID); i >= 0 {
		s.widgets[i] = prev
	}
	s.mu.Unlock()
}

// mergeWidget swaps the record stored under id for the authoritative
// one. Used both for placeholder replacement and for update responses.
func (s *Store) mergeWidget(id string, w domain.Widget) {
	s.mu.Lock()
	if i := widgetIndex(s.widgets, id); i >= 0 {
		s.widgets[i] = w
	}
	s.mu.Unlock()
}
