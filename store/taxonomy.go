package store

import (
	"context"
	"slices"
	"strings"
	"time"

	"stacklume-engine/domain"
)

// AddCategory appends the category at the end of the sidebar and
// persists it, swapping the placeholder for the server issued record.
func (s *Store) AddCategory(ctx context.Context, draft domain.Category) (created domain.Category, err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "categories.add")
	defer func() { m.Log(err) }()

	if strings.TrimSpace(draft.Name) == "" {
		m.SetErrorStage("validate")
		err = &domain.ValidationError{Field: "name", Reason: "must not be blank"}
		return domain.Category{}, err
	}

	draft.ID = placeholderID()
	m.SetEntity(draft.ID)

	applyStart := time.Now()
	s.mu.Lock()
	prev := slices.Clone(s.categories)
	draft.Order = len(s.categories)
	s.categories = append(s.categories, draft)
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	created, perr := s.remote.CreateCategory(ctx, draft)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.restoreCategories(prev)
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return domain.Category{}, err
	}
	s.mu.Lock()
	if i := categoryIndex(s.categories, draft.ID); i >= 0 {
		s.categories[i] = created
	}
	s.mu.Unlock()
	m.SetEntity(created.ID)
	return created, nil
}

// UpdateCategory applies the patch locally and restores the previous
// record if persistence fails. The collaborator answers without a
// body, so the optimistic record stands on success.
func (s *Store) UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) (err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "categories.update")
	m.SetEntity(id)
	defer func() { m.Log(err) }()

	applyStart := time.Now()
	s.mu.Lock()
	i := categoryIndex(s.categories, id)
	if i < 0 {
		s.mu.Unlock()
		m.SetErrorStage("lookup")
		err = ErrNotFound
		return err
	}
	prev := s.categories[i]
	patch.ApplyTo(&s.categories[i])
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	perr := s.remote.UpdateCategory(ctx, id, patch)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.mu.Lock()
		if i := categoryIndex(s.categories, prev.ID); i >= 0 {
			s.categories[i] = prev
		}
		s.mu.Unlock()
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return err
	}
	return nil
}

// RemoveCategory deletes the category and detaches its links, which
// drop into the uncategorized bucket, mirroring the server's nulling.
// Both collections are restored wholesale if the delete does not
// persist.
func (s *Store) RemoveCategory(ctx context.Context, id string) (err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "categories.remove")
	m.SetEntity(id)
	defer func() { m.Log(err) }()

	applyStart := time.Now()
	s.mu.Lock()
	i := categoryIndex(s.categories, id)
	if i < 0 {
		s.mu.Unlock()
		m.SetErrorStage("lookup")
		err = ErrNotFound
		return err
	}
	prevCategories := slices.Clone(s.categories)
	prevLinks := slices.Clone(s.links)
	s.categories = slices.Delete(s.categories, i, i+1)
	for j := range s.links {
		if s.links[j].CategoryID != nil && *s.links[j].CategoryID == id {
			s.links[j].CategoryID = nil
		}
	}
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	perr := s.remote.DeleteCategory(ctx, id)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.mu.Lock()
		s.categories = prevCategories
		s.links = prevLinks
		s.mu.Unlock()
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return err
	}
	return nil
}

// AddTag persists a new tag, swapping the placeholder for the server
// issued record.
func (s *Store) AddTag(ctx context.Context, draft domain.Tag) (created domain.Tag, err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "tags.add")
	defer func() { m.Log(err) }()

	if strings.TrimSpace(draft.Name) == "" {
		m.SetErrorStage("validate")
		err = &domain.ValidationError{Field: "name", Reason: "must not be blank"}
		return domain.Tag{}, err
	}

	draft.ID = placeholderID()
	m.SetEntity(draft.ID)

	applyStart := time.Now()
	s.mu.Lock()
	prev := slices.Clone(s.tags)
	s.tags = append(s.tags, draft)
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	created, perr := s.remote.CreateTag(ctx, draft)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.mu.Lock()
		s.tags = prev
		s.mu.Unlock()
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return domain.Tag{}, err
	}
	s.mu.Lock()
	if i := tagIndex(s.tags, draft.ID); i >= 0 {
		s.tags[i] = created
	}
	s.mu.Unlock()
	m.SetEntity(created.ID)
	return created, nil
}

// RemoveTag deletes the tag and drops its join pairs from every link.
// Tags and links are restored wholesale if the delete does not persist.
func (s *Store) RemoveTag(ctx context.Context, id string) (err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "tags.remove")
	m.SetEntity(id)
	defer func() { m.Log(err) }()

	applyStart := time.Now()
	s.mu.Lock()
	i := tagIndex(s.tags, id)
	if i < 0 {
		s.mu.Unlock()
		m.SetErrorStage("lookup")
		err = ErrNotFound
		return err
	}
	prevTags := slices.Clone(s.tags)
	prevLinks := slices.Clone(s.links)
	s.tags = slices.Delete(s.tags, i, i+1)
	for j := range s.links {
		if s.links[j].HasTag(id) {
			s.links[j].TagIDs = withoutTag(s.links[j].TagIDs, id)
		}
	}
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	perr := s.remote.DeleteTag(ctx, id)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.mu.Lock()
		s.tags = prevTags
		s.links = prevLinks
		s.mu.Unlock()
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return err
	}
	return nil
}

func (s *Store) restoreCategories(prev []domain.Category) {
	s.mu.Lock()
	s.categories = prev
	s.mu.Unlock()
}
