package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"stacklume-engine/domain"
)

// AddLink appends the draft at the end of its category bucket and
// persists it. The placeholder record is replaced by the server issued
// link on success and removed again on failure.
func (s *Store) AddLink(ctx context.Context, draft domain.Link) (created domain.Link, err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "links.add")
	defer func() { m.Log(err) }()

	if strings.TrimSpace(draft.URL) == "" {
		m.SetErrorStage("validate")
		err = &domain.ValidationError{Field: "url", Reason: "must not be blank"}
		return domain.Link{}, err
	}

	draft.ID = placeholderID()
	now := time.Now().UTC()
	draft.CreatedAt, draft.UpdatedAt = now, now
	m.SetEntity(draft.ID)

	applyStart := time.Now()
	s.mu.Lock()
	prev := slices.Clone(s.links)
	draft.Order = bucketLen(s.links, draft.CategoryID)
	s.links = append(s.links, copyLink(draft))
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	created, perr := s.remote.CreateLink(ctx, draft)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.restoreLinks(prev)
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return domain.Link{}, err
	}
	s.mergeLink(draft.ID, created)
	m.SetEntity(created.ID)
	return created, nil
}

// UpdateLink applies the patch locally, persists it, and restores the
// previous record if persistence fails.
func (s *Store) UpdateLink(ctx context.Context, id string, patch domain.LinkPatch) (err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "links.update")
	m.SetEntity(id)
	defer func() { m.Log(err) }()

	applyStart := time.Now()
	s.mu.Lock()
	i := linkIndex(s.links, id)
	if i < 0 {
		s.mu.Unlock()
		m.SetErrorStage("lookup")
		err = ErrNotFound
		return err
	}
	prev := copyLink(s.links[i])
	patch.ApplyTo(&s.links[i])
	s.links[i].UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	updated, perr := s.remote.UpdateLink(ctx, id, patch)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.restoreLink(prev)
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return err
	}
	if updated != nil {
		s.mergeLink(id, *updated)
	}
	return nil
}

// RemoveLink deletes the link optimistically and restores the
// collection if the delete does not persist.
func (s *Store) RemoveLink(ctx context.Context, id string) (err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "links.remove")
	m.SetEntity(id)
	defer func() { m.Log(err) }()

	applyStart := time.Now()
	s.mu.Lock()
	i := linkIndex(s.links, id)
	if i < 0 {
		s.mu.Unlock()
		m.SetErrorStage("lookup")
		err = ErrNotFound
		return err
	}
	prev := slices.Clone(s.links)
	s.links = slices.Delete(s.links, i, i+1)
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	perr := s.remote.DeleteLink(ctx, id)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.restoreLinks(prev)
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return err
	}
	return nil
}

// ToggleFavorite flips the favorite flag through the regular update
// path, so persistence and rollback come for free.
func (s *Store) ToggleFavorite(ctx context.Context, id string) error {
	s.mu.Lock()
	i := linkIndex(s.links, id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	next := !s.links[i].Favorite
	s.mu.Unlock()
	return s.UpdateLink(ctx, id, domain.LinkPatch{Favorite: domain.Ptr(next)})
}

// TagLink attaches the tag to the link. Attaching a tag the link
// already carries is a no-op. Tag id slices are replaced, never
// mutated in place, which keeps snapshots cheap.
func (s *Store) TagLink(ctx context.Context, linkID, tagID string) (err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "links.tag")
	m.SetEntity(linkID)
	defer func() { m.Log(err) }()

	applyStart := time.Now()
	s.mu.Lock()
	if tagIndex(s.tags, tagID) < 0 {
		s.mu.Unlock()
		m.SetErrorStage("lookup")
		err = ErrNotFound
		return err
	}
	i := linkIndex(s.links, linkID)
	if i < 0 {
		s.mu.Unlock()
		m.SetErrorStage("lookup")
		err = ErrNotFound
		return err
	}
	if s.links[i].HasTag(tagID) {
		s.mu.Unlock()
		return nil
	}
	prev := copyLink(s.links[i])
	s.links[i].TagIDs = append(slices.Clone(s.links[i].TagIDs), tagID)
	s.links[i].UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	perr := s.remote.AttachTag(ctx, domain.LinkTag{LinkID: linkID, TagID: tagID})
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.restoreLink(prev)
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return err
	}
	return nil
}

// UntagLink detaches the tag from the link. Detaching a tag the link
// does not carry is a no-op.
func (s *Store) UntagLink(ctx context.Context, linkID, tagID string) (err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "links.untag")
	m.SetEntity(linkID)
	defer func() { m.Log(err) }()

	applyStart := time.Now()
	s.mu.Lock()
	i := linkIndex(s.links, linkID)
	if i < 0 {
		s.mu.Unlock()
		m.SetErrorStage("lookup")
		err = ErrNotFound
		return err
	}
	if !s.links[i].HasTag(tagID) {
		s.mu.Unlock()
		return nil
	}
	prev := copyLink(s.links[i])
	s.links[i].TagIDs = withoutTag(s.links[i].TagIDs, tagID)
	s.links[i].UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))

	persistStart := time.Now()
	perr := s.remote.DetachTag(ctx, domain.LinkTag{LinkID: linkID, TagID: tagID})
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.restoreLink(prev)
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return err
	}
	return nil
}

// BulkTag applies or removes one tag across many links. Each link is
// its own coordinated operation; a failure on one does not undo the
// others, and every failure is reported together.
func (s *Store) BulkTag(ctx context.Context, linkIDs []string, tagID string, on bool) error {
	var errs []error
	for _, id := range linkIDs {
		var err error
		if on {
			err = s.TagLink(ctx, id, tagID)
		} else {
			err = s.UntagLink(ctx, id, tagID)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("link %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) restoreLinks(prev []domain.Link) {
	s.mu.Lock()
	s.links = prev
	s.mu.Unlock()
}

// restoreLink puts prev back unless the record vanished meanwhile.
func (s *Store) restoreLink(prev domain.Link) {
	s.mu.Lock()
	if i := linkIndex(s.links, prev.ID); i >= 0 {
		s.links[i] = prev
	}
	s.mu.Unlock()
}

// mergeLink swaps the record stored under id for the authoritative one.
func (s *Store) mergeLink(id string, l domain.Link) {
	s.mu.Lock()
	if i := linkIndex(s.links, id); i >= 0 {
		s.links[i] = l
	}
	s.mu.Unlock()
}

// bucketLen counts the links sharing one category bucket. New links go
// to the end of their bucket.
func bucketLen(links []domain.Link, category *string) int {
	n := 0
	for _, l := range links {
		if sameCategory(l.CategoryID, category) {
			n++
		}
	}
	return n
}

func sameCategory(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// withoutTag returns a fresh slice without the tag, or nil when it was
// the last one.
func withoutTag(tagIDs []string, tagID string) []string {
	var out []string
	for _, id := range tagIDs {
		if id != tagID {
			out = append(out, id)
		}
	}
	return out
}
