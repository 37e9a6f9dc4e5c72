package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"stacklume-engine/domain"
)

// SortField selects the comparison key for the visible projection. The
// zero value keeps the persisted manual order.
type SortField string

const (
	SortManual    SortField = ""
	SortByCreated SortField = "createdAt"
	SortByUpdated SortField = "updatedAt"
	SortByTitle   SortField = "title"
)

// CategoryFilter narrows a view to one category bucket. The zero value
// selects every link.
type CategoryFilter struct {
	kind filterKind
	id   string
}

type filterKind int

const (
	filterAll filterKind = iota
	filterOne
	filterUncategorized
)

// AllCategories selects links regardless of category.
func AllCategories() CategoryFilter { return CategoryFilter{} }

// OneCategory selects links assigned to the given category.
func OneCategory(id string) CategoryFilter { return CategoryFilter{kind: filterOne, id: id} }

// Uncategorized selects links without a category.
func Uncategorized() CategoryFilter { return CategoryFilter{kind: filterUncategorized} }

func (f CategoryFilter) matches(l domain.Link) bool {
	switch f.kind {
	case filterOne:
		return l.CategoryID != nil && *l.CategoryID == f.id
	case filterUncategorized:
		return l.CategoryID == nil
	default:
		return true
	}
}

// Scope returns the ordering bucket a reorder from this filter writes
// to. An unfiltered view maps to the unscoped sentinel, which the
// collaborator resolves to the uncategorized bucket; a reorder never
// rewrites order across every category at once.
func (f CategoryFilter) Scope() domain.ScopeKey {
	switch f.kind {
	case filterOne:
		return domain.CategoryScope(f.id)
	case filterUncategorized:
		return domain.ScopeUncategorized
	default:
		return domain.ScopeUnscoped
	}
}

// Query describes one view over the link collection. Filters combine
// with AND; the search needle matches title, URL and description.
type Query struct {
	Search        string
	Category      CategoryFilter
	Tag           string
	FavoritesOnly bool
	Sort          SortField
	Desc          bool
}

// VisibleLinks projects the collection through q. The result is a fresh
// slice of copies; the stored collection is never mutated and ties keep
// their stored order.
func (s *Store) VisibleLinks(q Query) []domain.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return visibleOf(s.links, q)
}

func visibleOf(links []domain.Link, q Query) []domain.Link {
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	var out []domain.Link
	for _, l := range links {
		if !q.Category.matches(l) {
			continue
		}
		if q.Tag != "" && !l.HasTag(q.Tag) {
			continue
		}
		if q.FavoritesOnly && !l.Favorite {
			continue
		}
		if needle != "" && !matchesSearch(l, needle) {
			continue
		}
		out = append(out, copyLink(l))
	}
	sortLinks(out, q.Sort, q.Desc)
	return out
}

func matchesSearch(l domain.Link, needle string) bool {
	return strings.Contains(strings.ToLower(l.Title), needle) ||
		strings.Contains(strings.ToLower(l.URL), needle) ||
		strings.Contains(strings.ToLower(l.Description), needle)
}

func sortLinks(links []domain.Link, field SortField, desc bool) {
	var less func(a, b domain.Link) bool
	switch field {
	case SortByCreated:
		less = func(a, b domain.Link) bool { return timeBefore(a.CreatedAt, b.CreatedAt) }
	case SortByUpdated:
		less = func(a, b domain.Link) bool { return timeBefore(a.UpdatedAt, b.UpdatedAt) }
	case SortByTitle:
		// A collator is not safe for concurrent use, so each sort gets
		// its own.
		c := collate.New(language.Und, collate.IgnoreCase)
		less = func(a, b domain.Link) bool { return c.CompareString(a.Title, b.Title) < 0 }
	default:
		less = func(a, b domain.Link) bool { return a.Order < b.Order }
	}
	sort.SliceStable(links, func(i, j int) bool {
		if desc {
			return less(links[j], links[i])
		}
		return less(links[i], links[j])
	})
}

// timeBefore compares wire timestamps numerically. Unparseable inputs
// decoded to the zero time sort first, keeping the order total.
func timeBefore(a, b time.Time) bool {
	return a.Before(b)
}

// PlanReorder returns the id order of visible after moving the entry at
// index from to index to. Out of range indexes and no-op moves return
// nil.
func PlanReorder(visible []domain.Link, from, to int) []string {
	if from < 0 || from >= len(visible) || to < 0 || to >= len(visible) || from == to {
		return nil
	}
	ids := make([]string, 0, len(visible))
	for _, l := range visible {
		ids = append(ids, l.ID)
	}
	moved := ids[from]
	ids = slices.Delete(ids, from, from+1)
	ids = slices.Insert(ids, to, moved)
	return ids
}

// ReorderVisible moves one entry of the q projection to a new index and
// persists the resulting order for the view's bucket. Optimistic
// sequential order values are written to in-scope links only; the
// collection is restored wholesale if persistence fails, and the
// collaborator's recomputed links win on success.
func (s *Store) ReorderVisible(ctx context.Context, q Query, from, to int) (err error) {
	m, ctx := newOpMetrics(ctx, s.logger, "links.reorder")
	defer func() { m.Log(err) }()

	scope := q.Category.Scope()

	applyStart := time.Now()
	s.mu.Lock()
	visible := visibleOf(s.links, q)
	ids := PlanReorder(visible, from, to)
	if ids == nil {
		s.mu.Unlock()
		return nil
	}
	prev := slices.Clone(s.links)
	rank := 0
	for _, id := range ids {
		i := linkIndex(s.links, id)
		if i < 0 || !scope.Contains(s.links[i]) {
			continue
		}
		s.links[i].Order = rank
		rank++
	}
	s.mu.Unlock()
	m.ObserveApply(time.Since(applyStart))
	m.SetEntityCount(rank)

	persistStart := time.Now()
	authoritative, perr := s.remote.ReorderLinks(ctx, ids, scope)
	m.ObservePersist(time.Since(persistStart))
	if perr != nil {
		s.restoreLinks(prev)
		m.SetErrorStage("rollback")
		m.SetRolledBack()
		err = perr
		return err
	}
	for _, l := range authoritative {
		s.mergeLink(l.ID, l)
	}
	return nil
}
