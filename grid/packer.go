// Package grid computes widget placements on a fixed-width board. The
// organizer is pure: it maps a widget collection to a packed layout and
// reports which placements changed, leaving persistence to the caller.
package grid

import (
	"slices"
	"sort"

	"stacklume-engine/domain"
)

// scanRows bounds the first-fit search. Placements that would land
// deeper than this fall back to the bottom of the occupied area.
const scanRows = 256

// occupancy tracks which cells of the grid are taken. Rows grow on
// demand; the column count is fixed.
type occupancy struct {
	rows [][Columns]bool
}

func (g *occupancy) free(x, y, w, h int) bool {
	for row := y; row < y+h; row++ {
		if row >= len(g.rows) {
			return true
		}
		for col := x; col < x+w; col++ {
			if g.rows[row][col] {
				return false
			}
		}
	}
	return true
}

func (g *occupancy) mark(x, y, w, h int) {
	for len(g.rows) < y+h {
		g.rows = append(g.rows, [Columns]bool{})
	}
	for row := y; row < y+h; row++ {
		for col := x; col < x+w && col < Columns; col++ {
			g.rows[row][col] = true
		}
	}
}

// firstFit returns the topmost, then leftmost position where a w by h
// rectangle fits inside the column bound without overlap.
func (g *occupancy) firstFit(w, h int) (x, y int, ok bool) {
	for y := 0; y < scanRows; y++ {
		for x := 0; x+w <= Columns; x++ {
			if g.free(x, y, w, h) {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

// bottom returns the first row with no occupied cell at or below it.
func (g *occupancy) bottom() int {
	for row := len(g.rows) - 1; row >= 0; row-- {
		for col := 0; col < Columns; col++ {
			if g.rows[row][col] {
				return row + 1
			}
		}
	}
	return 0
}

// Placement is one widget's computed spot and footprint.
type Placement struct {
	ID     string
	Size   domain.SizeClass
	Layout domain.Layout
}

// Pack assigns every widget a slot from the pattern for the collection
// size and places the slots top to bottom, left to right. Widgets are
// ranked by type priority first, so the roomiest slots go to the most
// important widgets; equal ranks keep their input order. Placements
// never overlap and never cross the column bound.
func Pack(widgets []domain.Widget) []Placement {
	if len(widgets) == 0 {
		return nil
	}
	order := make([]int, len(widgets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return Priority(widgets[order[a]].Type) > Priority(widgets[order[b]].Type)
	})

	pattern := PatternFor(len(widgets))
	var board occupancy
	out := make([]Placement, 0, len(widgets))
	for rank, idx := range order {
		slot := pattern[rank]
		x, y, ok := board.firstFit(slot.W, slot.H)
		if !ok {
			x, y = 0, board.bottom()
		}
		board.mark(x, y, slot.W, slot.H)
		out = append(out, Placement{
			ID:     widgets[idx].ID,
			Size:   domain.ClassForDims(slot.W, slot.H),
			Layout: domain.Layout{X: x, Y: y, W: slot.W, H: slot.H},
		})
	}
	return out
}

// FirstFree returns the topmost, leftmost spot where a w by h rectangle
// fits between the taken rectangles. New widgets are seeded this way so
// they never land on an existing one.
func FirstFree(taken []domain.Layout, w, h int) domain.Layout {
	var board occupancy
	for _, t := range taken {
		if t.X < 0 || t.Y < 0 || t.W < 1 || t.H < 1 {
			continue
		}
		board.mark(t.X, t.Y, t.W, t.H)
	}
	if w > Columns {
		w = Columns
	}
	x, y, ok := board.firstFit(w, h)
	if !ok {
		x, y = 0, board.bottom()
	}
	return domain.Layout{X: x, Y: y, W: w, H: h}
}

// Organize recomputes placements for the widgets of one board scope and
// leaves every other widget untouched. It returns the merged collection
// in the original order plus a patch for each widget whose placement or
// footprint actually changed. The input slice is not modified.
func Organize(all []domain.Widget, project *string) ([]domain.Widget, []domain.LayoutPatch) {
	next := slices.Clone(all)
	var scoped []domain.Widget
	for _, w := range next {
		if w.SameProject(project) {
			scoped = append(scoped, w)
		}
	}
	if len(scoped) == 0 {
		return next, nil
	}

	placed := make(map[string]Placement, len(scoped))
	for _, p := range Pack(scoped) {
		placed[p.ID] = p
	}

	var changed []domain.LayoutPatch
	for i := range next {
		p, ok := placed[next[i].ID]
		if !ok {
			continue
		}
		if next[i].Layout == p.Layout && next[i].Size == p.Size {
			continue
		}
		next[i].Layout = p.Layout
		next[i].Size = p.Size
		changed = append(changed, domain.LayoutPatch{ID: next[i].ID, Layout: p.Layout})
	}
	return next, changed
}
