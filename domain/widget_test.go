package domain

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestWidgetUnmarshalDecodesTypedConfig(t *testing.T) {
	payload := `{"id":"w1","type":"link-manager","title":"Links","size":"wide","layout":{"x":0,"y":0,"w":6,"h":3},"config":{"categoryId":"c1","columns":3},"createdAt":"2024-05-01T10:00:00Z"}`

	var w Widget
	if err := sonic.ConfigStd.Unmarshal([]byte(payload), &w); err != nil {
		t.Fatalf("unmarshal widget: %v", err)
	}

	cfg, ok := w.Config.(*LinkManagerConfig)
	if !ok {
		t.Fatalf("expected *LinkManagerConfig, got %T", w.Config)
	}
	if cfg.CategoryID == nil || *cfg.CategoryID != "c1" || cfg.Columns != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !w.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected createdAt %v", w.CreatedAt)
	}
}

func TestWidgetUnmarshalUnknownSchemaKeepsGenericConfig(t *testing.T) {
	payload := `{"id":"w2","type":"weather","title":"Weather","size":"small","layout":{"x":0,"y":0,"w":3,"h":3},"config":{"city":"Oslo","unit":"metric"}}`

	var w Widget
	if err := sonic.ConfigStd.Unmarshal([]byte(payload), &w); err != nil {
		t.Fatalf("unmarshal widget: %v", err)
	}

	cfg, ok := w.Config.(GenericConfig)
	if !ok {
		t.Fatalf("expected GenericConfig, got %T", w.Config)
	}
	if cfg["city"] != "Oslo" {
		t.Fatalf("expected generic payload to round-trip, got %+v", cfg)
	}
}

func TestWidgetUnmarshalMalformedConfigFails(t *testing.T) {
	payload := `{"id":"w3","type":"kanban","title":"Board","size":"large","config":{"columns":"oops"}}`

	var w Widget
	if err := sonic.ConfigStd.Unmarshal([]byte(payload), &w); err == nil {
		t.Fatal("expected decode error for malformed config payload")
	}
}

func TestWidgetRoundTrip(t *testing.T) {
	project := "p1"
	src := Widget{
		ID:        "w1",
		Type:      WidgetTypeNotes,
		Title:     "Scratchpad",
		Size:      SizeMedium,
		ProjectID: &project,
		Config:    &NotesConfig{Text: "hello", Monospace: true},
		Layout:    Layout{X: 4, Y: 3, W: 4, H: 3},
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 2, 11, 30, 0, 0, time.UTC),
	}

	payload, err := sonic.ConfigStd.Marshal(src)
	if err != nil {
		t.Fatalf("marshal widget: %v", err)
	}
	var got Widget
	if err := sonic.ConfigStd.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal widget: %v", err)
	}

	if !reflect.DeepEqual(src, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", src, got)
	}
}

func TestWidgetMarshalOmitsNilConfig(t *testing.T) {
	payload, err := sonic.ConfigStd.Marshal(Widget{ID: "w1", Type: WidgetTypeClock, Size: SizeSmall})
	if err != nil {
		t.Fatalf("marshal widget: %v", err)
	}
	if strings.Contains(string(payload), "\"config\"") {
		t.Fatalf("expected nil config to be omitted, got %s", payload)
	}
}

func TestSizeClassDims(t *testing.T) {
	cases := []struct {
		size SizeClass
		w, h int
	}{
		{size: SizeSmall, w: 3, h: 3},
		{size: SizeMedium, w: 4, h: 3},
		{size: SizeWide, w: 6, h: 3},
		{size: SizeLarge, w: 6, h: 4},
		{size: SizeClass("bogus"), w: 4, h: 3},
	}

	for _, tc := range cases {
		w, h := tc.size.Dims()
		if w != tc.w || h != tc.h {
			t.Fatalf("size %q: expected %dx%d, got %dx%d", tc.size, tc.w, tc.h, w, h)
		}
	}
}

func TestClassForDimsRoundTrip(t *testing.T) {
	for _, size := range []SizeClass{SizeSmall, SizeMedium, SizeWide, SizeLarge} {
		w, h := size.Dims()
		if got := ClassForDims(w, h); got != size {
			t.Fatalf("expected %q for %dx%d, got %q", size, w, h, got)
		}
	}
}

func TestLayoutIntersects(t *testing.T) {
	base := Layout{X: 0, Y: 0, W: 4, H: 3}

	cases := []struct {
		name string
		o    Layout
		want bool
	}{
		{name: "overlap", o: Layout{X: 2, Y: 1, W: 4, H: 3}, want: true},
		{name: "contained", o: Layout{X: 1, Y: 1, W: 1, H: 1}, want: true},
		{name: "touching right edge", o: Layout{X: 4, Y: 0, W: 4, H: 3}, want: false},
		{name: "touching bottom edge", o: Layout{X: 0, Y: 3, W: 4, H: 3}, want: false},
		{name: "disjoint", o: Layout{X: 8, Y: 10, W: 3, H: 3}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Intersects(tc.o); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if got := tc.o.Intersects(base); got != tc.want {
				t.Fatalf("expected symmetry, got %v", got)
			}
		})
	}
}

func TestWidgetPatchClearsProject(t *testing.T) {
	project := "p1"
	w := Widget{ID: "w1", Type: WidgetTypeNotes, ProjectID: &project}

	WidgetPatch{ProjectID: Clear(), Locked: Ptr(true)}.ApplyTo(&w)

	if w.ProjectID != nil {
		t.Fatalf("expected cleared project, got %q", *w.ProjectID)
	}
	if !w.Locked {
		t.Fatal("expected locked flag to be set")
	}
}

func TestWidgetTypeKnown(t *testing.T) {
	if !WidgetTypeLinkManager.Known() {
		t.Fatal("expected link-manager to be known")
	}
	if WidgetType("flux-capacitor").Known() {
		t.Fatal("expected unknown type to be rejected")
	}
}
