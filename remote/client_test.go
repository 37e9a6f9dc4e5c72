package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"stacklume-engine/domain"
)

// fakeAPI is an echo instance standing in for the local Stacklume
// server. It issues sequential anti-forgery tokens and lets tests
// expire the current one to provoke the refresh path.
type fakeAPI struct {
	e   *echo.Echo
	srv *httptest.Server

	mu        sync.Mutex
	csrfCalls int
	current   string
	expired   map[string]bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{e: echo.New(), expired: make(map[string]bool)}
	f.e.GET("/api/csrf", func(c echo.Context) error {
		f.mu.Lock()
		f.csrfCalls++
		f.current = fmt.Sprintf("tok-%d", f.csrfCalls)
		tok := f.current
		f.mu.Unlock()
		return c.JSON(http.StatusOK, map[string]string{"token": tok})
	})
	f.srv = httptest.NewServer(f.e)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) client(t *testing.T) *Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewClient(Config{
		BaseURL:       f.srv.URL,
		Logger:        logger,
		ReadyInterval: 5 * time.Millisecond,
		ReadyTimeout:  2 * time.Second,
	})
}

func (f *fakeAPI) tokenValid(c echo.Context) bool {
	tok := c.Request().Header.Get(csrfHeader)
	f.mu.Lock()
	defer f.mu.Unlock()
	return tok != "" && tok == f.current && !f.expired[tok]
}

// expireCurrent marks the token handed out last as stale, as if the
// server had rotated it behind the client's back.
func (f *fakeAPI) expireCurrent() {
	f.mu.Lock()
	if f.current != "" {
		f.expired[f.current] = true
	}
	f.mu.Unlock()
}

func (f *fakeAPI) tokenFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.csrfCalls
}

func TestNewClientPanicsWithoutBaseURL(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for missing base URL")
		}
	}()
	logger, _ := test.NewNullLogger()
	NewClient(Config{Logger: logger})
}

func TestNewClientPanicsWithoutLogger(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for missing logger")
		}
	}()
	NewClient(Config{BaseURL: "http://127.0.0.1:3001"})
}

func TestListLinksCarriesTokenAndDecodes(t *testing.T) {
	f := newFakeAPI(t)
	var gotToken string
	f.e.GET("/api/links", func(c echo.Context) error {
		gotToken = c.Request().Header.Get(csrfHeader)
		return c.JSON(http.StatusOK, []domain.Link{
			{ID: "l1", URL: "https://go.dev", Title: "Go", Order: 0},
			{ID: "l2", URL: "https://pkg.go.dev", Title: "Packages", Order: 1},
		})
	})

	links, err := f.client(t).ListLinks(context.Background())
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(links) != 2 || links[0].ID != "l1" || links[1].Title != "Packages" {
		t.Fatalf("unexpected links %+v", links)
	}
	if gotToken == "" {
		t.Fatal("expected list call to carry the anti-forgery token")
	}
	if f.tokenFetches() != 1 {
		t.Fatalf("expected a single token fetch, got %d", f.tokenFetches())
	}
}

func TestListWidgetsScopesByProject(t *testing.T) {
	f := newFakeAPI(t)
	var gotProject string
	f.e.GET("/api/widgets", func(c echo.Context) error {
		gotProject = c.QueryParam("projectId")
		return c.JSON(http.StatusOK, []domain.Widget{{ID: "w1", Type: domain.WidgetTypeNotes}})
	})

	c := f.client(t)
	if _, err := c.ListWidgets(context.Background(), nil); err != nil {
		t.Fatalf("list all: %v", err)
	}
	if gotProject != "" {
		t.Fatalf("expected no project filter, got %q", gotProject)
	}
	if _, err := c.ListWidgets(context.Background(), domain.Ptr("p1")); err != nil {
		t.Fatalf("list scoped: %v", err)
	}
	if gotProject != "p1" {
		t.Fatalf("expected project filter p1, got %q", gotProject)
	}
}

func TestCreateWidgetReturnsServerRecord(t *testing.T) {
	f := newFakeAPI(t)
	f.e.POST("/api/widgets", func(c echo.Context) error {
		if !f.tokenValid(c) {
			return c.String(http.StatusForbidden, "bad token")
		}
		var draft domain.Widget
		if err := c.Bind(&draft); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		draft.ID = "w-srv-1"
		return c.JSON(http.StatusCreated, draft)
	})

	created, err := f.client(t).CreateWidget(context.Background(), domain.Widget{
		ID:   "pending-x",
		Type: domain.WidgetTypeNotes,
		Size: domain.SizeMedium,
	})
	if err != nil {
		t.Fatalf("create widget: %v", err)
	}
	if created.ID != "w-srv-1" || created.Type != domain.WidgetTypeNotes {
		t.Fatalf("unexpected created widget %+v", created)
	}
}

func TestExpiredTokenIsRefreshedOnce(t *testing.T) {
	f := newFakeAPI(t)
	var attempts int
	f.e.PATCH("/api/links/:id", func(c echo.Context) error {
		attempts++
		if !f.tokenValid(c) {
			return c.String(http.StatusForbidden, "csrf token expired")
		}
		return c.NoContent(http.StatusNoContent)
	})
	f.e.GET("/api/links", func(c echo.Context) error { return c.JSON(http.StatusOK, []domain.Link{}) })

	c := f.client(t)
	// Prime the token cache, then expire what the client holds.
	if _, err := c.ListLinks(context.Background()); err != nil {
		t.Fatalf("prime token: %v", err)
	}
	f.expireCurrent()

	updated, err := c.UpdateLink(context.Background(), "l1", domain.LinkPatch{Favorite: domain.Ptr(true)})
	if err != nil {
		t.Fatalf("expected refresh and retry to succeed, got %v", err)
	}
	if updated != nil {
		t.Fatalf("expected nil record for empty response, got %+v", updated)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempts)
	}
	if f.tokenFetches() != 2 {
		t.Fatalf("expected exactly 2 token fetches, got %d", f.tokenFetches())
	}
}

func TestSecondRejectionSurfacesAuthFailure(t *testing.T) {
	f := newFakeAPI(t)
	var attempts int
	f.e.DELETE("/api/links/:id", func(c echo.Context) error {
		attempts++
		return c.String(http.StatusForbidden, "nope")
	})

	err := f.client(t).DeleteLink(context.Background(), "l1")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusForbidden || !se.AuthFailure() {
		t.Fatalf("unexpected status error %+v", se)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts before giving up, got %d", attempts)
	}
}

func TestServerErrorIsNotRetried(t *testing.T) {
	f := newFakeAPI(t)
	var attempts int
	f.e.POST("/api/links", func(c echo.Context) error {
		attempts++
		return c.String(http.StatusInternalServerError, "db locked")
	})

	_, err := f.client(t).CreateLink(context.Background(), domain.Link{URL: "https://go.dev"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusInternalServerError || se.Body != "db locked" {
		t.Fatalf("unexpected status error %+v", se)
	}
	if se.AuthFailure() {
		t.Fatal("a 500 must not count as an auth failure")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestUpdateWidgetDecodesAuthoritativeBody(t *testing.T) {
	f := newFakeAPI(t)
	f.e.PATCH("/api/widgets/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, domain.Widget{
			ID:    c.Param("id"),
			Type:  domain.WidgetTypeClock,
			Title: "Server title",
		})
	})

	updated, err := f.client(t).UpdateWidget(context.Background(), "w1", domain.WidgetPatch{
		Title: domain.Ptr("Client title"),
	})
	if err != nil {
		t.Fatalf("update widget: %v", err)
	}
	if updated == nil || updated.ID != "w1" || updated.Title != "Server title" {
		t.Fatalf("unexpected updated widget %+v", updated)
	}
}

func TestReorderLinksSubmitsScopeAndDecodes(t *testing.T) {
	f := newFakeAPI(t)
	var got reorderRequest
	f.e.POST("/api/links/reorder", func(c echo.Context) error {
		if err := c.Bind(&got); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, []domain.Link{
			{ID: "l2", Order: 0},
			{ID: "l1", Order: 1},
		})
	})

	links, err := f.client(t).ReorderLinks(context.Background(), []string{"l2", "l1"}, domain.CategoryScope("work"))
	if err != nil {
		t.Fatalf("reorder links: %v", err)
	}
	if got.Scope != domain.CategoryScope("work") {
		t.Fatalf("unexpected scope %q", got.Scope)
	}
	if len(got.OrderedIDs) != 2 || got.OrderedIDs[0] != "l2" {
		t.Fatalf("unexpected ordered ids %v", got.OrderedIDs)
	}
	if len(links) != 2 || links[0].ID != "l2" || links[1].Order != 1 {
		t.Fatalf("unexpected authoritative links %+v", links)
	}
}

func TestTagRoutes(t *testing.T) {
	f := newFakeAPI(t)
	var attached, detached string
	f.e.POST("/api/links/:id/tags", func(c echo.Context) error {
		var body struct {
			TagID string `json:"tagId"`
		}
		if err := c.Bind(&body); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		attached = c.Param("id") + "/" + body.TagID
		return c.NoContent(http.StatusNoContent)
	})
	f.e.DELETE("/api/links/:id/tags/:tagId", func(c echo.Context) error {
		detached = c.Param("id") + "/" + c.Param("tagId")
		return c.NoContent(http.StatusNoContent)
	})

	c := f.client(t)
	if err := c.AttachTag(context.Background(), domain.LinkTag{LinkID: "l1", TagID: "t1"}); err != nil {
		t.Fatalf("attach tag: %v", err)
	}
	if err := c.DetachTag(context.Background(), domain.LinkTag{LinkID: "l1", TagID: "t1"}); err != nil {
		t.Fatalf("detach tag: %v", err)
	}
	if attached != "l1/t1" || detached != "l1/t1" {
		t.Fatalf("unexpected join routing attach=%q detach=%q", attached, detached)
	}
}

func TestWaitReadyPollsThroughStartupErrors(t *testing.T) {
	f := newFakeAPI(t)
	var probes int
	f.e.GET("/api/health", func(c echo.Context) error {
		probes++
		if probes < 3 {
			return c.String(http.StatusServiceUnavailable, "starting")
		}
		return c.NoContent(http.StatusNoContent)
	})

	if err := f.client(t).WaitReady(context.Background()); err != nil {
		t.Fatalf("wait ready: %v", err)
	}
	if probes < 3 {
		t.Fatalf("expected at least 3 probes, got %d", probes)
	}
}

func TestWaitReadyTimesOut(t *testing.T) {
	f := newFakeAPI(t)
	f.e.GET("/api/health", func(c echo.Context) error {
		return c.String(http.StatusServiceUnavailable, "starting")
	})

	logger, _ := test.NewNullLogger()
	c := NewClient(Config{
		BaseURL:       f.srv.URL,
		Logger:        logger,
		ReadyInterval: 5 * time.Millisecond,
		ReadyTimeout:  40 * time.Millisecond,
	})
	if err := c.WaitReady(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestHealthTreatsAnyNon5xxAsUp(t *testing.T) {
	// No health route registered; the 404 still proves a listener.
	f := newFakeAPI(t)
	if err := f.client(t).Health(context.Background()); err != nil {
		t.Fatalf("expected 404 to count as healthy, got %v", err)
	}
}
