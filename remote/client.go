// Package remote is the HTTP/JSON client for the local Stacklume
// persistence API, plus an optional Redis read cache in front of it.
// Every call carries the anti-forgery token; a call rejected over a
// stale token is retried exactly once with a fresh one.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"stacklume-engine/domain"
)

const (
	pathHealth     = "/api/health"
	pathCSRF       = "/api/csrf"
	pathWidgets    = "/api/widgets"
	pathLayouts    = "/api/widgets/layouts"
	pathLinks      = "/api/links"
	pathReorder    = "/api/links/reorder"
	pathCategories = "/api/categories"
	pathTags       = "/api/tags"

	csrfHeader = "X-CSRF-Token"

	// maxErrorBody bounds how much of a failed response is kept for the
	// error message.
	maxErrorBody = 8 * 1024

	defaultRequestTimeout = 30 * time.Second
	defaultReadyInterval  = 500 * time.Millisecond
	defaultReadyTimeout   = 40 * time.Second
)

// StatusError reports a non-2xx response from the persistence API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api: status %d", e.Code)
	}
	return fmt.Sprintf("api: status %d: %s", e.Code, e.Body)
}

// AuthFailure reports whether the response rejected the anti-forgery
// credential.
func (e *StatusError) AuthFailure() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

func isAuthFailure(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.AuthFailure()
}

// Config wires a Client. BaseURL is required.
type Config struct {
	BaseURL string
	Logger  *log.Logger
	// HTTPClient overrides the transport; nil gets a client with the
	// default request timeout.
	HTTPClient *http.Client
	// ReadyInterval is the delay between WaitReady probes.
	ReadyInterval time.Duration
	// ReadyTimeout bounds how long WaitReady keeps probing.
	ReadyTimeout time.Duration
}

// Client talks to one Stacklume API instance. It is safe for
// concurrent use; the anti-forgery token is fetched lazily and shared
// across calls until a response rejects it.
type Client struct {
	baseURL       string
	http          *http.Client
	logger        *log.Logger
	readyInterval time.Duration
	readyTimeout  time.Duration

	mu    sync.Mutex
	token string
}

// NewClient builds a Client from cfg. BaseURL and Logger are required.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		panic("remote: base URL is required")
	}
	if cfg.Logger == nil {
		panic("remote: logger is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultRequestTimeout}
	}
	if cfg.ReadyInterval <= 0 {
		cfg.ReadyInterval = defaultReadyInterval
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		http:          hc,
		logger:        cfg.Logger,
		readyInterval: cfg.ReadyInterval,
		readyTimeout:  cfg.ReadyTimeout,
	}
}

// csrfToken returns the cached token, fetching one when the cache is
// empty. Pass the token a response just rejected as stale so only one
// of several concurrent callers refreshes.
func (c *Client) csrfToken(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.token != stale {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathCSRF, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readStatusError(resp)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode csrf token: %w", err)
	}
	if payload.Token == "" {
		return "", errors.New("remote: empty csrf token")
	}

	c.mu.Lock()
	c.token = payload.Token
	c.mu.Unlock()
	return payload.Token, nil
}

// do issues one API call. The request body is re-encoded per attempt, a
// 401/403 response invalidates the token and the call is retried once;
// the second rejection surfaces as the status error. A nil out skips
// response decoding, and an empty success body leaves out untouched.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = sonic.ConfigStd.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	stale := ""
	for attempt := 0; ; attempt++ {
		token, err := c.csrfToken(ctx, stale)
		if err != nil {
			return err
		}
		err = c.attempt(ctx, method, path, token, payload, out)
		if err == nil {
			return nil
		}
		if attempt == 0 && isAuthFailure(err) {
			c.logger.WithFields(log.Fields{"method": method, "path": path}).
				Debug("anti-forgery token rejected, refreshing")
			stale = token
			continue
		}
		return err
	}
}

func (c *Client) attempt(ctx context.Context, method, path, token string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(csrfHeader, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readStatusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	// Responses keep unknown fields; the server may grow its payloads.
	if err := sonic.ConfigStd.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}

// Health probes the API once. Any response with a status below 500
// counts as healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathHealth, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return readStatusError(resp)
	}
	return nil
}

// WaitReady polls the health endpoint until the server answers, the
// ready timeout passes, or ctx is done. The server counts as ready on
// any response below 500, matching a server that is up but still
// warming its routes.
func (c *Client) WaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.readyTimeout)
	defer cancel()

	ticker := time.NewTicker(c.readyInterval)
	defer ticker.Stop()
	for {
		if err := c.Health(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("remote: server not ready after %v: %w", c.readyTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ListWidgets fetches widgets. A nil project fetches every board; a
// set project narrows the list server side.
func (c *Client) ListWidgets(ctx context.Context, project *string) ([]domain.Widget, error) {
	path := pathWidgets
	if project != nil {
		path += "?projectId=" + url.QueryEscape(*project)
	}
	var out []domain.Widget
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateWidget persists the draft and returns the server issued record.
func (c *Client) CreateWidget(ctx context.Context, draft domain.Widget) (domain.Widget, error) {
	var out domain.Widget
	if err := c.do(ctx, http.MethodPost, pathWidgets, draft, &out); err != nil {
		return domain.Widget{}, err
	}
	return out, nil
}

// UpdateWidget patches one widget. The result is nil when the server
// answers without a body.
func (c *Client) UpdateWidget(ctx context.Context, id string, patch domain.WidgetPatch) (*domain.Widget, error) {
	var out domain.Widget
	if err := c.do(ctx, http.MethodPatch, pathWidgets+"/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// DeleteWidget removes one widget.
func (c *Client) DeleteWidget(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathWidgets+"/"+url.PathEscape(id), nil, nil)
}

// UpdateWidgetLayouts writes a batch of placements in one call, used by
// drags and the auto organizer alike.
func (c *Client) UpdateWidgetLayouts(ctx context.Context, patches []domain.LayoutPatch) error {
	if len(patches) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPut, pathLayouts, patches, nil)
}

// ListLinks fetches the whole link collection.
func (c *Client) ListLinks(ctx context.Context) ([]domain.Link, error) {
	var out []domain.Link
	if err := c.do(ctx, http.MethodGet, pathLinks, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateLink persists the draft and returns the server issued record.
func (c *Client) CreateLink(ctx context.Context, draft domain.Link) (domain.Link, error) {
	var out domain.Link
	if err := c.do(ctx, http.MethodPost, pathLinks, draft, &out); err != nil {
		return domain.Link{}, err
	}
	return out, nil
}

// UpdateLink patches one link. The result is nil when the server
// answers without a body.
func (c *Client) UpdateLink(ctx context.Context, id string, patch domain.LinkPatch) (*domain.Link, error) {
	var out domain.Link
	if err := c.do(ctx, http.MethodPatch, pathLinks+"/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// DeleteLink removes one link.
func (c *Client) DeleteLink(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathLinks+"/"+url.PathEscape(id), nil, nil)
}

type reorderRequest struct {
	OrderedIDs []string        `json:"orderedIds"`
	Scope      domain.ScopeKey `json:"scope"`
}

// ReorderLinks submits the visible id order for one bucket and returns
// the links whose order the server recomputed.
func (c *Client) ReorderLinks(ctx context.Context, orderedIDs []string, scope domain.ScopeKey) ([]domain.Link, error) {
	var out []domain.Link
	req := reorderRequest{OrderedIDs: orderedIDs, Scope: scope}
	if err := c.do(ctx, http.MethodPost, pathReorder, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AttachTag adds one link to tag assignment.
func (c *Client) AttachTag(ctx context.Context, join domain.LinkTag) error {
	path := pathLinks + "/" + url.PathEscape(join.LinkID) + "/tags"
	return c.do(ctx, http.MethodPost, path, struct {
		TagID string `json:"tagId"`
	}{TagID: join.TagID}, nil)
}

// DetachTag removes one link to tag assignment.
func (c *Client) DetachTag(ctx context.Context, join domain.LinkTag) error {
	path := pathLinks + "/" + url.PathEscape(join.LinkID) + "/tags/" + url.PathEscape(join.TagID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListCategories fetches the category collection.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if err := c.do(ctx, http.MethodGet, pathCategories, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCategory persists the draft and returns the server issued
// record.
func (c *Client) CreateCategory(ctx context.Context, draft domain.Category) (domain.Category, error) {
	var out domain.Category
	if err := c.do(ctx, http.MethodPost, pathCategories, draft, &out); err != nil {
		return domain.Category{}, err
	}
	return out, nil
}

// UpdateCategory patches one category. The server answers without a
// body.
func (c *Client) UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) error {
	return c.do(ctx, http.MethodPatch, pathCategories+"/"+url.PathEscape(id), patch, nil)
}

// DeleteCategory removes one category; the server moves its links to
// the uncategorized bucket.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathCategories+"/"+url.PathEscape(id), nil, nil)
}

// ListTags fetches the tag collection.
func (c *Client) ListTags(ctx context.Context) ([]domain.Tag, error) {
	var out []domain.Tag
	if err := c.do(ctx, http.MethodGet, pathTags, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTag persists the draft and returns the server issued record.
func (c *Client) CreateTag(ctx context.Context, draft domain.Tag) (domain.Tag, error) {
	var out domain.Tag
	if err := c.do(ctx, http.MethodPost, pathTags, draft, &out); err != nil {
		return domain.Tag{}, err
	}
	return out, nil
}

// DeleteTag removes one tag; the server drops its assignments.
func (c *Client) DeleteTag(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathTags+"/"+url.PathEscape(id), nil, nil)
}
