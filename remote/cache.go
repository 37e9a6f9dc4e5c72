package remote

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"stacklume-engine/domain"
)

// backend is the slice of the API the cache fronts.
type backend interface {
	ListWidgets(ctx context.Context, project *string) ([]domain.Widget, error)
	CreateWidget(ctx context.Context, draft domain.Widget) (domain.Widget, error)
	UpdateWidget(ctx context.Context, id string, patch domain.WidgetPatch) (*domain.Widget, error)
	DeleteWidget(ctx context.Context, id string) error
	UpdateWidgetLayouts(ctx context.Context, patches []domain.LayoutPatch) error

	ListLinks(ctx context.Context) ([]domain.Link, error)
	CreateLink(ctx context.Context, draft domain.Link) (domain.Link, error)
	UpdateLink(ctx context.Context, id string, patch domain.LinkPatch) (*domain.Link, error)
	DeleteLink(ctx context.Context, id string) error
	ReorderLinks(ctx context.Context, orderedIDs []string, scope domain.ScopeKey) ([]domain.Link, error)
	AttachTag(ctx context.Context, join domain.LinkTag) error
	DetachTag(ctx context.Context, join domain.LinkTag) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, draft domain.Category) (domain.Category, error)
	UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) error
	DeleteCategory(ctx context.Context, id string) error

	ListTags(ctx context.Context) ([]domain.Tag, error)
	CreateTag(ctx context.Context, draft domain.Tag) (domain.Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

const (
	widgetsCacheKey    = "stacklume:widgets"
	linksCacheKey      = "stacklume:links"
	categoriesCacheKey = "stacklume:categories"
	tagsCacheKey       = "stacklume:tags"
)

var listCacheKeys = []string{widgetsCacheKey, linksCacheKey, categoriesCacheKey, tagsCacheKey}

// Cache wraps the API client with Redis-backed caching for the list
// reads. Every successful mutation evicts all list keys, since the
// server cascades writes across collections. Redis being down or
// holding garbage never fails a call; reads fall through to the API.
type Cache struct {
	base   backend
	redis  *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewCache creates a caching wrapper around base using the provided
// Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration, logger *log.Logger) *Cache {
	if base == nil {
		panic("remote.NewCache: base client is nil")
	}
	if logger == nil {
		panic("remote.NewCache: logger is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl, logger: logger}
}

// loadCached returns the decoded value under key, or ok=false on a
// miss. Errors and undecodable payloads drop the key and count as a
// miss, so a broken cache degrades to plain API reads.
func loadCached[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var out T
	if c.redis == nil {
		return out, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("key", key).Debug("cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return out, false
	}
	if err := sonic.Unmarshal(data, &out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		var zero T
		return zero, false
	}
	return out, true
}

// storeCached best-effort writes the value under key with the cache
// TTL.
func storeCached[T any](ctx context.Context, c *Cache, key string, value T) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("cache write failed")
	}
}

// evict drops every list key. Called after each successful mutation;
// failed mutations leave the cache alone.
func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, listCacheKeys...).Err(); err != nil {
		c.logger.WithError(err).Debug("cache evict failed")
	}
}

// ListWidgets serves the full widget list from the cache when it can.
// Scoped lists bypass the cache; the engine only ever fetches the full
// list and filters boards in memory.
func (c *Cache) ListWidgets(ctx context.Context, project *string) ([]domain.Widget, error) {
	if project != nil {
		return c.base.ListWidgets(ctx, project)
	}
	if widgets, ok := loadCached[[]domain.Widget](ctx, c, widgetsCacheKey); ok {
		return widgets, nil
	}
	widgets, err := c.base.ListWidgets(ctx, nil)
	if err != nil {
		return nil, err
	}
	storeCached(ctx, c, widgetsCacheKey, widgets)
	return widgets, nil
}

func (c *Cache) CreateWidget(ctx context.Context, draft domain.Widget) (domain.Widget, error) {
	created, err := c.base.CreateWidget(ctx, draft)
	if err != nil {
		return domain.Widget{}, err
	}
	c.evict(ctx)
	return created, nil
}

func (c *Cache) UpdateWidget(ctx context.Context, id string, patch domain.WidgetPatch) (*domain.Widget, error) {
	updated, err := c.base.UpdateWidget(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	c.evict(ctx)
	return updated, nil
}

func (c *Cache) DeleteWidget(ctx context.Context, id string) error {
	if err := c.base.DeleteWidget(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) UpdateWidgetLayouts(ctx context.Context, patches []domain.LayoutPatch) error {
	if err := c.base.UpdateWidgetLayouts(ctx, patches); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) ListLinks(ctx context.Context) ([]domain.Link, error) {
	if links, ok := loadCached[[]domain.Link](ctx, c, linksCacheKey); ok {
		return links, nil
	}
	links, err := c.base.ListLinks(ctx)
	if err != nil {
		return nil, err
	}
	storeCached(ctx, c, linksCacheKey, links)
	return links, nil
}

func (c *Cache) CreateLink(ctx context.Context, draft domain.Link) (domain.Link, error) {
	created, err := c.base.CreateLink(ctx, draft)
	if err != nil {
		return domain.Link{}, err
	}
	c.evict(ctx)
	return created, nil
}

func (c *Cache) UpdateLink(ctx context.Context, id string, patch domain.LinkPatch) (*domain.Link, error) {
	updated, err := c.base.UpdateLink(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	c.evict(ctx)
	return updated, nil
}

func (c *Cache) DeleteLink(ctx context.Context, id string) error {
	if err := c.base.DeleteLink(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) ReorderLinks(ctx context.Context, orderedIDs []string, scope domain.ScopeKey) ([]domain.Link, error) {
	links, err := c.base.ReorderLinks(ctx, orderedIDs, scope)
	if err != nil {
		return nil, err
	}
	c.evict(ctx)
	return links, nil
}

func (c *Cache) AttachTag(ctx context.Context, join domain.LinkTag) error {
	if err := c.base.AttachTag(ctx, join); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) DetachTag(ctx context.Context, join domain.LinkTag) error {
	if err := c.base.DetachTag(ctx, join); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if categories, ok := loadCached[[]domain.Category](ctx, c, categoriesCacheKey); ok {
		return categories, nil
	}
	categories, err := c.base.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	storeCached(ctx, c, categoriesCacheKey, categories)
	return categories, nil
}

func (c *Cache) CreateCategory(ctx context.Context, draft domain.Category) (domain.Category, error) {
	created, err := c.base.CreateCategory(ctx, draft)
	if err != nil {
		return domain.Category{}, err
	}
	c.evict(ctx)
	return created, nil
}

func (c *Cache) UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) error {
	if err := c.base.UpdateCategory(ctx, id, patch); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) DeleteCategory(ctx context.Context, id string) error {
	if err := c.base.DeleteCategory(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) ListTags(ctx context.Context) ([]domain.Tag, error) {
	if tags, ok := loadCached[[]domain.Tag](ctx, c, tagsCacheKey); ok {
		return tags, nil
	}
	tags, err := c.base.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	storeCached(ctx, c, tagsCacheKey, tags)
	return tags, nil
}

func (c *Cache) CreateTag(ctx context.Context, draft domain.Tag) (domain.Tag, error) {
	created, err := c.base.CreateTag(ctx, draft)
	if err != nil {
		return domain.Tag{}, err
	}
	c.evict(ctx)
	return created, nil
}

func (c *Cache) DeleteTag(ctx context.Context, id string) error {
	if err := c.base.DeleteTag(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}
