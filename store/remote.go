package store

import (
	"context"
	"errors"

	"stacklume-engine/domain"
)

// ErrNotFound reports an operation that addressed an entity the store
// does not hold.
var ErrNotFound = errors.New("store: entity not found")

// Remote is the persistence API the store synchronizes with. Update
// calls may return nil when the collaborator answers without a body;
// the store then keeps its optimistic record.
type Remote interface {
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
