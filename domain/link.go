package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Link is one saved bookmark in the collection. Order is meaningful
// only relative to other links in the same category bucket.
type Link struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	FaviconURL  string    `json:"faviconUrl,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CategoryID  *string   `json:"categoryId,omitempty"`
	Favorite    bool      `json:"favorite,omitempty"`
	Order       int       `json:"order"`
	TagIDs      []string  `json:"tagIds,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// HasTag reports whether the link carries the given tag.
func (l Link) HasTag(tagID string) bool {
	return slices.Contains(l.TagIDs, tagID)
}

// MarshalJSON emits timestamps as RFC 3339 strings.
func (l Link) MarshalJSON() ([]byte, error) {
	type alias Link
	return sonic.ConfigStd.Marshal(struct {
		alias
		CreatedAt string `json:"createdAt,omitempty"`
		UpdatedAt string `json:"updatedAt,omitempty"`
	}{
		alias:     alias(l),
		CreatedAt: formatWireTime(l.CreatedAt),
		UpdatedAt: formatWireTime(l.UpdatedAt),
	})
}

// UnmarshalJSON tolerates malformed timestamps by mapping them to the
// zero time, so ordering comparisons stay total.
func (l *Link) UnmarshalJSON(data []byte) error {
	type alias Link
	aux := struct {
		*alias
		CreatedAt sonic.NoCopyRawMessage `json:"createdAt,omitempty"`
		UpdatedAt sonic.NoCopyRawMessage `json:"updatedAt,omitempty"`
	}{alias: (*alias)(l)}
	if err := sonic.ConfigStd.Unmarshal(data, &aux); err != nil {
		return err
	}
	l.CreatedAt = decodeWireTime(aux.CreatedAt)
	l.UpdatedAt = decodeWireTime(aux.UpdatedAt)
	return nil
}

// LinkPatch carries the optional fields of a link update. Nil members
// leave the current value untouched. CategoryID has a second pointer
// level so a move to "no category" is explicit.
type LinkPatch struct {
	URL         *string  `json:"url,omitempty"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	FaviconURL  *string  `json:"faviconUrl,omitempty"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
	CategoryID  **string `json:"categoryId,omitempty"`
	Favorite    *bool    `json:"favorite,omitempty"`
	Order       *int     `json:"order,omitempty"`
}

// ApplyTo writes the populated patch fields onto l.
func (p LinkPatch) ApplyTo(l *Link) {
	if p.URL != nil {
		l.URL = *p.URL
	}
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.FaviconURL != nil {
		l.FaviconURL = *p.FaviconURL
	}
	if p.ImageURL != nil {
		l.ImageURL = *p.ImageURL
	}
	if p.CategoryID != nil {
		l.CategoryID = *p.CategoryID
	}
	if p.Favorite != nil {
		l.Favorite = *p.Favorite
	}
	if p.Order != nil {
		l.Order = *p.Order
	}
}

// Category groups links and carries its own position in the sidebar.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Order int    `json:"order"`
}

// CategoryPatch carries the optional fields of a category update.
type CategoryPatch struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
	Icon  *string `json:"icon,omitempty"`
	Order *int    `json:"order,omitempty"`
}

// ApplyTo writes the populated patch fields onto c.
func (p CategoryPatch) ApplyTo(c *Category) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.Order != nil {
		c.Order = *p.Order
	}
}

// Tag labels links across category boundaries.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// LinkTag is the wire shape of one link to tag assignment. The engine
// keeps tag ids denormalized on the link; this type only travels on the
// attach and detach endpoints.
type LinkTag struct {
	LinkID string `json:"linkId"`
	TagID  string `json:"tagId"`
}

// ScopeKey identifies the ordering bucket a reorder applies to.
type ScopeKey string

const (
	// ScopeUnscoped marks a reorder submitted from a view with no
	// category filter. The collaborator scopes it to the uncategorized
	// bucket instead of rewriting order across every category.
	ScopeUnscoped ScopeKey = "unscoped"
	// ScopeUncategorized addresses links without a category.
	ScopeUncategorized ScopeKey = "uncategorized"
)

const categoryScopePrefix = "category:"

// CategoryScope returns the scope key for one category's bucket.
func CategoryScope(id string) ScopeKey {
	return ScopeKey(categoryScopePrefix + id)
}

// Contains reports whether the link belongs to the bucket k names.
func (k ScopeKey) Contains(l Link) bool {
	switch k {
	case ScopeUnscoped, ScopeUncategorized:
		return l.CategoryID == nil
	default:
		id, ok := strings.CutPrefix(string(k), categoryScopePrefix)
		if !ok {
			return false
		}
		return l.CategoryID != nil && *l.CategoryID == id
	}
}
