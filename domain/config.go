package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// WidgetConfig is the per-type payload stored alongside a widget. A nil
// config is valid for every type. Configs are replaced wholesale by
// patches and must never be mutated in place once attached to a widget.
type WidgetConfig interface {
	// Validate checks the payload before a write accepts it.
	Validate() error
}

// ValidationError reports a payload rejected before any state changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Validation is the marker method for pre-apply rejections.
func (e *ValidationError) Validation() {}

// IsValidation reports whether err rejected a write before it was
// applied, as opposed to a failure after the optimistic apply.
func IsValidation(err error) bool {
	var v interface {
		Validation()
	}
	return errors.As(err, &v)
}

// LinkManagerConfig scopes a link-manager widget to one category view.
type LinkManagerConfig struct {
	CategoryID   *string `json:"categoryId,omitempty"`
	ShowFavicons bool    `json:"showFavicons,omitempty"`
	Columns      int     `json:"columns,omitempty"`
}

func (c *LinkManagerConfig) Validate() error {
	if c.Columns < 0 || c.Columns > 6 {
		return &ValidationError{Field: "columns", Reason: "must be between 0 and 6"}
	}
	return nil
}

const maxNotesBytes = 64 * 1024

// NotesConfig holds free-form text for notes and journal widgets.
type NotesConfig struct {
	Text      string `json:"text,omitempty"`
	Monospace bool   `json:"monospace,omitempty"`
}

func (c *NotesConfig) Validate() error {
	if len(c.Text) > maxNotesBytes {
		return &ValidationError{Field: "text", Reason: "exceeds 64KiB"}
	}
	return nil
}

// KanbanConfig names the columns of a kanban widget, left to right.
type KanbanConfig struct {
	Columns []string `json:"columns"`
}

func (c *KanbanConfig) Validate() error {
	if len(c.Columns) > 10 {
		return &ValidationError{Field: "columns", Reason: "at most 10 columns"}
	}
	for _, name := range c.Columns {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{Field: "columns", Reason: "column names must not be blank"}
		}
	}
	return nil
}

// CountdownConfig points a countdown widget at its target instant.
type CountdownConfig struct {
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

func (c *CountdownConfig) Validate() error {
	if _, err := time.Parse(time.RFC3339, c.Target); err != nil {
		return &ValidationError{Field: "target", Reason: "must be an RFC 3339 timestamp"}
	}
	return nil
}

// ClockConfig selects the zone and dial style of a clock widget.
type ClockConfig struct {
	TimeZone       string `json:"timeZone,omitempty"`
	ShowSeconds    bool   `json:"showSeconds,omitempty"`
	TwentyFourHour bool   `json:"twentyFourHour,omitempty"`
}

func (c *ClockConfig) Validate() error { return nil }

// EmbedConfig frames an external page inside an embed widget.
type EmbedConfig struct {
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
	AllowScripts bool   `json:"allowScripts,omitempty"`
}

func (c *EmbedConfig) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "url", Reason: "must be an absolute http(s) URL"}
	}
	return nil
}

// CronBuilderConfig holds the expression a cron-builder widget edits.
type CronBuilderConfig struct {
	Expression string `json:"expression"`
}

func (c *CronBuilderConfig) Validate() error {
	if len(strings.Fields(c.Expression)) != 5 {
		return &ValidationError{Field: "expression", Reason: "must have 5 fields"}
	}
	return nil
}

var easingFunctions = map[string]struct{}{
	"linear":      {},
	"ease":        {},
	"ease-in":     {},
	"ease-out":    {},
	"ease-in-out": {},
}

// EasingConfig drives the curve an easing-visualizer widget animates.
type EasingConfig struct {
	Function   string `json:"function"`
	DurationMS int    `json:"durationMs,omitempty"`
}

func (c *EasingConfig) Validate() error {
	if _, ok := easingFunctions[c.Function]; !ok && !strings.HasPrefix(c.Function, "cubic-bezier(") {
		return &ValidationError{Field: "function", Reason: "unknown easing function"}
	}
	if c.DurationMS < 0 {
		return &ValidationError{Field: "durationMs", Reason: "must not be negative"}
	}
	return nil
}

// DamageCalculatorConfig seeds the inputs of a damage-calculator widget.
type DamageCalculatorConfig struct {
	BaseDamage     float64 `json:"baseDamage"`
	CritChance     float64 `json:"critChance,omitempty"`
	CritMultiplier float64 `json:"critMultiplier,omitempty"`
}

func (c *DamageCalculatorConfig) Validate() error {
	if c.BaseDamage < 0 {
		return &ValidationError{Field: "baseDamage", Reason: "must not be negative"}
	}
	if c.CritChance < 0 || c.CritChance > 1 {
		return &ValidationError{Field: "critChance", Reason: "must be between 0 and 1"}
	}
	if c.CritMultiplier != 0 && c.CritMultiplier < 1 {
		return &ValidationError{Field: "critMultiplier", Reason: "must be at least 1"}
	}
	return nil
}

// GradientStop is one color stop of a css-gradient widget.
type GradientStop struct {
	Color    string `json:"color"`
	Position int    `json:"position"`
}

// CSSGradientConfig describes the gradient a css-gradient widget edits.
type CSSGradientConfig struct {
	Angle int            `json:"angle,omitempty"`
	Stops []GradientStop `json:"stops"`
}

func (c *CSSGradientConfig) Validate() error {
	if c.Angle < 0 || c.Angle > 360 {
		return &ValidationError{Field: "angle", Reason: "must be between 0 and 360"}
	}
	if len(c.Stops) < 2 {
		return &ValidationError{Field: "stops", Reason: "needs at least 2 stops"}
	}
	for _, s := range c.Stops {
		if s.Position < 0 || s.Position > 100 {
			return &ValidationError{Field: "stops", Reason: "positions must be between 0 and 100"}
		}
		if !strings.HasPrefix(s.Color, "#") || (len(s.Color) != 4 && len(s.Color) != 7) {
			return &ValidationError{Field: "stops", Reason: "colors must be #rgb or #rrggbb"}
		}
	}
	return nil
}

// GenericConfig holds the payload of widget types without a dedicated
// schema. Unknown fields round-trip untouched.
type GenericConfig map[string]any

func (GenericConfig) Validate() error { return nil }

// configSchemas maps widget types to a factory for their typed config.
// Types absent from the map decode to GenericConfig.
var configSchemas = map[WidgetType]func() WidgetConfig{
	WidgetTypeLinkManager:      func() WidgetConfig { return &LinkManagerConfig{} },
	WidgetTypeNotes:            func() WidgetConfig { return &NotesConfig{} },
	WidgetTypeJournal:          func() WidgetConfig { return &NotesConfig{} },
	WidgetTypeKanban:           func() WidgetConfig { return &KanbanConfig{} },
	WidgetTypeCountdown:        func() WidgetConfig { return &CountdownConfig{} },
	WidgetTypeClock:            func() WidgetConfig { return &ClockConfig{} },
	WidgetTypeWorldClock:       func() WidgetConfig { return &ClockConfig{} },
	WidgetTypeEmbed:            func() WidgetConfig { return &EmbedConfig{} },
	WidgetTypeCronBuilder:      func() WidgetConfig { return &CronBuilderConfig{} },
	WidgetTypeEasing:           func() WidgetConfig { return &EasingConfig{} },
	WidgetTypeDamageCalculator: func() WidgetConfig { return &DamageCalculatorConfig{} },
	WidgetTypeCSSGradient:      func() WidgetConfig { return &CSSGradientConfig{} },
}

// DecodeConfig turns the raw config payload of a widget into its typed
// form. The payload is not validated here; reads accept whatever the
// collaborator stored, writes validate before applying.
func DecodeConfig(t WidgetType, raw []byte) (WidgetConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if mk, ok := configSchemas[t]; ok {
		cfg := mk()
		if err := sonic.ConfigStd.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode %s config: %w", t, err)
		}
		return cfg, nil
	}
	cfg := GenericConfig{}
	if err := sonic.ConfigStd.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", t, err)
	}
	return cfg, nil
}
