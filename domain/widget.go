package domain

import (
	"time"

	"github.com/bytedance/sonic"
)

// WidgetType identifies which tool a widget renders. The engine treats
// the type as an opaque tag except for config decoding and packing
// priority.
type WidgetType string

const (
	WidgetTypeLinkManager WidgetType = "link-manager"
	WidgetTypeNotes       WidgetType = "notes"
	WidgetTypeTodoList    WidgetType = "todo-list"
	WidgetTypeKanban      WidgetType = "kanban"
	WidgetTypeJournal     WidgetType = "journal"
	WidgetTypeIdeaBoard   WidgetType = "idea-board"
	WidgetTypeEisenhower  WidgetType = "eisenhower-matrix"
	WidgetTypeTierList    WidgetType = "tier-list"
	WidgetTypeScoreboard  WidgetType = "scoreboard"

	WidgetTypeCalendar     WidgetType = "calendar"
	WidgetTypeClock        WidgetType = "clock"
	WidgetTypeWorldClock   WidgetType = "world-clock"
	WidgetTypeStopwatch    WidgetType = "stopwatch"
	WidgetTypeAlarm        WidgetType = "alarm"
	WidgetTypePomodoro     WidgetType = "pomodoro"
	WidgetTypeCountdown    WidgetType = "countdown"
	WidgetTypeYearProgress WidgetType = "year-progress"
	WidgetTypeMoonPhase    WidgetType = "moon-phase"

	WidgetTypeHabitTracker        WidgetType = "habit-tracker"
	WidgetTypeStreakCounter       WidgetType = "streak-counter"
	WidgetTypeExpenseTracker      WidgetType = "expense-tracker"
	WidgetTypeSubscriptionTracker WidgetType = "subscription-tracker"
	WidgetTypeWaterTracker        WidgetType = "water-tracker"
	WidgetTypeSleepTracker        WidgetType = "sleep-tracker"
	WidgetTypeWorkoutTracker      WidgetType = "workout-tracker"
	WidgetTypeReadingTracker      WidgetType = "reading-tracker"
	WidgetTypeMoodTracker         WidgetType = "mood-tracker"

	WidgetTypeRSSReader     WidgetType = "rss-reader"
	WidgetTypeWeather       WidgetType = "weather"
	WidgetTypeQuote         WidgetType = "quote"
	WidgetTypeEmbed         WidgetType = "embed"
	WidgetTypeImageGallery  WidgetType = "image-gallery"
	WidgetTypeSpotifyPlayer WidgetType = "spotify-player"
	WidgetTypeYouTubePlayer WidgetType = "youtube-player"
	WidgetTypeRadioPlayer   WidgetType = "radio-player"
	WidgetTypeSoundboard    WidgetType = "soundboard"
	WidgetTypeWhiteNoise    WidgetType = "white-noise"

	WidgetTypeCalculator        WidgetType = "calculator"
	WidgetTypeUnitConverter     WidgetType = "unit-converter"
	WidgetTypeCurrencyConverter WidgetType = "currency-converter"
	WidgetTypePercentage        WidgetType = "percentage-calculator"
	WidgetTypeRuleOfThree       WidgetType = "rule-of-three"
	WidgetTypeDateCalculator    WidgetType = "date-calculator"
	WidgetTypeTipCalculator     WidgetType = "tip-calculator"
	WidgetTypeDamageCalculator  WidgetType = "damage-calculator"
	WidgetTypeDPSMeter          WidgetType = "dps-meter"
	WidgetTypeXPPlanner         WidgetType = "xp-planner"
	WidgetTypeLootTable         WidgetType = "loot-table"

	WidgetTypeCSSGradient       WidgetType = "css-gradient"
	WidgetTypeCSSShadow         WidgetType = "css-shadow"
	WidgetTypeCSSAnimation      WidgetType = "css-animation"
	WidgetTypeBorderRadius      WidgetType = "border-radius"
	WidgetTypeAspectRatio       WidgetType = "aspect-ratio"
	WidgetTypeColorPalette      WidgetType = "color-palette"
	WidgetTypeColorPicker       WidgetType = "color-picker"
	WidgetTypeContrastChecker   WidgetType = "contrast-checker"
	WidgetTypeGlassmorphism     WidgetType = "glassmorphism"
	WidgetTypeEasing            WidgetType = "easing-visualizer"
	WidgetTypeFlexboxPlayground WidgetType = "flexbox-playground"
	WidgetTypeGridPlayground    WidgetType = "grid-playground"

	WidgetTypeCronBuilder       WidgetType = "cron-builder"
	WidgetTypeRegexTester       WidgetType = "regex-tester"
	WidgetTypeUUIDGenerator     WidgetType = "uuid-generator"
	WidgetTypePasswordGenerator WidgetType = "password-generator"
	WidgetTypeHashGenerator     WidgetType = "hash-generator"
	WidgetTypeBase64            WidgetType = "base64-tool"
	WidgetTypeJSONFormatter     WidgetType = "json-formatter"
	WidgetTypeMarkdownPreview   WidgetType = "markdown-preview"
	WidgetTypeLoremIpsum        WidgetType = "lorem-ipsum"
	WidgetTypeQRCode            WidgetType = "qr-code"

	WidgetTypeDiceRoller    WidgetType = "dice-roller"
	WidgetTypeCoinFlip      WidgetType = "coin-flip"
	WidgetTypeRandomPicker  WidgetType = "random-picker"
	WidgetTypeNameGenerator WidgetType = "name-generator"
)

// AllWidgetTypes lists every type the engine ships a renderer for.
var AllWidgetTypes = []WidgetType{
	WidgetTypeLinkManager, WidgetTypeNotes, WidgetTypeTodoList, WidgetTypeKanban,
	WidgetTypeJournal, WidgetTypeIdeaBoard, WidgetTypeEisenhower, WidgetTypeTierList,
	WidgetTypeScoreboard,
	WidgetTypeCalendar, WidgetTypeClock, WidgetTypeWorldClock, WidgetTypeStopwatch,
	WidgetTypeAlarm, WidgetTypePomodoro, WidgetTypeCountdown, WidgetTypeYearProgress,
	WidgetTypeMoonPhase,
	WidgetTypeHabitTracker, WidgetTypeStreakCounter, WidgetTypeExpenseTracker,
	WidgetTypeSubscriptionTracker, WidgetTypeWaterTracker, WidgetTypeSleepTracker,
	WidgetTypeWorkoutTracker, WidgetTypeReadingTracker, WidgetTypeMoodTracker,
	WidgetTypeRSSReader, WidgetTypeWeather, WidgetTypeQuote, WidgetTypeEmbed,
	WidgetTypeImageGallery, WidgetTypeSpotifyPlayer, WidgetTypeYouTubePlayer,
	WidgetTypeRadioPlayer, WidgetTypeSoundboard, WidgetTypeWhiteNoise,
	WidgetTypeCalculator, WidgetTypeUnitConverter, WidgetTypeCurrencyConverter,
	WidgetTypePercentage, WidgetTypeRuleOfThree, WidgetTypeDateCalculator,
	WidgetTypeTipCalculator, WidgetTypeDamageCalculator, WidgetTypeDPSMeter,
	WidgetTypeXPPlanner, WidgetTypeLootTable,
	WidgetTypeCSSGradient, WidgetTypeCSSShadow, WidgetTypeCSSAnimation,
	WidgetTypeBorderRadius, WidgetTypeAspectRatio, WidgetTypeColorPalette,
	WidgetTypeColorPicker, WidgetTypeContrastChecker, WidgetTypeGlassmorphism,
	WidgetTypeEasing, WidgetTypeFlexboxPlayground, WidgetTypeGridPlayground,
	WidgetTypeCronBuilder, WidgetTypeRegexTester, WidgetTypeUUIDGenerator,
	WidgetTypePasswordGenerator, WidgetTypeHashGenerator, WidgetTypeBase64,
	WidgetTypeJSONFormatter, WidgetTypeMarkdownPreview, WidgetTypeLoremIpsum,
	WidgetTypeQRCode,
	WidgetTypeDiceRoller, WidgetTypeCoinFlip, WidgetTypeRandomPicker,
	WidgetTypeNameGenerator,
}

var knownWidgetTypes = func() map[WidgetType]struct{} {
	m := make(map[WidgetType]struct{}, len(AllWidgetTypes))
	for _, t := range AllWidgetTypes {
		m[t] = struct{}{}
	}
	return m
}()

// Known reports whether t is part of the shipped widget catalog.
func (t WidgetType) Known() bool {
	_, ok := knownWidgetTypes[t]
	return ok
}

// SizeClass names the preset footprint of a widget on the packing grid.
type SizeClass string

const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeWide   SizeClass = "wide"
	SizeLarge  SizeClass = "large"
)

// Dims returns the column and row span of the size class. Unknown
// classes get the medium footprint.
func (s SizeClass) Dims() (w, h int) {
	switch s {
	case SizeSmall:
		return 3, 3
	case SizeWide:
		return 6, 3
	case SizeLarge:
		return 6, 4
	default:
		return 4, 3
	}
}

// Known reports whether s is one of the preset size classes.
func (s SizeClass) Known() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeWide, SizeLarge:
		return true
	}
	return false
}

// ClassForDims maps a slot footprint back to the closest size class.
func ClassForDims(w, h int) SizeClass {
	switch {
	case w >= 6 && h >= 4:
		return SizeLarge
	case w >= 6:
		return SizeWide
	case w >= 4:
		return SizeMedium
	default:
		return SizeSmall
	}
}

// Layout is an absolute placement on the packing grid, measured in
// columns and rows from the top left corner.
type Layout struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Intersects reports whether two placements share at least one cell.
func (l Layout) Intersects(o Layout) bool {
	return l.X < o.X+o.W && o.X < l.X+l.W && l.Y < o.Y+o.H && o.Y < l.Y+l.H
}

// IsZero reports whether the layout was never assigned.
func (l Layout) IsZero() bool {
	return l == Layout{}
}

// Widget represents one placed tool on a board.
type Widget struct {
	ID          string       `json:"id"`
	Type        WidgetType   `json:"type"`
	Title       string       `json:"title"`
	Size        SizeClass    `json:"size"`
	ProjectID   *string      `json:"projectId,omitempty"`
	Config      WidgetConfig `json:"config,omitempty"`
	Locked      bool         `json:"locked,omitempty"`
	KanbanOrder int          `json:"kanbanOrder,omitempty"`
	Layout      Layout       `json:"layout"`
	CreatedAt   time.Time    `json:"createdAt,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt,omitempty"`
}

// SameProject reports whether the widget belongs to the given board
// scope. A nil project selects widgets without a project.
func (w Widget) SameProject(project *string) bool {
	if w.ProjectID == nil || project == nil {
		return w.ProjectID == nil && project == nil
	}
	return *w.ProjectID == *project
}

// MarshalJSON emits timestamps as RFC 3339 strings and the config as
// the payload of its concrete type.
func (w Widget) MarshalJSON() ([]byte, error) {
	type alias Widget
	return sonic.ConfigStd.Marshal(struct {
		alias
		CreatedAt string `json:"createdAt,omitempty"`
		UpdatedAt string `json:"updatedAt,omitempty"`
	}{
		alias:     alias(w),
		CreatedAt: formatWireTime(w.CreatedAt),
		UpdatedAt: formatWireTime(w.UpdatedAt),
	})
}

// UnmarshalJSON decodes the config payload through the schema registry
// for the widget's type and tolerates malformed timestamps by mapping
// them to the zero time.
func (w *Widget) UnmarshalJSON(data []byte) error {
	type alias Widget
	aux := struct {
		*alias
		Config    sonic.NoCopyRawMessage `json:"config,omitempty"`
		CreatedAt sonic.NoCopyRawMessage `json:"createdAt,omitempty"`
		UpdatedAt sonic.NoCopyRawMessage `json:"updatedAt,omitempty"`
	}{alias: (*alias)(w)}
	if err := sonic.ConfigStd.Unmarshal(data, &aux); err != nil {
		return err
	}
	w.CreatedAt = decodeWireTime(aux.CreatedAt)
	w.UpdatedAt = decodeWireTime(aux.UpdatedAt)
	cfg, err := DecodeConfig(w.Type, aux.Config)
	if err != nil {
		return err
	}
	w.Config = cfg
	return nil
}

// WidgetPatch carries the optional fields of a widget update. Nil
// members leave the current value untouched. ProjectID has a second
// pointer level so a patch can clear the assignment explicitly.
type WidgetPatch struct {
	Title       *string      `json:"title,omitempty"`
	Size        *SizeClass   `json:"size,omitempty"`
	ProjectID   **string     `json:"projectId,omitempty"`
	Config      WidgetConfig `json:"config,omitempty"`
	Locked      *bool        `json:"locked,omitempty"`
	KanbanOrder *int         `json:"kanbanOrder,omitempty"`
	Layout      *Layout      `json:"layout,omitempty"`
}

// ApplyTo writes the populated patch fields onto w.
func (p WidgetPatch) ApplyTo(w *Widget) {
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.Size != nil {
		w.Size = *p.Size
	}
	if p.ProjectID != nil {
		w.ProjectID = *p.ProjectID
	}
	if p.Config != nil {
		w.Config = p.Config
	}
	if p.Locked != nil {
		w.Locked = *p.Locked
	}
	if p.KanbanOrder != nil {
		w.KanbanOrder = *p.KanbanOrder
	}
	if p.Layout != nil {
		w.Layout = *p.Layout
	}
}

// LayoutPatch addresses one widget's placement in a bulk layout write.
type LayoutPatch struct {
	ID string `json:"id"`
	Layout
}

// Ptr returns a pointer to v, for building patch literals.
func Ptr[T any](v T) *T {
	return &v
}

// SetTo wraps v for a double pointer patch field.
func SetTo(v string) **string {
	p := &v
	return &p
}

// Clear returns a patch value that resets an optional reference.
func Clear() **string {
	var p *string
	return &p
}
