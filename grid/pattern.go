package grid

import (
	"slices"

	"stacklume-engine/domain"
)

// Columns is the fixed width of the packing grid.
const Columns = 12

// Slot is one rectangle of a size pattern, in grid cells.
type Slot struct {
	W int
	H int
}

var (
	slotSmall  = Slot{W: 3, H: 3}
	slotMedium = Slot{W: 4, H: 3}
	slotWide   = Slot{W: 6, H: 3}
	slotLarge  = Slot{W: 6, H: 4}
)

// patterns maps a widget count to its hand-tuned slot shapes. Slots are
// ordered roomiest-first so the highest priority widgets claim them, and
// every full row sums to the column count, which keeps first-fit packing
// hole-free.
var patterns = map[int][]Slot{
	1:  {slotLarge},
	2:  {slotWide, slotWide},
	3:  {slotMedium, slotMedium, slotMedium},
	4:  {slotWide, slotWide, slotWide, slotWide},
	5:  {slotWide, slotWide, slotMedium, slotMedium, slotMedium},
	6:  repeat(slotMedium, 6),
	7:  {slotMedium, slotMedium, slotMedium, slotSmall, slotSmall, slotSmall, slotSmall},
	8:  append([]Slot{slotWide, slotWide}, repeat(slotMedium, 6)...),
	9:  repeat(slotMedium, 9),
	10: append(repeat(slotMedium, 6), repeat(slotSmall, 4)...),
	11: append(repeat(slotMedium, 3), repeat(slotSmall, 8)...),
	12: repeat(slotSmall, 12),
}

func repeat(s Slot, n int) []Slot {
	out := make([]Slot, n)
	for i := range out {
		out[i] = s
	}
	return out
}

// PatternFor returns one slot per widget for the given count. Counts
// above the largest table entry degrade to uniform slots whose width is
// the column count divided by the row count at four widgets per row,
// never below one cell.
func PatternFor(count int) []Slot {
	if count <= 0 {
		return nil
	}
	if p, ok := patterns[count]; ok {
		return slices.Clone(p)
	}
	rows := (count + 3) / 4
	width := Columns / rows
	if width < 1 {
		width = 1
	}
	return repeat(Slot{W: width, H: 3}, count)
}

// widgetPriority ranks widget types for slot assignment. Higher ranks
// pack first and therefore land in the roomier slots; types missing
// from the table pack last.
var widgetPriority = map[domain.WidgetType]int{
	domain.WidgetTypeLinkManager: 100,

	domain.WidgetTypeKanban:   90,
	domain.WidgetTypeTodoList: 90,
	domain.WidgetTypeCalendar: 90,

	domain.WidgetTypeJournal:    80,
	domain.WidgetTypeIdeaBoard:  80,
	domain.WidgetTypeEisenhower: 80,
	domain.WidgetTypeRSSReader:  80,

	domain.WidgetTypeHabitTracker:        70,
	domain.WidgetTypeExpenseTracker:      70,
	domain.WidgetTypeSubscriptionTracker: 70,
	domain.WidgetTypeImageGallery:        70,
	domain.WidgetTypeTierList:            70,
	domain.WidgetTypeScoreboard:          70,

	domain.WidgetTypeWeather:           60,
	domain.WidgetTypeEmbed:             60,
	domain.WidgetTypeMarkdownPreview:   60,
	domain.WidgetTypeJSONFormatter:     60,
	domain.WidgetTypeRegexTester:       60,
	domain.WidgetTypeFlexboxPlayground: 60,
	domain.WidgetTypeGridPlayground:    60,

	domain.WidgetTypeNotes:          50,
	domain.WidgetTypePomodoro:       50,
	domain.WidgetTypeCountdown:      50,
	domain.WidgetTypeStreakCounter:  50,
	domain.WidgetTypeWaterTracker:   50,
	domain.WidgetTypeSleepTracker:   50,
	domain.WidgetTypeWorkoutTracker: 50,
	domain.WidgetTypeReadingTracker: 50,
	domain.WidgetTypeMoodTracker:    50,

	domain.WidgetTypeSpotifyPlayer: 40,
	domain.WidgetTypeYouTubePlayer: 40,
	domain.WidgetTypeRadioPlayer:   40,
	domain.WidgetTypeSoundboard:    40,
	domain.WidgetTypeWhiteNoise:    40,
	domain.WidgetTypeQuote:         40,

	domain.WidgetTypeCalculator:        30,
	domain.WidgetTypeUnitConverter:     30,
	domain.WidgetTypeCurrencyConverter: 30,
	domain.WidgetTypePercentage:        30,
	domain.WidgetTypeRuleOfThree:       30,
	domain.WidgetTypeDateCalculator:    30,
	domain.WidgetTypeTipCalculator:     30,
	domain.WidgetTypeDamageCalculator:  30,
	domain.WidgetTypeDPSMeter:          30,
	domain.WidgetTypeXPPlanner:         30,
	domain.WidgetTypeLootTable:         30,

	domain.WidgetTypeCSSGradient:       20,
	domain.WidgetTypeCSSShadow:         20,
	domain.WidgetTypeCSSAnimation:      20,
	domain.WidgetTypeBorderRadius:      20,
	domain.WidgetTypeAspectRatio:       20,
	domain.WidgetTypeColorPalette:      20,
	domain.WidgetTypeColorPicker:       20,
	domain.WidgetTypeContrastChecker:   20,
	domain.WidgetTypeGlassmorphism:     20,
	domain.WidgetTypeEasing:            20,
	domain.WidgetTypeCronBuilder:       20,
	domain.WidgetTypeUUIDGenerator:     20,
	domain.WidgetTypePasswordGenerator: 20,
	domain.WidgetTypeHashGenerator:     20,
	domain.WidgetTypeBase64:            20,
	domain.WidgetTypeLoremIpsum:        20,
	domain.WidgetTypeQRCode:            20,

	domain.WidgetTypeClock:         10,
	domain.WidgetTypeWorldClock:    10,
	domain.WidgetTypeStopwatch:     10,
	domain.WidgetTypeAlarm:         10,
	domain.WidgetTypeYearProgress:  10,
	domain.WidgetTypeMoonPhase:     10,
	domain.WidgetTypeDiceRoller:    10,
	domain.WidgetTypeCoinFlip:      10,
	domain.WidgetTypeRandomPicker:  10,
	domain.WidgetTypeNameGenerator: 10,
}

// Priority returns the packing rank of a widget type.
func Priority(t domain.WidgetType) int {
	return widgetPriority[t]
}
