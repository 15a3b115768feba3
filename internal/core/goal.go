package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultGoalTarget is the monthly call target used when none is stored.
const DefaultGoalTarget = 1000

const (
	Seed    GrowthStage = "seed"
	Sprout  GrowthStage = "sprout"
	Growing GrowthStage = "growing"
	Bud     GrowthStage = "bud"
	Bloom   GrowthStage = "bloom"
)

// GrowthStage is the lifecycle step of the decorative plant.
type GrowthStage string

// Flower is the seasonal plant shown for a month.
type Flower struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Center string `json:"center"`
}

var seasonalFlowers = [12]Flower{
	{"水仙 (Narcissus)", "#FDFD96", "#FFA500"},
	{"梅 (Plum)", "#FF69B4", "#FFFF00"},
	{"桃 (Peach)", "#FFB7C5", "#FF1493"},
	{"桜 (Cherry Blossom)", "#FFC0CB", "#FF69B4"},
	{"チューリップ", "#FF4D4D", "#000000"},
	{"紫陽花 (Hydrangea)", "#87CEEB", "#E0FFFF"},
	{"朝顔 (Morning Glory)", "#4169E1", "#FFFFFF"},
	{"向日葵 (Sunflower)", "#FFD700", "#8B4513"},
	{"コスモス", "#FF69B4", "#FFFF00"},
	{"金木犀", "#FFA500", "#FF8C00"},
	{"菊 (Chrysanthemum)", "#FFFFE0", "#FFD700"},
	{"ポインセチア", "#DC143C", "#FFFF00"},
}

// DefaultGoal returns an empty goal for the month containing now.
func DefaultGoal(now time.Time) Goal {
	return Goal{
		Year:        now.Year(),
		Month:       int(now.Month()),
		TargetCount: DefaultGoalTarget,
	}
}

// Progress is the completion percentage clamped to [0, 100].
func (g Goal) Progress() float64 {
	if g.TargetCount <= 0 {
		return 0
	}
	p := float64(g.CurrentCount) / float64(g.TargetCount) * 100
	return min(100, max(0, p))
}

// Stage maps the goal progress to a growth stage.
func (g Goal) Stage() GrowthStage {
	return StageFor(g.Progress())
}

// AddCalls adds n completed calls, saturating at math.MaxInt.
// Non-positive n is ignored and reported with false.
func (g Goal) AddCalls(n int) (Goal, bool) {
	if n <= 0 {
		return g, false
	}
	if g.CurrentCount > math.MaxInt-n {
		g.CurrentCount = math.MaxInt
	} else {
		g.CurrentCount += n
	}
	return g, true
}

func (g Goal) WithTarget(n int) Goal {
	g.TargetCount = max(1, n)
	return g
}

func (g Goal) WithCurrent(n int) Goal {
	g.CurrentCount = max(0, n)
	return g
}

// Normalize repairs a goal read from storage: a missing target falls back
// to the default, counts are clamped, the month is clamped to 1-12 and an
// unset period uses now.
func (g Goal) Normalize(now time.Time) Goal {
	if g.Year <= 0 {
		g.Year = now.Year()
	}
	if g.Month <= 0 {
		g.Month = int(now.Month())
	}
	g.Month = min(12, g.Month)
	if g.TargetCount == 0 {
		g.TargetCount = DefaultGoalTarget
	}
	g.TargetCount = max(1, g.TargetCount)
	g.CurrentCount = max(0, g.CurrentCount)
	return g
}

// StageFor maps a progress percentage to a growth stage.
func StageFor(percent float64) GrowthStage {
	switch {
	case percent < 15:
		return Seed
	case percent < 40:
		return Sprout
	case percent < 70:
		return Growing
	case percent < 95:
		return Bud
	default:
		return Bloom
	}
}

// FlowerForMonth returns the seasonal flower. Months are clamped to 1-12.
func FlowerForMonth(month int) Flower {
	idx := min(11, max(0, month-1))
	return seasonalFlowers[idx]
}

// goalJSON keeps year and month as strings, matching the stored format.
type goalJSON struct {
	Year         flexInt `json:"year"`
	Month        flexInt `json:"month"`
	TargetCount  flexInt `json:"targetCount"`
	CurrentCount flexInt `json:"currentCount"`
}

func (g Goal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Year         string `json:"year"`
		Month        string `json:"month"`
		TargetCount  int    `json:"targetCount"`
		CurrentCount int    `json:"currentCount"`
	}{
		Year:         strconv.Itoa(g.Year),
		Month:        strconv.Itoa(g.Month),
		TargetCount:  g.TargetCount,
		CurrentCount: g.CurrentCount,
	})
}

func (g *Goal) UnmarshalJSON(data []byte) error {
	var raw goalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*g = Goal{
		Year:         int(raw.Year),
		Month:        int(raw.Month),
		TargetCount:  int(raw.TargetCount),
		CurrentCount: int(raw.CurrentCount),
	}
	return nil
}

// flexInt accepts a JSON number, a numeric string or null.
// Unparsable strings decode to zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		n, _ := ParseCount(str)
		*f = flexInt(n)
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*f = flexInt(int(num))
	return nil
}
