// engine/progression.go
package engine

import (
	"math"
	"strings"
)

type Difficulty string

const (
	DifficultyVeryEasy Difficulty = "very_easy"
	DifficultyEasy     Difficulty = "easy"
	DifficultyHard     Difficulty = "hard"
	DifficultyExtreme  Difficulty = "extreme"
)

type Importance string

const (
	ImportanceNormal        Importance = "normal"
	ImportanceImportant     Importance = "important"
	ImportanceVeryImportant Importance = "very_important"
	ImportanceSpecial       Importance = "special"
)

// ParseDifficulty normalizes user input. Unknown values fall back to very_easy.
func ParseDifficulty(s string) Difficulty {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DifficultyVeryEasy, DifficultyEasy, DifficultyHard, DifficultyExtreme:
		return d
	default:
		return DifficultyVeryEasy
	}
}

// ParseImportance normalizes user input. Unknown values fall back to normal.
func ParseImportance(s string) Importance {
	i := Importance(strings.ToLower(strings.TrimSpace(s)))
	switch i {
	case ImportanceNormal, ImportanceImportant, ImportanceVeryImportant, ImportanceSpecial:
		return i
	default:
		return ImportanceNormal
	}
}

func DifficultyXP(d Difficulty) int64 {
	switch d {
	case DifficultyEasy:
		return 3
	case DifficultyHard:
		return 7
	case DifficultyExtreme:
		return 20
	default:
		return 1
	}
}

func ImportanceXP(i Importance) int64 {
	switch i {
	case ImportanceImportant:
		return 3
	case ImportanceVeryImportant:
		return 10
	case ImportanceSpecial:
		return 100
	default:
		return 1
	}
}

// TaskXP is the reward frozen onto a task when it is created or edited.
func TaskXP(d Difficulty, i Importance) int64 {
	return DifficultyXP(d) + ImportanceXP(i)
}

// BaseLevelXP is the XP needed to go from level 0 to level 1.
const BaseLevelXP int64 = 200

// levelCurve holds the memoized per-level requirement and its running total.
// Index 0 is level 0 (requires nothing). The table stops at the last level
// whose cumulative total still fits in an int64.
type levelCurve struct {
	required []int64
	total    []int64
}

var curve = buildLevelCurve()

func buildLevelCurve() levelCurve {
	c := levelCurve{
		required: []int64{0, BaseLevelXP},
		total:    []int64{0, BaseLevelXP},
	}
	for {
		n := len(c.required)
		prev := c.required[n-1]
		// required(n) = required(n-1)*2 + floor(required(n-1)/2)
		if prev > (math.MaxInt64-prev/2)/2 {
			break
		}
		next := prev*2 + prev/2
		if c.total[n-1] > math.MaxInt64-next {
			break
		}
		c.required = append(c.required, next)
		c.total = append(c.total, c.total[n-1]+next)
	}
	return c
}

// MaxLevel is the highest level representable without overflowing XP totals.
func MaxLevel() int {
	return len(curve.required) - 1
}

// XPRequiredForLevel returns the XP needed to advance from level n-1 to n.
// Levels beyond MaxLevel saturate at math.MaxInt64.
func XPRequiredForLevel(n int) int64 {
	if n <= 0 {
		return 0
	}
	if n > MaxLevel() {
		return math.MaxInt64
	}
	return curve.required[n]
}

// TotalXPForLevel returns the cumulative XP at which level n is reached.
func TotalXPForLevel(n int) int64 {
	if n <= 0 {
		return 0
	}
	if n > MaxLevel() {
		return math.MaxInt64
	}
	return curve.total[n]
}

// LevelFromTotalXP returns the largest level L with TotalXPForLevel(L) <= xp.
func LevelFromTotalXP(xp int64) int {
	level := 0
	for level < MaxLevel() && curve.total[level+1] <= xp {
		level++
	}
	return level
}

// LevelProgressPercent reports how far xp is between level and level+1, in [0,100].
func LevelProgressPercent(xp int64, level int) float64 {
	floor := TotalXPForLevel(level)
	ceil := TotalXPForLevel(level + 1)
	span := ceil - floor
	if span <= 0 {
		return 100
	}
	pct := float64(xp-floor) / float64(span) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

var titleLadder = []struct {
	minLevel int
	title    string
}{
	{50, "Grandmaster"},
	{40, "Master"},
	{30, "Expert"},
	{20, "Professional"},
	{15, "Advanced"},
	{10, "Skilled"},
	{5, "Apprentice"},
}

func TitleForLevel(level int) string {
	for _, rung := range titleLadder {
		if level >= rung.minLevel {
			return rung.title
		}
	}
	return "Beginner"
}

func DidLevelUp(oldXP, newXP int64) bool {
	return LevelFromTotalXP(newXP) > LevelFromTotalXP(oldXP)
}

// PowerPointsForLevel is the PP granted when level n is reached:
// 40 at level 1, then the previous grant plus three quarters of it.
func PowerPointsForLevel(n int) int64 {
	if n <= 0 {
		return 0
	}
	pp := int64(40)
	for i := 2; i <= n; i++ {
		next := pp + pp*3/4
		if next < pp {
			return math.MaxInt64
		}
		pp = next
	}
	return pp
}

// ProgressUpdate describes the effect of adding XP to a user.
type ProgressUpdate struct {
	OldXP             int64  `json:"old_xp"`
	NewXP             int64  `json:"new_xp"`
	OldLevel          int    `json:"old_level"`
	NewLevel          int    `json:"new_level"`
	LevelUp           bool   `json:"level_up"`
	Title             string `json:"title"`
	PowerPointsGained int64  `json:"power_points_gained"`
}

// ApplyXP computes the new cached level/title for oldXP+delta.
// Negative deltas are ignored; XP never decreases.
func ApplyXP(oldXP, delta int64) ProgressUpdate {
	if delta < 0 {
		delta = 0
	}
	newXP := oldXP + delta
	if newXP < oldXP {
		newXP = math.MaxInt64
	}
	u := ProgressUpdate{
		OldXP:    oldXP,
		NewXP:    newXP,
		OldLevel: LevelFromTotalXP(oldXP),
		NewLevel: LevelFromTotalXP(newXP),
	}
	u.LevelUp = u.NewLevel > u.OldLevel
	u.Title = TitleForLevel(u.NewLevel)
	for l := u.OldLevel + 1; l <= u.NewLevel; l++ {
		u.PowerPointsGained += PowerPointsForLevel(l)
	}
	return u
}
