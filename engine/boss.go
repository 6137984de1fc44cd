package engine

import (
	"fmt"
	"math"
	"time"
)

// Encounter is a boss health pool, owned by a user or shared by a guild.
type Encounter struct {
	MaxHP      int64
	CurrentHP  int64
	Defeated   bool
	DefeatedAt *time.Time
}

// DamageResult reports what one ApplyDamage call did.
type DamageResult struct {
	Dealt       int64
	DefeatedNow bool
}

// ApplyDamage removes amount HP, clamped at zero. The first hit that reaches
// zero marks the boss defeated and stamps DefeatedAt; later hits change nothing.
// A negative amount is a caller bug.
func (e *Encounter) ApplyDamage(amount int64, now time.Time) DamageResult {
	if amount < 0 {
		panic(fmt.Sprintf("engine: negative damage %d", amount))
	}
	before := e.CurrentHP
	if before < 0 {
		before = 0
	}
	after := before - amount
	if after < 0 {
		after = 0
	}
	e.CurrentHP = after
	res := DamageResult{Dealt: before - after}
	if after == 0 && !e.Defeated {
		e.Defeated = true
		at := now
		e.DefeatedAt = &at
		res.DefeatedNow = true
	}
	return res
}

func (e Encounter) IsAlive() bool {
	return e.CurrentHP > 0 && !e.Defeated
}

func (e Encounter) HPPercentage() float64 {
	if e.MaxHP <= 0 {
		return 0
	}
	return float64(e.CurrentHP) / float64(e.MaxHP) * 100
}

// BossMaxHPForLevel follows the same growth curve as level XP requirements.
func BossMaxHPForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return XPRequiredForLevel(level)
}

// BossCoinReward is 200 coins for the first boss, 20% more for each level after.
func BossCoinReward(level int) int64 {
	if level < 1 {
		level = 1
	}
	reward := int64(200)
	for l := 2; l <= level; l++ {
		next := reward * 6 / 5
		if next < reward {
			return math.MaxInt64
		}
		reward = next
	}
	return reward
}
