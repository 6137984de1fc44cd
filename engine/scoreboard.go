package engine

import (
	"strings"
	"time"
)

type MissionStatus string

const (
	MissionActive    MissionStatus = "ACTIVE"
	MissionCompleted MissionStatus = "COMPLETED"
	MissionFailed    MissionStatus = "FAILED"
)

func (s MissionStatus) IsTerminal() bool {
	return s == MissionCompleted || s == MissionFailed
}

const (
	MissionDurationDays = 14
	BossHPPerMember     = 100
	MissionCoinReward   = 150
)

// MissionCompletionXP is granted to every active member of a successful mission.
var MissionCompletionXP = TaskXP(DifficultyExtreme, ImportanceSpecial)

// Per-member counter caps.
const (
	MaxShopPurchases      = 5
	MaxRegularBossHits    = 10
	MaxEasyTasksCompleted = 10
	MaxOtherTasks         = 6
)

// Damage dealt per counted unit.
const (
	DamageShopPurchase = 2
	DamageBossHit      = 2
	DamageEasyTask     = 1
	DamageOtherTask    = 4
	DamageDailyMessage = 4
)

type ContributionKind string

const (
	ContributionShopPurchase ContributionKind = "shop_purchase"
	ContributionBossHit      ContributionKind = "boss_hit"
	ContributionEasyTask     ContributionKind = "easy_task"
	ContributionOtherTask    ContributionKind = "other_task"
	ContributionChatMessage  ContributionKind = "chat_message"
	ContributionDirectAttack ContributionKind = "direct_attack"
)

func ParseContributionKind(s string) (ContributionKind, error) {
	k := ContributionKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case ContributionShopPurchase, ContributionBossHit, ContributionEasyTask,
		ContributionOtherTask, ContributionChatMessage, ContributionDirectAttack:
		return k, nil
	}
	return "", Reject(RejectInvalidInput, "unknown contribution kind %q", s)
}

// Contribution is one member event. Amount is the raw damage for direct
// attacks and the unit count for easy tasks; other kinds ignore it.
type Contribution struct {
	Kind   ContributionKind
	Amount int64
	At     time.Time
}

// Tally is a member's scoreboard row for one mission.
type Tally struct {
	ShopPurchases        int
	RegularBossHits      int
	EasyTasksCompleted   int
	OtherTasksCompleted  int
	HasNoUnresolvedTasks bool // set at close, deals no damage
	DaysWithMessages     DaySet
	TotalDamageDealt     int64
}

func capAdd(counter *int, units int64, max int) int64 {
	room := int64(max - *counter)
	if room <= 0 || units <= 0 {
		return 0
	}
	if units > room {
		units = room
	}
	*counter += int(units)
	return units
}

// Record applies c to the counters and returns the damage the event should
// deal. Events beyond a cap are accepted but count for nothing.
func (t *Tally) Record(c Contribution) int64 {
	switch c.Kind {
	case ContributionShopPurchase:
		return capAdd(&t.ShopPurchases, 1, MaxShopPurchases) * DamageShopPurchase
	case ContributionBossHit:
		return capAdd(&t.RegularBossHits, 1, MaxRegularBossHits) * DamageBossHit
	case ContributionEasyTask:
		units := c.Amount
		if units <= 0 {
			units = 1
		}
		return capAdd(&t.EasyTasksCompleted, units, MaxEasyTasksCompleted) * DamageEasyTask
	case ContributionOtherTask:
		return capAdd(&t.OtherTasksCompleted, 1, MaxOtherTasks) * DamageOtherTask
	case ContributionChatMessage:
		if t.DaysWithMessages == nil {
			t.DaysWithMessages = NewDaySet()
		}
		if t.DaysWithMessages.Add(c.At) {
			return DamageDailyMessage
		}
		return 0
	case ContributionDirectAttack:
		if c.Amount < 0 {
			return 0
		}
		return c.Amount
	}
	return 0
}

func MissionBossHP(activeMembers int) int64 {
	if activeMembers < 1 {
		activeMembers = 1
	}
	return int64(activeMembers) * BossHPPerMember
}

func MissionEndDate(start time.Time) time.Time {
	return AddDays(start, MissionDurationDays)
}

// MissionExpired compares calendar days: a mission is over once today is on or after endDate.
func MissionExpired(endDate, now time.Time) bool {
	return !Day(now.In(endDate.Location())).Before(Day(endDate))
}

// MissionOutcome decides the terminal state for a mission being evaluated.
// It returns MissionActive when neither the boss is dead nor the time is up.
func MissionOutcome(currentHP int64, endDate, now time.Time) MissionStatus {
	if currentHP <= 0 {
		return MissionCompleted
	}
	if MissionExpired(endDate, now) {
		return MissionFailed
	}
	return MissionActive
}
