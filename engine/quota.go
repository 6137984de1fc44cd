package engine

import (
	"context"
	"fmt"
	"time"
)

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// QuotaCounter supplies pre-aggregated task counts for a window.
// Implementations must read from the same snapshot the new task will be inserted into.
type QuotaCounter interface {
	CountTasksByDifficultyImportance(ctx context.Context, userID string, d Difficulty, i Importance, w Window) (int64, error)
	CountExtremeTasks(ctx context.Context, userID string, w Window) (int64, error)
	CountSpecialTasks(ctx context.Context, userID string, w Window) (int64, error)
}

// QuotaRule is one rate limit on a class of tasks.
type QuotaRule struct {
	Name       string
	Limit      int64
	Period     Period
	Difficulty Difficulty // empty = any
	Importance Importance // empty = any
}

var (
	RuleVeryEasyNormal = QuotaRule{Name: "very_easy_normal_daily", Limit: 5, Period: PeriodDay, Difficulty: DifficultyVeryEasy, Importance: ImportanceNormal}
	RuleEasyImportant  = QuotaRule{Name: "easy_important_daily", Limit: 5, Period: PeriodDay, Difficulty: DifficultyEasy, Importance: ImportanceImportant}
	RuleHardVeryImp    = QuotaRule{Name: "hard_very_important_daily", Limit: 2, Period: PeriodDay, Difficulty: DifficultyHard, Importance: ImportanceVeryImportant}
	RuleExtremeWeekly  = QuotaRule{Name: "extreme_weekly", Limit: 1, Period: PeriodWeek, Difficulty: DifficultyExtreme}
	RuleSpecialMonthly = QuotaRule{Name: "special_monthly", Limit: 1, Period: PeriodMonth, Importance: ImportanceSpecial}
)

// AllQuotaRules lists every rule in evaluation order.
var AllQuotaRules = []QuotaRule{RuleVeryEasyNormal, RuleEasyImportant, RuleHardVeryImp, RuleExtremeWeekly, RuleSpecialMonthly}

// ApplicableRules returns the rules a (difficulty, importance) pair is subject to.
// Special importance skips the daily pair rules; extreme difficulty is checked
// weekly even when the task is also special.
func ApplicableRules(d Difficulty, i Importance) []QuotaRule {
	var rules []QuotaRule
	if i == ImportanceSpecial {
		rules = append(rules, RuleSpecialMonthly)
	} else {
		for _, r := range []QuotaRule{RuleVeryEasyNormal, RuleEasyImportant, RuleHardVeryImp} {
			if r.Difficulty == d && r.Importance == i {
				rules = append(rules, r)
			}
		}
	}
	if d == DifficultyExtreme {
		rules = append(rules, RuleExtremeWeekly)
	}
	return rules
}

func (r QuotaRule) Window(day time.Time, firstWeekday time.Weekday) Window {
	switch r.Period {
	case PeriodWeek:
		return WeekWindow(day, firstWeekday)
	case PeriodMonth:
		return MonthWindow(day)
	default:
		return DayWindow(day)
	}
}

// QuotaDecision is the outcome of an admission check. A refusal is not an error.
type QuotaDecision struct {
	Allowed bool
	Rule    string
	Limit   int64
	Used    int64
	Window  Window
	Reason  string
}

// QuotaUsage reports consumption of one rule.
type QuotaUsage struct {
	Rule      QuotaRule
	Window    Window
	Used      int64
	Remaining int64
}

type QuotaLedger struct {
	counter QuotaCounter
}

func NewQuotaLedger(counter QuotaCounter) *QuotaLedger {
	return &QuotaLedger{counter: counter}
}

func (l *QuotaLedger) count(ctx context.Context, userID string, r QuotaRule, w Window) (int64, error) {
	switch {
	case r.Period == PeriodMonth && r.Importance == ImportanceSpecial:
		return l.counter.CountSpecialTasks(ctx, userID, w)
	case r.Period == PeriodWeek && r.Difficulty == DifficultyExtreme:
		return l.counter.CountExtremeTasks(ctx, userID, w)
	default:
		return l.counter.CountTasksByDifficultyImportance(ctx, userID, r.Difficulty, r.Importance, w)
	}
}

// Admit decides whether a new task of class (d, i) created on day fits every
// applicable rule. Any single violation rejects.
func (l *QuotaLedger) Admit(ctx context.Context, userID string, d Difficulty, i Importance, day time.Time, firstWeekday time.Weekday) (QuotaDecision, error) {
	for _, r := range ApplicableRules(d, i) {
		w := r.Window(day, firstWeekday)
		used, err := l.count(ctx, userID, r, w)
		if err != nil {
			return QuotaDecision{}, err
		}
		if used >= r.Limit {
			return QuotaDecision{
				Allowed: false,
				Rule:    r.Name,
				Limit:   r.Limit,
				Used:    used,
				Window:  w,
				Reason:  rejectionReason(r, d, i),
			}, nil
		}
	}
	return QuotaDecision{Allowed: true}, nil
}

// Usage reports every rule's consumption around day.
func (l *QuotaLedger) Usage(ctx context.Context, userID string, day time.Time, firstWeekday time.Weekday) ([]QuotaUsage, error) {
	out := make([]QuotaUsage, 0, len(AllQuotaRules))
	for _, r := range AllQuotaRules {
		w := r.Window(day, firstWeekday)
		used, err := l.count(ctx, userID, r, w)
		if err != nil {
			return nil, err
		}
		remaining := r.Limit - used
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, QuotaUsage{Rule: r, Window: w, Used: used, Remaining: remaining})
	}
	return out, nil
}

func rejectionReason(r QuotaRule, d Difficulty, i Importance) string {
	var period string
	switch r.Period {
	case PeriodWeek:
		period = "this week"
	case PeriodMonth:
		period = "this month"
	default:
		period = "today"
	}
	switch {
	case r.Importance == ImportanceSpecial:
		return fmt.Sprintf("only %d special task allowed %s", r.Limit, period)
	case r.Difficulty == DifficultyExtreme && r.Importance == "":
		return fmt.Sprintf("only %d extreme task allowed %s", r.Limit, period)
	default:
		return fmt.Sprintf("only %d %s/%s tasks allowed %s", r.Limit, d, i, period)
	}
}
