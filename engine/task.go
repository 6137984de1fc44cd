package engine

import "time"

type TaskStatus string

const (
	TaskActive     TaskStatus = "active"
	TaskCompleted  TaskStatus = "completed"
	TaskIncomplete TaskStatus = "incomplete"
	TaskPaused     TaskStatus = "paused"
	TaskCancelled  TaskStatus = "cancelled"
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskActive:     {TaskCompleted, TaskIncomplete, TaskPaused, TaskCancelled},
	TaskPaused:     {TaskActive, TaskCancelled},
	TaskIncomplete: {TaskActive, TaskCancelled},
}

func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

// IsUnresolved reports whether a task still needs attention.
func (s TaskStatus) IsUnresolved() bool {
	return s == TaskActive || s == TaskIncomplete || s == TaskPaused
}

func CanTransition(from, to TaskStatus) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition validates a status change requested by callerID on a task owned by ownerID.
// Terminal tasks are reported before ownership so repeated completions read as such.
func CheckTransition(from, to TaskStatus, ownerID, callerID string) error {
	if from.IsTerminal() {
		return Reject(RejectAlreadyTerminal, "task is already %s", from)
	}
	if ownerID != callerID {
		return Reject(RejectUnauthorized, "task belongs to another user")
	}
	if !CanTransition(from, to) {
		return Reject(RejectInvalidTransition, "cannot move task from %s to %s", from, to)
	}
	return nil
}

// Completion is the immutable audit record of one completion.
type Completion struct {
	TaskID   string
	Day      time.Time
	XPEarned int64
}

func NewCompletion(taskID string, xpValue int64, now time.Time) Completion {
	return Completion{TaskID: taskID, Day: Day(now), XPEarned: xpValue}
}

// TaskTier is how a completed task counts toward a guild mission.
type TaskTier string

const (
	TierEasy  TaskTier = "easy"
	TierOther TaskTier = "other"
)

// MissionTier classifies a completed task for mission scoring. Easy-tier tasks
// that are both low difficulty and normal/important count twice.
func MissionTier(d Difficulty, i Importance) (TaskTier, int64) {
	easyDifficulty := d == DifficultyVeryEasy || d == DifficultyEasy
	easyImportance := i == ImportanceNormal || i == ImportanceImportant
	switch {
	case easyDifficulty && easyImportance:
		return TierEasy, 2
	case easyDifficulty || easyImportance:
		return TierEasy, 1
	default:
		return TierOther, 1
	}
}
