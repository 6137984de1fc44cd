// services/task_service.go
package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"guild-quest-engine/engine"
	"guild-quest-engine/metrics"
	"guild-quest-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskService struct {
	DB          *gorm.DB
	Progression *ProgressionService
	Missions    *MissionService
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

func NewTaskService(db *gorm.DB, progression *ProgressionService, missions *MissionService, m *metrics.Metrics) *TaskService {
	return &TaskService{DB: db, Progression: progression, Missions: missions, Metrics: m, Now: systemNow}
}

// TaskInput carries the editable fields of a task.
type TaskInput struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	CategoryID         string     `json:"category_id"`
	Difficulty         string     `json:"difficulty"`
	Importance         string     `json:"importance"`
	RecurrenceInterval int        `json:"recurrence_interval"`
	RecurrenceUnit     string     `json:"recurrence_unit"`
	StartDate          *time.Time `json:"start_date"`
	EndDate            *time.Time `json:"end_date"`
}

func (in TaskInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return engine.Reject(engine.RejectInvalidInput, "title is required")
	}
	if in.RecurrenceInterval < 0 {
		return engine.Reject(engine.RejectInvalidInput, "recurrence interval cannot be negative")
	}
	switch in.RecurrenceUnit {
	case "", models.RecurrenceDay, models.RecurrenceWeek, models.RecurrenceMonth:
	default:
		return engine.Reject(engine.RejectInvalidInput, "unknown recurrence unit %q", in.RecurrenceUnit)
	}
	if in.RecurrenceInterval > 0 && in.RecurrenceUnit == "" {
		return engine.Reject(engine.RejectInvalidInput, "recurrence unit is required with an interval")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return engine.Reject(engine.RejectInvalidInput, "end date is before start date")
	}
	return nil
}

func (in TaskInput) apply(t *models.Task) {
	t.Title = strings.TrimSpace(in.Title)
	t.Description = in.Description
	t.CategoryID = in.CategoryID
	t.Difficulty = engine.ParseDifficulty(in.Difficulty)
	t.Importance = engine.ParseImportance(in.Importance)
	t.XPValue = engine.TaskXP(t.Difficulty, t.Importance)
	t.RecurrenceInterval = in.RecurrenceInterval
	t.RecurrenceUnit = in.RecurrenceUnit
	t.StartDate = in.StartDate
	t.EndDate = in.EndDate
}

// admit runs the quota rules for class (d, i) on day. The caller's progress row
// must already be locked on tx so concurrent submissions queue behind it.
func (s *TaskService) admit(ctx context.Context, tx *gorm.DB, userID, excludeTaskID string, d engine.Difficulty, i engine.Importance, day time.Time, locale engine.Locale) error {
	ledger := engine.NewQuotaLedger(taskCounter{tx: tx, exclude: excludeTaskID})
	decision, err := ledger.Admit(ctx, userID, d, i, day, locale.FirstWeekday)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		s.Metrics.QuotaRejected(decision.Rule)
		log.Printf("[Tasks] ⛔ quota %s hit for %s (%d/%d)", decision.Rule, userID, decision.Used, decision.Limit)
		return engine.Reject(engine.RejectQuotaExceeded, "%s", decision.Reason)
	}
	return nil
}

// CreateTask admits and stores a new task. A quota refusal leaves nothing behind.
func (s *TaskService) CreateTask(ctx context.Context, ownerID string, in TaskInput, locale engine.Locale) (*models.Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	today := locale.Today(s.Now())

	task := models.Task{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Status:    engine.TaskActive,
		CreatedOn: engine.DayKey(today),
	}
	in.apply(&task)

	err := inTx(ctx, s.DB, "create task", func(tx *gorm.DB) error {
		if _, err := s.Progression.EnsureProgressRecord(tx, ownerID); err != nil {
			return err
		}
		if err := s.admit(ctx, tx, ownerID, "", task.Difficulty, task.Importance, today, locale); err != nil {
			return err
		}
		return tx.Create(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask edits a non-terminal task. Changing its class re-derives the XP
// value and re-checks quota against the day the task was created on.
func (s *TaskService) UpdateTask(ctx context.Context, callerID, taskID string, in TaskInput, locale engine.Locale) (*models.Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var task models.Task
	err := inTx(ctx, s.DB, "update task", func(tx *gorm.DB) error {
		if err := loadTaskForUpdate(tx, taskID, &task); err != nil {
			return err
		}
		if task.Status.IsTerminal() {
			return engine.Reject(engine.RejectAlreadyTerminal, "task is already %s", task.Status)
		}
		if task.OwnerID != callerID {
			return engine.Reject(engine.RejectUnauthorized, "task belongs to another user")
		}

		d, i := engine.ParseDifficulty(in.Difficulty), engine.ParseImportance(in.Importance)
		if d != task.Difficulty || i != task.Importance {
			if _, err := s.Progression.EnsureProgressRecord(tx, callerID); err != nil {
				return err
			}
			day, err := locale.ParseDay(task.CreatedOn)
			if err != nil {
				return err
			}
			if err := s.admit(ctx, tx, callerID, task.ID, d, i, day, locale); err != nil {
				return err
			}
		}
		in.apply(&task)
		return tx.Save(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// CompletionResult is what a successful completion reports back.
type CompletionResult struct {
	Task       models.Task           `json:"task"`
	Completion models.TaskCompletion `json:"completion"`
	XPEarned   int64                 `json:"xp_earned"`
	Progress   engine.ProgressUpdate `json:"progress"`
	Mission    *ContributionResult   `json:"mission,omitempty"`
}

// CompleteTask moves a task to completed, writes its completion record and
// grants its frozen XP value, all in one transaction.
func (s *TaskService) CompleteTask(ctx context.Context, callerID, taskID string, locale engine.Locale) (*CompletionResult, error) {
	var res CompletionResult
	err := inTx(ctx, s.DB, "complete task", func(tx *gorm.DB) error {
		res = CompletionResult{}
		task := &res.Task
		if err := loadTaskForUpdate(tx, taskID, task); err != nil {
			return err
		}
		if err := engine.CheckTransition(task.Status, engine.TaskCompleted, task.OwnerID, callerID); err != nil {
			return err
		}

		now := s.Now()
		c := engine.NewCompletion(task.ID, task.XPValue, locale.Local(now))
		task.Status = engine.TaskCompleted
		task.CompletedAt = &now
		if err := tx.Save(task).Error; err != nil {
			return err
		}
		res.Completion = models.TaskCompletion{
			ID:             uuid.NewString(),
			TaskID:         c.TaskID,
			UserID:         task.OwnerID,
			CompletionDate: engine.DayKey(c.Day),
			XPEarned:       c.XPEarned,
		}
		if err := tx.Create(&res.Completion).Error; err != nil {
			return err
		}

		// Mission row before progress row, the same order mission close uses.
		if s.Missions != nil {
			tier, units := engine.MissionTier(task.Difficulty, task.Importance)
			kind := engine.ContributionOtherTask
			if tier == engine.TierEasy {
				kind = engine.ContributionEasyTask
			}
			contrib, err := s.Missions.contributeForUser(ctx, tx, task.OwnerID,
				engine.Contribution{Kind: kind, Amount: units, At: locale.Local(now)}, now)
			if err != nil {
				return err
			}
			res.Mission = contrib
		}

		prog, err := s.Progression.EnsureProgressRecord(tx, task.OwnerID)
		if err != nil {
			return err
		}
		prog.TotalTasksCompleted++
		update, err := s.Progression.AwardXP(tx, prog, c.XPEarned, "task_completed", now)
		if err != nil {
			return err
		}
		res.XPEarned = c.XPEarned
		res.Progress = update
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.TaskCompleted()
	s.Missions.archiveIfClosed(ctx, res.Mission)
	return &res, nil
}

func (s *TaskService) CancelTask(ctx context.Context, callerID, taskID string) (*models.Task, error) {
	return s.transition(ctx, callerID, taskID, engine.TaskCancelled)
}

func (s *TaskService) PauseTask(ctx context.Context, callerID, taskID string) (*models.Task, error) {
	return s.transition(ctx, callerID, taskID, engine.TaskPaused)
}

func (s *TaskService) ResumeTask(ctx context.Context, callerID, taskID string) (*models.Task, error) {
	return s.transition(ctx, callerID, taskID, engine.TaskActive)
}

func (s *TaskService) MarkIncomplete(ctx context.Context, callerID, taskID string) (*models.Task, error) {
	return s.transition(ctx, callerID, taskID, engine.TaskIncomplete)
}

// transition applies a status change that has no side effects beyond the status itself.
func (s *TaskService) transition(ctx context.Context, callerID, taskID string, to engine.TaskStatus) (*models.Task, error) {
	var task models.Task
	err := inTx(ctx, s.DB, "update task status", func(tx *gorm.DB) error {
		if err := loadTaskForUpdate(tx, taskID, &task); err != nil {
			return err
		}
		if err := engine.CheckTransition(task.Status, to, task.OwnerID, callerID); err != nil {
			return err
		}
		task.Status = to
		return tx.Model(&task).Update("status", string(to)).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns the caller's tasks, newest first, optionally filtered by status.
func (s *TaskService) ListTasks(ctx context.Context, ownerID string, status string) ([]models.Task, error) {
	q := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	tasks := []models.Task{}
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, storeErr("list tasks", err)
	}
	return tasks, nil
}

// QuotaUsage reports every rule's consumption for today, this week and this month.
func (s *TaskService) QuotaUsage(ctx context.Context, userID string, locale engine.Locale) ([]engine.QuotaUsage, error) {
	ledger := engine.NewQuotaLedger(taskCounter{tx: s.DB})
	usage, err := ledger.Usage(ctx, userID, locale.Today(s.Now()), locale.FirstWeekday)
	if err != nil {
		return nil, storeErr("quota usage", err)
	}
	return usage, nil
}

func loadTaskForUpdate(tx *gorm.DB, taskID string, task *models.Task) error {
	err := forUpdate(tx).Where("id = ?", taskID).First(task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.Reject(engine.RejectNotFound, "task %s not found", taskID)
	}
	return err
}
