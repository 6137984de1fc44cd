package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"guild-quest-engine/engine"
	"guild-quest-engine/metrics"
	"guild-quest-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressionService struct {
	DB      *gorm.DB
	Badges  *BadgeService
	Metrics *metrics.Metrics
}

func NewProgressionService(db *gorm.DB, badges *BadgeService, m *metrics.Metrics) *ProgressionService {
	return &ProgressionService{DB: db, Badges: badges, Metrics: m}
}

// EnsureProgressRecord returns the user's progress row locked for the rest of tx,
// creating it first if needed (idempotent).
func (s *ProgressionService) EnsureProgressRecord(tx *gorm.DB, externalUserID string) (*models.UserProgress, error) {
	prog := models.UserProgress{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Title:          engine.TitleForLevel(0),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoNothing: true,
	}).Create(&prog).Error; err != nil {
		return nil, fmt.Errorf("create progress for %s: %w", externalUserID, err)
	}

	var locked models.UserProgress
	if err := forUpdate(tx).Where("external_user_id = ?", externalUserID).First(&locked).Error; err != nil {
		return nil, fmt.Errorf("load progress for %s: %w", externalUserID, err)
	}
	return &locked, nil
}

// AwardXP adds xp to prog and rewrites the cached level, title and power points
// in the same statement. prog must have been loaded through EnsureProgressRecord on tx.
func (s *ProgressionService) AwardXP(tx *gorm.DB, prog *models.UserProgress, xp int64, reason string, now time.Time) (engine.ProgressUpdate, error) {
	update := engine.ApplyXP(prog.TotalXP, xp)

	prog.TotalXP = update.NewXP
	prog.Level = update.NewLevel
	prog.Title = update.Title
	prog.PowerPoints += update.PowerPointsGained
	if update.LevelUp {
		at := now
		prog.LastLevelUpAt = &at
	}
	if err := tx.Save(prog).Error; err != nil {
		return update, fmt.Errorf("save progress for %s: %w", prog.ExternalUserID, err)
	}

	if update.LevelUp {
		s.Metrics.LevelUp()
		log.Printf("[Progression] 🎉 %s reached level %d (%s)", prog.ExternalUserID, update.NewLevel, update.Title)
	}
	log.Printf("[Progression] XP awarded: %s +%d → %d (reason: %s)", prog.ExternalUserID, update.NewXP-update.OldXP, update.NewXP, reason)

	if s.Badges != nil {
		if _, err := s.Badges.AutoAwardBadges(tx, prog); err != nil {
			return update, err
		}
	}
	return update, nil
}

// ProgressView is the read model behind GET /user/progress.
type ProgressView struct {
	UserID          string             `json:"user_id"`
	TotalXP         int64              `json:"total_xp"`
	Level           int                `json:"level"`
	Title           string             `json:"title"`
	ProgressPercent float64            `json:"progress_percent"`
	XPToNextLevel   int64              `json:"xp_to_next_level"`
	Coins           int64              `json:"coins"`
	PowerPoints     int64              `json:"power_points"`
	TasksCompleted  int64              `json:"tasks_completed"`
	MissionsWon     int64              `json:"missions_won"`
	BossesDefeated  int64              `json:"bosses_defeated"`
	Badges          []models.UserBadge `json:"badges"`
}

// GetProgress reads a user's progression. Unknown users read as a fresh level-0 record.
func (s *ProgressionService) GetProgress(ctx context.Context, externalUserID string) (*ProgressView, error) {
	var prog models.UserProgress
	err := s.DB.WithContext(ctx).Where("external_user_id = ?", externalUserID).First(&prog).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr("load progress", err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prog = models.UserProgress{ExternalUserID: externalUserID, Title: engine.TitleForLevel(0)}
	}

	badges := []models.UserBadge{}
	if err := s.DB.WithContext(ctx).Where("external_user_id = ?", externalUserID).
		Order("awarded_at ASC").Find(&badges).Error; err != nil {
		return nil, storeErr("load badges", err)
	}

	// Level is a cache; derive from XP so a stale row never misreports.
	level := engine.LevelFromTotalXP(prog.TotalXP)
	toNext := engine.TotalXPForLevel(level+1) - prog.TotalXP
	if toNext < 0 {
		toNext = 0
	}
	return &ProgressView{
		UserID:          externalUserID,
		TotalXP:         prog.TotalXP,
		Level:           level,
		Title:           engine.TitleForLevel(level),
		ProgressPercent: engine.LevelProgressPercent(prog.TotalXP, level),
		XPToNextLevel:   toNext,
		Coins:           prog.Coins,
		PowerPoints:     prog.PowerPoints,
		TasksCompleted:  prog.TotalTasksCompleted,
		MissionsWon:     prog.MissionsWon,
		BossesDefeated:  prog.BossesDefeated,
		Badges:          badges,
	}, nil
}
