// services/boss_service.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"guild-quest-engine/engine"
	"guild-quest-engine/metrics"
	"guild-quest-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BossService runs solo boss fights. Each user faces one boss at a time; the
// next one is a level higher than the last one defeated.
type BossService struct {
	DB          *gorm.DB
	Progression *ProgressionService
	Missions    *MissionService
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

func NewBossService(db *gorm.DB, progression *ProgressionService, missions *MissionService, m *metrics.Metrics) *BossService {
	return &BossService{DB: db, Progression: progression, Missions: missions, Metrics: m, Now: systemNow}
}

// SpawnBoss returns the user's current boss, creating the next one if none is alive.
func (s *BossService) SpawnBoss(ctx context.Context, userID string) (*models.Boss, error) {
	var boss models.Boss
	err := inTx(ctx, s.DB, "spawn boss", func(tx *gorm.DB) error {
		boss = models.Boss{}
		prog, err := s.Progression.EnsureProgressRecord(tx, userID)
		if err != nil {
			return err
		}
		err = tx.Where("owner_scope = ? AND owner_id = ? AND defeated = ?", models.BossScopeUser, userID, false).
			Order("created_at DESC").First(&boss).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		level := int(prog.BossesDefeated) + 1
		hp := engine.BossMaxHPForLevel(level)
		boss = models.Boss{
			ID:         uuid.NewString(),
			OwnerScope: models.BossScopeUser,
			OwnerID:    userID,
			Level:      level,
			MaxHP:      hp,
			CurrentHP:  hp,
		}
		return tx.Create(&boss).Error
	})
	if err != nil {
		return nil, err
	}
	return &boss, nil
}

// CurrentBoss returns the user's living boss.
func (s *BossService) CurrentBoss(ctx context.Context, userID string) (*models.Boss, error) {
	var boss models.Boss
	err := s.DB.WithContext(ctx).
		Where("owner_scope = ? AND owner_id = ? AND defeated = ?", models.BossScopeUser, userID, false).
		Order("created_at DESC").First(&boss).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, engine.Reject(engine.RejectNotFound, "no boss spawned")
	}
	if err != nil {
		return nil, storeErr("load boss", err)
	}
	return &boss, nil
}

// AttackResult reports one hit on a solo boss.
type AttackResult struct {
	Boss        models.Boss         `json:"boss"`
	Dealt       int64               `json:"dealt"`
	DefeatedNow bool                `json:"defeated_now"`
	CoinsEarned int64               `json:"coins_earned"`
	Mission     *ContributionResult `json:"mission,omitempty"`
}

// AttackBoss deals damage to the user's boss. Hitting a dead boss changes nothing.
// A hit on a living boss also counts as a boss hit for the user's guild mission.
func (s *BossService) AttackBoss(ctx context.Context, userID, bossID string, damage int64) (*AttackResult, error) {
	if damage <= 0 {
		return nil, engine.Reject(engine.RejectInvalidInput, "damage must be positive")
	}
	var res AttackResult
	err := inTx(ctx, s.DB, "attack boss", func(tx *gorm.DB) error {
		res = AttackResult{}
		boss := &res.Boss
		err := forUpdate(tx).Where("id = ?", bossID).First(boss).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return engine.Reject(engine.RejectNotFound, "boss %s not found", bossID)
		}
		if err != nil {
			return err
		}
		if boss.OwnerID != userID {
			return engine.Reject(engine.RejectUnauthorized, "boss belongs to another user")
		}

		enc := boss.Encounter()
		if !enc.IsAlive() {
			return nil
		}
		now := s.Now()
		oldHP := boss.CurrentHP
		hit := enc.ApplyDamage(damage, now)
		boss.ApplyEncounter(enc)
		upd := tx.Model(&models.Boss{}).
			Where("id = ? AND current_hp = ? AND defeated = ?", boss.ID, oldHP, false).
			Updates(map[string]any{
				"current_hp":  boss.CurrentHP,
				"defeated":    boss.Defeated,
				"defeated_at": boss.DefeatedAt,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return errWriteConflict
		}
		res.Dealt = hit.Dealt
		res.DefeatedNow = hit.DefeatedNow

		contrib, err := s.Missions.contributeForUser(ctx, tx, userID,
			engine.Contribution{Kind: engine.ContributionBossHit, At: now}, now)
		if err != nil {
			return err
		}
		res.Mission = contrib

		if !hit.DefeatedNow {
			return nil
		}
		prog, err := s.Progression.EnsureProgressRecord(tx, userID)
		if err != nil {
			return err
		}
		res.CoinsEarned = engine.BossCoinReward(boss.Level)
		prog.Coins += res.CoinsEarned
		prog.BossesDefeated++
		if err := tx.Save(prog).Error; err != nil {
			return err
		}
		if s.Progression.Badges != nil {
			if _, err := s.Progression.Badges.AutoAwardBadges(tx, prog); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.DefeatedNow {
		s.Metrics.BossDefeated()
		log.Printf("[Boss] 💀 %s defeated level %d boss (+%d coins)", userID, res.Boss.Level, res.CoinsEarned)
	}
	s.Missions.archiveIfClosed(ctx, res.Mission)
	return &res, nil
}
