// services/mission_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"guild-quest-engine/engine"
	"guild-quest-engine/metrics"
	"guild-quest-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportArchiver stores the final scoreboard of a closed mission.
type ReportArchiver interface {
	ArchiveMissionReport(ctx context.Context, guildName, missionID string, report []byte) (string, error)
}

type MissionService struct {
	DB          *gorm.DB
	Progression *ProgressionService
	Archiver    ReportArchiver
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

func NewMissionService(db *gorm.DB, progression *ProgressionService, archiver ReportArchiver, m *metrics.Metrics) *MissionService {
	return &MissionService{DB: db, Progression: progression, Archiver: archiver, Metrics: m, Now: systemNow}
}

// ContributionResult reports what one contribution event did to a mission.
// Accepted is false when the mission was already closed and the event was dropped.
type ContributionResult struct {
	MissionID     string                  `json:"mission_id"`
	Kind          engine.ContributionKind `json:"kind"`
	Accepted      bool                    `json:"accepted"`
	Damage        int64                   `json:"damage"`
	CurrentBossHP int64                   `json:"current_boss_hp"`
	Status        engine.MissionStatus    `json:"status"`

	closed bool
}

// StartMission opens a 14-day mission for a guild. Boss HP scales with the
// guild's active roster. Only the leader may start one, and only one may run at a time.
func (s *MissionService) StartMission(ctx context.Context, guildID, leaderID string) (*models.SpecialMission, error) {
	var mission models.SpecialMission
	var closedPrev string
	err := inTx(ctx, s.DB, "start mission", func(tx *gorm.DB) error {
		closedPrev = ""
		var guild models.Guild
		if err := forUpdate(tx).Where("id = ?", guildID).First(&guild).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return engine.Reject(engine.RejectNotFound, "guild %s not found", guildID)
			}
			return err
		}
		if guild.LeaderID != leaderID {
			return engine.Reject(engine.RejectUnauthorized, "only the guild leader can start a mission")
		}

		now := s.Now()
		var current models.SpecialMission
		err := forUpdate(tx).Where("guild_id = ? AND status = ?", guildID, string(engine.MissionActive)).First(&current).Error
		switch {
		case err == nil:
			closed, err := s.evaluate(ctx, tx, &current, now)
			if err != nil {
				return err
			}
			if !closed {
				return engine.Reject(engine.RejectConflict, "guild already has an active mission until %s", engine.DayKey(current.EndDate))
			}
			closedPrev = current.ID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		members, err := activeMembers(tx, guildID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return engine.Reject(engine.RejectInvalidInput, "guild has no active members")
		}

		start := engine.Day(now.UTC())
		hp := engine.MissionBossHP(len(members))
		mission = models.SpecialMission{
			ID:            uuid.NewString(),
			GuildID:       guildID,
			LeaderID:      leaderID,
			StartDate:     start,
			EndDate:       engine.MissionEndDate(start),
			InitialBossHP: hp,
			CurrentBossHP: hp,
			Status:        engine.MissionActive,
		}
		return tx.Create(&mission).Error
	})
	if err != nil {
		return nil, err
	}
	if closedPrev != "" {
		s.archive(ctx, closedPrev)
	}
	log.Printf("[MISSION] ⚔️ Guild %s started mission %s (boss HP %d, ends %s)",
		guildID, mission.ID, mission.InitialBossHP, engine.DayKey(mission.EndDate))
	return &mission, nil
}

// RecordContribution applies one member event to a mission. Events arriving after
// the mission closed are dropped without error.
func (s *MissionService) RecordContribution(ctx context.Context, missionID, userID string, kind engine.ContributionKind, amount int64, locale engine.Locale) (*ContributionResult, error) {
	if amount < 0 {
		return nil, engine.Reject(engine.RejectInvalidInput, "amount cannot be negative")
	}
	if kind == engine.ContributionDirectAttack && amount == 0 {
		return nil, engine.Reject(engine.RejectInvalidInput, "attack amount must be positive")
	}
	if kind != engine.ContributionDirectAttack && amount != 0 {
		return nil, engine.Reject(engine.RejectInvalidInput, "amount is only accepted for %s", engine.ContributionDirectAttack)
	}

	var res *ContributionResult
	err := inTx(ctx, s.DB, "record contribution", func(tx *gorm.DB) error {
		var m models.SpecialMission
		if err := lockMission(tx, missionID, &m); err != nil {
			return err
		}
		if !m.Status.IsTerminal() {
			ok, err := isActiveMember(tx, m.GuildID, userID)
			if err != nil {
				return err
			}
			if !ok {
				return engine.Reject(engine.RejectUnauthorized, "user is not an active member of this guild")
			}
		}
		now := s.Now()
		r, err := s.applyContribution(ctx, tx, &m, userID,
			engine.Contribution{Kind: kind, Amount: amount, At: locale.Local(now)}, now)
		res = r
		return err
	})
	if err != nil {
		return nil, err
	}
	s.archiveIfClosed(ctx, res)
	return res, nil
}

// RecordShopPurchase stores a purchase mirrored from the shop service. A purchase
// id seen before is ignored; a new one counts toward the buyer's active mission.
func (s *MissionService) RecordShopPurchase(ctx context.Context, p models.ShopPurchase) (bool, *ContributionResult, error) {
	var inserted bool
	var res *ContributionResult
	err := inTx(ctx, s.DB, "record shop purchase", func(tx *gorm.DB) error {
		inserted, res = false, nil
		row := p
		created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if created.Error != nil {
			return created.Error
		}
		if created.RowsAffected == 0 {
			return nil
		}
		inserted = true
		r, err := s.contributeForUser(ctx, tx, p.UserID,
			engine.Contribution{Kind: engine.ContributionShopPurchase, At: p.PurchasedAt}, s.Now())
		res = r
		return err
	})
	if err != nil {
		return false, nil, err
	}
	s.archiveIfClosed(ctx, res)
	return inserted, res, nil
}

// EvaluateMissionExpiry closes the mission if its boss is dead or its end date
// has passed. It is safe to call repeatedly.
func (s *MissionService) EvaluateMissionExpiry(ctx context.Context, missionID string) (*models.SpecialMission, error) {
	var m models.SpecialMission
	var closed bool
	err := inTx(ctx, s.DB, "evaluate mission", func(tx *gorm.DB) error {
		m = models.SpecialMission{}
		if err := lockMission(tx, missionID, &m); err != nil {
			return err
		}
		var err error
		closed, err = s.evaluate(ctx, tx, &m, s.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if closed {
		s.archive(ctx, m.ID)
	}
	return &m, nil
}

// ExpireDueMissions evaluates every ACTIVE mission whose end date has passed.
func (s *MissionService) ExpireDueMissions(ctx context.Context) (int, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.SpecialMission{}).
		Where("status = ? AND end_date <= ?", string(engine.MissionActive), s.Now().UTC()).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, storeErr("list due missions", err)
	}
	closed := 0
	for _, id := range ids {
		m, err := s.EvaluateMissionExpiry(ctx, id)
		if err != nil {
			log.Printf("[Scheduler] ❌ Failed to evaluate mission %s: %v", id, err)
			continue
		}
		if m.Status.IsTerminal() {
			closed++
		}
	}
	return closed, nil
}

// Scoreboard is a mission with its member rows, strongest contributor first.
type Scoreboard struct {
	Mission       *models.SpecialMission `json:"mission"`
	HPPercentage  float64                `json:"hp_percentage"`
	DaysRemaining int                    `json:"days_remaining"`
}

// GetScoreboard evaluates expiry lazily, then returns the mission and its members.
func (s *MissionService) GetScoreboard(ctx context.Context, missionID string) (*Scoreboard, error) {
	m, err := s.EvaluateMissionExpiry(ctx, missionID)
	if err != nil {
		return nil, err
	}
	members := []models.SpecialMissionProgress{}
	if err := s.DB.WithContext(ctx).Where("mission_id = ?", m.ID).
		Order("total_damage_dealt DESC, user_id ASC").Find(&members).Error; err != nil {
		return nil, storeErr("load scoreboard", err)
	}
	m.Members = members

	remaining := 0
	if !m.Status.IsTerminal() {
		today := engine.Day(s.Now().UTC())
		remaining = int(engine.Day(m.EndDate.UTC()).Sub(today).Hours() / 24)
		if remaining < 0 {
			remaining = 0
		}
	}
	enc := m.Encounter()
	return &Scoreboard{Mission: m, HPPercentage: enc.HPPercentage(), DaysRemaining: remaining}, nil
}

// ActiveMissionForUser finds the running mission of the user's guild.
func (s *MissionService) ActiveMissionForUser(ctx context.Context, userID string) (*models.SpecialMission, error) {
	var member models.GuildMember
	err := s.DB.WithContext(ctx).Where("external_user_id = ? AND active = ?", userID, true).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, engine.Reject(engine.RejectNotFound, "user is not in a guild")
	}
	if err != nil {
		return nil, storeErr("load membership", err)
	}
	var m models.SpecialMission
	err = s.DB.WithContext(ctx).Where("guild_id = ? AND status = ?", member.GuildID, string(engine.MissionActive)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, engine.Reject(engine.RejectNotFound, "guild has no active mission")
	}
	if err != nil {
		return nil, storeErr("load mission", err)
	}
	return &m, nil
}

// contributeForUser routes c to the active mission of userID's guild, if any.
// It runs on the caller's transaction.
func (s *MissionService) contributeForUser(ctx context.Context, tx *gorm.DB, userID string, c engine.Contribution, now time.Time) (*ContributionResult, error) {
	if s == nil {
		return nil, nil
	}
	var member models.GuildMember
	err := tx.Where("external_user_id = ? AND active = ?", userID, true).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m models.SpecialMission
	err = forUpdate(tx).Where("guild_id = ? AND status = ?", member.GuildID, string(engine.MissionActive)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.At.Before(m.StartDate) {
		log.Printf("[MISSION] %s from %s at %s predates mission %s, not counted", c.Kind, userID, c.At.Format(time.RFC3339), m.ID)
		return nil, nil
	}
	return s.applyContribution(ctx, tx, &m, userID, c, now)
}

// applyContribution expects m to be locked on tx.
func (s *MissionService) applyContribution(ctx context.Context, tx *gorm.DB, m *models.SpecialMission, userID string, c engine.Contribution, now time.Time) (*ContributionResult, error) {
	res := &ContributionResult{MissionID: m.ID, Kind: c.Kind}

	closed, err := s.evaluate(ctx, tx, m, now)
	if err != nil {
		return nil, err
	}
	res.closed = closed
	if m.Status.IsTerminal() {
		res.Status, res.CurrentBossHP = m.Status, m.CurrentBossHP
		s.Metrics.Contribution(string(c.Kind), "dropped")
		log.Printf("[MISSION] late %s from %s dropped: mission %s is %s", c.Kind, userID, m.ID, m.Status)
		return res, nil
	}

	row, err := memberRow(tx, m.ID, userID)
	if err != nil {
		return nil, err
	}
	tally := row.Tally()
	damage := tally.Record(c)

	oldHP := m.CurrentBossHP
	enc := m.Encounter()
	hit := enc.ApplyDamage(damage, now)
	tally.TotalDamageDealt += hit.Dealt
	row.ApplyTally(tally)
	if err := tx.Save(row).Error; err != nil {
		return nil, err
	}

	if hit.Dealt > 0 || hit.DefeatedNow {
		m.ApplyEncounter(enc)
		if err := writeBossHP(tx, m, oldHP, map[string]any{
			"current_boss_hp":  m.CurrentBossHP,
			"boss_defeated_at": m.BossDefeatedAt,
		}); err != nil {
			if errors.Is(err, errWriteConflict) {
				s.Metrics.DamageConflict()
			}
			return nil, err
		}
	}
	if hit.DefeatedNow {
		log.Printf("[MISSION] 💥 Boss of mission %s defeated by %s", m.ID, userID)
		if err := s.close(ctx, tx, m, now); err != nil {
			return nil, err
		}
		res.closed = true
	}

	res.Accepted = true
	res.Damage = hit.Dealt
	res.CurrentBossHP = m.CurrentBossHP
	res.Status = m.Status
	s.Metrics.Contribution(string(c.Kind), "accepted")
	s.Metrics.Damage(hit.Dealt)
	return res, nil
}

// evaluate closes m when its boss is dead or its time is up, and reports whether it did.
func (s *MissionService) evaluate(ctx context.Context, tx *gorm.DB, m *models.SpecialMission, now time.Time) (bool, error) {
	if m.Status.IsTerminal() {
		return false, nil
	}
	if m.CurrentBossHP > 0 && !engine.MissionExpired(m.EndDate.UTC(), now.UTC()) {
		return false, nil
	}
	return true, s.close(ctx, tx, m, now)
}

// close settles a mission. The outcome rests on the boss HP as it stands; the
// unresolved-tasks flag is only recorded on members who already have a row.
func (s *MissionService) close(ctx context.Context, tx *gorm.DB, m *models.SpecialMission, now time.Time) error {
	status := engine.MissionOutcome(m.CurrentBossHP, m.EndDate.UTC(), now.UTC())
	if !status.IsTerminal() {
		return nil
	}
	members, err := activeMembers(tx, m.GuildID)
	if err != nil {
		return err
	}

	closedAt := now
	m.Status = status
	m.Successful = status == engine.MissionCompleted
	m.ClosedAt = &closedAt
	if err := writeBossHP(tx, m, m.CurrentBossHP, map[string]any{
		"status":     string(m.Status),
		"successful": m.Successful,
		"closed_at":  m.ClosedAt,
	}); err != nil {
		return err
	}

	for _, gm := range members {
		row, err := existingMemberRow(tx, m.ID, gm.ExternalUserID)
		if err != nil {
			return err
		}
		if row != nil {
			clean, err := noUnresolvedTasks(tx, gm.ExternalUserID, m)
			if err != nil {
				return err
			}
			row.HasNoUnresolvedTasks = clean
		}
		if m.Successful {
			prog, err := s.Progression.EnsureProgressRecord(tx, gm.ExternalUserID)
			if err != nil {
				return err
			}
			prog.MissionsWon++
			prog.Coins += engine.MissionCoinReward
			if _, err := s.Progression.AwardXP(tx, prog, engine.MissionCompletionXP, "mission_completed", now); err != nil {
				return err
			}
			if row != nil {
				row.RewardXP = engine.MissionCompletionXP
			}
		}
		if row != nil {
			if err := tx.Save(row).Error; err != nil {
				return err
			}
		}
	}

	s.Metrics.MissionClosed(string(m.Status))
	if m.Successful {
		log.Printf("[MISSION] ✅ Mission %s COMPLETED (%d members rewarded)", m.ID, len(members))
	} else {
		log.Printf("[MISSION] ❌ Mission %s FAILED with %d HP left", m.ID, m.CurrentBossHP)
	}
	return nil
}

// writeBossHP updates the mission only if nobody changed its HP since it was read.
func writeBossHP(tx *gorm.DB, m *models.SpecialMission, oldHP int64, cols map[string]any) error {
	res := tx.Model(&models.SpecialMission{}).
		Where("id = ? AND status = ? AND current_boss_hp = ?", m.ID, string(engine.MissionActive), oldHP).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errWriteConflict
	}
	return nil
}

func lockMission(tx *gorm.DB, missionID string, m *models.SpecialMission) error {
	err := forUpdate(tx).Where("id = ?", missionID).First(m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.Reject(engine.RejectNotFound, "mission %s not found", missionID)
	}
	return err
}

func activeMembers(tx *gorm.DB, guildID string) ([]models.GuildMember, error) {
	var members []models.GuildMember
	err := tx.Where("guild_id = ? AND active = ?", guildID, true).
		Order("external_user_id ASC").Find(&members).Error
	return members, err
}

func isActiveMember(tx *gorm.DB, guildID, userID string) (bool, error) {
	var n int64
	err := tx.Model(&models.GuildMember{}).
		Where("guild_id = ? AND external_user_id = ? AND active = ?", guildID, userID, true).
		Count(&n).Error
	return n > 0, err
}

// memberRow loads the member's scoreboard row, creating it on first attribution.
func memberRow(tx *gorm.DB, missionID, userID string) (*models.SpecialMissionProgress, error) {
	fresh := models.SpecialMissionProgress{
		ID:        uuid.NewString(),
		MissionID: missionID,
		UserID:    userID,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mission_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, err
	}
	var row models.SpecialMissionProgress
	if err := tx.Where("mission_id = ? AND user_id = ?", missionID, userID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// existingMemberRow returns nil when the member was never attributed an event.
func existingMemberRow(tx *gorm.DB, missionID, userID string) (*models.SpecialMissionProgress, error) {
	var row models.SpecialMissionProgress
	err := tx.Where("mission_id = ? AND user_id = ?", missionID, userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// noUnresolvedTasks reports whether the user left no active, incomplete or
// paused task created during the mission window.
func noUnresolvedTasks(tx *gorm.DB, userID string, m *models.SpecialMission) (bool, error) {
	var n int64
	err := tx.Model(&models.Task{}).
		Where("owner_id = ? AND status IN ? AND created_on BETWEEN ? AND ?", userID,
			[]string{string(engine.TaskActive), string(engine.TaskIncomplete), string(engine.TaskPaused)},
			engine.DayKey(m.StartDate.UTC()), engine.DayKey(m.EndDate.UTC())).
		Count(&n).Error
	return n == 0, err
}

func (s *MissionService) archiveIfClosed(ctx context.Context, res *ContributionResult) {
	if s == nil || res == nil || !res.closed {
		return
	}
	s.archive(ctx, res.MissionID)
}

// archive uploads the final scoreboard. Failures are logged; the mission is already settled.
func (s *MissionService) archive(ctx context.Context, missionID string) {
	if s.Archiver == nil {
		return
	}
	var m models.SpecialMission
	if err := s.DB.WithContext(ctx).Preload("Members").Where("id = ?", missionID).First(&m).Error; err != nil {
		log.Printf("[MISSION] ⚠️ archive: load mission %s: %v", missionID, err)
		return
	}
	var guild models.Guild
	if err := s.DB.WithContext(ctx).Where("id = ?", m.GuildID).First(&guild).Error; err != nil {
		guild.Name = m.GuildID
	}
	report, err := json.Marshal(struct {
		Guild   string                 `json:"guild"`
		Mission *models.SpecialMission `json:"mission"`
	}{Guild: guild.Name, Mission: &m})
	if err != nil {
		log.Printf("[MISSION] ⚠️ archive: encode mission %s: %v", missionID, err)
		return
	}
	url, err := s.Archiver.ArchiveMissionReport(ctx, guild.Name, m.ID, report)
	if err != nil {
		log.Printf("[MISSION] ⚠️ archive: upload mission %s: %v", missionID, err)
		return
	}
	log.Printf("[MISSION] 📦 Mission %s report archived: %s", missionID, url)
}
