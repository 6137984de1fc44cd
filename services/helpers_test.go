package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"guild-quest-engine/engine"
	"guild-quest-engine/metrics"
	"guild-quest-engine/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quests.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection: transactions queue the way row locks make them queue on Postgres.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db          *gorm.DB
	now         time.Time
	metrics     *metrics.Metrics
	badges      *BadgeService
	progression *ProgressionService
	tasks       *TaskService
	missions    *MissionService
	bosses      *BossService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	catalog, err := models.LoadBadgeCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	f := &fixture{
		db:      db,
		now:     time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	clock := func() time.Time { return f.now }

	f.badges = NewBadgeService(db, catalog)
	if err := f.badges.SeedCatalog(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.progression = NewProgressionService(db, f.badges, f.metrics)
	f.missions = NewMissionService(db, f.progression, nil, f.metrics)
	f.missions.Now = clock
	f.tasks = NewTaskService(db, f.progression, f.missions, f.metrics)
	f.tasks.Now = clock
	f.bosses = NewBossService(db, f.progression, f.missions, f.metrics)
	f.bosses.Now = clock
	return f
}

// guild creates a guild led by members[0] with every member active.
func (f *fixture) guild(t *testing.T, members ...string) string {
	t.Helper()
	g := models.Guild{ID: uuid.NewString(), Name: "Night Owls", LeaderID: members[0]}
	if err := f.db.Create(&g).Error; err != nil {
		t.Fatalf("create guild: %v", err)
	}
	for _, m := range members {
		gm := models.GuildMember{
			ID:             uuid.NewString(),
			GuildID:        g.ID,
			ExternalUserID: m,
			Username:       m,
			Active:         true,
			JoinedAt:       f.now,
		}
		if err := f.db.Create(&gm).Error; err != nil {
			t.Fatalf("create member %s: %v", m, err)
		}
	}
	return g.ID
}

func (f *fixture) startMission(t *testing.T, guildID, leaderID string) *models.SpecialMission {
	t.Helper()
	m, err := f.missions.StartMission(context.Background(), guildID, leaderID)
	if err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	return m
}

func (f *fixture) setBossHP(t *testing.T, missionID string, hp int64) {
	t.Helper()
	err := f.db.Model(&models.SpecialMission{}).Where("id = ?", missionID).
		Updates(map[string]any{"initial_boss_hp": hp, "current_boss_hp": hp}).Error
	if err != nil {
		t.Fatalf("set boss hp: %v", err)
	}
}

func (f *fixture) progress(t *testing.T, userID string) models.UserProgress {
	t.Helper()
	var p models.UserProgress
	if err := f.db.Where("external_user_id = ?", userID).First(&p).Error; err != nil {
		t.Fatalf("load progress %s: %v", userID, err)
	}
	return p
}

func (f *fixture) member(t *testing.T, missionID, userID string) models.SpecialMissionProgress {
	t.Helper()
	var row models.SpecialMissionProgress
	if err := f.db.Where("mission_id = ? AND user_id = ?", missionID, userID).First(&row).Error; err != nil {
		t.Fatalf("load member row %s: %v", userID, err)
	}
	return row
}

func (f *fixture) createTask(t *testing.T, owner, d, i string) *models.Task {
	t.Helper()
	task, err := f.tasks.CreateTask(context.Background(), owner,
		TaskInput{Title: d + "/" + i, Difficulty: d, Importance: i}, engine.DefaultLocale)
	if err != nil {
		t.Fatalf("CreateTask(%s, %s): %v", d, i, err)
	}
	return task
}

func wantRejection(t *testing.T, err error, kind engine.RejectionKind) {
	t.Helper()
	r, ok := engine.AsRejection(err)
	if !ok {
		t.Fatalf("err = %v, want %s rejection", err, kind)
	}
	if r.Kind != kind {
		t.Fatalf("rejection kind = %s (%s), want %s", r.Kind, r.Reason, kind)
	}
}
