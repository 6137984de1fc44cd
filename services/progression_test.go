package services

import (
	"context"
	"testing"

	"guild-quest-engine/engine"

	"gorm.io/gorm"
)

func TestAwardXPKeepsCacheInStep(t *testing.T) {
	f := newFixture(t)
	var update engine.ProgressUpdate
	err := f.db.Transaction(func(tx *gorm.DB) error {
		prog, err := f.progression.EnsureProgressRecord(tx, "u1")
		if err != nil {
			return err
		}
		update, err = f.progression.AwardXP(tx, prog, engine.TotalXPForLevel(5), "test", f.now)
		return err
	})
	if err != nil {
		t.Fatalf("AwardXP: %v", err)
	}
	if update.NewLevel != 5 || update.Title != "Apprentice" {
		t.Fatalf("update = %+v", update)
	}

	p := f.progress(t, "u1")
	if p.Level != 5 || p.Title != "Apprentice" || p.TotalXP != engine.TotalXPForLevel(5) {
		t.Fatalf("progress = %+v", p)
	}
	var wantPP int64
	for l := 1; l <= 5; l++ {
		wantPP += engine.PowerPointsForLevel(l)
	}
	if p.PowerPoints != wantPP {
		t.Fatalf("power points = %d, want %d", p.PowerPoints, wantPP)
	}

	view, err := f.progression.GetProgress(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if view.Level != 5 || view.ProgressPercent != 0 || view.XPToNextLevel != engine.XPRequiredForLevel(6) {
		t.Fatalf("view = %+v", view)
	}
	if len(view.Badges) != 1 || view.Badges[0].BadgeCode != "APPRENTICE" {
		t.Fatalf("badges = %+v", view.Badges)
	}
}

func TestEnsureProgressRecordIdempotent(t *testing.T) {
	f := newFixture(t)
	var first, second string
	for _, id := range []*string{&first, &second} {
		err := f.db.Transaction(func(tx *gorm.DB) error {
			p, err := f.progression.EnsureProgressRecord(tx, "u1")
			if err == nil {
				*id = p.ID
			}
			return err
		})
		if err != nil {
			t.Fatalf("EnsureProgressRecord: %v", err)
		}
	}
	if first == "" || first != second {
		t.Fatalf("ids = %q, %q", first, second)
	}
}

func TestGetProgressUnknownUser(t *testing.T) {
	f := newFixture(t)
	view, err := f.progression.GetProgress(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if view.Level != 0 || view.Title != "Beginner" || view.XPToNextLevel != engine.BaseLevelXP || len(view.Badges) != 0 {
		t.Fatalf("view = %+v", view)
	}
}
