package services

import (
	"context"
	"testing"

	"guild-quest-engine/engine"
	"guild-quest-engine/models"
)

func TestAttackBossDefeatsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	boss, err := f.bosses.SpawnBoss(ctx, "u1")
	if err != nil {
		t.Fatalf("SpawnBoss: %v", err)
	}
	if boss.Level != 1 || boss.MaxHP != 200 || boss.CurrentHP != 200 {
		t.Fatalf("boss = %+v", boss)
	}
	same, err := f.bosses.SpawnBoss(ctx, "u1")
	if err != nil || same.ID != boss.ID {
		t.Fatalf("second spawn should return the living boss, got %+v, %v", same, err)
	}

	res, err := f.bosses.AttackBoss(ctx, "u1", boss.ID, 150)
	if err != nil {
		t.Fatalf("AttackBoss: %v", err)
	}
	if res.Dealt != 150 || res.DefeatedNow || res.Boss.CurrentHP != 50 {
		t.Fatalf("first hit = %+v", res)
	}

	res, err = f.bosses.AttackBoss(ctx, "u1", boss.ID, 100)
	if err != nil {
		t.Fatalf("AttackBoss: %v", err)
	}
	if res.Dealt != 50 || !res.DefeatedNow || res.Boss.CurrentHP != 0 || !res.Boss.Defeated {
		t.Fatalf("killing hit = %+v", res)
	}
	if res.CoinsEarned != 200 {
		t.Fatalf("coins = %d", res.CoinsEarned)
	}
	defeatedAt := *res.Boss.DefeatedAt

	f.now = f.now.Add(1)
	res, err = f.bosses.AttackBoss(ctx, "u1", boss.ID, 100)
	if err != nil {
		t.Fatalf("AttackBoss on dead boss: %v", err)
	}
	if res.Dealt != 0 || res.DefeatedNow || res.Boss.CurrentHP != 0 || !res.Boss.DefeatedAt.Equal(defeatedAt) {
		t.Fatalf("hit on dead boss = %+v", res)
	}

	p := f.progress(t, "u1")
	if p.BossesDefeated != 1 || p.Coins != 200 {
		t.Fatalf("progress = %+v", p)
	}
	var n int64
	f.db.Model(&models.UserBadge{}).Where("external_user_id = ? AND badge_code = ?", "u1", "BOSS_SLAYER").Count(&n)
	if n != 1 {
		t.Fatalf("BOSS_SLAYER badges = %d", n)
	}

	next, err := f.bosses.SpawnBoss(ctx, "u1")
	if err != nil {
		t.Fatalf("SpawnBoss: %v", err)
	}
	if next.Level != 2 || next.MaxHP != engine.XPRequiredForLevel(2) {
		t.Fatalf("next boss = %+v", next)
	}
}

func TestAttackBossChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss, err := f.bosses.SpawnBoss(ctx, "u1")
	if err != nil {
		t.Fatalf("SpawnBoss: %v", err)
	}

	_, err = f.bosses.AttackBoss(ctx, "u2", boss.ID, 10)
	wantRejection(t, err, engine.RejectUnauthorized)
	_, err = f.bosses.AttackBoss(ctx, "u1", boss.ID, 0)
	wantRejection(t, err, engine.RejectInvalidInput)
	_, err = f.bosses.AttackBoss(ctx, "u1", "missing", 10)
	wantRejection(t, err, engine.RejectNotFound)

	_, err = f.bosses.CurrentBoss(ctx, "u2")
	wantRejection(t, err, engine.RejectNotFound)
}

func TestBossHitCountsTowardMission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.startMission(t, f.guild(t, "u1"), "u1")
	boss, err := f.bosses.SpawnBoss(ctx, "u1")
	if err != nil {
		t.Fatalf("SpawnBoss: %v", err)
	}

	res, err := f.bosses.AttackBoss(ctx, "u1", boss.ID, 10)
	if err != nil {
		t.Fatalf("AttackBoss: %v", err)
	}
	if res.Mission == nil || res.Mission.Kind != engine.ContributionBossHit || res.Mission.Damage != engine.DamageBossHit {
		t.Fatalf("mission contribution = %+v", res.Mission)
	}
	if row := f.member(t, m.ID, "u1"); row.RegularBossHits != 1 {
		t.Fatalf("regular boss hits = %d", row.RegularBossHits)
	}
}
