package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"guild-quest-engine/engine"
	"guild-quest-engine/models"
)

func TestStartMission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guildID := f.guild(t, "lead", "a", "b")

	_, err := f.missions.StartMission(ctx, guildID, "a")
	wantRejection(t, err, engine.RejectUnauthorized)
	_, err = f.missions.StartMission(ctx, "nope", "lead")
	wantRejection(t, err, engine.RejectNotFound)

	m := f.startMission(t, guildID, "lead")
	if m.InitialBossHP != 300 || m.CurrentBossHP != 300 || m.Status != engine.MissionActive {
		t.Fatalf("mission = %+v", m)
	}
	if got := engine.DayKey(m.EndDate); got != "2026-10-28" {
		t.Fatalf("end date = %s", got)
	}

	_, err = f.missions.StartMission(ctx, guildID, "lead")
	wantRejection(t, err, engine.RejectConflict)

	// Once the first one has run out, starting again closes it and opens a new one.
	f.now = f.now.AddDate(0, 0, 15)
	next := f.startMission(t, guildID, "lead")
	if next.ID == m.ID {
		t.Fatalf("expected a new mission")
	}
	var old models.SpecialMission
	f.db.Where("id = ?", m.ID).First(&old)
	if !old.Status.IsTerminal() {
		t.Fatalf("previous mission still %s", old.Status)
	}
}

func TestConcurrentDamageCompletesMission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guildID := f.guild(t, "a", "b")
	m := f.startMission(t, guildID, "a")
	f.setBossHP(t, m.ID, 100)

	hits := map[string]int64{"a": 60, "b": 40}
	var wg sync.WaitGroup
	errs := make(chan error, len(hits))
	for user, dmg := range hits {
		wg.Add(1)
		go func(user string, dmg int64) {
			defer wg.Done()
			if _, err := f.missions.RecordContribution(ctx, m.ID, user, engine.ContributionDirectAttack, dmg, engine.DefaultLocale); err != nil {
				errs <- err
			}
		}(user, dmg)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("RecordContribution: %v", err)
	}

	board, err := f.missions.GetScoreboard(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetScoreboard: %v", err)
	}
	got := board.Mission
	if got.CurrentBossHP != 0 || got.Status != engine.MissionCompleted || !got.Successful {
		t.Fatalf("mission = %+v", got)
	}
	if got.BossDefeatedAt == nil || got.ClosedAt == nil {
		t.Fatalf("defeat/close not stamped: %+v", got)
	}

	var total int64
	for _, row := range got.Members {
		total += row.TotalDamageDealt
		if row.RewardXP != engine.MissionCompletionXP {
			t.Fatalf("member %s reward = %d", row.UserID, row.RewardXP)
		}
	}
	if total != 100 {
		t.Fatalf("damage dealt sums to %d, want 100", total)
	}
	if got.Members[0].UserID != "a" {
		t.Fatalf("scoreboard should rank the 60 HP hitter first, got %s", got.Members[0].UserID)
	}

	for _, user := range []string{"a", "b"} {
		p := f.progress(t, user)
		if p.TotalXP != engine.MissionCompletionXP || p.MissionsWon != 1 || p.Coins != engine.MissionCoinReward {
			t.Fatalf("%s progress = %+v", user, p)
		}
		var n int64
		f.db.Model(&models.UserBadge{}).Where("external_user_id = ? AND badge_code = ?", user, "MISSION_VICTOR").Count(&n)
		if n != 1 {
			t.Fatalf("%s MISSION_VICTOR badges = %d", user, n)
		}
	}
}

func TestMissionExpiryFailsAndDropsLateEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guildID := f.guild(t, "a")
	m := f.startMission(t, guildID, "a")
	f.setBossHP(t, m.ID, 5)

	f.now = f.now.AddDate(0, 0, engine.MissionDurationDays)
	got, err := f.missions.EvaluateMissionExpiry(ctx, m.ID)
	if err != nil {
		t.Fatalf("EvaluateMissionExpiry: %v", err)
	}
	if got.Status != engine.MissionFailed || got.Successful || got.CurrentBossHP != 5 {
		t.Fatalf("mission = %+v", got)
	}
	task := f.createTask(t, "a", "easy", "important")

	res, err := f.missions.RecordContribution(ctx, m.ID, "a", engine.ContributionDirectAttack, 50, engine.DefaultLocale)
	if err != nil {
		t.Fatalf("late contribution should not error: %v", err)
	}
	if res.Accepted || res.Status != engine.MissionFailed || res.CurrentBossHP != 5 {
		t.Fatalf("late contribution = %+v", res)
	}

	done, err := f.tasks.CompleteTask(ctx, "a", task.ID, engine.DefaultLocale)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if done.Mission != nil {
		t.Fatalf("closed mission should not receive task contributions")
	}

	again, err := f.missions.EvaluateMissionExpiry(ctx, m.ID)
	if err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	if again.Status != engine.MissionFailed || again.CurrentBossHP != 5 || !again.ClosedAt.Equal(*got.ClosedAt) {
		t.Fatalf("re-evaluation changed the mission: %+v", again)
	}
	if p := f.progress(t, "a"); p.MissionsWon != 0 {
		t.Fatalf("failed mission must not reward, got %+v", p)
	}
}

func TestExpiredMissionFailsWithCleanMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guildID := f.guild(t, "a", "b", "c")
	m := f.startMission(t, guildID, "a")
	f.setBossHP(t, m.ID, 20)

	attack := func(user string, dmg int64) {
		t.Helper()
		if _, err := f.missions.RecordContribution(ctx, m.ID, user, engine.ContributionDirectAttack, dmg, engine.DefaultLocale); err != nil {
			t.Fatalf("attack by %s: %v", user, err)
		}
	}
	attack("a", 10)
	attack("b", 5)
	// b leaves a task open; c never takes part
	f.createTask(t, "b", "easy", "important")

	f.now = f.now.AddDate(0, 0, engine.MissionDurationDays+1)
	if _, err := f.missions.ExpireDueMissions(ctx); err != nil {
		t.Fatalf("ExpireDueMissions: %v", err)
	}

	board, err := f.missions.GetScoreboard(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetScoreboard: %v", err)
	}
	if board.Mission.Status != engine.MissionFailed || board.Mission.Successful || board.Mission.CurrentBossHP != 5 {
		t.Fatalf("mission = %+v", board.Mission)
	}
	if board.DaysRemaining != 0 {
		t.Fatalf("days remaining = %d", board.DaysRemaining)
	}
	if len(board.Mission.Members) != 2 {
		t.Fatalf("member rows = %+v, want only a and b", board.Mission.Members)
	}

	a := f.member(t, m.ID, "a")
	if !a.HasNoUnresolvedTasks || a.TotalDamageDealt != 10 || a.RewardXP != 0 {
		t.Fatalf("a = %+v", a)
	}
	if b := f.member(t, m.ID, "b"); b.HasNoUnresolvedTasks || b.TotalDamageDealt != 5 {
		t.Fatalf("b = %+v", b)
	}

	var winners, victors int64
	f.db.Model(&models.UserProgress{}).Where("missions_won > 0").Count(&winners)
	f.db.Model(&models.UserBadge{}).Where("badge_code = ?", "MISSION_VICTOR").Count(&victors)
	if winners != 0 || victors != 0 {
		t.Fatalf("failed mission rewarded %d members, %d badges", winners, victors)
	}
}

func TestContributionCaps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guildID := f.guild(t, "a")
	m := f.startMission(t, guildID, "a")

	for i := 0; i < 7; i++ {
		if _, err := f.missions.RecordContribution(ctx, m.ID, "a", engine.ContributionShopPurchase, 0, engine.DefaultLocale); err != nil {
			t.Fatalf("shop purchase %d: %v", i, err)
		}
	}
	chat := func() *ContributionResult {
		t.Helper()
		res, err := f.missions.RecordContribution(ctx, m.ID, "a", engine.ContributionChatMessage, 0, engine.DefaultLocale)
		if err != nil {
			t.Fatalf("chat: %v", err)
		}
		return res
	}
	if res := chat(); res.Damage != engine.DamageDailyMessage {
		t.Fatalf("first message of the day dealt %d", res.Damage)
	}
	if res := chat(); !res.Accepted || res.Damage != 0 {
		t.Fatalf("second message same day = %+v", res)
	}
	f.now = f.now.Add(24 * time.Hour)
	chat()

	row := f.member(t, m.ID, "a")
	if row.ShopPurchases != engine.MaxShopPurchases {
		t.Fatalf("shop purchases = %d", row.ShopPurchases)
	}
	if len(row.DaysWithMessages) != 2 {
		t.Fatalf("days with messages = %v", engine.DaySet(row.DaysWithMessages).Keys())
	}
	want := int64(engine.MaxShopPurchases*engine.DamageShopPurchase + 2*engine.DamageDailyMessage)
	if row.TotalDamageDealt != want {
		t.Fatalf("damage = %d, want %d", row.TotalDamageDealt, want)
	}

	var mission models.SpecialMission
	f.db.Where("id = ?", m.ID).First(&mission)
	if mission.CurrentBossHP != mission.InitialBossHP-want {
		t.Fatalf("boss hp = %d", mission.CurrentBossHP)
	}
}

func TestRecordContributionRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.startMission(t, f.guild(t, "a"), "a")

	_, err := f.missions.RecordContribution(ctx, m.ID, "stranger", engine.ContributionDirectAttack, 5, engine.DefaultLocale)
	wantRejection(t, err, engine.RejectUnauthorized)
	_, err = f.missions.RecordContribution(ctx, m.ID, "a", engine.ContributionDirectAttack, -5, engine.DefaultLocale)
	wantRejection(t, err, engine.RejectInvalidInput)
	_, err = f.missions.RecordContribution(ctx, "missing", "a", engine.ContributionBossHit, 0, engine.DefaultLocale)
	wantRejection(t, err, engine.RejectNotFound)

	// only direct attacks carry an amount; one easy_task event is one unit
	_, err = f.missions.RecordContribution(ctx, m.ID, "a", engine.ContributionEasyTask, engine.MaxEasyTasksCompleted, engine.DefaultLocale)
	wantRejection(t, err, engine.RejectInvalidInput)
	res, err := f.missions.RecordContribution(ctx, m.ID, "a", engine.ContributionEasyTask, 0, engine.DefaultLocale)
	if err != nil || res.Damage != engine.DamageEasyTask {
		t.Fatalf("easy task = %+v, %v", res, err)
	}
	if row := f.member(t, m.ID, "a"); row.EasyTasksCompleted != 1 {
		t.Fatalf("easy tasks = %d", row.EasyTasksCompleted)
	}
}

func TestCompletedTaskCountsTowardMission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.startMission(t, f.guild(t, "a"), "a")

	easy := f.createTask(t, "a", "very_easy", "normal")
	hard := f.createTask(t, "a", "hard", "very_important")

	res, err := f.tasks.CompleteTask(ctx, "a", easy.ID, engine.DefaultLocale)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.Mission == nil || res.Mission.Kind != engine.ContributionEasyTask || res.Mission.Damage != 2 {
		t.Fatalf("easy contribution = %+v", res.Mission)
	}
	res, err = f.tasks.CompleteTask(ctx, "a", hard.ID, engine.DefaultLocale)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.Mission == nil || res.Mission.Kind != engine.ContributionOtherTask || res.Mission.Damage != engine.DamageOtherTask {
		t.Fatalf("other contribution = %+v", res.Mission)
	}

	row := f.member(t, m.ID, "a")
	if row.EasyTasksCompleted != 2 || row.OtherTasksCompleted != 1 {
		t.Fatalf("member row = %+v", row)
	}
}

func TestRecordShopPurchaseOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.startMission(t, f.guild(t, "a"), "a")

	p := models.ShopPurchase{ID: "pur-1", UserID: "a", ItemCode: "potion", Price: 30, PurchasedAt: f.now}
	inserted, res, err := f.missions.RecordShopPurchase(ctx, p)
	if err != nil || !inserted || res == nil || res.Damage != engine.DamageShopPurchase {
		t.Fatalf("first purchase = %v, %+v, %v", inserted, res, err)
	}
	inserted, res, err = f.missions.RecordShopPurchase(ctx, p)
	if err != nil || inserted || res != nil {
		t.Fatalf("replayed purchase = %v, %+v, %v", inserted, res, err)
	}
	if row := f.member(t, m.ID, "a"); row.ShopPurchases != 1 {
		t.Fatalf("shop purchases = %d", row.ShopPurchases)
	}

	// a purchase made before the mission started is stored but not counted
	inserted, res, err = f.missions.RecordShopPurchase(ctx, models.ShopPurchase{ID: "pur-old", UserID: "a", PurchasedAt: m.StartDate.Add(-time.Hour)})
	if err != nil || !inserted || res != nil {
		t.Fatalf("pre-mission purchase = %v, %+v, %v", inserted, res, err)
	}
	if row := f.member(t, m.ID, "a"); row.ShopPurchases != 1 {
		t.Fatalf("shop purchases after pre-mission purchase = %d", row.ShopPurchases)
	}

	// buyers outside any guild are stored but score nothing
	inserted, res, err = f.missions.RecordShopPurchase(ctx, models.ShopPurchase{ID: "pur-2", UserID: "loner", PurchasedAt: f.now})
	if err != nil || !inserted || res != nil {
		t.Fatalf("guildless purchase = %v, %+v, %v", inserted, res, err)
	}
}

func TestActiveMissionForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.missions.ActiveMissionForUser(ctx, "a")
	wantRejection(t, err, engine.RejectNotFound)

	m := f.startMission(t, f.guild(t, "a"), "a")
	got, err := f.missions.ActiveMissionForUser(ctx, "a")
	if err != nil || got.ID != m.ID {
		t.Fatalf("ActiveMissionForUser = %+v, %v", got, err)
	}
}

type recordingArchiver struct {
	mu      sync.Mutex
	reports map[string][]byte
}

func (r *recordingArchiver) ArchiveMissionReport(_ context.Context, guildName, missionID string, report []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reports == nil {
		r.reports = map[string][]byte{}
	}
	r.reports[missionID] = report
	return "missions/" + guildName + "/" + missionID + ".json", nil
}

func TestClosedMissionIsArchived(t *testing.T) {
	f := newFixture(t)
	archiver := &recordingArchiver{}
	f.missions.Archiver = archiver
	m := f.startMission(t, f.guild(t, "a"), "a")

	if _, err := f.missions.RecordContribution(context.Background(), m.ID, "a", engine.ContributionDirectAttack, 1000, engine.DefaultLocale); err != nil {
		t.Fatalf("RecordContribution: %v", err)
	}
	if len(archiver.reports[m.ID]) == 0 {
		t.Fatalf("no report archived for %s", m.ID)
	}
}
