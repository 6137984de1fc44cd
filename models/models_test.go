package models

import (
	"encoding/json"
	"testing"
	"time"

	"guild-quest-engine/engine"
)

func TestDaySetColumnRoundTrip(t *testing.T) {
	col := DaySetColumn(engine.NewDaySet("2026-10-14", "2026-10-02"))
	v, err := col.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "2026-10-02,2026-10-14" {
		t.Fatalf("Value()=%v, want sorted comma list", v)
	}

	var back DaySetColumn
	if err := back.Scan([]byte(" 2026-10-02 ,2026-10-14,,")); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("scanned %d days", len(back))
	}

	var empty DaySetColumn
	if err := empty.Scan(nil); err != nil || len(empty) != 0 {
		t.Fatalf("Scan(nil) = %v, %d days", err, len(empty))
	}
	if err := empty.Scan(42); err == nil {
		t.Fatalf("Scan(int) should fail")
	}

	raw, _ := json.Marshal(col)
	if string(raw) != `["2026-10-02","2026-10-14"]` {
		t.Fatalf("json = %s", raw)
	}
}

func TestProgressTallyMapping(t *testing.T) {
	p := SpecialMissionProgress{ShopPurchases: 2, DaysWithMessages: DaySetColumn(engine.NewDaySet("2026-10-14"))}
	tally := p.Tally()
	tally.Record(engine.Contribution{Kind: engine.ContributionChatMessage, At: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)})
	tally.Record(engine.Contribution{Kind: engine.ContributionShopPurchase})
	p.ApplyTally(tally)
	if p.ShopPurchases != 3 || len(p.DaysWithMessages) != 2 {
		t.Fatalf("progress after apply = %+v", p)
	}
}

func TestLoadBadgeCatalog(t *testing.T) {
	catalog, err := LoadBadgeCatalog()
	if err != nil {
		t.Fatalf("LoadBadgeCatalog: %v", err)
	}
	if len(catalog) == 0 {
		t.Fatalf("empty catalog")
	}
	again, _ := LoadBadgeCatalog()
	for i := range catalog {
		if catalog[i].ID == "" || catalog[i].ID != again[i].ID {
			t.Fatalf("badge %s id not stable", catalog[i].Code)
		}
		if len(catalog[i].Threshold) == 0 {
			t.Fatalf("badge %s has no threshold", catalog[i].Code)
		}
	}
}
