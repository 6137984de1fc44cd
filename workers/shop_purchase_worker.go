// workers/shop_purchase_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"guild-quest-engine/models"
	"guild-quest-engine/services"
)

// PurchaseRecorder stores a mirrored purchase once and credits the buyer's mission.
type PurchaseRecorder interface {
	RecordShopPurchase(ctx context.Context, p models.ShopPurchase) (bool, *services.ContributionResult, error)
}

// ShopPurchaseWorker polls the shop's purchase feed. Overlapping windows are
// harmless because purchases are recorded at most once by id.
type ShopPurchaseWorker struct {
	client       *SyncClient
	recorder     PurchaseRecorder
	endpointPath string
	interval     time.Duration
	since        time.Time
}

func NewShopPurchaseWorker(client *SyncClient, recorder PurchaseRecorder, interval time.Duration) *ShopPurchaseWorker {
	return &ShopPurchaseWorker{
		client:       client,
		recorder:     recorder,
		endpointPath: "/api/v1/public/purchases",
		interval:     interval,
		since:        time.Now().UTC().Add(-24 * time.Hour),
	}
}

func (w *ShopPurchaseWorker) Start(ctx context.Context) {
	go poll(ctx, "Shop Purchase Worker", w.interval, w.pollBatch)
}

func (w *ShopPurchaseWorker) pollBatch(ctx context.Context) error {
	next, err := w.PollOnce(ctx, w.since)
	if err != nil {
		return err
	}
	w.since = next
	return nil
}

// PollOnce records every purchase made since the cursor and returns the next cursor.
// A failed purchase stops the batch and the cursor stays put, so the next poll
// retries the whole window.
func (w *ShopPurchaseWorker) PollOnce(ctx context.Context, since time.Time) (time.Time, error) {
	var response struct {
		Purchases []models.ShopPurchase `json:"purchases"`
	}
	if err := w.client.getChanges(ctx, w.endpointPath, since, &response); err != nil {
		return since, err
	}
	if len(response.Purchases) == 0 {
		return since, nil
	}

	next := since
	var recorded, duplicates, contributed int
	for _, p := range response.Purchases {
		inserted, res, err := w.recorder.RecordShopPurchase(ctx, p)
		if err != nil {
			log.Printf("[SHOP] ❌ Failed to record purchase %s for %s: %v", p.ID, p.UserID, err)
			return since, err
		}
		if !inserted {
			duplicates++
		} else {
			recorded++
			if res != nil && res.Accepted {
				contributed++
			}
		}
		if p.PurchasedAt.After(next) {
			next = p.PurchasedAt
		}
	}
	log.Printf("[SHOP] ✅ %d purchase(s): %d recorded, %d duplicates, %d counted toward missions",
		len(response.Purchases), recorded, duplicates, contributed)
	return next, nil
}
