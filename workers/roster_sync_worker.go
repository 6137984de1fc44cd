// workers/roster_sync_worker.go
package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"guild-quest-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteGuild is one guild in the sync service's roster feed.
type RemoteGuild struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	LeaderID  string         `json:"leader_id"`
	Members   []RemoteMember `json:"members"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type RemoteMember struct {
	ExternalUserID string     `json:"external_user_id"`
	Username       string     `json:"username"`
	Active         bool       `json:"active"`
	JoinedAt       time.Time  `json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
}

type rosterChangesResponse struct {
	Guilds []RemoteGuild `json:"guilds"`
}

// RosterSyncWorker mirrors guilds and their members into guilds / guild_members.
// Mission boss HP and membership checks read from these tables.
type RosterSyncWorker struct {
	db           *gorm.DB
	client       *SyncClient
	endpointPath string
	interval     time.Duration
	since        time.Time
}

func NewRosterSyncWorker(db *gorm.DB, client *SyncClient, interval time.Duration) *RosterSyncWorker {
	return &RosterSyncWorker{
		db:           db,
		client:       client,
		endpointPath: "/api/v1/public/guilds",
		interval:     interval,
	}
}

func (w *RosterSyncWorker) Start(ctx context.Context) {
	go poll(ctx, "Guild Roster Sync Worker", w.interval, w.syncBatch)
}

func (w *RosterSyncWorker) syncBatch(ctx context.Context) error {
	next, err := w.SyncOnce(ctx, w.since)
	if err != nil {
		return err
	}
	w.since = next
	return nil
}

// SyncOnce pulls guild changes since the cursor and upserts them. It returns the
// cursor for the next call; on error the cursor should not advance.
func (w *RosterSyncWorker) SyncOnce(ctx context.Context, since time.Time) (time.Time, error) {
	var response rosterChangesResponse
	if err := w.client.getChanges(ctx, w.endpointPath, since, &response); err != nil {
		return since, err
	}
	if len(response.Guilds) == 0 {
		log.Printf("[ROSTER] ✅ No guild changes since %s", since.UTC().Format(time.RFC3339))
		return since, nil
	}

	next := since
	var upserted, failed int
	for _, g := range response.Guilds {
		if err := w.upsertGuild(ctx, g); err != nil {
			failed++
			log.Printf("[ROSTER] ⚠️ Failed to upsert guild %s (%q): %v", g.ID, g.Name, err)
			continue
		}
		upserted++
		if g.UpdatedAt.After(next) {
			next = g.UpdatedAt
		}
	}
	log.Printf("[ROSTER] ✅ Synced %d guild(s) (%d upserted, %d errors)", len(response.Guilds), upserted, failed)
	if failed > 0 {
		return since, fmt.Errorf("%d guild(s) failed to sync", failed)
	}
	return next, nil
}

func (w *RosterSyncWorker) upsertGuild(ctx context.Context, g RemoteGuild) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guild := models.Guild{ID: g.ID, Name: g.Name, LeaderID: g.LeaderID, UpdatedAt: g.UpdatedAt}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "leader_id", "updated_at"}),
		}).Create(&guild).Error; err != nil {
			return err
		}

		for _, m := range g.Members {
			member := models.GuildMember{
				ID:             uuid.NewString(),
				GuildID:        g.ID,
				ExternalUserID: m.ExternalUserID,
				Username:       m.Username,
				Active:         m.Active,
				JoinedAt:       m.JoinedAt,
				LeftAt:         m.LeftAt,
			}
			// A user is in at most one guild, so a move re-points the existing row.
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "external_user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"guild_id", "username", "active", "joined_at", "left_at", "updated_at",
				}),
			}).Create(&member).Error; err != nil {
				return fmt.Errorf("member %s: %w", m.ExternalUserID, err)
			}
		}
		return nil
	})
}
