// services/store.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"guild-quest-engine/engine"
	"guild-quest-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errWriteConflict marks a conditional write that matched no row because another
// transaction changed it first. The whole transaction is retried.
var errWriteConflict = errors.New("concurrent write conflict")

const maxWriteAttempts = 5

// forUpdate adds a row lock. SQLite has no FOR UPDATE; its single writer already serializes.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// storeErr wraps infrastructure failures; rejections pass through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := engine.AsRejection(err); ok {
		return err
	}
	if engine.IsStoreError(err) {
		return err
	}
	return &engine.StoreError{Op: op, Err: err}
}

// inTx runs fn in a transaction, retrying it when a conditional write lost a race.
func inTx(ctx context.Context, db *gorm.DB, op string, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, errWriteConflict) {
			return storeErr(op, err)
		}
		log.Printf("[Store] ⚠️ %s: write conflict, retrying (attempt %d)", op, attempt)
	}
	return storeErr(op, err)
}

func systemNow() time.Time { return time.Now() }

// taskCounter answers quota window counts from the tasks table on the caller's
// transaction, so counting and inserting see the same snapshot. A task being
// edited is left out of its own count.
type taskCounter struct {
	tx      *gorm.DB
	exclude string
}

func (c taskCounter) window(ctx context.Context, userID string, w engine.Window) *gorm.DB {
	q := c.tx.WithContext(ctx).Model(&models.Task{}).
		Where("owner_id = ? AND created_on BETWEEN ? AND ?", userID, w.StartKey(), w.EndKey())
	if c.exclude != "" {
		q = q.Where("id <> ?", c.exclude)
	}
	return q
}

func (c taskCounter) CountTasksByDifficultyImportance(ctx context.Context, userID string, d engine.Difficulty, i engine.Importance, w engine.Window) (int64, error) {
	var n int64
	err := c.window(ctx, userID, w).
		Where("difficulty = ? AND importance = ?", string(d), string(i)).
		Count(&n).Error
	return n, err
}

func (c taskCounter) CountExtremeTasks(ctx context.Context, userID string, w engine.Window) (int64, error) {
	var n int64
	err := c.window(ctx, userID, w).
		Where("difficulty = ?", string(engine.DifficultyExtreme)).
		Count(&n).Error
	return n, err
}

func (c taskCounter) CountSpecialTasks(ctx context.Context, userID string, w engine.Window) (int64, error) {
	var n int64
	err := c.window(ctx, userID, w).
		Where("importance = ?", string(engine.ImportanceSpecial)).
		Count(&n).Error
	return n, err
}
