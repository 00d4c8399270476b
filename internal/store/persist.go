package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcoda/mcoda/pkg/models"
)

// PersistOrder writes the scheduling result in one transaction: every task's
// dense priority and merged metadata, then each epic's and story's derived
// priority rank. Atomicity guarantees readers never observe a half-applied
// order.
func (db *DB) PersistOrder(ordered []*models.Task, epicRanks, storyRanks map[string]int) error {
	now := formatTime(time.Now())

	return db.Transaction(func(tx *sql.Tx) error {
		taskStmt, err := tx.Prepare(
			"UPDATE tasks SET priority = ?, metadata_json = ?, updated_at = ? WHERE id = ?")
		if err != nil {
			return fmt.Errorf("prepare task update: %w", err)
		}
		defer taskStmt.Close()

		for _, task := range ordered {
			var metadataJSON any
			if task.Metadata != nil {
				data, err := json.Marshal(task.Metadata)
				if err != nil {
					return fmt.Errorf("marshal metadata for %s: %w", task.Key, err)
				}
				metadataJSON = string(data)
			}
			if _, err := taskStmt.Exec(task.Priority, metadataJSON, now, task.ID); err != nil {
				return fmt.Errorf("update task %s: %w", task.Key, err)
			}
		}

		for epicID, rank := range epicRanks {
			if _, err := tx.Exec(
				"UPDATE epics SET priority = ?, updated_at = ? WHERE id = ?",
				rank, now, epicID,
			); err != nil {
				return fmt.Errorf("update epic %s: %w", epicID, err)
			}
		}
		for storyID, rank := range storyRanks {
			if _, err := tx.Exec(
				"UPDATE user_stories SET priority = ?, updated_at = ? WHERE id = ?",
				rank, now, storyID,
			); err != nil {
				return fmt.Errorf("update story %s: %w", storyID, err)
			}
		}
		return nil
	})
}
