package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"github.com/cppla/anonid/models"
)

// DefaultCopyBatchSize is the number of rows moved per insert during a history copy.
const DefaultCopyBatchSize = 200

// CopyStats counts the rows a history copy went through.
type CopyStats struct {
	LedgerEntries     int
	AttendanceRecords int
	Favorites         int
	Summary           bool
}

// CopyAccountHistory copies ledger entries, attendance records, the attendance summary and
// favorites from one account to another. It runs outside any transaction, in batches, and
// ignores rows that already exist under the target account, so it is safe to run again after
// a partial failure.
func (s *Store) CopyAccountHistory(ctx context.Context, from, to string, batchSize int) (CopyStats, error) {
	if batchSize <= 0 {
		batchSize = DefaultCopyBatchSize
	}
	var stats CopyStats
	db := s.DB(ctx)
	ignore := clause.OnConflict{DoNothing: true}

	var lastSeq int64 = -1
	for {
		var batch []models.LedgerEntry
		if err := db.Where("account_id = ? AND seq > ?", from, lastSeq).
			Order("seq ASC").Limit(batchSize).Find(&batch).Error; err != nil {
			return stats, fmt.Errorf("read ledger entries: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		lastSeq = batch[len(batch)-1].Seq
		for i := range batch {
			batch[i].AccountID = to
		}
		if err := db.Clauses(ignore).Create(&batch).Error; err != nil {
			return stats, fmt.Errorf("copy ledger entries: %w", err)
		}
		stats.LedgerEntries += len(batch)
	}

	lastDate := ""
	for {
		var batch []models.AttendanceRecord
		if err := db.Where("account_id = ? AND date > ?", from, lastDate).
			Order("date ASC").Limit(batchSize).Find(&batch).Error; err != nil {
			return stats, fmt.Errorf("read attendance records: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		lastDate = batch[len(batch)-1].Date
		for i := range batch {
			batch[i].AccountID = to
		}
		if err := db.Clauses(ignore).Create(&batch).Error; err != nil {
			return stats, fmt.Errorf("copy attendance records: %w", err)
		}
		stats.AttendanceRecords += len(batch)
	}

	var sum models.AttendanceSummary
	res := db.Where("account_id = ?", from).Limit(1).Find(&sum)
	if res.Error != nil {
		return stats, fmt.Errorf("read attendance summary: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		sum.AccountID = to
		if err := db.Clauses(ignore).Create(&sum).Error; err != nil {
			return stats, fmt.Errorf("copy attendance summary: %w", err)
		}
		stats.Summary = true
	}

	lastID := ""
	for {
		var batch []models.Favorite
		if err := db.Where("account_id = ? AND id > ?", from, lastID).
			Order("id ASC").Limit(batchSize).Find(&batch).Error; err != nil {
			return stats, fmt.Errorf("read favorites: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		lastID = batch[len(batch)-1].ID
		for i := range batch {
			batch[i].ID = models.FavoriteID(to, strings.TrimPrefix(batch[i].ID, from+"_"))
			batch[i].AccountID = to
		}
		if err := db.Clauses(ignore).Create(&batch).Error; err != nil {
			return stats, fmt.Errorf("copy favorites: %w", err)
		}
		stats.Favorites += len(batch)
	}
	return stats, nil
}
