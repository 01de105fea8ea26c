package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/anonid/models"
)

// Tx is the transactional view handed to RunTransaction callbacks.
type Tx struct {
	db *gorm.DB
}

// Account loads an account by id.
func (t *Tx) Account(id string) (*models.Account, error) {
	var acc models.Account
	if err := t.db.Where("id = ?", id).Take(&acc).Error; err != nil {
		return nil, notFound(err)
	}
	return &acc, nil
}

// ActiveAccountByFingerprint finds the active account bound to a device fingerprint.
func (t *Tx) ActiveAccountByFingerprint(fp string) (*models.Account, error) {
	var acc models.Account
	if err := t.db.Where("active_fingerprint = ?", fp).Take(&acc).Error; err != nil {
		return nil, notFound(err)
	}
	return &acc, nil
}

// CreateAccount inserts a new account. A second active account for the same fingerprint fails
// with a duplicate key error, which RunTransaction treats as a conflict.
func (t *Tx) CreateAccount(acc *models.Account) error {
	return t.db.Create(acc).Error
}

// UpdateAccount writes every column of acc if the stored version still equals acc.Version,
// then bumps the version. A stale version yields ErrConflict.
func (t *Tx) UpdateAccount(acc *models.Account) error {
	next := *acc
	next.Version = acc.Version + 1
	res := t.db.Model(&next).
		Where("version = ?", acc.Version).
		Select("*").
		Omit("created_at").
		Updates(&next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	*acc = next
	return nil
}

// InsertLedgerEntry appends a ledger entry.
func (t *Tx) InsertLedgerEntry(e *models.LedgerEntry) error {
	return t.db.Create(e).Error
}

// LedgerEntries returns up to limit entries of an account, newest first.
func (t *Tx) LedgerEntries(accountID string, limit int) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	err := t.db.Where("account_id = ?", accountID).Order("seq DESC").Limit(limit).Find(&out).Error
	return out, err
}

// AttendanceRecord loads the record of one account and date.
func (t *Tx) AttendanceRecord(accountID, date string) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	if err := t.db.Where("account_id = ? AND date = ?", accountID, date).Take(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// InsertAttendanceRecord writes a day's record; a second write for the same day is a conflict.
func (t *Tx) InsertAttendanceRecord(rec *models.AttendanceRecord) error {
	return t.db.Create(rec).Error
}

// AttendanceSummary returns the stored summary or the zero-value default.
func (t *Tx) AttendanceSummary(accountID string) (models.AttendanceSummary, error) {
	var sum models.AttendanceSummary
	err := t.db.Where("account_id = ?", accountID).Take(&sum).Error
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return models.DefaultAttendanceSummary(accountID), nil
		}
		return models.AttendanceSummary{}, err
	}
	return sum, nil
}

// PutAttendanceSummary overwrites the summary singleton.
func (t *Tx) PutAttendanceSummary(sum *models.AttendanceSummary) error {
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		UpdateAll: true,
	}).Create(sum).Error
}

// DeviceCreationEvents lists creation events of a fingerprint, oldest first.
func (t *Tx) DeviceCreationEvents(fp string) ([]models.DeviceCreationEvent, error) {
	var out []models.DeviceCreationEvent
	err := t.db.Where("fingerprint = ?", fp).Order("created_at ASC").Find(&out).Error
	return out, err
}

// InsertDeviceCreationEvent appends a creation event.
func (t *Tx) InsertDeviceCreationEvent(ev *models.DeviceCreationEvent) error {
	return t.db.Create(ev).Error
}

// RecoveryCode looks up a code in the registry.
func (t *Tx) RecoveryCode(code string) (*models.RecoveryCode, error) {
	var rc models.RecoveryCode
	if err := t.db.Where("code = ?", code).Take(&rc).Error; err != nil {
		return nil, notFound(err)
	}
	return &rc, nil
}

// InsertRecoveryCode registers a new code.
func (t *Tx) InsertRecoveryCode(rc *models.RecoveryCode) error {
	return t.db.Create(rc).Error
}

// MoveRecoveryCode hands a code over to another account if its owner is still from.
func (t *Tx) MoveRecoveryCode(rc *models.RecoveryCode, to string) error {
	res := t.db.Model(&models.RecoveryCode{}).
		Where("code = ? AND account_id = ?", rc.Code, rc.AccountID).
		Updates(map[string]any{"account_id": to, "updated_at": rc.UpdatedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	rc.AccountID = to
	return nil
}

// Favorite loads a favorite by id.
func (t *Tx) Favorite(id string) (*models.Favorite, error) {
	var fav models.Favorite
	if err := t.db.Where("id = ?", id).Take(&fav).Error; err != nil {
		return nil, notFound(err)
	}
	return &fav, nil
}

// InsertFavorite stores a favorite.
func (t *Tx) InsertFavorite(fav *models.Favorite) error {
	return t.db.Create(fav).Error
}

// DeleteFavorite removes a favorite; a concurrent removal is a conflict.
func (t *Tx) DeleteFavorite(id string) error {
	res := t.db.Where("id = ?", id).Delete(&models.Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
