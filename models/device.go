package models

import "time"

// DeviceCreationEvent records one account creation for a device fingerprint. Events are kept
// after the account is transferred so the creation quota cannot be reset by retiring accounts.
type DeviceCreationEvent struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Fingerprint string    `gorm:"size:64;index;not null" json:"-"`
	AccountID   string    `gorm:"size:32;not null" json:"account_id"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

// RecoveryCode is the registry that keeps recovery codes globally unique. AccountID is the
// current owner and moves along with the account on transfer.
type RecoveryCode struct {
	Code      string    `gorm:"primaryKey;size:16" json:"code"`
	AccountID string    `gorm:"size:32;index;not null" json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
