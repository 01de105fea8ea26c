package models

import "time"

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive      AccountStatus = "active"
	AccountTransferred AccountStatus = "transferred"
)

// Account is the device-bound identity root. The raw device id is never stored, only its
// keyed fingerprint.
//
// ActiveFingerprint mirrors DeviceFingerprint while the account is active and is NULL once the
// account is retired; its unique index is what keeps one active account per device.
type Account struct {
	ID                string        `gorm:"primaryKey;size:32" json:"id"`
	DeviceFingerprint string        `gorm:"size:64;index;not null" json:"-"`
	ActiveFingerprint *string       `gorm:"size:64;uniqueIndex" json:"-"`
	DisplayName       string        `gorm:"size:64;not null" json:"nickname"`
	TokenBalance      int64         `gorm:"not null;default:0" json:"token_count"`
	FavoriteCount     int64         `gorm:"not null;default:0" json:"favorite_count"`
	CommentCount      int64         `gorm:"not null;default:0" json:"comment_count"`
	Status            AccountStatus `gorm:"size:16;index;not null" json:"status"`
	RecoveryCode      *string       `gorm:"size:16" json:"-"`
	Platform          string        `gorm:"size:32" json:"platform"`
	AppVersion        string        `gorm:"size:32" json:"app_version"`
	TransferredFrom   *string       `gorm:"size:32" json:"transferred_from,omitempty"`
	TransferredTo     *string       `gorm:"size:32" json:"transferred_to,omitempty"`
	LedgerSeq         int64         `gorm:"not null;default:0" json:"-"`
	Version           int64         `gorm:"not null;default:0" json:"-"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	LastLoginAt       time.Time     `json:"last_login_at"`
}

// IsActive reports whether the account can still be used.
func (a *Account) IsActive() bool {
	return a.Status == AccountActive
}
