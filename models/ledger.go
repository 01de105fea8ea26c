package models

import "time"

// Ledger entry kinds written by the server itself. Client debits and credits carry their own kind.
const (
	LedgerWelcomeBonus    = "welcome_bonus"
	LedgerDailyAttendance = "daily_attendance"
)

// LedgerEntry is one immutable line of an account's token history. Entries of an account form a
// chain ordered by Seq where BalanceAfter[n] = BalanceAfter[n-1] + Amount[n].
type LedgerEntry struct {
	AccountID    string    `gorm:"primaryKey;size:32;index:idx_ledger_account_seq,priority:1" json:"-"`
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Seq          int64     `gorm:"not null;index:idx_ledger_account_seq,priority:2" json:"seq"`
	Kind         string    `gorm:"size:32;not null" json:"type"`
	Amount       int64     `gorm:"not null" json:"amount"`
	BalanceAfter int64     `gorm:"not null" json:"balance"`
	Description  string    `gorm:"size:255" json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}
