package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/anonid/models"
	"github.com/cppla/anonid/store"
	"github.com/cppla/anonid/utils"
)

const (
	maxKindLength        = 32
	maxDescriptionLength = 255
	defaultHistoryLimit  = 20
	maxHistoryLimit      = 100
)

// LedgerService moves tokens and keeps the history chain.
type LedgerService struct {
	*core
}

// credit applies amount to acc in memory and returns the matching ledger entry. Both must be
// written in the same transaction.
func credit(acc *models.Account, amount int64, kind, description string, at time.Time) (*models.LedgerEntry, error) {
	next := acc.TokenBalance + amount
	if next < 0 {
		return nil, failedPrecondition("insufficient tokens")
	}
	acc.TokenBalance = next
	acc.LedgerSeq++
	return &models.LedgerEntry{
		AccountID:    acc.ID,
		ID:           uuid.NewString(),
		Seq:          acc.LedgerSeq,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: next,
		Description:  description,
		CreatedAt:    at,
	}, nil
}

// post credits acc and persists the account and its ledger entry.
func post(tx *store.Tx, acc *models.Account, amount int64, kind, description string, at time.Time) (*models.LedgerEntry, error) {
	entry, err := credit(acc, amount, kind, description, at)
	if err != nil {
		return nil, err
	}
	acc.UpdatedAt = at
	if err := tx.UpdateAccount(acc); err != nil {
		return nil, err
	}
	if err := tx.InsertLedgerEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// loadActive reads an account that must exist and still be active.
func loadActive(tx *store.Tx, accountID string) (*models.Account, error) {
	acc, err := tx.Account(accountID)
	if err == store.ErrNotFound {
		return nil, notFoundErr("user not found")
	}
	if err != nil {
		return nil, err
	}
	if !acc.IsActive() {
		return nil, failedPrecondition("account is not active")
	}
	return acc, nil
}

// ApplyDelta adds a signed amount to the balance and returns the new balance. The balance
// never drops below zero.
func (s *LedgerService) ApplyDelta(ctx context.Context, accountID string, amount int64, kind, description string) (int64, error) {
	kind = strings.TrimSpace(kind)
	if accountID == "" || kind == "" {
		return 0, invalidArgument("uid, amount and type are required")
	}
	if len(kind) > maxKindLength {
		return 0, invalidArgument("type is too long")
	}
	description = utils.Sanitize(description)
	if len(description) > maxDescriptionLength {
		return 0, invalidArgument("description is too long")
	}

	var balance int64
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		acc, err := loadActive(tx, accountID)
		if err != nil {
			return err
		}
		entry, err := post(tx, acc, amount, kind, description, s.clock())
		if err != nil {
			return err
		}
		balance = entry.BalanceAfter
		return nil
	})
	if err != nil {
		return 0, s.fail("update tokens", err)
	}
	return balance, nil
}

// History returns the most recent ledger entries of an account, newest first.
func (s *LedgerService) History(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	if accountID == "" {
		return nil, invalidArgument("uid is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	var entries []models.LedgerEntry
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		if _, err := tx.Account(accountID); err != nil {
			if err == store.ErrNotFound {
				return notFoundErr("user not found")
			}
			return err
		}
		var err error
		entries, err = tx.LedgerEntries(accountID, limit)
		return err
	})
	if err != nil {
		return nil, s.fail("load ledger history", err)
	}
	return entries, nil
}
