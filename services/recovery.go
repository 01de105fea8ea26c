package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/anonid/identity"
	"github.com/cppla/anonid/models"
	"github.com/cppla/anonid/store"
)

const historyCopyTimeout = 2 * time.Minute

var errRecoveryCodeExhausted = errors.New("could not generate a unique recovery code")

// TransferredData reports what the history copy moved to the new account.
type TransferredData struct {
	LedgerEntries     int
	AttendanceRecords int
	Favorites         int
	Summary           bool
	Complete          bool
}

// TransferResult is returned by a successful transfer.
type TransferResult struct {
	NewAccountID    string
	DisplayName     string
	TokenBalance    int64
	TransferredData TransferredData
}

// RecoveryService issues recovery codes and moves accounts to new devices.
type RecoveryService struct {
	*core
}

// GetOrCreateRecoveryCode returns the recovery code of an account, assigning one on first use.
// The boolean is true when the code was created by this call.
func (s *RecoveryService) GetOrCreateRecoveryCode(ctx context.Context, accountID string) (string, bool, error) {
	if accountID == "" {
		return "", false, invalidArgument("uid is required")
	}

	var code string
	var created bool
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		code, created = "", false
		acc, err := loadActive(tx, accountID)
		if err != nil {
			return err
		}
		if acc.RecoveryCode != nil && *acc.RecoveryCode != "" {
			code = *acc.RecoveryCode
			return nil
		}

		candidate, err := s.uniqueRecoveryCode(tx)
		if err != nil {
			return err
		}
		now := s.clock()
		if err := tx.InsertRecoveryCode(&models.RecoveryCode{
			Code:      candidate,
			AccountID: acc.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		acc.RecoveryCode = &candidate
		acc.UpdatedAt = now
		if err := tx.UpdateAccount(acc); err != nil {
			return err
		}
		code, created = candidate, true
		return nil
	})
	if err != nil {
		return "", false, s.fail("issue recovery code", err)
	}
	if created {
		s.log.Info("recovery code issued", zap.String("uid", accountID))
	}
	return code, created, nil
}

func (s *RecoveryService) uniqueRecoveryCode(tx *store.Tx) (string, error) {
	for i := 0; i < s.policy.RecoveryAttempts; i++ {
		candidate, err := s.ids.NewRecoveryCode()
		if err != nil {
			return "", err
		}
		_, err = tx.RecoveryCode(candidate)
		if errors.Is(err, store.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d attempts", errRecoveryCodeExhausted, s.policy.RecoveryAttempts)
}

// Transfer moves the account owning code onto the device newDeviceID. The identity step is
// atomic; the history copy that follows is best-effort and only logged on failure.
func (s *RecoveryService) Transfer(ctx context.Context, code, newDeviceID, platform, appVersion string) (*TransferResult, error) {
	code = identity.NormalizeRecoveryCode(code)
	if code == "" {
		return nil, invalidArgument("recovery code is required")
	}
	if len(newDeviceID) < identity.MinDeviceIDLength {
		return nil, invalidArgument("invalid device id")
	}
	if !identity.ValidRecoveryCode(code) {
		return nil, notFoundErr("recovery code not found")
	}
	fp := s.ids.Fingerprint(newDeviceID)

	var src, dst *models.Account
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		src, dst = nil, nil
		now := s.clock()

		rc, err := tx.RecoveryCode(code)
		if errors.Is(err, store.ErrNotFound) {
			return notFoundErr("recovery code not found")
		}
		if err != nil {
			return err
		}
		owner, err := tx.Account(rc.AccountID)
		if errors.Is(err, store.ErrNotFound) {
			return notFoundErr("recovery code not found")
		}
		if err != nil {
			return err
		}
		if !owner.IsActive() {
			return notFoundErr("recovery code not found")
		}

		if _, err := tx.ActiveAccountByFingerprint(fp); err == nil {
			return alreadyExists("device already has an active account")
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		id, err := s.ids.NewIdentity()
		if err != nil {
			return err
		}
		next := *owner
		next.ID = id
		next.DeviceFingerprint = fp
		next.ActiveFingerprint = &fp
		next.Status = models.AccountActive
		next.Platform = platform
		next.AppVersion = appVersion
		next.TransferredFrom = &owner.ID
		next.TransferredTo = nil
		next.Version = 0
		next.CreatedAt = now
		next.UpdatedAt = now
		next.LastLoginAt = now

		// Retire the source first so its fingerprint slot is free before the insert.
		owner.Status = models.AccountTransferred
		owner.TransferredTo = &next.ID
		owner.ActiveFingerprint = nil
		owner.UpdatedAt = now
		if err := tx.UpdateAccount(owner); err != nil {
			return err
		}
		if err := tx.CreateAccount(&next); err != nil {
			return err
		}

		rc.UpdatedAt = now
		if err := tx.MoveRecoveryCode(rc, next.ID); err != nil {
			return err
		}

		sum, err := tx.AttendanceSummary(owner.ID)
		if err != nil {
			return err
		}
		if sum.LastDate != "" {
			sum.AccountID = next.ID
			sum.UpdatedAt = now
			if err := tx.PutAttendanceSummary(&sum); err != nil {
				return err
			}
		}

		src, dst = owner, &next
		return nil
	})
	if err != nil {
		return nil, s.fail("transfer account", err)
	}

	s.log.Info("account transferred", zap.String("from", src.ID), zap.String("to", dst.ID))

	out := &TransferResult{
		NewAccountID: dst.ID,
		DisplayName:  dst.DisplayName,
		TokenBalance: dst.TokenBalance,
	}
	copyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyCopyTimeout)
	defer cancel()
	stats, err := s.store.CopyAccountHistory(copyCtx, src.ID, dst.ID, s.policy.CopyBatchSize)
	out.TransferredData = TransferredData{
		LedgerEntries:     stats.LedgerEntries,
		AttendanceRecords: stats.AttendanceRecords,
		Favorites:         stats.Favorites,
		Summary:           stats.Summary,
		Complete:          err == nil,
	}
	if err != nil {
		s.log.Warn("account history copy incomplete",
			zap.String("from", src.ID),
			zap.String("to", dst.ID),
			zap.Error(err))
	}
	return out, nil
}
