package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cppla/anonid/identity"
	"github.com/cppla/anonid/models"
	"github.com/cppla/anonid/store"
)

// Registration is the identity resolved for a device.
type Registration struct {
	AccountID    string
	IsNew        bool
	DisplayName  string
	TokenBalance int64
}

// RegistrationService issues identities for devices.
type RegistrationService struct {
	*core
}

// ResolveOrRegister returns the active account of the device, creating one when the device
// has none and is still within its creation quota.
func (s *RegistrationService) ResolveOrRegister(ctx context.Context, deviceID, platform, appVersion string) (*Registration, error) {
	if len(deviceID) < identity.MinDeviceIDLength {
		return nil, invalidArgument("invalid device id")
	}
	fp := s.ids.Fingerprint(deviceID)

	var out *Registration
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		out = nil
		now := s.clock()

		acc, err := tx.ActiveAccountByFingerprint(fp)
		if err == nil {
			acc.LastLoginAt = now
			acc.Platform = platform
			acc.AppVersion = appVersion
			if err := tx.UpdateAccount(acc); err != nil {
				return err
			}
			out = &Registration{AccountID: acc.ID, DisplayName: acc.DisplayName, TokenBalance: acc.TokenBalance}
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		events, err := tx.DeviceCreationEvents(fp)
		if err != nil {
			return err
		}
		if retryAt := s.policy.creationRetryAt(events, now); !retryAt.IsZero() {
			return &QuotaError{Count: len(events), RetryAt: retryAt}
		}

		id, err := s.ids.NewIdentity()
		if err != nil {
			return err
		}
		acc = &models.Account{
			ID:                id,
			DeviceFingerprint: fp,
			ActiveFingerprint: &fp,
			DisplayName:       defaultNickname(now.UnixMilli()),
			Status:            models.AccountActive,
			Platform:          platform,
			AppVersion:        appVersion,
			CreatedAt:         now,
			UpdatedAt:         now,
			LastLoginAt:       now,
		}
		entry, err := credit(acc, s.policy.WelcomeBonus, models.LedgerWelcomeBonus, "welcome bonus", now)
		if err != nil {
			return err
		}
		if err := tx.CreateAccount(acc); err != nil {
			return err
		}
		if err := tx.InsertLedgerEntry(entry); err != nil {
			return err
		}
		if err := tx.InsertDeviceCreationEvent(&models.DeviceCreationEvent{
			ID:          uuid.NewString(),
			Fingerprint: fp,
			AccountID:   acc.ID,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		out = &Registration{AccountID: acc.ID, IsNew: true, DisplayName: acc.DisplayName, TokenBalance: acc.TokenBalance}
		return nil
	})
	if err != nil {
		return nil, s.fail("register device", err)
	}
	if out.IsNew {
		s.log.Info("account registered", zap.String("uid", out.AccountID), zap.String("platform", platform))
	}
	return out, nil
}

func defaultNickname(ms int64) string {
	return fmt.Sprintf("익명%05d", ms%100000)
}
