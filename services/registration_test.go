package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/cppla/anonid/models"
	"github.com/cppla/anonid/services"
)

func (e *env) register(t *testing.T, deviceID string) *services.Registration {
	t.Helper()
	reg, err := e.svc.Registration.ResolveOrRegister(context.Background(), deviceID, "android", "1.0.0")
	require.NoError(t, err)
	return reg
}

// retire frees the fingerprint slot of an account the way a transfer does.
func (e *env) retire(t *testing.T, accountID string) {
	t.Helper()
	require.NoError(t, e.st.DB(context.Background()).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{"status": models.AccountTransferred, "active_fingerprint": nil}).Error)
}

func TestResolveOrRegister_NewDevice(t *testing.T) {
	e := newEnv(t)
	reg := e.register(t, "device-0000000001")

	assert.True(t, reg.IsNew)
	assert.Len(t, reg.AccountID, 32)
	assert.EqualValues(t, 100, reg.TokenBalance)
	assert.Regexp(t, `^익명\d{5}$`, reg.DisplayName)

	entries, err := e.svc.Ledger.History(context.Background(), reg.AccountID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LedgerWelcomeBonus, entries[0].Kind)
	assert.EqualValues(t, 100, entries[0].Amount)
	assert.EqualValues(t, 100, entries[0].BalanceAfter)

	var acc models.Account
	require.NoError(t, e.st.DB(context.Background()).Where("id = ?", reg.AccountID).Take(&acc).Error)
	assert.NotContains(t, acc.DeviceFingerprint, "device-0000000001")
	assert.Equal(t, e.ids.Fingerprint("device-0000000001"), acc.DeviceFingerprint)
}

func TestResolveOrRegister_ExistingDevice(t *testing.T) {
	e := newEnv(t)
	first := e.register(t, "device-0000000001")
	e.clock.Advance(time.Hour)

	again, err := e.svc.Registration.ResolveOrRegister(context.Background(), "device-0000000001", "ios", "2.0.0")
	require.NoError(t, err)
	assert.False(t, again.IsNew)
	assert.Equal(t, first.AccountID, again.AccountID)

	var acc models.Account
	require.NoError(t, e.st.DB(context.Background()).Where("id = ?", first.AccountID).Take(&acc).Error)
	assert.Equal(t, "ios", acc.Platform)
	assert.Equal(t, "2.0.0", acc.AppVersion)
	assert.True(t, acc.LastLoginAt.Equal(tuesdayNoonKST.Add(time.Hour)))

	var events int64
	require.NoError(t, e.st.DB(context.Background()).Model(&models.DeviceCreationEvent{}).Count(&events).Error)
	assert.EqualValues(t, 1, events)
}

func TestResolveOrRegister_ShortDeviceID(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Registration.ResolveOrRegister(context.Background(), "short", "android", "1.0.0")
	assertCode(t, err, codes.InvalidArgument)
}

func TestResolveOrRegister_ConcurrentSameDevice(t *testing.T) {
	e := newEnv(t)
	const n = 8

	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg, err := e.svc.Registration.ResolveOrRegister(context.Background(), "device-concurrent", "android", "1.0.0")
			errs[i] = err
			if err == nil {
				ids[i] = reg.AccountID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	var accounts int64
	require.NoError(t, e.st.DB(context.Background()).Model(&models.Account{}).Count(&accounts).Error)
	assert.EqualValues(t, 1, accounts)
}

func TestResolveOrRegister_CreationQuota(t *testing.T) {
	e := newEnv(t)
	const device = "device-quota-0001"
	first := tuesdayNoonKST

	for i := 0; i < 3; i++ {
		reg := e.register(t, device)
		require.True(t, reg.IsNew)
		e.retire(t, reg.AccountID)
		e.clock.Advance(24 * time.Hour)
	}

	_, err := e.svc.Registration.ResolveOrRegister(context.Background(), device, "android", "1.0.0")
	assertCode(t, err, codes.ResourceExhausted)
	var quota *services.QuotaError
	require.ErrorAs(t, err, &quota)
	assert.True(t, quota.RetryAt.Equal(first.AddDate(1, 0, 0)), quota.RetryAt)

	// Once the oldest creation leaves the window the device may create again.
	e.clock.Set(first.AddDate(1, 0, 0).Add(time.Hour))
	reg := e.register(t, device)
	assert.True(t, reg.IsNew)
}

func TestResolveOrRegister_QuotaIsPerFingerprint(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		e.retire(t, e.register(t, "device-quota-0001").AccountID)
	}
	reg := e.register(t, "device-quota-0002")
	assert.True(t, reg.IsNew)
}
