package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cppla/anonid/models"
)

const day = 24 * time.Hour

func TestClaim_FirstClaimOnTuesday(t *testing.T) {
	e := newEnv(t)
	uid := e.register(t, "device-attend-01").AccountID

	res, err := e.svc.Attendance.Claim(context.Background(), uid)
	require.NoError(t, err)
	assert.EqualValues(t, 10, res.RewardAmount)
	assert.EqualValues(t, 110, res.NewBalance)
	assert.Equal(t, 1, res.ConsecutiveDays)
	assert.Equal(t, 1, res.TotalDays)
	assert.False(t, res.IsWeekend)

	entries := e.ledger(t, uid)
	require.Len(t, entries, 2)
	assert.Equal(t, models.LedgerDailyAttendance, entries[1].Kind)
	assertChain(t, entries, 110)

	var rec models.AttendanceRecord
	require.NoError(t, e.st.DB(context.Background()).Where("account_id = ?", uid).Take(&rec).Error)
	assert.Equal(t, "2024-03-05", rec.Date)
	assert.Equal(t, int(time.Tuesday), rec.DayOfWeek)
}

func TestClaim_SameDayTwice(t *testing.T) {
	e := newEnv(t)
	uid := e.register(t, "device-attend-01").AccountID
	_, err := e.svc.Attendance.Claim(context.Background(), uid)
	require.NoError(t, err)

	e.clock.Advance(10 * time.Hour) // 22:00 in the reward zone, same day
	_, err = e.svc.Attendance.Claim(context.Background(), uid)
	assertCode(t, err, codes.AlreadyExists)
	assert.Len(t, e.ledger(t, uid), 2)
}

func TestClaim_DayBoundaryFollowsRewardZone(t *testing.T) {
	e := newEnv(t)
	uid := e.register(t, "device-attend-01").AccountID

	e.clock.Set(time.Date(2024, 3, 5, 14, 59, 0, 0, time.UTC)) // Tue 23:59 KST
	_, err := e.svc.Attendance.Claim(context.Background(), uid)
	require.NoError(t, err)

	e.clock.Set(time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)) // Wed 00:00 KST, still Tuesday in UTC
	res, err := e.svc.Attendance.Claim(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ConsecutiveDays)
}

func TestClaim_StreakWeekendAndReset(t *testing.T) {
	e := newEnv(t)
	uid := e.register(t, "device-attend-01").AccountID
	ctx := context.Background()

	// Tue..Sat
	want := []struct {
		reward  int64
		streak  int
		weekend bool
	}{
		{10, 1, false}, {10, 2, false}, {10, 3, false}, {10, 4, false}, {30, 5, true},
	}
	for i, w := range want {
		got, err := e.svc.Attendance.Claim(ctx, uid)
		require.NoError(t, err, "day %d", i)
		assert.Equal(t, w.reward, got.RewardAmount, "day %d", i)
		assert.Equal(t, w.streak, got.ConsecutiveDays, "day %d", i)
		assert.Equal(t, w.weekend, got.IsWeekend, "day %d", i)
		e.clock.Advance(day)
	}

	// Skip Sunday, claim Monday.
	e.clock.Advance(day)
	got, err := e.svc.Attendance.Claim(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ConsecutiveDays)
	assert.Equal(t, 6, got.TotalDays)
	assert.EqualValues(t, 100+4*10+30+10, got.NewBalance)

	st, err := e.svc.Attendance.Status(ctx, uid)
	require.NoError(t, err)
	assert.True(t, st.HasClaimedToday)
	assert.Equal(t, "2024-03-11", st.TodayDate)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 5, st.MaxStreak)
	assert.Equal(t, 6, st.TotalDays)
	assert.Equal(t, "2024-03-11", st.LastAttendanceDate)
}

func TestClaim_ClockMovedBackwardsResetsStreak(t *testing.T) {
	e := newEnv(t)
	uid := e.register(t, "device-attend-01").AccountID
	ctx := context.Background()

	_, err := e.svc.Attendance.Claim(ctx, uid)
	require.NoError(t, err)
	e.clock.Advance(day)
	_, err = e.svc.Attendance.Claim(ctx, uid)
	require.NoError(t, err)

	e.clock.Advance(-3 * day)
	res, err := e.svc.Attendance.Claim(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ConsecutiveDays)
	assert.Equal(t, 3, res.TotalDays)
}

func TestClaim_Concurrent(t *testing.T) {
	e := newEnv(t)
	uid := e.register(t, "device-attend-01").AccountID
	const n = 10

	var wg sync.WaitGroup
	results := make(chan codes.Code, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Attendance.Claim(context.Background(), uid)
			results <- status.Code(err)
		}()
	}
	wg.Wait()
	close(results)

	counts := map[codes.Code]int{}
	for c := range results {
		counts[c]++
	}
	assert.Equal(t, map[codes.Code]int{codes.OK: 1, codes.AlreadyExists: n - 1}, counts)
	assertChain(t, e.ledger(t, uid), 110)
}

func TestClaim_Errors(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Attendance.Claim(context.Background(), "")
	assertCode(t, err, codes.InvalidArgument)
	_, err = e.svc.Attendance.Claim(context.Background(), "missing")
	assertCode(t, err, codes.NotFound)
	_, err = e.svc.Attendance.Status(context.Background(), "missing")
	assertCode(t, err, codes.NotFound)
}

func TestStatus_BeforeFirstClaim(t *testing.T) {
	e := newEnv(t)
	uid := e.register(t, "device-attend-01").AccountID

	st, err := e.svc.Attendance.Status(context.Background(), uid)
	require.NoError(t, err)
	assert.False(t, st.HasClaimedToday)
	assert.Equal(t, "2024-03-05", st.TodayDate)
	assert.Zero(t, st.CurrentStreak)
	assert.Empty(t, st.LastAttendanceDate)
}
