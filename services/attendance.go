package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cppla/anonid/models"
	"github.com/cppla/anonid/store"
)

// ClaimResult is the outcome of a successful daily claim.
type ClaimResult struct {
	RewardAmount    int64
	NewBalance      int64
	ConsecutiveDays int
	TotalDays       int
	IsWeekend       bool
}

// AttendanceStatus describes the streak state of an account.
type AttendanceStatus struct {
	HasClaimedToday    bool
	TodayDate          string
	CurrentStreak      int
	MaxStreak          int
	TotalDays          int
	LastAttendanceDate string
}

// AttendanceService pays the daily attendance reward.
type AttendanceService struct {
	*core
}

// nextStreak computes the streak after a claim on today given the stored summary.
// A summary dated after today (clock moved backwards) resets the streak like a gap does.
func nextStreak(sum models.AttendanceSummary, today string) (int, error) {
	if sum.LastDate == "" {
		return 1, nil
	}
	delta, err := daysBetween(sum.LastDate, today)
	if err != nil {
		return 0, fmt.Errorf("parse attendance dates: %w", err)
	}
	switch {
	case delta == 0:
		return 0, alreadyExists("already claimed today")
	case delta == 1:
		return sum.CurrentStreak + 1, nil
	default:
		return 1, nil
	}
}

// Claim pays today's reward once per account and reward-calendar day.
func (s *AttendanceService) Claim(ctx context.Context, accountID string) (*ClaimResult, error) {
	if accountID == "" {
		return nil, invalidArgument("uid is required")
	}

	var out *ClaimResult
	var backwards bool
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		out, backwards = nil, false
		now := s.clock()
		day := s.policy.day(now)

		acc, err := loadActive(tx, accountID)
		if err != nil {
			return err
		}
		if _, err := tx.AttendanceRecord(accountID, day.Date); err == nil {
			return alreadyExists("already claimed today")
		} else if err != store.ErrNotFound {
			return err
		}

		sum, err := tx.AttendanceSummary(accountID)
		if err != nil {
			return err
		}
		backwards = sum.LastDate > day.Date
		streak, err := nextStreak(sum, day.Date)
		if err != nil {
			return err
		}

		reward := s.policy.reward(day)
		entry, err := post(tx, acc, reward, models.LedgerDailyAttendance, "daily attendance reward", now)
		if err != nil {
			return err
		}
		if err := tx.InsertAttendanceRecord(&models.AttendanceRecord{
			AccountID:       accountID,
			Date:            day.Date,
			RewardAmount:    reward,
			DayOfWeek:       int(day.Weekday),
			ConsecutiveDays: streak,
			IsWeekend:       day.weekend(),
			CreatedAt:       now,
		}); err != nil {
			return err
		}

		sum.CurrentStreak = streak
		sum.MaxStreak = max(sum.MaxStreak, streak)
		sum.TotalDays++
		sum.LastDate = day.Date
		sum.UpdatedAt = now
		if err := tx.PutAttendanceSummary(&sum); err != nil {
			return err
		}

		out = &ClaimResult{
			RewardAmount:    reward,
			NewBalance:      entry.BalanceAfter,
			ConsecutiveDays: streak,
			TotalDays:       sum.TotalDays,
			IsWeekend:       day.weekend(),
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("claim daily reward", err)
	}
	if backwards {
		s.log.Warn("attendance date earlier than last claim, streak reset", zap.String("uid", accountID))
	}
	return out, nil
}

// Status reports today's claim state and the streak counters.
func (s *AttendanceService) Status(ctx context.Context, accountID string) (*AttendanceStatus, error) {
	if accountID == "" {
		return nil, invalidArgument("uid is required")
	}
	var out *AttendanceStatus
	err := s.store.RunTransaction(ctx, func(tx *store.Tx) error {
		today := s.policy.day(s.clock()).Date
		if _, err := tx.Account(accountID); err != nil {
			if err == store.ErrNotFound {
				return notFoundErr("user not found")
			}
			return err
		}
		_, err := tx.AttendanceRecord(accountID, today)
		if err != nil && err != store.ErrNotFound {
			return err
		}
		claimed := err == nil
		sum, err := tx.AttendanceSummary(accountID)
		if err != nil {
			return err
		}
		out = &AttendanceStatus{
			HasClaimedToday:    claimed,
			TodayDate:          today,
			CurrentStreak:      sum.CurrentStreak,
			MaxStreak:          sum.MaxStreak,
			TotalDays:          sum.TotalDays,
			LastAttendanceDate: sum.LastDate,
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("load attendance status", err)
	}
	return out, nil
}
