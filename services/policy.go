package services

import (
	"time"

	"github.com/cppla/anonid/models"
)

// Policy holds the reward amounts and abuse limits.
type Policy struct {
	WelcomeBonus       int64
	MaxDeviceCreations int
	CreationWindow     time.Duration
	WeekdayReward      int64
	WeekendReward      int64
	RewardZone         *time.Location
	RecoveryAttempts   int
	CopyBatchSize      int
	PopularLimit       int
	PopularCacheTTL    time.Duration
}

// DefaultPolicy returns the production policy.
func DefaultPolicy() Policy {
	return Policy{
		WelcomeBonus:       100,
		MaxDeviceCreations: 3,
		CreationWindow:     365 * 24 * time.Hour,
		WeekdayReward:      10,
		WeekendReward:      30,
		RewardZone:         time.FixedZone("KST", 9*60*60),
		RecoveryAttempts:   10,
		CopyBatchSize:      200,
		PopularLimit:       20,
		PopularCacheTTL:    15 * time.Minute,
	}
}

// creationRetryAt returns when a fingerprint may create its next account, or the zero time if
// it may do so now. events must be ordered oldest first.
func (p Policy) creationRetryAt(events []models.DeviceCreationEvent, now time.Time) time.Time {
	cutoff := now.Add(-p.CreationWindow)
	var recent []models.DeviceCreationEvent
	for _, ev := range events {
		if ev.CreatedAt.After(cutoff) {
			recent = append(recent, ev)
		}
	}
	if len(recent) < p.MaxDeviceCreations {
		return time.Time{}
	}
	return recent[0].CreatedAt.AddDate(1, 0, 0)
}

// rewardDay is the calendar day in the reward time zone.
type rewardDay struct {
	Date    string
	Weekday time.Weekday
}

func (p Policy) day(t time.Time) rewardDay {
	local := t.In(p.RewardZone)
	return rewardDay{Date: local.Format(dateLayout), Weekday: local.Weekday()}
}

func (d rewardDay) weekend() bool {
	return d.Weekday == time.Saturday || d.Weekday == time.Sunday
}

func (p Policy) reward(d rewardDay) int64 {
	if d.weekend() {
		return p.WeekendReward
	}
	return p.WeekdayReward
}

const dateLayout = "2006-01-02"

// daysBetween returns the number of calendar days from a to b, both in dateLayout.
func daysBetween(a, b string) (int, error) {
	ta, err := time.Parse(dateLayout, a)
	if err != nil {
		return 0, err
	}
	tb, err := time.Parse(dateLayout, b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}
