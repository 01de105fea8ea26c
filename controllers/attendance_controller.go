package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/anonid/services"
)

// AttendanceController serves the daily reward callables.
type AttendanceController struct {
	attendance *services.AttendanceService
}

// NewAttendanceController creates a new controller instance.
func NewAttendanceController(svc *services.Services) *AttendanceController {
	return &AttendanceController{attendance: svc.Attendance}
}

type uidRequest struct {
	UID string `json:"uid"`
}

// ClaimDailyReward pays today's attendance reward.
func (a *AttendanceController) ClaimDailyReward(ctx *gin.Context) {
	const op = "claimDailyReward"
	var req uidRequest
	if !bind(ctx, op, &req) {
		return
	}
	res, err := a.attendance.Claim(ctx.Request.Context(), req.UID)
	if err != nil {
		fail(ctx, op, err)
		return
	}
	succeed(ctx, op, gin.H{
		"rewardTokens":    res.RewardAmount,
		"newBalance":      res.NewBalance,
		"consecutiveDays": res.ConsecutiveDays,
		"totalDays":       res.TotalDays,
		"isWeekend":       res.IsWeekend,
	})
}

// GetAttendanceStatus reports today's claim state and streak counters.
func (a *AttendanceController) GetAttendanceStatus(ctx *gin.Context) {
	const op = "getAttendanceStatus"
	var req uidRequest
	if !bind(ctx, op, &req) {
		return
	}
	st, err := a.attendance.Status(ctx.Request.Context(), req.UID)
	if err != nil {
		fail(ctx, op, err)
		return
	}
	var last any
	if st.LastAttendanceDate != "" {
		last = st.LastAttendanceDate
	}
	succeed(ctx, op, gin.H{
		"hasClaimedToday":    st.HasClaimedToday,
		"todayDate":          st.TodayDate,
		"currentStreak":      st.CurrentStreak,
		"maxStreak":          st.MaxStreak,
		"totalDays":          st.TotalDays,
		"lastAttendanceDate": last,
	})
}
