package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/anonid/services"
)

// RecoveryController serves recovery code and transfer callables.
type RecoveryController struct {
	recovery *services.RecoveryService
}

// NewRecoveryController creates a new controller instance.
func NewRecoveryController(svc *services.Services) *RecoveryController {
	return &RecoveryController{recovery: svc.Recovery}
}

// GetOrCreateRecoveryCode returns the account's recovery code, issuing one if needed.
func (r *RecoveryController) GetOrCreateRecoveryCode(ctx *gin.Context) {
	const op = "getOrCreateRecoveryCode"
	var req uidRequest
	if !bind(ctx, op, &req) {
		return
	}
	code, created, err := r.recovery.GetOrCreateRecoveryCode(ctx.Request.Context(), req.UID)
	if err != nil {
		fail(ctx, op, err)
		return
	}
	succeed(ctx, op, gin.H{"recoveryCode": code, "isNew": created})
}

type transferRequest struct {
	RecoveryCode string `json:"recoveryCode"`
	NewDeviceID  string `json:"newDeviceId"`
	Platform     string `json:"platform"`
	AppVersion   string `json:"appVersion"`
}

// TransferAccountData moves the account behind a recovery code to the calling device.
func (r *RecoveryController) TransferAccountData(ctx *gin.Context) {
	const op = "transferAccountData"
	var req transferRequest
	if !bind(ctx, op, &req) {
		return
	}
	res, err := r.recovery.Transfer(ctx.Request.Context(), req.RecoveryCode, req.NewDeviceID, req.Platform, req.AppVersion)
	if err != nil {
		fail(ctx, op, err)
		return
	}
	d := res.TransferredData
	succeed(ctx, op, gin.H{
		"newUid":     res.NewAccountID,
		"nickname":   res.DisplayName,
		"tokenCount": res.TokenBalance,
		"transferredData": gin.H{
			"ledgerEntries":     d.LedgerEntries,
			"attendanceRecords": d.AttendanceRecords,
			"favorites":         d.Favorites,
			"summary":           d.Summary,
			"complete":          d.Complete,
		},
	})
}
