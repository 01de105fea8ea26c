package controllers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/cppla/anonid/services"
)

// AccountController serves device registration and profile callables.
type AccountController struct {
	registration *services.RegistrationService
	profile      *services.ProfileService
}

// NewAccountController creates a new controller instance.
func NewAccountController(svc *services.Services) *AccountController {
	return &AccountController{registration: svc.Registration, profile: svc.Profile}
}

type registerDeviceRequest struct {
	DeviceID   string `json:"deviceId"`
	Platform   string `json:"platform"`
	AppVersion string `json:"appVersion"`
}

// RegisterDevice returns the account of the calling device, creating it on first contact.
func (a *AccountController) RegisterDevice(ctx *gin.Context) {
	const op = "registerDevice"
	var req registerDeviceRequest
	if !bind(ctx, op, &req) {
		return
	}
	reg, err := a.registration.ResolveOrRegister(ctx.Request.Context(), req.DeviceID, req.Platform, req.AppVersion)
	if err != nil {
		fail(ctx, op, err)
		return
	}
	succeed(ctx, op, gin.H{
		"uid":        reg.AccountID,
		"isNewUser":  reg.IsNew,
		"nickname":   reg.DisplayName,
		"tokenCount": reg.TokenBalance,
	})
}

type verifyUIDRequest struct {
	UID      string `json:"uid"`
	DeviceID string `json:"deviceId"`
}

// VerifyUID checks a stored uid against the calling device.
func (a *AccountController) VerifyUID(ctx *gin.Context) {
	const op = "verifyUID"
	var req verifyUIDRequest
	if !bind(ctx, op, &req) {
		return
	}
	v, err := a.profile.VerifyUID(ctx.Request.Context(), req.UID, req.DeviceID)
	if err != nil {
		fail(ctx, op, err)
		return
	}
	if !v.Valid {
		succeed(ctx, op, gin.H{"valid": false, "reason": v.Reason})
		return
	}
	succeed(ctx, op, gin.H{
		"valid":         true,
		"nickname":      v.DisplayName,
		"tokenCount":    v.TokenBalance,
		"favoriteCount": v.FavoriteCount,
		"commentCount":  v.CommentCount,
	})
}

type updateNicknameRequest struct {
	UID      string `json:"uid"`
	Nickname string `json:"nickname"`
}

// UpdateNickname changes the display name.
func (a *AccountController) UpdateNickname(ctx *gin.Context) {
	const op = "updateNickname"
	var req updateNicknameRequest
	if !bind(ctx, op, &req) {
		return
	}
	nickname, err := a.profile.UpdateNickname(ctx.Request.Context(), req.UID, req.Nickname)
	if err != nil {
		fail(ctx, op, err)
		return
	}
	succeed(ctx, op, gin.H{"nickname": nickname})
}

type toggleFavoriteRequest struct {
	UID      string          `json:"uid"`
	NewsID   string          `json:"newsId"`
	NewsData json.RawMessage `json:"newsData"`
}

// ToggleFavorite adds or removes a favorite news item.
func (a *AccountController) ToggleFavorite(ctx *gin.Context) {
	const op = "toggleFavorite"
	var req toggleFavoriteRequest
	if !bind(ctx, op, &req) {
		return
	}
	added, err := a.profile.ToggleFavorite(ctx.Request.Context(), req.UID, req.NewsID, req.NewsData)
	if err != nil {
		fail(ctx, op, err)
		return
	}
	action := "removed"
	if added {
		action = "added"
	}
	succeed(ctx, op, gin.H{"action": action})
}
