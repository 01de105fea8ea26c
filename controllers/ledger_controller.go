package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cppla/anonid/models"
	"github.com/cppla/anonid/services"
)

// LedgerController serves token balance callables.
type LedgerController struct {
	ledger *services.LedgerService
}

// NewLedgerController creates a new controller instance.
func NewLedgerController(svc *services.Services) *LedgerController {
	return &LedgerController{ledger: svc.Ledger}
}

type updateTokensRequest struct {
	UID         string `json:"uid"`
	Amount      *int64 `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// UpdateTokens applies a signed token delta.
func (l *LedgerController) UpdateTokens(ctx *gin.Context) {
	const op = "updateTokens"
	var req updateTokensRequest
	if !bind(ctx, op, &req) {
		return
	}
	if req.Amount == nil {
		fail(ctx, op, status.Error(codes.InvalidArgument, "uid, amount and type are required"))
		return
	}
	balance, err := l.ledger.ApplyDelta(ctx.Request.Context(), req.UID, *req.Amount, req.Type, req.Description)
	if err != nil {
		fail(ctx, op, err)
		return
	}
	succeed(ctx, op, gin.H{"tokenCount": balance})
}

type ledgerHistoryRequest struct {
	UID   string `json:"uid"`
	Limit int    `json:"limit"`
}

type ledgerEntryView struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      int64  `json:"amount"`
	Balance     int64  `json:"balance"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

func toLedgerView(e models.LedgerEntry) ledgerEntryView {
	return ledgerEntryView{
		ID:          e.ID,
		Type:        e.Kind,
		Amount:      e.Amount,
		Balance:     e.BalanceAfter,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GetLedgerHistory lists recent ledger entries, newest first.
func (l *LedgerController) GetLedgerHistory(ctx *gin.Context) {
	const op = "getLedgerHistory"
	var req ledgerHistoryRequest
	if !bind(ctx, op, &req) {
		return
	}
	entries, err := l.ledger.History(ctx.Request.Context(), req.UID, req.Limit)
	if err != nil {
		fail(ctx, op, err)
		return
	}
	views := make([]ledgerEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toLedgerView(e))
	}
	succeed(ctx, op, gin.H{"entries": views})
}
