package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/status"

	"github.com/cppla/anonid/metrics"
	"github.com/cppla/anonid/services"
	"github.com/cppla/anonid/utils"
)

// bind decodes the JSON body into req, answering 400 when it is malformed.
func bind(ctx *gin.Context, op string, req any) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		metrics.RecordOperation(op, "InvalidArgument")
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return false
	}
	return true
}

func succeed(ctx *gin.Context, op string, data any) {
	metrics.RecordOperation(op, "OK")
	utils.Success(ctx, data)
}

func fail(ctx *gin.Context, op string, err error) {
	var extra gin.H
	var quota *services.QuotaError
	if errors.As(err, &quota) {
		extra = gin.H{"retryAfter": quota.RetryAt.UTC().Format(time.RFC3339)}
	}
	metrics.RecordOperation(op, status.Code(err).String())
	utils.ErrorFromStatus(ctx, err, extra)
}
