package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QuotaError is returned when a device has used up its account creations.
type QuotaError struct {
	Count   int
	RetryAt time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("device account creation limit reached, retry after %s", e.RetryAt.Format(time.RFC3339))
}

// GRPCStatus classifies the error as ResourceExhausted.
func (e *QuotaError) GRPCStatus() *status.Status {
	return status.New(codes.ResourceExhausted, e.Error())
}

func invalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

func notFoundErr(msg string) error {
	return status.Error(codes.NotFound, msg)
}

func alreadyExists(msg string) error {
	return status.Error(codes.AlreadyExists, msg)
}

func failedPrecondition(msg string) error {
	return status.Error(codes.FailedPrecondition, msg)
}

// fail passes classified errors through and turns everything else into a generic Internal
// error after logging the cause.
func (c *core) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var quota *QuotaError
	if errors.As(err, &quota) {
		return quota
	}
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	c.log.Error(op+" failed", zap.Error(err))
	return status.Error(codes.Internal, op+" failed")
}
