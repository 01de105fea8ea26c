package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, 200, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// HTTPStatus maps an error kind to the HTTP status and envelope code used on the wire.
func HTTPStatus(c codes.Code) (int, int) {
	switch c {
	case codes.InvalidArgument:
		return http.StatusBadRequest, 40000
	case codes.NotFound:
		return http.StatusNotFound, 40400
	case codes.AlreadyExists:
		return http.StatusConflict, 40900
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed, 41200
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests, 42900
	case codes.Canceled:
		return 499, 49900
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout, 50400
	default:
		return http.StatusInternalServerError, 50000
	}
}

// ErrorFromStatus writes err as an error envelope. The kind name goes into data.error next to
// any extra fields; errors without a status are reported as Internal without their text.
func ErrorFromStatus(ctx *gin.Context, err error, extra gin.H) {
	st, ok := status.FromError(err)
	if !ok {
		st = status.New(codes.Internal, "internal error")
	}
	httpStatus, code := HTTPStatus(st.Code())
	data := gin.H{"error": st.Code().String()}
	for k, v := range extra {
		data[k] = v
	}
	Respond(ctx, httpStatus, code, st.Message(), data)
}
