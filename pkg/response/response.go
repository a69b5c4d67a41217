package response

import (
	"errors"
	"net/http"
	"time"

	"settlement-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      any    `json:"data"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data any) {
	JSON(c, http.StatusOK, data)
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data any) {
	JSON(c, http.StatusCreated, data)
}

// Accepted sends a 202 response, used when the request was taken but the
// outcome is settled asynchronously.
func Accepted(c *gin.Context, data any) {
	JSON(c, http.StatusAccepted, data)
}

// JSON wraps data in the success envelope with an arbitrary status.
func JSON(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope(c, data))
}

// Envelope builds the success envelope without writing it, so callers can
// persist the exact body for idempotent replays.
func Envelope(c *gin.Context, data any) SuccessResponse {
	return SuccessResponse{
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: stamp(),
	}
}

// Raw writes a previously rendered JSON body as-is.
func Raw(c *gin.Context, status int, body []byte) {
	c.Data(status, "application/json; charset=utf-8", body)
}

// Error writes the error envelope. The first *apperror.AppError in err's
// chain picks the status and code; its cause is never rendered. Anything
// unclassified is a SYS_000.
func Error(c *gin.Context, err error) {
	status, code, msg := http.StatusInternalServerError, "SYS_000", "Internal server error"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, code, msg = appErr.HTTPStatus, appErr.Code, appErr.Message
	}
	c.JSON(status, ErrorResponse{
		ErrorCode: code,
		Message:   msg,
		RequestID: getRequestID(c),
		Timestamp: stamp(),
	})
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func getRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
