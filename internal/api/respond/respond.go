// Package respond writes the JSON envelopes of the HTTP API and carries
// request-scoped values shared by middleware and handlers.
package respond

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/huangsam/codegrade/internal/api/dto"
	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/internal/ratelimit"
)

// genericInternalMessage replaces internal error details in production.
const genericInternalMessage = "Something went wrong. Please try again later."

type ctxKey int

const (
	requestIDKey ctxKey = iota
	loggerKey
)

// WithRequest stores the request id and a request-scoped logger in ctx.
func WithRequest(ctx context.Context, requestID string, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return context.WithValue(ctx, loggerKey, logger)
}

// RequestID returns the id of the current request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Logger returns the request-scoped logger, or the default logger.
func Logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger(r.Context()).Error("failed to encode JSON response", "error", err)
	}
}

// Success writes the success envelope.
func Success(w http.ResponseWriter, r *http.Request, status int, data any, message string) {
	JSON(w, r, status, dto.SuccessResponse{Success: true, Data: data, Message: message})
}

// Errors writes application errors. Production hides internal error details.
type Errors struct {
	Production bool
	Now        func() time.Time
}

func (e Errors) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Error writes err as an error envelope with its mapped status.
func (e Errors) Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.As(err)
	logger := Logger(r.Context())
	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", appErr.Code, "error", err)
	} else {
		logger.Debug("request rejected", "code", appErr.Code, "message", appErr.Message)
	}

	body := dto.ErrorResponse{
		Error:     appErr.Title(),
		Message:   appErr.Message,
		Code:      string(appErr.Code),
		Timestamp: e.now().UTC(),
		RequestID: RequestID(r.Context()),
		Data:      appErr.Data,
	}
	if appErr.Code == apperrors.ErrInternal && e.Production {
		body.Message = genericInternalMessage
	}
	if appErr.RetryAfter > 0 {
		secs := int(appErr.RetryAfter / time.Second)
		body.RetryAfter = &secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	JSON(w, r, status, body)
}

// Limited writes a limiter rejection.
func (e Errors) Limited(w http.ResponseWriter, r *http.Request, rej ratelimit.Rejection) {
	retryAfter := rej.RetryAfter
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	JSON(w, r, http.StatusTooManyRequests, dto.ErrorResponse{
		Error:           rej.Error,
		Message:         rej.Message,
		Code:            string(apperrors.ErrRateLimited),
		Timestamp:       e.now().UTC(),
		RequestID:       RequestID(r.Context()),
		RetryAfter:      &retryAfter,
		Window:          rej.Window,
		CurrentRequests: rej.CurrentRequests,
		MaxRequests:     rej.MaxRequests,
		Hint:            rej.Hint,
	})
}
