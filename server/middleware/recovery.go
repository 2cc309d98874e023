package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "github.com/skillsenselab/dispatch/errors"
	"github.com/skillsenselab/dispatch/logger"
)

// Recovery returns middleware that recovers from panics and returns a
// 500 JSON error response.
//
// Invariant violations are the exception: they are re-raised after logging
// so the process halts instead of serving a 500 from a corrupted state.
func Recovery(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logRecoveredPanic(log, err, r.URL.Path, r.Method, r.RemoteAddr)
					if isInvariantViolation(err) {
						panic(err)
					}
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// isInvariantViolation reports whether a recovered value carries the
// INVARIANT_VIOLATION error code.
func isInvariantViolation(v interface{}) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	appErr, ok := apperrors.AsAppError(err)
	return ok && appErr.Code == apperrors.ErrCodeInvariantViolation
}

// logRecoveredPanic logs a recovered panic with stack trace.
// If log is nil, the global logger is used.
func logRecoveredPanic(log *logger.Logger, err interface{}, path, method, remoteAddr string) {
	fields := map[string]interface{}{
		"error":     fmt.Sprintf("%v", err),
		"stack":     string(debug.Stack()),
		"path":      path,
		"method":    method,
		"remote_ip": remoteAddr,
	}
	if log != nil {
		log.Error("Panic recovered", fields)
	} else {
		logger.Error("Panic recovered", fields)
	}
}
