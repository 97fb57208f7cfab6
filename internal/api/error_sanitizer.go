package api

import (
	"net/http"
	"strings"

	"github.com/peerplay/consumption-dashboard/internal/pkg/logger"
)

// =============================================================================
// ERROR SANITIZER
// Warehouse and cache errors carry project ids, table names and SQL. They are
// logged server-side and replaced by generic messages in responses.
// =============================================================================

// sanitizedError logs the full internal error and returns a public-safe message.
func sanitizedError(code int, internalErr error, publicMsg string) string {
	if internalErr != nil {
		logger.Error(publicMsg, "status", code, "error", internalErr)
	}
	return publicMsg
}

// respondSafeError logs the internal error and sends a sanitized JSON error.
func respondSafeError(w http.ResponseWriter, code int, internalErr error, publicMsg string) {
	respondError(w, code, sanitizedError(code, internalErr, publicMsg))
}

// safeErrorMessage maps common internal error patterns to public-safe messages.
// For 400-level errors, the original message is returned.
func safeErrorMessage(code int, internalErr error) string {
	if code < 500 {
		if internalErr != nil {
			return internalErr.Error()
		}
		return "Bad request"
	}

	if internalErr == nil {
		return "An internal error occurred"
	}

	errStr := strings.ToLower(internalErr.Error())

	switch {
	case strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "Warehouse temporarily unavailable"

	case strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled"):
		return "Request timed out"

	case strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "bytes billed") ||
		strings.Contains(errStr, "rate limit"):
		return "Warehouse quota exceeded"

	case strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "access denied") ||
		strings.Contains(errStr, "credentials"):
		return "Access denied"

	case strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "does not exist"):
		return "Table not found"

	case strings.Contains(errStr, "sql") ||
		strings.Contains(errStr, "query") ||
		strings.Contains(errStr, "scan"):
		return "A query error occurred"

	default:
		return "An internal error occurred"
	}
}
