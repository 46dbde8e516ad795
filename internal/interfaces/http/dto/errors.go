package dto

import "net/http"

// General error codes
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeNotFound    = "ERR_NOT_FOUND"
	ErrCodeUnavailable = "ERR_SERVICE_UNAVAILABLE"
)

// Sync error codes
const (
	// ErrCodeSyncInProgress is returned when a product refresh is already running
	ErrCodeSyncInProgress = "SYNC_IN_PROGRESS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:       http.StatusInternalServerError,
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeUnavailable:    http.StatusServiceUnavailable,
	ErrCodeSyncInProgress: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
