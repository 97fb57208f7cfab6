package dashboard

import "errors"

// Sentinel errors for the dashboard service layer.
var (
	// ErrDataUnavailable wraps warehouse failures. Callers should still
	// render an empty dashboard.
	ErrDataUnavailable = errors.New("consumption data unavailable")
)
