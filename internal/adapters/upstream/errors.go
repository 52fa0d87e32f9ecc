package upstream

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for scoring API calls.
var (
	ErrNotConfigured = errors.New("scoring api base url is not configured")
	ErrEncode        = errors.New("encode request failed")
	ErrRequest       = errors.New("scoring api request failed")
	ErrDecode        = errors.New("decode response failed")
)

// APIError is a non-2xx answer. Detail holds the server's message when the
// body carried one.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("scoring api returned status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("scoring api returned status %d", e.Status)
}

// User-facing messages shown when a call fails.
const (
	MsgTodayFailed         = "Unable to fetch your results. Please try again."
	MsgCompatibilityFailed = "Unable to fetch compatibility results. Please try again."
	MsgMoonSignFailed      = "Unable to calculate Moon sign. Please try again."
)

// UserMessage returns the text to show for err: the server's detail when
// present, otherwise fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}
