package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// Error codes returned in errorResponse.Code.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeValidationFailed = "validation_failed"
	CodeRateLimited      = "rate_limited"
	CodeUpstreamFailed   = "upstream_failed"
	CodeNotConfigured    = "not_configured"
)
