package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeMissingField   = "missing_field"

	// Resource errors
	ErrCodeNotFound        = "not_found"
	ErrCodeSessionNotFound = "session_not_found"
	ErrCodeReviewNotFound  = "review_not_found"

	// Session flow errors
	ErrCodeSessionStartFailed = "session_start_failed"
	ErrCodeAlreadySubmitted   = "already_submitted"
	ErrCodeSubmitFailed       = "submit_failed"

	// Peripheral view errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
	ErrCodeEmailSendFailed        = "email_send_failed"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
