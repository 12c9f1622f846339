package models

// EmailType identifies what kind of notification was dispatched.
const (
	EmailTypeVerificationCode = "verification_code"
	EmailTypePollResults      = "poll_results"
)

// EmailLogStatus for delivery. Rows start pending and end sent or failed.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)
