// Package domain defines the error taxonomy shared by the voting core.
package domain

import "errors"

// Identity and session errors.
var (
	ErrUserNotFound    = errors.New("user does not exist")
	ErrCodeInvalid     = errors.New("invalid verification code")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrUnauthenticated = errors.New("not authenticated")
)

// Group registry errors.
var (
	ErrGroupNotFound = errors.New("group not found")
	ErrAlreadyMember = errors.New("already a member of this group")
	ErrInvalidName   = errors.New("name is required")
	ErrNotMember     = errors.New("not a member of this group")
)

// Poll engine errors.
var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrInvalidTitle   = errors.New("poll title is required")
	ErrInvalidEnd     = errors.New("poll end must be in the future")
	ErrPollClosed     = errors.New("poll has ended")
	ErrAlreadyVoted   = errors.New("already voted in this poll")
	ErrOptionNotFound = errors.New("option not found")
)
