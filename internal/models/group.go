package models

import "time"

// Role of a user inside a group. Admins receive poll-result notifications.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Group is a named collection of members owning zero or more polls.
// IDs are small monotonic integers (max+1) so they stay human-shareable
// as join codes.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

