package models

import "time"

// Option is a named choice within a poll. Names are unique per poll.
// JSON field names match the client wire format.
type Option struct {
	Name        string `json:"optionName"`
	Description string `json:"optionDescription,omitempty"`
	Votes       int    `json:"votes"`
}

// Poll is a time-bounded question owned by exactly one group. Invariant:
// Votes == sum of option votes == len(VotedBy).
type Poll struct {
	ID      int64     `json:"id"`
	GroupID int64     `json:"groupId"`
	Title   string    `json:"title"`
	End     time.Time `json:"end"`
	Votes   int       `json:"votes"`
	Options []Option  `json:"options"`
	VotedBy []string  `json:"alreadyVoted"`
}

// HasOption reports whether an option with the given name exists.
func (p *Poll) HasOption(name string) bool {
	for _, o := range p.Options {
		if o.Name == name {
			return true
		}
	}
	return false
}

// HasVoted reports whether the email is already in the voted-by set.
func (p *Poll) HasVoted(email string) bool {
	for _, v := range p.VotedBy {
		if v == email {
			return true
		}
	}
	return false
}

// PollWithGroup pairs a poll with its group name for cross-group listings.
type PollWithGroup struct {
	Poll      Poll   `json:"poll"`
	GroupName string `json:"groupName"`
}

// ExpiredPoll is the snapshot the expiry sweep hands to the notifier after
// removing a poll: final counts plus the admins to notify.
type ExpiredPoll struct {
	Poll        Poll
	GroupName   string
	AdminEmails []string
}
