package polls

import (
	"strings"
	"time"

	"github.com/votify/backend/internal/domain"
	"github.com/votify/backend/internal/models"
)

// ValidateNew checks a poll-to-be before any storage work.
func ValidateNew(title string, end, now time.Time) error {
	if strings.TrimSpace(title) == "" {
		return domain.ErrInvalidTitle
	}
	if !end.After(now) {
		return domain.ErrInvalidEnd
	}
	return nil
}

// CheckVote decides whether the voter may cast a vote for the named option.
// Checks run in a fixed order so the first failing guard determines the
// reported error: membership, end date, double vote, option existence.
func CheckVote(p *models.Poll, voter, option string, isMember bool, now time.Time) error {
	if !isMember {
		return domain.ErrNotMember
	}
	if !now.Before(p.End) {
		return domain.ErrPollClosed
	}
	if p.HasVoted(voter) {
		return domain.ErrAlreadyVoted
	}
	if !p.HasOption(option) {
		return domain.ErrOptionNotFound
	}
	return nil
}

// CheckAddOption decides whether the actor may add the named option. A
// duplicate name is not an error: it reports skip=true and the caller treats
// the add as a no-op. Closed polls reject option adds.
func CheckAddOption(p *models.Poll, actor, name string, isMember bool, now time.Time) (skip bool, err error) {
	// names are stored trimmed, so the duplicate check must see the same form
	name = strings.TrimSpace(name)
	if !isMember {
		return false, domain.ErrNotMember
	}
	if !now.Before(p.End) {
		return false, domain.ErrPollClosed
	}
	if name == "" {
		return false, domain.ErrInvalidName
	}
	if p.HasOption(name) {
		return true, nil
	}
	return false, nil
}
