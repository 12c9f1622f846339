package polls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/votify/backend/internal/domain"
	"github.com/votify/backend/internal/models"
)

func testPoll(end time.Time) *models.Poll {
	return &models.Poll{
		ID:      1,
		GroupID: 7,
		Title:   "Next book",
		End:     end,
		Votes:   1,
		Options: []models.Option{
			{Name: "Dune", Votes: 1},
			{Name: "Neuromancer", Votes: 0},
		},
		VotedBy: []string{"alice@example.com"},
	}
}

func TestValidateNew(t *testing.T) {
	now := time.Now()

	require.NoError(t, ValidateNew("Next book", now.Add(time.Hour), now))
	require.ErrorIs(t, ValidateNew("", now.Add(time.Hour), now), domain.ErrInvalidTitle)
	require.ErrorIs(t, ValidateNew("   ", now.Add(time.Hour), now), domain.ErrInvalidTitle)
	require.ErrorIs(t, ValidateNew("Next book", now.Add(-time.Minute), now), domain.ErrInvalidEnd)
	require.ErrorIs(t, ValidateNew("Next book", now, now), domain.ErrInvalidEnd)
}

func TestCheckVote(t *testing.T) {
	now := time.Now()
	open := testPoll(now.Add(time.Hour))

	tests := []struct {
		name     string
		poll     *models.Poll
		voter    string
		option   string
		isMember bool
		want     error
	}{
		{"ok", open, "bob@example.com", "Dune", true, nil},
		{"not a member", open, "eve@example.com", "Dune", false, domain.ErrNotMember},
		{"poll ended", testPoll(now.Add(-time.Minute)), "bob@example.com", "Dune", true, domain.ErrPollClosed},
		{"double vote", open, "alice@example.com", "Dune", true, domain.ErrAlreadyVoted},
		{"unknown option", open, "bob@example.com", "Foundation", true, domain.ErrOptionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVote(tt.poll, tt.voter, tt.option, tt.isMember, now)
			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCheckVoteGuardOrder(t *testing.T) {
	// all guards would fire at once; membership must win
	now := time.Now()
	p := testPoll(now.Add(-time.Minute))
	err := CheckVote(p, "alice@example.com", "Foundation", false, now)
	require.ErrorIs(t, err, domain.ErrNotMember)

	// then the end date, before any per-voter state
	err = CheckVote(p, "alice@example.com", "Foundation", true, now)
	require.ErrorIs(t, err, domain.ErrPollClosed)
}

func TestCheckAddOption(t *testing.T) {
	now := time.Now()
	open := testPoll(now.Add(time.Hour))

	skip, err := CheckAddOption(open, "bob@example.com", "Foundation", true, now)
	require.NoError(t, err)
	require.False(t, skip)

	// duplicate name is a silent no-op
	skip, err = CheckAddOption(open, "bob@example.com", "Dune", true, now)
	require.NoError(t, err)
	require.True(t, skip)

	// padded duplicate collapses to the stored name before the check,
	// so it skips instead of colliding on insert
	skip, err = CheckAddOption(open, "bob@example.com", " Dune ", true, now)
	require.NoError(t, err)
	require.True(t, skip)

	_, err = CheckAddOption(open, "bob@example.com", "   ", true, now)
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = CheckAddOption(open, "eve@example.com", "Foundation", false, now)
	require.ErrorIs(t, err, domain.ErrNotMember)

	_, err = CheckAddOption(open, "bob@example.com", "", true, now)
	require.ErrorIs(t, err, domain.ErrInvalidName)

	closed := testPoll(now.Add(-time.Minute))
	_, err = CheckAddOption(closed, "bob@example.com", "Foundation", true, now)
	require.ErrorIs(t, err, domain.ErrPollClosed)
}
