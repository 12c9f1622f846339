package polls

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/votify/backend/internal/domain"
	"github.com/votify/backend/internal/middleware"
	"github.com/votify/backend/internal/models"
	"github.com/votify/backend/pkg/response"
)

// Realtime event names published to group rooms.
const (
	EventPollCreated = "poll_created"
	EventOptionAdded = "option_added"
	EventVoteCast    = "vote_cast"
)

// Store is the persistence surface the handler needs.
type Store interface {
	Create(ctx context.Context, actorEmail string, groupID int64, title string, end time.Time) (int64, error)
	CastVote(ctx context.Context, voterEmail string, pollID int64, optionName string) error
	AddOption(ctx context.Context, actorEmail string, pollID int64, name, description string) error
	Get(ctx context.Context, actorEmail string, pollID int64) (*models.Poll, error)
	ListForGroup(ctx context.Context, actorEmail string, groupID int64) ([]models.Poll, error)
	ListForUser(ctx context.Context, email string) ([]models.PollWithGroup, error)
}

// Broadcaster fans poll events out to the group's live clients. Publish
// failures are the broadcaster's problem; mutations never wait on them.
type Broadcaster interface {
	Publish(ctx context.Context, groupID int64, event string, payload any)
}

// Handler exposes the poll endpoints.
type Handler struct {
	store     Store
	broadcast Broadcaster
	logger    *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(store Store, broadcast Broadcaster, logger *zap.Logger) *Handler {
	return &Handler{store: store, broadcast: broadcast, logger: logger}
}

type createRequest struct {
	GroupID int64     `json:"groupId"`
	Title   string    `json:"title"`
	End     time.Time `json:"end"`
}

// Create handles POST /api/poll.
func (h *Handler) Create(c *gin.Context) {
	email := c.GetString(middleware.ContextEmail)

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	id, err := h.store.Create(c.Request.Context(), email, req.GroupID, req.Title, req.End)
	switch {
	case errors.Is(err, domain.ErrInvalidTitle):
		response.BadRequest(c, "Poll title is required")
	case errors.Is(err, domain.ErrInvalidEnd):
		response.BadRequest(c, "Poll end date must be in the future")
	case errors.Is(err, domain.ErrNotMember):
		response.Forbidden(c, "Not a member of this group")
	case err != nil:
		h.logger.Error("Failed to create poll", zap.Int64("group_id", req.GroupID), zap.Error(err))
		response.Internal(c)
	default:
		h.logger.Info("Poll created", zap.Int64("poll_id", id), zap.Int64("group_id", req.GroupID))
		h.publish(c, req.GroupID, EventPollCreated, gin.H{"pollId": id, "title": req.Title})
		response.OK(c, gin.H{"message": "Poll created", "pollId": id})
	}
}

// Get handles GET /api/poll/:id.
func (h *Handler) Get(c *gin.Context) {
	email := c.GetString(middleware.ContextEmail)

	id, err := pollID(c)
	if err != nil {
		response.BadRequest(c, "Invalid poll id")
		return
	}

	p, err := h.store.Get(c.Request.Context(), email, id)
	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		response.NotFound(c, "Poll not found")
	case errors.Is(err, domain.ErrNotMember):
		response.Forbidden(c, "Not a member of this group")
	case err != nil:
		response.Internal(c)
	default:
		response.OK(c, gin.H{"poll": p})
	}
}

type optionRequest struct {
	Name        string `json:"optionName"`
	Description string `json:"optionDescription"`
}

// AddOption handles POST /api/poll/:id/option.
func (h *Handler) AddOption(c *gin.Context) {
	email := c.GetString(middleware.ContextEmail)

	id, err := pollID(c)
	if err != nil {
		response.BadRequest(c, "Invalid poll id")
		return
	}
	var req optionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	err = h.store.AddOption(c.Request.Context(), email, id, req.Name, req.Description)
	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		response.NotFound(c, "Poll not found")
	case errors.Is(err, domain.ErrNotMember):
		response.Forbidden(c, "Not a member of this group")
	case errors.Is(err, domain.ErrPollClosed):
		response.Conflict(c, "Poll has ended")
	case errors.Is(err, domain.ErrInvalidName):
		response.BadRequest(c, "Option name is required")
	case err != nil:
		h.logger.Error("Failed to add option", zap.Int64("poll_id", id), zap.Error(err))
		response.Internal(c)
	default:
		h.publishPoll(c, email, id, EventOptionAdded)
		response.OK(c, gin.H{"success": true})
	}
}

type voteRequest struct {
	Name string `json:"optionName"`
}

// Vote handles POST /api/poll/:id/vote.
func (h *Handler) Vote(c *gin.Context) {
	email := c.GetString(middleware.ContextEmail)

	id, err := pollID(c)
	if err != nil {
		response.BadRequest(c, "Invalid poll id")
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.BadRequest(c, "Option name is required")
		return
	}

	err = h.store.CastVote(c.Request.Context(), email, id, req.Name)
	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		response.NotFound(c, "Poll not found")
	case errors.Is(err, domain.ErrNotMember):
		response.Forbidden(c, "Not a member of this group")
	case errors.Is(err, domain.ErrPollClosed):
		response.Conflict(c, "Poll has ended")
	case errors.Is(err, domain.ErrAlreadyVoted):
		response.Conflict(c, "Already voted in this poll")
	case errors.Is(err, domain.ErrOptionNotFound):
		response.NotFound(c, "Option not found")
	case err != nil:
		h.logger.Error("Failed to cast vote", zap.Int64("poll_id", id), zap.Error(err))
		response.Internal(c)
	default:
		h.logger.Info("Vote cast", zap.Int64("poll_id", id))
		h.publishPoll(c, email, id, EventVoteCast)
		response.OK(c, gin.H{"success": true})
	}
}

// ListForGroup handles GET /api/group/:id/polls.
func (h *Handler) ListForGroup(c *gin.Context) {
	email := c.GetString(middleware.ContextEmail)

	groupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid group id")
		return
	}

	polls, err := h.store.ListForGroup(c.Request.Context(), email, groupID)
	switch {
	case errors.Is(err, domain.ErrNotMember):
		response.Forbidden(c, "Not a member of this group")
	case err != nil:
		response.Internal(c)
	default:
		response.OK(c, gin.H{"polls": polls})
	}
}

// ListForUser handles GET /api/info/polls?email=.
func (h *Handler) ListForUser(c *gin.Context) {
	email := strings.ToLower(strings.TrimSpace(c.Query("email")))
	if email == "" {
		response.BadRequest(c, "Email is required")
		return
	}

	polls, err := h.store.ListForUser(c.Request.Context(), email)
	if err != nil {
		response.Internal(c)
		return
	}
	response.OK(c, gin.H{"polls": polls})
}

// publishPoll reloads the poll and broadcasts its current counts.
func (h *Handler) publishPoll(c *gin.Context, email string, pollID int64, event string) {
	if h.broadcast == nil {
		return
	}
	p, err := h.store.Get(c.Request.Context(), email, pollID)
	if err != nil {
		h.logger.Warn("Failed to load poll for broadcast", zap.Int64("poll_id", pollID), zap.Error(err))
		return
	}
	h.publish(c, p.GroupID, event, gin.H{"poll": p})
}

func (h *Handler) publish(c *gin.Context, groupID int64, event string, payload any) {
	if h.broadcast == nil {
		return
	}
	h.broadcast.Publish(c.Request.Context(), groupID, event, payload)
}

func pollID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
