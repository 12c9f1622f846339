package groups

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/votify/backend/internal/domain"
	"github.com/votify/backend/internal/middleware"
	"github.com/votify/backend/internal/models"
	"github.com/votify/backend/pkg/response"
)

// Store is the persistence surface the handler needs.
type Store interface {
	Create(ctx context.Context, ownerEmail, name, description string) (int64, error)
	Join(ctx context.Context, email string, groupID int64) error
	ListForUser(ctx context.Context, email string) ([]models.Group, error)
	Info(ctx context.Context, id int64) (*Info, error)
	PublicInfo(ctx context.Context, id int64) (*PublicInfo, error)
}

// Handler exposes the group endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a groups handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /api/group. The caller becomes the group's admin.
func (h *Handler) Create(c *gin.Context) {
	email := c.GetString(middleware.ContextEmail)

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.BadRequest(c, "Group name is required")
		return
	}

	id, err := h.store.Create(c.Request.Context(), email, req.Name, req.Description)
	if err != nil {
		h.logger.Error("Failed to create group", zap.String("email", email), zap.Error(err))
		response.Internal(c)
		return
	}

	h.logger.Info("Group created", zap.Int64("group_id", id), zap.String("admin", email))
	response.OK(c, gin.H{"message": "Group created", "groupId": id})
}

// Join handles POST /api/group/:id/join.
func (h *Handler) Join(c *gin.Context) {
	email := c.GetString(middleware.ContextEmail)

	id, err := groupID(c)
	if err != nil {
		response.BadRequest(c, "Invalid group id")
		return
	}

	err = h.store.Join(c.Request.Context(), email, id)
	switch {
	case errors.Is(err, domain.ErrGroupNotFound):
		response.NotFound(c, "Group not found")
	case errors.Is(err, domain.ErrAlreadyMember):
		response.BadRequest(c, "Already a member of this group")
	case err != nil:
		h.logger.Error("Failed to join group", zap.Int64("group_id", id), zap.Error(err))
		response.Internal(c)
	default:
		h.logger.Info("User joined group", zap.Int64("group_id", id), zap.String("email", email))
		response.OK(c, gin.H{"success": true})
	}
}

// Info handles GET /api/group/:id/info. Members only.
func (h *Handler) Info(c *gin.Context) {
	id, err := groupID(c)
	if err != nil {
		response.BadRequest(c, "Invalid group id")
		return
	}

	info, err := h.store.Info(c.Request.Context(), id)
	if errors.Is(err, domain.ErrGroupNotFound) {
		response.NotFound(c, "Group not found")
		return
	}
	if err != nil {
		response.Internal(c)
		return
	}
	response.OK(c, gin.H{"group": info})
}

// Public handles GET /api/group/:id/public, the unauthenticated view used by
// invite links.
func (h *Handler) Public(c *gin.Context) {
	id, err := groupID(c)
	if err != nil {
		response.BadRequest(c, "Invalid group id")
		return
	}

	info, err := h.store.PublicInfo(c.Request.Context(), id)
	if errors.Is(err, domain.ErrGroupNotFound) {
		response.NotFound(c, "Group not found")
		return
	}
	if err != nil {
		response.Internal(c)
		return
	}
	response.OK(c, gin.H{"group": info})
}

// ListForUser handles GET /api/info/groups?email=.
func (h *Handler) ListForUser(c *gin.Context) {
	email := strings.ToLower(strings.TrimSpace(c.Query("email")))
	if email == "" {
		response.BadRequest(c, "Email is required")
		return
	}

	groups, err := h.store.ListForUser(c.Request.Context(), email)
	if errors.Is(err, domain.ErrUserNotFound) {
		response.NotFound(c, "User not found")
		return
	}
	if err != nil {
		response.Internal(c)
		return
	}
	response.OK(c, gin.H{"userGroups": groups})
}

func groupID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
