package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// RoomHandlers manages the conversations messages are relayed in: contact pairs and groups.
type RoomHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		log:   logger,
	}
}

// CreateContactRequest represents the create contact request body.
type CreateContactRequest struct {
	PeerID int64 `json:"peer_id" binding:"required,gt=0"`
}

// ContactResponse represents a contact pair in API responses.
type ContactResponse struct {
	ID        int64    `json:"id"`
	UserIDs   [2]int64 `json:"user_ids"`
	CreatedAt string   `json:"created_at"`
}

// CreateGroupRequest represents the create group request body.
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	OwnerID   int64  `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

// AddMemberRequest represents the add group member request body.
type AddMemberRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// CreateContact returns the contact between the caller and a peer, creating it if needed.
// POST /api/contacts
func (h *RoomHandlers) CreateContact(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create contact request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.PeerID == uid {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot add yourself as a contact"})
		return
	}

	contact, err := h.store.CreateContact(c.Request.Context(), uid, req.PeerID)
	if err != nil {
		if errors.Is(err, store.ErrForeignKey) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", uid).Int64("peer_id", req.PeerID).Msg("failed to create contact")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("contact_id", contact.ID).Int64("user_id", uid).Int64("peer_id", req.PeerID).Msg("contact ready")
	c.JSON(http.StatusOK, ContactResponse{
		ID:        contact.ID,
		UserIDs:   [2]int64{contact.UserLowID, contact.UserHighID},
		CreatedAt: contact.CreatedAt.Format(time.RFC3339),
	})
}

// CreateGroup creates a group owned by the caller.
// POST /api/groups
func (h *RoomHandlers) CreateGroup(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create group request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	group, err := h.store.CreateGroup(c.Request.Context(), req.Name, uid)
	if err != nil {
		h.log.Error().Err(err).Str("group_name", req.Name).Msg("failed to create group")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("group_name", group.Name).Int64("group_id", group.ID).Int64("owner_id", uid).Msg("group created successfully")
	c.JSON(http.StatusCreated, GroupResponse{
		ID:        group.ID,
		Name:      group.Name,
		OwnerID:   group.OwnerID,
		CreatedAt: group.CreatedAt.Format(time.RFC3339),
	})
}

// AddGroupMember lets the group owner add a member.
// POST /api/groups/:id/members
func (h *RoomHandlers) AddGroupMember(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	groupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || groupID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid group id"})
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add member request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	group, err := h.store.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
			return
		}
		h.log.Error().Err(err).Int64("group_id", groupID).Msg("failed to load group")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if group.OwnerID != uid {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the owner can add members"})
		return
	}

	if err := h.store.AddGroupMember(ctx, groupID, req.UserID); err != nil {
		if errors.Is(err, store.ErrForeignKey) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Int64("group_id", groupID).Int64("user_id", req.UserID).Msg("failed to add group member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("group_id", groupID).Int64("user_id", req.UserID).Msg("group member added")
	c.Status(http.StatusNoContent)
}
