package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"agora.app/rounds/internal/service"
)

type ModerationHandler struct {
	moderation  service.ModerationService
	adminAPIKey string
}

func NewModerationHandler(moderation service.ModerationService, adminAPIKey string) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, adminAPIKey: adminAPIKey}
}

type removalRequest struct {
	TargetUserID int64 `json:"target_user_id,string" binding:"required"`
}

// Remove initiates a mutual removal. Both parties leave active status.
func (h *ModerationHandler) Remove(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req removalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: target_user_id is required"})
		return
	}

	if err := h.moderation.InitiateMutualRemoval(c.Request.Context(), discussionID, userID, req.TargetUserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// Ballot casts a hidden removal vote during the voting window.
func (h *ModerationHandler) Ballot(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req removalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: target_user_id is required"})
		return
	}

	if err := h.moderation.CastRemovalBallot(c.Request.Context(), discussionID, userID, req.TargetUserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (h *ModerationHandler) Progress(c *gin.Context) {
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	progress, err := h.moderation.RemovalProgress(c.Request.Context(), discussionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Escalation reports the caller's standing against the lifetime limits.
func (h *ModerationHandler) Escalation(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := h.moderation.EscalationStatus(c.Request.Context(), discussionID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type moderationEventResponse struct {
	ID          int64     `json:"id,string"`
	RoundID     int64     `json:"round_id,string"`
	ActionType  string    `json:"action_type"`
	InitiatorID int64     `json:"initiator_id,string"`
	TargetID    int64     `json:"target_id,string"`
	Permanent   bool      `json:"permanent"`
	CreatedAt   time.Time `json:"created_at"`
}

// Events lists the moderation log (admin only).
func (h *ModerationHandler) Events(c *gin.Context) {
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	events, err := h.moderation.ListEvents(c.Request.Context(), discussionID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]moderationEventResponse, len(events))
	for i, e := range events {
		out[i] = moderationEventResponse{
			ID:          e.ID,
			RoundID:     e.RoundID,
			ActionType:  string(e.ActionType),
			InitiatorID: e.InitiatorID,
			TargetID:    e.TargetID,
			Permanent:   e.Permanent,
			CreatedAt:   e.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

// RequireAdminAPIKey guards admin routes with a constant-time key check.
func (h *ModerationHandler) RequireAdminAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Admin-API-Key")
		if h.adminAPIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.adminAPIKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
