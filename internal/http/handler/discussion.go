package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agora.app/rounds/internal/http/dto"
	"agora.app/rounds/internal/service"
)

type DiscussionHandler struct {
	discussions service.DiscussionService
	rounds      service.RoundService
}

func NewDiscussionHandler(discussions service.DiscussionService, rounds service.RoundService) *DiscussionHandler {
	return &DiscussionHandler{discussions: discussions, rounds: rounds}
}

// Create starts a discussion with the caller as initiator.
func (h *DiscussionHandler) Create(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var req dto.CreateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: topic is required"})
		return
	}

	d, err := h.discussions.Create(c.Request.Context(), req.Topic, userID, req.InvitedUserIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToDiscussionResponse(d))
}

func (h *DiscussionHandler) Get(c *gin.Context) {
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.discussions.Get(c.Request.Context(), discussionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"discussion":      dto.ToDiscussionResponse(&view.Discussion),
		"round_number":    view.CurrentRound.Number,
		"phase":           view.CurrentRound.Phase,
		"active_count":    view.ActiveCount,
		"approval_holder": view.ApprovalHolder,
	})
}

func (h *DiscussionHandler) Join(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.discussions.Join(c.Request.Context(), discussionID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToParticipantResponse(p))
}

type setDelegateRequest struct {
	DelegateUserID int64 `json:"delegate_user_id,string" binding:"required"`
}

func (h *DiscussionHandler) SetDelegate(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req setDelegateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: delegate_user_id is required"})
		return
	}

	if err := h.discussions.SetDelegate(c.Request.Context(), discussionID, userID, req.DelegateUserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *DiscussionHandler) Participants(c *gin.Context) {
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	participants, err := h.discussions.Participants(c.Request.Context(), discussionID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]*dto.ParticipantResponse, len(participants))
	for i := range participants {
		out[i] = dto.ToParticipantResponse(&participants[i])
	}
	c.JSON(http.StatusOK, gin.H{"participants": out})
}

// Phase reports where the discussion stands: current round, phase, and the
// instants the clock will next act on.
func (h *DiscussionHandler) Phase(c *gin.Context) {
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	info, err := h.rounds.PhaseInfo(c.Request.Context(), discussionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
