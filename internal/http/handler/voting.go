package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agora.app/rounds/internal/model"
	"agora.app/rounds/internal/service"
)

type VotingHandler struct {
	voting service.VotingService
}

func NewVotingHandler(voting service.VotingService) *VotingHandler {
	return &VotingHandler{voting: voting}
}

type castVoteRequest struct {
	LengthChoice string `json:"length_choice" binding:"required"`
	PacingChoice string `json:"pacing_choice" binding:"required"`
}

// Cast records or overwrites the caller's parameter vote for the open window.
func (h *VotingHandler) Cast(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: length_choice and pacing_choice are required"})
		return
	}

	err := h.voting.CastParameterVote(c.Request.Context(), discussionID, userID,
		model.VoteChoice(req.LengthChoice), model.VoteChoice(req.PacingChoice))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// Tallies returns the aggregate counts for the open window. Individual
// choices are never exposed.
func (h *VotingHandler) Tallies(c *gin.Context) {
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	tallies, err := h.voting.Tallies(c.Request.Context(), discussionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tallies)
}
