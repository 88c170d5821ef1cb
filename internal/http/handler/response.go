package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"agora.app/rounds/internal/http/dto"
	"agora.app/rounds/internal/service"
)

type ResponseHandler struct {
	rounds service.RoundService
}

func NewResponseHandler(rounds service.RoundService) *ResponseHandler {
	return &ResponseHandler{rounds: rounds}
}

type submitResponseRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *ResponseHandler) Submit(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req submitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: content is required"})
		return
	}

	resp, err := h.rounds.SubmitResponse(c.Request.Context(), discussionID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToResponseBody(resp))
}

type editResponseRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *ResponseHandler) Edit(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	responseID, ok := pathID(c, "responseId")
	if !ok {
		return
	}

	var req editResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: content is required"})
		return
	}

	resp, err := h.rounds.EditResponse(c.Request.Context(), discussionID, userID, responseID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToResponseBody(resp))
}

// List returns the responses of one round, newest last.
func (h *ResponseHandler) List(c *gin.Context) {
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	roundNumber, err := strconv.Atoi(c.Param("roundNumber"))
	if err != nil || roundNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid roundNumber"})
		return
	}

	responses, err := h.rounds.ListResponses(c.Request.Context(), discussionID, roundNumber)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]*dto.ResponseBody, len(responses))
	for i := range responses {
		out[i] = dto.ToResponseBody(&responses[i])
	}
	c.JSON(http.StatusOK, gin.H{"responses": out})
}
