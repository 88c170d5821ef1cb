package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agora.app/rounds/internal/http/dto"
	"agora.app/rounds/internal/service"
)

type ObserverHandler struct {
	observers service.ObserverService
}

func NewObserverHandler(observers service.ObserverService) *ObserverHandler {
	return &ObserverHandler{observers: observers}
}

// Status reports whether and when the caller may return to active status.
func (h *ObserverHandler) Status(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := h.observers.ReentryStatus(c.Request.Context(), discussionID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Rejoin returns an eligible observer to active status.
func (h *ObserverHandler) Rejoin(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	discussionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.observers.Rejoin(c.Request.Context(), discussionID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToParticipantResponse(p))
}
