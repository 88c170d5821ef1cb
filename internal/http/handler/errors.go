package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"agora.app/rounds/internal/service"
)

// respondError maps service sentinels onto HTTP status codes. Anything
// unmapped is a 500 and gets logged; sentinel conditions are the caller's
// fault and are not.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrDiscussionNotFound),
		errors.Is(err, service.ErrRoundNotFound),
		errors.Is(err, service.ErrResponseNotFound),
		errors.Is(err, service.ErrNotParticipant):
		status = http.StatusNotFound

	case errors.Is(err, service.ErrDiscussionArchived),
		errors.Is(err, service.ErrRoundClosed),
		errors.Is(err, service.ErrStaleRound),
		errors.Is(err, service.ErrWrongPhase),
		errors.Is(err, service.ErrAlreadyResponded),
		errors.Is(err, service.ErrDeadlinePassed),
		errors.Is(err, service.ErrAlreadyParticipant),
		errors.Is(err, service.ErrParticipantCapReached),
		errors.Is(err, service.ErrResponseLocked),
		errors.Is(err, service.ErrEditLimitReached),
		errors.Is(err, service.ErrEditBudgetExceeded),
		errors.Is(err, service.ErrRemovalLimitReached),
		errors.Is(err, service.ErrAlreadyRemovedTarget),
		errors.Is(err, service.ErrNotYetEligible),
		errors.Is(err, service.ErrNeverEligible):
		status = http.StatusConflict

	case errors.Is(err, service.ErrContentTooLong),
		errors.Is(err, service.ErrContentEmpty),
		errors.Is(err, service.ErrInvalidChoice),
		errors.Is(err, service.ErrSelfRemoval),
		errors.Is(err, service.ErrTopicEmpty),
		errors.Is(err, service.ErrDelegateInvalid):
		status = http.StatusBadRequest

	case errors.Is(err, service.ErrNotActive),
		errors.Is(err, service.ErrPermanentObserver),
		errors.Is(err, service.ErrNotEligibleVoter),
		errors.Is(err, service.ErrNotInitiator),
		errors.Is(err, service.ErrNotResponseAuthor),
		errors.Is(err, service.ErrTargetNotRemovable):
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "error", err, "path", c.FullPath())
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// actorID reads the authenticated user from the X-User-ID header. The
// engine sits behind a gateway that authenticates and injects it.
func actorID(c *gin.Context) (int64, bool) {
	raw := c.GetHeader("X-User-ID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-ID header"})
		return 0, false
	}
	return id, true
}

// pathID parses an int64 path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
