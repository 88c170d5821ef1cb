package router

import (
	"github.com/gin-gonic/gin"

	"agora.app/rounds/internal/http/handler"
)

// ModerationRouter sets up removal routes.
// - /removals is the in-round mutual removal
// - /removal-ballots is the hidden quorum vote during the voting window
// - /moderation-events requires the admin API key
func ModerationRouter(rg *gin.RouterGroup, h *handler.ModerationHandler) {
	rg.POST("/:id/removals", h.Remove)
	rg.POST("/:id/removal-ballots", h.Ballot)
	rg.GET("/:id/removal-ballots/progress", h.Progress)
	rg.GET("/:id/escalation", h.Escalation)

	admin := rg.Group("")
	admin.Use(h.RequireAdminAPIKey())
	{
		admin.GET("/:id/moderation-events", h.Events)
	}
}
