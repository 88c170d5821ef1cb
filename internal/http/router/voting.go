package router

import (
	"github.com/gin-gonic/gin"

	"agora.app/rounds/internal/http/handler"
)

// VotingRouter sets up the inter-round parameter vote routes.
func VotingRouter(rg *gin.RouterGroup, h *handler.VotingHandler) {
	rg.POST("/:id/votes", h.Cast)
	rg.GET("/:id/votes/tallies", h.Tallies)
}
