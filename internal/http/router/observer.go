package router

import (
	"github.com/gin-gonic/gin"

	"agora.app/rounds/internal/http/handler"
)

// ObserverRouter sets up observer reentry routes.
func ObserverRouter(rg *gin.RouterGroup, h *handler.ObserverHandler) {
	rg.GET("/:id/reentry", h.Status)
	rg.POST("/:id/rejoin", h.Rejoin)
}
