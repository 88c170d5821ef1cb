package router

import (
	"github.com/gin-gonic/gin"

	"agora.app/rounds/internal/http/handler"
)

// DiscussionRouter sets up discussion and response routes.
func DiscussionRouter(rg *gin.RouterGroup, dh *handler.DiscussionHandler, rh *handler.ResponseHandler) {
	rg.POST("", dh.Create)
	rg.GET("/:id", dh.Get)
	rg.GET("/:id/phase", dh.Phase)
	rg.POST("/:id/join", dh.Join)
	rg.PUT("/:id/delegate", dh.SetDelegate)
	rg.GET("/:id/participants", dh.Participants)

	rg.POST("/:id/responses", rh.Submit)
	rg.PUT("/:id/responses/:responseId", rh.Edit)
	rg.GET("/:id/rounds/:roundNumber/responses", rh.List)
}
