package router

import (
	"github.com/gin-gonic/gin"

	"agora.app/rounds/internal/http/handler"
	"agora.app/rounds/internal/service"
)

type RouterConfig struct {
	AdminAPIKey string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		discussionHandler := handler.NewDiscussionHandler(services.Discussions(), services.Rounds())
		responseHandler := handler.NewResponseHandler(services.Rounds())
		votingHandler := handler.NewVotingHandler(services.Voting())
		moderationHandler := handler.NewModerationHandler(services.Moderation(), cfg.AdminAPIKey)
		observerHandler := handler.NewObserverHandler(services.Observers())

		discussions := v1.Group("/discussions")
		DiscussionRouter(discussions, discussionHandler, responseHandler)
		VotingRouter(discussions, votingHandler)
		ModerationRouter(discussions, moderationHandler)
		ObserverRouter(discussions, observerHandler)
	}
}
