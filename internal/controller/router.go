package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/nrgiser71/tandemup-sub000/internal/config"
)

// NewRouter wires the HTTP surface: user routes behind JWT auth,
// sweep/conferencing routes behind the shared internal token.
func NewRouter(cfg *config.Config, ctrl *SessionController) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", ctrl.Health)

	api := router.Group("/api", AuthRequired(cfg.JWTSecret))
	{
		api.GET("/slots", ctrl.ResolveSlots)
		api.POST("/sessions", ctrl.Book)
		api.GET("/sessions/upcoming", ctrl.Upcoming)
		api.DELETE("/sessions/:id", ctrl.Cancel)
		api.POST("/sessions/:id/joined", ctrl.MarkJoined)
	}

	internal := router.Group("/internal", InternalAuth(cfg.InternalToken))
	{
		internal.POST("/sweep/matches", ctrl.SweepMatches)
		internal.POST("/sweep/no-shows", ctrl.SweepNoShows)
		internal.POST("/sessions/:id/complete", ctrl.Complete)
	}

	return router
}
