package http

import (
	"github.com/gin-gonic/gin"

	"doccopilot/internal/bootstrap"
	"doccopilot/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": app.Config.App.Name,
			"health":  "/healthz",
		})
	})

	copilotHandler := handler.NewCopilotHandler(app.Copilot)

	v1 := router.Group("/api/v1")
	v1.POST("/ingest", copilotHandler.IngestPDF)
	v1.POST("/ingest/text", copilotHandler.IngestText)
	v1.POST("/chat", copilotHandler.Chat)
	v1.POST("/eval", copilotHandler.Evaluate)

	return router
}
