package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpHandler "postpilot/interfaces/http"
	"postpilot/interfaces/middleware"
)

func InitiateRouter(
	connectionHandler httpHandler.IConnectionHandler,
	postHandler httpHandler.IPostHandler,
	secretKey string,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "http://localhost:4201", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// OAuth redirect target; identity comes from the signed state token.
	router.GET("/auth/:platform/callback", connectionHandler.Callback)

	api := router.Group("api")
	api.Use(middleware.Auth(secretKey))

	api.GET("/platforms", postHandler.GetPlatforms)

	api.GET("/connections", connectionHandler.List)
	api.GET("/connections/:platform/connect", connectionHandler.Connect)
	api.DELETE("/connections/:platform", connectionHandler.Disconnect)

	api.POST("/posts", postHandler.Create)
	api.GET("/posts", postHandler.List)
	api.GET("/posts/:postId", postHandler.Get)
	api.POST("/posts/compose-trend", postHandler.ComposeFromTrend)

	api.POST("/queue/process", postHandler.ProcessQueue)

	return router
}
