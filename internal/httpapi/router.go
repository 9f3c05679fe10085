package httpapi

import (
	"net/http"

	"example.com/sketch-mvp/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Auth   *AuthHandler
	Rooms  *RoomHandler
	Games  *GamesHandler
	Tokens TokenVerifier
	Log    *zap.SugaredLogger
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Log == nil {
		d.Log = logging.DefaultLogger()
	}
	if d.Games == nil {
		d.Games = &GamesHandler{}
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(d.Log))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := r.Group("/api")
	api.POST("/auth/register", d.Auth.Register)
	api.POST("/auth/login", d.Auth.Login)
	api.POST("/auth/guest", d.Auth.Guest)
	api.GET("/games/recent", d.Games.Recent)

	authed := api.Group("", AuthMiddleware(d.Tokens))
	authed.GET("/me", d.Auth.Me)

	rooms := authed.Group("/rooms")
	rooms.GET("", d.Rooms.List)
	rooms.POST("", d.Rooms.Create)
	rooms.GET("/:id", d.Rooms.Get)
	rooms.DELETE("/:id", d.Rooms.Delete)
	rooms.PATCH("/:id/settings", d.Rooms.UpdateSettings)
	rooms.POST("/:id/join", d.Rooms.Join)
	rooms.POST("/:id/leave", d.Rooms.Leave)
	rooms.POST("/:id/start", d.Rooms.Start)
	rooms.POST("/:id/word", d.Rooms.ChooseWord)
	rooms.POST("/:id/guess", d.Rooms.Guess)
	rooms.POST("/:id/messages", d.Rooms.PostMessage)
	rooms.POST("/:id/reset", d.Rooms.Reset)

	r.GET("/ws/:id", AuthMiddleware(d.Tokens), d.Rooms.Connect)
	return r
}
