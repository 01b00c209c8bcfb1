package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/adapters/signal"
	"github.com/synapse-hq/realtime/internal/app"
	"github.com/synapse-hq/realtime/internal/config"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// AuthMiddleware resolves the trusted identity for the connection. The
// auth service upstream writes user_id/user_name into the session when it
// logs the user in; connections without one get a guest identity minted in
// the signal controller.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		if id, ok := sess.Get("user_id").(string); ok && id != "" {
			c.Set("user_id", id)
			if name, ok := sess.Get("user_name").(string); ok {
				c.Set("user_name", name)
			}
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, hub *app.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SynapseSessions", store))
	r.Use(ClientTokenMiddleware())
	r.Use(AuthMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	ctrl := signal.NewSignalWSController(hub, cfg)
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Rooms.List())
	})

	return r
}
