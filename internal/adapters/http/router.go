package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/adapters/signal"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app/orch"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/config"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	clientTokenCookie = "ct"
	clientTokenKey    = "client_token"
	sessionNameKey    = "name"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware identifies the caller by an opaque cookie token and
// makes sure the directory knows them. A display name kept in the signed
// session cookie survives server restarts.
func ClientTokenMiddleware(o *orch.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(clientTokenCookie)
		if _, err := uuid.Parse(token); err != nil {
			token = genClientToken()
			c.SetCookie(clientTokenCookie, token, 3600*24*7, "/", "", false, true)
		}
		uid := domain.UserID(token)
		user := o.Directory.GetOrCreate(uid)
		if name, ok := sessions.Default(c).Get(sessionNameKey).(string); ok && name != user.Username {
			if _, err := o.Directory.Rename(uid, name); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Str("user", token).Msg("stale session name")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func userOf(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString(clientTokenKey))
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("BuddyUpSessions", store))
	r.Use(ClientTokenMiddleware(o))

	h := &handlers{orch: o}
	ws := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		ICEServers: cfg.RTC.ICEServers,
	})

	api := r.Group("/api")
	api.GET("/healthz", h.healthz)
	api.GET("/stages", h.stages)

	api.GET("/me", h.whoami)
	api.PUT("/me", h.rename)
	api.GET("/me/rooms", h.myRooms)

	rooms := api.Group("/rooms")
	rooms.POST("", h.createRoom)
	rooms.GET("", h.listRooms)
	rooms.GET("/:id", h.getRoom)
	rooms.POST("/:id/apply", h.apply)
	rooms.DELETE("/:id/apply", h.withdraw)
	rooms.POST("/:id/applicants/:uid/approve", h.approve)
	rooms.POST("/:id/applicants/:uid/reject", h.reject)
	rooms.POST("/:id/close", h.closeRoom)
	rooms.GET("/:id/session", h.session)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		ws.HandleSignal(ctx, c, userOf(c))
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "kind": domain.KindNotFound})
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
