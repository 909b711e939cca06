package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Matchbox/internal/adapters/signal"
	"github.com/dkeye/Matchbox/internal/app/orch"
	"github.com/dkeye/Matchbox/internal/config"
	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/store"
)

const (
	sessionName = "MatchboxSessions"
	tokenKey    = "ct"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware keeps a stable client token in the session cookie.
// The signaling endpoint uses it as the fallback profile.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(tokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(tokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, st store.Store) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookies := cookie.NewStore([]byte(cfg.Secret))
	cookies.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, cookies))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Int("port", cfg.Port).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, cfg.ReadLimit, cfg.SendBuffer)

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.GET("/stats", func(c *gin.Context) {
		relays := o.Relays.Stats()
		c.JSON(http.StatusOK, gin.H{
			"connections": o.Len(),
			"profiles":    o.Registry.Len(),
			"relays":      relays.Relays,
			"subscribers": relays.Subscribers,
			"heartbeats":  o.Pinger.Len(),
		})
	})

	api.GET("/matches/:id", func(c *gin.Context) {
		var m *domain.Match
		err := st.InTx(c.Request.Context(), func(tx store.Tx) error {
			var err error
			m, err = tx.GetMatch(domain.MatchID(c.Param("id")))
			return err
		})
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		case err != nil:
			log.Error().Err(err).Str("module", "adapters.http").Msg("get match")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
		default:
			c.JSON(http.StatusOK, m)
		}
	})

	return r
}
