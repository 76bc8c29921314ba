// Package http exposes the read-only diagnostics listener: health, per-room
// stats, and the registry's room list. It is an operator surface; every
// mutation of room state still flows through platform interactions.
package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/config"
	"github.com/tempvox/tempvox/internal/registry"
	"github.com/tempvox/tempvox/internal/rooms"
)

// NewServer builds the diagnostics HTTP server.
func NewServer(cfg config.DiagConfig, reg *registry.Registry, stats *rooms.Stats, presence *rooms.Presence, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handlers{registry: reg, stats: stats, presence: presence, log: logger}

	router.GET("/healthz", h.Health)

	api := router.Group("/api", bearerAuth(cfg.Token))
	api.GET("/stats/:channel", h.ChannelStats)
	api.GET("/communities/:id/rooms", h.CommunityRooms)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// bearerAuth rejects requests without the configured token. An empty token
// leaves the API open, for local use.
func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+token {
			c.AbortWithStatusJSON(stdhttp.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
