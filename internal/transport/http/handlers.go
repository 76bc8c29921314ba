package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/registry"
	"github.com/tempvox/tempvox/internal/rooms"
)

type handlers struct {
	registry *registry.Registry
	stats    *rooms.Stats
	presence *rooms.Presence
	log      *zerolog.Logger
}

// Health reports liveness.
// GET /healthz
func (h *handlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// ChannelStats returns the in-memory counters for one room. A room the
// collector has never seen reads as zeroes.
// GET /api/stats/:channel
func (h *handlers) ChannelStats(c *gin.Context) {
	channel := platform.ChannelID(c.Param("channel"))

	snap, _ := h.stats.Snapshot(channel)
	c.JSON(http.StatusOK, gin.H{
		"channel":   channel,
		"occupancy": h.presence.Count(channel),
		"stats":     snap,
	})
}

// roomView is the diagnostics projection of a room record; the secret hash
// never leaves the process.
type roomView struct {
	Channel    platform.ChannelID `json:"channel"`
	Owner      platform.UserID    `json:"owner"`
	Occupancy  int                `json:"occupancy"`
	Gated      bool               `json:"gated"`
	Denied     int                `json:"denied"`
	Authorized int                `json:"authorized"`
}

// CommunityRooms lists the provisioned rooms of one community.
// GET /api/communities/:id/rooms
func (h *handlers) CommunityRooms(c *gin.Context) {
	community := platform.CommunityID(c.Param("id"))

	recs, err := h.registry.ListRooms(c.Request.Context(), community)
	if err != nil {
		h.log.Error().Err(err).Str("community", string(community)).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	views := make([]roomView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, roomView{
			Channel:    rec.ChannelID,
			Owner:      rec.OwnerID,
			Occupancy:  h.presence.Count(rec.ChannelID),
			Gated:      rec.Gated(),
			Denied:     len(rec.Denied),
			Authorized: len(rec.Authorized),
		})
	}
	c.JSON(http.StatusOK, gin.H{"community": community, "rooms": views})
}
