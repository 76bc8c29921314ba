package rooms

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/registry"
	"github.com/tempvox/tempvox/internal/store"
)

// panelScanDepth is how many recent messages Ensure scans when the cached
// panel reference is gone.
const panelScanDepth = 25

// PanelSnapshot is the canonical state the room's status surface must
// reflect. Turning it into user-facing text is the renderer's job.
type PanelSnapshot struct {
	Channel         platform.ChannelID `json:"channel"`
	Name            string             `json:"name"`
	OwnerID         platform.UserID    `json:"owner_id"`
	Occupancy       int                `json:"occupancy"`
	Members         []platform.UserID  `json:"members"`
	Visibility      Visibility         `json:"visibility"`
	Gated           bool               `json:"gated"`
	DeniedCount     int                `json:"denied_count"`
	AuthorizedCount int                `json:"authorized_count"`
	UserLimit       int                `json:"user_limit"`
	Bitrate         int                `json:"bitrate"`
	Stats           *StatsSnapshot     `json:"stats,omitempty"`
}

// Renderer turns a snapshot into the text the platform shows. Implemented
// outside this subsystem.
type Renderer interface {
	Render(snap PanelSnapshot) string
}

// Panel maintains the one status-and-controls message attached to each room.
type Panel struct {
	registry *registry.Registry
	client   platform.Client
	presence *Presence
	stats    *Stats
	renderer Renderer
	service  platform.UserID // the service account that authors panel messages
	log      *zerolog.Logger
}

// NewPanel builds the panel maintainer.
func NewPanel(reg *registry.Registry, client platform.Client, presence *Presence, stats *Stats, renderer Renderer, serviceUser platform.UserID, logger *zerolog.Logger) *Panel {
	return &Panel{
		registry: reg,
		client:   client,
		presence: presence,
		stats:    stats,
		renderer: renderer,
		service:  serviceUser,
		log:      logger,
	}
}

// Snapshot computes the current display state for a room. Visibility comes
// from the live channel overwrites; stats tolerate a missing entry.
func (p *Panel) Snapshot(ctx context.Context, community platform.CommunityID, rec *store.RoomRecord) (PanelSnapshot, error) {
	ch, err := p.client.GetChannel(ctx, community, rec.ChannelID)
	if err != nil {
		return PanelSnapshot{}, err
	}

	members := p.presence.Occupants(rec.ChannelID)
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

	snap := PanelSnapshot{
		Channel:         rec.ChannelID,
		Name:            ch.Name,
		OwnerID:         rec.OwnerID,
		Occupancy:       len(members),
		Members:         members,
		Visibility:      DeriveVisibility(ch),
		Gated:           rec.Gated(),
		DeniedCount:     len(rec.Denied),
		AuthorizedCount: len(rec.Authorized),
		UserLimit:       ch.UserLimit,
		Bitrate:         ch.Bitrate,
	}
	if st, ok := p.stats.Snapshot(rec.ChannelID); ok {
		snap.Stats = &st
	}
	return snap, nil
}

// Ensure locates the panel message for the room: the cached reference first,
// then a scan of recent messages authored by the service account, then a
// fresh message. The resulting id is cached back into the record.
func (p *Panel) Ensure(ctx context.Context, community platform.CommunityID, rec *store.RoomRecord, content string) (platform.MessageID, error) {
	if rec.PanelMessageID != nil {
		return *rec.PanelMessageID, nil
	}

	id, err := p.locate(ctx, community, rec.ChannelID)
	if errors.Is(err, platform.ErrNotFound) {
		id, err = p.create(ctx, community, rec.ChannelID, content)
	}
	if err != nil {
		return "", err
	}

	if _, err := p.registry.UpdateByChannel(ctx, community, rec.ChannelID, func(r *store.RoomRecord) error {
		r.PanelMessageID = &id
		return nil
	}); err != nil && !errors.Is(err, registry.ErrNotFound) {
		return id, err
	}
	rec.PanelMessageID = &id
	return id, nil
}

func (p *Panel) locate(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) (platform.MessageID, error) {
	msgs, err := p.client.RecentMessages(ctx, community, channel, panelScanDepth)
	if err != nil {
		return "", err
	}
	for _, m := range msgs {
		if m.Author == p.service && m.PanelTag {
			return m.ID, nil
		}
	}
	return "", platform.ErrNotFound
}

func (p *Panel) create(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, content string) (platform.MessageID, error) {
	msg := platform.Message{
		Author:   p.service,
		Content:  content,
		Nonce:    uuid.NewString(),
		PanelTag: true,
	}
	return p.client.SendMessage(ctx, community, channel, msg)
}

// Refresh recomputes the snapshot and edits the panel message in place,
// recreating it if the cached reference turned out to be gone.
func (p *Panel) Refresh(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) error {
	rec, err := p.registry.GetByChannel(ctx, community, channel)
	if errors.Is(err, registry.ErrNotFound) {
		return ErrRoomNotFound
	}
	if err != nil {
		return err
	}

	snap, err := p.Snapshot(ctx, community, rec)
	if err != nil {
		return err
	}
	content := p.renderer.Render(snap)

	id, err := p.Ensure(ctx, community, rec, content)
	if err != nil {
		return err
	}

	err = p.client.EditMessage(ctx, community, channel, id, platform.Message{
		Author:   p.service,
		Content:  content,
		PanelTag: true,
	})
	if errors.Is(err, platform.ErrNotFound) {
		// Cached reference went stale; drop it and recreate once.
		if _, uerr := p.registry.UpdateByChannel(ctx, community, channel, func(r *store.RoomRecord) error {
			r.PanelMessageID = nil
			return nil
		}); uerr != nil && !errors.Is(uerr, registry.ErrNotFound) {
			return uerr
		}
		newID, cerr := p.create(ctx, community, channel, content)
		if cerr != nil {
			return cerr
		}
		if _, uerr := p.registry.UpdateByChannel(ctx, community, channel, func(r *store.RoomRecord) error {
			r.PanelMessageID = &newID
			return nil
		}); uerr != nil && !errors.Is(uerr, registry.ErrNotFound) {
			return uerr
		}
		return nil
	}
	return err
}
