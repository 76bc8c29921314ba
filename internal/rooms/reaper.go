package rooms

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/registry"
	"github.com/tempvox/tempvox/internal/store"
)

// Reaper tears down provisioned rooms that have emptied. The registry record
// is removed first: whichever caller wins that delete owns the teardown, so a
// duplicated empty-room event reaps exactly once.
type Reaper struct {
	registry *registry.Registry
	client   platform.Client
	stats    *Stats
	presence *Presence
	log      *zerolog.Logger
}

// NewReaper builds the reaper.
func NewReaper(reg *registry.Registry, client platform.Client, stats *Stats, presence *Presence, logger *zerolog.Logger) *Reaper {
	return &Reaper{
		registry: reg,
		client:   client,
		stats:    stats,
		presence: presence,
		log:      logger,
	}
}

// OnEmpty handles a channel whose occupancy reached zero. Channels with no
// registry record are not ours to delete; a channel already gone on the
// platform counts as reaped.
func (r *Reaper) OnEmpty(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) error {
	rec, err := r.registry.DeleteByChannel(ctx, community, channel)
	if errors.Is(err, registry.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.client.DeleteChannel(ctx, community, channel); err != nil && !errors.Is(err, platform.ErrNotFound) {
		r.log.Error().Err(err).Str("channel", string(channel)).Msg("failed to delete empty room")
		r.restore(ctx, community, rec)
		return err
	}

	r.stats.Forget(channel)
	r.presence.Forget(channel)
	r.log.Info().
		Str("community", string(community)).
		Str("channel", string(channel)).
		Str("owner", string(rec.OwnerID)).
		Msg("empty room reaped")
	return nil
}

// Teardown deletes a room on explicit owner request, sharing the reap path.
func (r *Reaper) Teardown(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) error {
	rec, err := r.registry.DeleteByChannel(ctx, community, channel)
	if errors.Is(err, registry.ErrNotFound) {
		return ErrRoomNotFound
	}
	if err != nil {
		return err
	}

	if err := r.client.DeleteChannel(ctx, community, channel); err != nil && !errors.Is(err, platform.ErrNotFound) {
		r.restore(ctx, community, rec)
		return err
	}

	r.stats.Forget(channel)
	r.presence.Forget(channel)
	r.log.Info().
		Str("community", string(community)).
		Str("channel", string(channel)).
		Str("owner", string(rec.OwnerID)).
		Msg("room deleted by owner")
	return nil
}

// restore puts the record back after a failed platform delete so a later
// empty-room event can retry the teardown.
func (r *Reaper) restore(ctx context.Context, community platform.CommunityID, rec *store.RoomRecord) {
	if err := r.registry.Put(ctx, community, rec); err != nil && !errors.Is(err, registry.ErrAlreadyOwner) {
		r.log.Error().Err(err).
			Str("channel", string(rec.ChannelID)).
			Msg("failed to restore record after delete failure")
	}
}
