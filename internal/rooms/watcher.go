package rooms

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/registry"
)

// Watcher reacts to users entering a lobby channel. Its one invariant: a user
// holds at most one live room at a time, so re-entering the lobby relocates
// them into their existing room instead of provisioning a second one.
type Watcher struct {
	registry    *registry.Registry
	client      platform.Client
	provisioner *Provisioner
	log         *zerolog.Logger
}

// NewWatcher builds the lobby watcher.
func NewWatcher(reg *registry.Registry, client platform.Client, prov *Provisioner, logger *zerolog.Logger) *Watcher {
	return &Watcher{
		registry:    reg,
		client:      client,
		provisioner: prov,
		log:         logger,
	}
}

// OnLobbyJoin handles a user landing in a registered lobby. Errors are
// returned for logging only; the caller swallows them so a failed
// auto-provision never stalls the event pipeline.
func (w *Watcher) OnLobbyJoin(ctx context.Context, community platform.CommunityID, user platform.UserID, lobbyID platform.ChannelID) (*ProvisionResult, error) {
	rec, err := w.registry.Get(ctx, community, user)
	if err == nil {
		// The user already owns a room; if its channel still exists, move
		// them there and stop.
		if _, gerr := w.client.GetChannel(ctx, community, rec.ChannelID); gerr == nil {
			if merr := w.client.MoveMember(ctx, community, user, rec.ChannelID); merr != nil {
				return nil, fmt.Errorf("relocate owner to existing room: %w", merr)
			}
			w.log.Debug().
				Str("user", string(user)).
				Str("channel", string(rec.ChannelID)).
				Msg("owner relocated to existing room")
			return nil, nil
		} else if !errors.Is(gerr, platform.ErrNotFound) {
			return nil, fmt.Errorf("check existing room: %w", gerr)
		}

		// Stale record: the backing channel is gone. Drop it and provision
		// fresh. A concurrent reaper winning the delete is fine.
		if derr := w.registry.Delete(ctx, community, user); derr != nil && !errors.Is(derr, registry.ErrNotFound) {
			return nil, fmt.Errorf("drop stale record: %w", derr)
		}
	} else if !errors.Is(err, registry.ErrNotFound) {
		return nil, fmt.Errorf("lookup owner record: %w", err)
	}

	lobby, err := w.client.GetChannel(ctx, community, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("read lobby settings: %w", err)
	}
	return w.provisioner.Provision(ctx, community, user, lobby)
}
