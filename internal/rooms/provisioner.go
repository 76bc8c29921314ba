package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/registry"
	"github.com/tempvox/tempvox/internal/store"
	"github.com/tempvox/tempvox/internal/voice"
)

// Provisioner creates a fresh owned room off a lobby channel: settings
// derived from the lobby, permission baseline copied from its parent
// category, owner and service account layered on top with full control.
type Provisioner struct {
	registry *registry.Registry
	client   platform.Client
	panel    *Panel
	voice    voice.Issuer
	service  platform.UserID
	log      *zerolog.Logger
}

// NewProvisioner builds the provisioner.
func NewProvisioner(reg *registry.Registry, client platform.Client, panel *Panel, issuer voice.Issuer, serviceUser platform.UserID, logger *zerolog.Logger) *Provisioner {
	return &Provisioner{
		registry: reg,
		client:   client,
		panel:    panel,
		voice:    issuer,
		service:  serviceUser,
		log:      logger,
	}
}

// ProvisionResult is what a successful provisioning hands back.
type ProvisionResult struct {
	Record *store.RoomRecord
	Grant  *voice.Grant
}

// Provision creates the room for owner, writes the record, moves the owner
// in, and attaches the panel. A rejected create aborts with no partial state;
// a failed move leaves the room standing for the owner to join manually.
func (p *Provisioner) Provision(ctx context.Context, community platform.CommunityID, owner platform.UserID, lobby *platform.Channel) (*ProvisionResult, error) {
	spec := platform.CreateChannel{
		Name:       fmt.Sprintf("room-%s", owner),
		ParentID:   lobby.ParentID,
		UserLimit:  lobby.UserLimit,
		Bitrate:    lobby.Bitrate,
		Region:     lobby.Region,
		Overwrites: p.baselineOverwrites(ctx, community, lobby, owner),
	}

	ch, err := p.client.CreateChannel(ctx, community, spec)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	rec := &store.RoomRecord{
		ChannelID: ch.ID,
		OwnerID:   owner,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.registry.Put(ctx, community, rec); err != nil {
		// Registry refused the record (likely a concurrent provision for the
		// same owner); take the just-created channel back down.
		if derr := p.client.DeleteChannel(ctx, community, ch.ID); derr != nil && !errors.Is(derr, platform.ErrNotFound) {
			p.log.Error().Err(derr).Str("channel", string(ch.ID)).Msg("failed to delete orphaned room")
		}
		return nil, fmt.Errorf("register room: %w", err)
	}

	if err := p.client.MoveMember(ctx, community, owner, ch.ID); err != nil {
		// The room stands; the owner joins manually. Deleting a just-created
		// channel under uncertain network state would be worse.
		p.log.Warn().Err(err).
			Str("owner", string(owner)).
			Str("channel", string(ch.ID)).
			Msg("owner not moved into fresh room")
	}

	if err := p.panel.Refresh(ctx, community, ch.ID); err != nil {
		p.log.Warn().Err(err).Str("channel", string(ch.ID)).Msg("failed to attach panel")
	}

	grant, err := p.voice.IssueGrant(ctx, ch.ID, owner)
	if err != nil {
		p.log.Warn().Err(err).Str("owner", string(owner)).Msg("failed to mint voice grant")
		grant = nil
	}

	p.log.Info().
		Str("community", string(community)).
		Str("owner", string(owner)).
		Str("channel", string(ch.ID)).
		Msg("room provisioned")
	return &ProvisionResult{Record: rec, Grant: grant}, nil
}

// baselineOverwrites copies the lobby's parent-category overwrites and layers
// full-control overwrites for the owner and the service account on top, with
// highest precedence (last writer wins per principal).
func (p *Provisioner) baselineOverwrites(ctx context.Context, community platform.CommunityID, lobby *platform.Channel, owner platform.UserID) []platform.Overwrite {
	var baseline []platform.Overwrite
	if lobby.ParentID != "" {
		parent, err := p.client.GetChannel(ctx, community, lobby.ParentID)
		if err != nil {
			p.log.Warn().Err(err).Str("parent", string(lobby.ParentID)).Msg("parent category unreadable, using empty baseline")
		} else {
			baseline = parent.Overwrites
		}
	}

	out := make([]platform.Overwrite, 0, len(baseline)+2)
	for _, ov := range baseline {
		if ov.Principal == platform.User(owner) || ov.Principal == platform.User(p.service) {
			continue
		}
		out = append(out, ov)
	}
	out = append(out,
		platform.Overwrite{Principal: platform.User(owner), Allow: platform.PermFullControl},
		platform.Overwrite{Principal: platform.User(p.service), Allow: platform.PermFullControl},
	)
	return out
}
