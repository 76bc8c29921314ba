package rooms

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/auth"
	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/registry"
	"github.com/tempvox/tempvox/internal/store"
)

const maxUserLimit = 99

// permAuthorized is what an explicitly authorized user gets on the room.
const permAuthorized = platform.PermView | platform.PermConnect | platform.PermSpeak |
	platform.PermMoveMembers | platform.PermMuteMembers

// permMember is what a former owner keeps after a claim.
const permMember = platform.PermView | platform.PermConnect | platform.PermSpeak

// Access toggles room visibility, manages the allow/deny lists, and performs
// ownership claims. Every mutation goes record-first through the registry;
// a record deleted by a concurrent reaper surfaces as not-found and no
// platform call is made for it.
type Access struct {
	registry  *registry.Registry
	client    platform.Client
	presence  *Presence
	stats     *Stats
	confirmer *auth.Confirmer
	log       *zerolog.Logger
}

// NewAccess builds the access engine.
func NewAccess(reg *registry.Registry, client platform.Client, presence *Presence, stats *Stats, confirmer *auth.Confirmer, logger *zerolog.Logger) *Access {
	return &Access{
		registry:  reg,
		client:    client,
		presence:  presence,
		stats:     stats,
		confirmer: confirmer,
		log:       logger,
	}
}

// requireOwner loads the record for the channel and checks the actor owns it.
func (a *Access) requireOwner(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor platform.UserID) (*store.RoomRecord, error) {
	rec, err := a.registry.GetByChannel(ctx, community, channel)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != actor {
		return nil, ErrNotOwner
	}
	return rec, nil
}

// Visibility derives the room's current state from its live overwrites.
func (a *Access) Visibility(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) (Visibility, error) {
	ch, err := a.client.GetChannel(ctx, community, channel)
	if err != nil {
		return VisibilityPublic, err
	}
	return DeriveVisibility(ch), nil
}

// SetVisibility moves the room to the target state by editing the
// everyone-principal overwrite. Idempotent: setting the current state edits
// the overwrite to the same bits. After the edit the channel is read back and
// a mismatch is logged; a half-applied edit is left for the next toggle to
// repair rather than retried blind.
func (a *Access) SetVisibility(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor platform.UserID, target Visibility) error {
	if _, err := a.requireOwner(ctx, community, channel, actor); err != nil {
		return err
	}

	ch, err := a.client.GetChannel(ctx, community, channel)
	if err != nil {
		return err
	}
	ov, _ := ch.Overwrite(platform.Everyone())
	ov.Principal = platform.Everyone()

	// Clear both axis bits, then set the ones the target state needs, keeping
	// any unrelated bits the baseline carried.
	ov.Deny &^= platform.PermView | platform.PermConnect
	switch target {
	case VisibilityLocked:
		ov.Deny |= platform.PermConnect
	case VisibilityInvisible:
		ov.Deny |= platform.PermView | platform.PermConnect
	}

	if err := a.client.EditOverwrite(ctx, community, channel, ov); err != nil {
		return fmt.Errorf("set visibility %s: %w", target, err)
	}

	// Verification read-back; drift is logged, not retried.
	after, err := a.client.GetChannel(ctx, community, channel)
	if err != nil {
		a.log.Warn().Err(err).Str("channel", string(channel)).Msg("visibility read-back failed")
		return nil
	}
	if got := DeriveVisibility(after); got != target {
		a.log.Warn().
			Str("channel", string(channel)).
			Str("want", target.String()).
			Str("got", got.String()).
			Msg("visibility mismatch after edit")
	}
	return nil
}

// Ban adds the user to the deny list, applies deny-view/deny-connect, and
// disconnects them if present. Banning yourself is rejected before any
// mutation.
func (a *Access) Ban(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor, target platform.UserID) error {
	if actor == target {
		return fmt.Errorf("cannot ban yourself: %w", ErrInvalidInput)
	}
	rec, err := a.requireOwner(ctx, community, channel, actor)
	if err != nil {
		return err
	}
	if target == rec.OwnerID {
		return fmt.Errorf("cannot ban the owner: %w", ErrInvalidInput)
	}

	if _, err := a.registry.UpdateByChannel(ctx, community, channel, func(r *store.RoomRecord) error {
		r.Deny(target)
		r.Deauthorize(target)
		return nil
	}); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	ov := platform.Overwrite{
		Principal: platform.User(target),
		Deny:      platform.PermView | platform.PermConnect,
	}
	if err := a.client.EditOverwrite(ctx, community, channel, ov); err != nil {
		return fmt.Errorf("apply ban overwrite: %w", err)
	}

	if a.presence.Contains(channel, target) {
		if err := a.client.Disconnect(ctx, community, target); err != nil && !errors.Is(err, platform.ErrNotFound) {
			a.log.Warn().Err(err).Str("user", string(target)).Msg("failed to disconnect banned user")
		}
	}
	a.stats.RecordBan(channel)
	return nil
}

// Unban removes the user from the deny list and lifts the deny overwrite.
func (a *Access) Unban(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor, target platform.UserID) error {
	if _, err := a.requireOwner(ctx, community, channel, actor); err != nil {
		return err
	}

	if _, err := a.registry.UpdateByChannel(ctx, community, channel, func(r *store.RoomRecord) error {
		r.Undeny(target)
		return nil
	}); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	if err := a.client.RemoveOverwrite(ctx, community, channel, platform.User(target)); err != nil && !errors.Is(err, platform.ErrNotFound) {
		return fmt.Errorf("remove ban overwrite: %w", err)
	}
	return nil
}

// Kick disconnects a present user without touching the lists.
func (a *Access) Kick(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor, target platform.UserID) error {
	if actor == target {
		return fmt.Errorf("cannot kick yourself: %w", ErrInvalidInput)
	}
	if _, err := a.requireOwner(ctx, community, channel, actor); err != nil {
		return err
	}
	if !a.presence.Contains(channel, target) {
		return ErrNotInRoom
	}
	if err := a.client.Disconnect(ctx, community, target); err != nil {
		return fmt.Errorf("kick: %w", err)
	}
	a.stats.RecordKick(channel)
	return nil
}

// Authorize grants the user elevated per-user overwrites without altering
// ownership.
func (a *Access) Authorize(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor, target platform.UserID) error {
	if _, err := a.requireOwner(ctx, community, channel, actor); err != nil {
		return err
	}

	if _, err := a.registry.UpdateByChannel(ctx, community, channel, func(r *store.RoomRecord) error {
		r.Authorize(target)
		r.Undeny(target)
		return nil
	}); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	ov := platform.Overwrite{
		Principal: platform.User(target),
		Allow:     permAuthorized,
	}
	if err := a.client.EditOverwrite(ctx, community, channel, ov); err != nil {
		return fmt.Errorf("apply authorize overwrite: %w", err)
	}
	return nil
}

// Deauthorize removes the user's elevated overwrite and list entry.
func (a *Access) Deauthorize(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor, target platform.UserID) error {
	if _, err := a.requireOwner(ctx, community, channel, actor); err != nil {
		return err
	}

	if _, err := a.registry.UpdateByChannel(ctx, community, channel, func(r *store.RoomRecord) error {
		r.Deauthorize(target)
		return nil
	}); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	if err := a.client.RemoveOverwrite(ctx, community, channel, platform.User(target)); err != nil && !errors.Is(err, platform.ErrNotFound) {
		return fmt.Errorf("remove authorize overwrite: %w", err)
	}
	return nil
}

// Rename validates and applies a new room name.
func (a *Access) Rename(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor platform.UserID, name string) error {
	if len(name) < 1 || len(name) > 100 {
		return fmt.Errorf("room name must be 1-100 characters: %w", ErrInvalidInput)
	}
	if _, err := a.requireOwner(ctx, community, channel, actor); err != nil {
		return err
	}
	return a.client.EditChannel(ctx, community, channel, platform.ChannelPatch{Name: &name})
}

// SetUserLimit validates and applies a new occupancy limit; zero is
// unlimited.
func (a *Access) SetUserLimit(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor platform.UserID, limit int) error {
	if limit < 0 || limit > maxUserLimit {
		return fmt.Errorf("user limit must be 0-%d: %w", maxUserLimit, ErrInvalidInput)
	}
	if _, err := a.requireOwner(ctx, community, channel, actor); err != nil {
		return err
	}
	return a.client.EditChannel(ctx, community, channel, platform.ChannelPatch{UserLimit: &limit})
}

// Claim starts an ownership transfer: permitted only if the claimant is in
// the room and the current owner is not. On success a time-boxed confirmation
// token is returned; nothing changes until it is confirmed.
func (a *Access) Claim(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, claimant platform.UserID) (string, error) {
	rec, err := a.registry.GetByChannel(ctx, community, channel)
	if errors.Is(err, registry.ErrNotFound) {
		return "", ErrRoomNotFound
	}
	if err != nil {
		return "", err
	}
	if rec.OwnerID == claimant {
		return "", fmt.Errorf("already the owner: %w", ErrInvalidInput)
	}
	if !a.presence.Contains(channel, claimant) {
		return "", ErrNotInRoom
	}
	if a.presence.Contains(channel, rec.OwnerID) {
		return "", ErrOwnerPresent
	}

	token, err := a.confirmer.Mint(auth.PurposeClaim, channel, claimant)
	if err != nil {
		return "", fmt.Errorf("mint claim confirmation: %w", err)
	}
	return token, nil
}

// ClaimConfirm completes a transfer. The registry re-keys the record
// atomically; afterwards the former owner is downgraded to a plain member
// overwrite and the claimant gets full control.
func (a *Access) ClaimConfirm(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, claimant platform.UserID, token string) error {
	if err := a.confirmer.Validate(token, auth.PurposeClaim, channel, claimant); err != nil {
		return err
	}

	rec, err := a.registry.GetByChannel(ctx, community, channel)
	if errors.Is(err, registry.ErrNotFound) {
		return ErrRoomNotFound
	}
	if err != nil {
		return err
	}
	oldOwner := rec.OwnerID

	if _, err := a.registry.Transfer(ctx, community, oldOwner, claimant); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	downgrade := platform.Overwrite{Principal: platform.User(oldOwner), Allow: permMember}
	if err := a.client.EditOverwrite(ctx, community, channel, downgrade); err != nil {
		a.log.Warn().Err(err).Str("user", string(oldOwner)).Msg("failed to downgrade former owner")
	}
	upgrade := platform.Overwrite{Principal: platform.User(claimant), Allow: platform.PermFullControl}
	if err := a.client.EditOverwrite(ctx, community, channel, upgrade); err != nil {
		return fmt.Errorf("upgrade new owner: %w", err)
	}

	a.log.Info().
		Str("community", string(community)).
		Str("channel", string(channel)).
		Str("from", string(oldOwner)).
		Str("to", string(claimant)).
		Msg("room ownership transferred")
	return nil
}
