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
	"github.com/tempvox/tempvox/internal/voice"
)

// permGateRestricted is denied to a user held at the gate: they can sit in
// the channel but not speak or write until they pass the challenge.
const permGateRestricted = platform.PermSpeak | platform.PermSendMessages

// Gate enforces password-gated entry. The gate is orthogonal to visibility:
// a public room can be gated and a locked one can be open to its members.
type Gate struct {
	registry  *registry.Registry
	client    platform.Client
	confirmer *auth.Confirmer
	voice     voice.Issuer
	log       *zerolog.Logger
}

// NewGate builds the gate enforcer.
func NewGate(reg *registry.Registry, client platform.Client, confirmer *auth.Confirmer, issuer voice.Issuer, logger *zerolog.Logger) *Gate {
	return &Gate{
		registry:  reg,
		client:    client,
		confirmer: confirmer,
		voice:     issuer,
		log:       logger,
	}
}

// Enable hashes the secret and turns the gate on. Changing the secret resets
// the session grant set: everyone re-proves knowledge of the new secret.
func (g *Gate) Enable(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor platform.UserID, secret, description string) error {
	hash, err := auth.HashSecret(secret)
	if err != nil {
		return fmt.Errorf("%s: %w", err, ErrInvalidInput)
	}

	_, err = g.registry.UpdateByChannel(ctx, community, channel, func(r *store.RoomRecord) error {
		if r.OwnerID != actor {
			return ErrNotOwner
		}
		r.Password = &store.PasswordRecord{
			Hash:        hash,
			Enabled:     true,
			Description: description,
		}
		return nil
	})
	if errors.Is(err, registry.ErrNotFound) {
		return ErrRoomNotFound
	}
	return err
}

// Disable clears the gate and its session grants.
func (g *Gate) Disable(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor platform.UserID) error {
	_, err := g.registry.UpdateByChannel(ctx, community, channel, func(r *store.RoomRecord) error {
		if r.OwnerID != actor {
			return ErrNotOwner
		}
		r.Password = nil
		return nil
	})
	if errors.Is(err, registry.ErrNotFound) {
		return ErrRoomNotFound
	}
	return err
}

// exempt users pass the gate without a challenge: the owner, holders of a
// session grant, and users on the room's allow list.
func exempt(rec *store.RoomRecord, user platform.UserID) bool {
	return user == rec.OwnerID || rec.Password.IsAuthorized(user) || rec.IsAuthorized(user)
}

// OnEntry applies the restrictive overwrites to a user entering a gated room
// and issues the time-boxed challenge prompt. The prompt expiring does not
// lift the restrictions; only a correct secret or an admin action does, so
// the block re-applies for free on any later entry.
func (g *Gate) OnEntry(ctx context.Context, community platform.CommunityID, rec *store.RoomRecord, user platform.UserID) error {
	if !rec.Gated() || exempt(rec, user) {
		return nil
	}
	channel := rec.ChannelID

	// Merge the gate bits into whatever overwrite the principal already
	// holds; entry must not erase unrelated grants.
	restrict := platform.Overwrite{
		Principal: platform.User(user),
		Deny:      permGateRestricted,
	}
	if ch, err := g.client.GetChannel(ctx, community, channel); err == nil {
		if ov, ok := ch.Overwrite(platform.User(user)); ok {
			ov.Deny |= permGateRestricted
			restrict = ov
		}
	}
	if err := g.client.EditOverwrite(ctx, community, channel, restrict); err != nil {
		return fmt.Errorf("apply gate restrictions: %w", err)
	}
	if err := g.client.SetVoiceState(ctx, community, user, platform.VoiceState{Muted: true, Deafened: true}); err != nil && !errors.Is(err, platform.ErrNotFound) {
		g.log.Warn().Err(err).Str("user", string(user)).Msg("failed to mute gated user")
	}

	token, err := g.confirmer.Mint(auth.PurposeChallenge, channel, user)
	if err != nil {
		return fmt.Errorf("mint challenge: %w", err)
	}

	prompt := platform.Message{
		Content: rec.Password.Description,
		Nonce:   FormatAction(VerbGateSubmit, channel, "") + "|" + token,
	}
	if _, err := g.client.SendMessage(ctx, community, channel, prompt); err != nil {
		g.log.Warn().Err(err).Str("channel", string(channel)).Msg("failed to send challenge prompt")
	}
	return nil
}

// Submit verifies a challenge response. A valid challenge token is required;
// a correct secret lifts the gate's own restrictions, grants a session
// authorization, and mints a voice join grant; a wrong one changes nothing.
// Users on the room's deny list are rejected outright, secret or not.
func (g *Gate) Submit(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, user platform.UserID, secret, token string) (*voice.Grant, error) {
	if err := g.confirmer.Validate(token, auth.PurposeChallenge, channel, user); err != nil {
		if errors.Is(err, auth.ErrExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("challenge token: %w", ErrInvalidInput)
	}

	rec, err := g.registry.GetByChannel(ctx, community, channel)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.IsDenied(user) {
		return nil, ErrDenied
	}
	if !rec.Gated() {
		// Gate removed while the prompt was open; nothing to pass.
		return nil, nil
	}

	if !auth.VerifySecret(rec.Password.Hash, secret) {
		return nil, ErrWrongSecret
	}

	if _, err := g.registry.UpdateByChannel(ctx, community, channel, func(r *store.RoomRecord) error {
		if r.Password != nil {
			r.Password.Grant(user)
		}
		return nil
	}); err != nil && !errors.Is(err, registry.ErrNotFound) {
		return nil, err
	}

	if err := g.liftRestrictions(ctx, community, channel, user); err != nil {
		return nil, err
	}
	if err := g.client.SetVoiceState(ctx, community, user, platform.VoiceState{}); err != nil && !errors.Is(err, platform.ErrNotFound) {
		g.log.Warn().Err(err).Str("user", string(user)).Msg("failed to unmute user after gate pass")
	}

	grant, err := g.voice.IssueGrant(ctx, channel, user)
	if err != nil {
		g.log.Warn().Err(err).Str("user", string(user)).Msg("failed to mint voice grant after gate pass")
		return nil, nil
	}
	return grant, nil
}

// liftRestrictions clears only the gate's own deny bits from the user's
// overwrite. Anything else the overwrite carries (a ban, an authorization)
// stays untouched; an overwrite left empty is removed entirely.
func (g *Gate) liftRestrictions(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, user platform.UserID) error {
	ch, err := g.client.GetChannel(ctx, community, channel)
	if errors.Is(err, platform.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lift gate restrictions: %w", err)
	}

	ov, ok := ch.Overwrite(platform.User(user))
	if !ok {
		return nil
	}
	ov.Deny &^= permGateRestricted

	if ov.Allow == 0 && ov.Deny == 0 {
		err = g.client.RemoveOverwrite(ctx, community, channel, platform.User(user))
	} else {
		err = g.client.EditOverwrite(ctx, community, channel, ov)
	}
	if err != nil && !errors.Is(err, platform.ErrNotFound) {
		return fmt.Errorf("lift gate restrictions: %w", err)
	}
	return nil
}
