package rooms

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/auth"
	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/registry"
	"github.com/tempvox/tempvox/internal/voice"
)

// Service composes the room lifecycle components behind the two entry points
// the event pipeline calls: occupancy changes and interactive actions. Each
// call does its own error containment; nothing here is fatal.
type Service struct {
	registry    *registry.Registry
	client      platform.Client
	presence    *Presence
	stats       *Stats
	watcher     *Watcher
	provisioner *Provisioner
	access      *Access
	gate        *Gate
	panel       *Panel
	reaper      *Reaper
	confirmer   *auth.Confirmer
	admins      map[platform.UserID]bool
	log         *zerolog.Logger
}

// Options carries the injected collaborators for NewService.
type Options struct {
	Registry    *registry.Registry
	Client      platform.Client
	Voice       voice.Issuer
	Confirmer   *auth.Confirmer
	Renderer    Renderer
	Stats       *Stats
	ServiceUser platform.UserID
	// Admins may register and unregister lobby channels. The service user
	// is always an admin.
	Admins []platform.UserID
	Logger *zerolog.Logger
}

// NewService wires the component graph.
func NewService(opts Options) *Service {
	if opts.Voice == nil {
		opts.Voice = voice.Disabled{}
	}
	if opts.Stats == nil {
		opts.Stats = NewStats()
	}
	if opts.Renderer == nil {
		opts.Renderer = plainRenderer{}
	}

	admins := make(map[platform.UserID]bool, len(opts.Admins)+1)
	for _, a := range opts.Admins {
		admins[a] = true
	}
	if opts.ServiceUser != "" {
		admins[opts.ServiceUser] = true
	}

	presence := NewPresence()
	panel := NewPanel(opts.Registry, opts.Client, presence, opts.Stats, opts.Renderer, opts.ServiceUser, opts.Logger)
	prov := NewProvisioner(opts.Registry, opts.Client, panel, opts.Voice, opts.ServiceUser, opts.Logger)

	return &Service{
		registry:    opts.Registry,
		client:      opts.Client,
		presence:    presence,
		stats:       opts.Stats,
		watcher:     NewWatcher(opts.Registry, opts.Client, prov, opts.Logger),
		provisioner: prov,
		access:      NewAccess(opts.Registry, opts.Client, presence, opts.Stats, opts.Confirmer, opts.Logger),
		gate:        NewGate(opts.Registry, opts.Client, opts.Confirmer, opts.Voice, opts.Logger),
		panel:       panel,
		reaper:      NewReaper(opts.Registry, opts.Client, opts.Stats, presence, opts.Logger),
		confirmer:   opts.Confirmer,
		admins:      admins,
		log:         opts.Logger,
	}
}

// Presence exposes the occupancy tracker for read-only consumers.
func (s *Service) Presence() *Presence { return s.presence }

// Stats exposes the collector for read-only consumers.
func (s *Service) Stats() *Stats { return s.stats }

// HandleVoice processes one occupancy-change event. All failures are logged
// and swallowed: the pipeline must survive anything a single event does.
func (s *Service) HandleVoice(ctx context.Context, ev platform.VoiceUpdate) {
	if ev.From != nil {
		s.handleLeave(ctx, ev.Community, ev.User, *ev.From)
	}
	if ev.To != nil {
		s.handleJoin(ctx, ev.Community, ev.User, *ev.To)
	}
}

func (s *Service) handleLeave(ctx context.Context, community platform.CommunityID, user platform.UserID, from platform.ChannelID) {
	remaining := s.presence.Leave(from, user)

	_, err := s.registry.GetByChannel(ctx, community, from)
	if errors.Is(err, registry.ErrNotFound) {
		return // not a provisioned room
	}
	if err != nil {
		s.log.Error().Err(err).Str("channel", string(from)).Msg("leave: registry lookup failed")
		return
	}

	s.stats.RecordLeave(from)

	if remaining == 0 {
		if err := s.reaper.OnEmpty(ctx, community, from); err != nil {
			s.log.Error().Err(err).Str("channel", string(from)).Msg("reap failed")
		}
		return
	}

	if err := s.panel.Refresh(ctx, community, from); err != nil && !errors.Is(err, ErrRoomNotFound) {
		s.log.Warn().Err(err).Str("channel", string(from)).Msg("panel refresh after leave failed")
	}
}

func (s *Service) handleJoin(ctx context.Context, community platform.CommunityID, user platform.UserID, to platform.ChannelID) {
	occupancy := s.presence.Join(to, user)

	isMaster, err := s.registry.IsMaster(ctx, community, to)
	if err != nil {
		s.log.Error().Err(err).Str("channel", string(to)).Msg("join: master lookup failed")
		return
	}
	if isMaster {
		// Lobby entry: provision or relocate. Failures must not crash the
		// pipeline, so they end here.
		if _, err := s.watcher.OnLobbyJoin(ctx, community, user, to); err != nil {
			s.log.Error().Err(err).
				Str("community", string(community)).
				Str("user", string(user)).
				Msg("auto-provision failed")
		}
		return
	}

	rec, err := s.registry.GetByChannel(ctx, community, to)
	if errors.Is(err, registry.ErrNotFound) {
		return // not a provisioned room
	}
	if err != nil {
		s.log.Error().Err(err).Str("channel", string(to)).Msg("join: registry lookup failed")
		return
	}

	s.stats.RecordJoin(to, user, occupancy)

	if rec.IsDenied(user) {
		// Overwrites should have kept them out; enforce anyway.
		if err := s.client.Disconnect(ctx, community, user); err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.log.Warn().Err(err).Str("user", string(user)).Msg("failed to disconnect denied user")
		}
		return
	}

	if err := s.gate.OnEntry(ctx, community, rec, user); err != nil {
		s.log.Error().Err(err).Str("user", string(user)).Str("channel", string(to)).Msg("gate entry failed")
	}

	if err := s.panel.Refresh(ctx, community, to); err != nil && !errors.Is(err, ErrRoomNotFound) {
		s.log.Warn().Err(err).Str("channel", string(to)).Msg("panel refresh after join failed")
	}
}

// HandleInteraction parses and executes one interactive action, reporting the
// outcome to the initiator. The verb dispatch is exhaustive over the closed
// Verb set.
func (s *Service) HandleInteraction(ctx context.Context, in platform.Interaction) platform.InteractionResult {
	action, err := ParseAction(in.Action)
	if err != nil {
		return platform.InteractionResult{OK: false, Code: ErrorCode(err)}
	}

	community, actor, channel := in.Community, in.User, action.Channel
	result := platform.InteractionResult{OK: true}

	switch action.Verb {
	case VerbSetPublic:
		err = s.access.SetVisibility(ctx, community, channel, actor, VisibilityPublic)
	case VerbSetLocked:
		err = s.access.SetVisibility(ctx, community, channel, actor, VisibilityLocked)
	case VerbSetInvisible:
		err = s.access.SetVisibility(ctx, community, channel, actor, VisibilityInvisible)
	case VerbBan:
		err = s.access.Ban(ctx, community, channel, actor, action.TargetUser)
	case VerbUnban:
		err = s.access.Unban(ctx, community, channel, actor, action.TargetUser)
	case VerbKick:
		err = s.access.Kick(ctx, community, channel, actor, action.TargetUser)
	case VerbAuthorize:
		err = s.access.Authorize(ctx, community, channel, actor, action.TargetUser)
	case VerbDeauthorize:
		err = s.access.Deauthorize(ctx, community, channel, actor, action.TargetUser)
	case VerbClaim:
		result.ConfirmToken, err = s.access.Claim(ctx, community, channel, actor)
	case VerbClaimConfirm:
		err = s.access.ClaimConfirm(ctx, community, channel, actor, in.Token)
	case VerbDelete:
		result.ConfirmToken, err = s.requestDelete(ctx, community, channel, actor)
	case VerbDeleteConfirm:
		err = s.confirmDelete(ctx, community, channel, actor, in.Token)
	case VerbGateSet:
		err = s.gate.Enable(ctx, community, channel, actor, in.Value, "")
	case VerbGateClear:
		err = s.gate.Disable(ctx, community, channel, actor)
	case VerbGateSubmit:
		var grant *voice.Grant
		grant, err = s.gate.Submit(ctx, community, channel, actor, in.Value, in.Token)
		if grant != nil {
			result.VoiceToken = grant.Token
			result.VoiceURL = grant.URL
		}
	case VerbRename:
		err = s.access.Rename(ctx, community, channel, actor, in.Value)
	case VerbSetLimit:
		err = s.setLimit(ctx, community, channel, actor, in.Value)
	case VerbMasterAdd:
		err = s.masterAdd(ctx, community, channel, actor)
	case VerbMasterRemove:
		err = s.masterRemove(ctx, community, channel, actor)
	default:
		err = ErrUnknownAction
	}

	if err != nil {
		s.log.Debug().Err(err).
			Str("community", string(community)).
			Str("user", string(actor)).
			Str("action", in.Action).
			Msg("interaction failed")
		return platform.InteractionResult{OK: false, Code: ErrorCode(err)}
	}

	s.refreshAfter(ctx, community, channel, action.Verb)
	return result
}

// refreshAfter updates the panel for verbs that changed displayed state.
func (s *Service) refreshAfter(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, verb Verb) {
	switch verb {
	case VerbClaim, VerbDelete, VerbDeleteConfirm, VerbMasterAdd, VerbMasterRemove:
		return
	}
	if err := s.panel.Refresh(ctx, community, channel); err != nil && !errors.Is(err, ErrRoomNotFound) {
		s.log.Warn().Err(err).Str("channel", string(channel)).Msg("panel refresh failed")
	}
}

func (s *Service) requestDelete(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor platform.UserID) (string, error) {
	rec, err := s.registry.GetByChannel(ctx, community, channel)
	if errors.Is(err, registry.ErrNotFound) {
		return "", ErrRoomNotFound
	}
	if err != nil {
		return "", err
	}
	if rec.OwnerID != actor {
		return "", ErrNotOwner
	}
	return s.confirmer.Mint(auth.PurposeDelete, channel, actor)
}

func (s *Service) confirmDelete(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor platform.UserID, token string) error {
	if err := s.confirmer.Validate(token, auth.PurposeDelete, channel, actor); err != nil {
		return err
	}
	rec, err := s.registry.GetByChannel(ctx, community, channel)
	if errors.Is(err, registry.ErrNotFound) {
		return ErrRoomNotFound
	}
	if err != nil {
		return err
	}
	if rec.OwnerID != actor {
		return ErrNotOwner
	}
	return s.reaper.Teardown(ctx, community, channel)
}

// masterAdd registers a lobby channel; lobby management is admin-only.
func (s *Service) masterAdd(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor platform.UserID) error {
	if !s.admins[actor] {
		return ErrNotAdmin
	}
	return s.registry.AddMaster(ctx, community, channel)
}

func (s *Service) masterRemove(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor platform.UserID) error {
	if !s.admins[actor] {
		return ErrNotAdmin
	}
	return s.registry.RemoveMaster(ctx, community, channel)
}

func (s *Service) setLimit(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, actor platform.UserID, raw string) error {
	limit, err := parseLimit(raw)
	if err != nil {
		return err
	}
	return s.access.SetUserLimit(ctx, community, channel, actor, limit)
}

func parseLimit(raw string) (int, error) {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("user limit %q is not a number: %w", raw, ErrInvalidInput)
	}
	return limit, nil
}

// plainRenderer is the fallback renderer; deployments inject a real one.
type plainRenderer struct{}

func (plainRenderer) Render(snap PanelSnapshot) string {
	return snap.Name + " [" + snap.Visibility.String() + "]"
}
