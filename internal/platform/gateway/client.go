package gateway

import (
	"context"

	"github.com/tempvox/tempvox/internal/platform"
)

// Request payload shapes for the platform.Client operations. Every request
// names its community; channel-scoped ones add the channel.

type channelRequest struct {
	Community platform.CommunityID `json:"community"`
	Channel   platform.ChannelID   `json:"channel"`
}

type createChannelRequest struct {
	Community platform.CommunityID   `json:"community"`
	Spec      platform.CreateChannel `json:"spec"`
}

type editChannelRequest struct {
	Community platform.CommunityID  `json:"community"`
	Channel   platform.ChannelID    `json:"channel"`
	Patch     platform.ChannelPatch `json:"patch"`
}

type overwriteRequest struct {
	Community platform.CommunityID `json:"community"`
	Channel   platform.ChannelID   `json:"channel"`
	Overwrite platform.Overwrite   `json:"overwrite"`
}

type principalRequest struct {
	Community platform.CommunityID `json:"community"`
	Channel   platform.ChannelID   `json:"channel"`
	Principal platform.Principal   `json:"principal"`
}

type memberRequest struct {
	Community platform.CommunityID `json:"community"`
	User      platform.UserID      `json:"user"`
	Channel   platform.ChannelID   `json:"channel,omitempty"`
}

type voiceStateRequest struct {
	Community platform.CommunityID `json:"community"`
	User      platform.UserID      `json:"user"`
	State     platform.VoiceState  `json:"state"`
}

type messageRequest struct {
	Community platform.CommunityID `json:"community"`
	Channel   platform.ChannelID   `json:"channel"`
	ID        platform.MessageID   `json:"id,omitempty"`
	Message   platform.Message     `json:"message"`
}

type recentMessagesRequest struct {
	Community platform.CommunityID `json:"community"`
	Channel   platform.ChannelID   `json:"channel"`
	Limit     int                  `json:"limit"`
}

// CreateChannel implements platform.Client.
func (g *Gateway) CreateChannel(ctx context.Context, community platform.CommunityID, spec platform.CreateChannel) (*platform.Channel, error) {
	var out platform.Channel
	if err := g.call(ctx, "create_channel", createChannelRequest{Community: community, Spec: spec}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChannel implements platform.Client.
func (g *Gateway) DeleteChannel(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) error {
	return g.call(ctx, "delete_channel", channelRequest{Community: community, Channel: channel}, nil)
}

// GetChannel implements platform.Client.
func (g *Gateway) GetChannel(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) (*platform.Channel, error) {
	var out platform.Channel
	if err := g.call(ctx, "get_channel", channelRequest{Community: community, Channel: channel}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditChannel implements platform.Client.
func (g *Gateway) EditChannel(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, patch platform.ChannelPatch) error {
	return g.call(ctx, "edit_channel", editChannelRequest{Community: community, Channel: channel, Patch: patch}, nil)
}

// EditOverwrite implements platform.Client.
func (g *Gateway) EditOverwrite(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, ov platform.Overwrite) error {
	return g.call(ctx, "edit_overwrite", overwriteRequest{Community: community, Channel: channel, Overwrite: ov}, nil)
}

// RemoveOverwrite implements platform.Client.
func (g *Gateway) RemoveOverwrite(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, p platform.Principal) error {
	return g.call(ctx, "remove_overwrite", principalRequest{Community: community, Channel: channel, Principal: p}, nil)
}

// MoveMember implements platform.Client.
func (g *Gateway) MoveMember(ctx context.Context, community platform.CommunityID, user platform.UserID, channel platform.ChannelID) error {
	return g.call(ctx, "move_member", memberRequest{Community: community, User: user, Channel: channel}, nil)
}

// Disconnect implements platform.Client.
func (g *Gateway) Disconnect(ctx context.Context, community platform.CommunityID, user platform.UserID) error {
	return g.call(ctx, "disconnect_member", memberRequest{Community: community, User: user}, nil)
}

// SetVoiceState implements platform.Client.
func (g *Gateway) SetVoiceState(ctx context.Context, community platform.CommunityID, user platform.UserID, state platform.VoiceState) error {
	return g.call(ctx, "set_voice_state", voiceStateRequest{Community: community, User: user, State: state}, nil)
}

// SendMessage implements platform.Client.
func (g *Gateway) SendMessage(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, msg platform.Message) (platform.MessageID, error) {
	var out struct {
		ID platform.MessageID `json:"id"`
	}
	if err := g.call(ctx, "send_message", messageRequest{Community: community, Channel: channel, Message: msg}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// EditMessage implements platform.Client.
func (g *Gateway) EditMessage(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, id platform.MessageID, msg platform.Message) error {
	return g.call(ctx, "edit_message", messageRequest{Community: community, Channel: channel, ID: id, Message: msg}, nil)
}

// DeleteMessage implements platform.Client.
func (g *Gateway) DeleteMessage(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, id platform.MessageID) error {
	return g.call(ctx, "delete_message", messageRequest{Community: community, Channel: channel, ID: id}, nil)
}

// RecentMessages implements platform.Client.
func (g *Gateway) RecentMessages(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, limit int) ([]platform.Message, error) {
	var out []platform.Message
	if err := g.call(ctx, "recent_messages", recentMessagesRequest{Community: community, Channel: channel, Limit: limit}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ platform.Client = (*Gateway)(nil)
