package platform

import (
	"context"
	"time"
)

// CommunityID identifies a community (guild) on the hosting platform.
type CommunityID string

// ChannelID identifies a voice or text channel.
type ChannelID string

// UserID identifies a platform user.
type UserID string

// MessageID identifies a message inside a channel's text surface.
type MessageID string

// Permission is a bit set of channel capabilities.
type Permission uint32

const (
	PermView Permission = 1 << iota
	PermConnect
	PermSpeak
	PermSendMessages
	PermMoveMembers
	PermMuteMembers
	PermManageChannel
)

// PermFullControl is the set granted to a room owner and to the service user.
const PermFullControl = PermView | PermConnect | PermSpeak | PermSendMessages |
	PermMoveMembers | PermMuteMembers | PermManageChannel

// PrincipalKind says what an overwrite applies to.
type PrincipalKind string

const (
	PrincipalUser PrincipalKind = "user"
	PrincipalRole PrincipalKind = "role"
)

// Principal is the subject of a permission overwrite. The special role id
// EveryoneRole addresses the community-wide default role.
type Principal struct {
	Kind PrincipalKind `json:"kind"`
	ID   string        `json:"id"`
}

// EveryoneRole is the pseudo-id of the community default role.
const EveryoneRole = "everyone"

// Everyone returns the principal for the community default role.
func Everyone() Principal {
	return Principal{Kind: PrincipalRole, ID: EveryoneRole}
}

// User returns the principal for a single user.
func User(id UserID) Principal {
	return Principal{Kind: PrincipalUser, ID: string(id)}
}

// Overwrite grants and denies permissions for one principal on one channel.
type Overwrite struct {
	Principal Principal  `json:"principal"`
	Allow     Permission `json:"allow"`
	Deny      Permission `json:"deny"`
}

// Channel is the platform's view of a voice channel, including its live
// permission overwrites.
type Channel struct {
	ID         ChannelID   `json:"id"`
	Community  CommunityID `json:"community"`
	Name       string      `json:"name"`
	ParentID   ChannelID   `json:"parent_id,omitempty"`
	UserLimit  int         `json:"user_limit"`
	Bitrate    int         `json:"bitrate"`
	Region     string      `json:"region,omitempty"`
	Overwrites []Overwrite `json:"overwrites"`
}

// Overwrite returns the channel's overwrite for the given principal, if any.
func (c *Channel) Overwrite(p Principal) (Overwrite, bool) {
	for _, ov := range c.Overwrites {
		if ov.Principal == p {
			return ov, true
		}
	}
	return Overwrite{}, false
}

// ChannelPatch is a partial channel update; nil fields are left unchanged.
type ChannelPatch struct {
	Name      *string `json:"name,omitempty"`
	UserLimit *int    `json:"user_limit,omitempty"`
}

// CreateChannel describes a channel to be created.
type CreateChannel struct {
	Name       string      `json:"name"`
	ParentID   ChannelID   `json:"parent_id,omitempty"`
	UserLimit  int         `json:"user_limit"`
	Bitrate    int         `json:"bitrate"`
	Region     string      `json:"region,omitempty"`
	Overwrites []Overwrite `json:"overwrites"`
}

// Message is a message on a channel's text surface.
type Message struct {
	ID       MessageID `json:"id"`
	Author   UserID    `json:"author"`
	Content  string    `json:"content"`
	Nonce    string    `json:"nonce,omitempty"`
	SentAt   time.Time `json:"sent_at"`
	PanelTag bool      `json:"panel_tag,omitempty"`
}

// VoiceState is the server-side mute/deafen state applied to a member.
type VoiceState struct {
	Muted    bool `json:"muted"`
	Deafened bool `json:"deafened"`
}

// Client is the narrow boundary to the external platform process. All calls
// are remote and may fail with ErrNotFound or ErrPermission.
type Client interface {
	// CreateChannel creates a voice channel and returns its platform view.
	CreateChannel(ctx context.Context, community CommunityID, spec CreateChannel) (*Channel, error)

	// DeleteChannel removes a channel. Deleting an already-gone channel
	// returns ErrNotFound.
	DeleteChannel(ctx context.Context, community CommunityID, channel ChannelID) error

	// GetChannel fetches the channel including its live overwrites.
	GetChannel(ctx context.Context, community CommunityID, channel ChannelID) (*Channel, error)

	// EditChannel applies a partial update to channel settings.
	EditChannel(ctx context.Context, community CommunityID, channel ChannelID, patch ChannelPatch) error

	// EditOverwrite sets the overwrite for one principal on a channel,
	// replacing any existing overwrite for that principal.
	EditOverwrite(ctx context.Context, community CommunityID, channel ChannelID, ov Overwrite) error

	// RemoveOverwrite deletes the overwrite for a principal, restoring the
	// channel default for them.
	RemoveOverwrite(ctx context.Context, community CommunityID, channel ChannelID, p Principal) error

	// MoveMember relocates a connected member into another voice channel.
	MoveMember(ctx context.Context, community CommunityID, user UserID, channel ChannelID) error

	// Disconnect drops a member from whatever voice channel they occupy.
	Disconnect(ctx context.Context, community CommunityID, user UserID) error

	// SetVoiceState applies server-side mute/deafen to a connected member.
	SetVoiceState(ctx context.Context, community CommunityID, user UserID, state VoiceState) error

	// SendMessage posts to the channel's text surface.
	SendMessage(ctx context.Context, community CommunityID, channel ChannelID, msg Message) (MessageID, error)

	// EditMessage replaces the content of an existing message.
	EditMessage(ctx context.Context, community CommunityID, channel ChannelID, id MessageID, msg Message) error

	// DeleteMessage removes a message from the text surface.
	DeleteMessage(ctx context.Context, community CommunityID, channel ChannelID, id MessageID) error

	// RecentMessages lists up to limit most recent messages, newest first.
	RecentMessages(ctx context.Context, community CommunityID, channel ChannelID, limit int) ([]Message, error)
}
