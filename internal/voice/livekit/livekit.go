package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/voice"
)

// Issuer mints LiveKit access tokens for provisioned rooms. The media-plane
// room name mirrors the platform channel id, so LiveKit creates the room
// on demand when the first grant is used.
type Issuer struct {
	apiKey    string
	apiSecret string
	wsURL     string
	ttl       time.Duration
}

// New creates a LiveKit-backed issuer.
func New(apiKey, apiSecret, wsURL string) *Issuer {
	return &Issuer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     wsURL,
		ttl:       time.Hour,
	}
}

// IssueGrant creates a join token for the user scoped to the channel's
// media room.
func (i *Issuer) IssueGrant(_ context.Context, channel platform.ChannelID, user platform.UserID) (*voice.Grant, error) {
	roomName := fmt.Sprintf("tempvox-%s", channel)
	identity := fmt.Sprintf("user-%s", user)

	at := auth.NewAccessToken(i.apiKey, i.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(i.ttl)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("generate join token: %w", err)
	}

	return &voice.Grant{
		URL:      i.wsURL,
		Token:    token,
		Room:     roomName,
		Identity: identity,
	}, nil
}

var _ voice.Issuer = (*Issuer)(nil)
