package voice

import (
	"context"

	"github.com/tempvox/tempvox/internal/platform"
)

// Grant contains the credentials a user needs to join a room's media session.
type Grant struct {
	URL      string `json:"url"`      // media server WebSocket URL
	Token    string `json:"token"`    // access token scoped to the room
	Room     string `json:"room"`     // media-plane room name
	Identity string `json:"identity"` // user identity inside the room
}

// Issuer mints media join grants. Provisioning mints one for the owner of a
// fresh room; the password gate mints one when a correct secret clears the
// entry restrictions.
type Issuer interface {
	// IssueGrant creates a join grant for the user on the given channel.
	IssueGrant(ctx context.Context, channel platform.ChannelID, user platform.UserID) (*Grant, error)
}

// Disabled is an Issuer for deployments without a media backend; it returns
// nil grants and callers are expected to cope.
type Disabled struct{}

// IssueGrant returns no grant.
func (Disabled) IssueGrant(context.Context, platform.ChannelID, platform.UserID) (*Grant, error) {
	return nil, nil
}
