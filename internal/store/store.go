package store

import (
	"context"
	"errors"
	"time"

	"github.com/tempvox/tempvox/internal/platform"
)

// ErrNotFound is returned when a community document does not exist.
var ErrNotFound = errors.New("store: community not found")

// PasswordRecord is the secret gate attached to a room. Hash is a one-way
// bcrypt digest; the plaintext secret is never stored. Authorized is the
// session-scoped grant set, reset whenever the secret changes.
type PasswordRecord struct {
	Hash        string            `json:"hash"`
	Enabled     bool              `json:"enabled"`
	Authorized  []platform.UserID `json:"authorized,omitempty"`
	Description string            `json:"description,omitempty"`
}

// IsAuthorized reports whether the user holds a session grant.
func (p *PasswordRecord) IsAuthorized(user platform.UserID) bool {
	if p == nil {
		return false
	}
	for _, u := range p.Authorized {
		if u == user {
			return true
		}
	}
	return false
}

// Grant adds a session grant for the user. Idempotent.
func (p *PasswordRecord) Grant(user platform.UserID) {
	if p.IsAuthorized(user) {
		return
	}
	p.Authorized = append(p.Authorized, user)
}

// RoomRecord is one provisioned, owned room.
type RoomRecord struct {
	ChannelID      platform.ChannelID  `json:"channel_id"`
	OwnerID        platform.UserID     `json:"owner_id"`
	CreatedAt      time.Time           `json:"created_at"`
	Denied         []platform.UserID   `json:"denied,omitempty"`
	Authorized     []platform.UserID   `json:"authorized,omitempty"`
	Password       *PasswordRecord     `json:"password,omitempty"`
	PanelMessageID *platform.MessageID `json:"panel_message_id,omitempty"`
}

// IsDenied reports whether the user is on the room's deny list.
func (r *RoomRecord) IsDenied(user platform.UserID) bool {
	return containsUser(r.Denied, user)
}

// IsAuthorized reports whether the user is on the room's allow list.
func (r *RoomRecord) IsAuthorized(user platform.UserID) bool {
	return containsUser(r.Authorized, user)
}

// Deny adds the user to the deny list. Idempotent.
func (r *RoomRecord) Deny(user platform.UserID) {
	if !r.IsDenied(user) {
		r.Denied = append(r.Denied, user)
	}
}

// Undeny removes the user from the deny list.
func (r *RoomRecord) Undeny(user platform.UserID) {
	r.Denied = removeUser(r.Denied, user)
}

// Authorize adds the user to the allow list. Idempotent.
func (r *RoomRecord) Authorize(user platform.UserID) {
	if !r.IsAuthorized(user) {
		r.Authorized = append(r.Authorized, user)
	}
}

// Deauthorize removes the user from the allow list.
func (r *RoomRecord) Deauthorize(user platform.UserID) {
	r.Authorized = removeUser(r.Authorized, user)
}

// Gated reports whether the room currently requires a secret for entry.
func (r *RoomRecord) Gated() bool {
	return r.Password != nil && r.Password.Enabled
}

// Clone returns a deep copy of the record.
func (r *RoomRecord) Clone() *RoomRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Denied = append([]platform.UserID(nil), r.Denied...)
	out.Authorized = append([]platform.UserID(nil), r.Authorized...)
	if r.Password != nil {
		pw := *r.Password
		pw.Authorized = append([]platform.UserID(nil), r.Password.Authorized...)
		out.Password = &pw
	}
	if r.PanelMessageID != nil {
		id := *r.PanelMessageID
		out.PanelMessageID = &id
	}
	return &out
}

// CommunityDoc is the full persisted state of one community: its registered
// master (lobby) channels and the owner-keyed room records. It is read fully
// and rewritten fully on every mutation.
type CommunityDoc struct {
	MasterChannels []platform.ChannelID            `json:"master_channels,omitempty"`
	Rooms          map[platform.UserID]*RoomRecord `json:"rooms,omitempty"`
}

// NewCommunityDoc returns an empty document with an initialized room map.
func NewCommunityDoc() *CommunityDoc {
	return &CommunityDoc{Rooms: make(map[platform.UserID]*RoomRecord)}
}

// IsMaster reports whether the channel is a registered lobby.
func (d *CommunityDoc) IsMaster(ch platform.ChannelID) bool {
	for _, m := range d.MasterChannels {
		if m == ch {
			return true
		}
	}
	return false
}

// RoomByChannel finds the record backing the given channel, if any.
func (d *CommunityDoc) RoomByChannel(ch platform.ChannelID) (*RoomRecord, bool) {
	for _, rec := range d.Rooms {
		if rec.ChannelID == ch {
			return rec, true
		}
	}
	return nil, false
}

// Store persists community documents. Load returns ErrNotFound for an unknown
// community; Save overwrites the whole document. Serializing concurrent
// writers per community is the caller's job, not the store's.
type Store interface {
	// Load reads the full document for a community.
	Load(ctx context.Context, community platform.CommunityID) (*CommunityDoc, error)

	// Save rewrites the full document for a community.
	Save(ctx context.Context, community platform.CommunityID, doc *CommunityDoc) error

	// Close releases the underlying resources.
	Close() error
}

func containsUser(list []platform.UserID, user platform.UserID) bool {
	for _, u := range list {
		if u == user {
			return true
		}
	}
	return false
}

func removeUser(list []platform.UserID, user platform.UserID) []platform.UserID {
	out := list[:0]
	for _, u := range list {
		if u != user {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
