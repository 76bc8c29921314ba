package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/store"
)

var (
	// ErrNotFound is returned when no record exists for the owner or channel.
	ErrNotFound = errors.New("registry: record not found")
	// ErrAlreadyOwner is returned when a put or transfer would give a user a
	// second room.
	ErrAlreadyOwner = errors.New("registry: user already owns a room")
)

// Registry is the authoritative owner-to-room mapping per community. Every
// mutation is a full load-modify-save of the community document, serialized by
// a per-community mutex: the backing store does not protect concurrent writers
// to the same document, so the lock here is what keeps them from losing
// updates.
type Registry struct {
	store store.Store

	mu    sync.Mutex
	locks map[platform.CommunityID]*sync.Mutex
}

// New builds a registry over the given store.
func New(st store.Store) *Registry {
	return &Registry{
		store: st,
		locks: make(map[platform.CommunityID]*sync.Mutex),
	}
}

func (r *Registry) lockFor(community platform.CommunityID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[community]
	if !ok {
		l = &sync.Mutex{}
		r.locks[community] = l
	}
	return l
}

// load reads the community document, mapping a missing document to an empty
// one for reads and mutations alike (documents are created lazily).
func (r *Registry) load(ctx context.Context, community platform.CommunityID) (*store.CommunityDoc, error) {
	doc, err := r.store.Load(ctx, community)
	if errors.Is(err, store.ErrNotFound) {
		return store.NewCommunityDoc(), nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Get returns a copy of the owner's record.
func (r *Registry) Get(ctx context.Context, community platform.CommunityID, owner platform.UserID) (*store.RoomRecord, error) {
	doc, err := r.load(ctx, community)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Rooms[owner]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// GetByChannel returns a copy of the record backing the given channel.
func (r *Registry) GetByChannel(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) (*store.RoomRecord, error) {
	doc, err := r.load(ctx, community)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.RoomByChannel(channel)
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Put stores a new record for the owner. Fails with ErrAlreadyOwner if the
// owner already holds one.
func (r *Registry) Put(ctx context.Context, community platform.CommunityID, rec *store.RoomRecord) error {
	lock := r.lockFor(community)
	lock.Lock()
	defer lock.Unlock()

	doc, err := r.load(ctx, community)
	if err != nil {
		return err
	}
	if _, exists := doc.Rooms[rec.OwnerID]; exists {
		return ErrAlreadyOwner
	}
	doc.Rooms[rec.OwnerID] = rec.Clone()
	return r.store.Save(ctx, community, doc)
}

// Delete removes the owner's record. Deleting an absent record returns
// ErrNotFound so callers can distinguish a lost race from success.
func (r *Registry) Delete(ctx context.Context, community platform.CommunityID, owner platform.UserID) error {
	lock := r.lockFor(community)
	lock.Lock()
	defer lock.Unlock()

	doc, err := r.load(ctx, community)
	if err != nil {
		return err
	}
	if _, ok := doc.Rooms[owner]; !ok {
		return ErrNotFound
	}
	delete(doc.Rooms, owner)
	return r.store.Save(ctx, community, doc)
}

// DeleteByChannel removes the record backing the given channel and returns a
// copy of it. NotFound for a channel already reaped or never provisioned, so a
// duplicated empty-room event deletes exactly once.
func (r *Registry) DeleteByChannel(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) (*store.RoomRecord, error) {
	lock := r.lockFor(community)
	lock.Lock()
	defer lock.Unlock()

	doc, err := r.load(ctx, community)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.RoomByChannel(channel)
	if !ok {
		return nil, ErrNotFound
	}
	delete(doc.Rooms, rec.OwnerID)
	if err := r.store.Save(ctx, community, doc); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Update applies fn to the owner's record inside the community lock and
// persists the result. A record deleted by a concurrent writer surfaces as
// ErrNotFound; fn never runs in that case. The updated record is returned.
func (r *Registry) Update(ctx context.Context, community platform.CommunityID, owner platform.UserID, fn func(*store.RoomRecord) error) (*store.RoomRecord, error) {
	lock := r.lockFor(community)
	lock.Lock()
	defer lock.Unlock()

	doc, err := r.load(ctx, community)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Rooms[owner]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := r.store.Save(ctx, community, doc); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// UpdateByChannel is Update keyed by the backing channel instead of the owner.
func (r *Registry) UpdateByChannel(ctx context.Context, community platform.CommunityID, channel platform.ChannelID, fn func(*store.RoomRecord) error) (*store.RoomRecord, error) {
	lock := r.lockFor(community)
	lock.Lock()
	defer lock.Unlock()

	doc, err := r.load(ctx, community)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.RoomByChannel(channel)
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := r.store.Save(ctx, community, doc); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Transfer atomically re-keys the record from oldOwner to newOwner within one
// document rewrite: afterwards exactly one of the two holds it, and the
// channel id is preserved. Fails if oldOwner has no record or newOwner
// already owns one.
func (r *Registry) Transfer(ctx context.Context, community platform.CommunityID, oldOwner, newOwner platform.UserID) (*store.RoomRecord, error) {
	lock := r.lockFor(community)
	lock.Lock()
	defer lock.Unlock()

	doc, err := r.load(ctx, community)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Rooms[oldOwner]
	if !ok {
		return nil, ErrNotFound
	}
	if _, taken := doc.Rooms[newOwner]; taken {
		return nil, fmt.Errorf("transfer to %s: %w", newOwner, ErrAlreadyOwner)
	}

	delete(doc.Rooms, oldOwner)
	rec.OwnerID = newOwner
	doc.Rooms[newOwner] = rec

	if err := r.store.Save(ctx, community, doc); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// IsMaster reports whether the channel is a registered lobby for the community.
func (r *Registry) IsMaster(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) (bool, error) {
	doc, err := r.load(ctx, community)
	if err != nil {
		return false, err
	}
	return doc.IsMaster(channel), nil
}

// AddMaster registers a lobby channel. Idempotent.
func (r *Registry) AddMaster(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) error {
	lock := r.lockFor(community)
	lock.Lock()
	defer lock.Unlock()

	doc, err := r.load(ctx, community)
	if err != nil {
		return err
	}
	if doc.IsMaster(channel) {
		return nil
	}
	doc.MasterChannels = append(doc.MasterChannels, channel)
	return r.store.Save(ctx, community, doc)
}

// RemoveMaster unregisters a lobby channel.
func (r *Registry) RemoveMaster(ctx context.Context, community platform.CommunityID, channel platform.ChannelID) error {
	lock := r.lockFor(community)
	lock.Lock()
	defer lock.Unlock()

	doc, err := r.load(ctx, community)
	if err != nil {
		return err
	}
	out := doc.MasterChannels[:0]
	for _, m := range doc.MasterChannels {
		if m != channel {
			out = append(out, m)
		}
	}
	doc.MasterChannels = out
	return r.store.Save(ctx, community, doc)
}

// ListRooms returns copies of every record in the community.
func (r *Registry) ListRooms(ctx context.Context, community platform.CommunityID) ([]*store.RoomRecord, error) {
	doc, err := r.load(ctx, community)
	if err != nil {
		return nil, err
	}
	out := make([]*store.RoomRecord, 0, len(doc.Rooms))
	for _, rec := range doc.Rooms {
		out = append(out, rec.Clone())
	}
	return out, nil
}
