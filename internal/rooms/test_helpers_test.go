package rooms

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/auth"
	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/registry"
	"github.com/tempvox/tempvox/internal/store/sqlite"
	"github.com/tempvox/tempvox/internal/voice"
)

const (
	testCommunity = platform.CommunityID("g1")
	testService   = platform.UserID("svc")
)

// fakeClient is an in-memory platform for tests: channels, overwrites,
// messages, and member locations, with injectable failures.
type fakeClient struct {
	mu           sync.Mutex
	channels     map[platform.ChannelID]*platform.Channel
	messages     map[platform.ChannelID][]platform.Message
	voiceStates  map[platform.UserID]platform.VoiceState
	locations    map[platform.UserID]platform.ChannelID
	disconnected []platform.UserID
	nextChan     int
	nextMsg      int

	failCreate error
	failMove   error
	failDelete error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		channels:    make(map[platform.ChannelID]*platform.Channel),
		messages:    make(map[platform.ChannelID][]platform.Message),
		voiceStates: make(map[platform.UserID]platform.VoiceState),
		locations:   make(map[platform.UserID]platform.ChannelID),
	}
}

// addChannel seeds a channel directly, for lobbies and categories.
func (f *fakeClient) addChannel(ch platform.Channel) *platform.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := ch
	f.channels[ch.ID] = &c
	return &c
}

func (f *fakeClient) CreateChannel(_ context.Context, community platform.CommunityID, spec platform.CreateChannel) (*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	f.nextChan++
	ch := &platform.Channel{
		ID:         platform.ChannelID(fmt.Sprintf("chan-%d", f.nextChan)),
		Community:  community,
		Name:       spec.Name,
		ParentID:   spec.ParentID,
		UserLimit:  spec.UserLimit,
		Bitrate:    spec.Bitrate,
		Region:     spec.Region,
		Overwrites: append([]platform.Overwrite(nil), spec.Overwrites...),
	}
	f.channels[ch.ID] = ch
	out := *ch
	return &out, nil
}

func (f *fakeClient) DeleteChannel(_ context.Context, _ platform.CommunityID, channel platform.ChannelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.channels[channel]; !ok {
		return platform.ErrNotFound
	}
	delete(f.channels, channel)
	delete(f.messages, channel)
	return nil
}

func (f *fakeClient) GetChannel(_ context.Context, _ platform.CommunityID, channel platform.ChannelID) (*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channel]
	if !ok {
		return nil, platform.ErrNotFound
	}
	out := *ch
	out.Overwrites = append([]platform.Overwrite(nil), ch.Overwrites...)
	return &out, nil
}

func (f *fakeClient) EditChannel(_ context.Context, _ platform.CommunityID, channel platform.ChannelID, patch platform.ChannelPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channel]
	if !ok {
		return platform.ErrNotFound
	}
	if patch.Name != nil {
		ch.Name = *patch.Name
	}
	if patch.UserLimit != nil {
		ch.UserLimit = *patch.UserLimit
	}
	return nil
}

func (f *fakeClient) EditOverwrite(_ context.Context, _ platform.CommunityID, channel platform.ChannelID, ov platform.Overwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channel]
	if !ok {
		return platform.ErrNotFound
	}
	for i := range ch.Overwrites {
		if ch.Overwrites[i].Principal == ov.Principal {
			ch.Overwrites[i] = ov
			return nil
		}
	}
	ch.Overwrites = append(ch.Overwrites, ov)
	return nil
}

func (f *fakeClient) RemoveOverwrite(_ context.Context, _ platform.CommunityID, channel platform.ChannelID, p platform.Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channel]
	if !ok {
		return platform.ErrNotFound
	}
	out := ch.Overwrites[:0]
	for _, ov := range ch.Overwrites {
		if ov.Principal != p {
			out = append(out, ov)
		}
	}
	ch.Overwrites = out
	return nil
}

func (f *fakeClient) MoveMember(_ context.Context, _ platform.CommunityID, user platform.UserID, channel platform.ChannelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMove != nil {
		return f.failMove
	}
	if _, ok := f.channels[channel]; !ok {
		return platform.ErrNotFound
	}
	f.locations[user] = channel
	return nil
}

func (f *fakeClient) Disconnect(_ context.Context, _ platform.CommunityID, user platform.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locations, user)
	f.disconnected = append(f.disconnected, user)
	return nil
}

func (f *fakeClient) SetVoiceState(_ context.Context, _ platform.CommunityID, user platform.UserID, state platform.VoiceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voiceStates[user] = state
	return nil
}

func (f *fakeClient) SendMessage(_ context.Context, _ platform.CommunityID, channel platform.ChannelID, msg platform.Message) (platform.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channel]; !ok {
		return "", platform.ErrNotFound
	}
	f.nextMsg++
	msg.ID = platform.MessageID(fmt.Sprintf("msg-%d", f.nextMsg))
	msg.SentAt = time.Now()
	f.messages[channel] = append(f.messages[channel], msg)
	return msg.ID, nil
}

func (f *fakeClient) EditMessage(_ context.Context, _ platform.CommunityID, channel platform.ChannelID, id platform.MessageID, msg platform.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[channel]
	for i := range msgs {
		if msgs[i].ID == id {
			msg.ID = id
			msgs[i] = msg
			return nil
		}
	}
	return platform.ErrNotFound
}

func (f *fakeClient) DeleteMessage(_ context.Context, _ platform.CommunityID, channel platform.ChannelID, id platform.MessageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[channel]
	for i := range msgs {
		if msgs[i].ID == id {
			f.messages[channel] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return platform.ErrNotFound
}

func (f *fakeClient) RecentMessages(_ context.Context, _ platform.CommunityID, channel platform.ChannelID, limit int) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channel]; !ok {
		return nil, platform.ErrNotFound
	}
	msgs := f.messages[channel]
	out := make([]platform.Message, 0, limit)
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (f *fakeClient) wasDisconnected(user platform.UserID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.disconnected {
		if u == user {
			return true
		}
	}
	return false
}

func (f *fakeClient) channelExists(ch platform.ChannelID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.channels[ch]
	return ok
}

func (f *fakeClient) overwriteFor(ch platform.ChannelID, p platform.Principal) (platform.Overwrite, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.channels[ch]
	if !ok {
		return platform.Overwrite{}, false
	}
	return c.Overwrite(p)
}

var _ platform.Client = (*fakeClient)(nil)

// grantIssuer records issued grants.
type grantIssuer struct {
	mu     sync.Mutex
	issued []platform.UserID
}

func (g *grantIssuer) IssueGrant(_ context.Context, channel platform.ChannelID, user platform.UserID) (*voice.Grant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued = append(g.issued, user)
	return &voice.Grant{
		URL:      "ws://media.test",
		Token:    "grant-" + string(user),
		Room:     "tempvox-" + string(channel),
		Identity: "user-" + string(user),
	}, nil
}

func (g *grantIssuer) grantedTo(user platform.UserID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, u := range g.issued {
		if u == user {
			return true
		}
	}
	return false
}

type testEnv struct {
	svc      *Service
	client   *fakeClient
	registry *registry.Registry
	issuer   *grantIssuer
	lobby    *platform.Channel
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reg := registry.New(st)
	client := newFakeClient()
	issuer := &grantIssuer{}
	logger := zerolog.Nop()

	svc := NewService(Options{
		Registry:    reg,
		Client:      client,
		Voice:       issuer,
		Confirmer:   auth.NewConfirmer([]byte("test-secret"), "tempvox", time.Minute),
		ServiceUser: testService,
		Admins:      []platform.UserID{"admin"},
		Logger:      &logger,
	})

	lobby := client.addChannel(platform.Channel{
		ID:        "lobby",
		Community: testCommunity,
		Name:      "Join to Create",
		ParentID:  "category",
		UserLimit: 10,
		Bitrate:   64000,
		Region:    "eu",
	})
	client.addChannel(platform.Channel{
		ID:        "category",
		Community: testCommunity,
		Name:      "Voice Rooms",
		Overwrites: []platform.Overwrite{
			{Principal: platform.Everyone(), Allow: platform.PermView},
		},
	})

	if err := reg.AddMaster(context.Background(), testCommunity, lobby.ID); err != nil {
		t.Fatalf("register master: %v", err)
	}

	return &testEnv{svc: svc, client: client, registry: reg, issuer: issuer, lobby: lobby}
}

// joinLobby feeds the occupancy event for a user entering the lobby.
func (e *testEnv) joinLobby(user platform.UserID) {
	lobbyID := e.lobby.ID
	e.svc.HandleVoice(context.Background(), platform.VoiceUpdate{
		Community: testCommunity,
		User:      user,
		To:        &lobbyID,
	})
}

// move feeds an occupancy event between two channels.
func (e *testEnv) move(user platform.UserID, from, to platform.ChannelID) {
	ev := platform.VoiceUpdate{Community: testCommunity, User: user}
	if from != "" {
		f := from
		ev.From = &f
	}
	if to != "" {
		t := to
		ev.To = &t
	}
	e.svc.HandleVoice(context.Background(), ev)
}

// ownedRoom fetches the record the user owns, failing the test otherwise.
func (e *testEnv) ownedRoom(t *testing.T, user platform.UserID) *platform.ChannelID {
	t.Helper()
	rec, err := e.registry.Get(context.Background(), testCommunity, user)
	if err != nil {
		t.Fatalf("expected %s to own a room: %v", user, err)
	}
	return &rec.ChannelID
}
