package rooms

import (
	"context"
	"errors"
	"testing"

	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/registry"
)

func provisionRoom(t *testing.T, env *testEnv, owner platform.UserID) platform.ChannelID {
	t.Helper()
	env.joinLobby(owner)
	room := *env.ownedRoom(t, owner)
	env.move(owner, env.lobby.ID, room)
	return room
}

func TestVisibilityRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")
	ctx := context.Background()

	before, _ := env.client.overwriteFor(room, platform.Everyone())

	if err := env.svc.access.SetVisibility(ctx, testCommunity, room, "alice", VisibilityLocked); err != nil {
		t.Fatalf("set locked: %v", err)
	}
	ov, ok := env.client.overwriteFor(room, platform.Everyone())
	if !ok {
		t.Fatalf("everyone overwrite missing after lock")
	}
	if ov.Deny&platform.PermConnect == 0 || ov.Deny&platform.PermView != 0 {
		t.Errorf("locked deny bits = %b, want connect only", ov.Deny)
	}
	if vis, _ := env.svc.access.Visibility(ctx, testCommunity, room); vis != VisibilityLocked {
		t.Errorf("derived visibility = %s, want locked", vis)
	}

	if err := env.svc.access.SetVisibility(ctx, testCommunity, room, "alice", VisibilityInvisible); err != nil {
		t.Fatalf("set invisible: %v", err)
	}
	if vis, _ := env.svc.access.Visibility(ctx, testCommunity, room); vis != VisibilityInvisible {
		t.Errorf("derived visibility after ghost = %s, want invisible", vis)
	}

	if err := env.svc.access.SetVisibility(ctx, testCommunity, room, "alice", VisibilityPublic); err != nil {
		t.Fatalf("set public: %v", err)
	}
	ov, _ = env.client.overwriteFor(room, platform.Everyone())
	if ov.Deny&(platform.PermView|platform.PermConnect) != 0 {
		t.Errorf("deny bits survive the return to public: %b", ov.Deny)
	}
	if ov.Allow != before.Allow {
		t.Errorf("allow bits changed across the round trip: %b -> %b", before.Allow, ov.Allow)
	}
}

func TestSetVisibilityRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")

	err := env.svc.access.SetVisibility(context.Background(), testCommunity, room, "bob", VisibilityLocked)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner visibility change: err = %v, want ErrNotOwner", err)
	}
}

func TestBanUnbanRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")
	ctx := context.Background()
	env.move("bob", "", room)

	if err := env.svc.access.Ban(ctx, testCommunity, room, "alice", "bob"); err != nil {
		t.Fatalf("ban: %v", err)
	}

	rec, err := env.registry.GetByChannel(ctx, testCommunity, room)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if !rec.IsDenied("bob") {
		t.Errorf("bob missing from the deny list")
	}
	ov, ok := env.client.overwriteFor(room, platform.User("bob"))
	if !ok || ov.Deny != platform.PermView|platform.PermConnect {
		t.Errorf("ban overwrite = %+v, want deny view+connect", ov)
	}
	if !env.client.wasDisconnected("bob") {
		t.Errorf("present user not disconnected on ban")
	}
	if st, _ := env.svc.Stats().Snapshot(room); st.TotalBans != 1 {
		t.Errorf("ban count = %d, want 1", st.TotalBans)
	}

	if err := env.svc.access.Unban(ctx, testCommunity, room, "alice", "bob"); err != nil {
		t.Fatalf("unban: %v", err)
	}
	rec, err = env.registry.GetByChannel(ctx, testCommunity, room)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if rec.IsDenied("bob") {
		t.Errorf("bob still on the deny list after unban")
	}
	if _, ok := env.client.overwriteFor(room, platform.User("bob")); ok {
		t.Errorf("ban overwrite survives the unban")
	}
}

func TestBanRejectsSelfAndOwner(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")

	err := env.svc.access.Ban(context.Background(), testCommunity, room, "alice", "alice")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("self-ban err = %v, want ErrInvalidInput", err)
	}
}

func TestBanCancelsAuthorization(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")
	ctx := context.Background()

	if err := env.svc.access.Authorize(ctx, testCommunity, room, "alice", "bob"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := env.svc.access.Ban(ctx, testCommunity, room, "alice", "bob"); err != nil {
		t.Fatalf("ban: %v", err)
	}

	rec, err := env.registry.GetByChannel(ctx, testCommunity, room)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if rec.IsAuthorized("bob") {
		t.Errorf("banned user kept their authorization")
	}
	if !rec.IsDenied("bob") {
		t.Errorf("bob not denied after ban")
	}
}

func TestKickRequiresPresence(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")
	ctx := context.Background()

	err := env.svc.access.Kick(ctx, testCommunity, room, "alice", "bob")
	if !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("kick of absent user: err = %v, want ErrNotInRoom", err)
	}

	env.move("bob", "", room)
	if err := env.svc.access.Kick(ctx, testCommunity, room, "alice", "bob"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if !env.client.wasDisconnected("bob") {
		t.Errorf("kicked user not disconnected")
	}
	if st, _ := env.svc.Stats().Snapshot(room); st.TotalKicks != 1 {
		t.Errorf("kick count = %d, want 1", st.TotalKicks)
	}
}

func TestAuthorizeGrantsElevatedOverwrite(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")
	ctx := context.Background()

	if err := env.svc.access.Authorize(ctx, testCommunity, room, "alice", "bob"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	ov, ok := env.client.overwriteFor(room, platform.User("bob"))
	if !ok || ov.Allow != permAuthorized {
		t.Errorf("authorize overwrite = %+v, want allow=%b", ov, permAuthorized)
	}

	if err := env.svc.access.Deauthorize(ctx, testCommunity, room, "alice", "bob"); err != nil {
		t.Fatalf("deauthorize: %v", err)
	}
	if _, ok := env.client.overwriteFor(room, platform.User("bob")); ok {
		t.Errorf("overwrite survives deauthorize")
	}
}

func TestClaimTransfersOwnership(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")
	ctx := context.Background()
	env.move("bob", "", room)
	env.move("alice", room, "") // owner leaves, bob stays

	token, err := env.svc.access.Claim(ctx, testCommunity, room, "bob")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := env.svc.access.ClaimConfirm(ctx, testCommunity, room, "bob", token); err != nil {
		t.Fatalf("claim confirm: %v", err)
	}

	rec, err := env.registry.Get(ctx, testCommunity, "bob")
	if err != nil {
		t.Fatalf("bob holds no record after claim: %v", err)
	}
	if rec.ChannelID != room {
		t.Errorf("claim changed the channel: got %s, want %s", rec.ChannelID, room)
	}
	if _, err := env.registry.Get(ctx, testCommunity, "alice"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("alice still holds a record after the transfer: %v", err)
	}

	oldOv, ok := env.client.overwriteFor(room, platform.User("alice"))
	if !ok || oldOv.Allow != permMember {
		t.Errorf("former owner overwrite = %+v, want member allow", oldOv)
	}
	newOv, ok := env.client.overwriteFor(room, platform.User("bob"))
	if !ok || newOv.Allow != platform.PermFullControl {
		t.Errorf("new owner overwrite = %+v, want full control", newOv)
	}
}

func TestClaimRejectedWhileOwnerPresent(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")
	env.move("bob", "", room)

	_, err := env.svc.access.Claim(context.Background(), testCommunity, room, "bob")
	if !errors.Is(err, ErrOwnerPresent) {
		t.Fatalf("claim with owner present: err = %v, want ErrOwnerPresent", err)
	}
}

func TestClaimRequiresClaimantPresence(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")
	env.move("alice", room, "")

	_, err := env.svc.access.Claim(context.Background(), testCommunity, room, "bob")
	if !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("claim from outside: err = %v, want ErrNotInRoom", err)
	}
}

func TestClaimConfirmRejectsTamperedToken(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")
	ctx := context.Background()
	env.move("bob", "", room)
	env.move("alice", room, "")

	token, err := env.svc.access.Claim(ctx, testCommunity, room, "bob")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	// A different user cannot redeem bob's token.
	if err := env.svc.access.ClaimConfirm(ctx, testCommunity, room, "carol", token); err == nil {
		t.Fatalf("foreign claim token accepted")
	}
	if _, err := env.registry.Get(ctx, testCommunity, "alice"); err != nil {
		t.Errorf("ownership moved despite rejected token: %v", err)
	}
}

func TestRenameValidatesLength(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")
	ctx := context.Background()

	if err := env.svc.access.Rename(ctx, testCommunity, room, "alice", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty name err = %v, want ErrInvalidInput", err)
	}
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	if err := env.svc.access.Rename(ctx, testCommunity, room, "alice", string(long)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("overlong name err = %v, want ErrInvalidInput", err)
	}

	if err := env.svc.access.Rename(ctx, testCommunity, room, "alice", "den of thieves"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	ch, _ := env.client.GetChannel(ctx, testCommunity, room)
	if ch.Name != "den of thieves" {
		t.Errorf("name = %q after rename", ch.Name)
	}
}

func TestSetUserLimitBounds(t *testing.T) {
	env := newTestEnv(t)
	room := provisionRoom(t, env, "alice")
	ctx := context.Background()

	if err := env.svc.access.SetUserLimit(ctx, testCommunity, room, "alice", -1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative limit err = %v, want ErrInvalidInput", err)
	}
	if err := env.svc.access.SetUserLimit(ctx, testCommunity, room, "alice", 100); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("limit above cap err = %v, want ErrInvalidInput", err)
	}

	if err := env.svc.access.SetUserLimit(ctx, testCommunity, room, "alice", 0); err != nil {
		t.Fatalf("limit zero: %v", err)
	}
	ch, _ := env.client.GetChannel(ctx, testCommunity, room)
	if ch.UserLimit != 0 {
		t.Errorf("limit = %d, want 0 (unlimited)", ch.UserLimit)
	}
}
