package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/store"
)

func TestLoadUnknownCommunity(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	_, err = s.Load(context.Background(), "g1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	doc := store.NewCommunityDoc()
	doc.MasterChannels = []platform.ChannelID{"lobby-1"}
	doc.Rooms["owner-1"] = &store.RoomRecord{
		ChannelID: "room-1",
		OwnerID:   "owner-1",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Denied:    []platform.UserID{"bad-1"},
		Password: &store.PasswordRecord{
			Hash:    "$2a$10$fake",
			Enabled: true,
		},
	}

	if err := s.Save(ctx, "g1", doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx, "g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.IsMaster("lobby-1") {
		t.Fatalf("expected lobby-1 to be a master channel")
	}
	rec, ok := got.Rooms["owner-1"]
	if !ok {
		t.Fatalf("expected room record for owner-1")
	}
	if rec.ChannelID != "room-1" || !rec.IsDenied("bad-1") || !rec.Gated() {
		t.Fatalf("unexpected record after round trip: %+v", rec)
	}
}

func TestSaveOverwritesWholeDocument(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	doc := store.NewCommunityDoc()
	doc.Rooms["owner-1"] = &store.RoomRecord{ChannelID: "room-1", OwnerID: "owner-1"}
	if err := s.Save(ctx, "g1", doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Rewrite with the room removed; the old row must not survive.
	if err := s.Save(ctx, "g1", store.NewCommunityDoc()); err != nil {
		t.Fatalf("save empty: %v", err)
	}

	got, err := s.Load(ctx, "g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Rooms) != 0 {
		t.Fatalf("expected empty room map, got %+v", got.Rooms)
	}
}
