package rooms

import (
	"testing"

	"github.com/tempvox/tempvox/internal/platform"
)

func TestDeriveVisibility(t *testing.T) {
	tests := []struct {
		name string
		ov   []platform.Overwrite
		want Visibility
	}{
		{"no overwrite", nil, VisibilityPublic},
		{"allow only", []platform.Overwrite{
			{Principal: platform.Everyone(), Allow: platform.PermView},
		}, VisibilityPublic},
		{"deny connect", []platform.Overwrite{
			{Principal: platform.Everyone(), Deny: platform.PermConnect},
		}, VisibilityLocked},
		{"deny view", []platform.Overwrite{
			{Principal: platform.Everyone(), Deny: platform.PermView},
		}, VisibilityInvisible},
		{"deny both", []platform.Overwrite{
			{Principal: platform.Everyone(), Deny: platform.PermView | platform.PermConnect},
		}, VisibilityInvisible},
		{"user deny ignored", []platform.Overwrite{
			{Principal: platform.User("u1"), Deny: platform.PermView | platform.PermConnect},
		}, VisibilityPublic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &platform.Channel{ID: "c1", Overwrites: tt.ov}
			if got := DeriveVisibility(ch); got != tt.want {
				t.Errorf("DeriveVisibility = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestVisibilityString(t *testing.T) {
	if VisibilityPublic.String() != "public" || VisibilityLocked.String() != "locked" || VisibilityInvisible.String() != "invisible" {
		t.Errorf("unexpected state names: %s %s %s", VisibilityPublic, VisibilityLocked, VisibilityInvisible)
	}
}
