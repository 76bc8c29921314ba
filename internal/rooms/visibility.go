package rooms

import "github.com/tempvox/tempvox/internal/platform"

// Visibility is the room's connectivity state for the community at large. It
// is never stored: the current state is always derived from the room's live
// permission overwrites, so there is no local flag to drift.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityLocked
	VisibilityInvisible
)

// String returns the lowercase state name.
func (v Visibility) String() string {
	switch v {
	case VisibilityLocked:
		return "locked"
	case VisibilityInvisible:
		return "invisible"
	default:
		return "public"
	}
}

// DeriveVisibility reads the room's state off the everyone-principal
// overwrite: denied view means invisible, denied connect means locked,
// anything else is public.
func DeriveVisibility(ch *platform.Channel) Visibility {
	ov, ok := ch.Overwrite(platform.Everyone())
	if !ok {
		return VisibilityPublic
	}
	if ov.Deny&platform.PermView != 0 {
		return VisibilityInvisible
	}
	if ov.Deny&platform.PermConnect != 0 {
		return VisibilityLocked
	}
	return VisibilityPublic
}
