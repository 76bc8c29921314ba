package rooms

import (
	"errors"

	"github.com/tempvox/tempvox/internal/auth"
	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/registry"
)

// Error codes reported back to the initiating user.
const (
	ErrCodeRoomNotFound     = "room_not_found"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeValidation       = "validation"
	ErrCodeConflict         = "conflict"
	ErrCodeConfirmExpired   = "confirm_expired"
	ErrCodeWrongSecret      = "wrong_secret"
	ErrCodeUnknownAction    = "unknown_action"
	ErrCodeInternal         = "internal"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotOwner      = errors.New("only the room owner can do that")
	ErrNotAdmin      = errors.New("only an administrator can do that")
	ErrWrongSecret   = errors.New("wrong secret")
	ErrOwnerPresent  = errors.New("owner is still in the room")
	ErrNotInRoom     = errors.New("user is not in the room")
	ErrDenied        = errors.New("user is denied entry to the room")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnknownAction = errors.New("unknown action")
)

// ErrorCode maps any error from a room operation onto the closed code set.
// Concurrent-mutation-lost and platform not-found both read as room_not_found:
// the record or channel was gone by the time the action landed.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoomNotFound),
		errors.Is(err, registry.ErrNotFound),
		errors.Is(err, platform.ErrNotFound):
		return ErrCodeRoomNotFound
	case errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrNotAdmin),
		errors.Is(err, ErrOwnerPresent),
		errors.Is(err, ErrDenied),
		errors.Is(err, platform.ErrPermission):
		return ErrCodePermissionDenied
	case errors.Is(err, ErrWrongSecret):
		return ErrCodeWrongSecret
	case errors.Is(err, auth.ErrExpired):
		return ErrCodeConfirmExpired
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotInRoom):
		return ErrCodeValidation
	case errors.Is(err, registry.ErrAlreadyOwner):
		return ErrCodeConflict
	case errors.Is(err, ErrUnknownAction):
		return ErrCodeUnknownAction
	default:
		return ErrCodeInternal
	}
}
