package platform

import "errors"

var (
	// ErrNotFound means the referenced channel, member, or message no longer
	// exists on the platform.
	ErrNotFound = errors.New("platform: not found")

	// ErrPermission means the platform rejected a privileged call.
	ErrPermission = errors.New("platform: permission denied")
)
