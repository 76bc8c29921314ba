package rooms

import (
	"fmt"
	"strings"

	"github.com/tempvox/tempvox/internal/platform"
)

// Verb is the closed set of interactive actions. Action ids from the platform
// are parsed into a Verb exactly once, at the boundary; nothing downstream
// looks at the raw string again.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbSetPublic
	VerbSetLocked
	VerbSetInvisible
	VerbBan
	VerbUnban
	VerbKick
	VerbAuthorize
	VerbDeauthorize
	VerbClaim
	VerbClaimConfirm
	VerbDelete
	VerbDeleteConfirm
	VerbGateSet
	VerbGateClear
	VerbGateSubmit
	VerbRename
	VerbSetLimit
	VerbMasterAdd
	VerbMasterRemove
)

var verbNames = map[string]Verb{
	"public":         VerbSetPublic,
	"lock":           VerbSetLocked,
	"ghost":          VerbSetInvisible,
	"ban":            VerbBan,
	"unban":          VerbUnban,
	"kick":           VerbKick,
	"permit":         VerbAuthorize,
	"unpermit":       VerbDeauthorize,
	"claim":          VerbClaim,
	"claim_confirm":  VerbClaimConfirm,
	"delete":         VerbDelete,
	"delete_confirm": VerbDeleteConfirm,
	"gate_set":       VerbGateSet,
	"gate_clear":     VerbGateClear,
	"gate_submit":    VerbGateSubmit,
	"rename":         VerbRename,
	"limit":          VerbSetLimit,
	"master_add":     VerbMasterAdd,
	"master_remove":  VerbMasterRemove,
}

// Action is a parsed interactive action id.
type Action struct {
	Verb       Verb
	Channel    platform.ChannelID
	TargetUser platform.UserID
}

// targeted verbs require a user segment in the action id.
func (v Verb) targeted() bool {
	switch v {
	case VerbBan, VerbUnban, VerbKick, VerbAuthorize, VerbDeauthorize:
		return true
	}
	return false
}

// ParseAction decodes an opaque action id of the form "verb:channel[:user]".
func ParseAction(raw string) (Action, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Action{}, fmt.Errorf("action %q: %w", raw, ErrUnknownAction)
	}

	verb, ok := verbNames[parts[0]]
	if !ok {
		return Action{}, fmt.Errorf("action verb %q: %w", parts[0], ErrUnknownAction)
	}
	if parts[1] == "" {
		return Action{}, fmt.Errorf("action %q: empty channel: %w", raw, ErrInvalidInput)
	}

	a := Action{Verb: verb, Channel: platform.ChannelID(parts[1])}
	if len(parts) == 3 {
		if parts[2] == "" {
			return Action{}, fmt.Errorf("action %q: empty target user: %w", raw, ErrInvalidInput)
		}
		a.TargetUser = platform.UserID(parts[2])
	}
	if a.Verb.targeted() && a.TargetUser == "" {
		return Action{}, fmt.Errorf("action %q: target user required: %w", raw, ErrInvalidInput)
	}
	return a, nil
}

// FormatAction builds the opaque id for a verb, for use in outgoing panel and
// prompt components.
func FormatAction(verb Verb, channel platform.ChannelID, target platform.UserID) string {
	name := "unknown"
	for n, v := range verbNames {
		if v == verb {
			name = n
			break
		}
	}
	if target != "" {
		return fmt.Sprintf("%s:%s:%s", name, channel, target)
	}
	return fmt.Sprintf("%s:%s", name, channel)
}
