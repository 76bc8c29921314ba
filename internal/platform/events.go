package platform

// VoiceUpdate is an occupancy-change notification from the platform: the user
// moved from one voice channel to another. A nil From means they just
// connected, a nil To means they disconnected.
type VoiceUpdate struct {
	Community CommunityID `json:"community"`
	User      UserID      `json:"user"`
	From      *ChannelID  `json:"from,omitempty"`
	To        *ChannelID  `json:"to,omitempty"`
}

// Interaction is a control submission (button, menu, or form) from the
// platform. Action is an opaque id of the form "verb:channel[:user]", parsed
// once at the boundary. Value carries free-form form input (a secret, a name,
// a limit) and Token carries a confirmation token when the verb requires one.
type Interaction struct {
	ID        string      `json:"id"`
	Community CommunityID `json:"community"`
	Channel   ChannelID   `json:"channel"`
	User      UserID      `json:"user"`
	Action    string      `json:"action"`
	Value     string      `json:"value,omitempty"`
	Token     string      `json:"token,omitempty"`
}

// InteractionResult is what the subsystem reports back to the initiating user.
// Rendering the result into user-facing text is the platform client's job.
type InteractionResult struct {
	OK           bool   `json:"ok"`
	Code         string `json:"code,omitempty"`
	ConfirmToken string `json:"confirm_token,omitempty"`
	VoiceToken   string `json:"voice_token,omitempty"`
	VoiceURL     string `json:"voice_url,omitempty"`
}
