package rooms

import (
	"errors"
	"testing"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		raw     string
		verb    Verb
		channel string
		target  string
	}{
		{"public:c1", VerbSetPublic, "c1", ""},
		{"lock:c1", VerbSetLocked, "c1", ""},
		{"ghost:c1", VerbSetInvisible, "c1", ""},
		{"ban:c1:u9", VerbBan, "c1", "u9"},
		{"kick:c1:u9", VerbKick, "c1", "u9"},
		{"permit:c1:u9", VerbAuthorize, "c1", "u9"},
		{"claim:c1", VerbClaim, "c1", ""},
		{"gate_submit:c1", VerbGateSubmit, "c1", ""},
		{"limit:c1", VerbSetLimit, "c1", ""},
	}
	for _, tt := range tests {
		a, err := ParseAction(tt.raw)
		if err != nil {
			t.Errorf("ParseAction(%q): %v", tt.raw, err)
			continue
		}
		if a.Verb != tt.verb || string(a.Channel) != tt.channel || string(a.TargetUser) != tt.target {
			t.Errorf("ParseAction(%q) = %+v", tt.raw, a)
		}
	}
}

func TestParseActionRejectsMalformed(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{"", ErrUnknownAction},
		{"lock", ErrUnknownAction},
		{"frobnicate:c1", ErrUnknownAction},
		{"lock:c1:u9:extra", ErrUnknownAction},
		{"lock:", ErrInvalidInput},
		{"ban:c1", ErrInvalidInput}, // targeted verb without a user
		{"ban:c1:", ErrInvalidInput},
	}
	for _, tt := range cases {
		if _, err := ParseAction(tt.raw); !errors.Is(err, tt.want) {
			t.Errorf("ParseAction(%q) err = %v, want %v", tt.raw, err, tt.want)
		}
	}
}

func TestFormatActionRoundTrip(t *testing.T) {
	raw := FormatAction(VerbBan, "c1", "u9")
	a, err := ParseAction(raw)
	if err != nil {
		t.Fatalf("ParseAction(%q): %v", raw, err)
	}
	if a.Verb != VerbBan || a.Channel != "c1" || a.TargetUser != "u9" {
		t.Errorf("round trip = %+v", a)
	}

	raw = FormatAction(VerbSetPublic, "c1", "")
	if raw != "public:c1" {
		t.Errorf("FormatAction without target = %q", raw)
	}
}
