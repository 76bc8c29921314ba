package rooms

import "testing"

func TestPresenceJoinLeave(t *testing.T) {
	p := NewPresence()

	if got := p.Join("c1", "a"); got != 1 {
		t.Errorf("first join occupancy = %d, want 1", got)
	}
	if got := p.Join("c1", "b"); got != 2 {
		t.Errorf("second join occupancy = %d, want 2", got)
	}
	// Duplicate joins are idempotent.
	if got := p.Join("c1", "a"); got != 2 {
		t.Errorf("duplicate join occupancy = %d, want 2", got)
	}

	if !p.Contains("c1", "a") {
		t.Errorf("Contains(a) = false after join")
	}
	if p.Contains("c1", "z") {
		t.Errorf("Contains(z) = true for a user never seen")
	}

	if got := p.Leave("c1", "a"); got != 1 {
		t.Errorf("leave occupancy = %d, want 1", got)
	}
	if got := p.Leave("c1", "b"); got != 0 {
		t.Errorf("final leave occupancy = %d, want 0", got)
	}
	if got := p.Leave("c1", "b"); got != 0 {
		t.Errorf("leave on empty channel = %d, want 0", got)
	}
}

func TestPresenceChannelsIndependent(t *testing.T) {
	p := NewPresence()
	p.Join("c1", "a")
	p.Join("c2", "a")

	if p.Count("c1") != 1 || p.Count("c2") != 1 {
		t.Errorf("counts = %d/%d, want 1/1", p.Count("c1"), p.Count("c2"))
	}
	p.Leave("c1", "a")
	if !p.Contains("c2", "a") {
		t.Errorf("leave on c1 removed the user from c2")
	}
}

func TestPresenceForget(t *testing.T) {
	p := NewPresence()
	p.Join("c1", "a")
	p.Join("c1", "b")
	p.Forget("c1")

	if p.Count("c1") != 0 {
		t.Errorf("count after Forget = %d, want 0", p.Count("c1"))
	}
	if got := p.Occupants("c1"); len(got) != 0 {
		t.Errorf("occupants after Forget = %v", got)
	}
}
