package rooms

import (
	"sync"

	"github.com/tempvox/tempvox/internal/platform"
)

// Presence tracks which users currently occupy which voice channels, rebuilt
// purely from the occupancy event stream. Process-local; empty after restart
// until events flow again.
type Presence struct {
	mu       sync.RWMutex
	channels map[platform.ChannelID]map[platform.UserID]struct{}
}

// NewPresence returns an empty tracker.
func NewPresence() *Presence {
	return &Presence{channels: make(map[platform.ChannelID]map[platform.UserID]struct{})}
}

// Join records the user in the channel and returns the new occupancy.
func (p *Presence) Join(ch platform.ChannelID, user platform.UserID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.channels[ch]
	if !ok {
		set = make(map[platform.UserID]struct{})
		p.channels[ch] = set
	}
	set[user] = struct{}{}
	return len(set)
}

// Leave removes the user from the channel and returns the new occupancy.
func (p *Presence) Leave(ch platform.ChannelID, user platform.UserID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.channels[ch]
	if !ok {
		return 0
	}
	delete(set, user)
	if len(set) == 0 {
		delete(p.channels, ch)
		return 0
	}
	return len(set)
}

// Count returns the current occupancy of the channel.
func (p *Presence) Count(ch platform.ChannelID) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.channels[ch])
}

// Contains reports whether the user currently occupies the channel.
func (p *Presence) Contains(ch platform.ChannelID, user platform.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.channels[ch][user]
	return ok
}

// Occupants returns the users currently in the channel.
func (p *Presence) Occupants(ch platform.ChannelID) []platform.UserID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := p.channels[ch]
	out := make([]platform.UserID, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	return out
}

// Forget drops all presence for a channel, for use after it is deleted.
func (p *Presence) Forget(ch platform.ChannelID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.channels, ch)
}
