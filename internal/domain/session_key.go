// Package domain holds the core value types shared across the runtime.
// It is deliberately dependency-free so every other package can import it.
package domain

import (
	"fmt"
	"strings"
)

// PeerType classifies who the agent is talking to.
type PeerType string

const (
	PeerDM      PeerType = "dm"
	PeerGroup   PeerType = "group"
	PeerChannel PeerType = "channel"
)

// ValidPeerType reports whether s names a known peer type.
func ValidPeerType(s string) bool {
	switch PeerType(s) {
	case PeerDM, PeerGroup, PeerChannel:
		return true
	}
	return false
}

// SessionKey uniquely identifies a conversation session. It is immutable
// once constructed; treat it as a value.
type SessionKey struct {
	AgentID  string
	Channel  string
	PeerType PeerType
	PeerID   string
	ThreadID string // optional
}

// String returns the canonical form:
// agent:{agentId}:{channel}:{peerType}:{peerId}[:thread:{threadId}]
func (k SessionKey) String() string {
	s := "agent:" + k.AgentID + ":" + k.Channel + ":" + string(k.PeerType) + ":" + k.PeerID
	if k.ThreadID != "" {
		s += ":thread:" + k.ThreadID
	}
	return s
}

// Validate checks that all required key segments are present and well-formed.
func (k SessionKey) Validate() error {
	switch {
	case k.AgentID == "":
		return fmt.Errorf("session key: empty agent id")
	case k.Channel == "":
		return fmt.Errorf("session key: empty channel")
	case !ValidPeerType(string(k.PeerType)):
		return fmt.Errorf("session key: invalid peer type %q", k.PeerType)
	case k.PeerID == "":
		return fmt.Errorf("session key: empty peer id")
	}
	for _, seg := range []string{k.AgentID, k.Channel, k.PeerID, k.ThreadID} {
		if strings.Contains(seg, ":") {
			return fmt.Errorf("session key: segment %q contains ':'", seg)
		}
	}
	return nil
}

// ParseSessionKey parses the canonical string form. It round-trips with
// String and rejects malformed input.
func ParseSessionKey(s string) (SessionKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 5 && len(parts) != 7 {
		return SessionKey{}, fmt.Errorf("session key %q: expected 5 or 7 segments, got %d", s, len(parts))
	}
	if parts[0] != "agent" {
		return SessionKey{}, fmt.Errorf("session key %q: missing agent prefix", s)
	}
	key := SessionKey{
		AgentID:  parts[1],
		Channel:  parts[2],
		PeerType: PeerType(parts[3]),
		PeerID:   parts[4],
	}
	if len(parts) == 7 {
		if parts[5] != "thread" {
			return SessionKey{}, fmt.Errorf("session key %q: expected thread segment, got %q", s, parts[5])
		}
		key.ThreadID = parts[6]
		if key.ThreadID == "" {
			return SessionKey{}, fmt.Errorf("session key %q: empty thread id", s)
		}
	}
	if err := key.Validate(); err != nil {
		return SessionKey{}, err
	}
	return key, nil
}
