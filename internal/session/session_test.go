package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfelder/turnstile/internal/domain"
)

func testKey() domain.SessionKey {
	return domain.SessionKey{
		AgentID:  "helper",
		Channel:  "irc",
		PeerType: domain.PeerDM,
		PeerID:   "alice",
	}
}

func TestNew(t *testing.T) {
	sess := New(testKey(), "helper")

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "helper", sess.Metadata.AgentID)
	assert.Empty(t, sess.Messages)
	assert.Equal(t, DefaultCompactionConfig(), sess.Config)
}

func TestWithMessage_Immutable(t *testing.T) {
	sess := New(testKey(), "helper")

	next, ev := sess.WithMessage(domain.Message{Role: domain.RoleUser, Content: "hello"})

	assert.Empty(t, sess.Messages, "original must not change")
	require.Len(t, next.Messages, 1)
	assert.Equal(t, domain.RoleUser, next.Messages[0].Role)
	assert.False(t, next.Messages[0].Timestamp.IsZero())
	assert.Equal(t, next.ID, ev.SessionID)
	assert.Equal(t, domain.RoleUser, ev.Role)
}

func TestEstimateTokens(t *testing.T) {
	sess := New(testKey(), "helper")
	assert.Equal(t, 0, sess.EstimateTokens())

	// 8 chars → 8/4+4 = 6; empty → 0/4+4 = 4
	sess, _ = sess.WithMessage(domain.Message{Role: domain.RoleUser, Content: "12345678"})
	sess, _ = sess.WithMessage(domain.Message{Role: domain.RoleAssistant, Content: ""})
	assert.Equal(t, 10, sess.EstimateTokens())
}

func TestShouldCompact(t *testing.T) {
	sess := New(testKey(), "helper")
	sess.Config.SoftThresholdTokens = 100

	assert.False(t, sess.ShouldCompact(899, 1000))
	assert.False(t, sess.ShouldCompact(900, 1000))
	assert.True(t, sess.ShouldCompact(901, 1000))
}

func TestShouldCompactByMessageCount(t *testing.T) {
	sess := New(testKey(), "helper")
	sess.Config.SoftThresholdMessages = 10

	for i := 0; i < 41; i++ {
		sess, _ = sess.WithMessage(domain.Message{Role: domain.RoleUser, Content: "m"})
	}

	assert.True(t, sess.ShouldCompactByMessageCount(50))
	assert.False(t, sess.ShouldCompactByMessageCount(60))
}
