package irc

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfelder/turnstile/internal/config"
	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestSplitMessage(t *testing.T) {
	t.Run("short message unchanged", func(t *testing.T) {
		assert.Equal(t, []string{"hello"}, splitMessage("hello", 400))
	})

	t.Run("newlines become separate chunks", func(t *testing.T) {
		chunks := splitMessage("one\ntwo\nthree", 400)
		assert.Equal(t, []string{"one", "two", "three"}, chunks)
	})

	t.Run("long line split at boundary", func(t *testing.T) {
		long := strings.Repeat("x", 950)
		chunks := splitMessage(long, 400)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], 400)
		assert.Len(t, chunks[1], 400)
		assert.Len(t, chunks[2], 150)
		assert.Equal(t, long, strings.Join(chunks, ""))
	})

	t.Run("blank lines dropped", func(t *testing.T) {
		chunks := splitMessage("one\n\ntwo", 400)
		assert.Equal(t, []string{"one", "two"}, chunks)
	})

	t.Run("empty input preserved", func(t *testing.T) {
		assert.Equal(t, []string{""}, splitMessage("", 400))
	})
}

func TestChannel_IDAndStatus(t *testing.T) {
	ch := New(config.IRCConfig{Server: "irc.libera.chat", Nick: "turnstile"}, silentLog())

	assert.Equal(t, "irc", ch.ID())

	status := ch.Status()
	assert.Equal(t, "irc", status.ChannelID)
	assert.False(t, status.Running)
}

func TestChannel_SendRequiresConnection(t *testing.T) {
	ch := New(config.IRCConfig{Server: "irc.libera.chat", Nick: "turnstile"}, silentLog())

	err := ch.Send(context.Background(), domain.OutboundMessage{To: "alice", Text: "hi"})
	assert.ErrorContains(t, err, "not connected")
}

func TestChannel_StopBeforeStart(t *testing.T) {
	ch := New(config.IRCConfig{Server: "irc.libera.chat", Nick: "turnstile"}, silentLog())
	assert.NoError(t, ch.Stop(context.Background()))
}
