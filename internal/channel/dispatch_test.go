package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfelder/turnstile/internal/agent"
	"github.com/mfelder/turnstile/internal/bus"
	"github.com/mfelder/turnstile/internal/contextbuild"
	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/llm"
	"github.com/mfelder/turnstile/internal/logging"
	"github.com/mfelder/turnstile/internal/policy"
	"github.com/mfelder/turnstile/internal/runtime"
	"github.com/mfelder/turnstile/internal/session"
	"github.com/mfelder/turnstile/internal/store"
	"github.com/mfelder/turnstile/internal/tools"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// mockChannel records outbound messages and lets tests inject inbound ones.
type mockChannel struct {
	mu      sync.Mutex
	id      string
	handler domain.MessageHandler
	sent    []domain.OutboundMessage
	started bool
	stopped bool
}

func newMockChannel(id string) *mockChannel {
	return &mockChannel{id: id}
}

func (m *mockChannel) ID() string { return m.id }

func (m *mockChannel) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *mockChannel) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockChannel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockChannel) OnMessage(handler domain.MessageHandler) {
	m.handler = handler
}

func (m *mockChannel) sentMessages() []domain.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OutboundMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// newTestScheduler wires a scheduler around an in-memory stack whose model
// echoes the last user message.
func newTestScheduler(t *testing.T, modelRef string) (*runtime.Scheduler, store.SessionRepository) {
	t.Helper()

	mock := &llm.MockClient{
		ProviderName: "mock",
		StreamFunc: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			last := ""
			for _, m := range req.Messages {
				if m.Role == "user" {
					last = m.Content
				}
			}
			return llm.ScriptedStream(
				llm.StreamEvent{Type: llm.EventDelta, Content: "echo:" + last},
				llm.StreamEvent{Type: llm.EventDone},
			), nil
		},
	}

	providers := llm.NewRegistry(silentLog())
	providers.Register("mock", mock)

	toolReg := tools.NewRegistry()
	execSvc := tools.NewExecService(toolReg, policy.NewEngine(policy.Config{}), silentLog())
	repo := store.NewMemoryRepository()

	orch := agent.NewOrchestrator(
		agent.Config{
			AgentID:          "helper",
			AgentName:        "helper",
			ModelRef:         modelRef,
			MaxMessages:      100,
			MaxContextTokens: 32768,
		},
		repo,
		session.NewKeyLocks(),
		providers,
		contextbuild.NewBuilder("helper", "", nil),
		toolReg,
		execSvc,
		bus.Nop{},
		silentLog(),
	)
	return runtime.NewScheduler(orch, silentLog()), repo
}

func TestResolveSessionKey(t *testing.T) {
	dm := domain.InboundMessage{ChannelID: "irc", ChatID: "alice", UserID: "alice"}
	group := domain.InboundMessage{ChannelID: "irc", ChatID: "#go-nuts", UserID: "alice", IsGroup: true}
	threaded := domain.InboundMessage{ChannelID: "irc", ChatID: "alice", UserID: "alice", ThreadID: "t9"}

	t.Run("per-sender dm", func(t *testing.T) {
		key := ResolveSessionKey("helper", ScopePerSender, dm)
		assert.Equal(t, "agent:helper:irc:dm:alice", key.String())
	})

	t.Run("per-sender group keys on the chat", func(t *testing.T) {
		key := ResolveSessionKey("helper", ScopePerSender, group)
		assert.Equal(t, domain.PeerGroup, key.PeerType)
		assert.Equal(t, "#go-nuts", key.PeerID)
	})

	t.Run("global collapses the channel", func(t *testing.T) {
		for _, msg := range []domain.InboundMessage{dm, group} {
			key := ResolveSessionKey("helper", ScopeGlobal, msg)
			assert.Equal(t, domain.PeerChannel, key.PeerType)
			assert.Equal(t, "global", key.PeerID)
		}
	})

	t.Run("thread id carried through", func(t *testing.T) {
		key := ResolveSessionKey("helper", ScopePerSender, threaded)
		assert.Equal(t, "t9", key.ThreadID)
	})
}

func TestDispatcher_RepliesToDirectMessage(t *testing.T) {
	sched, repo := newTestScheduler(t, "mock/test-model")
	ch := newMockChannel("irc")

	d := NewDispatcher("helper", ScopePerSender, sched, silentLog())
	d.Attach(ch)

	ch.handler(domain.InboundMessage{
		ID: "m1", ChannelID: "irc", ChatID: "alice", UserID: "alice", Text: "hello",
	})

	require.Eventually(t, func() bool { return len(ch.sentMessages()) == 1 }, 2*time.Second, 10*time.Millisecond)

	sent := ch.sentMessages()[0]
	assert.Equal(t, "irc", sent.ChannelID)
	assert.Equal(t, "alice", sent.To)
	assert.Equal(t, "echo:hello", sent.Text)
	assert.Equal(t, "m1", sent.ReplyToID)

	sess, err := repo.FindByKey(domain.SessionKey{
		AgentID: "helper", Channel: "irc", PeerType: domain.PeerDM, PeerID: "alice",
	})
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Len(t, sess.Messages, 2)
}

func TestDispatcher_IgnoresUnmentionedGroupMessage(t *testing.T) {
	sched, _ := newTestScheduler(t, "mock/test-model")
	ch := newMockChannel("irc")

	d := NewDispatcher("helper", ScopePerSender, sched, silentLog())
	d.Attach(ch)

	ch.handler(domain.InboundMessage{
		ChannelID: "irc", ChatID: "#go-nuts", UserID: "alice", Text: "idle chatter",
		IsGroup: true, IsMentioned: false,
	})

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, ch.sentMessages())
	assert.Equal(t, 0, sched.Active())
}

func TestDispatcher_AnswersMentionedGroupMessage(t *testing.T) {
	sched, _ := newTestScheduler(t, "mock/test-model")
	ch := newMockChannel("irc")

	d := NewDispatcher("helper", ScopePerSender, sched, silentLog())
	d.Attach(ch)

	ch.handler(domain.InboundMessage{
		ChannelID: "irc", ChatID: "#go-nuts", UserID: "alice", Text: "helper: ping",
		IsGroup: true, IsMentioned: true,
	})

	require.Eventually(t, func() bool { return len(ch.sentMessages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "#go-nuts", ch.sentMessages()[0].To)
}

func TestDispatcher_ReportsRunFailure(t *testing.T) {
	sched, _ := newTestScheduler(t, "ghost/model")
	ch := newMockChannel("irc")

	d := NewDispatcher("helper", ScopePerSender, sched, silentLog())
	d.Attach(ch)

	ch.handler(domain.InboundMessage{
		ChannelID: "irc", ChatID: "alice", UserID: "alice", Text: "hello",
	})

	require.Eventually(t, func() bool { return len(ch.sentMessages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Something went wrong handling that message.", ch.sentMessages()[0].Text)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(silentLog())
	assert.Equal(t, 0, reg.Count())

	ch := newMockChannel("irc")
	reg.Register(ch)
	assert.Equal(t, 1, reg.Count())

	got, ok := reg.Get("irc")
	require.True(t, ok)
	assert.Equal(t, "irc", got.ID())

	_, ok = reg.Get("slack")
	assert.False(t, ok)

	statuses := reg.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, "irc", statuses[0].ChannelID)
	assert.True(t, statuses[0].Running)

	ctx := context.Background()
	reg.StartAll(ctx)
	require.Eventually(t, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return ch.started
	}, time.Second, 5*time.Millisecond)

	reg.StopAll(ctx)
	ch.mu.Lock()
	assert.True(t, ch.stopped)
	ch.mu.Unlock()
}
