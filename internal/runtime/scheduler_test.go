package runtime

import (
	"context"
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
	"github.com/mfelder/turnstile/internal/session"
	"github.com/mfelder/turnstile/internal/store"
	"github.com/mfelder/turnstile/internal/tools"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testKey(peer string) domain.SessionKey {
	return domain.SessionKey{
		AgentID:  "helper",
		Channel:  "test",
		PeerType: domain.PeerDM,
		PeerID:   peer,
	}
}

// echoMock replies "echo:<last user message>" after an optional delay.
func echoMock(delay time.Duration) *llm.MockClient {
	return &llm.MockClient{
		ProviderName: "mock",
		StreamFunc: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			last := ""
			for _, m := range req.Messages {
				if m.Role == "user" {
					last = m.Content
				}
			}
			ch := make(chan llm.StreamEvent, 2)
			go func() {
				defer close(ch)
				if delay > 0 {
					time.Sleep(delay)
				}
				ch <- llm.StreamEvent{Type: llm.EventDelta, Content: "echo:" + last}
				ch <- llm.StreamEvent{Type: llm.EventDone}
			}()
			return ch, nil
		},
	}
}

func newScheduler(t *testing.T, mock *llm.MockClient, modelRef string) (*Scheduler, store.SessionRepository) {
	t.Helper()

	providers := llm.NewRegistry(silentLog())
	providers.Register("mock", mock)

	toolReg := tools.NewRegistry()
	engine := policy.NewEngine(policy.Config{})
	execSvc := tools.NewExecService(toolReg, engine, silentLog())
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
	return NewScheduler(orch, silentLog()), repo
}

func drain(events <-chan agent.Event) []agent.Event {
	var out []agent.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestStart_EventsAndLifecycle(t *testing.T) {
	sched, _ := newScheduler(t, echoMock(0), "mock/test-model")

	handle := sched.Start(agent.Request{Key: testKey("alice"), Text: "hello"})
	assert.NotEmpty(t, handle.RunID)

	events := drain(handle.Events)
	require.NotEmpty(t, events)

	first, ok := events[0].(agent.Lifecycle)
	require.True(t, ok)
	assert.Equal(t, agent.PhaseStart, first.Phase)

	last, ok := events[len(events)-1].(agent.Lifecycle)
	require.True(t, ok)
	assert.Equal(t, agent.PhaseEnd, last.Phase)

	var text string
	for _, ev := range events {
		if d, ok := ev.(agent.Delta); ok {
			text += d.Text
		}
	}
	assert.Equal(t, "echo:hello", text)
}

func TestStart_PreservesExplicitRunID(t *testing.T) {
	sched, _ := newScheduler(t, echoMock(0), "mock/test-model")

	handle := sched.Start(agent.Request{RunID: "my-run", Key: testKey("alice"), Text: "hi"})
	assert.Equal(t, "my-run", handle.RunID)
	drain(handle.Events)
}

func TestWait_OK(t *testing.T) {
	sched, _ := newScheduler(t, echoMock(0), "mock/test-model")

	handle := sched.Start(agent.Request{Key: testKey("alice"), Text: "hi"})
	result := sched.Wait(handle.RunID, 5*time.Second)

	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, handle.RunID, result.RunID)
	drain(handle.Events)
}

func TestWait_TimeoutDoesNotCancelRun(t *testing.T) {
	sched, repo := newScheduler(t, echoMock(200*time.Millisecond), "mock/test-model")

	handle := sched.Start(agent.Request{Key: testKey("alice"), Text: "slow one"})
	result := sched.Wait(handle.RunID, 10*time.Millisecond)
	assert.Equal(t, StatusTimeout, result.Status)

	// The run keeps going; once the stream closes, its work is persisted.
	drain(handle.Events)

	sess, err := repo.FindByKey(testKey("alice"))
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "slow one", sess.Messages[0].Content)
	assert.Equal(t, "echo:slow one", sess.Messages[1].Content)
}

func TestWait_UnknownRun(t *testing.T) {
	sched, _ := newScheduler(t, echoMock(0), "mock/test-model")

	result := sched.Wait("never-started", time.Second)
	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "unknown runId", result.Message)
}

func TestWait_FinishedRunIsUnknown(t *testing.T) {
	sched, _ := newScheduler(t, echoMock(0), "mock/test-model")

	handle := sched.Start(agent.Request{Key: testKey("alice"), Text: "hi"})
	require.Equal(t, StatusOK, sched.Wait(handle.RunID, 5*time.Second).Status)
	drain(handle.Events)

	// The run drops out of the table shortly after its done channel closes.
	require.Eventually(t, func() bool { return sched.Active() == 0 }, time.Second, 5*time.Millisecond)

	again := sched.Wait(handle.RunID, time.Second)
	assert.Equal(t, StatusError, again.Status)
}

func TestRun_ErrorReportedOnWaitAndStream(t *testing.T) {
	sched, _ := newScheduler(t, echoMock(0), "ghost/model")

	handle := sched.Start(agent.Request{Key: testKey("alice"), Text: "hi"})
	result := sched.Wait(handle.RunID, 5*time.Second)

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Message, "ghost")

	events := drain(handle.Events)
	last, ok := events[len(events)-1].(agent.Lifecycle)
	require.True(t, ok)
	assert.Equal(t, agent.PhaseError, last.Phase)
	assert.NotEmpty(t, last.Message)
}

func TestSameKeyRunsSerialize(t *testing.T) {
	sched, repo := newScheduler(t, echoMock(50*time.Millisecond), "mock/test-model")

	h1 := sched.Start(agent.Request{Key: testKey("alice"), Text: "first"})
	h2 := sched.Start(agent.Request{Key: testKey("alice"), Text: "second"})

	drain(h1.Events)
	drain(h2.Events)

	sess, err := repo.FindByKey(testKey("alice"))
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Len(t, sess.Messages, 4)

	// Whole turns, never interleaved: each user message is immediately
	// followed by its echo.
	for i := 0; i < 4; i += 2 {
		assert.Equal(t, domain.RoleUser, sess.Messages[i].Role)
		assert.Equal(t, domain.RoleAssistant, sess.Messages[i+1].Role)
		assert.Equal(t, "echo:"+sess.Messages[i].Content, sess.Messages[i+1].Content)
	}
}

func TestActive(t *testing.T) {
	sched, _ := newScheduler(t, echoMock(100*time.Millisecond), "mock/test-model")
	assert.Equal(t, 0, sched.Active())

	handle := sched.Start(agent.Request{Key: testKey("alice"), Text: "hi"})
	assert.Equal(t, 1, sched.Active())

	sched.Wait(handle.RunID, 5*time.Second)
	drain(handle.Events)
	assert.Eventually(t, func() bool { return sched.Active() == 0 }, time.Second, 5*time.Millisecond)
}
