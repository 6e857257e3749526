package contextbuild

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/session"
	"github.com/mfelder/turnstile/internal/tools"
)

func testKey() domain.SessionKey {
	return domain.SessionKey{
		AgentID:  "helper",
		Channel:  "test",
		PeerType: domain.PeerDM,
		PeerID:   "alice",
	}
}

func testSession(texts ...string) *session.Session {
	sess := session.New(testKey(), "helper")
	for i, text := range texts {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		sess, _ = sess.WithMessage(domain.Message{Role: role, Content: text})
	}
	return sess
}

// fakeMemory is a scripted MemorySearcher.
type fakeMemory struct {
	notes   []string
	err     error
	queries []string
}

func (f *fakeMemory) Search(ctx context.Context, query string, limit int) ([]string, error) {
	f.queries = append(f.queries, query)
	return f.notes, f.err
}

func TestBuild_SystemPromptAndTranscript(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.TimeTool{})

	b := NewBuilder("helper", "Always answer in French.", nil)
	bundle, err := b.Build(context.Background(), testSession("bonjour", "salut"), reg)
	require.NoError(t, err)

	assert.Contains(t, bundle.System, "You are helper")
	assert.Contains(t, bundle.System, "Always answer in French.")
	assert.Contains(t, bundle.System, "## Available Tools")
	assert.Contains(t, bundle.System, "### time")

	require.Len(t, bundle.Messages, 2)
	assert.Equal(t, "user", bundle.Messages[0].Role)
	assert.Equal(t, "bonjour", bundle.Messages[0].Content)
	assert.Equal(t, "assistant", bundle.Messages[1].Role)

	require.Len(t, bundle.Tools, 1)
	assert.Equal(t, "time", bundle.Tools[0].Name)
	assert.NotEmpty(t, bundle.Tools[0].InputSchema)
}

func TestBuild_EmptyRegistry(t *testing.T) {
	b := NewBuilder("helper", "", nil)
	bundle, err := b.Build(context.Background(), testSession("hi"), tools.NewRegistry())
	require.NoError(t, err)

	assert.NotContains(t, bundle.System, "## Available Tools")
	assert.Empty(t, bundle.Tools)
	assert.Equal(t, "[]", bundle.ToolSchemasJSON())
}

func TestBuild_MemoryNotesFoldedIn(t *testing.T) {
	mem := &fakeMemory{notes: []string{"alice prefers metric units"}}
	b := NewBuilder("helper", "", mem)

	bundle, err := b.Build(context.Background(), testSession("how far is it", "10 km", "thanks"), tools.NewRegistry())
	require.NoError(t, err)

	assert.Contains(t, bundle.System, "## Relevant Memory")
	assert.Contains(t, bundle.System, "alice prefers metric units")
	require.Len(t, mem.queries, 1)
	assert.Equal(t, "thanks", mem.queries[0], "queried with the latest user message")
}

func TestBuild_MemorySkippedWithoutUserMessage(t *testing.T) {
	mem := &fakeMemory{notes: []string{"never used"}}
	b := NewBuilder("helper", "", mem)

	bundle, err := b.Build(context.Background(), session.New(testKey(), "helper"), tools.NewRegistry())
	require.NoError(t, err)

	assert.Empty(t, mem.queries)
	assert.NotContains(t, bundle.System, "## Relevant Memory")
}

func TestBuild_MemoryErrorPropagates(t *testing.T) {
	mem := &fakeMemory{err: errors.New("index offline")}
	b := NewBuilder("helper", "", mem)

	_, err := b.Build(context.Background(), testSession("hi"), tools.NewRegistry())
	assert.ErrorContains(t, err, "index offline")
}

func TestToolSchemasJSON(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.TimeTool{})

	b := NewBuilder("helper", "", nil)
	bundle, err := b.Build(context.Background(), testSession("hi"), reg)
	require.NoError(t, err)

	out := bundle.ToolSchemasJSON()
	assert.Contains(t, out, `"name":"time"`)
}
