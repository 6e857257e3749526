package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/logging"
	"github.com/mfelder/turnstile/internal/session"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testKey(peer string) domain.SessionKey {
	return domain.SessionKey{
		AgentID:  "helper",
		Channel:  "irc",
		PeerType: domain.PeerDM,
		PeerID:   peer,
	}
}

// repositories under test share one behavioral contract.
func repositories(t *testing.T) map[string]SessionRepository {
	t.Helper()

	db, err := Open(":memory:", silentLog())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]SessionRepository{
		"memory": NewMemoryRepository(),
		"sqlite": NewSQLiteRepository(db, session.DefaultCompactionConfig()),
	}
}

func TestRepository_FindMissing(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := repo.FindByKey(testKey("nobody"))
			require.NoError(t, err)
			assert.Nil(t, sess)

			sess, err = repo.FindByID("no-such-id")
			require.NoError(t, err)
			assert.Nil(t, sess)
		})
	}
}

func TestRepository_SaveAndFind(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			sess := session.New(testKey("alice"), "helper")
			sess, _ = sess.WithMessage(domain.Message{Role: domain.RoleUser, Content: "hello"})
			sess, _ = sess.WithMessage(domain.Message{Role: domain.RoleAssistant, Content: "hi there"})
			require.NoError(t, repo.Save(sess))

			byKey, err := repo.FindByKey(testKey("alice"))
			require.NoError(t, err)
			require.NotNil(t, byKey)
			assert.Equal(t, sess.ID, byKey.ID)
			require.Len(t, byKey.Messages, 2)
			assert.Equal(t, "hello", byKey.Messages[0].Content)
			assert.Equal(t, domain.RoleAssistant, byKey.Messages[1].Role)

			byID, err := repo.FindByID(sess.ID)
			require.NoError(t, err)
			require.NotNil(t, byID)
			assert.Equal(t, byKey.Key.String(), byID.Key.String())
		})
	}
}

func TestRepository_AppendMessage(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			sess := session.New(testKey("bob"), "helper")
			require.NoError(t, repo.Save(sess))

			require.NoError(t, repo.AppendMessage(sess.ID, domain.Message{
				Role: domain.RoleUser, Content: "first", Timestamp: time.Now(),
			}))
			require.NoError(t, repo.AppendMessage(sess.ID, domain.Message{
				Role: domain.RoleAssistant, Content: "second", Timestamp: time.Now(),
			}))

			loaded, err := repo.FindByID(sess.ID)
			require.NoError(t, err)
			require.Len(t, loaded.Messages, 2)
			assert.Equal(t, "first", loaded.Messages[0].Content)
			assert.Equal(t, "second", loaded.Messages[1].Content)
		})
	}
}

func TestRepository_AppendMessageUnknownSession(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			err := repo.AppendMessage("no-such-session", domain.Message{
				Role: domain.RoleUser, Content: "orphan",
			})
			assert.Error(t, err)
		})
	}
}

func TestRepository_SaveReplacesTranscript(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			sess := session.New(testKey("carol"), "helper")
			for i := 0; i < 10; i++ {
				sess, _ = sess.WithMessage(domain.Message{Role: domain.RoleUser, Content: fmt.Sprintf("m%d", i)})
			}
			require.NoError(t, repo.Save(sess))

			compacted, _, err := sess.Compact(3, false, "")
			require.NoError(t, err)
			require.NoError(t, repo.Save(compacted))

			loaded, err := repo.FindByID(sess.ID)
			require.NoError(t, err)
			assert.Len(t, loaded.Messages, len(compacted.Messages))
			require.Len(t, loaded.Summaries, 1)
			assert.Equal(t, compacted.Summaries[0].SummaryText, loaded.Summaries[0].SummaryText)
		})
	}
}

func TestRepository_ListAll(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			older := session.New(testKey("older"), "helper")
			older.Metadata.UpdatedAt = time.Now().Add(-time.Hour)
			require.NoError(t, repo.Save(older))

			newer := session.New(testKey("newer"), "helper")
			newer, _ = newer.WithMessage(domain.Message{Role: domain.RoleUser, Content: "hi"})
			require.NoError(t, repo.Save(newer))

			entries, err := repo.ListAll()
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, newer.ID, entries[0].SessionID, "most recent first")
			assert.Equal(t, 1, entries[0].MessageCount)
			assert.Equal(t, older.ID, entries[1].SessionID)
		})
	}
}

func TestSQLiteRepository_AppliesConfiguredCompaction(t *testing.T) {
	db, err := Open(":memory:", silentLog())
	require.NoError(t, err)
	defer db.Close()

	custom := session.CompactionConfig{
		ReserveTokensFloor:        512,
		SoftThresholdTokens:       256,
		SoftThresholdMessages:     4,
		DefaultMaxMessagesToKeep:  8,
		PruneToolResultsOnCompact: false,
	}
	repo := NewSQLiteRepository(db, custom)

	sess := session.New(testKey("erin"), "helper")
	require.NoError(t, repo.Save(sess))

	loaded, err := repo.FindByKey(testKey("erin"))
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, custom, loaded.Config)

	// Zero config falls back to the package defaults.
	fallback := NewSQLiteRepository(db, session.CompactionConfig{})
	loaded, err = fallback.FindByKey(testKey("erin"))
	require.NoError(t, err)
	assert.Equal(t, session.DefaultCompactionConfig(), loaded.Config)
}

func TestMemoryRepository_CopiesOnRead(t *testing.T) {
	repo := NewMemoryRepository()
	sess := session.New(testKey("dave"), "helper")
	sess, _ = sess.WithMessage(domain.Message{Role: domain.RoleUser, Content: "original"})
	require.NoError(t, repo.Save(sess))

	loaded, err := repo.FindByID(sess.ID)
	require.NoError(t, err)
	loaded.Messages[0].Content = "mutated"

	again, err := repo.FindByID(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Messages[0].Content)
}

func TestOpen_RunsMigrations(t *testing.T) {
	db, err := Open(":memory:", silentLog())
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.SQL().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)

	// Tables exist.
	for _, table := range []string{"sessions", "messages", "summaries"} {
		var n int
		err = db.SQL().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
		require.NoError(t, err, table)
	}
}
