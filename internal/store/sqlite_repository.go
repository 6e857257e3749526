package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/session"
)

// SQLiteRepository implements SessionRepository backed by SQLite. One
// transcript record per session, appended to on every message, plus a
// key-indexed session row carrying last-updated time and message count.
type SQLiteRepository struct {
	db         *DB
	compaction session.CompactionConfig
}

// NewSQLiteRepository creates a repository using the given database. Loaded
// sessions get the given compaction config; the zero value falls back to the
// session package defaults.
func NewSQLiteRepository(db *DB, compaction session.CompactionConfig) *SQLiteRepository {
	if compaction == (session.CompactionConfig{}) {
		compaction = session.DefaultCompactionConfig()
	}
	return &SQLiteRepository{db: db, compaction: compaction}
}

func (r *SQLiteRepository) FindByKey(key domain.SessionKey) (*session.Session, error) {
	return r.findWhere("key_str = ?", key.String())
}

func (r *SQLiteRepository) FindByID(id string) (*session.Session, error) {
	return r.findWhere("id = ?", id)
}

func (r *SQLiteRepository) findWhere(cond string, arg string) (*session.Session, error) {
	var (
		s                    session.Session
		keyStr               string
		createdAt, updatedAt string
	)
	err := r.db.sql.QueryRow(
		`SELECT id, key_str, agent_id, created_at, updated_at FROM sessions WHERE `+cond, arg,
	).Scan(&s.ID, &keyStr, &s.Metadata.AgentID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	key, err := domain.ParseSessionKey(keyStr)
	if err != nil {
		return nil, fmt.Errorf("stored session %s has bad key: %w", s.ID, err)
	}
	s.Key = key
	s.Config = r.compaction
	s.Metadata.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	s.Metadata.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)

	if s.Messages, err = r.loadMessages(s.ID); err != nil {
		return nil, err
	}
	if s.Summaries, err = r.loadSummaries(s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepository) Save(s *session.Session) error {
	tx, err := r.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, key_str, agent_id, channel, peer_type, peer_id, thread_id, message_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET message_count = excluded.message_count, updated_at = excluded.updated_at`,
		s.ID, s.Key.String(), s.Metadata.AgentID, s.Key.Channel, string(s.Key.PeerType), s.Key.PeerID, s.Key.ThreadID,
		len(s.Messages),
		s.Metadata.CreatedAt.Format(time.DateTime), s.Metadata.UpdatedAt.Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	// The aggregate's transcript is authoritative: compaction rewrites it.
	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, s.ID); err != nil {
		return fmt.Errorf("clearing transcript: %w", err)
	}
	for _, m := range s.Messages {
		if err := insertMessage(tx, s.ID, m); err != nil {
			return err
		}
	}

	// Summaries are append-only; upsert keeps existing rows untouched.
	for _, sum := range s.Summaries {
		_, err := tx.Exec(
			`INSERT INTO summaries (id, session_id, range_start, range_end, summary, timestamp, tool_pruned)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			sum.ID, s.ID, sum.MessageRangeStart, sum.MessageRangeEnd,
			sum.SummaryText, sum.Timestamp.Format(time.DateTime), sum.PrunedToolResults,
		)
		if err != nil {
			return fmt.Errorf("saving summary: %w", err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) AppendMessage(sessionID string, msg domain.Message) error {
	tx, err := r.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if err := insertMessage(tx, sessionID, msg); err != nil {
		return err
	}
	_, err = tx.Exec(
		`UPDATE sessions SET message_count = message_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().Format(time.DateTime), sessionID,
	)
	if err != nil {
		return fmt.Errorf("bumping session index: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ListAll() ([]SessionIndexEntry, error) {
	rows, err := r.db.sql.Query(
		`SELECT id, key_str, agent_id, message_count, updated_at FROM sessions ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var entries []SessionIndexEntry
	for rows.Next() {
		var (
			e         SessionIndexEntry
			updatedAt string
		)
		if err := rows.Scan(&e.SessionID, &e.Key, &e.AgentID, &e.MessageCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning session index: %w", err)
		}
		e.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertMessage(tx *sql.Tx, sessionID string, m domain.Message) error {
	var toolCallsJSON sql.NullString
	if len(m.ToolCalls) > 0 {
		if data, err := json.Marshal(m.ToolCalls); err == nil {
			toolCallsJSON = sql.NullString{String: string(data), Valid: true}
		}
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := tx.Exec(
		`INSERT INTO messages (session_id, role, content, timestamp, tool_call_id, tool_calls)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, string(m.Role), m.Content, ts.Format(time.DateTime), m.ToolCallID, toolCallsJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) loadMessages(sessionID string) ([]domain.Message, error) {
	rows, err := r.db.sql.Query(
		`SELECT role, content, timestamp, tool_call_id, tool_calls
		 FROM messages WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading transcript: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			m             domain.Message
			role, ts      string
			toolCallsJSON sql.NullString
		)
		if err := rows.Scan(&role, &m.Content, &ts, &m.ToolCallID, &toolCallsJSON); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = domain.Role(role)
		m.Timestamp, _ = time.Parse(time.DateTime, ts)
		if toolCallsJSON.Valid && toolCallsJSON.String != "" {
			_ = json.Unmarshal([]byte(toolCallsJSON.String), &m.ToolCalls)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *SQLiteRepository) loadSummaries(sessionID string) ([]session.CompactionSummary, error) {
	rows, err := r.db.sql.Query(
		`SELECT id, range_start, range_end, summary, timestamp, tool_pruned
		 FROM summaries WHERE session_id = ? ORDER BY timestamp, id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading summaries: %w", err)
	}
	defer rows.Close()

	var sums []session.CompactionSummary
	for rows.Next() {
		var (
			s  session.CompactionSummary
			ts string
		)
		if err := rows.Scan(&s.ID, &s.MessageRangeStart, &s.MessageRangeEnd, &s.SummaryText, &ts, &s.PrunedToolResults); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		s.Timestamp, _ = time.Parse(time.DateTime, ts)
		sums = append(sums, s)
	}
	return sums, rows.Err()
}
