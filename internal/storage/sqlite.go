package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"nare/internal/chat"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session id has no stored row.
var ErrNotFound = errors.New("not found")

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id         TEXT PRIMARY KEY,
		language   TEXT NOT NULL DEFAULT 'en',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(session_id, seq)
	);

	CREATE TABLE IF NOT EXISTS command_audit (
		id         TEXT PRIMARY KEY,
		chat_id    TEXT NOT NULL,
		source     TEXT NOT NULL,
		command    TEXT NOT NULL,
		verdict    TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		executed   INTEGER NOT NULL DEFAULT 0,
		exit_code  INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, seq);
	CREATE INDEX IF NOT EXISTS idx_command_audit_chat ON command_audit(chat_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- Session Operations ---

// SaveSession upserts the session row and replaces its messages in one
// transaction.
func (s *SQLiteStore) SaveSession(rec SessionRecord) error {
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		return fmt.Errorf("session id is empty")
	}
	now := nowUTC()
	if rec.CreatedAt == "" {
		rec.CreatedAt = now
	}
	if rec.Language == "" {
		rec.Language = "en"
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO chat_sessions (id, language, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET language=excluded.language, updated_at=excluded.updated_at`,
		rec.ID, rec.Language, rec.CreatedAt, now); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	// 清除旧消息 / Clear old messages
	if _, err := tx.Exec("DELETE FROM chat_messages WHERE session_id=?", rec.ID); err != nil {
		return fmt.Errorf("delete old messages: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chat_messages (session_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range rec.History {
		if _, err := stmt.Exec(rec.ID, i, msg.Role, msg.Content, now); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadSession(id string) (SessionRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return SessionRecord{}, fmt.Errorf("session id is empty")
	}
	var rec SessionRecord
	err := s.db.QueryRow(`
		SELECT id, language, created_at, updated_at FROM chat_sessions WHERE id=?`, id).
		Scan(&rec.ID, &rec.Language, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRecord{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return SessionRecord{}, fmt.Errorf("load session: %w", err)
	}
	history, err := s.loadMessages(id)
	if err != nil {
		return SessionRecord{}, err
	}
	rec.History = history
	return rec, nil
}

func (s *SQLiteStore) ListSessions() ([]SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, language, created_at, updated_at FROM chat_sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var recs []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Language, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	for i := range recs {
		history, err := s.loadMessages(recs[i].ID)
		if err != nil {
			return nil, err
		}
		recs[i].History = history
	}
	return recs, nil
}

func (s *SQLiteStore) DeleteSession(id string) error {
	if _, err := s.db.Exec("DELETE FROM chat_sessions WHERE id=?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadMessages(sessionID string) ([]chat.Message, error) {
	rows, err := s.db.Query(`
		SELECT role, content FROM chat_messages WHERE session_id=? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var msg chat.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// --- Audit Log ---

func (s *SQLiteStore) Record(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO command_audit (id, chat_id, source, command, verdict, detail, executed, exit_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ChatID, entry.Source, entry.Command, entry.Verdict,
		entry.Detail, boolToInt(entry.Executed), entry.ExitCode, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// ListAudit returns the newest entries first.
func (s *SQLiteStore) ListAudit(limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, chat_id, source, command, verdict, detail, executed, exit_code, created_at
		FROM command_audit ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var executed int
		if err := rows.Scan(&e.ID, &e.ChatID, &e.Source, &e.Command, &e.Verdict,
			&e.Detail, &executed, &e.ExitCode, &e.CreatedAt); err != nil {
			continue
		}
		e.Executed = executed != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Helpers ---

// fixed-width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func nowUTC() string {
	return time.Now().UTC().Format(timeLayout)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
