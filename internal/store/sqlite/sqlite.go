package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/supportchat-server/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// dsn appends driver options. _txlock=immediate makes every transaction take
// the write lock up front, so a status read and the following write are atomic.
func dsn(dbPath string) string {
	return dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies the embedded schema. It is idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== RoomStore implementation ====

const roomColumns = `id, customer_id, support_agent_id, status, priority, subject, tags, created_at, last_message_at, closed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*store.Room, error) {
	var room store.Room
	var agentID, subject sql.NullString
	var tags string
	var closedAt sql.NullTime
	if err := row.Scan(
		&room.ID,
		&room.CustomerID,
		&agentID,
		&room.Status,
		&room.Priority,
		&subject,
		&tags,
		&room.CreatedAt,
		&room.LastMessageAt,
		&closedAt,
	); err != nil {
		return nil, err
	}

	if agentID.Valid {
		room.AgentID = &agentID.String
	}
	if subject.Valid {
		room.Subject = &subject.String
	}
	if closedAt.Valid {
		room.ClosedAt = &closedAt.Time
	}
	if err := json.Unmarshal([]byte(tags), &room.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if room.Tags == nil {
		room.Tags = []string{}
	}

	return &room, nil
}

// CreateRoom inserts a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) error {
	return insertRoom(ctx, s.db, room)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRoom(ctx context.Context, db execer, room *store.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Status == "" {
		room.Status = store.RoomStatusWaiting
	}
	if room.Priority == "" {
		room.Priority = store.PriorityNormal
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	if room.LastMessageAt.IsZero() {
		room.LastMessageAt = room.CreatedAt
	}
	if room.Tags == nil {
		room.Tags = []string{}
	}

	tags, err := json.Marshal(room.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	query := `
		INSERT INTO chat_rooms (id, customer_id, support_agent_id, status, priority, subject, tags, created_at, last_message_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.ExecContext(ctx, query,
		room.ID,
		room.CustomerID,
		room.AgentID,
		string(room.Status),
		string(room.Priority),
		room.Subject,
		string(tags),
		room.CreatedAt,
		room.LastMessageAt,
		room.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}

	return nil
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	return getRoom(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRoom(ctx context.Context, q queryRower, id string) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM chat_rooms WHERE id = ?`
	room, err := scanRoom(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return room, nil
}

// OpenRoom returns the customer's newest non-closed room or inserts room.
// Lookup and insert share one transaction so a customer never gets two.
func (s *SQLiteStore) OpenRoom(ctx context.Context, room *store.Room) (*store.Room, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	query := `
		SELECT ` + roomColumns + `
		FROM chat_rooms
		WHERE customer_id = ? AND status != 'closed'
		ORDER BY created_at DESC
		LIMIT 1
	`
	existing, err := scanRoom(tx.QueryRowContext(ctx, query, room.CustomerID))
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("query open room: %w", err)
	}

	if err := insertRoom(ctx, tx, room); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}

	return room, true, nil
}

// ListRooms lists rooms ordered by priority and last activity.
func (s *SQLiteStore) ListRooms(ctx context.Context, filter store.RoomFilter) ([]*store.Room, error) {
	var where []string
	var args []any

	if filter.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.AgentID != "" {
		where = append(where, "support_agent_id = ?")
		args = append(args, filter.AgentID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + roomColumns + ` FROM chat_rooms`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += `
		ORDER BY CASE priority
			WHEN 'urgent' THEN 0
			WHEN 'high' THEN 1
			WHEN 'normal' THEN 2
			ELSE 3
		END, last_message_at DESC
	`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*store.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// transitionRoom runs fn inside a transaction after re-reading the room, so
// the closed check and the write cannot interleave with another transition.
func (s *SQLiteStore) transitionRoom(ctx context.Context, roomID string, fn func(tx *sql.Tx, room *store.Room) error) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	room, err := getRoom(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == store.RoomStatusClosed {
		return nil, fmt.Errorf("room %s: %w", roomID, store.ErrRoomClosed)
	}

	if err := fn(tx, room); err != nil {
		return nil, err
	}

	updated, err := getRoom(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return updated, nil
}

// AssignAgent sets the agent and moves the room to active.
func (s *SQLiteStore) AssignAgent(ctx context.Context, roomID, agentID string) (*store.Room, error) {
	return s.transitionRoom(ctx, roomID, func(tx *sql.Tx, _ *store.Room) error {
		query := `
			UPDATE chat_rooms
			SET support_agent_id = ?, status = 'active'
			WHERE id = ?
		`
		if _, err := tx.ExecContext(ctx, query, agentID, roomID); err != nil {
			return fmt.Errorf("assign agent: %w", err)
		}
		return nil
	})
}

// UpdateRoomStatus changes status and, when non-empty, priority.
// Moving back to waiting clears the agent; closing stamps closed_at.
func (s *SQLiteStore) UpdateRoomStatus(ctx context.Context, roomID string, status store.RoomStatus, priority store.Priority) (*store.Room, error) {
	return s.transitionRoom(ctx, roomID, func(tx *sql.Tx, room *store.Room) error {
		if priority == "" {
			priority = room.Priority
		}

		agentID := room.AgentID
		if status == store.RoomStatusWaiting {
			agentID = nil
		}

		var closedAt *time.Time
		if status == store.RoomStatusClosed {
			now := time.Now().UTC()
			closedAt = &now
		}

		query := `
			UPDATE chat_rooms
			SET status = ?, priority = ?, support_agent_id = ?, closed_at = ?
			WHERE id = ?
		`
		if _, err := tx.ExecContext(ctx, query, string(status), string(priority), agentID, closedAt, roomID); err != nil {
			return fmt.Errorf("update room status: %w", err)
		}
		return nil
	})
}

// TouchRoom updates the last-message timestamp.
func (s *SQLiteStore) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	query := `
		UPDATE chat_rooms
		SET last_message_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, at.UTC(), roomID)
	if err != nil {
		return fmt.Errorf("touch room: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("room %s: %w", roomID, store.ErrNotFound)
	}

	return nil
}

// ==== MessageStore implementation ====

const defaultMessageLimit = 50

const messageColumns = `id, room_id, sender_id, sender_type, message, message_type, file_url, file_name, file_size, is_read, created_at`

func scanMessage(row rowScanner) (*store.Message, error) {
	var msg store.Message
	var fileURL, fileName sql.NullString
	var fileSize sql.NullInt64
	if err := row.Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.SenderID,
		&msg.SenderType,
		&msg.Body,
		&msg.Kind,
		&fileURL,
		&fileName,
		&fileSize,
		&msg.Read,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}

	if fileURL.Valid {
		msg.FileURL = &fileURL.String
	}
	if fileName.Valid {
		msg.FileName = &fileName.String
	}
	if fileSize.Valid {
		msg.FileSize = &fileSize.Int64
	}

	return &msg, nil
}

// SaveMessage persists a message to storage.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = store.MessageText
	}

	query := `
		INSERT INTO chat_messages (id, room_id, sender_id, sender_type, message, message_type, file_url, file_name, file_size, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.RoomID,
		msg.SenderID,
		string(msg.SenderType),
		msg.Body,
		string(msg.Kind),
		msg.FileURL,
		msg.FileName,
		msg.FileSize,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	msg.Read = false
	return nil
}

// ListMessages retrieves messages from a room with pagination.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string, limit int, beforeID string) ([]*store.Message, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	var query string
	var args []any

	if beforeID != "" {
		query = `
			SELECT ` + messageColumns + `
			FROM chat_messages
			WHERE room_id = ? AND seq < (SELECT seq FROM chat_messages WHERE id = ?)
			ORDER BY seq DESC
			LIMIT ?
		`
		args = []any{roomID, beforeID, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM chat_messages
			WHERE room_id = ?
			ORDER BY seq DESC
			LIMIT ?
		`
		args = []any{roomID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	// Reverse to get chronological order
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, rows.Err()
}

// MarkRead flags messages as read, skipping the reader's own messages.
func (s *SQLiteStore) MarkRead(ctx context.Context, roomID, readerID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+2)
	args = append(args, roomID, readerID)
	for _, id := range ids {
		args = append(args, id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	selectQuery := `
		SELECT id FROM chat_messages
		WHERE room_id = ? AND sender_id != ? AND id IN (` + placeholders + `)
		ORDER BY seq
	`
	rows, err := tx.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query unread: %w", err)
	}
	marked := make([]string, 0, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan message id: %w", err)
		}
		marked = append(marked, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unread: %w", err)
	}

	updateQuery := `
		UPDATE chat_messages
		SET is_read = 1
		WHERE room_id = ? AND sender_id != ? AND id IN (` + placeholders + `)
	`
	if _, err := tx.ExecContext(ctx, updateQuery, args...); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return marked, nil
}

// ==== TypingStore implementation ====

// UpsertTyping creates or refreshes a typing marker.
func (s *SQLiteStore) UpsertTyping(ctx context.Context, marker *store.TypingMarker) error {
	query := `
		INSERT INTO typing_indicators (room_id, user_id, is_typing, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (room_id, user_id) DO UPDATE SET
			is_typing = excluded.is_typing,
			expires_at = excluded.expires_at
	`
	_, err := s.db.ExecContext(ctx, query, marker.RoomID, marker.UserID, marker.IsTyping, marker.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert typing: %w", err)
	}
	return nil
}

// DeleteTyping removes a typing marker.
func (s *SQLiteStore) DeleteTyping(ctx context.Context, roomID, userID string) error {
	query := `DELETE FROM typing_indicators WHERE room_id = ? AND user_id = ?`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("delete typing: %w", err)
	}
	return nil
}

// GetTyping returns the marker for (roomID, userID), expired or not.
func (s *SQLiteStore) GetTyping(ctx context.Context, roomID, userID string) (*store.TypingMarker, error) {
	query := `
		SELECT room_id, user_id, is_typing, expires_at
		FROM typing_indicators
		WHERE room_id = ? AND user_id = ?
	`
	var m store.TypingMarker
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&m.RoomID, &m.UserID, &m.IsTyping, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("typing marker: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query typing: %w", err)
	}
	m.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &m, nil
}

// ListTyping returns every stored marker of a room, expired or not.
func (s *SQLiteStore) ListTyping(ctx context.Context, roomID string) ([]*store.TypingMarker, error) {
	query := `
		SELECT room_id, user_id, is_typing, expires_at
		FROM typing_indicators
		WHERE room_id = ?
		ORDER BY user_id
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query typing: %w", err)
	}
	defer rows.Close()

	markers := make([]*store.TypingMarker, 0)
	for rows.Next() {
		var m store.TypingMarker
		var expiresAt int64
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.IsTyping, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan typing: %w", err)
		}
		m.ExpiresAt = time.UnixMilli(expiresAt).UTC()
		markers = append(markers, &m)
	}

	return markers, rows.Err()
}

// PurgeExpiredTyping deletes markers that expired before now.
func (s *SQLiteStore) PurgeExpiredTyping(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM typing_indicators WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge typing: %w", err)
	}
	return result.RowsAffected()
}

// ==== ParticipantStore implementation ====

// UpsertParticipant records the last-seen state of a user in a room.
func (s *SQLiteStore) UpsertParticipant(ctx context.Context, p *store.Participant) error {
	query := `
		INSERT INTO chat_participants (room_id, user_id, last_seen_at, is_active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (room_id, user_id) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			is_active = excluded.is_active
	`
	_, err := s.db.ExecContext(ctx, query, p.RoomID, p.UserID, p.LastSeenAt.UTC(), p.Active)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

// ListParticipants lists last-seen records of a room.
func (s *SQLiteStore) ListParticipants(ctx context.Context, roomID string) ([]*store.Participant, error) {
	query := `
		SELECT room_id, user_id, last_seen_at, is_active
		FROM chat_participants
		WHERE room_id = ?
		ORDER BY last_seen_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*store.Participant, 0)
	for rows.Next() {
		var p store.Participant
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.LastSeenAt, &p.Active); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, &p)
	}

	return participants, rows.Err()
}

// ==== ProfileStore implementation ====

// GetProfile retrieves a user's role record.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*store.Profile, error) {
	query := `
		SELECT id, role, display_name, created_at
		FROM profiles
		WHERE id = ?
	`
	var p store.Profile
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.Role, &p.DisplayName, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", userID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile creates or updates a user's role record.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *store.Profile) error {
	query := `
		INSERT INTO profiles (id, role, display_name)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			role = excluded.role,
			display_name = excluded.display_name
	`
	if _, err := s.db.ExecContext(ctx, query, p.UserID, string(p.Role), p.DisplayName); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
