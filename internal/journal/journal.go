package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/spbnode/internal/session"
	"github.com/nerrad567/spbnode/internal/sparkplug"
)

// Page size limits for Recent.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// ErrNotFound is returned when no journal entry matches.
var ErrNotFound = errors.New("journal: entry not found")

// Entry is one published payload.
type Entry struct {
	ID          string                `json:"id"`
	SessionID   string                `json:"session_id"`
	Type        sparkplug.MessageType `json:"type"`
	Topic       string                `json:"topic"`
	Seq         uint8                 `json:"seq"`
	Payload     []byte                `json:"payload"`
	MetricCount int                   `json:"metric_count"`
	// Values round-trips through JSON, so numbers read back as float64.
	Values      map[string]any `json:"values,omitempty"`
	PublishedAt time.Time      `json:"published_at"`
}

// Filter controls which entries Recent returns.
type Filter struct {
	SessionID string                // optional
	Type      sparkplug.MessageType // optional
	Limit     int                   // default 50, max 500
}

// Repository defines the interface for journal operations.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	Recent(ctx context.Context, filter Filter) ([]Entry, error)
	LastDeath(ctx context.Context, sessionID string) (*Entry, error)
}

// SQLiteRepository stores the journal in the journal_messages table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new journal repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts an entry. ID and PublishedAt are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "msg-" + uuid.NewString()
	}
	if e.PublishedAt.IsZero() {
		e.PublishedAt = time.Now().UTC()
	}

	var valuesJSON *string
	if e.Values != nil {
		b, err := json.Marshal(e.Values)
		if err != nil {
			return fmt.Errorf("marshalling journal values: %w", err)
		}
		s := string(b)
		valuesJSON = &s
	}

	payload := e.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO journal_messages
		 (id, session_id, message_type, topic, seq, payload, metric_count, values_json, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, string(e.Type), e.Topic, int(e.Seq),
		payload, e.MetricCount, valuesJSON,
		e.PublishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}

	return nil
}

// Recent returns entries matching filter, most recently recorded first.
func (r *SQLiteRepository) Recent(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	var conditions []string
	var args []any
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "message_type = ?")
		args = append(args, string(filter.Type))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT %s FROM journal_messages %s ORDER BY rowid DESC LIMIT ?",
		entryColumns, where,
	)
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}

	return entries, nil
}

// LastDeath returns the NDEATH entry recorded for sessionID.
// Returns ErrNotFound if the session never published its death.
func (r *SQLiteRepository) LastDeath(ctx context.Context, sessionID string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+` FROM journal_messages
		 WHERE session_id = ? AND message_type = ?
		 ORDER BY rowid DESC LIMIT 1`,
		sessionID, string(sparkplug.NDeath),
	)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

const entryColumns = "id, session_id, message_type, topic, seq, payload, metric_count, values_json, published_at"

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var msgType, publishedAt string
	var seq int
	var valuesJSON sql.NullString

	if err := s.Scan(&e.ID, &e.SessionID, &msgType, &e.Topic, &seq,
		&e.Payload, &e.MetricCount, &valuesJSON, &publishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning journal entry: %w", err)
	}

	e.Type = sparkplug.MessageType(msgType)
	e.Seq = uint8(seq) //nolint:gosec // CHECK constraint keeps seq within 0..255

	if valuesJSON.Valid && valuesJSON.String != "" {
		if err := json.Unmarshal([]byte(valuesJSON.String), &e.Values); err != nil {
			return nil, fmt.Errorf("decoding values of journal entry %s: %w", e.ID, err)
		}
	}

	t, err := time.Parse(time.RFC3339Nano, publishedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing journal timestamp %q: %w", publishedAt, err)
	}
	e.PublishedAt = t

	return &e, nil
}

// Observer records session publishes in a Repository.
type Observer struct {
	repo Repository
}

// NewObserver returns a session.Observer writing to repo.
func NewObserver(repo Repository) *Observer {
	return &Observer{repo: repo}
}

// OnPublish implements session.Observer.
func (o *Observer) OnPublish(ctx context.Context, msg session.Message) error {
	e := &Entry{
		SessionID:   msg.SessionID,
		Type:        msg.Type,
		Topic:       msg.Topic,
		Seq:         msg.Seq,
		Payload:     msg.Payload,
		MetricCount: len(msg.Values),
		PublishedAt: msg.Time,
	}
	if msg.Values != nil {
		e.Values = map[string]any(msg.Values)
	}
	return o.repo.Record(ctx, e)
}
