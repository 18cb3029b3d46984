// Package history records orchestrated executions in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/ports"
)

// SQLiteStore persists execution records in the executions table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore prepares the executions table on db.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	store := &SQLiteStore{db: db}
	if err := store.init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		timestamp_ms INTEGER NOT NULL,
		notification_id INTEGER,
		app_package TEXT,
		action TEXT,
		fallback INTEGER,
		error_code TEXT,
		error_message TEXT,
		bot_hash TEXT,
		duration_ms INTEGER
	);`)
	if err != nil {
		return fmt.Errorf("create executions table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS executions_timestamp ON executions(timestamp_ms)`); err != nil {
		return fmt.Errorf("create executions index: %w", err)
	}
	return nil
}

// Save inserts a new record.
func (s *SQLiteStore) Save(ctx context.Context, record domain.ExecutionRecord) error {
	if record.ID == "" {
		return fmt.Errorf("history record missing id")
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO executions
		(id, timestamp_ms, notification_id, app_package, action, fallback, error_code, error_message, bot_hash, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.UnixMilli(),
		record.NotificationID,
		record.AppPackage,
		string(record.Action),
		boolToInt(record.Fallback),
		string(record.ErrorCode),
		record.ErrorMessage,
		record.BotHash,
		record.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("save history record: %w", err)
	}
	return nil
}

// List returns records newest first; limit <= 0 returns everything.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]domain.ExecutionRecord, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT id, timestamp_ms, notification_id, app_package, action, fallback,
		error_code, error_message, bot_hash, duration_ms FROM executions ORDER BY timestamp_ms DESC, rowid DESC`)
	var args []interface{}
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.ExecutionRecord{}
	for rows.Next() {
		var (
			rec      domain.ExecutionRecord
			ts       int64
			fallback int
			action   string
			code     string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.NotificationID, &rec.AppPackage, &action, &fallback,
			&code, &rec.ErrorMessage, &rec.BotHash, &rec.DurationMS); err != nil {
			return nil, err
		}
		rec.Timestamp = time.UnixMilli(ts)
		rec.Action = domain.Action(action)
		rec.ErrorCode = domain.Code(code)
		rec.Fallback = fallback == 1
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes all records.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM executions")
	return err
}

// Prune deletes records strictly older than olderThan and reports how many went.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM executions WHERE timestamp_ms < ?", olderThan.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExportJSON writes all records oldest first as JSON lines.
func (s *SQLiteStore) ExportJSON(ctx context.Context, w io.Writer) (int, error) {
	records, err := s.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	for i := len(records) - 1; i >= 0; i-- {
		if err := enc.Encode(records[i]); err != nil {
			return len(records) - 1 - i, err
		}
	}
	return len(records), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.HistoryRepository = (*SQLiteStore)(nil)
