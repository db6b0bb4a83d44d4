package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	dbpkg "github.com/mohamed2108268/Smart-Access/internal/db"
)

type AccessLogStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessLogStore(db *sql.DB, writer *dbpkg.Worker) *AccessLogStore {
	return &AccessLogStore{db: db, writer: writer}
}

func (s *AccessLogStore) RecordLog(ctx context.Context, rec store.AccessLogRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	// NULL rather than '' so "no failure" is distinguishable in SQL.
	var reason any
	if rec.FailureReason != "" {
		reason = rec.FailureReason
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_logs(
  id, account_id, room_id, tenant_id, timestamp_ms, access_granted,
  face_result, speaker_similarity, audio_genuine, transcription_similarity, failure_reason
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, rec.AccountID, rec.RoomID, rec.TenantID, rec.Timestamp.UTC().UnixMilli(), boolInt(rec.Granted),
			rec.FaceResult, rec.SpeakerSimilarity, boolInt(rec.AudioGenuine), rec.TranscriptionSimilarity, reason,
		); err != nil {
			return fmt.Errorf("RecordLog insert: %w", err)
		}
		return nil
	})
}

func (s *AccessLogStore) ListLogs(ctx context.Context, f store.AccessLogFilter) ([]store.AccessLogRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.TenantID != 0 {
		where = append(where, "l.tenant_id = ?")
		args = append(args, f.TenantID)
	}
	if f.AccountID != 0 {
		where = append(where, "l.account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Username != "" {
		where = append(where, "a.username = ?")
		args = append(args, f.Username)
	}
	if f.RoomID != "" {
		where = append(where, "l.room_id = ?")
		args = append(args, f.RoomID)
	}
	if f.Granted != nil {
		where = append(where, "l.access_granted = ?")
		args = append(args, boolInt(*f.Granted))
	}
	if f.Start != nil {
		where = append(where, "l.timestamp_ms >= ?")
		args = append(args, f.Start.UTC().UnixMilli())
	}
	if f.End != nil {
		where = append(where, "l.timestamp_ms <= ?")
		args = append(args, f.End.UTC().UnixMilli())
	}

	q := `
SELECT l.id, l.account_id, a.username, l.room_id, l.tenant_id, l.timestamp_ms,
       l.access_granted, l.face_result, l.speaker_similarity, l.audio_genuine,
       l.transcription_similarity, l.failure_reason
FROM access_logs l
JOIN accounts a ON a.id = l.account_id`
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY l.timestamp_ms DESC, l.rowid DESC"
	if f.Limit > 0 {
		q += "\nLIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q+";", args...)
	if err != nil {
		return nil, fmt.Errorf("ListLogs: %w", err)
	}
	defer rows.Close()

	var out []store.AccessLogRecord
	for rows.Next() {
		var (
			rec              store.AccessLogRecord
			tsMs             int64
			granted, genuine int
			reason           sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.AccountID, &rec.Username, &rec.RoomID, &rec.TenantID, &tsMs,
			&granted, &rec.FaceResult, &rec.SpeakerSimilarity, &genuine,
			&rec.TranscriptionSimilarity, &reason,
		); err != nil {
			return nil, fmt.Errorf("ListLogs scan: %w", err)
		}
		rec.Timestamp = time.UnixMilli(tsMs).UTC()
		rec.Granted = granted == 1
		rec.AudioGenuine = genuine == 1
		rec.FailureReason = reason.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
