package store

import (
	"context"
	"time"
)

// Face verification tags stored on access log entries.
const (
	FaceNotAttempted    = "not_attempted"
	FaceTimeout         = "timeout"
	FaceFailed          = "failed"
	FaceGenuine         = "genuine"
	FaceManualOperation = "manual_operation"
)

// AccessLogRecord is one terminal (or counted) outcome of a room-access
// attempt.  Records are append-only.
type AccessLogRecord struct {
	ID                      string
	AccountID               int64
	Username                string // populated on reads only
	RoomID                  string
	TenantID                int64
	Timestamp               time.Time
	Granted                 bool
	FaceResult              string
	SpeakerSimilarity       float64
	AudioGenuine            bool
	TranscriptionSimilarity float64
	FailureReason           string
}

// AccessLogFilter narrows ListLogs.  Zero values mean "no filter".
type AccessLogFilter struct {
	TenantID  int64
	AccountID int64
	Username  string
	RoomID    string
	Granted   *bool
	Start     *time.Time
	End       *time.Time
	Limit     int
}

// AccessLogStore persists access decisions as an append-only audit log.
type AccessLogStore interface {
	RecordLog(ctx context.Context, rec AccessLogRecord) error

	// ListLogs returns matching records, newest first.
	ListLogs(ctx context.Context, f AccessLogFilter) ([]AccessLogRecord, error)
}
