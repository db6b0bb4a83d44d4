package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
)

// AccessLogStore is an in-memory append-only log of access decisions.
// It is intended for use in tests and dev environments.
type AccessLogStore struct {
	mu   sync.Mutex
	logs []store.AccessLogRecord
}

func NewAccessLogStore() *AccessLogStore {
	return &AccessLogStore{}
}

func (s *AccessLogStore) RecordLog(_ context.Context, rec store.AccessLogRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, rec)
	return nil
}

func (s *AccessLogStore) ListLogs(_ context.Context, f store.AccessLogFilter) ([]store.AccessLogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.AccessLogRecord, 0, len(s.logs))
	for i := len(s.logs) - 1; i >= 0; i-- {
		if matchLog(s.logs[i], f) {
			out = append(out, s.logs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Logs returns a copy of all recorded entries in insertion order.  Test-only helper.
func (s *AccessLogStore) Logs() []store.AccessLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AccessLogRecord, len(s.logs))
	copy(out, s.logs)
	return out
}

func matchLog(rec store.AccessLogRecord, f store.AccessLogFilter) bool {
	switch {
	case f.TenantID != 0 && rec.TenantID != f.TenantID:
		return false
	case f.AccountID != 0 && rec.AccountID != f.AccountID:
		return false
	case f.Username != "" && rec.Username != f.Username:
		return false
	case f.RoomID != "" && rec.RoomID != f.RoomID:
		return false
	case f.Granted != nil && rec.Granted != *f.Granted:
		return false
	case f.Start != nil && rec.Timestamp.Before(*f.Start):
		return false
	case f.End != nil && rec.Timestamp.After(*f.End):
		return false
	}
	return true
}
