package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	"github.com/mohamed2108268/Smart-Access/internal/access/types"
	"github.com/mohamed2108268/Smart-Access/internal/doorbus"
)

// DefaultUnlockGrace is how long a room stays unlocked after a grant.
const DefaultUnlockGrace = 30 * time.Second

// RoomService answers door-controller polls and administrator overrides.
type RoomService struct {
	rooms  store.RoomStore
	logs   store.AccessLogStore
	doors  DoorNotifier
	grace  time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewRoomService(rooms store.RoomStore, logs store.AccessLogStore, doors DoorNotifier, grace time.Duration, logger *slog.Logger) *RoomService {
	if grace <= 0 {
		grace = DefaultUnlockGrace
	}
	if doors == nil {
		doors = doorbus.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomService{
		rooms:  rooms,
		logs:   logs,
		doors:  doors,
		grace:  grace,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.  Used by tests.
func (s *RoomService) WithClock(now func() time.Time) *RoomService {
	s.now = now
	return s
}

// Status returns the lock state a door controller should act on.  A room
// whose grace period has elapsed is relocked before answering, so pollers
// never see a stale unlock between reaper sweeps.
func (s *RoomService) Status(ctx context.Context, roomID string) (types.RoomStatus, error) {
	room, err := s.rooms.GetRoom(ctx, strings.TrimSpace(roomID))
	if errors.Is(err, store.ErrNotFound) {
		return types.RoomStatus{}, ErrRoomNotFound
	}
	if err != nil {
		return types.RoomStatus{}, fmt.Errorf("load room: %w", err)
	}

	now := s.now()
	cutoff := now.Add(-s.grace)
	if room.IsUnlocked && room.UnlockedAt != nil && room.UnlockedAt.Before(cutoff) {
		locked, err := s.rooms.LockIfExpired(ctx, room.ID, cutoff)
		if err != nil {
			return types.RoomStatus{}, fmt.Errorf("relock room: %w", err)
		}
		if locked {
			room.IsUnlocked = false
			room.UnlockedAt = nil
			s.notify(ctx, room, doorbus.ReasonExpired, now)
		} else if room, err = s.rooms.GetRoom(ctx, room.RoomID); err != nil {
			return types.RoomStatus{}, fmt.Errorf("reload room: %w", err)
		}
	}

	return types.RoomStatus{
		RoomID:          room.RoomID,
		IsUnlocked:      room.IsUnlocked,
		UnlockTimestamp: formatUnlock(room),
	}, nil
}

// SetLock applies an administrator's lock, unlock or toggle to a room of
// their tenant and records it as a manual operation.
func (s *RoomService) SetLock(ctx context.Context, p types.Principal, roomID, action string) (types.LockResponse, error) {
	if !p.IsAdmin {
		return types.LockResponse{}, ErrPermissionDenied
	}
	if action == "" {
		action = types.LockActionToggle
	}
	switch action {
	case types.LockActionLock, types.LockActionUnlock, types.LockActionToggle:
	default:
		return types.LockResponse{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	room, err := s.rooms.GetTenantRoom(ctx, p.TenantID, strings.TrimSpace(roomID))
	if errors.Is(err, store.ErrNotFound) {
		return types.LockResponse{}, ErrRoomNotFound
	}
	if err != nil {
		return types.LockResponse{}, fmt.Errorf("load room: %w", err)
	}

	now := s.now()
	room, err = s.rooms.UpdateLock(ctx, room.ID, func(cur store.Room) *time.Time {
		unlock := action == types.LockActionUnlock ||
			(action == types.LockActionToggle && !cur.IsUnlocked)
		if !unlock {
			return nil
		}
		return &now
	})
	if err != nil {
		return types.LockResponse{}, fmt.Errorf("update lock: %w", err)
	}

	if err := s.logs.RecordLog(ctx, store.AccessLogRecord{
		AccountID:               p.AccountID,
		Username:                p.Username,
		RoomID:                  room.RoomID,
		TenantID:                room.TenantID,
		Timestamp:               now,
		Granted:                 true,
		FaceResult:              store.FaceManualOperation,
		SpeakerSimilarity:       1.0,
		AudioGenuine:            true,
		TranscriptionSimilarity: 1.0,
	}); err != nil {
		s.logger.Error("access log write failed", "room_id", room.RoomID, "error", err)
	}

	s.notify(ctx, room, doorbus.ReasonManual, now)
	s.logger.Info("manual lock override", "room_id", room.RoomID, "account_id", p.AccountID, "unlocked", room.IsUnlocked)

	msg := "Room locked"
	if room.IsUnlocked {
		msg = "Room unlocked"
	}
	return types.LockResponse{
		Message:         msg,
		RoomID:          room.RoomID,
		IsUnlocked:      room.IsUnlocked,
		UnlockTimestamp: formatUnlock(room),
	}, nil
}

func (s *RoomService) notify(ctx context.Context, room store.Room, reason string, at time.Time) {
	notifyDoor(ctx, s.doors, s.logger, room, reason, at)
}

func notifyDoor(ctx context.Context, doors DoorNotifier, logger *slog.Logger, room store.Room, reason string, at time.Time) {
	if err := doors.PublishRoomState(ctx, doorbus.RoomState{
		RoomID:     room.RoomID,
		IsUnlocked: room.IsUnlocked,
		UnlockedAt: room.UnlockedAt,
		Reason:     reason,
		At:         at,
	}); err != nil {
		logger.Warn("door bus publish failed", "room_id", room.RoomID, "error", err)
	}
}

func formatUnlock(r store.Room) *string {
	if !r.IsUnlocked || r.UnlockedAt == nil {
		return nil
	}
	s := r.UnlockedAt.UTC().Format(time.RFC3339Nano)
	return &s
}
