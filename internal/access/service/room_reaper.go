package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	"github.com/mohamed2108268/Smart-Access/internal/doorbus"
)

// RoomReaper periodically relocks every room whose unlock grace period has
// elapsed.  It runs as a background goroutine and is safe to stop via its
// context or the Stop method.
type RoomReaper struct {
	rooms    store.RoomStore
	doors    DoorNotifier
	grace    time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// ReaperConfig holds the parameters for NewRoomReaper.
type ReaperConfig struct {
	// Interval is how often the reaper sweeps.  Defaults to 5s.
	Interval time.Duration

	// Grace is how long a room may stay unlocked.  Defaults to 30s.
	Grace time.Duration
}

// NewRoomReaper creates a reaper but does not start it.
// Call Start to begin the background loop.
func NewRoomReaper(rooms store.RoomStore, doors DoorNotifier, cfg ReaperConfig, logger *slog.Logger) *RoomReaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultUnlockGrace
	}
	if doors == nil {
		doors = doorbus.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomReaper{
		rooms:    rooms,
		doors:    doors,
		grace:    cfg.Grace,
		interval: cfg.Interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		done:     make(chan struct{}),
	}
}

// WithClock replaces the time source.  Used by tests.
func (r *RoomReaper) WithClock(now func() time.Time) *RoomReaper {
	r.now = now
	return r
}

// Start begins the background loop.  It sweeps immediately, then on every
// interval, until ctx is cancelled or Stop is called.
func (r *RoomReaper) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	go r.loop(ctx)

	r.logger.Info("room reaper started", "interval", r.interval, "grace", r.grace)
}

// Stop signals the reaper to exit and waits for it to finish.
func (r *RoomReaper) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

func (r *RoomReaper) loop(ctx context.Context) {
	defer close(r.done)

	_, _ = r.Sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.Sweep(ctx)
		}
	}
}

// Sweep relocks every expired room once and returns how many it relocked.
// Errors are logged and returned; the loop keeps going.
func (r *RoomReaper) Sweep(ctx context.Context) (int, error) {
	now := r.now()
	locked, err := r.rooms.LockExpired(ctx, now.Add(-r.grace))
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("room reaper sweep failed", "error", err)
		}
		return 0, err
	}
	for _, room := range locked {
		notifyDoor(ctx, r.doors, r.logger, room, doorbus.ReasonExpired, now)
		r.logger.Info("room relocked after grace period", "room_id", room.RoomID)
	}
	return len(locked), nil
}
