package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	dbpkg "github.com/mohamed2108268/Smart-Access/internal/db"
)

// RoomStore persists rooms and room-group grants.  It implements both
// store.RoomStore and store.GrantStore.  Every lock-state change runs on the
// writer so the reaper, inline expiry and manual overrides never interleave.
type RoomStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRoomStore(db *sql.DB, writer *dbpkg.Worker) *RoomStore {
	return &RoomStore{db: db, writer: writer}
}

const roomColumns = `id, room_id, tenant_id, group_id, name, is_unlocked, unlocked_at_ms`

func scanRoom(row rowScanner) (store.Room, error) {
	var (
		r          store.Room
		unlocked   int
		unlockedAt sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.RoomID, &r.TenantID, &r.GroupID, &r.Name, &unlocked, &unlockedAt); err != nil {
		return store.Room{}, err
	}
	r.IsUnlocked = unlocked == 1
	r.UnlockedAt = fromMs(unlockedAt)
	return r, nil
}

func (s *RoomStore) GetRoom(ctx context.Context, roomID string) (store.Room, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return store.Room{}, store.ErrNotFound
	}
	r, err := scanRoom(s.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE room_id = ?;`, roomID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Room{}, store.ErrNotFound
	}
	if err != nil {
		return store.Room{}, fmt.Errorf("GetRoom: %w", err)
	}
	return r, nil
}

func (s *RoomStore) GetTenantRoom(ctx context.Context, tenantID int64, roomID string) (store.Room, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return store.Room{}, store.ErrNotFound
	}
	r, err := scanRoom(s.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE room_id = ? AND tenant_id = ?;`, roomID, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Room{}, store.ErrNotFound
	}
	if err != nil {
		return store.Room{}, fmt.Errorf("GetTenantRoom: %w", err)
	}
	return r, nil
}

func (s *RoomStore) CreateRoom(ctx context.Context, r store.Room) (int64, error) {
	nowMs := time.Now().UTC().UnixMilli()
	var id int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureTenant(ctx, tx, r.TenantID, nowMs); err != nil {
			return err
		}
		if err := ensureGroup(ctx, tx, r.TenantID, r.GroupID); err != nil {
			return err
		}
		var unlockedAt any
		if r.IsUnlocked {
			unlockedAt = msPtr(r.UnlockedAt)
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO rooms(room_id, name, tenant_id, group_id, is_unlocked, unlocked_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, strings.TrimSpace(r.RoomID), r.Name, r.TenantID, r.GroupID, boolInt(unlockedAt != nil), unlockedAt)
		if err != nil {
			return fmt.Errorf("CreateRoom insert: %w", mapConstraint(err))
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *RoomStore) UpdateLock(ctx context.Context, id int64, fn store.LockFn) (store.Room, error) {
	var out store.Room
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := scanRoom(tx.QueryRowContext(ctx,
			`SELECT `+roomColumns+` FROM rooms WHERE id = ?;`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("UpdateLock select: %w", err)
		}

		at := fn(cur)
		if _, err := tx.ExecContext(ctx, `
UPDATE rooms SET is_unlocked = ?, unlocked_at_ms = ? WHERE id = ?;
`, boolInt(at != nil), msPtr(at), id); err != nil {
			return fmt.Errorf("UpdateLock update: %w", err)
		}

		out = cur
		out.IsUnlocked = at != nil
		out.UnlockedAt = nil
		if at != nil {
			t := time.UnixMilli(at.UTC().UnixMilli()).UTC()
			out.UnlockedAt = &t
		}
		return nil
	})
	return out, err
}

func (s *RoomStore) LockIfExpired(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	var locked bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE rooms
SET is_unlocked = 0, unlocked_at_ms = NULL
WHERE id = ? AND is_unlocked = 1 AND unlocked_at_ms < ?;
`, id, cutoff.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("LockIfExpired: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		locked = n == 1
		return nil
	})
	return locked, err
}

func (s *RoomStore) LockExpired(ctx context.Context, cutoff time.Time) ([]store.Room, error) {
	cutoffMs := cutoff.UTC().UnixMilli()
	var locked []store.Room
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT `+roomColumns+`
FROM rooms
WHERE is_unlocked = 1 AND unlocked_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("LockExpired select: %w", err)
		}
		var found []store.Room
		for rows.Next() {
			r, err := scanRoom(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("LockExpired scan: %w", err)
			}
			found = append(found, r)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(found) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE rooms
SET is_unlocked = 0, unlocked_at_ms = NULL
WHERE is_unlocked = 1 AND unlocked_at_ms < ?;
`, cutoffMs); err != nil {
			return fmt.Errorf("LockExpired update: %w", err)
		}

		for i := range found {
			found[i].IsUnlocked = false
			found[i].UnlockedAt = nil
		}
		locked = found
		return nil
	})
	return locked, err
}

func (s *RoomStore) HasGroupGrant(ctx context.Context, accountID, groupID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
SELECT 1 FROM account_room_groups WHERE account_id = ? AND group_id = ?;
`, accountID, groupID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("HasGroupGrant: %w", err)
	}
	return true, nil
}

func (s *RoomStore) GroupTenant(ctx context.Context, groupID int64) (int64, error) {
	var tenant int64
	err := s.db.QueryRowContext(ctx, `SELECT tenant_id FROM room_groups WHERE id = ?;`, groupID).Scan(&tenant)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("GroupTenant: %w", err)
	}
	return tenant, nil
}

func (s *RoomStore) GrantGroup(ctx context.Context, accountID, groupID int64) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO account_room_groups(account_id, group_id) VALUES (?, ?);
`, accountID, groupID); err != nil {
			return fmt.Errorf("GrantGroup: %w", err)
		}
		return nil
	})
}

func (s *RoomStore) RevokeGroup(ctx context.Context, accountID, groupID int64) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM account_room_groups WHERE account_id = ? AND group_id = ?;
`, accountID, groupID); err != nil {
			return fmt.Errorf("RevokeGroup: %w", err)
		}
		return nil
	})
}

func (s *RoomStore) ListAccountRooms(ctx context.Context, accountID int64) ([]store.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT r.id, r.room_id, r.tenant_id, r.group_id, r.name, r.is_unlocked, r.unlocked_at_ms
FROM rooms r
JOIN account_room_groups g ON g.group_id = r.group_id
WHERE g.account_id = ?
ORDER BY r.room_id;
`, accountID)
	if err != nil {
		return nil, fmt.Errorf("ListAccountRooms: %w", err)
	}
	defer rows.Close()

	var out []store.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAccountRooms scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAccountRooms rows: %w", err)
	}
	return out, nil
}
