package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
)

// ensureTenant guarantees a tenants row exists for tenantID so that
// foreign-key constraints from accounts and rooms are satisfied.  Tenants
// created this way get a placeholder name; the dev seeder and admin tooling
// create named tenants up front.
//
// Must be called inside an existing transaction.
func ensureTenant(ctx context.Context, tx *sql.Tx, tenantID int64, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO tenants(id, name, created_at_ms) VALUES (?, 'tenant-' || ?, ?);
`, tenantID, tenantID, nowMs); err != nil {
		return fmt.Errorf("ensureTenant %d: %w", tenantID, err)
	}
	return nil
}

// ensureGroup is ensureTenant for room groups.
func ensureGroup(ctx context.Context, tx *sql.Tx, tenantID, groupID int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO room_groups(id, tenant_id, name) VALUES (?, ?, 'group-' || ?);
`, groupID, tenantID, groupID); err != nil {
		return fmt.Errorf("ensureGroup %d: %w", groupID, err)
	}
	return nil
}

// mapConstraint turns a UNIQUE violation into store.ErrDuplicate.
func mapConstraint(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return store.ErrDuplicate
		}
	}
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func msPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func fromMs(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
