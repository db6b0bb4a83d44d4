package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixture describes tenants, room groups, rooms and accounts to create in
// a dev database.  Templates are enrolled separately (smart-access-ctl enroll).
type Fixture struct {
	Tenants []TenantFixture `yaml:"tenants"`
}

type TenantFixture struct {
	Name     string           `yaml:"name"`
	Groups   []GroupFixture   `yaml:"groups"`
	Accounts []AccountFixture `yaml:"accounts"`
}

type GroupFixture struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Rooms       []RoomFixture `yaml:"rooms"`
}

type RoomFixture struct {
	RoomID string `yaml:"room_id"`
	Name   string `yaml:"name"`
}

type AccountFixture struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	FullName string   `yaml:"full_name"`
	Admin    bool     `yaml:"admin"`
	Groups   []string `yaml:"groups"`
}

// DefaultFixture is seeded when no fixture file is configured.
var DefaultFixture = Fixture{
	Tenants: []TenantFixture{{
		Name: "Dev Company",
		Groups: []GroupFixture{{
			Name:        "Main Building",
			Description: "Dev",
			Rooms:       []RoomFixture{{RoomID: "room-001", Name: "Main Entrance"}},
		}},
		Accounts: []AccountFixture{
			{Username: "admin", Password: "admin", FullName: "Dev Admin", Admin: true, Groups: []string{"Main Building"}},
		},
	}},
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

type SeedOptions struct {
	// HashPassword turns fixture passwords into stored hashes.
	HashPassword func(plain string) (string, error)
}

// SeedDev inserts the fixture.  It is idempotent: existing tenants, groups,
// rooms and accounts (matched by their unique names) are left untouched.
func SeedDev(ctx context.Context, db *sql.DB, f Fixture, opt SeedOptions) error {
	if opt.HashPassword == nil {
		return fmt.Errorf("seed: HashPassword is required")
	}
	now := time.Now().UTC().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range f.Tenants {
		tenantID, err := upsertID(ctx, tx,
			`INSERT OR IGNORE INTO tenants(name, created_at_ms) VALUES (?, ?);`,
			`SELECT id FROM tenants WHERE name = ?;`,
			[]any{t.Name, now}, []any{t.Name})
		if err != nil {
			return fmt.Errorf("seed tenant %q: %w", t.Name, err)
		}

		groups := make(map[string]int64, len(t.Groups))
		for _, g := range t.Groups {
			groupID, err := upsertID(ctx, tx,
				`INSERT OR IGNORE INTO room_groups(tenant_id, name, description) VALUES (?, ?, ?);`,
				`SELECT id FROM room_groups WHERE tenant_id = ? AND name = ?;`,
				[]any{tenantID, g.Name, g.Description}, []any{tenantID, g.Name})
			if err != nil {
				return fmt.Errorf("seed group %q: %w", g.Name, err)
			}
			groups[g.Name] = groupID

			for _, r := range g.Rooms {
				if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO rooms(room_id, name, tenant_id, group_id) VALUES (?, ?, ?, ?);
`, strings.TrimSpace(r.RoomID), r.Name, tenantID, groupID); err != nil {
					return fmt.Errorf("seed room %q: %w", r.RoomID, err)
				}
			}
		}

		for _, a := range t.Accounts {
			hash, err := opt.HashPassword(a.Password)
			if err != nil {
				return fmt.Errorf("seed account %q: hash password: %w", a.Username, err)
			}
			var admin int
			if a.Admin {
				admin = 1
			}
			accountID, err := upsertID(ctx, tx, `
INSERT OR IGNORE INTO accounts(username, password_hash, full_name, tenant_id, is_admin, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?);`,
				`SELECT id FROM accounts WHERE username = ?;`,
				[]any{a.Username, hash, a.FullName, tenantID, admin, now}, []any{a.Username})
			if err != nil {
				return fmt.Errorf("seed account %q: %w", a.Username, err)
			}
			for _, name := range a.Groups {
				groupID, ok := groups[name]
				if !ok {
					return fmt.Errorf("seed account %q: unknown group %q", a.Username, name)
				}
				if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO account_room_groups(account_id, group_id) VALUES (?, ?);
`, accountID, groupID); err != nil {
					return fmt.Errorf("seed grant %q -> %q: %w", a.Username, name, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}
	return nil
}

func upsertID(ctx context.Context, tx *sql.Tx, insert, lookup string, insertArgs, lookupArgs []any) (int64, error) {
	if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRowContext(ctx, lookup, lookupArgs...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
