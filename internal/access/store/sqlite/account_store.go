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

type AccountStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccountStore(db *sql.DB, writer *dbpkg.Worker) *AccountStore {
	return &AccountStore{db: db, writer: writer}
}

const accountColumns = `
id, username, password_hash, full_name, tenant_id, is_admin,
failed_attempts, is_frozen, frozen_at_ms, face_template, voice_template, created_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (store.Account, error) {
	var (
		a                 store.Account
		admin, frozen     int
		frozenAt          sql.NullInt64
		createdMs         int64
		faceTpl, voiceTpl []byte
	)
	if err := row.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &a.FullName, &a.TenantID, &admin,
		&a.FailedAttempts, &frozen, &frozenAt, &faceTpl, &voiceTpl, &createdMs,
	); err != nil {
		return store.Account{}, err
	}
	a.IsAdmin = admin == 1
	a.IsFrozen = frozen == 1
	a.FrozenAt = fromMs(frozenAt)
	a.FaceTemplate = faceTpl
	a.VoiceTemplate = voiceTpl
	a.CreatedAt = time.UnixMilli(createdMs).UTC()
	return a, nil
}

func (s *AccountStore) GetAccount(ctx context.Context, id int64) (store.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Account{}, store.ErrNotFound
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("GetAccount: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetAccountByUsername(ctx context.Context, username string) (store.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return store.Account{}, store.ErrNotFound
	}
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?;`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Account{}, store.ErrNotFound
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("GetAccountByUsername: %w", err)
	}
	return a, nil
}

func (s *AccountStore) CreateAccount(ctx context.Context, a store.Account) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	nowMs := a.CreatedAt.UTC().UnixMilli()

	var id int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureTenant(ctx, tx, a.TenantID, nowMs); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO accounts(
  username, password_hash, full_name, tenant_id, is_admin,
  failed_attempts, is_frozen, frozen_at_ms, face_template, voice_template, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			strings.TrimSpace(a.Username), a.PasswordHash, a.FullName, a.TenantID, boolInt(a.IsAdmin),
			a.FailedAttempts, boolInt(a.IsFrozen), msPtr(a.FrozenAt), a.FaceTemplate, a.VoiceTemplate, nowMs,
		)
		if err != nil {
			return fmt.Errorf("CreateAccount insert: %w", mapConstraint(err))
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *AccountStore) UpdateCounters(ctx context.Context, id int64, fn store.CounterFn) (store.Counters, error) {
	var out store.Counters
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var (
			cur      store.Counters
			frozen   int
			frozenAt sql.NullInt64
		)
		err := tx.QueryRowContext(ctx, `
SELECT failed_attempts, is_frozen, frozen_at_ms FROM accounts WHERE id = ?;
`, id).Scan(&cur.FailedAttempts, &frozen, &frozenAt)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("UpdateCounters select: %w", err)
		}
		cur.IsFrozen = frozen == 1
		cur.FrozenAt = fromMs(frozenAt)

		next := fn(cur)
		if _, err := tx.ExecContext(ctx, `
UPDATE accounts
SET failed_attempts = ?,
    is_frozen       = ?,
    frozen_at_ms    = ?
WHERE id = ?;
`, next.FailedAttempts, boolInt(next.IsFrozen), msPtr(next.FrozenAt), id); err != nil {
			return fmt.Errorf("UpdateCounters update: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

func (s *AccountStore) SetTemplates(ctx context.Context, id int64, face, voice []byte) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE accounts SET face_template = ?, voice_template = ? WHERE id = ?;
`, face, voice, id)
		if err != nil {
			return fmt.Errorf("SetTemplates: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *AccountStore) ListFrozen(ctx context.Context, tenantID int64) ([]store.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+accountColumns+`
FROM accounts
WHERE tenant_id = ? AND is_frozen = 1
ORDER BY frozen_at_ms DESC, id;
`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ListFrozen: %w", err)
	}
	defer rows.Close()

	var out []store.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ListFrozen scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
