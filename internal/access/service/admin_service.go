package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	"github.com/mohamed2108268/Smart-Access/internal/access/types"
)

// Room grant actions.
const (
	GrantActionGrant  = "grant"
	GrantActionRevoke = "revoke"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// Sealer encrypts biometric templates before they are stored.
// *sealed.Vault implements it.
type Sealer interface {
	Seal(plain []byte) ([]byte, error)
}

// LogQuery narrows ListLogs.  Zero values mean "no filter".
type LogQuery struct {
	Username string
	RoomID   string
	Granted  *bool
	Start    *time.Time
	End      *time.Time
	Limit    int
}

// AdminService holds the tenant-administration operations: lockout
// recovery, audit log access, room-group grants and template enrollment.
type AdminService struct {
	accounts store.AccountStore
	grants   store.GrantStore
	logs     store.AccessLogStore
	sealer   Sealer
	logger   *slog.Logger
}

func NewAdminService(accounts store.AccountStore, grants store.GrantStore, logs store.AccessLogStore, sealer Sealer, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{accounts: accounts, grants: grants, logs: logs, sealer: sealer, logger: logger}
}

// Unfreeze clears the lockout of an account in the administrator's tenant.
// Accounts of other tenants are reported as not found.
func (s *AdminService) Unfreeze(ctx context.Context, p types.Principal, username string) error {
	if !p.IsAdmin {
		return ErrPermissionDenied
	}
	acct, err := s.tenantAccount(ctx, p.TenantID, username)
	if err != nil {
		return err
	}
	return s.unfreeze(ctx, acct, p.Username)
}

// UnfreezeAny clears the lockout of any account.  It backs the operator
// CLI, which runs with direct database access.
func (s *AdminService) UnfreezeAny(ctx context.Context, username string) error {
	acct, err := s.accounts.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	return s.unfreeze(ctx, acct, "cli")
}

func (s *AdminService) unfreeze(ctx context.Context, acct store.Account, by string) error {
	if _, err := s.accounts.UpdateCounters(ctx, acct.ID, unfreeze); err != nil {
		return fmt.Errorf("unfreeze account %d: %w", acct.ID, err)
	}
	s.logger.Info("account unfrozen", "account_id", acct.ID, "username", acct.Username, "by", by)
	return nil
}

// ListFrozen returns the frozen accounts of the administrator's tenant.
func (s *AdminService) ListFrozen(ctx context.Context, p types.Principal) ([]types.FrozenAccount, error) {
	if !p.IsAdmin {
		return nil, ErrPermissionDenied
	}
	accts, err := s.accounts.ListFrozen(ctx, p.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list frozen accounts: %w", err)
	}
	out := make([]types.FrozenAccount, 0, len(accts))
	for _, a := range accts {
		fa := types.FrozenAccount{
			Username:       a.Username,
			FullName:       a.FullName,
			FailedAttempts: a.FailedAttempts,
		}
		if a.FrozenAt != nil {
			fa.FrozenAt = a.FrozenAt.UTC().Format(time.RFC3339)
		}
		out = append(out, fa)
	}
	return out, nil
}

// ListLogs returns access log entries of the caller's tenant, newest first.
// Non-administrators only ever see their own entries.
func (s *AdminService) ListLogs(ctx context.Context, p types.Principal, q LogQuery) ([]types.AccessLogEntry, error) {
	f := store.AccessLogFilter{
		TenantID: p.TenantID,
		RoomID:   strings.TrimSpace(q.RoomID),
		Granted:  q.Granted,
		Start:    q.Start,
		End:      q.End,
		Limit:    q.Limit,
	}
	if p.IsAdmin {
		f.Username = strings.TrimSpace(q.Username)
	} else {
		f.AccountID = p.AccountID
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultLogLimit
	case f.Limit > maxLogLimit:
		f.Limit = maxLogLimit
	}

	recs, err := s.logs.ListLogs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list access logs: %w", err)
	}
	out := make([]types.AccessLogEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, logEntry(r))
	}
	return out, nil
}

// SetRoomGrant grants or revokes a user's access to a room group.  Both the
// user and the group must belong to the administrator's tenant.
func (s *AdminService) SetRoomGrant(ctx context.Context, p types.Principal, req types.RoomGrantRequest) error {
	if !p.IsAdmin {
		return ErrPermissionDenied
	}
	acct, err := s.tenantAccount(ctx, p.TenantID, req.Username)
	if err != nil {
		return err
	}
	tenant, err := s.grants.GroupTenant(ctx, req.GroupID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && tenant != p.TenantID) {
		return ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("load room group: %w", err)
	}

	switch req.Action {
	case GrantActionGrant, "":
		err = s.grants.GrantGroup(ctx, acct.ID, req.GroupID)
	case GrantActionRevoke:
		err = s.grants.RevokeGroup(ctx, acct.ID, req.GroupID)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	if err != nil {
		return fmt.Errorf("update room grant: %w", err)
	}
	s.logger.Info("room grant changed", "account_id", acct.ID, "group_id", req.GroupID, "action", req.Action, "by", p.Username)
	return nil
}

// AccountRooms lists the rooms the caller's room groups grant.  These are
// the room ids BeginRoomAccess will accept.
func (s *AdminService) AccountRooms(ctx context.Context, p types.Principal) ([]types.GrantedRoom, error) {
	rooms, err := s.grants.ListAccountRooms(ctx, p.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list account rooms: %w", err)
	}
	return grantedRooms(rooms, p.TenantID), nil
}

// AccountPermissions returns the grants of an account in the
// administrator's tenant.
func (s *AdminService) AccountPermissions(ctx context.Context, p types.Principal, username string) (types.AccountPermissions, error) {
	if !p.IsAdmin {
		return types.AccountPermissions{}, ErrPermissionDenied
	}
	acct, err := s.tenantAccount(ctx, p.TenantID, username)
	if err != nil {
		return types.AccountPermissions{}, err
	}
	rooms, err := s.grants.ListAccountRooms(ctx, acct.ID)
	if err != nil {
		return types.AccountPermissions{}, fmt.Errorf("list account rooms: %w", err)
	}

	out := types.AccountPermissions{
		Username: acct.Username,
		FullName: acct.FullName,
		IsAdmin:  acct.IsAdmin,
		IsFrozen: acct.IsFrozen,
		GroupIDs: []int64{},
		Rooms:    grantedRooms(rooms, p.TenantID),
	}
	seen := make(map[int64]bool)
	for _, r := range out.Rooms {
		if !seen[r.GroupID] {
			seen[r.GroupID] = true
			out.GroupIDs = append(out.GroupIDs, r.GroupID)
		}
	}
	slices.Sort(out.GroupIDs)
	return out, nil
}

func grantedRooms(rooms []store.Room, tenantID int64) []types.GrantedRoom {
	out := make([]types.GrantedRoom, 0, len(rooms))
	for _, r := range rooms {
		if r.TenantID != tenantID {
			continue
		}
		out = append(out, types.GrantedRoom{
			RoomID:     r.RoomID,
			Name:       r.Name,
			GroupID:    r.GroupID,
			IsUnlocked: r.IsUnlocked,
		})
	}
	return out
}

// EnrollTemplates seals and stores the face and voice templates of an
// account.  Both templates are required.
func (s *AdminService) EnrollTemplates(ctx context.Context, username string, face, voice []byte) error {
	if len(face) == 0 || len(voice) == 0 {
		return ErrMissingBiometricSample
	}
	if s.sealer == nil {
		return errors.New("enroll templates: no sealing key configured")
	}
	acct, err := s.accounts.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	sealedFace, err := s.sealer.Seal(face)
	if err != nil {
		return fmt.Errorf("seal face template: %w", err)
	}
	sealedVoice, err := s.sealer.Seal(voice)
	if err != nil {
		return fmt.Errorf("seal voice template: %w", err)
	}
	if err := s.accounts.SetTemplates(ctx, acct.ID, sealedFace, sealedVoice); err != nil {
		return fmt.Errorf("store templates: %w", err)
	}
	s.logger.Info("biometric templates enrolled", "account_id", acct.ID)
	return nil
}

func (s *AdminService) tenantAccount(ctx context.Context, tenantID int64, username string) (store.Account, error) {
	acct, err := s.accounts.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) || (err == nil && acct.TenantID != tenantID) {
		return store.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("load account: %w", err)
	}
	return acct, nil
}

func logEntry(r store.AccessLogRecord) types.AccessLogEntry {
	e := types.AccessLogEntry{
		ID:                     r.ID,
		Username:               r.Username,
		RoomID:                 r.RoomID,
		Timestamp:              r.Timestamp.UTC().Format(time.RFC3339Nano),
		AccessGranted:          r.Granted,
		FaceSpoofingResult:     r.FaceResult,
		SpeakerSimilarityScore: r.SpeakerSimilarity,
		TranscriptionScore:     r.TranscriptionSimilarity,
		FailureReason:          r.FailureReason,
	}
	if r.AudioGenuine {
		e.AudioDeepfakeResult = 1
	}
	return e
}
