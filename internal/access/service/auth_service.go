package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/biometric"
	"github.com/mohamed2108268/Smart-Access/internal/access/challenge"
	"github.com/mohamed2108268/Smart-Access/internal/access/password"
	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	"github.com/mohamed2108268/Smart-Access/internal/access/types"
	"github.com/mohamed2108268/Smart-Access/internal/doorbus"
)

// Verifier is the biometric gateway as seen by the state machine.
// *biometric.Gateway implements it.
type Verifier interface {
	VerifyFace(ctx context.Context, sample, sealedTemplate []byte) (bool, error)
	VerifyVoice(ctx context.Context, sample, sealedTemplate []byte, challenge string) (biometric.VoiceResult, error)
}

// TokenIssuer hands out the access token at the end of a login flow.
type TokenIssuer interface {
	Issue(p types.Principal) (string, time.Time, error)
}

// DoorNotifier is told about every lock transition.  doorbus.Publisher and
// doorbus.Nop implement it.
type DoorNotifier interface {
	PublishRoomState(ctx context.Context, s doorbus.RoomState) error
}

// Thresholds are the voice acceptance bounds of one flow.
type Thresholds struct {
	Speaker       float64
	Transcription float64
}

var (
	LoginThresholds      = Thresholds{Speaker: 0.69, Transcription: 0.70}
	RoomAccessThresholds = Thresholds{Speaker: 0.70, Transcription: 0.80}
)

// Accept requires all three voice checks to pass.
func (t Thresholds) Accept(r biometric.VoiceResult) bool {
	return r.SpeakerSimilarity >= t.Speaker &&
		r.TranscriptionSimilarity >= t.Transcription &&
		r.AudioGenuine
}

type AuthDependencies struct {
	Accounts   store.AccountStore
	Rooms      store.RoomStore
	Grants     store.GrantStore
	Logs       store.AccessLogStore
	Sessions   store.SessionStore
	Biometrics Verifier
	Challenges challenge.Source
	Tokens     TokenIssuer
	Doors      DoorNotifier
	Logger     *slog.Logger
}

type AuthConfig struct {
	Timer   StepTimer
	Lockout LockoutPolicy

	// SessionTTL bounds how long an abandoned session survives in the
	// store.  It must exceed the longest stage limit so a late submission
	// still finds its session and is told StageTimeout.
	SessionTTL time.Duration

	Login      Thresholds
	RoomAccess Thresholds
}

// Submission is one biometric stage call.
type Submission struct {
	Flow         types.Flow
	SessionToken string
	Principal    *types.Principal // room-access flows only
	Sample       []byte
}

// AuthService drives the login and room-access flows through their stages.
type AuthService struct {
	d   AuthDependencies
	cfg AuthConfig

	now      func() time.Time
	newToken func() (string, error)
}

func NewAuthService(d AuthDependencies, cfg AuthConfig) *AuthService {
	if d.Doors == nil {
		d.Doors = doorbus.Nop{}
	}
	if d.Challenges == nil {
		d.Challenges = challenge.DefaultCorpus
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if cfg.Login == (Thresholds{}) {
		cfg.Login = LoginThresholds
	}
	if cfg.RoomAccess == (Thresholds{}) {
		cfg.RoomAccess = RoomAccessThresholds
	}
	if floor := cfg.Timer.Limit(types.StageFacePending) + cfg.Timer.Limit(types.StageVoicePending); cfg.SessionTTL < floor {
		cfg.SessionTTL = floor + time.Minute
	}
	return &AuthService{
		d:        d,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: randomToken,
	}
}

// WithClock replaces the time source.  Used by tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ── Begin ───────────────────────────────────────────────────────────────────

// BeginLogin checks username and password and opens a login session at
// FACE_PENDING.  A wrong password on an existing, unfrozen account counts
// toward lockout; an unknown username does not.
func (s *AuthService) BeginLogin(ctx context.Context, req types.LoginRequest) (types.StageResponse, error) {
	now := s.now()
	resp := s.response(types.FlowLogin, now)

	acct, err := s.d.Accounts.GetAccountByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, store.ErrNotFound) {
		return resp, ErrInvalidCredentials
	}
	if err != nil {
		return resp, fmt.Errorf("load account: %w", err)
	}
	if acct.IsFrozen {
		s.setCounters(&resp, store.Counters{FailedAttempts: acct.FailedAttempts, IsFrozen: true})
		return resp, ErrAccountFrozen
	}

	ok, err := password.Verify(req.Password, acct.PasswordHash)
	if err != nil {
		return resp, fmt.Errorf("verify password for account %d: %w", acct.ID, err)
	}
	if !ok {
		c, err := s.countFailure(ctx, acct, now)
		if err != nil {
			return resp, err
		}
		s.setCounters(&resp, c)
		return resp, ErrInvalidCredentials
	}

	return s.open(ctx, acct, types.FlowLogin, nil, now)
}

// BeginRoomAccess checks that p may enter roomID and opens a room-access
// session at FACE_PENDING.  A permission denial is logged but not counted.
func (s *AuthService) BeginRoomAccess(ctx context.Context, p types.Principal, req types.RoomAccessRequest) (types.StageResponse, error) {
	now := s.now()
	resp := s.response(types.FlowRoomAccess, now)

	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		return resp, ErrInvalidRoomID
	}

	acct, err := s.d.Accounts.GetAccount(ctx, p.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		return resp, ErrInvalidCredentials
	}
	if err != nil {
		return resp, fmt.Errorf("load account: %w", err)
	}
	if acct.IsFrozen {
		s.setCounters(&resp, store.Counters{FailedAttempts: acct.FailedAttempts, IsFrozen: true})
		return resp, ErrAccountFrozen
	}

	room, err := s.d.Rooms.GetTenantRoom(ctx, acct.TenantID, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return resp, ErrRoomNotFound
	}
	if err != nil {
		return resp, fmt.Errorf("load room: %w", err)
	}
	resp.Room = &types.RoomInfo{RoomID: room.RoomID, Name: room.Name}

	granted, err := s.d.Grants.HasGroupGrant(ctx, acct.ID, room.GroupID)
	if err != nil {
		return resp, fmt.Errorf("check room grant: %w", err)
	}
	if !granted {
		s.recordLog(ctx, store.AccessLogRecord{
			AccountID:     acct.ID,
			Username:      acct.Username,
			RoomID:        room.RoomID,
			TenantID:      acct.TenantID,
			Timestamp:     now,
			FaceResult:    store.FaceNotAttempted,
			FailureReason: "Permission denied for room group",
		})
		return resp, ErrPermissionDenied
	}

	return s.open(ctx, acct, types.FlowRoomAccess, resp.Room, now)
}

func (s *AuthService) open(ctx context.Context, acct store.Account, flow types.Flow, room *types.RoomInfo, now time.Time) (types.StageResponse, error) {
	resp := s.response(flow, now)
	resp.Room = room

	var roomID string
	if room != nil {
		roomID = room.RoomID
	}

	token, err := s.newToken()
	if err != nil {
		return resp, err
	}

	limit := s.cfg.Timer.Limit(types.StageFacePending)
	sess := store.Session{
		Token:          token,
		Subject:        acct.ID,
		TenantID:       acct.TenantID,
		Flow:           flow,
		Stage:          types.StageFacePending,
		CreatedAt:      now,
		StageStartedAt: now,
		StageDeadline:  now.Add(limit),
		TargetRoom:     roomID,
	}
	if err := s.d.Sessions.Create(ctx, sess, s.cfg.SessionTTL); err != nil {
		return resp, fmt.Errorf("create session: %w", err)
	}

	s.d.Logger.Info("auth flow started", "flow", flow, "account_id", acct.ID, "room_id", roomID)

	resp.Outcome = types.OutcomeOK
	resp.Stage = types.StageFacePending
	resp.NextStep = types.NextFaceVerification
	resp.SessionToken = token
	resp.RemainingTime = intPtr(seconds(limit))
	return resp, nil
}

// ── Stages ──────────────────────────────────────────────────────────────────

// stageCall is the state every stage submission has loaded and validated
// before the biometric check runs.
type stageCall struct {
	sess store.Session
	acct store.Account
	room store.Room
	now  time.Time
}

// SubmitFace verifies a face sample for a session at FACE_PENDING.  A
// mismatch keeps the session and its deadline for a retry; a
// match moves it to VOICE_PENDING with a fresh challenge sentence.
func (s *AuthService) SubmitFace(ctx context.Context, sub Submission) (types.StageResponse, error) {
	call, resp, err := s.enter(ctx, sub, types.StageFacePending)
	if err != nil {
		return resp, err
	}

	match, err := s.d.Biometrics.VerifyFace(ctx, sub.Sample, call.acct.FaceTemplate)
	if err != nil {
		return resp, s.gatewayError(call, err)
	}

	if !match {
		c, err := s.countFailure(ctx, call.acct, call.now)
		if err != nil {
			return resp, err
		}
		s.setCounters(&resp, c)
		s.logRoomAttempt(ctx, call, store.AccessLogRecord{
			FaceResult:    store.FaceFailed,
			FailureReason: "Face verification failed",
		})
		if c.IsFrozen {
			s.discard(ctx, sub.SessionToken, types.StageFacePending)
			resp.NextStep = types.NextRestart
			resp.RemainingTime = nil
		}
		return resp, ErrFaceVerificationFailed
	}

	// FACE_VERIFIED is transient: the voice timer starts now.
	limit := s.cfg.Timer.Limit(types.StageVoicePending)
	next := call.sess
	next.Stage = types.StageVoicePending
	next.StageStartedAt = call.now
	next.StageDeadline = call.now.Add(limit)
	next.Challenge = s.d.Challenges.Sentence(ctx)

	err = s.d.Sessions.Replace(ctx, sub.SessionToken, types.StageFacePending, next, s.cfg.SessionTTL)
	if errors.Is(err, store.ErrStageConflict) || errors.Is(err, store.ErrNotFound) {
		resp.NextStep = types.NextRestart
		resp.RemainingTime = nil
		return resp, ErrInvalidSessionState
	}
	if err != nil {
		return resp, fmt.Errorf("advance session: %w", err)
	}

	resp.Outcome = types.OutcomeOK
	resp.Stage = types.StageVoicePending
	resp.NextStep = types.NextVoiceVerification
	resp.RemainingTime = intPtr(seconds(limit))
	resp.ChallengeSentence = next.Challenge
	return resp, nil
}

// SubmitVoice verifies a voice sample for a session at VOICE_PENDING
// against the flow's thresholds.  Acceptance removes the session in one
// compare-and-swap before any side effect runs, so concurrent submissions
// cannot both succeed.
func (s *AuthService) SubmitVoice(ctx context.Context, sub Submission) (types.StageResponse, error) {
	call, resp, err := s.enter(ctx, sub, types.StageVoicePending)
	if err != nil {
		return resp, err
	}

	res, err := s.d.Biometrics.VerifyVoice(ctx, sub.Sample, call.acct.VoiceTemplate, call.sess.Challenge)
	if err != nil {
		return resp, s.gatewayError(call, err)
	}

	scores := types.Scores{
		SpeakerSimilarity:       res.SpeakerSimilarity,
		TranscriptionSimilarity: res.TranscriptionSimilarity,
		AudioGenuine:            res.AudioGenuine,
	}
	resp.Scores = &scores

	if !s.thresholds(sub.Flow).Accept(res) {
		c, err := s.countFailure(ctx, call.acct, call.now)
		if err != nil {
			return resp, err
		}
		s.setCounters(&resp, c)
		s.logRoomAttempt(ctx, call, store.AccessLogRecord{
			FaceResult:              store.FaceGenuine,
			SpeakerSimilarity:       res.SpeakerSimilarity,
			AudioGenuine:            res.AudioGenuine,
			TranscriptionSimilarity: res.TranscriptionSimilarity,
			FailureReason:           voiceFailureReason(res, s.thresholds(sub.Flow)),
		})
		if c.IsFrozen {
			s.discard(ctx, sub.SessionToken, types.StageVoicePending)
			resp.NextStep = types.NextRestart
			resp.RemainingTime = nil
		}
		return resp, ErrVoiceVerificationFailed
	}

	won, err := s.d.Sessions.Delete(ctx, sub.SessionToken, types.StageVoicePending)
	if err != nil {
		return resp, fmt.Errorf("complete session: %w", err)
	}
	if !won {
		resp.NextStep = types.NextRestart
		resp.RemainingTime = nil
		return resp, ErrInvalidSessionState
	}

	if _, err := s.d.Accounts.UpdateCounters(ctx, call.acct.ID, resetOnSuccess); err != nil {
		return resp, fmt.Errorf("reset counters: %w", err)
	}

	resp.Outcome = types.OutcomeOK
	resp.NextStep = types.NextDone
	resp.RemainingTime = nil
	resp.Stage = sub.Flow.Terminal()

	if sub.Flow == types.FlowRoomAccess {
		return s.grantRoom(ctx, call, scores, resp)
	}
	return s.authenticate(call, resp)
}

func (s *AuthService) grantRoom(ctx context.Context, call stageCall, scores types.Scores, resp types.StageResponse) (types.StageResponse, error) {
	at := call.now
	room, err := s.d.Rooms.UpdateLock(ctx, call.room.ID, func(store.Room) *time.Time { return &at })
	if err != nil {
		return resp, fmt.Errorf("unlock room %s: %w", call.room.RoomID, err)
	}

	s.logRoomAttempt(ctx, call, store.AccessLogRecord{
		Granted:                 true,
		FaceResult:              store.FaceGenuine,
		SpeakerSimilarity:       scores.SpeakerSimilarity,
		AudioGenuine:            scores.AudioGenuine,
		TranscriptionSimilarity: scores.TranscriptionSimilarity,
	})

	notifyDoor(ctx, s.d.Doors, s.d.Logger, room, doorbus.ReasonAccessGranted, call.now)

	s.d.Logger.Info("room access granted", "account_id", call.acct.ID, "room_id", room.RoomID)

	resp.Room = &types.RoomInfo{RoomID: room.RoomID, Name: room.Name}
	return resp, nil
}

func (s *AuthService) authenticate(call stageCall, resp types.StageResponse) (types.StageResponse, error) {
	token, exp, err := s.d.Tokens.Issue(types.Principal{
		AccountID: call.acct.ID,
		TenantID:  call.acct.TenantID,
		Username:  call.acct.Username,
		IsAdmin:   call.acct.IsAdmin,
	})
	if err != nil {
		return resp, fmt.Errorf("issue access token: %w", err)
	}

	s.d.Logger.Info("login completed", "account_id", call.acct.ID)

	resp.AccessToken = token
	resp.TokenExpiresAt = exp.UTC().Format(time.RFC3339)
	return resp, nil
}

// enter loads and validates everything a stage call depends on: the
// session is in stage, belongs to the caller, the account is not frozen,
// the target room still exists and the deadline has not passed.  A timeout
// is resolved here, including its lockout side effect.
func (s *AuthService) enter(ctx context.Context, sub Submission, stage types.Stage) (stageCall, types.StageResponse, error) {
	now := s.now()
	resp := s.response(sub.Flow, now)
	resp.NextStep = types.NextRestart

	sess, err := s.d.Sessions.Get(ctx, sub.SessionToken)
	if errors.Is(err, store.ErrNotFound) {
		return stageCall{}, resp, ErrInvalidSessionState
	}
	if err != nil {
		return stageCall{}, resp, fmt.Errorf("load session: %w", err)
	}
	if sess.Flow != sub.Flow {
		return stageCall{}, resp, ErrInvalidSessionState
	}
	if sess.Flow == types.FlowRoomAccess && (sub.Principal == nil || sub.Principal.AccountID != sess.Subject) {
		return stageCall{}, resp, ErrInvalidSessionState
	}

	resp.Stage = sess.Stage
	if sess.Stage != stage {
		// Out of order: the session is left exactly as it was.
		resp.NextStep = nextStep(sess.Stage)
		if ok, left := s.cfg.Timer.Check(sess, sess.Stage, now); ok {
			resp.RemainingTime = intPtr(seconds(left))
		}
		return stageCall{}, resp, ErrInvalidSessionState
	}

	call := stageCall{sess: sess, now: now}

	call.acct, err = s.d.Accounts.GetAccount(ctx, sess.Subject)
	if errors.Is(err, store.ErrNotFound) {
		s.discard(ctx, sub.SessionToken, "")
		return stageCall{}, resp, ErrInvalidSessionState
	}
	if err != nil {
		return stageCall{}, resp, fmt.Errorf("load account: %w", err)
	}
	if call.acct.IsFrozen {
		s.discard(ctx, sub.SessionToken, "")
		s.setCounters(&resp, store.Counters{FailedAttempts: call.acct.FailedAttempts, IsFrozen: true})
		return stageCall{}, resp, ErrAccountFrozen
	}

	if sess.Flow == types.FlowRoomAccess {
		call.room, err = s.d.Rooms.GetTenantRoom(ctx, sess.TenantID, sess.TargetRoom)
		if errors.Is(err, store.ErrNotFound) {
			s.discard(ctx, sub.SessionToken, "")
			return stageCall{}, resp, ErrRoomNotFound
		}
		if err != nil {
			return stageCall{}, resp, fmt.Errorf("load room: %w", err)
		}
		resp.Room = &types.RoomInfo{RoomID: call.room.RoomID, Name: call.room.Name}
	}

	ok, left := s.cfg.Timer.Check(sess, stage, now)
	if !ok {
		return stageCall{}, resp, s.timeout(ctx, call, sub.SessionToken, &resp)
	}
	resp.NextStep = nextStep(stage)
	resp.RemainingTime = intPtr(seconds(left))

	if len(sub.Sample) == 0 {
		return stageCall{}, resp, ErrMissingBiometricSample
	}
	return call, resp, nil
}

// timeout ends a session whose stage deadline passed.  Only the caller
// that removes the session counts the failure.
func (s *AuthService) timeout(ctx context.Context, call stageCall, token string, resp *types.StageResponse) error {
	won, err := s.d.Sessions.Delete(ctx, token, call.sess.Stage)
	if err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	if !won {
		return ErrInvalidSessionState
	}

	c, err := s.countFailure(ctx, call.acct, call.now)
	if err != nil {
		return err
	}
	s.setCounters(resp, c)

	rec := store.AccessLogRecord{FaceResult: store.FaceTimeout, FailureReason: "Face verification timeout"}
	if call.sess.Stage == types.StageVoicePending {
		rec = store.AccessLogRecord{FaceResult: store.FaceGenuine, FailureReason: "Voice verification timeout"}
	}
	s.logRoomAttempt(ctx, call, rec)

	s.d.Logger.Info("stage timed out", "flow", call.sess.Flow, "stage", call.sess.Stage, "account_id", call.acct.ID)
	return ErrStageTimeout
}

func (s *AuthService) gatewayError(call stageCall, err error) error {
	switch {
	case errors.Is(err, biometric.ErrNoTemplate):
		return ErrMissingBiometricTemplate
	case errors.Is(err, biometric.ErrTemplateUnreadable):
		// Usually a wrong or rotated template key.
		s.d.Logger.Error("enrolled template unreadable", "stage", call.sess.Stage, "account_id", call.acct.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrMissingBiometricTemplate, err)
	case errors.Is(err, biometric.ErrUnavailable):
		s.d.Logger.Warn("biometric gateway unavailable", "stage", call.sess.Stage, "account_id", call.acct.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	return fmt.Errorf("biometric check for account %d: %w", call.acct.ID, err)
}

// ── Abort / Status ──────────────────────────────────────────────────────────

// Abort drops the session.  It never touches the account or the room, and
// aborting an unknown session is not an error.
func (s *AuthService) Abort(ctx context.Context, token string) error {
	if _, err := s.d.Sessions.Delete(ctx, token, ""); err != nil {
		return fmt.Errorf("abort session: %w", err)
	}
	return nil
}

// Status reports a session's stage and remaining time without changing it.
func (s *AuthService) Status(ctx context.Context, token string) (types.SessionStatus, error) {
	now := s.now()
	sess, err := s.d.Sessions.Get(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return types.SessionStatus{}, ErrInvalidSessionState
	}
	if err != nil {
		return types.SessionStatus{}, fmt.Errorf("load session: %w", err)
	}

	ok, left := s.cfg.Timer.Check(sess, sess.Stage, now)
	st := types.SessionStatus{
		Flow:          sess.Flow,
		Stage:         sess.Stage,
		Expired:       !ok,
		RemainingTime: seconds(left),
		NextStep:      nextStep(sess.Stage),
		ServerTime:    now.Format(time.RFC3339Nano),
	}
	if !ok {
		st.NextStep = types.NextRestart
	}
	return st, nil
}

// ── Helpers ─────────────────────────────────────────────────────────────────

func (s *AuthService) countFailure(ctx context.Context, acct store.Account, now time.Time) (store.Counters, error) {
	c, err := s.d.Accounts.UpdateCounters(ctx, acct.ID, s.cfg.Lockout.countFailure(now))
	if err != nil {
		return store.Counters{}, fmt.Errorf("count failure: %w", err)
	}
	if c.IsFrozen && !acct.IsFrozen {
		s.d.Logger.Warn("account frozen", "account_id", acct.ID, "failed_attempts", c.FailedAttempts)
	}
	return c, nil
}

func (s *AuthService) setCounters(resp *types.StageResponse, c store.Counters) {
	resp.AttemptsRemaining = intPtr(s.cfg.Lockout.Remaining(c.FailedAttempts))
	if c.IsFrozen {
		resp.AttemptsRemaining = intPtr(0)
	}
	frozen := c.IsFrozen
	resp.IsFrozen = &frozen
}

// logRoomAttempt fills the identity fields of rec and records it for
// room-access flows.  Login outcomes are not access-log entries.
func (s *AuthService) logRoomAttempt(ctx context.Context, call stageCall, rec store.AccessLogRecord) {
	if call.sess.Flow != types.FlowRoomAccess {
		return
	}
	rec.AccountID = call.acct.ID
	rec.Username = call.acct.Username
	rec.RoomID = call.sess.TargetRoom
	rec.TenantID = call.sess.TenantID
	rec.Timestamp = call.now
	s.recordLog(ctx, rec)
}

// recordLog persists an access decision.  A failed audit write is logged
// and does not change the outcome reported to the client.
func (s *AuthService) recordLog(ctx context.Context, rec store.AccessLogRecord) {
	if err := s.d.Logs.RecordLog(ctx, rec); err != nil {
		s.d.Logger.Error("access log write failed", "room_id", rec.RoomID, "account_id", rec.AccountID, "error", err)
	}
}

func (s *AuthService) discard(ctx context.Context, token string, expect types.Stage) {
	if _, err := s.d.Sessions.Delete(ctx, token, expect); err != nil {
		s.d.Logger.Warn("session discard failed", "error", err)
	}
}

func (s *AuthService) thresholds(flow types.Flow) Thresholds {
	if flow == types.FlowRoomAccess {
		return s.cfg.RoomAccess
	}
	return s.cfg.Login
}

func (s *AuthService) response(flow types.Flow, now time.Time) types.StageResponse {
	return types.StageResponse{Flow: flow, ServerTime: now.Format(time.RFC3339Nano)}
}

func voiceFailureReason(r biometric.VoiceResult, t Thresholds) string {
	var parts []string
	if r.SpeakerSimilarity < t.Speaker {
		parts = append(parts, "speaker mismatch")
	}
	if r.TranscriptionSimilarity < t.Transcription {
		parts = append(parts, "transcription mismatch")
	}
	if !r.AudioGenuine {
		parts = append(parts, "synthetic audio")
	}
	return "Voice verification failed: " + strings.Join(parts, ", ")
}

func nextStep(stage types.Stage) string {
	switch stage {
	case types.StageFacePending:
		return types.NextFaceVerification
	case types.StageVoicePending:
		return types.NextVoiceVerification
	case types.StageAuthenticated, types.StageAccessGranted:
		return types.NextDone
	}
	return types.NextRestart
}

func intPtr(v int) *int { return &v }
