package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/authtoken"
	"github.com/mohamed2108268/Smart-Access/internal/access/biometric"
	"github.com/mohamed2108268/Smart-Access/internal/access/challenge"
	"github.com/mohamed2108268/Smart-Access/internal/access/password"
	"github.com/mohamed2108268/Smart-Access/internal/access/service"
	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	"github.com/mohamed2108268/Smart-Access/internal/access/store/memory"
	"github.com/mohamed2108268/Smart-Access/internal/access/types"
	"github.com/mohamed2108268/Smart-Access/internal/doorbus"
	"github.com/mohamed2108268/Smart-Access/internal/logging"
)

const (
	testPassword  = "correct horse"
	testChallenge = "the quick brown fox jumps over the lazy dog"
	testSecret    = "0123456789abcdef0123456789abcdef"
)

var fastParams = password.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// ── Clock ────────────────────────────────────────────────────────────────────

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ── Fakes ────────────────────────────────────────────────────────────────────

type fakeVerifier struct {
	mu         sync.Mutex
	face       bool
	faceErr    error
	voice      biometric.VoiceResult
	voiceErr   error
	faceCalls  int
	voiceCalls int
	challenge  string
}

func (f *fakeVerifier) VerifyFace(_ context.Context, sample, tpl []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faceCalls++
	if len(tpl) == 0 {
		return false, biometric.ErrNoTemplate
	}
	return f.face, f.faceErr
}

func (f *fakeVerifier) VerifyVoice(_ context.Context, sample, tpl []byte, challenge string) (biometric.VoiceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voiceCalls++
	f.challenge = challenge
	if len(tpl) == 0 {
		return biometric.VoiceResult{}, biometric.ErrNoTemplate
	}
	return f.voice, f.voiceErr
}

func (f *fakeVerifier) set(face bool, voice biometric.VoiceResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.face = face
	f.voice = voice
}

type recordingDoors struct {
	mu     sync.Mutex
	states []doorbus.RoomState
}

func (d *recordingDoors) PublishRoomState(_ context.Context, s doorbus.RoomState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states = append(d.states, s)
	return nil
}

func (d *recordingDoors) published() []doorbus.RoomState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]doorbus.RoomState(nil), d.states...)
}

type xorSealer struct{}

func (xorSealer) Seal(plain []byte) ([]byte, error) {
	out := make([]byte, len(plain))
	for i, b := range plain {
		out[i] = b ^ 0x5a
	}
	return out, nil
}

// ── Harness ──────────────────────────────────────────────────────────────────

var (
	goodVoice  = biometric.VoiceResult{SpeakerSimilarity: 0.8, TranscriptionSimilarity: 0.9, AudioGenuine: true, Scored: true}
	weakVoice  = biometric.VoiceResult{SpeakerSimilarity: 0.65, TranscriptionSimilarity: 0.9, AudioGenuine: true, Scored: true}
	faceSample = []byte("jpeg bytes")
	voiceBytes = []byte("wav bytes")
)

type harness struct {
	ctx      context.Context
	clock    *clock
	accounts *memory.AccountStore
	rooms    *memory.RoomStore
	logs     *memory.AccessLogStore
	sessions *memory.SessionStore
	verifier *fakeVerifier
	doors    *recordingDoors
	tokens   *authtoken.Issuer

	auth  *service.AuthService
	room  *service.RoomService
	admin *service.AdminService

	alice store.Account
	boss  store.Account
	lab   store.Room
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		ctx:      context.Background(),
		clock:    newClock(),
		accounts: memory.NewAccountStore(),
		rooms:    memory.NewRoomStore(),
		logs:     memory.NewAccessLogStore(),
		verifier: &fakeVerifier{face: true, voice: goodVoice},
		doors:    &recordingDoors{},
	}
	h.sessions = memory.NewSessionStore().WithClock(h.clock.Now)

	tokens, err := authtoken.NewIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	h.tokens = tokens.WithClock(h.clock.Now)

	h.alice = h.addAccount(t, "alice", 1, false)
	h.boss = h.addAccount(t, "boss", 1, true)

	if _, err := h.rooms.CreateRoom(h.ctx, store.Room{RoomID: "lab-1", Name: "Lab", TenantID: 1, GroupID: 10}); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if h.lab, err = h.rooms.GetRoom(h.ctx, "lab-1"); err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if err := h.rooms.GrantGroup(h.ctx, h.alice.ID, 10); err != nil {
		t.Fatalf("GrantGroup: %v", err)
	}

	logger := logging.Discard()
	h.auth = service.NewAuthService(service.AuthDependencies{
		Accounts:   h.accounts,
		Rooms:      h.rooms,
		Grants:     h.rooms,
		Logs:       h.logs,
		Sessions:   h.sessions,
		Biometrics: h.verifier,
		Challenges: challenge.Corpus{testChallenge},
		Tokens:     h.tokens,
		Doors:      h.doors,
		Logger:     logger,
	}, service.AuthConfig{}).WithClock(h.clock.Now)
	h.room = service.NewRoomService(h.rooms, h.logs, h.doors, 0, logger).WithClock(h.clock.Now)
	h.admin = service.NewAdminService(h.accounts, h.rooms, h.logs, xorSealer{}, logger)
	return h
}

func (h *harness) addAccount(t *testing.T, username string, tenant int64, admin bool) store.Account {
	t.Helper()
	hash, err := password.HashWith(testPassword, fastParams)
	if err != nil {
		t.Fatalf("HashWith: %v", err)
	}
	id, err := h.accounts.CreateAccount(h.ctx, store.Account{
		Username:      username,
		PasswordHash:  hash,
		FullName:      username,
		TenantID:      tenant,
		IsAdmin:       admin,
		FaceTemplate:  []byte("face-template"),
		VoiceTemplate: []byte("voice-template"),
	})
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", username, err)
	}
	acct, err := h.accounts.GetAccount(h.ctx, id)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	return acct
}

func (h *harness) account(t *testing.T, id int64) store.Account {
	t.Helper()
	acct, err := h.accounts.GetAccount(h.ctx, id)
	if err != nil {
		t.Fatalf("GetAccount(%d): %v", id, err)
	}
	return acct
}

func (h *harness) setFailures(t *testing.T, id int64, n int) {
	t.Helper()
	if _, err := h.accounts.UpdateCounters(h.ctx, id, func(store.Counters) store.Counters {
		return store.Counters{FailedAttempts: n}
	}); err != nil {
		t.Fatalf("UpdateCounters: %v", err)
	}
}

func principal(a store.Account) types.Principal {
	return types.Principal{AccountID: a.ID, TenantID: a.TenantID, Username: a.Username, IsAdmin: a.IsAdmin}
}

// beginLogin starts a login for alice and returns the session token.
func (h *harness) beginLogin(t *testing.T) string {
	t.Helper()
	resp, err := h.auth.BeginLogin(h.ctx, types.LoginRequest{Username: "alice", Password: testPassword})
	if err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}
	return resp.SessionToken
}

// beginRoom starts a room-access flow for alice on lab-1.
func (h *harness) beginRoom(t *testing.T) string {
	t.Helper()
	resp, err := h.auth.BeginRoomAccess(h.ctx, principal(h.alice), types.RoomAccessRequest{RoomID: "lab-1"})
	if err != nil {
		t.Fatalf("BeginRoomAccess: %v", err)
	}
	return resp.SessionToken
}

func (h *harness) loginSub(token string, sample []byte) service.Submission {
	return service.Submission{Flow: types.FlowLogin, SessionToken: token, Sample: sample}
}

func (h *harness) roomSub(token string, sample []byte) service.Submission {
	p := principal(h.alice)
	return service.Submission{Flow: types.FlowRoomAccess, SessionToken: token, Principal: &p, Sample: sample}
}

func deref[T any](p *T) (v T) {
	if p != nil {
		v = *p
	}
	return v
}
