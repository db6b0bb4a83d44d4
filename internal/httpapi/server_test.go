package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
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
	"github.com/mohamed2108268/Smart-Access/internal/httpapi"
	"github.com/mohamed2108268/Smart-Access/internal/logging"
)

const testPassword = "hunter2hunter2"

type stubVerifier struct {
	face  bool
	voice biometric.VoiceResult
}

func (v *stubVerifier) VerifyFace(context.Context, []byte, []byte) (bool, error) {
	return v.face, nil
}

func (v *stubVerifier) VerifyVoice(context.Context, []byte, []byte, string) (biometric.VoiceResult, error) {
	return v.voice, nil
}

type testEnv struct {
	ts       *httptest.Server
	tokens   *authtoken.Issuer
	verifier *stubVerifier
	rooms    *memory.RoomStore
	alice    types.Principal
	boss     types.Principal
}

// newTestServer wires up the full dependency graph using in-memory stores
// and returns an httptest.Server whose URL can be hit with a plain http.Client.
func newTestServer(t *testing.T, limit httpapi.RateLimit) *testEnv {
	t.Helper()
	ctx := context.Background()

	accounts := memory.NewAccountStore()
	rooms := memory.NewRoomStore()
	logs := memory.NewAccessLogStore()
	sessions := memory.NewSessionStore()

	hash, err := password.HashWith(testPassword, password.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	if err != nil {
		t.Fatalf("HashWith: %v", err)
	}
	env := &testEnv{
		rooms:    rooms,
		verifier: &stubVerifier{face: true, voice: biometric.VoiceResult{SpeakerSimilarity: 0.9, TranscriptionSimilarity: 0.95, AudioGenuine: true, Scored: true}},
	}
	for _, u := range []struct {
		name  string
		admin bool
		dst   *types.Principal
	}{{"alice", false, &env.alice}, {"boss", true, &env.boss}} {
		id, err := accounts.CreateAccount(ctx, store.Account{
			Username: u.name, PasswordHash: hash, TenantID: 1, IsAdmin: u.admin,
			FaceTemplate: []byte("f"), VoiceTemplate: []byte("v"),
		})
		if err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
		*u.dst = types.Principal{AccountID: id, TenantID: 1, Username: u.name, IsAdmin: u.admin}
	}
	if _, err := rooms.CreateRoom(ctx, store.Room{RoomID: "room-001", Name: "Main", TenantID: 1, GroupID: 1}); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := rooms.GrantGroup(ctx, env.alice.AccountID, 1); err != nil {
		t.Fatalf("GrantGroup: %v", err)
	}

	env.tokens, err = authtoken.NewIssuer(strings.Repeat("s", 32), time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	logger := logging.Discard()
	auth := service.NewAuthService(service.AuthDependencies{
		Accounts:   accounts,
		Rooms:      rooms,
		Grants:     rooms,
		Logs:       logs,
		Sessions:   sessions,
		Biometrics: env.verifier,
		Challenges: challenge.Corpus{"say cheese"},
		Tokens:     env.tokens,
		Logger:     logger,
	}, service.AuthConfig{})

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:   logger,
		Addr:     ":0",
		Auth:     auth,
		Rooms:    service.NewRoomService(rooms, logs, nil, 0, logger),
		Admin:    service.NewAdminService(accounts, rooms, logs, nil, logger),
		Tokens:   env.tokens,
		AuthRate: limit,
	})

	env.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(env.ts.Close)
	return env
}

func (e *testEnv) bearer(t *testing.T, p types.Principal) string {
	t.Helper()
	tok, _, err := e.tokens.Issue(p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

type call struct {
	method  string
	path    string
	body    io.Reader
	ctype   string
	session string
	bearer  string
	accept  string
}

func (e *testEnv) do(t *testing.T, c call) *http.Response {
	t.Helper()
	req, err := http.NewRequest(c.method, e.ts.URL+c.path, c.body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if c.ctype != "" {
		req.Header.Set("Content-Type", c.ctype)
	}
	if c.session != "" {
		req.Header.Set(httpapi.SessionHeader, c.session)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.accept != "" {
		req.Header.Set("Accept", c.accept)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", c.method, c.path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func jsonCall(method, path, body string) call {
	return call{method: method, path: path, body: strings.NewReader(body), ctype: "application/json"}
}

func upload(t *testing.T, field string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "sample.bin")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// ── Login flow ───────────────────────────────────────────────────────────────

func TestLogin_FullFlowOverHTTP(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	resp := e.do(t, jsonCall("POST", "/v1/auth/login", `{"username":"alice","password":"`+testPassword+`"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	begin := decode[types.StageResponse](t, resp)
	if begin.SessionToken == "" || begin.NextStep != types.NextFaceVerification {
		t.Fatalf("unexpected begin response %+v", begin)
	}

	body, ctype := upload(t, "face_image", []byte("jpeg"))
	resp = e.do(t, call{method: "POST", path: "/v1/auth/login/face", body: body, ctype: ctype, session: begin.SessionToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("face: expected 200, got %d", resp.StatusCode)
	}
	face := decode[types.StageResponse](t, resp)
	if face.ChallengeSentence != "say cheese" {
		t.Errorf("expected challenge sentence, got %q", face.ChallengeSentence)
	}

	body, ctype = upload(t, "voice_recording", []byte("wav"))
	resp = e.do(t, call{method: "POST", path: "/v1/auth/login/voice", body: body, ctype: ctype, session: begin.SessionToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("voice: expected 200, got %d", resp.StatusCode)
	}
	done := decode[types.StageResponse](t, resp)
	if done.AccessToken == "" || done.Stage != types.StageAuthenticated {
		t.Fatalf("expected access token, got %+v", done)
	}

	// The issued token opens bearer routes.
	resp = e.do(t, call{method: "POST", path: "/v1/rooms/access", body: strings.NewReader(`{"room_id":"room-001"}`), bearer: done.AccessToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("room access: expected 200, got %d", resp.StatusCode)
	}
}

func TestLogin_WrongPassword_401WithAttempts(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	resp := e.do(t, jsonCall("POST", "/v1/auth/login", `{"username":"alice","password":"nope"}`))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	body := decode[types.StageResponse](t, resp)
	if body.Error != "invalid_credentials" {
		t.Errorf("expected error=invalid_credentials, got %q", body.Error)
	}
	if body.AttemptsRemaining == nil || *body.AttemptsRemaining != 2 {
		t.Errorf("expected attempts_remaining=2, got %v", body.AttemptsRemaining)
	}
	if body.IsFrozen == nil || *body.IsFrozen {
		t.Errorf("expected is_frozen=false, got %v", body.IsFrozen)
	}
}

func TestLogin_InvalidJSON_400(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	resp := e.do(t, jsonCall("POST", "/v1/auth/login", `not json at all`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestFace_MissingUpload_400(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})
	begin := decode[types.StageResponse](t, e.do(t, jsonCall("POST", "/v1/auth/login", `{"username":"alice","password":"`+testPassword+`"}`)))

	body, ctype := upload(t, "something_else", []byte("x"))
	resp := e.do(t, call{method: "POST", path: "/v1/auth/login/face", body: body, ctype: ctype, session: begin.SessionToken})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	got := decode[types.StageResponse](t, resp)
	if got.Error != "missing_biometric_sample" {
		t.Errorf("expected missing_biometric_sample, got %q", got.Error)
	}
	if got.RemainingTime == nil {
		t.Error("expected remaining_time on a missing sample")
	}
}

func TestVoice_OutOfOrder_400(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})
	begin := decode[types.StageResponse](t, e.do(t, jsonCall("POST", "/v1/auth/login", `{"username":"alice","password":"`+testPassword+`"}`)))

	resp := e.do(t, call{method: "POST", path: "/v1/auth/login/voice", body: strings.NewReader("wav"), ctype: "audio/wav", session: begin.SessionToken})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if got := decode[types.StageResponse](t, resp); got.Error != "invalid_session_state" {
		t.Errorf("expected invalid_session_state, got %q", got.Error)
	}
}

func TestSession_StatusAndAbort(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})
	begin := decode[types.StageResponse](t, e.do(t, jsonCall("POST", "/v1/auth/login", `{"username":"alice","password":"`+testPassword+`"}`)))

	resp := e.do(t, call{method: "GET", path: "/v1/sessions/current", session: begin.SessionToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", resp.StatusCode)
	}
	if st := decode[types.SessionStatus](t, resp); st.Stage != types.StageFacePending {
		t.Errorf("expected FACE_PENDING, got %q", st.Stage)
	}

	resp = e.do(t, call{method: "DELETE", path: "/v1/sessions/current", session: begin.SessionToken})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("abort: expected 204, got %d", resp.StatusCode)
	}

	resp = e.do(t, call{method: "GET", path: "/v1/sessions/current", session: begin.SessionToken})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status after abort: expected 400, got %d", resp.StatusCode)
	}
}

// ── Auth and limits ──────────────────────────────────────────────────────────

func TestRoomAccess_RequiresBearer(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	resp := e.do(t, jsonCall("POST", "/v1/rooms/access", `{"room_id":"room-001"}`))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	c := jsonCall("POST", "/v1/rooms/access", `{"room_id":"room-001"}`)
	c.bearer = "not.a.jwt"
	if resp := e.do(t, c); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", resp.StatusCode)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{PerMinute: 1, Burst: 2})

	for i := range 2 {
		resp := e.do(t, jsonCall("POST", "/v1/auth/login", `{"username":"ghost","password":"x"}`))
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("request %d: expected 401, got %d", i, resp.StatusCode)
		}
	}
	resp := e.do(t, jsonCall("POST", "/v1/auth/login", `{"username":"ghost","password":"x"}`))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
}

// ── Rooms ────────────────────────────────────────────────────────────────────

func TestRoomStatus_JSON(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	resp := e.do(t, call{method: "GET", path: "/v1/rooms/room-001/status"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	raw := decode[map[string]any](t, resp)
	if raw["is_unlocked"] != false {
		t.Errorf("expected is_unlocked=false, got %v", raw["is_unlocked"])
	}
	if v, ok := raw["unlock_timestamp"]; !ok || v != nil {
		t.Errorf("expected unlock_timestamp=null, got %v (present=%v)", v, ok)
	}
}

func TestRoomStatus_UnknownRoom_404(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	resp := e.do(t, call{method: "GET", path: "/v1/rooms/nope/status"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestManualLock_ThenProtobufPoll(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	c := jsonCall("POST", "/v1/rooms/room-001/lock", `{"action":"unlock"}`)
	c.bearer = e.bearer(t, e.boss)
	resp := e.do(t, c)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lock: expected 200, got %d", resp.StatusCode)
	}
	if lr := decode[types.LockResponse](t, resp); !lr.IsUnlocked {
		t.Fatal("expected room unlocked")
	}

	resp = e.do(t, call{method: "GET", path: "/v1/rooms/room-001/status", accept: "application/x-protobuf"})
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Fatalf("expected protobuf content type, got %q", ct)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	st, err := httpapi.DecodeRoomStatus(data)
	if err != nil {
		t.Fatalf("DecodeRoomStatus: %v", err)
	}
	if st.RoomID != "room-001" || !st.IsUnlocked || st.UnlockTimestamp == nil {
		t.Errorf("unexpected decoded status %+v", st)
	}
}

func TestManualLock_EmptyBodyToggles(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	resp := e.do(t, call{method: "POST", path: "/v1/rooms/room-001/lock", bearer: e.bearer(t, e.boss)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if lr := decode[types.LockResponse](t, resp); !lr.IsUnlocked {
		t.Error("expected toggle from locked to unlock")
	}
}

func TestManualLock_NonAdmin_403(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	c := jsonCall("POST", "/v1/rooms/room-001/lock", `{"action":"unlock"}`)
	c.bearer = e.bearer(t, e.alice)
	resp := e.do(t, c)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if body := decode[map[string]string](t, resp); body["error"] != "permission_denied" {
		t.Errorf("expected permission_denied, got %q", body["error"])
	}
}

// ── Admin ────────────────────────────────────────────────────────────────────

func TestAdmin_AccessLogsAfterManualLock(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})
	admin := e.bearer(t, e.boss)

	c := jsonCall("POST", "/v1/rooms/room-001/lock", `{"action":"unlock"}`)
	c.bearer = admin
	e.do(t, c)

	resp := e.do(t, call{method: "GET", path: "/v1/admin/access-logs?room_id=room-001&granted=true", bearer: admin})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[struct {
		Logs []types.AccessLogEntry `json:"logs"`
	}](t, resp)
	if len(body.Logs) != 1 || body.Logs[0].FaceSpoofingResult != "manual_operation" {
		t.Errorf("expected one manual_operation entry, got %+v", body.Logs)
	}

	resp = e.do(t, call{method: "GET", path: "/v1/admin/access-logs?granted=maybe", bearer: admin})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad filter, got %d", resp.StatusCode)
	}
}

func TestAdmin_UnfreezeUnknown_404(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	c := jsonCall("POST", "/v1/admin/unfreeze", `{"username":"ghost"}`)
	c.bearer = e.bearer(t, e.boss)
	resp := e.do(t, c)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAdmin_RoomGrant(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	c := jsonCall("POST", "/v1/admin/room-grants", `{"username":"alice","room_group_id":1,"action":"revoke"}`)
	c.bearer = e.bearer(t, e.boss)
	resp := e.do(t, c)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ok, _ := e.rooms.HasGroupGrant(context.Background(), e.alice.AccountID, 1); ok {
		t.Error("expected alice's grant revoked")
	}
}

func TestRooms_ListsCallerGrants(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	resp := e.do(t, call{method: "GET", path: "/v1/rooms", bearer: e.bearer(t, e.alice)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[struct {
		Rooms []types.GrantedRoom `json:"rooms"`
	}](t, resp)
	if len(body.Rooms) != 1 || body.Rooms[0].RoomID != "room-001" || body.Rooms[0].GroupID != 1 {
		t.Errorf("expected room-001 in group 1, got %+v", body.Rooms)
	}

	if resp := e.do(t, call{method: "GET", path: "/v1/rooms"}); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without bearer, got %d", resp.StatusCode)
	}
}

func TestAdmin_AccountGrants(t *testing.T) {
	e := newTestServer(t, httpapi.RateLimit{})

	resp := e.do(t, call{method: "GET", path: "/v1/admin/room-grants/alice", bearer: e.bearer(t, e.boss)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	perms := decode[types.AccountPermissions](t, resp)
	if perms.Username != "alice" || len(perms.GroupIDs) != 1 || perms.GroupIDs[0] != 1 {
		t.Errorf("unexpected permissions: %+v", perms)
	}

	if resp := e.do(t, call{method: "GET", path: "/v1/admin/room-grants/alice", bearer: e.bearer(t, e.alice)}); resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", resp.StatusCode)
	}
	if resp := e.do(t, call{method: "GET", path: "/v1/admin/room-grants/ghost", bearer: e.bearer(t, e.boss)}); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", resp.StatusCode)
	}
}
