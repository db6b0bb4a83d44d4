package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/service"
	"github.com/mohamed2108268/Smart-Access/internal/access/types"
)

// SessionHeader carries the opaque token of an in-progress flow.
const SessionHeader = "X-Session-Token"

// TokenParser validates bearer access tokens.  *authtoken.Issuer
// implements it.
type TokenParser interface {
	Parse(token string) (types.Principal, error)
}

type Dependencies struct {
	Logger *slog.Logger
	Addr   string

	Auth   *service.AuthService
	Rooms  *service.RoomService
	Admin  *service.AdminService
	Tokens TokenParser

	// AuthRate limits the unauthenticated login endpoints per client.
	AuthRate RateLimit
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux

	auth   *service.AuthService
	rooms  *service.RoomService
	admin  *service.AdminService
	tokens TokenParser
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	s := &Server{
		logger: d.Logger,
		mux:    mux,
		auth:   d.Auth,
		rooms:  d.Rooms,
		admin:  d.Admin,
		tokens: d.Tokens,
	}

	limited := newClientLimiter(d.AuthRate)

	// Login flow.
	mux.Handle("POST /v1/auth/login", limited.wrap(http.HandlerFunc(s.handleBeginLogin)))
	mux.Handle("POST /v1/auth/login/face", limited.wrap(http.HandlerFunc(s.handleLoginFace)))
	mux.Handle("POST /v1/auth/login/voice", limited.wrap(http.HandlerFunc(s.handleLoginVoice)))

	// Room-access flow.
	mux.HandleFunc("POST /v1/rooms/access", s.bearer(s.handleBeginRoomAccess))
	mux.HandleFunc("POST /v1/rooms/access/face", s.bearer(s.handleRoomFace))
	mux.HandleFunc("POST /v1/rooms/access/voice", s.bearer(s.handleRoomVoice))

	mux.HandleFunc("GET /v1/sessions/current", s.handleSessionStatus)
	mux.HandleFunc("DELETE /v1/sessions/current", s.handleAbort)

	// Door controllers and administrators.
	mux.HandleFunc("GET /v1/rooms", s.bearer(s.handleListRooms))
	mux.HandleFunc("GET /v1/rooms/{room_id}/status", s.handleRoomStatus)
	mux.HandleFunc("POST /v1/rooms/{room_id}/lock", s.bearer(s.handleSetLock))

	mux.HandleFunc("GET /v1/admin/access-logs", s.bearer(s.handleListLogs))
	mux.HandleFunc("GET /v1/admin/frozen-accounts", s.bearer(s.handleListFrozen))
	mux.HandleFunc("POST /v1/admin/unfreeze", s.bearer(s.handleUnfreeze))
	mux.HandleFunc("POST /v1/admin/room-grants", s.bearer(s.handleRoomGrant))
	mux.HandleFunc("GET /v1/admin/room-grants/{username}", s.bearer(s.handleAccountGrants))

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ── Login flow ───────────────────────────────────────────────────────────────

func (s *Server) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	resp, err := s.auth.BeginLogin(r.Context(), req)
	s.writeStage(w, resp, err)
}

func (s *Server) handleLoginFace(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, types.FlowLogin, nil, faceField, s.auth.SubmitFace)
}

func (s *Server) handleLoginVoice(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, types.FlowLogin, nil, voiceField, s.auth.SubmitVoice)
}

// ── Room-access flow ─────────────────────────────────────────────────────────

func (s *Server) handleBeginRoomAccess(w http.ResponseWriter, r *http.Request, p types.Principal) {
	var req types.RoomAccessRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	resp, err := s.auth.BeginRoomAccess(r.Context(), p, req)
	s.writeStage(w, resp, err)
}

func (s *Server) handleRoomFace(w http.ResponseWriter, r *http.Request, p types.Principal) {
	s.submit(w, r, types.FlowRoomAccess, &p, faceField, s.auth.SubmitFace)
}

func (s *Server) handleRoomVoice(w http.ResponseWriter, r *http.Request, p types.Principal) {
	s.submit(w, r, types.FlowRoomAccess, &p, voiceField, s.auth.SubmitVoice)
}

type stageFunc func(context.Context, service.Submission) (types.StageResponse, error)

func (s *Server) submit(w http.ResponseWriter, r *http.Request, flow types.Flow, p *types.Principal, field string, fn stageFunc) {
	sample, err := readSample(w, r, field)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "biometric sample too large")
			return
		}
		writeError(w, http.StatusBadRequest, "bad_upload", "unreadable biometric upload")
		return
	}

	resp, err := fn(r.Context(), service.Submission{
		Flow:         flow,
		SessionToken: r.Header.Get(SessionHeader),
		Principal:    p,
		Sample:       sample,
	})
	s.writeStage(w, resp, err)
}

// ── Sessions ─────────────────────────────────────────────────────────────────

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.auth.Status(r.Context(), r.Header.Get(SessionHeader))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Abort(r.Context(), r.Header.Get(SessionHeader)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Rooms ────────────────────────────────────────────────────────────────────

func (s *Server) handleRoomStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.rooms.Status(r.Context(), r.PathValue("room_id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if wantsProtobuf(r) {
		writeProto(w, http.StatusOK, encodeRoomStatus(st))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request, p types.Principal) {
	rooms, err := s.admin.AccountRooms(r.Context(), p)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *Server) handleSetLock(w http.ResponseWriter, r *http.Request, p types.Principal) {
	var req types.LockRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	resp, err := s.rooms.SetLock(r.Context(), p, r.PathValue("room_id"), req.Action)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Admin ────────────────────────────────────────────────────────────────────

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request, p types.Principal) {
	q, err := parseLogQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query", err.Error())
		return
	}
	logs, err := s.admin.ListLogs(r.Context(), p, q)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) handleListFrozen(w http.ResponseWriter, r *http.Request, p types.Principal) {
	accts, err := s.admin.ListFrozen(r.Context(), p)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accts})
}

func (s *Server) handleUnfreeze(w http.ResponseWriter, r *http.Request, p types.Principal) {
	var req types.UnfreezeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := s.admin.Unfreeze(r.Context(), p, req.Username); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account unfrozen"})
}

func (s *Server) handleRoomGrant(w http.ResponseWriter, r *http.Request, p types.Principal) {
	var req types.RoomGrantRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := s.admin.SetRoomGrant(r.Context(), p, req); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Room grant updated"})
}

func (s *Server) handleAccountGrants(w http.ResponseWriter, r *http.Request, p types.Principal) {
	perms, err := s.admin.AccountPermissions(r.Context(), p, r.PathValue("username"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

// ── Request helpers ──────────────────────────────────────────────────────────

// decodeJSON decodes the body into v, writing a 400 on failure.  An empty
// body is accepted when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func parseLogQuery(r *http.Request) (service.LogQuery, error) {
	v := r.URL.Query()
	q := service.LogQuery{
		Username: v.Get("username"),
		RoomID:   v.Get("room_id"),
	}
	if s := v.Get("granted"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, errors.New("granted must be true or false")
		}
		q.Granted = &b
	}
	for _, f := range []struct {
		key string
		dst **time.Time
	}{{"start", &q.Start}, {"end", &q.End}} {
		s := v.Get(f.key)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, errors.New(f.key + " must be an RFC 3339 timestamp")
		}
		*f.dst = &t
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, errors.New("limit must be a non-negative integer")
		}
		q.Limit = n
	}
	return q, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
