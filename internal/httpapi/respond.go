package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mohamed2108268/Smart-Access/internal/access/service"
	"github.com/mohamed2108268/Smart-Access/internal/access/types"
)

const outcomeError = "error"

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// failures maps service failure reasons to HTTP statuses and stable codes.
var failures = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{service.ErrAccountFrozen, http.StatusForbidden, "account_frozen"},
	{service.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
	{service.ErrRoomNotFound, http.StatusNotFound, "room_not_found"},
	{service.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{service.ErrInvalidSessionState, http.StatusBadRequest, "invalid_session_state"},
	{service.ErrStageTimeout, http.StatusRequestTimeout, "stage_timeout"},
	{service.ErrFaceVerificationFailed, http.StatusUnauthorized, "face_verification_failed"},
	{service.ErrVoiceVerificationFailed, http.StatusUnauthorized, "voice_verification_failed"},
	{service.ErrGatewayUnavailable, http.StatusServiceUnavailable, "gateway_unavailable"},
	{service.ErrMissingBiometricTemplate, http.StatusBadRequest, "missing_biometric_template"},
	{service.ErrMissingBiometricSample, http.StatusBadRequest, "missing_biometric_sample"},
	{service.ErrInvalidAction, http.StatusBadRequest, "invalid_action"},
	{service.ErrInvalidRoomID, http.StatusBadRequest, "invalid_room_id"},
}

// classify returns the status, code and client message for err.  Anything
// outside the table is an internal fault.
func classify(err error) (status int, code, msg string, known bool) {
	for _, f := range failures {
		if errors.Is(err, f.err) {
			return f.status, f.code, f.err.Error(), true
		}
	}
	return http.StatusInternalServerError, "internal_error", "unexpected server error", false
}

// writeStage writes a stage response.  Failures keep every field the
// service filled in (attempts remaining, freeze state, remaining time) and
// add the reason code.
func (s *Server) writeStage(w http.ResponseWriter, resp types.StageResponse, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	status, code, msg, known := classify(err)
	if !known {
		s.logger.Error("stage call failed", "flow", resp.Flow, "error", err)
		writeError(w, status, code, msg)
		return
	}
	resp.Outcome = outcomeError
	resp.Error = code
	resp.Message = msg
	writeJSON(w, status, resp)
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status, code, msg, known := classify(err)
	if !known {
		s.logger.Error("request failed", "error", err)
	}
	writeError(w, status, code, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}
