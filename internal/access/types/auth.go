package types

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RoomAccessRequest struct {
	RoomID string `json:"room_id"`
}

// StageResponse is returned by every stage call of both flows, on success
// and on failure.  AttemptsRemaining and IsFrozen are always set when the
// failure was counted against the account.
type StageResponse struct {
	Outcome           string    `json:"outcome"`
	Error             string    `json:"error,omitempty"`
	Message           string    `json:"message,omitempty"`
	Flow              Flow      `json:"flow,omitempty"`
	Stage             Stage     `json:"stage,omitempty"`
	NextStep          string    `json:"next_step,omitempty"`
	SessionToken      string    `json:"session_token,omitempty"`
	RemainingTime     *int      `json:"remaining_time,omitempty"`
	ChallengeSentence string    `json:"challenge_sentence,omitempty"`
	AttemptsRemaining *int      `json:"attempts_remaining,omitempty"`
	IsFrozen          *bool     `json:"is_frozen,omitempty"`
	AccessToken       string    `json:"access_token,omitempty"`
	TokenExpiresAt    string    `json:"token_expires_at,omitempty"`
	Room              *RoomInfo `json:"room,omitempty"`
	Scores            *Scores   `json:"scores,omitempty"`
	ServerTime        string    `json:"server_time"`
}

// Scores echoes the per-modality results of a voice submission.
type Scores struct {
	SpeakerSimilarity       float64 `json:"speaker_similarity"`
	TranscriptionSimilarity float64 `json:"transcription_similarity"`
	AudioGenuine            bool    `json:"audio_genuine"`
}

type RoomInfo struct {
	RoomID string `json:"room_id"`
	Name   string `json:"name,omitempty"`
}

// SessionStatus answers an explicit liveness check on a pending stage.
type SessionStatus struct {
	Flow          Flow   `json:"flow"`
	Stage         Stage  `json:"stage"`
	Expired       bool   `json:"expired"`
	RemainingTime int    `json:"remaining_time"`
	NextStep      string `json:"next_step"`
	ServerTime    string `json:"server_time"`
}

const (
	OutcomeOK = "ok"
)
