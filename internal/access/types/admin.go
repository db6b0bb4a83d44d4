package types

type UnfreezeRequest struct {
	Username string `json:"username"`
}

type FrozenAccount struct {
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	FailedAttempts int    `json:"failed_attempts"`
	FrozenAt       string `json:"frozen_at"`
}

type RoomGrantRequest struct {
	Username string `json:"username"`
	GroupID  int64  `json:"room_group_id"`
	Action   string `json:"action"` // "grant" | "revoke"
}

type AccessLogEntry struct {
	ID                     string  `json:"id"`
	Username               string  `json:"username,omitempty"`
	RoomID                 string  `json:"room_id"`
	Timestamp              string  `json:"timestamp"`
	AccessGranted          bool    `json:"access_granted"`
	FaceSpoofingResult     string  `json:"face_spoofing_result"`
	SpeakerSimilarityScore float64 `json:"speaker_similarity_score"`
	AudioDeepfakeResult    int     `json:"audio_deepfake_result"` // 1 genuine, 0 synthetic
	TranscriptionScore     float64 `json:"transcription_score"`
	FailureReason          string  `json:"failure_reason,omitempty"`
}

// GrantedRoom is one room an account may request access to.
type GrantedRoom struct {
	RoomID     string `json:"room_id"`
	Name       string `json:"name"`
	GroupID    int64  `json:"room_group_id"`
	IsUnlocked bool   `json:"is_unlocked"`
}

// AccountPermissions is an administrator's view of one account's grants.
type AccountPermissions struct {
	Username string        `json:"username"`
	FullName string        `json:"full_name"`
	IsAdmin  bool          `json:"is_admin"`
	IsFrozen bool          `json:"is_frozen"`
	GroupIDs []int64       `json:"room_group_ids"`
	Rooms    []GrantedRoom `json:"rooms"`
}
