package types

// Flow names one of the two stage sequences a session can walk.
type Flow string

const (
	FlowLogin      Flow = "login"
	FlowRoomAccess Flow = "room_access"
)

// Stage is the position of a session inside its flow.
type Stage string

const (
	StageCredentialsVerified Stage = "CREDENTIALS_VERIFIED"
	StagePermissionVerified  Stage = "PERMISSION_VERIFIED"
	StageFacePending         Stage = "FACE_PENDING"
	StageFaceVerified        Stage = "FACE_VERIFIED"
	StageVoicePending        Stage = "VOICE_PENDING"
	StageAuthenticated       Stage = "AUTHENTICATED"
	StageAccessGranted       Stage = "ACCESS_GRANTED"
)

// Terminal returns the success stage a flow ends in.
func (f Flow) Terminal() Stage {
	if f == FlowRoomAccess {
		return StageAccessGranted
	}
	return StageAuthenticated
}

// Gate returns the non-biometric stage a flow starts in.
func (f Flow) Gate() Stage {
	if f == FlowRoomAccess {
		return StagePermissionVerified
	}
	return StageCredentialsVerified
}

// Next-step tokens handed back to clients.
const (
	NextFaceVerification  = "face_verification"
	NextVoiceVerification = "voice_verification"
	NextRestart           = "restart"
	NextDone              = "done"
)
