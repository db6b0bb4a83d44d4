package service

import "errors"

// Failure reasons surfaced to clients.  Every one is recoverable at the
// session boundary; anything else returned by this package is a storage or
// wiring fault.
var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrAccountFrozen            = errors.New("account is frozen")
	ErrPermissionDenied         = errors.New("permission denied")
	ErrRoomNotFound             = errors.New("room not found")
	ErrInvalidSessionState      = errors.New("invalid session state")
	ErrStageTimeout             = errors.New("stage timed out")
	ErrFaceVerificationFailed   = errors.New("face verification failed")
	ErrVoiceVerificationFailed  = errors.New("voice verification failed")
	ErrGatewayUnavailable       = errors.New("biometric verification unavailable")
	ErrMissingBiometricTemplate = errors.New("no biometric template enrolled")
	ErrMissingBiometricSample   = errors.New("biometric sample is required")

	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidAction   = errors.New("invalid action")
	ErrInvalidRoomID   = errors.New("room_id is required")
)
