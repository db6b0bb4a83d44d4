package doorbus

import "errors"

var (
	ErrNotConnected = errors.New("doorbus: client not connected")

	ErrConnectionFailed = errors.New("doorbus: connection failed")

	ErrPublishFailed = errors.New("doorbus: publish failed")

	ErrInvalidRoom = errors.New("doorbus: room id cannot be empty")
)
