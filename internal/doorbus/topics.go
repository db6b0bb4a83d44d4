package doorbus

import "fmt"

const DefaultTopicPrefix = "smart-access"

// Topics builds topic names under a prefix.
type Topics struct {
	Prefix string
}

// RoomState is the retained topic a door controller subscribes to.
func (t Topics) RoomState(roomID string) string {
	return fmt.Sprintf("%s/rooms/%s/state", t.prefix(), roomID)
}

// ServerStatus carries the server's online/offline last will.
func (t Topics) ServerStatus() string {
	return fmt.Sprintf("%s/server/status", t.prefix())
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}
