package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mohamed2108268/Smart-Access/internal/access/types"
)

// Door controllers poll room status with "Accept: application/x-protobuf"
// and get a compact message instead of JSON:
//
//	message RoomStatus {
//	  string room_id             = 1;
//	  bool   is_unlocked         = 2;
//	  int64  unlock_timestamp_ms = 3; // absent when locked
//	}
const (
	roomStatusFieldRoomID     protowire.Number = 1
	roomStatusFieldUnlocked   protowire.Number = 2
	roomStatusFieldUnlockedAt protowire.Number = 3
)

const protobufContentType = "application/x-protobuf"

var errBadRoomStatus = errors.New("malformed room status message")

// wantsProtobuf returns true if the client asked for a protobuf payload.
func wantsProtobuf(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if mt == protobufContentType || mt == "application/protobuf" {
			return true
		}
	}
	return false
}

func encodeRoomStatus(st types.RoomStatus) []byte {
	var b []byte
	b = protowire.AppendTag(b, roomStatusFieldRoomID, protowire.BytesType)
	b = protowire.AppendString(b, st.RoomID)
	if st.IsUnlocked {
		b = protowire.AppendTag(b, roomStatusFieldUnlocked, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if st.UnlockTimestamp != nil {
		if t, err := time.Parse(time.RFC3339Nano, *st.UnlockTimestamp); err == nil {
			b = protowire.AppendTag(b, roomStatusFieldUnlockedAt, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(t.UnixMilli()))
		}
	}
	return b
}

// DecodeRoomStatus parses the protobuf room status message.  Unknown
// fields are skipped.
func DecodeRoomStatus(b []byte) (types.RoomStatus, error) {
	var st types.RoomStatus
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return st, errBadRoomStatus
		}
		b = b[n:]

		switch {
		case num == roomStatusFieldRoomID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return st, errBadRoomStatus
			}
			st.RoomID = v
			b = b[n:]
		case num == roomStatusFieldUnlocked && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return st, errBadRoomStatus
			}
			st.IsUnlocked = protowire.DecodeBool(v)
			b = b[n:]
		case num == roomStatusFieldUnlockedAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return st, errBadRoomStatus
			}
			ts := time.UnixMilli(int64(v)).UTC().Format(time.RFC3339Nano)
			st.UnlockTimestamp = &ts
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return st, errBadRoomStatus
			}
			b = b[n:]
		}
	}
	return st, nil
}

// writeProto writes an encoded message with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
