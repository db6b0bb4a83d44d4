package doorbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu     sync.Mutex
	open   bool
	err    error
	sent   []published
	closed bool
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, published{topic, qos, retained, payload.([]byte)})
	return newToken(c.err)
}

func (c *fakeClient) Disconnect(uint) { c.closed = true }

func TestPublisher_PublishRoomState_Retained(t *testing.T) {
	fc := &fakeClient{open: true}
	p := &Publisher{client: fc, topics: Topics{Prefix: "site-a"}}

	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	err := p.PublishRoomState(context.Background(), RoomState{
		RoomID: "room-001", IsUnlocked: true, UnlockedAt: &at, Reason: ReasonAccessGranted,
	})
	if err != nil {
		t.Fatalf("PublishRoomState: %v", err)
	}
	if len(fc.sent) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.sent))
	}
	msg := fc.sent[0]
	if msg.topic != "site-a/rooms/room-001/state" {
		t.Errorf("unexpected topic %q", msg.topic)
	}
	if !msg.retained || msg.qos != 1 {
		t.Errorf("expected retained QoS 1, got retained=%v qos=%d", msg.retained, msg.qos)
	}

	var got RoomState
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if !got.IsUnlocked || got.UnlockedAt == nil || !got.UnlockedAt.Equal(at) || got.At.IsZero() {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestPublisher_Errors(t *testing.T) {
	p := &Publisher{client: &fakeClient{open: false}}
	if err := p.PublishRoomState(context.Background(), RoomState{RoomID: "r"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}

	p = &Publisher{client: &fakeClient{open: true}}
	if err := p.PublishRoomState(context.Background(), RoomState{}); !errors.Is(err, ErrInvalidRoom) {
		t.Errorf("expected ErrInvalidRoom, got %v", err)
	}

	p = &Publisher{client: &fakeClient{open: true, err: errors.New("broker said no")}}
	if err := p.PublishRoomState(context.Background(), RoomState{RoomID: "r"}); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("expected ErrPublishFailed, got %v", err)
	}
}

func TestPublisher_CloseAnnouncesOffline(t *testing.T) {
	fc := &fakeClient{open: true}
	p := &Publisher{client: fc}
	p.Close()

	if !fc.closed {
		t.Error("expected Disconnect")
	}
	if len(fc.sent) != 1 || fc.sent[0].topic != "smart-access/server/status" || string(fc.sent[0].payload) != "offline" {
		t.Errorf("unexpected publishes %+v", fc.sent)
	}
}
