// Package doorbus pushes room lock state to door controllers over MQTT.
//
// Polling the status endpoint remains the authoritative path; the bus is
// a latency optimisation.  Messages are retained so a controller that
// reconnects sees the current state immediately.
package doorbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 30 * time.Second
	qosAtLeastOnce        = 1
)

type Config struct {
	BrokerURL   string // tcp://host:1883
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// RoomState is the payload published on every lock transition.
type RoomState struct {
	RoomID     string     `json:"room_id"`
	IsUnlocked bool       `json:"is_unlocked"`
	UnlockedAt *time.Time `json:"unlock_timestamp"`
	Reason     string     `json:"reason"`
	At         time.Time  `json:"at"`
}

// Transition reasons.
const (
	ReasonAccessGranted = "access_granted"
	ReasonExpired       = "expired"
	ReasonManual        = "manual"
)

// client is the part of pahomqtt.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	client client
	topics Topics
}

// Connect dials the broker and sets a retained "offline" last will on the
// server status topic.
func Connect(cfg Config) (*Publisher, error) {
	topics := Topics{Prefix: cfg.TopicPrefix}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWill(topics.ServerStatus(), "offline", qosAtLeastOnce, true)

	c := pahomqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p := &Publisher{client: c, topics: topics}
	_ = p.publish(context.Background(), topics.ServerStatus(), []byte("online"))
	return p, nil
}

// PublishRoomState publishes s retained at QoS 1.
func (p *Publisher) PublishRoomState(ctx context.Context, s RoomState) error {
	if strings.TrimSpace(s.RoomID) == "" {
		return ErrInvalidRoom
	}
	if s.At.IsZero() {
		s.At = time.Now().UTC()
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return p.publish(ctx, p.topics.RoomState(s.RoomID), b)
}

func (p *Publisher) publish(ctx context.Context, topic string, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := p.client.Publish(topic, qosAtLeastOnce, true, payload)

	timer := time.NewTimer(defaultPublishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close publishes the retained "offline" status and disconnects.
func (p *Publisher) Close() {
	_ = p.publish(context.Background(), p.topics.ServerStatus(), []byte("offline"))
	p.client.Disconnect(250)
}

// Nop discards every state change.  Used when no broker is configured.
type Nop struct{}

func (Nop) PublishRoomState(context.Context, RoomState) error { return nil }
