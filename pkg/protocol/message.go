// Package protocol defines the WebSocket message types exchanged between
// the tuber server, its browser overlays and remote microphones.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType names the payload carried in Message.Data.
type MessageType string

const (
	// Server → overlay messages
	TypeFrame  MessageType = "frame"  // Resolved avatar frame
	TypeHello  MessageType = "hello"  // Sent once on connect
	TypeStatus MessageType = "status" // Latched expression changed
	TypeError  MessageType = "error"  // Rejected client message

	// Overlay → server messages
	TypeKey        MessageType = "key"        // Hotkey down/up
	TypeExpression MessageType = "expression" // Latch a mood change

	// Remote mic → server messages
	TypeMic   MessageType = "mic"   // Microphone audio
	TypeLevel MessageType = "level" // Peer-computed loudness

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// FloorDBFS stands in for -Inf on the wire; JSON has no infinities.
const FloorDBFS = -120.0

// ErrMalformed is returned for frames that are not a typed JSON envelope.
var ErrMalformed = errors.New("malformed message")

// Message is the envelope for every websocket message.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage stamps data with the current time. A nil data leaves the
// payload empty.
func NewMessage(t MessageType, data any) (*Message, error) {
	m := &Message{Type: t, Timestamp: time.Now().UnixMilli()}
	if data == nil {
		return m, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	m.Data = raw
	return m, nil
}

// ParseData decodes the payload into v. An empty payload leaves v as is.
func (m *Message) ParseData(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, m.Type, err)
	}
	return nil
}

// Bytes returns the JSON-encoded envelope.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes an envelope. The type is required.
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return &m, nil
}

// Server → Overlay messages.

// FrameData is one resolved avatar frame.
type FrameData struct {
	Seq       uint64  `json:"seq"`
	Loudness  float64 `json:"loudness"` // dBFS, FloorDBFS for silence
	Tier      string  `json:"tier"`
	HeadMood  string  `json:"head_mood"`
	EyeMood   string  `json:"eye_mood"`
	HeadImage string  `json:"head_image"`
	EyeImage  string  `json:"eye_image"`
	Blink     string  `json:"blink"` // "open", "closed"
	ScaleX    float64 `json:"scale_x"`
	ScaleY    float64 `json:"scale_y"`
	Override  bool    `json:"override"`
}

// HelloData introduces the server to a new client.
type HelloData struct {
	ClientID string   `json:"client_id"`
	Moods    []string `json:"moods"`
	Head     string   `json:"head"`
	Eyes     string   `json:"eyes"`
	Keys     []string `json:"keys"`
	FPS      int      `json:"fps"`
}

// StatusData reports the latched expression.
type StatusData struct {
	Head string `json:"head"`
	Eyes string `json:"eyes"`
}

// ErrorData explains why a client message was rejected.
type ErrorData struct {
	Message string `json:"message"`
}

// Overlay → Server messages.

// KeyData is a hotkey transition.
type KeyData struct {
	Key  string `json:"key"`
	Down bool   `json:"down"`
}

// ExpressionData latches a partial mood change. Nil fields are unchanged.
type ExpressionData struct {
	Head *string `json:"head,omitempty"`
	Eyes *string `json:"eyes,omitempty"`
}

// Remote Mic → Server messages.

// Audio formats carried by MicData.
const (
	FormatPCM16 = "pcm16"
	FormatOpus  = "opus"
)

// MicData carries a buffer of microphone audio.
type MicData struct {
	Format     string `json:"format"`      // "pcm16", "opus"
	SampleRate int    `json:"sample_rate"` // e.g., 48000
	Channels   int    `json:"channels"`    // 1 for mono
	Data       string `json:"data"`        // base64 encoded
}

// LevelData is a loudness reading computed by the peer.
type LevelData struct {
	DBFS float64 `json:"dbfs"`
}

// Bidirectional messages.

// PingData is a keepalive probe; the receiver answers with PongData.
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
