package protocol

import (
	"encoding/base64"
	"math"
	"time"

	"github.com/teslashibe/go-tuber/pkg/avatar"
)

// WireDBFS clamps a dBFS reading to a JSON-safe number. Silence and NaN
// become FloorDBFS.
func WireDBFS(db float32) float64 {
	v := float64(db)
	switch {
	case math.IsNaN(v), v < FloorDBFS:
		return FloorDBFS
	case math.IsInf(v, 1):
		return math.MaxFloat32
	}
	return v
}

// NewFrameData converts a resolved frame to its wire form.
func NewFrameData(f avatar.Frame, seq uint64) FrameData {
	return FrameData{
		Seq:       seq,
		Loudness:  WireDBFS(f.Loudness),
		Tier:      f.Tier.String(),
		HeadMood:  f.HeadMood,
		EyeMood:   f.EyeMood,
		HeadImage: f.HeadImage,
		EyeImage:  f.EyeImage,
		Blink:     f.Blink.String(),
		ScaleX:    f.Scale.X,
		ScaleY:    f.Scale.Y,
		Override:  f.Override,
	}
}

func NewFrameMessage(f avatar.Frame, seq uint64) (*Message, error) {
	return NewMessage(TypeFrame, NewFrameData(f, seq))
}

func NewHelloMessage(hello HelloData) (*Message, error) {
	return NewMessage(TypeHello, hello)
}

// NewStatusMessage announces a newly latched expression.
func NewStatusMessage(s avatar.State) (*Message, error) {
	return NewMessage(TypeStatus, StatusData(s))
}

func NewErrorMessage(reason string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: reason})
}

func NewKeyMessage(key string, down bool) (*Message, error) {
	return NewMessage(TypeKey, KeyData{Key: key, Down: down})
}

func NewExpressionMessage(c avatar.Change) (*Message, error) {
	return NewMessage(TypeExpression, ExpressionData(c))
}

// NewMicMessage wraps interleaved little-endian PCM16.
func NewMicMessage(pcm []byte, sampleRate, channels int) (*Message, error) {
	return newMic(FormatPCM16, pcm, sampleRate, channels)
}

// NewOpusMessage wraps a single opus packet.
func NewOpusMessage(packet []byte, sampleRate, channels int) (*Message, error) {
	return newMic(FormatOpus, packet, sampleRate, channels)
}

func newMic(format string, payload []byte, sampleRate, channels int) (*Message, error) {
	return NewMessage(TypeMic, MicData{
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
		Data:       base64.StdEncoding.EncodeToString(payload),
	})
}

// NewLevelMessage carries a loudness reading measured by the sender.
func NewLevelMessage(db float32) (*Message, error) {
	return NewMessage(TypeLevel, LevelData{DBFS: WireDBFS(db)})
}

func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: time.Now().UnixMilli()})
}

func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// Decode parses the payload of m as a T.
func Decode[T any](m *Message) (*T, error) {
	var v T
	if err := m.ParseData(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (m *Message) GetFrameData() (*FrameData, error)           { return Decode[FrameData](m) }
func (m *Message) GetHelloData() (*HelloData, error)           { return Decode[HelloData](m) }
func (m *Message) GetStatusData() (*StatusData, error)         { return Decode[StatusData](m) }
func (m *Message) GetErrorData() (*ErrorData, error)           { return Decode[ErrorData](m) }
func (m *Message) GetKeyData() (*KeyData, error)               { return Decode[KeyData](m) }
func (m *Message) GetExpressionData() (*ExpressionData, error) { return Decode[ExpressionData](m) }
func (m *Message) GetMicData() (*MicData, error)               { return Decode[MicData](m) }
func (m *Message) GetLevelData() (*LevelData, error)           { return Decode[LevelData](m) }
func (m *Message) GetPingData() (*PingData, error)             { return Decode[PingData](m) }
func (m *Message) GetPongData() (*PongData, error)             { return Decode[PongData](m) }

// Change converts the wire form to a mood change.
func (e *ExpressionData) Change() avatar.Change {
	return avatar.Change(*e)
}

// DecodeMicData returns the raw audio payload.
func (mic *MicData) DecodeMicData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(mic.Data)
}

// Level returns the reading as dBFS, mapping the wire floor back to silence.
func (l *LevelData) Level() float32 {
	if l.DBFS <= FloorDBFS {
		return float32(math.Inf(-1))
	}
	return float32(l.DBFS)
}
