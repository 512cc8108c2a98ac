package remote

import (
	"context"
	"math"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-tuber/pkg/audioio"
	"github.com/teslashibe/go-tuber/pkg/metrics"
	"github.com/teslashibe/go-tuber/pkg/protocol"
)

func newTestSource(t *testing.T) *audioio.RemoteSource {
	t.Helper()
	src := audioio.NewRemoteSource(audioio.DefaultConfig(), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start source: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}

// setupTestServer serves in on a loopback port and returns its ws:// base URL.
func setupTestServer(t *testing.T, in *Ingest) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	in.RegisterRoutes(app)
	in.RegisterAPIRoutes(app.Group("/api"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return "ws://" + ln.Addr().String()
}

func readChunk(t *testing.T, src *audioio.RemoteSource) audioio.AudioChunk {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("no chunk arrived: %v", err)
	}
	return chunk
}

func TestIngestLevel(t *testing.T) {
	src := newTestSource(t)
	m := metrics.New()
	in := NewIngest(src, WithMetrics(m))
	base := setupTestServer(t, in)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/mic/studio", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg, _ := protocol.NewLevelMessage(-12)
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	chunk := readChunk(t, src)
	if db := audioio.PeakDBFS(chunk.Samples); math.Abs(float64(db)+12) > 0.01 {
		t.Errorf("Expected -12 dBFS, got %.3f", db)
	}

	infos := in.PeerInfos()
	if len(infos) != 1 || infos[0].ID != "studio" {
		t.Errorf("Expected peer 'studio', got %+v", infos)
	}
	if s := in.Stats(); s.ChunksPushed != 1 || s.MessagesReceived != 1 {
		t.Errorf("Unexpected stats %+v", s)
	}
}

func TestIngestPCMStereo(t *testing.T) {
	src := newTestSource(t)
	base := setupTestServer(t, NewIngest(src))

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/mic", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stereo := []int16{1000, 3000, -2000, -4000}
	msg, _ := protocol.NewMicMessage(audioio.SamplesToBytes(stereo), 48000, 2)
	conn.WriteJSON(msg)

	chunk := readChunk(t, src)
	if chunk.Channels != 1 || len(chunk.Samples) != 2 {
		t.Fatalf("Expected 2 mono samples, got %d (%d ch)", len(chunk.Samples), chunk.Channels)
	}
	if chunk.Samples[0] != 2000 || chunk.Samples[1] != -3000 {
		t.Errorf("Unexpected downmix %v", chunk.Samples)
	}
}

func TestIngestRejectsBadMessage(t *testing.T) {
	src := newTestSource(t)
	in := NewIngest(src)
	base := setupTestServer(t, in)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/mic", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg, _ := protocol.NewMessage(protocol.TypeMic, protocol.MicData{Format: "flac", SampleRate: 48000, Channels: 1})
	conn.WriteJSON(msg)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	reply, err := protocol.ParseMessage(data)
	if err != nil || reply.Type != protocol.TypeError {
		t.Fatalf("Expected error reply, got %s (%v)", data, err)
	}
	if in.Stats().DecodeErrors != 1 {
		t.Errorf("Expected one decode error, got %d", in.Stats().DecodeErrors)
	}
}

func TestIngestToken(t *testing.T) {
	src := newTestSource(t)
	base := setupTestServer(t, NewIngest(src, WithToken("s3cret")))

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/mic", nil)
	if err == nil {
		t.Fatal("Expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %v", resp)
	}

	header := http.Header{"Authorization": {"Bearer s3cret"}}
	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/mic", header)
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	conn.Close()
}

func TestClientURL(t *testing.T) {
	tests := []struct {
		cfg  ClientConfig
		want string
	}{
		{ClientConfig{Server: "ws://host:8420"}, "ws://host:8420/ws/mic"},
		{ClientConfig{Server: "http://host:8420/", ID: "desk"}, "ws://host:8420/ws/mic/desk"},
		{ClientConfig{Server: "https://host", Token: "t"}, "wss://host/ws/mic?token=t"},
	}
	for _, tt := range tests {
		got, err := tt.cfg.URL()
		if err != nil {
			t.Fatalf("URL(%+v): %v", tt.cfg, err)
		}
		if got != tt.want {
			t.Errorf("URL(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}

	if _, err := (ClientConfig{Server: "ftp://host"}).URL(); err == nil {
		t.Error("Expected error for ftp scheme")
	}
}

func TestNewClientFormat(t *testing.T) {
	if _, err := NewClient(ClientConfig{Server: "ws://h", Format: "mp3"}, nil); err == nil {
		t.Error("Expected unknown format to fail")
	}
	c, err := NewClient(ClientConfig{Server: "ws://h"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.cfg.Format != FormatLevel {
		t.Errorf("Expected default format %q, got %q", FormatLevel, c.cfg.Format)
	}
}

func pushFrom(t *testing.T, format string) audioio.AudioChunk {
	t.Helper()
	dst := newTestSource(t)
	base := setupTestServer(t, NewIngest(dst))

	mock := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithLevel(-20))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mock.Start(ctx); err != nil {
		t.Fatalf("start mock: %v", err)
	}
	defer mock.Close()

	client, err := NewClient(ClientConfig{Server: base, ID: "mock", Format: format}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	go client.Run(ctx, mock)

	return readChunk(t, dst)
}

func TestClientPushLevel(t *testing.T) {
	chunk := pushFrom(t, FormatLevel)
	if db := audioio.PeakDBFS(chunk.Samples); math.Abs(float64(db)+20) > 0.5 {
		t.Errorf("Expected about -20 dBFS, got %.2f", db)
	}
}

func TestClientPushPCM(t *testing.T) {
	chunk := pushFrom(t, FormatPCM16)
	if len(chunk.Samples) != audioio.DefaultConfig().BufferSize() {
		t.Errorf("Expected a full buffer, got %d samples", len(chunk.Samples))
	}
}

func TestClientPushOpus(t *testing.T) {
	chunk := pushFrom(t, FormatOpus)
	if len(chunk.Samples) != 960 {
		t.Fatalf("Expected one 20ms opus frame, got %d samples", len(chunk.Samples))
	}
	// Lossy, so only check the level is in the right neighbourhood.
	if db := audioio.PeakDBFS(chunk.Samples); db < -30 || db > -10 {
		t.Errorf("Expected roughly -20 dBFS after opus, got %.2f", db)
	}
}
