package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-tuber/pkg/avatar"
	"github.com/teslashibe/go-tuber/pkg/protocol"
)

type fakeController struct {
	mu    sync.Mutex
	state avatar.State
	frame avatar.Frame
	keys  chan protocol.KeyData
}

func newFakeController() *fakeController {
	return &fakeController{
		state: avatar.State{Head: "normal", Eyes: "normal"},
		keys:  make(chan protocol.KeyData, 8),
	}
}

func (f *fakeController) Hello() protocol.HelloData {
	return protocol.HelloData{Moods: []string{"happy", "normal"}, Head: "normal", Eyes: "normal", Keys: []string{"F1"}, FPS: 60}
}

func (f *fakeController) Snapshot() (avatar.State, avatar.Frame, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.frame, 7
}

func (f *fakeController) Moods() []avatar.Mood {
	return []avatar.Mood{{Name: "normal"}, {Name: "happy"}}
}

func (f *fakeController) Latch(_ context.Context, c avatar.Change) (avatar.State, error) {
	for _, name := range []*string{c.Head, c.Eyes} {
		if name != nil && *name != "normal" && *name != "happy" {
			return avatar.State{}, fmt.Errorf("%w: %s", avatar.ErrUnknownMood, *name)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = avatar.Apply(f.state, c)
	return f.state, nil
}

func (f *fakeController) Key(key string, down bool) {
	f.keys <- protocol.KeyData{Key: key, Down: down}
}

func TestStatus(t *testing.T) {
	ctl := newFakeController()
	ctl.frame = avatar.Frame{Time: time.Now(), Tier: avatar.TierHalfSpeak, Loudness: -25}
	s := NewServer(ctl, Options{})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Head != "normal" || body.Frame == nil {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Frame.Seq != 7 || body.Frame.Tier != "half" {
		t.Errorf("frame = %+v", body.Frame)
	}
}

func TestMoods(t *testing.T) {
	s := NewServer(newFakeController(), Options{})
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/moods", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var moods []avatar.Mood
	if err := json.NewDecoder(resp.Body).Decode(&moods); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(moods) != 2 {
		t.Errorf("got %d moods, want 2", len(moods))
	}
}

func postExpression(t *testing.T, s *Server, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/expression", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp
}

func TestExpression(t *testing.T) {
	ctl := newFakeController()
	s := NewServer(ctl, Options{})

	resp := postExpression(t, s, `{"head":"happy"}`)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, b)
	}
	var st protocol.StatusData
	json.NewDecoder(resp.Body).Decode(&st)
	if st.Head != "happy" || st.Eyes != "normal" {
		t.Errorf("state = %+v, want happy/normal", st)
	}

	if resp := postExpression(t, s, `{"eyes":"smug"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown mood: status = %d, want 400", resp.StatusCode)
	}
	if resp := postExpression(t, s, `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty change: status = %d, want 400", resp.StatusCode)
	}
}

func TestMetricsRoute(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "tuber_frames_total 1\n")
	})
	s := NewServer(newFakeController(), Options{Metrics: h})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "tuber_frames_total") {
		t.Errorf("metrics body = %q", b)
	}
}

func TestOverlayPage(t *testing.T) {
	s := NewServer(newFakeController(), Options{Overlay: true})
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), "overlay.js") {
		t.Errorf("status = %d, body = %.80q", resp.StatusCode, b)
	}
}

func TestWebSocketNeedsUpgrade(t *testing.T) {
	s := NewServer(newFakeController(), Options{})
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/ws/frames", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}

func startServer(t *testing.T, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func readMessage(t *testing.T, conn *websocket.Conn, want protocol.MessageType) *protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if msg.Type == want {
			return msg
		}
	}
}

func TestFrameStream(t *testing.T) {
	ctl := newFakeController()
	s := NewServer(ctl, Options{})
	addr := startServer(t, s)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/frames", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello, err := readMessage(t, conn, protocol.TypeHello).GetHelloData()
	if err != nil {
		t.Fatalf("hello: %v", err)
	}
	if hello.ClientID == "" || hello.FPS != 60 {
		t.Errorf("hello = %+v", hello)
	}

	// Key input flows upstream to the controller.
	key, _ := protocol.NewKeyMessage("F1", true)
	if err := conn.WriteJSON(key); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case kd := <-ctl.keys:
		if kd.Key != "F1" || !kd.Down {
			t.Errorf("key = %+v", kd)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("key never reached controller")
	}

	// Frames flow downstream.
	s.PublishFrame(avatar.Frame{Time: time.Now(), Tier: avatar.TierFullSpeak, Loudness: -15}, 42)
	fd, err := readMessage(t, conn, protocol.TypeFrame).GetFrameData()
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if fd.Seq != 42 || fd.Tier != "full" {
		t.Errorf("frame = %+v", fd)
	}
}

func TestClientMessageErrors(t *testing.T) {
	s := NewServer(newFakeController(), Options{})
	addr := startServer(t, s)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/frames", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readMessage(t, conn, protocol.TypeHello)

	expr, _ := protocol.NewExpressionMessage(avatar.ChangeHead("smug"))
	conn.WriteJSON(expr)
	var reason protocol.ErrorData
	if err := readMessage(t, conn, protocol.TypeError).ParseData(&reason); err != nil {
		t.Fatalf("error message: %v", err)
	}
	if !strings.Contains(reason.Message, "smug") {
		t.Errorf("reason = %q", reason.Message)
	}

	ping, _ := protocol.NewPingMessage("p1")
	conn.WriteJSON(ping)
	pong, err := readMessage(t, conn, protocol.TypePong).GetPongData()
	if err != nil || pong.ID != "p1" {
		t.Errorf("pong = %+v, err = %v", pong, err)
	}
}
