// Package remote lets a microphone on another machine drive the avatar.
// Peers connect to /ws/mic and stream mic audio (PCM or Opus) or
// precomputed levels; everything lands in one audioio.RemoteSource.
package remote

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-tuber/pkg/audioio"
	"github.com/teslashibe/go-tuber/pkg/metrics"
	"github.com/teslashibe/go-tuber/pkg/protocol"
)

// maxOpusFrame is 120 ms at 48 kHz, the longest Opus frame.
const maxOpusFrame = 5760

// Peer is a connected remote microphone.
type Peer struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu      sync.Mutex
	writeMu sync.Mutex
	decoder *opus.Decoder
	rate    int
	ch      int
	pcm     []int16
}

// Send writes a message to the peer.
func (p *Peer) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.Conn.WriteMessage(websocket.TextMessage, data)
}

// decodeOpus decodes one packet, recreating the decoder when the stream
// parameters change.
func (p *Peer) decodeOpus(packet []byte, rate, channels int) ([]int16, error) {
	if p.decoder == nil || p.rate != rate || p.ch != channels {
		dec, err := opus.NewDecoder(rate, channels)
		if err != nil {
			return nil, err
		}
		p.decoder, p.rate, p.ch = dec, rate, channels
		p.pcm = make([]int16, maxOpusFrame*channels)
	}
	n, err := p.decoder.Decode(packet, p.pcm)
	if err != nil {
		return nil, err
	}
	out := make([]int16, n*channels)
	copy(out, p.pcm)
	return out, nil
}

// Option configures an Ingest.
type Option func(*Ingest)

// WithToken requires peers to present token, as ?token= or a bearer header.
func WithToken(token string) Option {
	return func(in *Ingest) { in.token = token }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Ingest) { in.logger = l }
}

// WithMetrics records peers and chunks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(in *Ingest) { in.metrics = m }
}

// Ingest accepts remote microphone connections.
type Ingest struct {
	src     *audioio.RemoteSource
	token   string
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	peers map[string]*Peer

	messagesReceived atomic.Uint64
	chunksPushed     atomic.Uint64
	chunksDropped    atomic.Uint64
	decodeErrors     atomic.Uint64
}

// NewIngest creates an ingest endpoint feeding src.
func NewIngest(src *audioio.RemoteSource, opts ...Option) *Ingest {
	in := &Ingest{
		src:    src,
		logger: slog.Default(),
		peers:  make(map[string]*Peer),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.With("component", "remote")
	return in
}

// RegisterRoutes registers the websocket routes on a Fiber app
func (in *Ingest) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/mic", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if !in.authorized(c) {
			return fiber.ErrUnauthorized
		}
		return c.Next()
	})

	app.Get("/ws/mic", websocket.New(in.handlePeer))
	app.Get("/ws/mic/:id", websocket.New(in.handlePeer))
}

// RegisterAPIRoutes registers the peer listing under api.
func (in *Ingest) RegisterAPIRoutes(api fiber.Router) {
	api.Get("/peers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"peers": in.PeerInfos(),
			"stats": in.Stats(),
		})
	})
}

func (in *Ingest) authorized(c *fiber.Ctx) bool {
	if in.token == "" {
		return true
	}
	got := c.Query("token")
	if got == "" {
		got = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(in.token)) == 1
}

// handlePeer handles one remote microphone connection
func (in *Ingest) handlePeer(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}
	peer := &Peer{
		ID:        id,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	in.mu.Lock()
	if old, ok := in.peers[id]; ok {
		// Same id reconnecting; the stale socket's read loop will exit.
		old.Conn.Close()
	}
	in.peers[id] = peer
	count := len(in.peers)
	in.mu.Unlock()
	in.setPeerGauge(count)
	in.logger.Info("remote mic connected", "peer", id, "total", count)

	defer func() {
		in.mu.Lock()
		if in.peers[id] == peer {
			delete(in.peers, id)
		}
		count := len(in.peers)
		in.mu.Unlock()
		in.setPeerGauge(count)
		in.logger.Info("remote mic disconnected", "peer", id, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			in.logger.Debug("remote mic read ended", "peer", id, "error", err)
			return
		}

		peer.mu.Lock()
		peer.LastSeen = time.Now()
		peer.mu.Unlock()

		in.messagesReceived.Add(1)
		in.handleMessage(peer, data)
	}
}

// handleMessage processes one message from a peer.
func (in *Ingest) handleMessage(peer *Peer, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		in.reject(peer, err)
		return
	}

	switch msg.Type {
	case protocol.TypeMic:
		mic, err := msg.GetMicData()
		if err != nil {
			in.reject(peer, err)
			return
		}
		samples, err := in.decodeMic(peer, mic)
		if err != nil {
			in.decodeErrors.Add(1)
			in.reject(peer, err)
			return
		}
		in.push(mic.Format, audioio.AudioChunk{
			Samples:    samples,
			SampleRate: mic.SampleRate,
			Channels:   1,
		})

	case protocol.TypeLevel:
		lvl, err := msg.GetLevelData()
		if err != nil {
			in.reject(peer, err)
			return
		}
		in.count("level", in.src.PushLevel(lvl.Level()))

	case protocol.TypePing:
		pd, err := msg.GetPingData()
		if err != nil {
			return
		}
		if pong, err := protocol.NewPongMessage(pd.ID, pd.Timestamp, time.Now().UnixMilli()); err == nil {
			peer.Send(pong)
		}

	default:
		in.reject(peer, fmt.Errorf("unsupported message type: %s", msg.Type))
	}
}

// decodeMic turns a mic message into mono samples.
func (in *Ingest) decodeMic(peer *Peer, mic *protocol.MicData) ([]int16, error) {
	if mic.Channels < 1 || mic.Channels > 2 {
		return nil, fmt.Errorf("unsupported channel count %d", mic.Channels)
	}
	if mic.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", mic.SampleRate)
	}
	payload, err := mic.DecodeMicData()
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var samples []int16
	switch mic.Format {
	case protocol.FormatPCM16, "":
		samples = audioio.BytesToSamples(payload)
	case protocol.FormatOpus:
		peer.mu.Lock()
		samples, err = peer.decodeOpus(payload, mic.SampleRate, mic.Channels)
		peer.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("opus: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported audio format %q", mic.Format)
	}
	return audioio.Downmix(samples, mic.Channels), nil
}

func (in *Ingest) push(format string, chunk audioio.AudioChunk) {
	if format == "" {
		format = protocol.FormatPCM16
	}
	in.count(format, in.src.Push(chunk))
}

func (in *Ingest) count(format string, ok bool) {
	if !ok {
		in.chunksDropped.Add(1)
		return
	}
	in.chunksPushed.Add(1)
	if in.metrics != nil {
		in.metrics.RemoteChunks.WithLabelValues(format).Inc()
	}
}

func (in *Ingest) setPeerGauge(n int) {
	if in.metrics != nil {
		in.metrics.RemotePeers.Set(float64(n))
	}
}

func (in *Ingest) reject(peer *Peer, err error) {
	in.logger.Debug("rejected remote message", "peer", peer.ID, "error", err)
	if msg, merr := protocol.NewErrorMessage(err.Error()); merr == nil {
		peer.Send(msg)
	}
}

// PeerCount returns the number of connected peers
func (in *Ingest) PeerCount() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.peers)
}

// PeerInfo describes a connected peer.
type PeerInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// PeerInfos returns info about all connected peers
func (in *Ingest) PeerInfos() []PeerInfo {
	in.mu.RLock()
	defer in.mu.RUnlock()

	infos := make([]PeerInfo, 0, len(in.peers))
	for _, p := range in.peers {
		p.mu.Lock()
		infos = append(infos, PeerInfo{
			ID:        p.ID,
			Connected: p.Connected,
			LastSeen:  p.LastSeen,
		})
		p.mu.Unlock()
	}
	return infos
}

// Stats contains ingest statistics
type Stats struct {
	Peers            int    `json:"peers"`
	MessagesReceived uint64 `json:"messages_received"`
	ChunksPushed     uint64 `json:"chunks_pushed"`
	ChunksDropped    uint64 `json:"chunks_dropped"`
	DecodeErrors     uint64 `json:"decode_errors"`
}

// Stats returns ingest statistics
func (in *Ingest) Stats() Stats {
	return Stats{
		Peers:            in.PeerCount(),
		MessagesReceived: in.messagesReceived.Load(),
		ChunksPushed:     in.chunksPushed.Load(),
		ChunksDropped:    in.chunksDropped.Load(),
		DecodeErrors:     in.decodeErrors.Load(),
	}
}
