package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-tuber/pkg/audioio"
	"github.com/teslashibe/go-tuber/pkg/protocol"
)

// Push formats.
const (
	// FormatLevel sends only the peak dBFS of each buffer.
	FormatLevel = "level"
	FormatPCM16 = protocol.FormatPCM16
	FormatOpus  = protocol.FormatOpus
)

// opusFrame is the Opus frame length the client encodes.
const opusFrame = 20 * time.Millisecond

// ClientConfig configures a push client.
type ClientConfig struct {
	// Server is the base URL, ws://host:port.
	Server string
	// ID names this peer on the server. Empty lets the server pick.
	ID     string
	Token  string
	Format string
	// PingInterval keeps idle connections alive. Zero disables pings.
	PingInterval time.Duration
}

// URL returns the ingest endpoint for cfg.
func (c ClientConfig) URL() (string, error) {
	u, err := url.Parse(c.Server)
	if err != nil {
		return "", fmt.Errorf("remote: server url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("remote: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/mic"
	if c.ID != "" {
		u.Path += "/" + url.PathEscape(c.ID)
	}
	if c.Token != "" {
		q := u.Query()
		q.Set("token", c.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Client streams a local audio source to a remote ingest endpoint.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger
	dialer *websocket.Dialer

	encoder *opus.Encoder
	pending []int16
	packet  []byte

	sent     atomic.Uint64
	rejected atomic.Uint64
}

// NewClient validates cfg and creates a client.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Format == "" {
		cfg.Format = FormatLevel
	}
	switch cfg.Format {
	case FormatLevel, FormatPCM16, FormatOpus:
	default:
		return nil, fmt.Errorf("remote: unknown push format %q", cfg.Format)
	}
	if _, err := cfg.URL(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With("component", "remote-client"),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Sent returns how many messages were written.
func (c *Client) Sent() uint64 {
	return c.sent.Load()
}

// Rejected returns how many messages the server answered with an error.
func (c *Client) Rejected() uint64 {
	return c.rejected.Load()
}

// Run connects and forwards every chunk src produces until ctx is
// cancelled, src stops or the connection fails. src must be started.
func (c *Client) Run(ctx context.Context, src audioio.Source) error {
	endpoint, _ := c.cfg.URL()
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("remote: dial %s: %s: %w", c.cfg.Server, resp.Status, err)
		}
		return fmt.Errorf("remote: dial %s: %w", c.cfg.Server, err)
	}
	defer conn.Close()
	c.logger.Info("pushing microphone", "server", c.cfg.Server, "format", c.cfg.Format)

	// Drain server messages so control frames are processed.
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if msg, err := protocol.ParseMessage(data); err == nil && msg.Type == protocol.TypeError {
				c.rejected.Add(1)
				c.logger.Warn("server rejected message", "data", string(msg.Data))
			}
		}
	}()

	var ping <-chan time.Time
	if c.cfg.PingInterval > 0 {
		t := time.NewTicker(c.cfg.PingInterval)
		defer t.Stop()
		ping = t.C
	}

	chunks := src.Stream()
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("remote: connection lost: %w", err)

		case <-ping:
			msg, err := protocol.NewPingMessage(fmt.Sprint(c.sent.Load()))
			if err == nil {
				if err := c.write(conn, msg); err != nil {
					return err
				}
			}

		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			msgs, err := c.encode(chunk)
			if err != nil {
				return err
			}
			for _, msg := range msgs {
				if err := c.write(conn, msg); err != nil {
					return err
				}
			}
		}
	}
}

func (c *Client) write(conn *websocket.Conn, msg *protocol.Message) error {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("remote: write: %w", err)
	}
	c.sent.Add(1)
	return nil
}

// encode turns one chunk into zero or more messages.
func (c *Client) encode(chunk audioio.AudioChunk) ([]*protocol.Message, error) {
	switch c.cfg.Format {
	case FormatPCM16:
		msg, err := protocol.NewMicMessage(chunk.Bytes(), chunk.SampleRate, chunk.Channels)
		if err != nil {
			return nil, err
		}
		return []*protocol.Message{msg}, nil

	case FormatOpus:
		return c.encodeOpus(chunk)

	default:
		msg, err := protocol.NewLevelMessage(audioio.PeakDBFS(chunk.Samples))
		if err != nil {
			return nil, err
		}
		return []*protocol.Message{msg}, nil
	}
}

// encodeOpus buffers samples into whole Opus frames.
func (c *Client) encodeOpus(chunk audioio.AudioChunk) ([]*protocol.Message, error) {
	if c.encoder == nil {
		enc, err := opus.NewEncoder(chunk.SampleRate, chunk.Channels, opus.AppVoIP)
		if err != nil {
			return nil, fmt.Errorf("remote: opus encoder: %w", err)
		}
		c.encoder = enc
		c.packet = make([]byte, 4000)
	}
	frame := int(opusFrame.Seconds()*float64(chunk.SampleRate)) * chunk.Channels
	if frame == 0 {
		return nil, errors.New("remote: sample rate too low for opus")
	}

	c.pending = append(c.pending, chunk.Samples...)
	var msgs []*protocol.Message
	for len(c.pending) >= frame {
		n, err := c.encoder.Encode(c.pending[:frame], c.packet)
		if err != nil {
			return nil, fmt.Errorf("remote: opus encode: %w", err)
		}
		msg, err := protocol.NewOpusMessage(c.packet[:n], chunk.SampleRate, chunk.Channels)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		c.pending = c.pending[frame:]
	}
	c.pending = append([]int16(nil), c.pending...)
	return msgs, nil
}
