// Package web serves the browser overlay: the overlay page, the art
// directory, a small JSON API and the live frame stream.
package web

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-tuber/pkg/avatar"
	"github.com/teslashibe/go-tuber/pkg/hub"
	"github.com/teslashibe/go-tuber/pkg/protocol"
)

//go:embed static
var staticFiles embed.FS

// Controller is the avatar side of the server. Methods are called from
// request goroutines.
type Controller interface {
	// Hello describes the avatar to a newly connected overlay.
	Hello() protocol.HelloData
	// Snapshot returns the latched selection and the last frame.
	Snapshot() (avatar.State, avatar.Frame, uint64)
	// Moods lists the registered moods.
	Moods() []avatar.Mood
	// Latch applies a mood change between frames. Unknown moods fail
	// with avatar.ErrUnknownMood.
	Latch(ctx context.Context, c avatar.Change) (avatar.State, error)
	// Key records a hotkey transition.
	Key(key string, down bool)
}

// Options configures the server.
type Options struct {
	// AssetsDir is served under /assets. Empty disables it.
	AssetsDir string
	// Overlay serves the embedded overlay page at /.
	Overlay bool
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server is the overlay server.
type Server struct {
	app    *fiber.App
	ctl    Controller
	frames *hub.Hub
	logger *slog.Logger
}

// NewServer builds the fiber app and its routes.
func NewServer(ctl Controller, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ctl:    ctl,
		logger: logger.With("component", "web"),
	}
	s.frames = hub.New("frames",
		hub.WithLogger(s.logger),
		hub.OnConnect(s.greet),
		hub.OnMessage(s.handleClientMessage),
	)

	app := fiber.New(fiber.Config{
		AppName:               "go-tuber",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/moods", s.handleMoods)
	api.Post("/expression", s.handleExpression)

	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))

	if opts.AssetsDir != "" {
		app.Static("/assets", opts.AssetsDir)
	}
	if opts.Overlay {
		sub, _ := fs.Sub(staticFiles, "static")
		app.Use("/", filesystem.New(filesystem.Config{
			Root:  http.FS(sub),
			Index: "index.html",
		}))
	}

	s.app = app
	return s
}

// App exposes the fiber app so other packages can mount routes.
func (s *Server) App() *fiber.App {
	return s.app
}

// Frames returns the frame hub.
func (s *Server) Frames() *hub.Hub {
	return s.frames
}

// Serve runs the hub and serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.frames.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()
	s.logger.Info("overlay listening", "addr", "http://"+ln.Addr().String())

	select {
	case <-ctx.Done():
		cancel()
		<-s.frames.Done()
		if err := s.app.Shutdown(); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// PublishFrame broadcasts a frame to every overlay. It never blocks.
func (s *Server) PublishFrame(f avatar.Frame, seq uint64) {
	if s.frames.ClientCount() == 0 {
		return
	}
	msg, err := protocol.NewFrameMessage(f, seq)
	if err != nil {
		s.logger.Error("encode frame", "error", err)
		return
	}
	if err := s.frames.BroadcastJSON(msg); err != nil {
		s.logger.Error("broadcast frame", "error", err)
	}
}

// PublishStatus tells every overlay the latched selection changed.
func (s *Server) PublishStatus(st avatar.State) {
	msg, err := protocol.NewStatusMessage(st)
	if err != nil {
		return
	}
	s.frames.BroadcastJSON(msg)
}

func (s *Server) greet(c *hub.Client) {
	hello := s.ctl.Hello()
	hello.ClientID = c.ID()
	msg, err := protocol.NewHelloMessage(hello)
	if err != nil {
		s.logger.Error("encode hello", "error", err)
		return
	}
	c.SendJSON(msg)
}

func (s *Server) handleFramesWS(c *websocket.Conn) {
	client := hub.NewClient(s.frames, c)
	client.Run()
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
