// Package app wires audio capture, the avatar resolver and the renderers
// into one running tuber.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-tuber/internal/config"
	"github.com/teslashibe/go-tuber/internal/log"
	"github.com/teslashibe/go-tuber/pkg/audioio"
	"github.com/teslashibe/go-tuber/pkg/avatar"
	"github.com/teslashibe/go-tuber/pkg/keys"
	"github.com/teslashibe/go-tuber/pkg/metrics"
	"github.com/teslashibe/go-tuber/pkg/protocol"
	"github.com/teslashibe/go-tuber/pkg/remote"
	"github.com/teslashibe/go-tuber/pkg/term"
	"github.com/teslashibe/go-tuber/pkg/web"
)

// staleAfter is how long a level reading counts before it reads as silence.
const staleAfter = 250 * time.Millisecond

// Options selects optional parts of the app.
type Options struct {
	// Term shows the terminal preview and reads hotkeys from the keyboard.
	Term bool
	// Watch reloads the config file when it changes.
	Watch bool
	// NoServer skips the HTTP server.
	NoServer bool
}

// App is the tuber orchestrator.
// It manages all components and their lifecycle.
type App struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	metrics *metrics.Metrics
	tracker *keys.Tracker

	// Audio
	source    audioio.Source
	remoteSrc *audioio.RemoteSource
	meters    []*audioio.Meter

	// Avatar; only the frame loop touches the resolver
	resolver *avatar.Resolver
	gain     float32
	fps      int

	// Renderers
	web     *web.Server
	ingest  *remote.Ingest
	preview *term.Preview
	watcher *config.Watcher

	latches chan latchRequest
	reloads chan *config.Config

	// Published state, read by request goroutines
	mu       sync.RWMutex
	registry *avatar.Registry
	hello    protocol.HelloData
	state    avatar.State
	last     avatar.Frame
	seq      uint64
}

type latchRequest struct {
	change avatar.Change
	reply  chan avatar.State
}

// New creates an app for cfg. cfg must already be validated.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	return &App{
		cfg:     cfg,
		opts:    opts,
		logger:  log.With("component", "app"),
		metrics: metrics.New(),
		tracker: keys.NewTracker(),
		latches: make(chan latchRequest),
		reloads: make(chan *config.Config, 1),
	}, nil
}

// Init builds every component. Call this after New() and before Run().
func (a *App) Init() error {
	reg, err := a.cfg.Registry()
	if err != nil {
		return fmt.Errorf("moods: %w", err)
	}
	if err := a.initAvatar(reg); err != nil {
		return err
	}
	if err := a.initAudio(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if !a.opts.NoServer {
		a.initServer()
	}
	if a.opts.Term {
		a.preview, err = term.Open(a.tracker, a.cfg.Bindings().Keys())
		if err != nil {
			return err
		}
	}
	if a.opts.Watch && a.cfg.Path != "" {
		a.watcher, err = config.NewWatcher(a.cfg.Path, a.cfg, a.onConfigChange,
			config.WithWatchLogger(a.logger))
		if err != nil {
			return err
		}
	}

	a.logger.Info("tuber ready",
		"moods", reg.Count(),
		"default", reg.DefaultName(),
		"fps", a.fps,
		"gain_db", a.gain,
	)
	return nil
}

func (a *App) initAvatar(reg *avatar.Registry) error {
	bindings := a.cfg.Bindings()
	a.resolver = avatar.NewResolver(a.cfg.AvatarTuning(), reg, bindings,
		avatar.WithInitial(a.cfg.InitialState()))
	a.gain = a.cfg.Avatar.GainDB
	a.fps = a.cfg.Avatar.FPS
	a.publishConfig(reg, bindings, a.fps)
	return nil
}

func (a *App) initAudio() error {
	audioCfg := a.cfg.AudioIO()
	slogger := log.L()

	if audioCfg.Backend == audioio.BackendRemote || a.cfg.Remote.Enabled {
		rc := audioCfg
		rc.Backend = audioio.BackendRemote
		a.remoteSrc = audioio.NewRemoteSource(rc, slogger)
		a.meters = append(a.meters, audioio.NewMeter(a.remoteSrc, audioio.NewLevel(), slogger))
	}
	if audioCfg.Backend != audioio.BackendRemote {
		src, err := audioio.NewSource(audioCfg, slogger)
		if err != nil {
			return err
		}
		a.source = src
		a.meters = append(a.meters, audioio.NewMeter(src, audioio.NewLevel(), slogger))
	}
	return nil
}

func (a *App) initServer() {
	a.web = web.NewServer(a, web.Options{
		AssetsDir: a.cfg.Server.AssetsDir,
		Overlay:   a.cfg.Server.Overlay,
		Metrics:   a.metrics.Handler(),
		Logger:    log.L(),
	})
	if a.remoteSrc != nil {
		a.ingest = remote.NewIngest(a.remoteSrc,
			remote.WithToken(a.cfg.Remote.Token),
			remote.WithLogger(log.L()),
			remote.WithMetrics(a.metrics),
		)
		a.ingest.RegisterRoutes(a.web.App())
		a.ingest.RegisterAPIRoutes(a.web.App().Group("/api"))
	}
}

// Run starts capture, serving and the frame loop, and blocks until ctx is
// cancelled, the preview is closed or a component fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.source != nil {
		if err := a.source.Start(ctx); err != nil {
			return fmt.Errorf("audio: %w", err)
		}
	}
	if a.remoteSrc != nil {
		if err := a.remoteSrc.Start(ctx); err != nil {
			return fmt.Errorf("remote audio: %w", err)
		}
	}

	var (
		wg   sync.WaitGroup
		once sync.Once
		fail error
	)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			switch {
			case errors.Is(err, term.ErrQuit):
				a.logger.Info("preview closed")
			case err != nil && ctx.Err() == nil:
				once.Do(func() { fail = fmt.Errorf("%s: %w", name, err) })
			default:
				return
			}
			cancel()
		}()
	}

	for _, m := range a.meters {
		spawn("meter", m.Run)
	}
	if a.web != nil {
		addr := a.cfg.Server.Addr()
		spawn("server", func(ctx context.Context) error { return a.web.Run(ctx, addr) })
	}
	if a.watcher != nil {
		spawn("watcher", a.watcher.Run)
	}
	if a.preview != nil {
		spawn("preview", a.preview.Run)
	}
	spawn("frames", func(ctx context.Context) error {
		a.loop(ctx)
		return nil
	})

	<-ctx.Done()
	wg.Wait()
	return fail
}

// Shutdown releases the audio devices.
func (a *App) Shutdown() {
	if a.source != nil {
		a.source.Stop()
		if c, ok := a.source.(interface{ Close() error }); ok {
			c.Close()
		}
	}
	if a.remoteSrc != nil {
		a.remoteSrc.Close()
	}
	a.logger.Info("tuber stopped")
}

// Metrics returns the app's collectors.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Loudness returns the current input level in dBFS before gain: the loudest
// fresh reading across all sources.
func (a *App) Loudness(now time.Time) float32 {
	loudest := audioio.Silence
	for _, m := range a.meters {
		lvl := m.Level()
		if now.Sub(lvl.Updated()) > staleAfter {
			continue
		}
		if db := lvl.Get(); db > loudest {
			loudest = db
		}
	}
	return loudest
}

// loop is the frame loop. It is the only goroutine that touches the
// resolver.
func (a *App) loop(ctx context.Context) {
	ticker := time.NewTicker(frameInterval(a.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-a.latches:
			st := a.resolver.Latch(req.change)
			a.setState(st)
			req.reply <- st
			a.logger.Info("expression latched", "change", req.change.String(), "head", st.Head, "eyes", st.Eyes)

		case cfg := <-a.reloads:
			if fps := a.applyConfig(cfg); fps != a.fps {
				a.fps = fps
				ticker.Reset(frameInterval(fps))
			}

		case now := <-ticker.C:
			a.step(now)
		}
	}
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Second / time.Duration(fps)
}

// step resolves and publishes one frame.
func (a *App) step(now time.Time) avatar.Frame {
	start := time.Now()

	db := a.Loudness(now)
	if !math.IsInf(float64(db), 0) && !math.IsNaN(float64(db)) {
		db += a.gain
	}
	frame := a.resolver.Step(avatar.Input{
		Now:      now,
		Loudness: db,
		Keys:     a.tracker.Snapshot(),
	})
	ev := a.resolver.Events()

	a.mu.Lock()
	a.seq++
	seq := a.seq
	a.last = frame
	a.mu.Unlock()

	if ev.Switched {
		a.setState(a.resolver.State())
	}
	if ev.TierChanged {
		a.logger.Debug("tier", "tier", frame.Tier, "dbfs", db)
	}

	if a.web != nil {
		a.web.PublishFrame(frame, seq)
		frames := a.web.Frames()
		a.metrics.OverlayClients.Set(float64(frames.ClientCount()))
		a.metrics.OverlayDropped.Set(float64(frames.Dropped()))
	}
	if a.preview != nil {
		a.preview.Publish(frame)
	}
	a.metrics.ObserveFrame(frame, ev, time.Since(start))
	return frame
}

func (a *App) setState(st avatar.State) {
	a.mu.Lock()
	changed := a.state != st
	a.state = st
	a.mu.Unlock()
	if changed && a.web != nil {
		a.web.PublishStatus(st)
	}
}

// publishConfig refreshes what request goroutines see of the config.
func (a *App) publishConfig(reg *avatar.Registry, b avatar.Bindings, fps int) {
	st := a.resolver.State()
	a.mu.Lock()
	a.registry = reg
	a.state = st
	a.hello = protocol.HelloData{
		Moods: reg.List(),
		Head:  st.Head,
		Eyes:  st.Eyes,
		Keys:  b.Keys(),
		FPS:   fps,
	}
	a.mu.Unlock()
	a.tracker.Restrict(b.Keys())
}
