package app

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-tuber/internal/config"
	"github.com/teslashibe/go-tuber/internal/log"
	"github.com/teslashibe/go-tuber/pkg/avatar"
	"github.com/teslashibe/go-tuber/pkg/protocol"
)

// Hello implements web.Controller.
func (a *App) Hello() protocol.HelloData {
	a.mu.RLock()
	defer a.mu.RUnlock()
	h := a.hello
	h.Head, h.Eyes = a.state.Head, a.state.Eyes
	return h
}

// Snapshot implements web.Controller.
func (a *App) Snapshot() (avatar.State, avatar.Frame, uint64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state, a.last, a.seq
}

// Moods implements web.Controller.
func (a *App) Moods() []avatar.Mood {
	a.mu.RLock()
	reg := a.registry
	a.mu.RUnlock()
	return reg.Moods()
}

// Key implements web.Controller. Overlay clients report real releases, so
// keys are set rather than tapped.
func (a *App) Key(key string, down bool) {
	a.tracker.Set(key, down)
}

// Latch asks the frame loop to apply c and waits for the new selection.
// Moods must exist; unlike hotkeys, requests are checked up front.
func (a *App) Latch(ctx context.Context, c avatar.Change) (avatar.State, error) {
	a.mu.RLock()
	reg := a.registry
	a.mu.RUnlock()
	for _, name := range []*string{c.Head, c.Eyes} {
		if name != nil && !reg.Has(*name) {
			return avatar.State{}, fmt.Errorf("%w: %s", avatar.ErrUnknownMood, *name)
		}
	}

	req := latchRequest{change: c, reply: make(chan avatar.State, 1)}
	select {
	case a.latches <- req:
	case <-ctx.Done():
		return avatar.State{}, ctx.Err()
	}
	select {
	case st := <-req.reply:
		return st, nil
	case <-ctx.Done():
		return avatar.State{}, ctx.Err()
	}
}

// onConfigChange runs on the watcher goroutine and hands the new config
// to the frame loop, replacing any reload still pending.
func (a *App) onConfigChange(_, cfg *config.Config) {
	select {
	case a.reloads <- cfg:
		return
	default:
	}
	select {
	case <-a.reloads:
	default:
	}
	select {
	case a.reloads <- cfg:
	default:
	}
}

// applyConfig swaps tuning, moods and hotkeys between frames and returns
// the frame rate to run at. Server and audio settings need a restart.
func (a *App) applyConfig(cfg *config.Config) int {
	reg, err := cfg.Registry()
	a.metrics.ObserveReload(err)
	if err != nil {
		a.logger.Warn("reload rejected, keeping current moods", "error", err)
		return a.fps
	}

	if cfg.Server != a.cfg.Server {
		a.logger.Warn("server settings changed; restart to apply")
	}
	if cfg.Audio != a.cfg.Audio || cfg.Remote != a.cfg.Remote {
		a.logger.Warn("audio settings changed; restart to apply")
	}

	bindings := cfg.Bindings()
	a.resolver.Reconfigure(cfg.AvatarTuning(), reg, bindings)
	a.gain = cfg.Avatar.GainDB
	log.SetLevel(cfg.Log.Level)
	a.cfg = cfg

	a.publishConfig(reg, bindings, cfg.Avatar.FPS)
	if a.web != nil {
		a.web.PublishStatus(a.resolver.State())
	}
	a.logger.Info("config applied",
		"moods", reg.Count(),
		"head", a.resolver.State().Head,
		"eyes", a.resolver.State().Eyes,
	)
	return cfg.Avatar.FPS
}
