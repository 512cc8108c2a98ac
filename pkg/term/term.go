// Package term renders a live text preview of the avatar in the terminal
// and feeds the keyboard into the hotkey tracker.
package term

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/teslashibe/go-tuber/pkg/avatar"
	"github.com/teslashibe/go-tuber/pkg/keys"
)

// ErrQuit is returned by Run when the user asks to quit.
var ErrQuit = errors.New("term: quit")

const (
	meterWidth = 40
	meterFloor = -60.0 // dBFS at the left edge of the meter
)

// Preview draws frames on a tcell screen.
type Preview struct {
	screen  tcell.Screen
	tracker *keys.Tracker
	hotkeys []string

	frames chan avatar.Frame

	mu   sync.Mutex
	last avatar.Frame
}

// Open initialises the terminal and returns a preview on it.
func Open(tracker *keys.Tracker, hotkeys []string) (*Preview, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("term: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("term: %w", err)
	}
	return New(screen, tracker, hotkeys), nil
}

// New wraps an initialised screen.
func New(screen tcell.Screen, tracker *keys.Tracker, hotkeys []string) *Preview {
	return &Preview{
		screen:  screen,
		tracker: tracker,
		hotkeys: hotkeys,
		frames:  make(chan avatar.Frame, 1),
	}
}

// Publish queues a frame for drawing. Only the newest frame is kept.
func (p *Preview) Publish(f avatar.Frame) {
	select {
	case p.frames <- f:
		return
	default:
	}
	select {
	case <-p.frames:
	default:
	}
	select {
	case p.frames <- f:
	default:
	}
}

// Run handles input and draws frames until ctx is cancelled or the user
// presses Esc or Ctrl-C. The screen is finalised on return.
func (p *Preview) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	go func() {
		defer close(events)
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()
	defer p.screen.Fini()

	p.draw()
	for {
		select {
		case <-ctx.Done():
			return nil

		case f := <-p.frames:
			p.mu.Lock()
			p.last = f
			p.mu.Unlock()
			p.draw()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
					return ErrQuit
				}
				if name := KeyName(ev); name != "" {
					p.tracker.Tap(name)
				}
			case *tcell.EventResize:
				p.screen.Sync()
				p.draw()
			}
		}
	}
}

// KeyName maps a tcell key event to the name used in hotkey tables:
// "F1", "Enter", "Space", or the character itself.
func KeyName(ev *tcell.EventKey) string {
	if ev.Key() == tcell.KeyRune {
		switch r := ev.Rune(); r {
		case ' ':
			return "Space"
		default:
			return string(r)
		}
	}
	return tcell.KeyNames[ev.Key()]
}

var (
	styleLabel = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleValue = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleHold  = tcell.StyleDefault.Foreground(tcell.ColorOrange)
)

func tierStyle(t avatar.Tier) tcell.Style {
	switch t {
	case avatar.TierHalfSpeak:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case avatar.TierFullSpeak:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case avatar.TierYell:
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorBlue)
	}
}

func (p *Preview) draw() {
	p.mu.Lock()
	f := p.last
	p.mu.Unlock()

	s := p.screen
	s.Clear()

	p.text(0, 0, styleValue, "go-tuber")
	p.text(10, 0, styleLabel, "Esc quits")

	p.text(0, 2, styleLabel, "tier")
	p.text(8, 2, tierStyle(f.Tier), strings.ToUpper(f.Tier.String()))
	p.text(16, 2, styleLabel, formatDBFS(f.Loudness))
	p.meter(30, 2, f)

	p.text(0, 3, styleLabel, "head")
	p.text(8, 3, styleValue, f.HeadMood)
	p.text(24, 3, styleLabel, f.HeadImage)

	p.text(0, 4, styleLabel, "eyes")
	p.text(8, 4, styleValue, f.EyeMood)
	p.text(24, 4, styleLabel, f.EyeImage)
	if f.Blink == avatar.BlinkClosed {
		p.text(60, 4, styleHold, "blink")
	}

	p.text(0, 5, styleLabel, "scale")
	p.text(8, 5, styleValue, fmt.Sprintf("x %.3f  y %.3f", f.Scale.X, f.Scale.Y))
	if f.Override {
		p.text(30, 5, styleHold, "hold")
	}

	p.text(0, 7, styleLabel, "keys")
	p.text(8, 7, styleValue, strings.Join(p.hotkeys, " "))

	s.Show()
}

func (p *Preview) meter(x, y int, f avatar.Frame) {
	filled := 0
	if db := float64(f.Loudness); !math.IsNaN(db) && db > meterFloor {
		filled = int(math.Round((db - meterFloor) / -meterFloor * meterWidth))
		filled = min(filled, meterWidth)
	}
	style := tierStyle(f.Tier)
	for i := 0; i < meterWidth; i++ {
		r := '·'
		if i < filled {
			r = '█'
		}
		p.screen.SetContent(x+i, y, r, nil, style)
	}
}

func (p *Preview) text(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		p.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func formatDBFS(db float32) string {
	if math.IsInf(float64(db), -1) || math.IsNaN(float64(db)) {
		return "  -inf dBFS"
	}
	return fmt.Sprintf("%6.1f dBFS", db)
}
