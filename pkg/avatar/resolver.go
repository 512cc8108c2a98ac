package avatar

import (
	"math/rand/v2"
	"time"
)

// Input is what the frame loop feeds the resolver each frame.
type Input struct {
	Now      time.Time
	Loudness float32
	Keys     KeyState
}

// Events reports what changed during a Step, for metrics and logs.
type Events struct {
	TierChanged bool
	Onset       bool
	Pop         bool
	Blinked     bool
	Switched    bool
}

// Resolver runs the per-frame pipeline: classify loudness, trigger pops,
// select moods, schedule blinks and resolve art.
type Resolver struct {
	cfg      Config
	registry *Registry

	classifier *Classifier
	animator   *Animator
	blinker    *Blinker
	selector   *Selector

	lastEyes string
	last     Frame
	events   Events
}

// Option configures a Resolver.
type Option func(*resolverOptions)

type resolverOptions struct {
	start   time.Time
	rng     *rand.Rand
	initial *State
}

// WithStart sets the clock origin for breathing and the first blink.
func WithStart(t time.Time) Option {
	return func(o *resolverOptions) { o.start = t }
}

// WithRand sets the random source used for blink delays.
func WithRand(r *rand.Rand) Option {
	return func(o *resolverOptions) { o.rng = r }
}

// WithInitial sets the initially latched selection. By default both regions
// start on the registry default mood.
func WithInitial(s State) Option {
	return func(o *resolverOptions) { o.initial = &s }
}

// NewResolver wires the four trackers together.
func NewResolver(cfg Config, reg *Registry, b Bindings, opts ...Option) *Resolver {
	o := resolverOptions{start: time.Now()}
	for _, opt := range opts {
		opt(&o)
	}
	initial := State{Head: reg.DefaultName(), Eyes: reg.DefaultName()}
	if o.initial != nil {
		initial = *o.initial
	}
	r := &Resolver{
		cfg:        cfg,
		registry:   reg,
		classifier: NewClassifier(cfg),
		animator:   NewAnimator(cfg, o.start),
		blinker:    NewBlinker(cfg, o.start, o.rng),
		selector:   NewSelector(b, initial),
	}
	if m := reg.ResolveEyes(initial.Eyes); m != nil {
		r.lastEyes = m.Name
	}
	return r
}

// Step computes the frame for in.
func (r *Resolver) Step(in Input) Frame {
	now := in.Now
	ev := Events{}

	prevTier := r.classifier.Tier()
	tier, onset := r.classifier.Classify(in.Loudness, now)
	ev.TierChanged = tier != prevTier
	ev.Onset = onset
	if onset {
		ev.Pop = r.animator.Trigger(now)
	}
	scale := r.animator.Scale(now)

	sel := r.selector.OnFrame(in.Keys)
	ev.Switched = sel.Switched

	eyeMood := r.registry.ResolveEyes(sel.State.Eyes)
	eyeName := ""
	if eyeMood != nil {
		eyeName = eyeMood.Name
	}
	if eyeName != r.lastEyes {
		r.blinker.Reset(now)
		r.lastEyes = eyeName
	}
	lastBlink := r.blinker.LastBlink()
	phase := r.blinker.Update(now, sel.ForceBlink)
	ev.Blinked = !r.blinker.LastBlink().Equal(lastBlink)

	headName, headImg := r.registry.HeadImage(sel.State.Head, tier)
	_, eyeImg := r.registry.EyeImage(sel.State.Eyes, phase)

	r.events = ev
	r.last = Frame{
		Time:      now,
		Loudness:  in.Loudness,
		Tier:      tier,
		HeadMood:  headName,
		EyeMood:   eyeName,
		HeadImage: headImg,
		EyeImage:  eyeImg,
		Blink:     phase,
		Scale:     scale,
		Override:  sel.Override,
	}
	return r.last
}

// Latch applies a switch that did not come from the hotkey table.
func (r *Resolver) Latch(c Change) State {
	return r.selector.Latch(c)
}

// State returns the latched selection.
func (r *Resolver) State() State {
	return r.selector.Latched()
}

// Last returns the most recent frame.
func (r *Resolver) Last() Frame {
	return r.last
}

// Events returns what changed during the most recent Step.
func (r *Resolver) Events() Events {
	return r.events
}

// Config returns the active tuning.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Registry returns the active mood registry.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// MaxDeviation is the largest |scale - 1| this resolver can emit.
func (r *Resolver) MaxDeviation() float64 {
	return r.animator.MaxDeviation()
}

// Reconfigure swaps tuning, moods and bindings between frames. The latched
// selection survives when its moods still exist; otherwise that region
// returns to the new default mood. Blink and breathing timing carry over.
func (r *Resolver) Reconfigure(cfg Config, reg *Registry, b Bindings) {
	latched := r.selector.Latched()
	if !reg.Has(latched.Head) {
		latched.Head = reg.DefaultName()
	}
	if !reg.Has(latched.Eyes) {
		latched.Eyes = reg.DefaultName()
	}

	committed := r.classifier.committed
	lastChange := r.classifier.lastChange
	r.classifier = NewClassifier(cfg)
	r.classifier.committed = committed
	r.classifier.lastChange = lastChange

	r.animator.cfg = cfg
	r.blinker.minDelay = cfg.BlinkMinDelay
	r.blinker.maxDelay = cfg.BlinkMaxDelay
	r.blinker.duration = cfg.BlinkDuration

	r.cfg = cfg
	r.registry = reg
	r.selector = NewSelector(b, latched)
}
