package avatar

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultMoodName is the fallback used when no default is configured.
const DefaultMoodName = "normal"

// Registry maps mood names to immutable mood definitions.
//
// Lookups are case-insensitive. Unknown names resolve to the default mood,
// so frame-time lookups never fail.
type Registry struct {
	mu          sync.RWMutex
	moods       map[string]*Mood
	defaultName string
}

// NewRegistry creates an empty registry whose default mood is defaultName.
func NewRegistry(defaultName string) *Registry {
	if defaultName == "" {
		defaultName = DefaultMoodName
	}
	return &Registry{
		moods:       make(map[string]*Mood),
		defaultName: normalizeName(defaultName),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register validates and adds a mood, replacing any mood with the same name.
func (r *Registry) Register(m *Mood) error {
	if m == nil {
		return fmt.Errorf("%w: nil mood", ErrInvalidMood)
	}
	if err := m.Validate(); err != nil {
		return err
	}
	cp := *m
	cp.Name = normalizeName(m.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.moods[cp.Name] = &cp
	return nil
}

// Get retrieves a mood by name.
func (r *Registry) Get(name string) (*Mood, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.moods[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMood, name)
	}
	return m, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// Default returns the default mood, or nil if it was never registered.
func (r *Registry) Default() *Mood {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.moods[r.defaultName]
}

// DefaultName returns the name of the default mood.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// Validate checks that the default mood exists and has both head and eyes.
func (r *Registry) Validate() error {
	d := r.Default()
	if d == nil {
		return fmt.Errorf("%w: default mood %q is not registered", ErrUnknownMood, r.DefaultName())
	}
	if !d.HasHead() || !d.HasEyes() {
		return fmt.Errorf("%w: default mood %q must define head and eyes", ErrInvalidMood, d.Name)
	}
	return nil
}

// resolve returns the mood for name when has reports art for the axis,
// otherwise the default mood.
func (r *Registry) resolve(name string, has func(*Mood) bool) *Mood {
	if m, err := r.Get(name); err == nil && has(m) {
		return m
	}
	return r.Default()
}

// ResolveHead returns the mood whose head art is drawn for name.
func (r *Registry) ResolveHead(name string) *Mood {
	return r.resolve(name, (*Mood).HasHead)
}

// ResolveEyes returns the mood whose eye art is drawn for name.
func (r *Registry) ResolveEyes(name string) *Mood {
	return r.resolve(name, (*Mood).HasEyes)
}

// HeadImage resolves the head art for a mood name at tier.
func (r *Registry) HeadImage(name string, t Tier) (mood string, image string) {
	m := r.ResolveHead(name)
	if m == nil {
		return "", ""
	}
	return m.Name, m.HeadImage(t)
}

// EyeImage resolves the eye art for a mood name at phase.
func (r *Registry) EyeImage(name string, p BlinkPhase) (mood string, image string) {
	m := r.ResolveEyes(name)
	if m == nil {
		return "", ""
	}
	return m.Name, m.EyeImage(p)
}

// List returns all registered mood names, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.moods))
	for name := range r.moods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Moods returns copies of all registered moods, sorted by name.
func (r *Registry) Moods() []Mood {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Mood, 0, len(names))
	for _, name := range names {
		if m, ok := r.moods[name]; ok {
			out = append(out, *m)
		}
	}
	return out
}

// Count returns the number of registered moods.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.moods)
}
