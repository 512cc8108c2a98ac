package avatar

import "fmt"

// State is the mood selection for each animated region.
type State struct {
	Head string `json:"head"`
	Eyes string `json:"eyes"`
}

// Change is a partial mood selection. A nil axis leaves that region as is.
type Change struct {
	Head *string `yaml:"head,omitempty" json:"head,omitempty"`
	Eyes *string `yaml:"eyes,omitempty" json:"eyes,omitempty"`
}

// ChangeBoth returns a Change setting both regions.
func ChangeBoth(head, eyes string) Change {
	return Change{Head: &head, Eyes: &eyes}
}

// ChangeHead returns a Change that only sets the head.
func ChangeHead(head string) Change {
	return Change{Head: &head}
}

// ChangeEyes returns a Change that only sets the eyes.
func ChangeEyes(eyes string) Change {
	return Change{Eyes: &eyes}
}

// IsZero reports whether the change sets nothing.
func (c Change) IsZero() bool {
	return c.Head == nil && c.Eyes == nil
}

// String renders the change for logs.
func (c Change) String() string {
	head, eyes := "-", "-"
	if c.Head != nil {
		head = *c.Head
	}
	if c.Eyes != nil {
		eyes = *c.Eyes
	}
	return fmt.Sprintf("head=%s eyes=%s", head, eyes)
}

// Apply merges c into s and returns the result.
func Apply(s State, c Change) State {
	if c.Head != nil {
		s.Head = *c.Head
	}
	if c.Eyes != nil {
		s.Eyes = *c.Eyes
	}
	return s
}

// Binding ties a key to a mood change.
type Binding struct {
	Key    string
	Change Change
}

// Bindings is the hotkey table. Order matters: when several bindings fire
// in the same frame, the earliest one in the table wins.
type Bindings struct {
	Switches   []Binding
	Holds      []Binding
	ForceBlink string
}

// Validate rejects keys bound more than once and empty changes.
func (b Bindings) Validate() error {
	seen := make(map[string]string)
	check := func(kind, key string) error {
		if key == "" {
			return fmt.Errorf("%s binding has an empty key", kind)
		}
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q as %s and %s", ErrDuplicateBinding, key, prev, kind)
		}
		seen[key] = kind
		return nil
	}
	for _, s := range b.Switches {
		if err := check("switch", s.Key); err != nil {
			return err
		}
		if s.Change.IsZero() {
			return fmt.Errorf("switch %q changes nothing", s.Key)
		}
	}
	for _, h := range b.Holds {
		if err := check("hold", h.Key); err != nil {
			return err
		}
		if h.Change.IsZero() {
			return fmt.Errorf("hold %q changes nothing", h.Key)
		}
	}
	if b.ForceBlink != "" {
		if err := check("force_blink", b.ForceBlink); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists every bound key in table order.
func (b Bindings) Keys() []string {
	keys := make([]string, 0, len(b.Switches)+len(b.Holds)+1)
	for _, s := range b.Switches {
		keys = append(keys, s.Key)
	}
	for _, h := range b.Holds {
		keys = append(keys, h.Key)
	}
	if b.ForceBlink != "" {
		keys = append(keys, b.ForceBlink)
	}
	return keys
}

// Selection is the outcome of one Selector frame.
type Selection struct {
	// State is what to draw this frame.
	State State
	// Latched is the stored selection after any switch.
	Latched State
	// Switched is true when a switch key latched a new selection.
	Switched bool
	// Override is true when a hold key shaped State.
	Override bool
	// ForceBlink is true while the force-blink key is held.
	ForceBlink bool
}

// Selector turns hotkey state into a mood selection.
type Selector struct {
	bindings Bindings
	latched  State
}

// NewSelector creates a selector latched to initial.
func NewSelector(b Bindings, initial State) *Selector {
	return &Selector{bindings: b, latched: initial}
}

// Latched returns the stored selection.
func (s *Selector) Latched() State {
	return s.latched
}

// Latch applies c to the stored selection, as a switch key would.
func (s *Selector) Latch(c Change) State {
	s.latched = Apply(s.latched, c)
	return s.latched
}

// SetBindings replaces the hotkey table, keeping the latched selection.
func (s *Selector) SetBindings(b Bindings) {
	s.bindings = b
}

// OnFrame resolves the selection for one frame. A switch press latches;
// a held hold key overrides the drawn state for this frame only.
func (s *Selector) OnFrame(keys KeyState) Selection {
	if keys == nil {
		keys = NoKeys
	}
	sel := Selection{}

	for _, b := range s.bindings.Switches {
		if keys.Pressed(b.Key) {
			s.latched = Apply(s.latched, b.Change)
			sel.Switched = true
			break
		}
	}

	sel.Latched = s.latched
	sel.State = s.latched
	for _, b := range s.bindings.Holds {
		if keys.Down(b.Key) {
			sel.State = Apply(s.latched, b.Change)
			sel.Override = true
			break
		}
	}

	if s.bindings.ForceBlink != "" {
		sel.ForceBlink = keys.Down(s.bindings.ForceBlink)
	}
	return sel
}
