// Package keymap maps key presses to command IDs. Bindings are grouped by
// context so a confirmation prompt can reuse keys the browser also binds.
package keymap

import (
	"slices"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const sequenceTimeout = 500 * time.Millisecond

// ContextGlobal bindings apply whenever the active context has no match.
const ContextGlobal = "global"

// Command describes an action the UI can perform.
type Command struct {
	ID          string
	Description string
	Context     string
}

// Binding maps a key or key sequence to a command.
type Binding struct {
	Key     string // e.g. "right", "ctrl+r", "g g"
	Command string // Command ID
	Context string
}

// Registry holds commands and bindings and resolves key presses.
type Registry struct {
	mu            sync.RWMutex
	commands      map[string]Command
	order         []string             // command IDs in registration order
	bindings      map[string][]Binding // context -> bindings
	userOverrides map[string]string    // key -> command ID
	pendingKey    string
	pendingTime   time.Time
	now           func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:      make(map[string]Command),
		bindings:      make(map[string][]Binding),
		userOverrides: make(map[string]string),
		now:           time.Now,
	}
}

// RegisterCommand adds a command to the registry.
func (r *Registry) RegisterCommand(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[cmd.ID]; !ok {
		r.order = append(r.order, cmd.ID)
	}
	r.commands[cmd.ID] = cmd
}

// RegisterBinding adds a key binding.
func (r *Registry) RegisterBinding(b Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[b.Context] = append(r.bindings[b.Context], b)
}

// SetUserOverride binds key to commandID ahead of every context.
func (r *Registry) SetUserOverride(key, commandID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userOverrides[key] = commandID
}

// Resolve returns the command bound to msg in context. A key that starts a
// sequence is held for sequenceTimeout and resolves to nothing on its own.
func (r *Registry) Resolve(msg tea.KeyMsg, context string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := KeyString(msg)

	if r.pendingKey != "" {
		pending := r.pendingKey
		r.pendingKey = ""
		if r.now().Sub(r.pendingTime) < sequenceTimeout {
			if id, ok := r.lookup(pending+" "+key, context); ok {
				return id, true
			}
		}
	}

	if r.isSequenceStart(key, context) {
		r.pendingKey = key
		r.pendingTime = r.now()
		return "", false
	}
	return r.lookup(key, context)
}

// lookup checks user overrides, then context bindings, then global ones.
func (r *Registry) lookup(key, context string) (string, bool) {
	if id, ok := r.userOverrides[key]; ok {
		if _, known := r.commands[id]; known {
			return id, true
		}
	}
	if context != "" && context != ContextGlobal {
		if id, ok := r.findInContext(key, context); ok {
			return id, true
		}
	}
	return r.findInContext(key, ContextGlobal)
}

func (r *Registry) findInContext(key, context string) (string, bool) {
	for _, b := range r.bindings[context] {
		if b.Key == key {
			if _, ok := r.commands[b.Command]; ok {
				return b.Command, true
			}
		}
	}
	return "", false
}

func (r *Registry) isSequenceStart(key, context string) bool {
	prefix := key + " "
	contexts := []string{ContextGlobal}
	if context != "" && context != ContextGlobal {
		contexts = append(contexts, context)
	}
	for _, ctx := range contexts {
		for _, b := range r.bindings[ctx] {
			if strings.HasPrefix(b.Key, prefix) {
				return true
			}
		}
	}
	for k := range r.userOverrides {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// ResetPending clears any pending key sequence.
func (r *Registry) ResetPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingKey = ""
}

// HasPending reports whether a sequence is in progress.
func (r *Registry) HasPending() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pendingKey != "" && r.now().Sub(r.pendingTime) < sequenceTimeout
}

// GetCommand retrieves a command by ID.
func (r *Registry) GetCommand(id string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// HelpEntry is one line of the help overlay.
type HelpEntry struct {
	Keys        []string
	Command     string
	Description string
}

// Help lists the commands of context in registration order together with
// every key that reaches them, user overrides included.
func (r *Registry) Help(context string) []HelpEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []HelpEntry
	for _, id := range r.order {
		cmd := r.commands[id]
		if cmd.Context != context {
			continue
		}
		var keys []string
		for _, b := range r.bindings[context] {
			if b.Command == id {
				keys = append(keys, b.Key)
			}
		}
		for k, target := range r.userOverrides {
			if target == id && !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			continue
		}
		out = append(out, HelpEntry{Keys: keys, Command: id, Description: cmd.Description})
	}
	return out
}

// KeyString converts a key message to the form used in bindings.
func KeyString(msg tea.KeyMsg) string {
	switch msg.Type {
	case tea.KeySpace:
		return "space"
	case tea.KeyRunes:
		if msg.Alt {
			return "alt+" + string(msg.Runes)
		}
		return string(msg.Runes)
	default:
		return msg.String()
	}
}
