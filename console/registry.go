// Package console is a line-oriented command interpreter for the firmware
// UART. Commands are looked up by name and receive their arguments already
// split with shell quoting rules.
package console

import (
	"errors"
	"io"
	"sort"
	"sync"
)

// ErrCommandNotFound is returned by Dispatch for an unregistered name.
var ErrCommandNotFound = errors.New("command not found")

// Handler runs one command. args[0] is the command name.
type Handler func(w io.Writer, args []string) error

// Command is a registered console command.
type Command struct {
	Name    string
	Usage   string // argument synopsis for help, e.g. "<msi|hsi> <on|off>"
	Handler Handler
}

// Registry holds the console commands
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
	}
}

// Register adds a command. Registering a name twice replaces the handler.
func (r *Registry) Register(name string, usage string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands[name] = &Command{
		Name:    name,
		Usage:   usage,
		Handler: handler,
	}
}

// Get retrieves a command by name
func (r *Registry) Get(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Commands returns every command sorted by name
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Dispatch calls the handler registered for args[0]
func (r *Registry) Dispatch(w io.Writer, args []string) error {
	if len(args) == 0 {
		return nil
	}
	cmd, ok := r.Get(args[0])
	if !ok {
		return ErrCommandNotFound
	}
	return cmd.Handler(w, args)
}
