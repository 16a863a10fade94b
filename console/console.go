package console

import (
	"bufio"
	"errors"
	"io"

	"github.com/google/shlex"
)

// Defaults for the prompt and the unknown-command reply.
const (
	DefaultPrompt   = "cmd > "
	DefaultNotFound = "Command not found"
)

// Console reads command lines from r and writes replies to w.
type Console struct {
	r        io.Reader
	w        io.Writer
	registry *Registry

	Prompt   string
	NotFound string
}

// New creates a console over a byte stream, typically a UART.
func New(r io.Reader, w io.Writer, registry *Registry) *Console {
	return &Console{
		r:        r,
		w:        w,
		registry: registry,
		Prompt:   DefaultPrompt,
		NotFound: DefaultNotFound,
	}
}

// Registry returns the command registry backing the console.
func (c *Console) Registry() *Registry {
	return c.registry
}

// WritePrompt prints the prompt.
func (c *Console) WritePrompt() {
	io.WriteString(c.w, c.Prompt)
}

// Execute runs one line. Unknown commands and command errors are reported
// on the output; the returned error is the same one, for callers that care.
func (c *Console) Execute(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		io.WriteString(c.w, "error: "+err.Error()+"\r\n")
		return err
	}
	if len(args) == 0 {
		return nil
	}

	err = c.registry.Dispatch(c.w, args)
	switch {
	case errors.Is(err, ErrCommandNotFound):
		io.WriteString(c.w, c.NotFound+"\r\n")
	case err != nil:
		io.WriteString(c.w, "error: "+err.Error()+"\r\n")
	}
	return err
}

// Run prompts, reads and executes lines until the reader is exhausted.
func (c *Console) Run() error {
	scanner := bufio.NewScanner(c.r)
	c.WritePrompt()
	for scanner.Scan() {
		c.Execute(scanner.Text())
		c.WritePrompt()
	}
	return scanner.Err()
}
