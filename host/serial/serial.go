package serial

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush discards data received but not read
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate of the firmware console UART
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the console settings the firmware boots with
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200, // Console UART after clock bring-up
		ReadTimeout: 100,    // 100ms read timeout
	}
}

// Prompt the firmware console prints when it is ready for a line
const Prompt = "cmd > "

var (
	ErrNilConfig = errors.New("config cannot be nil")
	ErrTimeout   = errors.New("timed out waiting for prompt")
)

// Exchange sends one command line and returns the reply up to the next
// prompt, with CRLF line endings normalised. A port whose reads time out
// returns (0, nil); Exchange keeps polling until the deadline.
func Exchange(p Port, line string, timeout time.Duration) (string, error) {
	if _, err := io.WriteString(p, line+"\r\n"); err != nil {
		return "", fmt.Errorf("write %q: %w", line, err)
	}

	var reply bytes.Buffer
	buf := make([]byte, 256)
	deadline := time.Now().Add(timeout)
	for !bytes.HasSuffix(reply.Bytes(), []byte(Prompt)) {
		if time.Now().After(deadline) {
			return reply.String(), ErrTimeout
		}
		n, err := p.Read(buf)
		reply.Write(buf[:n])
		if err == io.EOF {
			return reply.String(), io.ErrUnexpectedEOF
		}
		if err != nil {
			return reply.String(), err
		}
	}

	text := strings.TrimSuffix(reply.String(), Prompt)
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}
