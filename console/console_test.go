package console

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"clkhal/clock"
	"clkhal/hal/stm32l4"
	"clkhal/hal/stm32l4/sim"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	var called bool
	r.Register("test_command", "<arg>", func(w io.Writer, args []string) error {
		called = true
		if len(args) != 2 || args[1] != "x" {
			t.Errorf("Expected args [test_command x], got %v", args)
		}
		return nil
	})

	if r.Count() != 1 {
		t.Errorf("Expected 1 command, got %d", r.Count())
	}
	cmd, ok := r.Get("test_command")
	if !ok {
		t.Fatal("Failed to retrieve registered command")
	}
	if cmd.Usage != "<arg>" {
		t.Errorf("Expected usage '<arg>', got '%s'", cmd.Usage)
	}

	if err := r.Dispatch(io.Discard, []string{"test_command", "x"}); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Handler was not called")
	}

	if err := r.Dispatch(io.Discard, []string{"nope"}); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("Expected ErrCommandNotFound, got %v", err)
	}
	if err := r.Dispatch(io.Discard, nil); err != nil {
		t.Errorf("Expected empty dispatch to be a no-op, got %v", err)
	}
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()
	r.Register("a", "", func(io.Writer, []string) error { return errors.New("first") })
	r.Register("a", "", func(io.Writer, []string) error { return nil })

	if r.Count() != 1 {
		t.Errorf("Expected 1 command after replacement, got %d", r.Count())
	}
	if err := r.Dispatch(io.Discard, []string{"a"}); err != nil {
		t.Errorf("Expected the replacement handler, got %v", err)
	}
}

func newTestConsole(input string) (*Console, *bytes.Buffer, *sim.Simulator) {
	s := sim.New()
	c := clock.New(stm32l4.New(s.Peripherals()))

	r := NewRegistry()
	RegisterHelp(r)
	RegisterClockCommands(r, c)

	out := &bytes.Buffer{}
	return New(strings.NewReader(input), out, r), out, s
}

func TestConsoleRun(t *testing.T) {
	con, out, s := newTestConsole("led on\n\nstatus\n")
	if err := con.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	text := out.String()
	if !strings.HasPrefix(text, "cmd > Command not found\r\n") {
		t.Errorf("Expected prompt then not-found reply, got %q", text)
	}
	if !strings.Contains(text, "sysclk msi 4MHz\r\n") {
		t.Errorf("Expected status output, got %q", text)
	}
	if strings.Count(text, DefaultPrompt) != 4 {
		t.Errorf("Expected 4 prompts, got %q", text)
	}
	if len(s.Writes()) != 0 {
		t.Errorf("Status must not write registers, got %d writes", len(s.Writes()))
	}
}

func TestConsoleClockSession(t *testing.T) {
	session := strings.Join([]string{
		"osc hsi on",
		"pll hsi 1 10 2",
		"sysclk pll 1 2 1",
		"history",
	}, "\n")
	con, out, s := newTestConsole(session)
	if err := con.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	text := out.String()
	t.Logf("Session output:\n%s", text)

	for _, want := range []string{
		"hsi on\r\n",
		"pll 80MHz\r\n",
		"sysclk pll 80MHz\r\n",
		"hclk 80MHz pclk1 40MHz pclk2 80MHz\r\n",
		"vos range1 latency 4ws\r\n",
		"#1 increase msi 4MHz -> pll 80MHz range1 4ws\r\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output", want)
		}
	}
	if len(s.Violations()) != 0 {
		t.Errorf("Unexpected violations: %v", s.Violations())
	}
}

func TestConsoleArgumentErrors(t *testing.T) {
	con, out, _ := newTestConsole("")

	tests := []struct {
		line string
		want string
	}{
		{"osc", "error: usage: osc"},
		{"osc hse on", "error: bad argument \"hse\""},
		{"osc msi on 5000000", "error: bad argument: no msi range at 5MHz"},
		{"pll hsi 1 300 2", "error: bad argument \"300\""},
		{"pll hsi 1 200 2", "error: invalid PLL configuration: n=200"},
		{"pll hsi 1 10 3", "error: invalid PLL configuration: r=3"},
		{"sysclk lsi", "error: bad argument: lsi cannot drive sysclk"},
		{"sysclk hsi", "error: hsi not running"},
		{"sysclk msi 3 1 1", "error: bad argument: ahb /3"},
		{"lpr on", "error: low-power run refused: sysclk too high: 4MHz"},
		{"lpr maybe", "error: usage: lpr <on|off>"},
		{"osc msi 'on", "error: "},
	}

	for _, tt := range tests {
		out.Reset()
		err := con.Execute(tt.line)
		if err == nil {
			t.Errorf("%q: expected an error", tt.line)
			continue
		}
		if !strings.HasPrefix(out.String(), tt.want) {
			t.Errorf("%q: expected output starting %q, got %q", tt.line, tt.want, out.String())
		}
	}
}

func TestConsoleLowPowerRun(t *testing.T) {
	con, out, _ := newTestConsole("")

	for _, line := range []string{
		"osc hsi on",
		"sysclk hsi",
		"osc msi on 1000000",
		"sysclk msi",
		"lpr on",
		"status",
		"lpr off",
	} {
		if err := con.Execute(line); err != nil {
			t.Fatalf("%q failed: %v\n%s", line, err, out.String())
		}
	}
	if !strings.Contains(out.String(), "lpr on\r\n") || !strings.Contains(out.String(), "vos range2 latency 0ws") {
		t.Errorf("Unexpected output %q", out.String())
	}
}

func TestHelp(t *testing.T) {
	con, out, _ := newTestConsole("")
	if err := con.Execute("help"); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\r\n")
	if len(lines) != 7 {
		t.Fatalf("Expected 7 commands, got %d: %v", len(lines), lines)
	}
	if lines[0] != "help" || !strings.HasPrefix(lines[3], "osc ") {
		t.Errorf("Expected sorted listing, got %v", lines)
	}
}

func TestConsoleFatalNotCaught(t *testing.T) {
	con, _, _ := newTestConsole("")
	defer func() {
		r := recover()
		err, _ := r.(error)
		if !errors.Is(err, clock.ErrActiveSource) {
			t.Errorf("Expected ErrActiveSource panic, got %v", r)
		}
	}()
	con.Execute("osc msi off")
}
