package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"clkhal/host/serial"
)

var (
	serialOpts = struct {
		device  string
		baud    int
		timeout time.Duration
	}{}

	consoleCmd = &cobra.Command{
		Use:   "console",
		Short: "Interactive session with the firmware clock console",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := openConsole()
			if err != nil {
				return err
			}
			defer port.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s. Type 'help' for firmware commands, 'quit' to exit.\n", serialOpts.device)
			return runSession(cmd.InOrStdin(), cmd.OutOrStdout(), port, serialOpts.timeout)
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{consoleCmd, sendCmd} {
		cmd.Flags().StringVarP(&serialOpts.device, "device", "d", "/dev/ttyACM0", "serial device path")
		cmd.Flags().IntVarP(&serialOpts.baud, "baud", "b", 115200, "console baud rate")
		cmd.Flags().DurationVar(&serialOpts.timeout, "timeout", 2*time.Second, "time to wait for the console prompt")
	}
}

// openConsole opens the port and syncs with the firmware prompt.
func openConsole() (serial.Port, error) {
	cfg := serial.DefaultConfig(serialOpts.device)
	cfg.Baud = serialOpts.baud

	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		glog.Warningf("Flush %s: %v", cfg.Device, err)
	}

	// An empty line makes the firmware print a fresh prompt
	if _, err := serial.Exchange(port, "", serialOpts.timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("no console on %s: %w", cfg.Device, err)
	}
	glog.Infof("Console ready on %s at %d baud", cfg.Device, cfg.Baud)
	return port, nil
}

// runSession forwards lines from in to the firmware until in is exhausted or
// the user quits. Lines that do not tokenize are rejected locally.
func runSession(in io.Reader, out io.Writer, port serial.Port, timeout time.Duration) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, serial.Prompt)
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch line {
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		if _, err := shlex.Split(line); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}

		reply, err := serial.Exchange(port, line, timeout)
		fmt.Fprint(out, reply)
		if err != nil {
			return fmt.Errorf("%s: %w", line, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}
