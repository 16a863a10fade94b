package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"clkhal/host/serial"
)

var errCommandFailed = errors.New("firmware reported an error")

var sendCmd = &cobra.Command{
	Use:   "send <line> [line...]",
	Short: "Send console lines and print the replies",
	Example: `  clkctl send "osc hsi on" "pll hsi 1 10 2" "sysclk pll 1 2 1"
  clkctl send -d /dev/ttyACM1 status`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkLines(args); err != nil {
			return err
		}

		port, err := openConsole()
		if err != nil {
			return err
		}
		defer port.Close()

		return sendLines(cmd.OutOrStdout(), port, args, serialOpts.timeout)
	},
}

// checkLines rejects lines the firmware tokenizer would refuse, before
// anything is sent.
func checkLines(lines []string) error {
	for _, line := range lines {
		args, err := shlex.Split(line)
		if err != nil {
			return fmt.Errorf("%q: %w", line, err)
		}
		if len(args) == 0 {
			return fmt.Errorf("empty command line")
		}
	}
	return nil
}

// sendLines stops at the first line the firmware answers with an error, so
// later steps never run on a half-configured clock tree.
func sendLines(out io.Writer, port serial.Port, lines []string, timeout time.Duration) error {
	for _, line := range lines {
		reply, err := serial.Exchange(port, line, timeout)
		if err != nil {
			return fmt.Errorf("%s: %w", line, err)
		}
		fmt.Fprintf(out, "> %s\n%s", line, reply)

		if strings.HasPrefix(reply, "error: ") || strings.HasPrefix(reply, "Command not found") {
			return fmt.Errorf("%s: %w", line, errCommandFailed)
		}
	}
	return nil
}
