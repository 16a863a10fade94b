package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"clkhal/clock"
	"clkhal/hal/stm32l4"
	"clkhal/hal/stm32l4/sim"
	"clkhal/host/config"
)

var errViolations = errors.New("plan overclocks the flash or regulator")

var (
	planOpts = struct {
		file       string
		readyDelay int
		trace      bool
		dump       bool
	}{}

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Dry-run a board clock plan on the simulator",
		Long: "Apply a YAML clock plan to a simulated STM32L452 and report the final\n" +
			"clock tree. Fails if sysclk ever ran faster than the live regulator\n" +
			"and flash wait states allowed. Without -f the firmware's built-in plan is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := config.Default()
			if planOpts.file != "" {
				var err error
				if plan, err = config.Load(planOpts.file); err != nil {
					return err
				}
				glog.Infof("Loaded plan %s: %d oscillators, %d steps", planOpts.file, len(plan.Oscillators), len(plan.Steps))
			}

			out := cmd.OutOrStdout()
			if planOpts.dump {
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(plan); err != nil {
					return err
				}
				return enc.Close()
			}

			report, err := dryRun(plan, planOpts.readyDelay)
			if err != nil {
				return err
			}
			report.print(out, planOpts.trace)
			if len(report.Violations) > 0 {
				return errViolations
			}
			return nil
		},
	}
)

func init() {
	planCmd.Flags().StringVarP(&planOpts.file, "file", "f", "", "plan file (YAML)")
	planCmd.Flags().IntVar(&planOpts.readyDelay, "ready-delay", 2, "register reads before a ready flag follows a write")
	planCmd.Flags().BoolVarP(&planOpts.trace, "trace", "t", false, "print every register field change")
	planCmd.Flags().BoolVar(&planOpts.dump, "dump", false, "print the plan with defaults filled in and exit")
}

// planReport is the simulator state after a plan has run.
type planReport struct {
	Source      clock.Source
	Sysclk      uint32
	HCLK        uint32
	PCLK1       uint32
	PCLK2       uint32
	Voltage     clock.VoltageScaling
	Latency     clock.FlashLatency
	LowPowerRun bool
	Transitions []clock.TransitionEvent
	Changes     []sim.Change
	Violations  []sim.Violation
	Polls       uint64
}

// dryRun applies plan to a fresh simulator. A controller halt is returned as
// an error rather than crashing the tool.
func dryRun(plan *config.Plan, readyDelay int) (report *planReport, err error) {
	s := sim.New()
	s.SetReadyDelay(readyDelay)
	c := clock.New(stm32l4.New(s.Peripherals()))

	defer func() {
		if r := recover(); r != nil {
			halt, ok := r.(error)
			if !ok {
				panic(r)
			}
			report, err = nil, fmt.Errorf("controller halted: %w", halt)
		}
	}()

	if err := plan.Apply(c); err != nil {
		return nil, err
	}

	if got := s.Frequency(); got != c.EffectiveFrequency() {
		glog.Warningf("Controller reports %d Hz but the simulated tree runs at %d Hz", c.EffectiveFrequency(), got)
	}

	return &planReport{
		Source:      c.SysclkSource(),
		Sysclk:      c.EffectiveFrequency(),
		HCLK:        c.HCLK(),
		PCLK1:       c.PCLK1(),
		PCLK2:       c.PCLK2(),
		Voltage:     c.VoltageScaling(),
		Latency:     c.FlashLatency(),
		LowPowerRun: c.LowPowerRun(),
		Transitions: c.History(),
		Changes:     s.Changes(),
		Violations:  s.Violations(),
		Polls:       s.Polls(),
	}, nil
}

func hz(v uint32) string {
	return (physic.Frequency(v) * physic.Hertz).String()
}

func (r *planReport) print(w io.Writer, trace bool) {
	if trace {
		fmt.Fprintln(w, "Register field changes:")
		for _, ch := range r.Changes {
			fmt.Fprintf(w, "  %s\n", ch)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Transitions:")
	for _, e := range r.Transitions {
		fmt.Fprintf(w, "  %s\n", e)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "sysclk:   %s (%s)\n", r.Source, hz(r.Sysclk))
	fmt.Fprintf(w, "hclk:     %s\n", hz(r.HCLK))
	fmt.Fprintf(w, "pclk1:    %s\n", hz(r.PCLK1))
	fmt.Fprintf(w, "pclk2:    %s\n", hz(r.PCLK2))
	fmt.Fprintf(w, "voltage:  %s\n", r.Voltage)
	fmt.Fprintf(w, "latency:  %s\n", r.Latency)
	if r.LowPowerRun {
		fmt.Fprintln(w, "low-power run: on")
	}
	fmt.Fprintf(w, "register reads: %d\n", r.Polls)

	if len(r.Violations) == 0 {
		fmt.Fprintln(w, "violations: none")
		return
	}
	fmt.Fprintf(w, "violations: %d\n", len(r.Violations))
	for _, v := range r.Violations {
		fmt.Fprintf(w, "  %s\n", v)
	}
}
