// Package config loads board clock plans: which oscillators to start, how to
// program the PLL, and the ordered list of sysclk changes to perform.
package config

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"clkhal/clock"
)

// Chips with a register binding.
var supportedChips = []string{"stm32l452"}

// ResetMSIRange is the MSI step the chip comes out of reset with.
const ResetMSIRange = clock.MSIRange4MHz

var (
	ahbDivisors = []uint32{1, 2, 4, 8, 16, 64, 128, 256, 512}
	apbDivisors = []uint32{1, 2, 4, 8, 16}
	pllRDivs    = []uint8{2, 4, 6, 8}
)

var ErrInvalidPlan = errors.New("invalid clock plan")

// Frequency is a YAML scalar such as "48MHz" or "100kHz".
type Frequency struct {
	physic.Frequency
}

// Hz returns the frequency rounded down to whole hertz.
func (f Frequency) Hz() uint32 {
	return uint32(f.Frequency / physic.Hertz)
}

// UnmarshalYAML parses a frequency with its unit.
func (f *Frequency) UnmarshalYAML(value *yaml.Node) error {
	if err := f.Frequency.Set(value.Value); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	return nil
}

// MarshalYAML renders the frequency with its unit.
func (f Frequency) MarshalYAML() (interface{}, error) {
	return f.Frequency.String(), nil
}

// Oscillator starts one oscillator. Frequency selects the MSI range and is
// ignored for HSI and LSI.
type Oscillator struct {
	Source    string    `yaml:"source"`
	Frequency Frequency `yaml:"frequency,omitempty"`
}

// PLL programs the main PLL: ((input / M) * N) / R.
type PLL struct {
	Source string `yaml:"source"`
	M      uint8  `yaml:"m"`
	N      uint8  `yaml:"n"`
	R      uint8  `yaml:"r"`
}

// NVIC is applied after a sysclk step.
type NVIC struct {
	PriorityGrouping uint32 `yaml:"priority_grouping"`
	BasePriority     uint32 `yaml:"base_priority"`
}

// Step is one sysclk change.
type Step struct {
	Sysclk string `yaml:"sysclk"`
	AHB    uint32 `yaml:"ahb"`
	APB1   uint32 `yaml:"apb1"`
	APB2   uint32 `yaml:"apb2"`
	NVIC   NVIC   `yaml:"nvic"`
}

// Plan is a board clock configuration.
type Plan struct {
	Chip        string       `yaml:"chip"`
	Oscillators []Oscillator `yaml:"oscillators"`
	PLL         *PLL         `yaml:"pll,omitempty"`
	Steps       []Step       `yaml:"steps"`
	LowPowerRun bool         `yaml:"low_power_run"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan read: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML plan, fills defaults and validates it.
func Parse(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("plan yaml: %w", err)
	}

	applyDefaults(&plan)

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// applyDefaults fills in missing values
func applyDefaults(plan *Plan) {
	if plan.Chip == "" {
		plan.Chip = "stm32l452"
	}

	// Bus prescalers default to no division
	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.AHB == 0 {
			step.AHB = 1
		}
		if step.APB1 == 0 {
			step.APB1 = 1
		}
		if step.APB2 == 0 {
			step.APB2 = 1
		}
	}

	if plan.PLL != nil && plan.PLL.M == 0 {
		plan.PLL.M = 1
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidPlan}, args...)...)
}

// Validate checks the plan against what the controller accepts, so that
// Apply never halts on a configuration error it could have reported.
func (p *Plan) Validate() error {
	if !slices.Contains(supportedChips, p.Chip) {
		return invalid("unsupported chip %q", p.Chip)
	}

	for i, osc := range p.Oscillators {
		src, ok := clock.ParseSource(osc.Source)
		if !ok || src == clock.SourcePLL {
			return invalid("oscillator %d: unknown source %q", i, osc.Source)
		}
		if src == clock.SourceMSI {
			if _, ok := clock.MSIRangeFor(osc.Frequency.Hz()); !ok {
				return invalid("oscillator %d: no msi range at %s", i, osc.Frequency)
			}
		}
	}
	msi, rerange := p.msiRange()

	if p.PLL != nil {
		cfg, err := p.PLL.config()
		if err != nil {
			return invalid("pll: %v", err)
		}
		if !slices.Contains(pllRDivs, cfg.R) {
			return invalid("pll: r must be one of %v", pllRDivs)
		}
		if err := cfg.Validate(); err != nil {
			return invalid("pll: %v", err)
		}
		if !p.starts(cfg.Source) {
			return invalid("pll: input %s is never started", cfg.Source)
		}
		if cfg.Source == clock.SourceMSI && rerange {
			return invalid("pll: msi input cannot be re-ranged while it drives sysclk")
		}
		input := uint32(clock.HSIFrequency)
		if cfg.Source == clock.SourceMSI {
			input = msi.Frequency()
		}
		if out := cfg.Output(input); out > clock.MaxFrequency(clock.VoltageScaling1) {
			return invalid("pll: output %s above %s", clock.FormatHz(out), clock.FormatHz(clock.MaxFrequency(clock.VoltageScaling1)))
		}
	}

	sysclk := clock.SourceMSI
	for i, step := range p.Steps {
		src, ok := clock.ParseSource(step.Sysclk)
		if !ok || !src.CanDriveSysclk() {
			return invalid("step %d: %q cannot drive sysclk", i, step.Sysclk)
		}
		if src == clock.SourcePLL && p.PLL == nil {
			return invalid("step %d: pll selected but not configured", i)
		}
		if !p.starts(src) {
			return invalid("step %d: %s is never started", i, src)
		}
		if src == clock.SourceMSI && rerange {
			if sysclk == clock.SourceMSI {
				return invalid("step %d: msi cannot be re-ranged while it drives sysclk", i)
			}
			rerange = false
		}
		if !slices.Contains(ahbDivisors, step.AHB) {
			return invalid("step %d: ahb /%d not in %v", i, step.AHB, ahbDivisors)
		}
		if !slices.Contains(apbDivisors, step.APB1) {
			return invalid("step %d: apb1 /%d not in %v", i, step.APB1, apbDivisors)
		}
		if !slices.Contains(apbDivisors, step.APB2) {
			return invalid("step %d: apb2 /%d not in %v", i, step.APB2, apbDivisors)
		}
		sysclk = src
	}
	return nil
}

// starts reports whether the plan starts src. MSI runs out of reset.
func (p *Plan) starts(src clock.Source) bool {
	if src == clock.SourceMSI || (src == clock.SourcePLL && p.PLL != nil) {
		return true
	}
	return slices.ContainsFunc(p.Oscillators, func(o Oscillator) bool {
		s, _ := clock.ParseSource(o.Source)
		return s == src
	})
}

// msiRange is the MSI step the plan asks for and whether it differs from the
// reset step. A different step can only be applied once MSI stops driving
// sysclk.
func (p *Plan) msiRange() (clock.MSIRange, bool) {
	for _, osc := range p.Oscillators {
		if s, _ := clock.ParseSource(osc.Source); s == clock.SourceMSI {
			r, _ := clock.MSIRangeFor(osc.Frequency.Hz())
			return r, r != ResetMSIRange
		}
	}
	return ResetMSIRange, false
}

func (p *PLL) config() (clock.PLLConfig, error) {
	src, ok := clock.ParseSource(p.Source)
	if !ok {
		return clock.PLLConfig{}, fmt.Errorf("unknown source %q", p.Source)
	}
	return clock.PLLConfig{Source: src, M: p.M, N: p.N, R: p.R}, nil
}

// Prescalers converts the step's divisors.
func (s Step) Prescalers() clock.BusPrescalers {
	ahb, _ := clock.AHBPrescalerFor(s.AHB)
	apb1, _ := clock.APBPrescalerFor(s.APB1)
	apb2, _ := clock.APBPrescalerFor(s.APB2)
	return clock.BusPrescalers{AHB: ahb, APB1: apb1, APB2: apb2}
}

// Apply runs the plan on a controller: oscillators, then the PLL, then each
// sysclk step in order, then low-power run if requested. An MSI range change
// is deferred to the first step that selects MSI. The plan must have been
// validated.
func (p *Plan) Apply(c *clock.Controller) error {
	msi, rerange := p.msiRange()

	for _, osc := range p.Oscillators {
		src, _ := clock.ParseSource(osc.Source)
		if src == clock.SourceMSI && rerange {
			continue
		}
		c.EnableOscillator(src, msi)
	}

	if p.PLL != nil {
		cfg, err := p.PLL.config()
		if err != nil {
			return err
		}
		c.EnablePLL(cfg)
	}

	for _, step := range p.Steps {
		src, _ := clock.ParseSource(step.Sysclk)
		if src == clock.SourceMSI && rerange {
			c.EnableMSI(msi)
			rerange = false
		}
		c.SetSysclk(src, step.Prescalers(), clock.NVICConfig{
			PriorityGrouping: step.NVIC.PriorityGrouping,
			BasePriority:     step.NVIC.BasePriority,
		})
	}

	if p.LowPowerRun {
		return c.EnterLowPowerRun()
	}
	return nil
}

// Default is the plan the firmware boots with: HSI feeding the PLL at 80MHz,
// APB1 at half speed.
func Default() *Plan {
	return &Plan{
		Chip:        "stm32l452",
		Oscillators: []Oscillator{{Source: "hsi"}},
		PLL:         &PLL{Source: "hsi", M: 1, N: 10, R: 2},
		Steps: []Step{
			{Sysclk: "pll", AHB: 1, APB1: 2, APB2: 1},
		},
	}
}
