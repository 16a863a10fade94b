// Package clock implements the STM32L4 clock and power domain controller:
// oscillator and PLL lifecycle, voltage-scaling and flash-latency selection,
// and the sysclk switch sequencer that keeps them consistent while the
// system frequency changes.
package clock

import "strconv"

// Frequency units
const (
	KHz = 1000
	MHz = 1000 * KHz
)

// Nominal oscillator frequencies
const (
	HSIFrequency = 16 * MHz
	LSIFrequency = 32 * KHz
)

// Source identifies a clock source.
type Source uint8

const (
	SourceUnknown Source = iota
	SourceMSI            // multi-speed internal, frequency selected by MSIRange
	SourceHSI            // high-speed internal, 16 MHz
	SourceLSI            // low-speed internal, 32 kHz
	SourcePLL
)

func (s Source) String() string {
	switch s {
	case SourceMSI:
		return "msi"
	case SourceHSI:
		return "hsi"
	case SourceLSI:
		return "lsi"
	case SourcePLL:
		return "pll"
	default:
		return "unknown"
	}
}

// ParseSource is the inverse of Source.String.
func ParseSource(name string) (Source, bool) {
	switch name {
	case "msi":
		return SourceMSI, true
	case "hsi":
		return SourceHSI, true
	case "lsi":
		return SourceLSI, true
	case "pll":
		return SourcePLL, true
	}
	return SourceUnknown, false
}

// CanDriveSysclk reports whether s may be selected as the system clock.
func (s Source) CanDriveSysclk() bool {
	return s == SourceMSI || s == SourceHSI || s == SourcePLL
}

// MSIRange is the frequency step of the multi-speed internal oscillator.
type MSIRange uint8

const (
	MSIRange100kHz MSIRange = iota
	MSIRange200kHz
	MSIRange400kHz
	MSIRange800kHz
	MSIRange1MHz
	MSIRange2MHz
	MSIRange4MHz
	MSIRange8MHz
	MSIRange16MHz
	MSIRange24MHz
	MSIRange32MHz
	MSIRange48MHz
)

// MSIRangeCount is the number of valid MSI steps.
const MSIRangeCount = 12

var msiFrequencies = [MSIRangeCount]uint32{
	100 * KHz,
	200 * KHz,
	400 * KHz,
	800 * KHz,
	1 * MHz,
	2 * MHz,
	4 * MHz,
	8 * MHz,
	16 * MHz,
	24 * MHz,
	32 * MHz,
	48 * MHz,
}

// Valid reports whether r is one of the tabulated steps.
func (r MSIRange) Valid() bool {
	return r < MSIRangeCount
}

// Frequency returns the nominal frequency of the step in Hz.
func (r MSIRange) Frequency() uint32 {
	if !r.Valid() {
		return 0
	}
	return msiFrequencies[r]
}

// MSIRangeFor returns the step whose nominal frequency is exactly hz.
func MSIRangeFor(hz uint32) (MSIRange, bool) {
	for i, f := range msiFrequencies {
		if f == hz {
			return MSIRange(i), true
		}
	}
	return 0, false
}

// PLLConfig describes the main PLL: output = ((input / M) * N) / R.
type PLLConfig struct {
	Source Source // MSI or HSI
	M      uint8  // input divider, 1..8
	N      uint8  // feedback multiplier, 1..127
	R      uint8  // output divider, 2, 4, 6 or 8
}

// Validate checks that the configuration fits the register fields.
func (cfg PLLConfig) Validate() error {
	if cfg.Source != SourceMSI && cfg.Source != SourceHSI {
		return wrap(ErrInvalidPLLConfig, "input "+cfg.Source.String())
	}
	if cfg.M < 1 || cfg.M > 8 {
		return wrap(ErrInvalidPLLConfig, "m="+strconv.Itoa(int(cfg.M)))
	}
	if cfg.N < 1 || cfg.N > 127 {
		return wrap(ErrInvalidPLLConfig, "n="+strconv.Itoa(int(cfg.N)))
	}
	switch cfg.R {
	case 2, 4, 6, 8:
	default:
		return wrap(ErrInvalidPLLConfig, "r="+strconv.Itoa(int(cfg.R)))
	}
	return nil
}

// Output computes the PLL output for a given input frequency.
func (cfg PLLConfig) Output(inputHz uint32) uint32 {
	if cfg.M == 0 || cfg.R == 0 {
		return 0
	}
	return ((inputHz / uint32(cfg.M)) * uint32(cfg.N)) / uint32(cfg.R)
}

// AHBPrescaler divides sysclk into the core bus clock (HCLK).
type AHBPrescaler uint8

const (
	AHBUnknown AHBPrescaler = iota
	AHBDiv1
	AHBDiv2
	AHBDiv4
	AHBDiv8
	AHBDiv16
	AHBDiv64
	AHBDiv128
	AHBDiv256
	AHBDiv512
)

var ahbDivisors = [...]uint32{0, 1, 2, 4, 8, 16, 64, 128, 256, 512}

// Divisor returns the division factor, 0 for AHBUnknown.
func (p AHBPrescaler) Divisor() uint32 {
	if int(p) >= len(ahbDivisors) {
		return 0
	}
	return ahbDivisors[p]
}

// AHBPrescalerFor maps a division factor onto its prescaler.
func AHBPrescalerFor(div uint32) (AHBPrescaler, bool) {
	for i, d := range ahbDivisors {
		if i > 0 && d == div {
			return AHBPrescaler(i), true
		}
	}
	return AHBUnknown, false
}

// APBPrescaler divides HCLK into a peripheral bus clock.
type APBPrescaler uint8

const (
	APBUnknown APBPrescaler = iota
	APBDiv1
	APBDiv2
	APBDiv4
	APBDiv8
	APBDiv16
)

var apbDivisors = [...]uint32{0, 1, 2, 4, 8, 16}

// Divisor returns the division factor, 0 for APBUnknown.
func (p APBPrescaler) Divisor() uint32 {
	if int(p) >= len(apbDivisors) {
		return 0
	}
	return apbDivisors[p]
}

// APBPrescalerFor maps a division factor onto its prescaler.
func APBPrescalerFor(div uint32) (APBPrescaler, bool) {
	for i, d := range apbDivisors {
		if i > 0 && d == div {
			return APBPrescaler(i), true
		}
	}
	return APBUnknown, false
}

// BusPrescalers selects the core bus and the two peripheral bus dividers.
type BusPrescalers struct {
	AHB  AHBPrescaler
	APB1 APBPrescaler
	APB2 APBPrescaler
}

// NoDivision runs every bus at sysclk.
var NoDivision = BusPrescalers{AHB: AHBDiv1, APB1: APBDiv1, APB2: APBDiv1}

// Validate rejects the unknown sentinels.
func (p BusPrescalers) Validate() error {
	if p.AHB.Divisor() == 0 {
		return wrap(ErrUnknownPrescaler, "ahb")
	}
	if p.APB1.Divisor() == 0 {
		return wrap(ErrUnknownPrescaler, "apb1")
	}
	if p.APB2.Divisor() == 0 {
		return wrap(ErrUnknownPrescaler, "apb2")
	}
	return nil
}

// VoltageScaling is the core regulator operating point.
type VoltageScaling uint8

const (
	VoltageScalingUnknown VoltageScaling = iota
	VoltageScaling1                      // high performance, up to 80 MHz
	VoltageScaling2                      // low power, up to 26 MHz
)

func (v VoltageScaling) String() string {
	switch v {
	case VoltageScaling1:
		return "range1"
	case VoltageScaling2:
		return "range2"
	default:
		return "unknown"
	}
}

// capability orders the levels by the frequency they support.
func (v VoltageScaling) capability() int {
	switch v {
	case VoltageScaling1:
		return 2
	case VoltageScaling2:
		return 1
	default:
		return 0
	}
}

// MoreCapable reports whether v supports a strictly higher frequency than o.
func (v VoltageScaling) MoreCapable(o VoltageScaling) bool {
	return v.capability() > o.capability()
}

// FlashLatency is the number of flash wait states.
type FlashLatency uint8

const (
	FlashLatency0 FlashLatency = iota
	FlashLatency1
	FlashLatency2
	FlashLatency3
	FlashLatency4
	FlashLatencyUnknown FlashLatency = 0xFF
)

func (l FlashLatency) String() string {
	if l == FlashLatencyUnknown {
		return "unknown"
	}
	return strconv.Itoa(int(l)) + "ws"
}

// NVICConfig is applied once the new clock configuration is in place.
type NVICConfig struct {
	PriorityGrouping uint32
	BasePriority     uint32
}

// Direction classifies a sysclk transition.
type Direction uint8

const (
	NoChange Direction = iota
	Increase
	Decrease
	Lateral // same frequency, different source
)

func (d Direction) String() string {
	switch d {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	case Lateral:
		return "lateral"
	default:
		return "none"
	}
}

// Transition describes a sysclk change as seen by the change hooks.
type Transition struct {
	From      Source
	To        Source
	FromHz    uint32
	ToHz      uint32
	Direction Direction
}

// Hook is invoked around a sysclk change. A closure carries whatever context
// the registering subsystem needs.
type Hook func(t Transition)
