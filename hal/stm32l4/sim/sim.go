// Package sim models the STM32L452 clock, power and flash registers on the
// host. Ready flags follow their enable bits, sysclk follows the switch only
// once the selected source is ready, and every instant where the core runs
// faster than the live regulator level and wait states allow is recorded.
package sim

import (
	"strconv"

	"golang.org/x/exp/slices"

	"clkhal/hal"
	"clkhal/hal/stm32l4"
)

type regID uint8

const (
	rccCR regID = iota
	rccICSCR
	rccCFGR
	rccPLLCFGR
	rccAHB1ENR
	rccAPB1ENR1
	rccCSR
	pwrCR1
	pwrSR2
	flashACR
	numRegs
)

var regNames = [numRegs]string{
	rccCR:       "RCC_CR",
	rccICSCR:    "RCC_ICSCR",
	rccCFGR:     "RCC_CFGR",
	rccPLLCFGR:  "RCC_PLLCFGR",
	rccAHB1ENR:  "RCC_AHB1ENR",
	rccAPB1ENR1: "RCC_APB1ENR1",
	rccCSR:      "RCC_CSR",
	pwrCR1:      "PWR_CR1",
	pwrSR2:      "PWR_SR2",
	flashACR:    "FLASH_ACR",
}

// Bits software cannot write; hardware owns them.
var readOnly = [numRegs]uint32{
	rccCR:    stm32l4.RCC_CR_MSIRDY | stm32l4.RCC_CR_HSIRDY | stm32l4.RCC_CR_PLLRDY,
	rccCFGR:  stm32l4.RCC_CFGR_SWS_Msk << stm32l4.RCC_CFGR_SWS_Pos,
	rccCSR:   stm32l4.RCC_CSR_LSIRDY,
	pwrSR2:   0xFFFFFFFF,
	rccICSCR: 0xFF, // MSICAL
}

// Reset values
var resetValues = [numRegs]uint32{
	rccCR:      stm32l4.RCC_CR_MSION | stm32l4.RCC_CR_MSIRDY | 6<<stm32l4.RCC_CR_MSIRANGE_Pos,
	rccICSCR:   0x40000000,
	rccPLLCFGR: 16 << stm32l4.RCC_PLLCFGR_PLLN_Pos,
	rccAHB1ENR: stm32l4.RCC_AHB1ENR_FLASHEN,
	pwrCR1:     stm32l4.PWR_CR1_VOS_RANGE1 << stm32l4.PWR_CR1_VOS_Pos,
	flashACR:   stm32l4.FLASH_ACR_ICEN | stm32l4.FLASH_ACR_DCEN,
}

type fieldDef struct {
	name string
	reg  regID
	mask uint32
	pos  uint8
}

// Software-written fields tracked in Changes.
var fields = []fieldDef{
	{"MSION", rccCR, 1, 0},
	{"MSIRGSEL", rccCR, 1, 3},
	{"MSIRANGE", rccCR, stm32l4.RCC_CR_MSIRANGE_Msk, stm32l4.RCC_CR_MSIRANGE_Pos},
	{"HSION", rccCR, 1, 8},
	{"PLLON", rccCR, 1, 24},
	{"MSITRIM", rccICSCR, stm32l4.RCC_ICSCR_MSITRIM_Msk, stm32l4.RCC_ICSCR_MSITRIM_Pos},
	{"SW", rccCFGR, stm32l4.RCC_CFGR_SW_Msk, stm32l4.RCC_CFGR_SW_Pos},
	{"HPRE", rccCFGR, stm32l4.RCC_CFGR_HPRE_Msk, stm32l4.RCC_CFGR_HPRE_Pos},
	{"PPRE1", rccCFGR, stm32l4.RCC_CFGR_PPRE1_Msk, stm32l4.RCC_CFGR_PPRE1_Pos},
	{"PPRE2", rccCFGR, stm32l4.RCC_CFGR_PPRE2_Msk, stm32l4.RCC_CFGR_PPRE2_Pos},
	{"PLLSRC", rccPLLCFGR, stm32l4.RCC_PLLCFGR_PLLSRC_Msk, stm32l4.RCC_PLLCFGR_PLLSRC_Pos},
	{"PLLM", rccPLLCFGR, stm32l4.RCC_PLLCFGR_PLLM_Msk, stm32l4.RCC_PLLCFGR_PLLM_Pos},
	{"PLLN", rccPLLCFGR, stm32l4.RCC_PLLCFGR_PLLN_Msk, stm32l4.RCC_PLLCFGR_PLLN_Pos},
	{"PLLREN", rccPLLCFGR, 1, 24},
	{"PLLR", rccPLLCFGR, stm32l4.RCC_PLLCFGR_PLLR_Msk, stm32l4.RCC_PLLCFGR_PLLR_Pos},
	{"FLASHEN", rccAHB1ENR, 1, 8},
	{"PWREN", rccAPB1ENR1, 1, 28},
	{"LSION", rccCSR, 1, 0},
	{"VOS", pwrCR1, stm32l4.PWR_CR1_VOS_Msk, stm32l4.PWR_CR1_VOS_Pos},
	{"LPR", pwrCR1, 1, 14},
	{"LATENCY", flashACR, stm32l4.FLASH_ACR_LATENCY_Msk, stm32l4.FLASH_ACR_LATENCY_Pos},
	{"PRFTEN", flashACR, 1, 8},
	{"ICEN", flashACR, 1, 9},
	{"DCEN", flashACR, 1, 10},
}

var msiFrequencies = [...]uint32{
	100000, 200000, 400000, 800000,
	1000000, 2000000, 4000000, 8000000,
	16000000, 24000000, 32000000, 48000000,
}

const hsiFrequency = 16000000

// Datasheet limits per VOS range, indexed by wait states.
var (
	range1Limits = [...]uint32{16000000, 32000000, 48000000, 64000000, 80000000}
	range2Limits = [...]uint32{6000000, 12000000, 18000000, 26000000, 26000000}
)

// Write is one software write to a register.
type Write struct {
	Seq      int
	Register string
	Old      uint32
	New      uint32
}

// Change is one field changed by a software write.
type Change struct {
	Seq   int
	Field string
	Old   uint32
	New   uint32
}

func (c Change) String() string {
	return "#" + strconv.Itoa(c.Seq) + " " + c.Field + " " +
		strconv.FormatUint(uint64(c.Old), 10) + "->" + strconv.FormatUint(uint64(c.New), 10)
}

// Violation is an instant where sysclk exceeded what the live regulator
// level and wait states allow.
type Violation struct {
	Seq       int
	Frequency uint32
	Limit     uint32
	VOS       uint32
	Latency   uint32
}

func (v Violation) String() string {
	return "#" + strconv.Itoa(v.Seq) + " sysclk " + strconv.FormatUint(uint64(v.Frequency), 10) +
		" Hz above " + strconv.FormatUint(uint64(v.Limit), 10) +
		" Hz (vos=" + strconv.FormatUint(uint64(v.VOS), 10) +
		" latency=" + strconv.FormatUint(uint64(v.Latency), 10) + ")"
}

// Simulator is a register file with clock-tree behaviour.
type Simulator struct {
	regs [numRegs]uint32

	// vosSettled is the regulator level actually reached; it lags the VOS
	// field while VOSF is set.
	vosSettled uint32

	readyDelay int
	countdown  int
	polls      uint64

	seq        int
	writes     []Write
	changes    []Change
	violations []Violation

	nvicGrouping uint32
	nvicBasePri  uint32
	nvicWrites   int
}

// New returns a simulator in the reset state: MSI at 4 MHz driving sysclk,
// range 1, zero wait states.
func New() *Simulator {
	s := &Simulator{}
	s.regs = resetValues
	s.vosSettled = stm32l4.PWR_CR1_VOS_RANGE1
	return s
}

// SetReadyDelay sets how many register reads a ready flag, the switch status
// or the regulator takes to follow a write. Zero settles immediately.
func (s *Simulator) SetReadyDelay(polls int) {
	s.readyDelay = polls
}

// Peripherals exposes the simulated registers to stm32l4.New.
func (s *Simulator) Peripherals() *stm32l4.Peripherals {
	r := func(id regID) hal.Register { return &register{s: s, id: id} }
	return &stm32l4.Peripherals{
		RCC: stm32l4.RCC{
			CR:       r(rccCR),
			ICSCR:    r(rccICSCR),
			CFGR:     r(rccCFGR),
			PLLCFGR:  r(rccPLLCFGR),
			AHB1ENR:  r(rccAHB1ENR),
			APB1ENR1: r(rccAPB1ENR1),
			CSR:      r(rccCSR),
		},
		PWR: stm32l4.PWR{
			CR1: r(pwrCR1),
			SR2: r(pwrSR2),
		},
		FLASH: stm32l4.FLASH{
			ACR: r(flashACR),
		},
		NVIC: (*nvic)(s),
	}
}

// Value returns the raw content of a register by name, e.g. "RCC_CFGR".
func (s *Simulator) Value(name string) (uint32, bool) {
	for id, n := range regNames {
		if n == name {
			return s.regs[id], true
		}
	}
	return 0, false
}

// Writes returns every software write since the last ClearTrace.
func (s *Simulator) Writes() []Write {
	return s.writes
}

// Changes returns every field change since the last ClearTrace.
func (s *Simulator) Changes() []Change {
	return s.changes
}

// ChangesOf filters Changes down to the named fields.
func (s *Simulator) ChangesOf(fields ...string) []Change {
	var out []Change
	for _, c := range s.changes {
		if slices.Contains(fields, c.Field) {
			out = append(out, c)
		}
	}
	return out
}

// FieldOrder returns the named fields in the order of their first change.
func (s *Simulator) FieldOrder(fields ...string) []string {
	var order []string
	for _, c := range s.ChangesOf(fields...) {
		if !slices.Contains(order, c.Field) {
			order = append(order, c.Field)
		}
	}
	return order
}

// Violations returns every recorded overspeed instant.
func (s *Simulator) Violations() []Violation {
	return s.violations
}

// Polls is the number of register reads served so far.
func (s *Simulator) Polls() uint64 {
	return s.polls
}

// ClearTrace drops recorded writes, changes and violations.
func (s *Simulator) ClearTrace() {
	s.writes = nil
	s.changes = nil
	s.violations = nil
}

// NVIC returns the last priority grouping and base priority applied.
func (s *Simulator) NVIC() (grouping, basePriority uint32, writes int) {
	return s.nvicGrouping, s.nvicBasePri, s.nvicWrites
}

// Frequency is the live sysclk frequency as the hardware would run it.
func (s *Simulator) Frequency() uint32 {
	switch s.field(rccCFGR, stm32l4.RCC_CFGR_SWS_Msk, stm32l4.RCC_CFGR_SWS_Pos) {
	case stm32l4.RCC_CFGR_SW_MSI:
		return s.msiFrequency()
	case stm32l4.RCC_CFGR_SW_HSI:
		return hsiFrequency
	case stm32l4.RCC_CFGR_SW_PLL:
		return s.pllFrequency()
	}
	return 0
}

func (s *Simulator) field(id regID, mask uint32, pos uint8) uint32 {
	return (s.regs[id] >> pos) & mask
}

func (s *Simulator) has(id regID, bits uint32) bool {
	return s.regs[id]&bits != 0
}

func (s *Simulator) msiFrequency() uint32 {
	r := s.field(rccCR, stm32l4.RCC_CR_MSIRANGE_Msk, stm32l4.RCC_CR_MSIRANGE_Pos)
	if int(r) >= len(msiFrequencies) {
		return 0
	}
	return msiFrequencies[r]
}

func (s *Simulator) pllInputFrequency() uint32 {
	switch s.field(rccPLLCFGR, stm32l4.RCC_PLLCFGR_PLLSRC_Msk, stm32l4.RCC_PLLCFGR_PLLSRC_Pos) {
	case stm32l4.RCC_PLLCFGR_PLLSRC_MSI:
		return s.msiFrequency()
	case stm32l4.RCC_PLLCFGR_PLLSRC_HSI:
		return hsiFrequency
	}
	return 0
}

func (s *Simulator) pllFrequency() uint32 {
	m := s.field(rccPLLCFGR, stm32l4.RCC_PLLCFGR_PLLM_Msk, stm32l4.RCC_PLLCFGR_PLLM_Pos) + 1
	n := s.field(rccPLLCFGR, stm32l4.RCC_PLLCFGR_PLLN_Msk, stm32l4.RCC_PLLCFGR_PLLN_Pos)
	r := (s.field(rccPLLCFGR, stm32l4.RCC_PLLCFGR_PLLR_Msk, stm32l4.RCC_PLLCFGR_PLLR_Pos) + 1) * 2
	return s.pllInputFrequency() / m * n / r
}

func (s *Simulator) pllInputReady() bool {
	switch s.field(rccPLLCFGR, stm32l4.RCC_PLLCFGR_PLLSRC_Msk, stm32l4.RCC_PLLCFGR_PLLSRC_Pos) {
	case stm32l4.RCC_PLLCFGR_PLLSRC_MSI:
		return s.has(rccCR, stm32l4.RCC_CR_MSIRDY)
	case stm32l4.RCC_PLLCFGR_PLLSRC_HSI:
		return s.has(rccCR, stm32l4.RCC_CR_HSIRDY)
	}
	return false
}

func (s *Simulator) read(id regID) uint32 {
	s.polls++
	if s.countdown > 0 {
		s.countdown--
		if s.countdown == 0 {
			s.settle()
		}
	}
	return s.regs[id]
}

func (s *Simulator) write(id regID, v uint32) {
	old := s.regs[id]
	v = v&^readOnly[id] | old&readOnly[id]
	v = s.enforce(id, v)

	s.seq++
	s.regs[id] = v
	s.writes = append(s.writes, Write{Seq: s.seq, Register: regNames[id], Old: old, New: v})
	for _, f := range fields {
		if f.reg != id {
			continue
		}
		o, n := (old>>f.pos)&f.mask, (v>>f.pos)&f.mask
		if o != n {
			s.changes = append(s.changes, Change{Seq: s.seq, Field: f.name, Old: o, New: n})
		}
	}

	if id == pwrCR1 {
		o := (old >> stm32l4.PWR_CR1_VOS_Pos) & stm32l4.PWR_CR1_VOS_Msk
		n := (v >> stm32l4.PWR_CR1_VOS_Pos) & stm32l4.PWR_CR1_VOS_Msk
		if o != n {
			s.regs[pwrSR2] |= stm32l4.PWR_SR2_VOSF
		}
	}

	s.check()
	if s.readyDelay == 0 {
		s.settle()
	} else {
		s.countdown = s.readyDelay
	}
}

// enforce keeps enable bits that hardware refuses to clear: the oscillator
// driving sysclk, the oscillator feeding a running PLL, and the PLL itself
// while it drives sysclk.
func (s *Simulator) enforce(id regID, v uint32) uint32 {
	if id != rccCR {
		return v
	}
	sws := s.field(rccCFGR, stm32l4.RCC_CFGR_SWS_Msk, stm32l4.RCC_CFGR_SWS_Pos)
	pllRunning := s.has(rccCR, stm32l4.RCC_CR_PLLRDY)
	pllSrc := s.field(rccPLLCFGR, stm32l4.RCC_PLLCFGR_PLLSRC_Msk, stm32l4.RCC_PLLCFGR_PLLSRC_Pos)

	if sws == stm32l4.RCC_CFGR_SW_MSI || (pllRunning && pllSrc == stm32l4.RCC_PLLCFGR_PLLSRC_MSI) {
		v |= stm32l4.RCC_CR_MSION
	}
	if sws == stm32l4.RCC_CFGR_SW_HSI || (pllRunning && pllSrc == stm32l4.RCC_PLLCFGR_PLLSRC_HSI) {
		v |= stm32l4.RCC_CR_HSION
	}
	if sws == stm32l4.RCC_CFGR_SW_PLL {
		v |= stm32l4.RCC_CR_PLLON
	}
	return v
}

// settle moves every hardware-owned flag to the state its control bits ask for.
func (s *Simulator) settle() {
	setIf := func(id regID, bit uint32, on bool) {
		if on {
			s.regs[id] |= bit
		} else {
			s.regs[id] &^= bit
		}
	}

	setIf(rccCR, stm32l4.RCC_CR_MSIRDY, s.has(rccCR, stm32l4.RCC_CR_MSION))
	setIf(rccCR, stm32l4.RCC_CR_HSIRDY, s.has(rccCR, stm32l4.RCC_CR_HSION))
	setIf(rccCSR, stm32l4.RCC_CSR_LSIRDY, s.has(rccCSR, stm32l4.RCC_CSR_LSION))
	setIf(rccCR, stm32l4.RCC_CR_PLLRDY, s.has(rccCR, stm32l4.RCC_CR_PLLON) && s.pllInputReady())

	sw := s.field(rccCFGR, stm32l4.RCC_CFGR_SW_Msk, stm32l4.RCC_CFGR_SW_Pos)
	var ready bool
	switch sw {
	case stm32l4.RCC_CFGR_SW_MSI:
		ready = s.has(rccCR, stm32l4.RCC_CR_MSIRDY)
	case stm32l4.RCC_CFGR_SW_HSI:
		ready = s.has(rccCR, stm32l4.RCC_CR_HSIRDY)
	case stm32l4.RCC_CFGR_SW_PLL:
		ready = s.has(rccCR, stm32l4.RCC_CR_PLLRDY) && s.has(rccPLLCFGR, stm32l4.RCC_PLLCFGR_PLLREN)
	}
	if ready {
		s.regs[rccCFGR] = s.regs[rccCFGR]&^(stm32l4.RCC_CFGR_SWS_Msk<<stm32l4.RCC_CFGR_SWS_Pos) |
			sw<<stm32l4.RCC_CFGR_SWS_Pos
	}

	s.vosSettled = s.field(pwrCR1, stm32l4.PWR_CR1_VOS_Msk, stm32l4.PWR_CR1_VOS_Pos)
	s.regs[pwrSR2] &^= stm32l4.PWR_SR2_VOSF
	setIf(pwrSR2, stm32l4.PWR_SR2_REGLPF, s.has(pwrCR1, stm32l4.PWR_CR1_LPR))

	s.check()
}

// limit is the highest sysclk the regulator and flash allow right now. While
// the regulator is moving, the less capable of the two levels applies.
func (s *Simulator) limit() uint32 {
	latency := s.field(flashACR, stm32l4.FLASH_ACR_LATENCY_Msk, stm32l4.FLASH_ACR_LATENCY_Pos)
	if latency >= uint32(len(range1Limits)) {
		latency = uint32(len(range1Limits)) - 1
	}
	requested := s.field(pwrCR1, stm32l4.PWR_CR1_VOS_Msk, stm32l4.PWR_CR1_VOS_Pos)

	vos := s.vosSettled
	if requested != vos && requested == stm32l4.PWR_CR1_VOS_RANGE2 {
		vos = requested
	}
	switch vos {
	case stm32l4.PWR_CR1_VOS_RANGE1:
		return range1Limits[latency]
	case stm32l4.PWR_CR1_VOS_RANGE2:
		return range2Limits[latency]
	}
	return 0
}

func (s *Simulator) check() {
	hz := s.Frequency()
	if lim := s.limit(); hz > lim {
		s.violations = append(s.violations, Violation{
			Seq:       s.seq,
			Frequency: hz,
			Limit:     lim,
			VOS:       s.field(pwrCR1, stm32l4.PWR_CR1_VOS_Msk, stm32l4.PWR_CR1_VOS_Pos),
			Latency:   s.field(flashACR, stm32l4.FLASH_ACR_LATENCY_Msk, stm32l4.FLASH_ACR_LATENCY_Pos),
		})
	}
}

// register is one simulated hal.Register.
type register struct {
	s  *Simulator
	id regID
}

func (r *register) Get() uint32 {
	return r.s.read(r.id)
}

func (r *register) Set(value uint32) {
	r.s.write(r.id, value)
}

func (r *register) SetBits(value uint32) {
	r.s.write(r.id, r.s.regs[r.id]|value)
}

func (r *register) ClearBits(value uint32) {
	r.s.write(r.id, r.s.regs[r.id]&^value)
}

func (r *register) HasBits(value uint32) bool {
	return r.s.read(r.id)&value != 0
}

func (r *register) ReplaceBits(value uint32, mask uint32, pos uint8) {
	r.s.write(r.id, r.s.regs[r.id]&^(mask<<pos)|(value&mask)<<pos)
}

type nvic Simulator

func (n *nvic) SetPriorityGrouping(grouping uint32) {
	n.nvicGrouping = grouping
	n.nvicWrites++
}

func (n *nvic) SetBasePriority(priority uint32) {
	n.nvicBasePri = priority
	n.nvicWrites++
}
