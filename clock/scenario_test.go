package clock_test

import (
	"errors"
	"reflect"
	"testing"

	"clkhal/clock"
	"clkhal/hal/stm32l4"
	"clkhal/hal/stm32l4/sim"
)

func newSimController(delay int) (*clock.Controller, *sim.Simulator) {
	s := sim.New()
	s.SetReadyDelay(delay)
	return clock.New(stm32l4.New(s.Peripherals())), s
}

func checkNoViolations(t *testing.T, s *sim.Simulator) {
	t.Helper()
	for _, v := range s.Violations() {
		t.Errorf("Overspeed: %s", v)
	}
}

// HSI 16MHz to PLL 48MHz (HSI /1 x6 /2): range1 is kept and wait states go
// from 0 to 2 before the switch.
func TestScenarioHSIToPLL48(t *testing.T) {
	for _, delay := range []int{0, 3} {
		c, s := newSimController(delay)

		c.EnableHSI()
		c.SetSysclk(clock.SourceHSI, clock.NoDivision, clock.NVICConfig{})
		c.EnablePLL(clock.PLLConfig{Source: clock.SourceHSI, M: 1, N: 6, R: 2})
		s.ClearTrace()

		c.SetSysclk(clock.SourcePLL, clock.NoDivision, clock.NVICConfig{})

		if got := s.FieldOrder("VOS", "LATENCY", "SW"); !reflect.DeepEqual(got, []string{"LATENCY", "SW"}) {
			t.Errorf("delay %d: expected [LATENCY SW], got %v", delay, got)
		}
		lat := s.ChangesOf("LATENCY")
		if len(lat) != 1 || lat[0].Old != 0 || lat[0].New != 2 {
			t.Errorf("delay %d: expected latency 0->2, got %v", delay, lat)
		}
		if c.VoltageScaling() != clock.VoltageScaling1 {
			t.Errorf("delay %d: expected range1, got %s", delay, c.VoltageScaling())
		}
		if got := s.Frequency(); got != 48*clock.MHz {
			t.Errorf("delay %d: expected hardware at 48MHz, got %d", delay, got)
		}
		if got := c.EffectiveFrequency(); got != 48*clock.MHz {
			t.Errorf("delay %d: expected 48MHz published, got %d", delay, got)
		}
		checkNoViolations(t, s)
	}
}

// PLL 80MHz to HSI 16MHz: the switch comes first, then wait states drop
// from 4 to 0; range1 is kept.
func TestScenarioPLL80ToHSI(t *testing.T) {
	c, s := newSimController(2)

	c.EnableHSI()
	c.EnablePLL(clock.PLLConfig{Source: clock.SourceHSI, M: 1, N: 10, R: 2})
	c.SetSysclk(clock.SourcePLL, clock.NoDivision, clock.NVICConfig{})
	if c.FlashLatency() != clock.FlashLatency4 {
		t.Fatalf("Expected 4ws at 80MHz, got %s", c.FlashLatency())
	}
	s.ClearTrace()

	c.SetSysclk(clock.SourceHSI, clock.NoDivision, clock.NVICConfig{})

	if got := s.FieldOrder("VOS", "LATENCY", "SW"); !reflect.DeepEqual(got, []string{"SW", "LATENCY"}) {
		t.Errorf("Expected [SW LATENCY], got %v", got)
	}
	lat := s.ChangesOf("LATENCY")
	if len(lat) != 1 || lat[0].Old != 4 || lat[0].New != 0 {
		t.Errorf("Expected latency 4->0, got %v", lat)
	}
	if c.VoltageScaling() != clock.VoltageScaling1 {
		t.Errorf("Expected range1 kept, got %s", c.VoltageScaling())
	}
	checkNoViolations(t, s)
}

func TestScenarioRangeRoundTrip(t *testing.T) {
	c, s := newSimController(4)

	// Down to MSI 1MHz at range2.
	c.EnableHSI()
	c.SetSysclk(clock.SourceHSI, clock.NoDivision, clock.NVICConfig{})
	c.EnableMSI(clock.MSIRange1MHz)
	s.ClearTrace()
	c.SetSysclk(clock.SourceMSI, clock.NoDivision, clock.NVICConfig{})
	if got := s.FieldOrder("VOS", "SW"); !reflect.DeepEqual(got, []string{"SW", "VOS"}) {
		t.Errorf("Expected [SW VOS] on the way down, got %v", got)
	}
	if c.VoltageScaling() != clock.VoltageScaling2 {
		t.Errorf("Expected range2 at 1MHz, got %s", c.VoltageScaling())
	}

	// Back up to PLL 80MHz, fed by HSI.
	c.EnablePLL(clock.PLLConfig{Source: clock.SourceHSI, M: 1, N: 10, R: 2})
	s.ClearTrace()
	c.SetSysclk(clock.SourcePLL, clock.NoDivision, clock.NVICConfig{})
	if got := s.FieldOrder("VOS", "LATENCY", "SW"); !reflect.DeepEqual(got, []string{"VOS", "LATENCY", "SW"}) {
		t.Errorf("Expected [VOS LATENCY SW] on the way up, got %v", got)
	}

	// And down to MSI 24MHz, which settles at range2 with 3 wait states.
	c.EnableMSI(clock.MSIRange24MHz)
	s.ClearTrace()
	c.SetSysclk(clock.SourceMSI, clock.NoDivision, clock.NVICConfig{})
	if got := s.FieldOrder("VOS", "LATENCY", "SW"); !reflect.DeepEqual(got, []string{"SW", "LATENCY", "VOS"}) {
		t.Errorf("Expected [SW LATENCY VOS] on the way down, got %v", got)
	}
	if c.FlashLatency() != clock.FlashLatency3 {
		t.Errorf("Expected 3ws at 24MHz range2, got %s", c.FlashLatency())
	}

	checkNoViolations(t, s)
	if n := len(c.History()); n != 4 {
		t.Errorf("Expected 4 transitions logged, got %d", n)
	}
}

func TestScenarioIdempotent(t *testing.T) {
	c, s := newSimController(1)
	div := clock.BusPrescalers{AHB: clock.AHBDiv1, APB1: clock.APBDiv2, APB2: clock.APBDiv1}

	c.SetSysclk(clock.SourceMSI, div, clock.NVICConfig{})
	s.ClearTrace()
	c.SetSysclk(clock.SourceMSI, div, clock.NVICConfig{})

	if got := s.ChangesOf("VOS", "LATENCY", "SW", "MSIRANGE"); len(got) != 0 {
		t.Errorf("Expected no source, voltage or latency change, got %v", got)
	}
	if cfgr, _ := s.Value("RCC_CFGR"); (cfgr>>stm32l4.RCC_CFGR_PPRE1_Pos)&stm32l4.RCC_CFGR_PPRE1_Msk != 0x4 {
		t.Errorf("Expected APB1 /2 encoding, got CFGR %#x", cfgr)
	}
	if got := c.PCLK1(); got != 2*clock.MHz {
		t.Errorf("Expected PCLK1 2MHz, got %d", got)
	}
}

func TestScenarioHooksAroundRegisterWrites(t *testing.T) {
	c, s := newSimController(2)
	c.EnableHSI()
	c.EnablePLL(clock.PLLConfig{Source: clock.SourceHSI, M: 1, N: 8, R: 2})
	s.ClearTrace()

	var writesAtPre, writesAtPost = -1, -1
	c.RegisterPreChangeHook(func(clock.Transition) { writesAtPre = len(s.Writes()) })
	c.RegisterPostChangeHook(func(tr clock.Transition) {
		writesAtPost = len(s.Writes())
		if tr.ToHz != 64*clock.MHz || tr.Direction != clock.Increase {
			t.Errorf("Unexpected transition %+v", tr)
		}
	})

	c.SetSysclk(clock.SourcePLL, clock.NoDivision, clock.NVICConfig{PriorityGrouping: 4, BasePriority: 0x20})

	if writesAtPre != 0 {
		t.Errorf("Pre hook saw %d writes", writesAtPre)
	}
	if writesAtPost != len(s.Writes()) {
		t.Errorf("Post hook saw %d of %d writes", writesAtPost, len(s.Writes()))
	}
	if g, p, n := s.NVIC(); g != 4 || p != 0x20 || n != 2 {
		t.Errorf("Expected NVIC grouping 4 basepri 0x20 in 2 writes, got %d %#x %d", g, p, n)
	}
}

func TestScenarioLowPowerRun(t *testing.T) {
	c, s := newSimController(2)

	if err := c.EnterLowPowerRun(); !errors.Is(err, clock.ErrLowPowerRunRefused) {
		t.Errorf("Expected refusal at 4MHz, got %v", err)
	}
	if len(s.ChangesOf("LPR")) != 0 {
		t.Error("Refusal must not write LPR")
	}

	c.EnableHSI()
	c.SetSysclk(clock.SourceHSI, clock.NoDivision, clock.NVICConfig{})
	c.EnableMSI(clock.MSIRange1MHz)
	c.SetSysclk(clock.SourceMSI, clock.NoDivision, clock.NVICConfig{})

	if err := c.EnterLowPowerRun(); err != nil {
		t.Fatalf("Expected low-power run at 1MHz, got %v", err)
	}
	if lpr := s.ChangesOf("LPR"); len(lpr) != 1 || lpr[0].New != 1 {
		t.Errorf("Expected LPR set once, got %v", lpr)
	}

	c.ExitLowPowerRun()
	if sr2, _ := s.Value("PWR_SR2"); sr2&stm32l4.PWR_SR2_REGLPF != 0 {
		t.Error("Expected regulator back in main mode")
	}
}

func TestScenarioActiveMSIRerange(t *testing.T) {
	c, _ := newSimController(0)
	defer func() {
		r := recover()
		err, _ := r.(error)
		if !errors.Is(err, clock.ErrActiveSource) {
			t.Errorf("Expected ErrActiveSource, got %v", r)
		}
	}()
	c.EnableMSI(clock.MSIRange48MHz)
}
