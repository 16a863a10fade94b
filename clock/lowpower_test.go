package clock

import (
	"errors"
	"testing"
)

func TestEnterLowPowerRunRefused(t *testing.T) {
	f := newFakeHardware()
	c := New(f)

	err := c.EnterLowPowerRun()
	if !errors.Is(err, ErrLowPowerRunRefused) {
		t.Fatalf("Expected ErrLowPowerRunRefused at 4MHz, got %v", err)
	}
	if f.lpr || len(f.ops) != 0 {
		t.Errorf("Refusal must not touch registers, got %v", f.ops)
	}
	t.Logf("Refused: %v", err)
}

func TestEnterLowPowerRunBoundary(t *testing.T) {
	f := newFakeHardware()
	f.msi = MSIRange2MHz
	c := New(f)

	if err := c.EnterLowPowerRun(); !errors.Is(err, ErrLowPowerRunRefused) {
		t.Errorf("Expected refusal at exactly 2MHz, got %v", err)
	}
}

func TestLowPowerRunCycle(t *testing.T) {
	f := newFakeHardware()
	f.msi = MSIRange1MHz
	c := New(f)

	if err := c.EnterLowPowerRun(); err != nil {
		t.Fatalf("Expected low-power run at 1MHz, got %v", err)
	}
	if !c.LowPowerRun() {
		t.Error("Expected low-power run requested")
	}

	// Staying under the ceiling is allowed.
	c.EnableMSI(MSIRange1MHz)
	c.SetSysclk(SourceMSI, NoDivision, NVICConfig{})

	c.EnableHSI()
	expectFatal(t, ErrLowPowerRunActive, func() {
		c.SetSysclk(SourceHSI, NoDivision, NVICConfig{})
	})

	c.ExitLowPowerRun()
	if c.LowPowerRun() {
		t.Error("Expected low-power run cleared")
	}
	c.SetSysclk(SourceHSI, NoDivision, NVICConfig{})
	if got := c.EffectiveFrequency(); got != HSIFrequency {
		t.Errorf("Expected 16MHz after exit, got %d", got)
	}
}
