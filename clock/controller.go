package clock

import "sync/atomic"

// Controller owns the clock tree of one MCU.
//
// It is built once by the application's init code and handed to whatever
// needs the system frequency. The controller is not safe for concurrent
// mutation; EffectiveFrequency may be read from any context, including
// interrupt handlers.
type Controller struct {
	hw Hardware

	frequency  atomic.Uint32 // effective sysclk in Hz
	prescalers BusPrescalers

	preChange  Hook
	postChange Hook

	log TransitionLog
}

// New binds a controller to hw and adopts whatever configuration the
// hardware is currently running (reset state or a bootloader's setup).
func New(hw Hardware) *Controller {
	c := &Controller{hw: hw}
	c.prescalers = hw.ReadBusPrescalers()
	if src := hw.SysclkStatus(); src.CanDriveSysclk() && c.IsEnabled(src) {
		c.frequency.Store(c.SourceFrequency(src))
	}
	return c
}

// EffectiveFrequency is the sysclk frequency published by the last completed
// transition.
func (c *Controller) EffectiveFrequency() uint32 {
	return c.frequency.Load()
}

// HCLK is the core bus frequency.
func (c *Controller) HCLK() uint32 {
	div := c.prescalers.AHB.Divisor()
	if div == 0 {
		return 0
	}
	return c.EffectiveFrequency() / div
}

// PCLK1 is the APB1 peripheral bus frequency.
func (c *Controller) PCLK1() uint32 {
	div := c.prescalers.APB1.Divisor()
	if div == 0 {
		return 0
	}
	return c.HCLK() / div
}

// PCLK2 is the APB2 peripheral bus frequency.
func (c *Controller) PCLK2() uint32 {
	div := c.prescalers.APB2.Divisor()
	if div == 0 {
		return 0
	}
	return c.HCLK() / div
}

// BusPrescalers returns the prescalers applied by the last transition.
func (c *Controller) BusPrescalers() BusPrescalers {
	return c.prescalers
}

// SysclkSource is the source the hardware reports as driving sysclk.
func (c *Controller) SysclkSource() Source {
	return c.hw.SysclkStatus()
}

// VoltageScaling is the live regulator level.
func (c *Controller) VoltageScaling() VoltageScaling {
	return c.hw.VoltageScaling()
}

// FlashLatency is the live wait-state setting.
func (c *Controller) FlashLatency() FlashLatency {
	return c.hw.FlashLatency()
}

// MSIRange is the live MSI step.
func (c *Controller) MSIRange() MSIRange {
	return c.hw.MSIRange()
}

// PLLConfig reads back the live PLL configuration.
func (c *Controller) PLLConfig() PLLConfig {
	return c.hw.ReadPLLConfig()
}

// RegisterPreChangeHook installs the hook fired before any register is
// touched by a sysclk change. It replaces the previous one; nil clears it.
func (c *Controller) RegisterPreChangeHook(h Hook) {
	c.preChange = h
}

// RegisterPostChangeHook installs the hook fired once a sysclk change is
// complete. It replaces the previous one; nil clears it.
func (c *Controller) RegisterPostChangeHook(h Hook) {
	c.postChange = h
}

// History returns the most recent transitions, oldest first.
func (c *Controller) History() []TransitionEvent {
	return c.log.Events()
}

// DumpHistory writes the transition log through the debug writer.
func (c *Controller) DumpHistory() {
	c.log.Dump(debugPrintln)
}

// IsEnabled reports whether src is running and ready.
func (c *Controller) IsEnabled(src Source) bool {
	switch src {
	case SourceMSI, SourceHSI, SourceLSI, SourcePLL:
		return c.hw.ClockReady(src)
	}
	return false
}

// enableClock sets the enable bit of src and blocks until it is ready.
func (c *Controller) enableClock(src Source) {
	c.hw.SetClock(src, true)
	waitUntil(func() bool { return c.hw.ClockReady(src) })
}

// disableClock clears the enable bit of src and blocks until the ready
// flag drops.
func (c *Controller) disableClock(src Source) {
	c.hw.SetClock(src, false)
	waitUntil(func() bool { return !c.hw.ClockReady(src) })
}

// inUse reports whether switching src off would pull the clock from under
// the running system: it drives sysclk or feeds a running PLL.
func (c *Controller) inUse(src Source) bool {
	if c.hw.SysclkStatus() == src {
		return true
	}
	if src != SourcePLL && c.hw.ClockReady(SourcePLL) && c.hw.ReadPLLConfig().Source == src {
		return true
	}
	return false
}

// EnableMSI starts the multi-speed oscillator at step r.
func (c *Controller) EnableMSI(r MSIRange) {
	if !r.Valid() {
		fatal(wrap(ErrInvalidSource, "msi range"))
	}
	if c.inUse(SourceMSI) {
		if c.hw.MSIRange() == r && c.hw.ClockReady(SourceMSI) {
			return
		}
		fatal(wrap(ErrActiveSource, "msi range change"))
	}
	c.disableClock(SourceMSI)
	c.hw.SetMSIRange(r)
	c.enableClock(SourceMSI)
}

// EnableHSI starts the 16 MHz internal oscillator.
func (c *Controller) EnableHSI() {
	c.enableClock(SourceHSI)
}

// EnableLSI starts the 32 kHz internal oscillator.
func (c *Controller) EnableLSI() {
	c.enableClock(SourceLSI)
}

// EnableOscillator starts src; r is only used for MSI.
func (c *Controller) EnableOscillator(src Source, r MSIRange) {
	switch src {
	case SourceMSI:
		c.EnableMSI(r)
	case SourceHSI:
		c.EnableHSI()
	case SourceLSI:
		c.EnableLSI()
	default:
		fatal(wrap(ErrInvalidSource, "oscillator "+src.String()))
	}
}

// DisableMSI stops the multi-speed oscillator.
func (c *Controller) DisableMSI() {
	c.DisableOscillator(SourceMSI)
}

// DisableHSI stops the 16 MHz internal oscillator.
func (c *Controller) DisableHSI() {
	c.DisableOscillator(SourceHSI)
}

// DisableLSI stops the 32 kHz internal oscillator.
func (c *Controller) DisableLSI() {
	c.DisableOscillator(SourceLSI)
}

// DisableOscillator stops src. Stopping the sysclk source or the running
// PLL's input is a configuration error: the hardware would keep it running
// and the wait would never finish.
func (c *Controller) DisableOscillator(src Source) {
	switch src {
	case SourceMSI, SourceHSI, SourceLSI:
	default:
		fatal(wrap(ErrInvalidSource, "oscillator "+src.String()))
	}
	if c.inUse(src) {
		fatal(wrap(ErrActiveSource, src.String()))
	}
	c.disableClock(src)
}

// EnablePLL configures and locks the main PLL. The input oscillator must
// already be running. Dividers are written while the PLL is off and the
// R output is ungated only after lock.
func (c *Controller) EnablePLL(cfg PLLConfig) {
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	if !c.IsEnabled(cfg.Source) {
		fatal(wrap(ErrSourceNotReady, "pll input "+cfg.Source.String()))
	}
	if c.hw.SysclkStatus() == SourcePLL {
		fatal(wrap(ErrActiveSource, "pll"))
	}
	if c.hw.ClockReady(SourcePLL) {
		c.disableClock(SourcePLL)
	}

	c.hw.WritePLLConfig(cfg)
	c.enableClock(SourcePLL)
	c.hw.EnablePLLOutput()
}

// DisablePLL stops the main PLL.
func (c *Controller) DisablePLL() {
	if c.hw.SysclkStatus() == SourcePLL {
		fatal(wrap(ErrActiveSource, "pll"))
	}
	c.disableClock(SourcePLL)
}
