package clock

// LowPowerRunMaxFrequency is the sysclk ceiling for low-power run; entry is
// only allowed strictly below it.
const LowPowerRunMaxFrequency = 2 * MHz

// EnterLowPowerRun switches the main regulator to low-power mode. It is
// refused, without touching any register, unless sysclk is below 2 MHz.
func (c *Controller) EnterLowPowerRun() error {
	if hz := c.EffectiveFrequency(); hz >= LowPowerRunMaxFrequency {
		return wrap(ErrLowPowerRunRefused, FormatHz(hz))
	}
	c.hw.SetLowPowerRun(true)
	debugTrace("[CLK] low-power run on")
	return nil
}

// ExitLowPowerRun returns the main regulator to normal mode and blocks
// until it has left low-power mode.
func (c *Controller) ExitLowPowerRun() {
	c.hw.SetLowPowerRun(false)
	waitUntil(func() bool { return !c.hw.RegulatorLowPower() })
	debugTrace("[CLK] low-power run off")
}

// LowPowerRun reports whether low-power run has been requested.
func (c *Controller) LowPowerRun() bool {
	return c.hw.LowPowerRunRequested()
}
