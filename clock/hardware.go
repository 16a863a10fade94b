package clock

// Hardware is the register-level side of the controller. Each method is a
// single named register effect; ordering and waiting are the controller's job.
type Hardware interface {
	// SetClock writes the enable bit of an oscillator or of the PLL.
	SetClock(src Source, on bool)
	// ClockReady reports the ready flag of an oscillator or the PLL lock flag.
	ClockReady(src Source) bool

	// SetMSIRange selects the MSI step from the control register and clears
	// the trim. Only legal while MSI is off.
	SetMSIRange(r MSIRange)
	MSIRange() MSIRange

	// WritePLLConfig writes source, M, N and R. Only legal while the PLL is off.
	WritePLLConfig(cfg PLLConfig)
	ReadPLLConfig() PLLConfig
	// EnablePLLOutput ungates the R tap feeding sysclk.
	EnablePLLOutput()

	SelectSysclk(src Source)
	// SysclkStatus is the source the hardware reports as driving sysclk.
	SysclkStatus() Source

	SetVoltageScaling(v VoltageScaling)
	VoltageScaling() VoltageScaling
	// VoltageScalingSettled reports that the regulator reached the selected level.
	VoltageScalingSettled() bool

	SetFlashLatency(l FlashLatency)
	FlashLatency() FlashLatency
	// EnableFlashAccelerators turns on prefetch and the instruction/data caches.
	EnableFlashAccelerators()

	SetBusPrescalers(p BusPrescalers)
	ReadBusPrescalers() BusPrescalers
	// EnableInterfaceClocks clocks the power and flash interfaces.
	EnableInterfaceClocks()

	SetLowPowerRun(on bool)
	LowPowerRunRequested() bool
	// RegulatorLowPower reports that the main regulator is in low-power mode.
	RegulatorLowPower() bool

	ApplyNVIC(cfg NVICConfig)
}

// waitUntil spins until ready reports true.
//
// There is no timeout: every flag polled here is asserted by hardware within
// a bounded number of cycles, so a wait that never returns is a hardware
// fault and the device is already unusable.
func waitUntil(ready func() bool) {
	for !ready() {
	}
}
