//go:build tinygo && stm32l4

package main

import (
	"clkhal/clock"
	"clkhal/hal/stm32l4"
	"clkhal/periph/usart"
)

// Boot clock tree: HSI16 feeding the PLL, ((16MHz / 1) * 10) / 2 = 80MHz
var bootPLL = clock.PLLConfig{
	Source: clock.SourceHSI,
	M:      1,
	N:      10,
	R:      2,
}

// APB1 runs at half speed so the console USART keeps an exact divider
var bootPrescalers = clock.BusPrescalers{
	AHB:  clock.AHBDiv1,
	APB1: clock.APBDiv2,
	APB2: clock.APBDiv1,
}

// Group priority only, nothing masked
var bootNVIC = clock.NVICConfig{
	PriorityGrouping: 3,
	BasePriority:     0,
}

// InitClock takes over the clock tree and brings it up to 80MHz. The console
// retimer is attached first so the UART follows every step.
func InitClock(retimer *usart.Retimer) *clock.Controller {
	ctrl := clock.New(stm32l4.New(stm32l4.MMIO()))
	retimer.Attach(ctrl)

	ctrl.EnableHSI()
	if ctrl.SysclkSource() == clock.SourcePLL {
		// The runtime left the PLL driving sysclk; park on HSI to reprogram it
		ctrl.SetSysclk(clock.SourceHSI, clock.NoDivision, bootNVIC)
	}
	ctrl.EnablePLL(bootPLL)
	ctrl.SetSysclk(clock.SourcePLL, bootPrescalers, bootNVIC)

	DebugPrintln("[BOOT] sysclk " + clock.FormatHz(ctrl.EffectiveFrequency()) +
		" pclk1 " + clock.FormatHz(ctrl.PCLK1()) +
		" " + ctrl.VoltageScaling().String() + " " + ctrl.FlashLatency().String())
	return ctrl
}
