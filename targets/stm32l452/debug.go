//go:build tinygo && stm32l4

package main

import (
	"machine"

	"clkhal/clock"
)

var (
	debugUART    *machine.UART
	debugEnabled bool
)

// InitDebug sends debug output to the console UART and routes the clock
// controller's trace through it
func InitDebug(uart *machine.UART) {
	debugUART = uart
	debugEnabled = true

	clock.SetDebugWriter(DebugPrintln)
	clock.SetDebugEnabled(true)
}

// DebugPrintln writes a string to the debug UART with newline
func DebugPrintln(s string) {
	if !debugEnabled || debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
