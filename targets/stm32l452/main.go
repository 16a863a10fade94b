//go:build tinygo && stm32l4

package main

import (
	"io"

	"clkhal/console"
)

func main() {
	uart, retimer := InitConsoleUART()
	InitDebug(uart)

	ctrl := InitClock(retimer)
	if err := retimer.Err(); err != nil {
		// No divider fits the console baud rate: nobody can hear us
		debugEnabled = false
	}

	registry := console.NewRegistry()
	console.RegisterHelp(registry)
	console.RegisterClockCommands(registry, ctrl)
	registry.Register("dump", "", func(w io.Writer, args []string) error {
		ctrl.DumpHistory()
		return nil
	})

	con := console.New(uartReader{uart: uart}, uart, registry)
	DebugPrintln("clkhal console ready")
	for {
		con.Run()
	}
}
