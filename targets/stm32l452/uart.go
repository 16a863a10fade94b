//go:build tinygo && stm32l4

package main

import (
	"machine"
	"time"

	"clkhal/periph/usart"
)

const consoleBaud = 115200

// uartReader blocks until the receive ring has data. machine.UART.Read
// returns (0, nil) when the ring is empty, which a bufio.Scanner treats as
// no progress.
type uartReader struct {
	uart *machine.UART
}

func (r uartReader) Read(b []byte) (int, error) {
	for r.uart.Buffered() == 0 {
		time.Sleep(time.Millisecond)
	}
	return r.uart.Read(b)
}

// InitConsoleUART configures the console UART and returns the retimer that
// keeps its baud rate across sysclk changes
func InitConsoleUART() (*machine.UART, *usart.Retimer) {
	uart := machine.DefaultUART
	uart.Configure(machine.UARTConfig{BaudRate: consoleBaud})

	retimer := &usart.Retimer{
		Port:         usart.Hardware{Bus: uart.Bus},
		Baud:         consoleBaud,
		Oversampling: usart.Oversampling16,
	}
	return uart, retimer
}
