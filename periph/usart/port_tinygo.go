//go:build tinygo && stm32l4

package usart

import "device/stm32"

// Hardware drives a USART peripheral through its registers.
type Hardware struct {
	Bus *stm32.USART_Type
}

func (h Hardware) WaitTransmitComplete() {
	if !h.Bus.CR1.HasBits(stm32.USART_CR1_UE) {
		return
	}
	for !h.Bus.ISR.HasBits(stm32.USART_ISR_TC) {
	}
}

func (h Hardware) Disable() {
	h.Bus.CR1.ClearBits(stm32.USART_CR1_UE)
}

func (h Hardware) SetBRR(brr uint32) {
	h.Bus.BRR.Set(brr)
}

func (h Hardware) Enable() {
	h.Bus.CR1.SetBits(stm32.USART_CR1_UE)
}
