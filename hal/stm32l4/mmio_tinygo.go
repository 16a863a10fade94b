//go:build tinygo && stm32l4

package stm32l4

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"
)

// SCB application interrupt and reset control register
const (
	scbAIRCR          = 0xE000ED0C
	scbAIRCRVectKey   = 0x05FA << 16
	scbAIRCRPrigroup  = 0x7 << 8
	scbAIRCRPrigroupP = 8
)

func reg(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

// MMIO returns the peripherals at their hardware addresses.
func MMIO() *Peripherals {
	return &Peripherals{
		RCC: RCC{
			CR:       reg(RCCBase + RCC_CR),
			ICSCR:    reg(RCCBase + RCC_ICSCR),
			CFGR:     reg(RCCBase + RCC_CFGR),
			PLLCFGR:  reg(RCCBase + RCC_PLLCFGR),
			AHB1ENR:  reg(RCCBase + RCC_AHB1ENR),
			APB1ENR1: reg(RCCBase + RCC_APB1ENR1),
			CSR:      reg(RCCBase + RCC_CSR),
		},
		PWR: PWR{
			CR1: reg(PWRBase + PWR_CR1),
			SR2: reg(PWRBase + PWR_SR2),
		},
		FLASH: FLASH{
			ACR: reg(FLASHBase + FLASH_ACR),
		},
		NVIC: cortexNVIC{aircr: reg(scbAIRCR)},
	}
}

// cortexNVIC writes the priority grouping through the SCB and BASEPRI
// through the core register.
type cortexNVIC struct {
	aircr *volatile.Register32
}

func (n cortexNVIC) SetPriorityGrouping(grouping uint32) {
	v := n.aircr.Get()
	v &^= 0xFFFF<<16 | scbAIRCRPrigroup
	v |= scbAIRCRVectKey | (grouping&0x7)<<scbAIRCRPrigroupP
	n.aircr.Set(v)
}

func (n cortexNVIC) SetBasePriority(priority uint32) {
	arm.AsmFull("msr BASEPRI, {priority}", map[string]interface{}{
		"priority": priority,
	})
}
