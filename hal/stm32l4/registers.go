// Package stm32l4 binds the clock controller to the STM32L452 RCC, PWR and
// FLASH registers.
package stm32l4

import "clkhal/hal"

// Peripheral base addresses
const (
	PWRBase   = 0x40007000
	RCCBase   = 0x40021000
	FLASHBase = 0x40022000
)

// Register offsets
const (
	RCC_CR       = 0x00
	RCC_ICSCR    = 0x04
	RCC_CFGR     = 0x08
	RCC_PLLCFGR  = 0x0C
	RCC_AHB1ENR  = 0x48
	RCC_APB1ENR1 = 0x58
	RCC_CSR      = 0x94

	PWR_CR1 = 0x00
	PWR_SR2 = 0x14

	FLASH_ACR = 0x00
)

// RCC_CR
const (
	RCC_CR_MSION        = 1 << 0
	RCC_CR_MSIRDY       = 1 << 1
	RCC_CR_MSIRGSEL     = 1 << 3
	RCC_CR_MSIRANGE_Pos = 4
	RCC_CR_MSIRANGE_Msk = 0xF
	RCC_CR_HSION        = 1 << 8
	RCC_CR_HSIRDY       = 1 << 10
	RCC_CR_PLLON        = 1 << 24
	RCC_CR_PLLRDY       = 1 << 25
)

// RCC_ICSCR
const (
	RCC_ICSCR_MSITRIM_Pos = 8
	RCC_ICSCR_MSITRIM_Msk = 0xFF
)

// RCC_CFGR
const (
	RCC_CFGR_SW_Pos    = 0
	RCC_CFGR_SW_Msk    = 0x3
	RCC_CFGR_SWS_Pos   = 2
	RCC_CFGR_SWS_Msk   = 0x3
	RCC_CFGR_HPRE_Pos  = 4
	RCC_CFGR_HPRE_Msk  = 0xF
	RCC_CFGR_PPRE1_Pos = 8
	RCC_CFGR_PPRE1_Msk = 0x7
	RCC_CFGR_PPRE2_Pos = 11
	RCC_CFGR_PPRE2_Msk = 0x7

	// SW/SWS encodings
	RCC_CFGR_SW_MSI = 0
	RCC_CFGR_SW_HSI = 1
	RCC_CFGR_SW_HSE = 2
	RCC_CFGR_SW_PLL = 3
)

// RCC_PLLCFGR
const (
	RCC_PLLCFGR_PLLSRC_Pos = 0
	RCC_PLLCFGR_PLLSRC_Msk = 0x3
	RCC_PLLCFGR_PLLM_Pos   = 4
	RCC_PLLCFGR_PLLM_Msk   = 0x7
	RCC_PLLCFGR_PLLN_Pos   = 8
	RCC_PLLCFGR_PLLN_Msk   = 0x7F
	RCC_PLLCFGR_PLLREN     = 1 << 24
	RCC_PLLCFGR_PLLR_Pos   = 25
	RCC_PLLCFGR_PLLR_Msk   = 0x3

	RCC_PLLCFGR_PLLSRC_NONE = 0
	RCC_PLLCFGR_PLLSRC_MSI  = 1
	RCC_PLLCFGR_PLLSRC_HSI  = 2
)

// RCC_AHB1ENR, RCC_APB1ENR1, RCC_CSR
const (
	RCC_AHB1ENR_FLASHEN = 1 << 8
	RCC_APB1ENR1_PWREN  = 1 << 28
	RCC_CSR_LSION       = 1 << 0
	RCC_CSR_LSIRDY      = 1 << 1
)

// PWR_CR1, PWR_SR2
const (
	PWR_CR1_VOS_Pos = 9
	PWR_CR1_VOS_Msk = 0x3
	PWR_CR1_LPR     = 1 << 14

	PWR_CR1_VOS_RANGE1 = 1
	PWR_CR1_VOS_RANGE2 = 2

	PWR_SR2_REGLPF = 1 << 9
	PWR_SR2_VOSF   = 1 << 10
)

// FLASH_ACR
const (
	FLASH_ACR_LATENCY_Pos = 0
	FLASH_ACR_LATENCY_Msk = 0x7
	FLASH_ACR_PRFTEN      = 1 << 8
	FLASH_ACR_ICEN        = 1 << 9
	FLASH_ACR_DCEN        = 1 << 10
)

// RCC is the subset of the reset and clock control block the controller uses.
type RCC struct {
	CR       hal.Register
	ICSCR    hal.Register
	CFGR     hal.Register
	PLLCFGR  hal.Register
	AHB1ENR  hal.Register
	APB1ENR1 hal.Register
	CSR      hal.Register
}

// PWR is the subset of the power controller the controller uses.
type PWR struct {
	CR1 hal.Register
	SR2 hal.Register
}

// FLASH is the flash interface access control.
type FLASH struct {
	ACR hal.Register
}

// NVIC applies interrupt priority settings.
type NVIC interface {
	SetPriorityGrouping(grouping uint32)
	SetBasePriority(priority uint32)
}

// Peripherals groups everything the clock binding touches.
type Peripherals struct {
	RCC   RCC
	PWR   PWR
	FLASH FLASH
	NVIC  NVIC
}
