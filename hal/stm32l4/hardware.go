package stm32l4

import (
	"clkhal/clock"
	"clkhal/hal"
)

// Hardware implements clock.Hardware on the STM32L452 register layout.
type Hardware struct {
	p *Peripherals
}

var _ clock.Hardware = (*Hardware)(nil)

// New wraps a set of peripherals, either MMIO() on target or a simulator.
func New(p *Peripherals) *Hardware {
	return &Hardware{p: p}
}

// Peripherals returns the underlying register set.
func (h *Hardware) Peripherals() *Peripherals {
	return h.p
}

func (h *Hardware) SetClock(src clock.Source, on bool) {
	var reg hal.Register
	var bit uint32
	switch src {
	case clock.SourceMSI:
		reg, bit = h.p.RCC.CR, RCC_CR_MSION
	case clock.SourceHSI:
		reg, bit = h.p.RCC.CR, RCC_CR_HSION
	case clock.SourcePLL:
		reg, bit = h.p.RCC.CR, RCC_CR_PLLON
	case clock.SourceLSI:
		reg, bit = h.p.RCC.CSR, RCC_CSR_LSION
	default:
		return
	}
	if on {
		reg.SetBits(bit)
	} else {
		reg.ClearBits(bit)
	}
}

func (h *Hardware) ClockReady(src clock.Source) bool {
	switch src {
	case clock.SourceMSI:
		return h.p.RCC.CR.HasBits(RCC_CR_MSIRDY)
	case clock.SourceHSI:
		return h.p.RCC.CR.HasBits(RCC_CR_HSIRDY)
	case clock.SourcePLL:
		return h.p.RCC.CR.HasBits(RCC_CR_PLLRDY)
	case clock.SourceLSI:
		return h.p.RCC.CSR.HasBits(RCC_CSR_LSIRDY)
	}
	return false
}

func (h *Hardware) SetMSIRange(r clock.MSIRange) {
	h.p.RCC.CR.ReplaceBits(uint32(r), RCC_CR_MSIRANGE_Msk, RCC_CR_MSIRANGE_Pos)
	h.p.RCC.ICSCR.ReplaceBits(0, RCC_ICSCR_MSITRIM_Msk, RCC_ICSCR_MSITRIM_Pos)
	h.p.RCC.CR.SetBits(RCC_CR_MSIRGSEL)
}

func (h *Hardware) MSIRange() clock.MSIRange {
	return clock.MSIRange(hal.Field(h.p.RCC.CR, RCC_CR_MSIRANGE_Msk, RCC_CR_MSIRANGE_Pos))
}

func (h *Hardware) WritePLLConfig(cfg clock.PLLConfig) {
	var src uint32
	switch cfg.Source {
	case clock.SourceMSI:
		src = RCC_PLLCFGR_PLLSRC_MSI
	case clock.SourceHSI:
		src = RCC_PLLCFGR_PLLSRC_HSI
	}

	v := h.p.RCC.PLLCFGR.Get()
	v &^= RCC_PLLCFGR_PLLSRC_Msk<<RCC_PLLCFGR_PLLSRC_Pos |
		RCC_PLLCFGR_PLLM_Msk<<RCC_PLLCFGR_PLLM_Pos |
		RCC_PLLCFGR_PLLN_Msk<<RCC_PLLCFGR_PLLN_Pos |
		RCC_PLLCFGR_PLLR_Msk<<RCC_PLLCFGR_PLLR_Pos
	v |= src<<RCC_PLLCFGR_PLLSRC_Pos |
		uint32(cfg.M-1)<<RCC_PLLCFGR_PLLM_Pos |
		uint32(cfg.N)<<RCC_PLLCFGR_PLLN_Pos |
		uint32(cfg.R/2-1)<<RCC_PLLCFGR_PLLR_Pos
	h.p.RCC.PLLCFGR.Set(v)
}

func (h *Hardware) ReadPLLConfig() clock.PLLConfig {
	r := h.p.RCC.PLLCFGR
	cfg := clock.PLLConfig{
		M: uint8(hal.Field(r, RCC_PLLCFGR_PLLM_Msk, RCC_PLLCFGR_PLLM_Pos)) + 1,
		N: uint8(hal.Field(r, RCC_PLLCFGR_PLLN_Msk, RCC_PLLCFGR_PLLN_Pos)),
		R: (uint8(hal.Field(r, RCC_PLLCFGR_PLLR_Msk, RCC_PLLCFGR_PLLR_Pos)) + 1) * 2,
	}
	switch hal.Field(r, RCC_PLLCFGR_PLLSRC_Msk, RCC_PLLCFGR_PLLSRC_Pos) {
	case RCC_PLLCFGR_PLLSRC_MSI:
		cfg.Source = clock.SourceMSI
	case RCC_PLLCFGR_PLLSRC_HSI:
		cfg.Source = clock.SourceHSI
	}
	return cfg
}

func (h *Hardware) EnablePLLOutput() {
	h.p.RCC.PLLCFGR.SetBits(RCC_PLLCFGR_PLLREN)
}

func (h *Hardware) SelectSysclk(src clock.Source) {
	var sw uint32
	switch src {
	case clock.SourceMSI:
		sw = RCC_CFGR_SW_MSI
	case clock.SourceHSI:
		sw = RCC_CFGR_SW_HSI
	case clock.SourcePLL:
		sw = RCC_CFGR_SW_PLL
	default:
		return
	}
	h.p.RCC.CFGR.ReplaceBits(sw, RCC_CFGR_SW_Msk, RCC_CFGR_SW_Pos)
}

func (h *Hardware) SysclkStatus() clock.Source {
	switch hal.Field(h.p.RCC.CFGR, RCC_CFGR_SWS_Msk, RCC_CFGR_SWS_Pos) {
	case RCC_CFGR_SW_MSI:
		return clock.SourceMSI
	case RCC_CFGR_SW_HSI:
		return clock.SourceHSI
	case RCC_CFGR_SW_PLL:
		return clock.SourcePLL
	}
	return clock.SourceUnknown // HSE is not managed here
}

func (h *Hardware) SetVoltageScaling(v clock.VoltageScaling) {
	var vos uint32
	switch v {
	case clock.VoltageScaling1:
		vos = PWR_CR1_VOS_RANGE1
	case clock.VoltageScaling2:
		vos = PWR_CR1_VOS_RANGE2
	default:
		return
	}
	h.p.PWR.CR1.ReplaceBits(vos, PWR_CR1_VOS_Msk, PWR_CR1_VOS_Pos)
}

func (h *Hardware) VoltageScaling() clock.VoltageScaling {
	switch hal.Field(h.p.PWR.CR1, PWR_CR1_VOS_Msk, PWR_CR1_VOS_Pos) {
	case PWR_CR1_VOS_RANGE1:
		return clock.VoltageScaling1
	case PWR_CR1_VOS_RANGE2:
		return clock.VoltageScaling2
	}
	return clock.VoltageScalingUnknown
}

// VoltageScalingSettled waits out VOSF, which is set while the regulator
// is moving to the new level.
func (h *Hardware) VoltageScalingSettled() bool {
	return !h.p.PWR.SR2.HasBits(PWR_SR2_VOSF)
}

func (h *Hardware) SetFlashLatency(l clock.FlashLatency) {
	h.p.FLASH.ACR.ReplaceBits(uint32(l), FLASH_ACR_LATENCY_Msk, FLASH_ACR_LATENCY_Pos)
}

func (h *Hardware) FlashLatency() clock.FlashLatency {
	l := hal.Field(h.p.FLASH.ACR, FLASH_ACR_LATENCY_Msk, FLASH_ACR_LATENCY_Pos)
	if l > uint32(clock.FlashLatency4) {
		return clock.FlashLatencyUnknown
	}
	return clock.FlashLatency(l)
}

func (h *Hardware) EnableFlashAccelerators() {
	h.p.FLASH.ACR.SetBits(FLASH_ACR_PRFTEN | FLASH_ACR_ICEN | FLASH_ACR_DCEN)
}

// HPRE and PPRE encodings: the top bit enables division, the rest selects it.
var (
	hpreBits = [...]uint32{clock.AHBDiv1: 0x0, clock.AHBDiv2: 0x8, clock.AHBDiv4: 0x9, clock.AHBDiv8: 0xA,
		clock.AHBDiv16: 0xB, clock.AHBDiv64: 0xC, clock.AHBDiv128: 0xD, clock.AHBDiv256: 0xE, clock.AHBDiv512: 0xF}
	ppreBits = [...]uint32{clock.APBDiv1: 0x0, clock.APBDiv2: 0x4, clock.APBDiv4: 0x5, clock.APBDiv8: 0x6,
		clock.APBDiv16: 0x7}
)

func (h *Hardware) SetBusPrescalers(p clock.BusPrescalers) {
	if p.Validate() != nil {
		return
	}
	v := h.p.RCC.CFGR.Get()
	v &^= RCC_CFGR_HPRE_Msk<<RCC_CFGR_HPRE_Pos |
		RCC_CFGR_PPRE1_Msk<<RCC_CFGR_PPRE1_Pos |
		RCC_CFGR_PPRE2_Msk<<RCC_CFGR_PPRE2_Pos
	v |= hpreBits[p.AHB]<<RCC_CFGR_HPRE_Pos |
		ppreBits[p.APB1]<<RCC_CFGR_PPRE1_Pos |
		ppreBits[p.APB2]<<RCC_CFGR_PPRE2_Pos
	h.p.RCC.CFGR.Set(v)
}

func (h *Hardware) ReadBusPrescalers() clock.BusPrescalers {
	cfgr := h.p.RCC.CFGR
	return clock.BusPrescalers{
		AHB:  decodeHPRE(hal.Field(cfgr, RCC_CFGR_HPRE_Msk, RCC_CFGR_HPRE_Pos)),
		APB1: decodePPRE(hal.Field(cfgr, RCC_CFGR_PPRE1_Msk, RCC_CFGR_PPRE1_Pos)),
		APB2: decodePPRE(hal.Field(cfgr, RCC_CFGR_PPRE2_Msk, RCC_CFGR_PPRE2_Pos)),
	}
}

func decodeHPRE(bits uint32) clock.AHBPrescaler {
	if bits < 0x8 {
		return clock.AHBDiv1
	}
	for p, b := range hpreBits {
		if p != 0 && b == bits {
			return clock.AHBPrescaler(p)
		}
	}
	return clock.AHBUnknown
}

func decodePPRE(bits uint32) clock.APBPrescaler {
	if bits < 0x4 {
		return clock.APBDiv1
	}
	for p, b := range ppreBits {
		if p != 0 && b == bits {
			return clock.APBPrescaler(p)
		}
	}
	return clock.APBUnknown
}

func (h *Hardware) EnableInterfaceClocks() {
	if !h.p.RCC.APB1ENR1.HasBits(RCC_APB1ENR1_PWREN) {
		h.p.RCC.APB1ENR1.SetBits(RCC_APB1ENR1_PWREN)
	}
	if !h.p.RCC.AHB1ENR.HasBits(RCC_AHB1ENR_FLASHEN) {
		h.p.RCC.AHB1ENR.SetBits(RCC_AHB1ENR_FLASHEN)
	}
}

func (h *Hardware) SetLowPowerRun(on bool) {
	if on {
		h.p.PWR.CR1.SetBits(PWR_CR1_LPR)
	} else {
		h.p.PWR.CR1.ClearBits(PWR_CR1_LPR)
	}
}

func (h *Hardware) LowPowerRunRequested() bool {
	return h.p.PWR.CR1.HasBits(PWR_CR1_LPR)
}

func (h *Hardware) RegulatorLowPower() bool {
	return h.p.PWR.SR2.HasBits(PWR_SR2_REGLPF)
}

func (h *Hardware) ApplyNVIC(cfg clock.NVICConfig) {
	if h.p.NVIC == nil {
		return
	}
	h.p.NVIC.SetPriorityGrouping(cfg.PriorityGrouping)
	h.p.NVIC.SetBasePriority(cfg.BasePriority)
}
