package clock

// PLLFrequency reconstructs the PLL output from the live configuration:
// ((input / M) * N) / R, where input is the nominal frequency of whichever
// oscillator currently feeds the PLL.
func (c *Controller) PLLFrequency() uint32 {
	cfg := c.hw.ReadPLLConfig()

	var input uint32
	switch cfg.Source {
	case SourceMSI:
		if !c.IsEnabled(SourceMSI) {
			fatal(wrap(ErrSourceNotReady, "pll input msi"))
		}
		input = c.hw.MSIRange().Frequency()
	case SourceHSI:
		if !c.IsEnabled(SourceHSI) {
			fatal(wrap(ErrSourceNotReady, "pll input hsi"))
		}
		input = HSIFrequency
	default:
		fatal(wrap(ErrInvalidPLLConfig, "input "+cfg.Source.String()))
	}

	return cfg.Output(input)
}

// SourceFrequency is the frequency src would drive sysclk at, computed from
// live hardware state.
func (c *Controller) SourceFrequency(src Source) uint32 {
	switch src {
	case SourceMSI:
		return c.hw.MSIRange().Frequency()
	case SourceHSI:
		return HSIFrequency
	case SourceLSI:
		return LSIFrequency
	case SourcePLL:
		return c.PLLFrequency()
	}
	fatal(wrap(ErrInvalidSource, src.String()))
	return 0
}
