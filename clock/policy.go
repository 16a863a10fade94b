package clock

import "strconv"

// Voltage scaling ceilings per source class
const (
	msiRange2MaxHz = 24 * MHz
	pllRange2MaxHz = 26 * MHz
	msiRange1MaxHz = 48 * MHz
	pllRange1MaxHz = 80 * MHz
)

// Flash latency ceilings, lowest first. Index is the wait-state count.
var (
	latencyCeilingsRange1 = [...]uint32{16 * MHz, 32 * MHz, 48 * MHz, 64 * MHz, 80 * MHz}
	latencyCeilingsRange2 = [...]uint32{6 * MHz, 12 * MHz, 18 * MHz, 26 * MHz}
)

// SelectVoltageScaling picks the least capable level able to run src at hz.
// HSI is always run at range 1.
func SelectVoltageScaling(src Source, hz uint32) (VoltageScaling, error) {
	if (src == SourceMSI && hz <= msiRange2MaxHz) || (src == SourcePLL && hz <= pllRange2MaxHz) {
		return VoltageScaling2, nil
	}
	if (src == SourceMSI && hz <= msiRange1MaxHz) || (src == SourcePLL && hz <= pllRange1MaxHz) || src == SourceHSI {
		return VoltageScaling1, nil
	}
	return VoltageScalingUnknown, wrap(ErrFrequencyOutOfRange, src.String()+" at "+strconv.FormatUint(uint64(hz), 10)+" Hz")
}

// SelectFlashLatency picks the fewest wait states that allow hz at level v.
func SelectFlashLatency(hz uint32, v VoltageScaling) (FlashLatency, error) {
	ceilings, err := latencyCeilings(v)
	if err != nil {
		return FlashLatencyUnknown, err
	}
	for i, ceiling := range ceilings {
		if hz <= ceiling {
			return FlashLatency(i), nil
		}
	}
	return FlashLatencyUnknown, wrap(ErrFrequencyOutOfRange, strconv.FormatUint(uint64(hz), 10)+" Hz at "+v.String())
}

// MaxFrequency is the highest sysclk level v supports.
func MaxFrequency(v VoltageScaling) uint32 {
	ceilings, err := latencyCeilings(v)
	if err != nil {
		return 0
	}
	return ceilings[len(ceilings)-1]
}

// MaxFrequencyAt is the highest sysclk level v supports with l wait states.
func MaxFrequencyAt(v VoltageScaling, l FlashLatency) uint32 {
	ceilings, err := latencyCeilings(v)
	if err != nil || l == FlashLatencyUnknown {
		return 0
	}
	if int(l) >= len(ceilings) {
		return ceilings[len(ceilings)-1]
	}
	return ceilings[l]
}

func latencyCeilings(v VoltageScaling) ([]uint32, error) {
	switch v {
	case VoltageScaling1:
		return latencyCeilingsRange1[:], nil
	case VoltageScaling2:
		return latencyCeilingsRange2[:], nil
	}
	return nil, ErrUnknownVoltageScaling
}

// mustVoltageScaling and mustFlashLatency turn a policy miss into a halt.
func mustVoltageScaling(src Source, hz uint32) VoltageScaling {
	v, err := SelectVoltageScaling(src, hz)
	if err != nil {
		fatal(err)
	}
	return v
}

func mustFlashLatency(hz uint32, v VoltageScaling) FlashLatency {
	l, err := SelectFlashLatency(hz, v)
	if err != nil {
		fatal(err)
	}
	return l
}
