package clock

import (
	"errors"
	"testing"
)

// fakeHardware applies every effect immediately and records mutations in
// call order.
type fakeHardware struct {
	ops []string

	on     map[Source]bool
	msi    MSIRange
	pll    PLLConfig
	pllOut bool
	sw     Source
	vos    VoltageScaling
	lat    FlashLatency
	accel  bool
	pre    BusPrescalers
	lpr    bool
	nvic   NVICConfig
	ifclks bool
}

// newFakeHardware is the reset state: MSI 4 MHz driving sysclk, range 1,
// zero wait states.
func newFakeHardware() *fakeHardware {
	return &fakeHardware{
		on:  map[Source]bool{SourceMSI: true},
		msi: MSIRange4MHz,
		pll: PLLConfig{Source: SourceMSI, M: 1, N: 16, R: 2},
		sw:  SourceMSI,
		vos: VoltageScaling1,
		lat: FlashLatency0,
		pre: NoDivision,
	}
}

func (f *fakeHardware) record(op string) {
	f.ops = append(f.ops, op)
}

func (f *fakeHardware) reset() {
	f.ops = nil
}

func (f *fakeHardware) SetClock(src Source, on bool) {
	if on {
		f.record("on " + src.String())
	} else {
		f.record("off " + src.String())
	}
	f.on[src] = on
}

func (f *fakeHardware) ClockReady(src Source) bool {
	if src == SourcePLL {
		return f.on[SourcePLL] && f.on[f.pll.Source]
	}
	return f.on[src]
}

func (f *fakeHardware) SetMSIRange(r MSIRange) {
	f.record("msirange " + FormatHz(r.Frequency()))
	f.msi = r
}

func (f *fakeHardware) MSIRange() MSIRange { return f.msi }

func (f *fakeHardware) WritePLLConfig(cfg PLLConfig) {
	f.record("pllcfg")
	f.pll = cfg
}

func (f *fakeHardware) ReadPLLConfig() PLLConfig { return f.pll }

func (f *fakeHardware) EnablePLLOutput() {
	f.record("pllout")
	f.pllOut = true
}

func (f *fakeHardware) SelectSysclk(src Source) {
	f.record("sysclk " + src.String())
	f.sw = src
}

func (f *fakeHardware) SysclkStatus() Source { return f.sw }

func (f *fakeHardware) SetVoltageScaling(v VoltageScaling) {
	f.record("vos " + v.String())
	f.vos = v
}

func (f *fakeHardware) VoltageScaling() VoltageScaling { return f.vos }

func (f *fakeHardware) VoltageScalingSettled() bool { return true }

func (f *fakeHardware) SetFlashLatency(l FlashLatency) {
	f.record("latency " + l.String())
	f.lat = l
}

func (f *fakeHardware) FlashLatency() FlashLatency { return f.lat }

func (f *fakeHardware) EnableFlashAccelerators() {
	f.record("accel")
	f.accel = true
}

func (f *fakeHardware) SetBusPrescalers(p BusPrescalers) {
	f.record("prescalers")
	f.pre = p
}

func (f *fakeHardware) ReadBusPrescalers() BusPrescalers { return f.pre }

func (f *fakeHardware) EnableInterfaceClocks() {
	f.record("ifclocks")
	f.ifclks = true
}

func (f *fakeHardware) SetLowPowerRun(on bool) {
	if on {
		f.record("lpr on")
	} else {
		f.record("lpr off")
	}
	f.lpr = on
}

func (f *fakeHardware) LowPowerRunRequested() bool { return f.lpr }

func (f *fakeHardware) RegulatorLowPower() bool { return f.lpr }

func (f *fakeHardware) ApplyNVIC(cfg NVICConfig) {
	f.record("nvic")
	f.nvic = cfg
}

// indexOf returns the position of the first op equal to name, or -1.
func indexOf(ops []string, name string) int {
	for i, op := range ops {
		if op == name {
			return i
		}
	}
	return -1
}

// expectFatal runs fn and checks that it halts with target.
func expectFatal(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("Expected fatal %v, got none", target)
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("Expected error panic, got %v", r)
		}
		if !errors.Is(err, target) {
			t.Errorf("Expected %v, got %v", target, err)
		}
	}()
	fn()
}
