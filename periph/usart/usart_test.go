package usart

import (
	"errors"
	"reflect"
	"testing"

	"clkhal/clock"
	"clkhal/hal/stm32l4"
	"clkhal/hal/stm32l4/sim"
)

func TestBRR(t *testing.T) {
	tests := []struct {
		name string
		pclk uint32
		baud uint32
		o    Oversampling
		want uint32
	}{
		{"4MHz 115200 x16", 4000000, 115200, Oversampling16, 34},
		{"80MHz 115200 x16", 80000000, 115200, Oversampling16, 694},
		{"16MHz 9600 x16", 16000000, 9600, Oversampling16, 1666},
		// usartdiv = 2*16M/115200 = 277 = 0x115 -> 0x110 | 0x5>>1
		{"16MHz 115200 x8", 16000000, 115200, Oversampling8, 0x112},
		// usartdiv = 2*80M/115200 = 1388 = 0x56C -> 0x560 | 0xC>>1
		{"80MHz 115200 x8", 80000000, 115200, Oversampling8, 0x566},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BRR(tt.pclk, tt.baud, tt.o)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %#x, got %#x", tt.want, got)
			}
		})
	}
}

func TestBRRErrors(t *testing.T) {
	if _, err := BRR(16000000, 0, Oversampling16); !errors.Is(err, ErrZeroBaud) {
		t.Errorf("Expected ErrZeroBaud, got %v", err)
	}
	// 100kHz cannot produce 115200 baud
	if _, err := BRR(100000, 115200, Oversampling16); !errors.Is(err, ErrDividerRange) {
		t.Errorf("Expected ErrDividerRange for a slow clock, got %v", err)
	}
	// 80MHz / 300 baud overflows 16 bits
	if _, err := BRR(80000000, 300, Oversampling16); !errors.Is(err, ErrDividerRange) {
		t.Errorf("Expected ErrDividerRange for an overflow, got %v", err)
	}
	if _, err := BRR(16000000, 9600, Oversampling(7)); !errors.Is(err, ErrUnknownOversampling) {
		t.Errorf("Expected ErrUnknownOversampling, got %v", err)
	}
}

type fakePort struct {
	ops []string
	brr uint32
	on  bool
}

func (p *fakePort) WaitTransmitComplete() {
	p.ops = append(p.ops, "drain")
}

func (p *fakePort) Disable() {
	p.ops = append(p.ops, "disable")
	p.on = false
}

func (p *fakePort) SetBRR(brr uint32) {
	p.ops = append(p.ops, "brr")
	p.brr = brr
}

func (p *fakePort) Enable() {
	p.ops = append(p.ops, "enable")
	p.on = true
}

func TestRetimerAcrossSysclkChange(t *testing.T) {
	s := sim.New()
	c := clock.New(stm32l4.New(s.Peripherals()))

	port := &fakePort{}
	r := &Retimer{Port: port, Baud: 115200}
	r.Attach(c)
	if err := r.Configure(); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if port.brr != 34 || !port.on {
		t.Fatalf("Expected BRR 34 at 4MHz, got %d (on=%v)", port.brr, port.on)
	}

	c.EnableHSI()
	c.EnablePLL(clock.PLLConfig{Source: clock.SourceHSI, M: 1, N: 10, R: 2})

	var writesAtDisable int
	port.ops = nil
	c.RegisterPreChangeHook(func(tr clock.Transition) {
		r.Suspend(tr)
		writesAtDisable = len(s.Writes())
	})
	s.ClearTrace()
	c.SetSysclk(clock.SourcePLL, clock.NoDivision, clock.NVICConfig{})

	want := []string{"drain", "disable", "brr", "enable"}
	if !reflect.DeepEqual(port.ops, want) {
		t.Errorf("Expected port ops %v, got %v", want, port.ops)
	}
	if writesAtDisable != 0 {
		t.Errorf("Port disabled after %d clock writes", writesAtDisable)
	}
	if port.brr != 694 {
		t.Errorf("Expected BRR 694 at 80MHz, got %d", port.brr)
	}
	if r.Err() != nil {
		t.Errorf("Unexpected error: %v", r.Err())
	}
}

func TestRetimerFollowsPrescaler(t *testing.T) {
	s := sim.New()
	c := clock.New(stm32l4.New(s.Peripherals()))

	port := &fakePort{}
	r := &Retimer{Port: port, Baud: 9600, Oversampling: Oversampling8}
	r.Attach(c)

	c.EnableHSI()
	c.SetSysclk(clock.SourceHSI, clock.BusPrescalers{AHB: clock.AHBDiv1, APB1: clock.APBDiv4, APB2: clock.APBDiv1}, clock.NVICConfig{})

	// PCLK1 = 4MHz, usartdiv = 2*4M/9600 = 833 = 0x341 -> 0x340 | 0x1>>1
	if port.brr != 0x340 {
		t.Errorf("Expected BRR 0x340 from a 4MHz PCLK1, got %#x", port.brr)
	}
}

func TestRetimerLeavesPortDownWhenNoDividerFits(t *testing.T) {
	s := sim.New()
	c := clock.New(stm32l4.New(s.Peripherals()))

	port := &fakePort{on: true}
	r := &Retimer{Port: port, Baud: 115200}
	r.Attach(c)

	c.EnableHSI()
	c.SetSysclk(clock.SourceHSI, clock.NoDivision, clock.NVICConfig{})
	c.EnableMSI(clock.MSIRange100kHz)
	c.SetSysclk(clock.SourceMSI, clock.NoDivision, clock.NVICConfig{})

	if port.on {
		t.Error("Expected port disabled at 100kHz")
	}
	if !errors.Is(r.Err(), ErrDividerRange) {
		t.Errorf("Expected ErrDividerRange, got %v", r.Err())
	}
}

func TestConfigureWithoutClock(t *testing.T) {
	r := &Retimer{Port: &fakePort{}, Baud: 115200}
	if err := r.Configure(); !errors.Is(err, ErrNoBusClock) {
		t.Errorf("Expected ErrNoBusClock, got %v", err)
	}
}
