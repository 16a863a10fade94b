// Package usart keeps a USART's baud rate correct across sysclk changes.
package usart

import (
	"errors"

	"clkhal/clock"
)

// Oversampling selects the receiver sampling rate, which changes how BRR is
// encoded.
type Oversampling uint8

const (
	Oversampling16 Oversampling = iota
	Oversampling8
)

func (o Oversampling) String() string {
	switch o {
	case Oversampling16:
		return "x16"
	case Oversampling8:
		return "x8"
	}
	return "unknown"
}

// BRR limits: the divider must be at least 16 and fit the 16-bit register.
const (
	minDivider = 0x10
	maxDivider = 0xFFFF
)

var (
	ErrZeroBaud            = errors.New("usart: baud rate is zero")
	ErrDividerRange        = errors.New("usart: baud divider out of range")
	ErrUnknownOversampling = errors.New("usart: unknown oversampling")
	ErrNoBusClock          = errors.New("usart: bus clock not set")
)

// BRR computes the baud rate register value for a kernel clock of pclk Hz.
//
// With 16x oversampling BRR is the plain divider. With 8x oversampling the
// divider is doubled and its low nibble is shifted right by one, bit 3 kept
// clear.
func BRR(pclk, baud uint32, o Oversampling) (uint32, error) {
	if baud == 0 {
		return 0, ErrZeroBaud
	}

	var div uint64
	switch o {
	case Oversampling16:
		div = uint64(pclk) / uint64(baud)
	case Oversampling8:
		div = 2 * uint64(pclk) / uint64(baud)
	default:
		return 0, ErrUnknownOversampling
	}

	if div < minDivider || div > maxDivider {
		return 0, ErrDividerRange
	}
	brr := uint32(div)
	if o == Oversampling8 {
		brr = (brr & 0xFFF0) | (brr&0xF)>>1
	}
	return brr, nil
}

// Port is the register side of one USART.
type Port interface {
	// WaitTransmitComplete blocks until the last frame has left the shifter.
	WaitTransmitComplete()
	Disable()
	SetBRR(brr uint32)
	Enable()
}

// Retimer suspends a USART while sysclk changes and reprograms its baud
// divider from the new bus clock afterwards.
type Retimer struct {
	Port         Port
	Clock        func() uint32 // kernel clock of the USART in Hz
	Baud         uint32
	Oversampling Oversampling

	err error
}

// Attach installs the retimer as the controller's change hook pair. The
// USART is assumed to sit on APB1 unless Clock is already set.
func (r *Retimer) Attach(c *clock.Controller) {
	if r.Clock == nil {
		r.Clock = c.PCLK1
	}
	c.RegisterPreChangeHook(r.Suspend)
	c.RegisterPostChangeHook(r.Resume)
}

// Configure programs BRR from the current bus clock and enables the port.
func (r *Retimer) Configure() error {
	if r.Clock == nil {
		return ErrNoBusClock
	}
	brr, err := BRR(r.Clock(), r.Baud, r.Oversampling)
	if err != nil {
		r.err = err
		return err
	}
	r.Port.Disable()
	r.Port.SetBRR(brr)
	r.Port.Enable()
	r.err = nil
	return nil
}

// Suspend drains the transmitter and stops the port.
func (r *Retimer) Suspend(clock.Transition) {
	r.Port.WaitTransmitComplete()
	r.Port.Disable()
}

// Resume restarts the port at the same baud rate on the new bus clock. If no
// divider fits, the port stays disabled and Err reports why.
func (r *Retimer) Resume(clock.Transition) {
	brr, err := BRR(r.Clock(), r.Baud, r.Oversampling)
	if err != nil {
		r.err = err
		return
	}
	r.Port.SetBRR(brr)
	r.Port.Enable()
	r.err = nil
}

// Err is the error from the last reprogramming, nil when the port is running.
func (r *Retimer) Err() error {
	return r.err
}
