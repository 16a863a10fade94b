package clock

import "errors"

// Configuration errors. The controller reports these by panicking: they
// describe a clock tree that was set up wrong, not a transient fault.
var (
	ErrSourceNotReady        = errors.New("clock source not ready")
	ErrInvalidSource         = errors.New("invalid clock source")
	ErrActiveSource          = errors.New("clock source in use")
	ErrInvalidPLLConfig      = errors.New("invalid PLL configuration")
	ErrUnknownPrescaler      = errors.New("unknown bus prescaler")
	ErrUnknownVoltageScaling = errors.New("unknown voltage scaling")
	ErrFrequencyOutOfRange   = errors.New("frequency exceeds every tier")
	ErrLowPowerRunActive     = errors.New("low-power run active")
)

// ErrLowPowerRunRefused is returned, not raised: entering low-power run is a
// runtime-checkable request.
var ErrLowPowerRunRefused = errors.New("low-power run refused: sysclk too high")

// detailError attaches context to a sentinel while keeping errors.Is working.
type detailError struct {
	err    error
	detail string
}

func (e *detailError) Error() string {
	return e.err.Error() + ": " + e.detail
}

func (e *detailError) Unwrap() error {
	return e.err
}

func wrap(err error, detail string) error {
	return &detailError{err: err, detail: detail}
}

// fatal halts on a violated precondition.
func fatal(err error) {
	debugPrintln("[CLK] fatal: " + err.Error())
	panic(err)
}
