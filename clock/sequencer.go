package clock

import "strconv"

// SetSysclk switches the system clock to src, which must already be running,
// and applies the bus prescalers and NVIC settings.
//
// Capability is raised before frequency and frequency is lowered before
// capability: on an increase the regulator and flash wait states are brought
// up first, on a decrease the source is switched first. The pre-change hook
// runs before the first register write and the post-change hook after the
// new frequency is published.
func (c *Controller) SetSysclk(src Source, prescalers BusPrescalers, nvic NVICConfig) {
	if !src.CanDriveSysclk() {
		fatal(wrap(ErrInvalidSource, "sysclk "+src.String()))
	}
	if !c.IsEnabled(src) {
		fatal(wrap(ErrSourceNotReady, src.String()))
	}
	if err := prescalers.Validate(); err != nil {
		fatal(err)
	}

	// A source the controller cannot identify (an external oscillator left
	// by a bootloader) has no known frequency; leaving it is a takeover.
	from := c.hw.SysclkStatus()
	takeover := !from.CanDriveSysclk()
	t := Transition{
		From: from,
		To:   src,
		ToHz: c.SourceFrequency(src),
	}
	if !takeover {
		t.FromHz = c.SourceFrequency(from)
	}
	t.Direction = classify(t)

	if c.LowPowerRun() && t.ToHz >= LowPowerRunMaxFrequency {
		fatal(wrap(ErrLowPowerRunActive, "target "+FormatHz(t.ToHz)))
	}

	// The policy is consulted before anything is touched, so a rejected
	// target halts with the hooks unfired and the registers unchanged.
	var op operatingPoint
	if t.Direction != NoChange {
		op = c.resolve(t)
	}

	if c.preChange != nil {
		c.preChange(t)
	}

	c.hw.EnableInterfaceClocks()

	switch {
	case takeover:
		c.takeover(src, op, prescalers)
	case t.Direction == Increase || t.Direction == Lateral:
		c.increase(src, op, prescalers)
	case t.Direction == Decrease:
		c.decrease(src, op, prescalers)
	default:
		c.hw.SetBusPrescalers(prescalers)
	}

	if c.hw.FlashLatency() != FlashLatency0 {
		c.hw.EnableFlashAccelerators()
	}
	c.hw.ApplyNVIC(nvic)

	c.prescalers = prescalers
	c.frequency.Store(t.ToHz)

	v, l := c.hw.VoltageScaling(), c.hw.FlashLatency()
	c.log.record(t, v, l)
	debugTrace("[CLK] " + t.Direction.String() +
		" " + t.From.String() + " " + FormatHz(t.FromHz) +
		" -> " + t.To.String() + " " + FormatHz(t.ToHz) +
		" " + v.String() + " " + l.String() +
		" hclk=" + strconv.FormatUint(uint64(c.HCLK()), 10))

	if c.postChange != nil {
		c.postChange(t)
	}
}

func classify(t Transition) Direction {
	switch {
	case t.ToHz > t.FromHz:
		return Increase
	case t.ToHz < t.FromHz:
		return Decrease
	case t.To != t.From:
		return Lateral
	}
	return NoChange
}

// operatingPoint is the regulator level and wait states a transition ends at.
type operatingPoint struct {
	voltage VoltageScaling
	latency FlashLatency
}

// resolve asks the policy for the operating point of t. An increase keeps a
// more capable level than it needs; a decrease never raises the level.
func (c *Controller) resolve(t Transition) operatingPoint {
	v := c.hw.VoltageScaling()
	required := mustVoltageScaling(t.To, t.ToHz)
	switch t.Direction {
	case Increase, Lateral:
		if required.MoreCapable(v) {
			v = required
		}
	case Decrease:
		if v.MoreCapable(required) {
			v = required
		}
	}
	return operatingPoint{voltage: v, latency: mustFlashLatency(t.ToHz, v)}
}

// increase raises the regulator level and the wait states to what the
// target needs, then switches the source.
func (c *Controller) increase(src Source, op operatingPoint, prescalers BusPrescalers) {
	if op.voltage != c.hw.VoltageScaling() {
		c.setVoltageScaling(op.voltage)
	}
	if op.latency != c.hw.FlashLatency() {
		c.setFlashLatency(op.latency)
	}

	c.switchSource(src)
	c.hw.SetBusPrescalers(prescalers)
}

// decrease switches the source first; the current regulator level and wait
// states already cover the lower target. Wait states are then trimmed for
// the level the regulator will end up at, and only after that is the
// regulator lowered.
func (c *Controller) decrease(src Source, op operatingPoint, prescalers BusPrescalers) {
	c.switchSource(src)

	if op.latency != c.hw.FlashLatency() {
		c.setFlashLatency(op.latency)
	}
	if op.voltage != c.hw.VoltageScaling() {
		c.setVoltageScaling(op.voltage)
	}

	c.hw.SetBusPrescalers(prescalers)
}

// takeover leaves a source of unknown frequency. The outgoing clock may be
// anything up to the chip maximum, so the regulator and wait states go to
// their most capable setting before the switch and are trimmed to op after.
func (c *Controller) takeover(src Source, op operatingPoint, prescalers BusPrescalers) {
	if VoltageScaling1.MoreCapable(c.hw.VoltageScaling()) {
		c.setVoltageScaling(VoltageScaling1)
	}
	if c.hw.FlashLatency() != FlashLatency4 {
		c.setFlashLatency(FlashLatency4)
	}

	c.switchSource(src)

	if op.latency != c.hw.FlashLatency() {
		c.setFlashLatency(op.latency)
	}
	if op.voltage != c.hw.VoltageScaling() {
		c.setVoltageScaling(op.voltage)
	}

	c.hw.SetBusPrescalers(prescalers)
}

func (c *Controller) setVoltageScaling(v VoltageScaling) {
	if v == VoltageScalingUnknown {
		fatal(ErrUnknownVoltageScaling)
	}
	c.hw.SetVoltageScaling(v)
	waitUntil(c.hw.VoltageScalingSettled)
}

func (c *Controller) setFlashLatency(l FlashLatency) {
	if l == FlashLatencyUnknown {
		fatal(wrap(ErrFrequencyOutOfRange, "flash latency"))
	}
	c.hw.SetFlashLatency(l)
	waitUntil(func() bool { return c.hw.FlashLatency() == l })
}

func (c *Controller) switchSource(src Source) {
	c.hw.SelectSysclk(src)
	waitUntil(func() bool { return c.hw.SysclkStatus() == src })
}
