package clock

import "strconv"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TransitionLogSize is the number of transitions kept for post-mortem
const TransitionLogSize = 16

var (
	// debugPrintln is set by platform code, no-op by default
	debugPrintln DebugWriter = func(s string) {}

	debugEnabled bool
)

// SetDebugWriter redirects controller debug output (UART, USB, host log...)
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugPrintln = writer
}

// SetDebugEnabled enables or disables transition tracing
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether transition tracing is active
func IsDebugEnabled() bool {
	return debugEnabled
}

func debugTrace(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}

// TransitionEvent is one completed sysclk change.
type TransitionEvent struct {
	Seq     uint32
	Change  Transition
	Voltage VoltageScaling
	Latency FlashLatency
}

func (e TransitionEvent) String() string {
	t := e.Change
	return "#" + strconv.FormatUint(uint64(e.Seq), 10) +
		" " + t.Direction.String() +
		" " + t.From.String() + " " + FormatHz(t.FromHz) +
		" -> " + t.To.String() + " " + FormatHz(t.ToHz) +
		" " + e.Voltage.String() + " " + e.Latency.String()
}

// TransitionLog is a fixed ring of the most recent transitions. Recording
// never allocates or blocks.
type TransitionLog struct {
	ring [TransitionLogSize]TransitionEvent
	head uint8
	seq  uint32
}

func (l *TransitionLog) record(t Transition, v VoltageScaling, lat FlashLatency) {
	l.seq++
	l.ring[l.head] = TransitionEvent{Seq: l.seq, Change: t, Voltage: v, Latency: lat}
	l.head = (l.head + 1) % TransitionLogSize
}

// Events returns the recorded transitions, oldest first.
func (l *TransitionLog) Events() []TransitionEvent {
	events := make([]TransitionEvent, 0, TransitionLogSize)
	for i := uint8(0); i < TransitionLogSize; i++ {
		e := l.ring[(l.head+i)%TransitionLogSize]
		if e.Seq == 0 {
			continue // empty slot
		}
		events = append(events, e)
	}
	return events
}

// Dump writes the log through w, oldest first.
func (l *TransitionLog) Dump(w DebugWriter) {
	if w == nil {
		return
	}
	w("[CLK] === transition log ===")
	for _, e := range l.Events() {
		w("[CLK] " + e.String())
	}
	w("[CLK] === end ===")
}

// FormatHz renders a frequency with the largest whole unit.
func FormatHz(hz uint32) string {
	switch {
	case hz >= MHz && hz%MHz == 0:
		return strconv.FormatUint(uint64(hz/MHz), 10) + "MHz"
	case hz >= KHz && hz%KHz == 0:
		return strconv.FormatUint(uint64(hz/KHz), 10) + "kHz"
	}
	return strconv.FormatUint(uint64(hz), 10) + "Hz"
}
