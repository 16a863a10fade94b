package console

import (
	"errors"
	"io"
	"strconv"

	"clkhal/clock"
)

var (
	ErrUsage       = errors.New("usage")
	ErrBadArgument = errors.New("bad argument")
)

func usage(cmd *Command) error {
	return errors.New(ErrUsage.Error() + ": " + cmd.Name + " " + cmd.Usage)
}

func writeLine(w io.Writer, s string) {
	io.WriteString(w, s+"\r\n")
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, errors.New(ErrBadArgument.Error() + " " + strconv.Quote(s))
	}
	return v, nil
}

func parseSource(s string) (clock.Source, error) {
	src, ok := clock.ParseSource(s)
	if !ok {
		return clock.SourceUnknown, errors.New(ErrBadArgument.Error() + " " + strconv.Quote(s))
	}
	return src, nil
}

// RegisterHelp adds "help", which lists every command with its synopsis.
func RegisterHelp(r *Registry) {
	r.Register("help", "", func(w io.Writer, args []string) error {
		for _, cmd := range r.Commands() {
			if cmd.Usage == "" {
				writeLine(w, cmd.Name)
			} else {
				writeLine(w, cmd.Name+" "+cmd.Usage)
			}
		}
		return nil
	})
}

// RegisterClockCommands exposes the clock controller on the console.
// Configuration mistakes halt in the controller exactly as they would in
// application code.
func RegisterClockCommands(r *Registry, c *clock.Controller) {
	r.Register("status", "", func(w io.Writer, args []string) error {
		writeStatus(w, c)
		return nil
	})

	r.Register("osc", "<msi|hsi|lsi> <on|off> [msi range Hz]", func(w io.Writer, args []string) error {
		cmd, _ := r.Get("osc")
		if len(args) < 3 {
			return usage(cmd)
		}
		src, err := parseSource(args[1])
		if err != nil {
			return err
		}
		if src == clock.SourcePLL {
			return usage(cmd)
		}

		switch args[2] {
		case "on":
			rng := c.MSIRange()
			if src == clock.SourceMSI && len(args) > 3 {
				hz, err := parseUint(args[3], 32)
				if err != nil {
					return err
				}
				var ok bool
				if rng, ok = clock.MSIRangeFor(uint32(hz)); !ok {
					return errors.New(ErrBadArgument.Error() + ": no msi range at " + clock.FormatHz(uint32(hz)))
				}
			}
			c.EnableOscillator(src, rng)
		case "off":
			c.DisableOscillator(src)
		default:
			return usage(cmd)
		}
		writeLine(w, src.String()+" "+args[2])
		return nil
	})

	r.Register("pll", "<msi|hsi> <m> <n> <r> | off", func(w io.Writer, args []string) error {
		cmd, _ := r.Get("pll")
		if len(args) == 2 && args[1] == "off" {
			c.DisablePLL()
			writeLine(w, "pll off")
			return nil
		}
		if len(args) != 5 {
			return usage(cmd)
		}
		src, err := parseSource(args[1])
		if err != nil {
			return err
		}
		var div [3]uint8
		for i := range div {
			v, err := parseUint(args[2+i], 8)
			if err != nil {
				return err
			}
			div[i] = uint8(v)
		}
		cfg := clock.PLLConfig{Source: src, M: div[0], N: div[1], R: div[2]}
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.EnablePLL(cfg)
		writeLine(w, "pll "+clock.FormatHz(c.PLLFrequency()))
		return nil
	})

	r.Register("sysclk", "<msi|hsi|pll> [ahb apb1 apb2]", func(w io.Writer, args []string) error {
		cmd, _ := r.Get("sysclk")
		if len(args) != 2 && len(args) != 5 {
			return usage(cmd)
		}
		src, err := parseSource(args[1])
		if err != nil {
			return err
		}
		if !src.CanDriveSysclk() {
			return errors.New(ErrBadArgument.Error() + ": " + src.String() + " cannot drive sysclk")
		}
		if !c.IsEnabled(src) {
			return errors.New(src.String() + " not running")
		}

		p := c.BusPrescalers()
		if len(args) == 5 {
			if p, err = parsePrescalers(args[2:]); err != nil {
				return err
			}
		}
		c.SetSysclk(src, p, clock.NVICConfig{})
		writeStatus(w, c)
		return nil
	})

	r.Register("lpr", "<on|off>", func(w io.Writer, args []string) error {
		cmd, _ := r.Get("lpr")
		if len(args) != 2 {
			return usage(cmd)
		}
		switch args[1] {
		case "on":
			if err := c.EnterLowPowerRun(); err != nil {
				return err
			}
		case "off":
			c.ExitLowPowerRun()
		default:
			return usage(cmd)
		}
		writeLine(w, "lpr "+args[1])
		return nil
	})

	r.Register("history", "", func(w io.Writer, args []string) error {
		events := c.History()
		if len(events) == 0 {
			writeLine(w, "no transitions")
		}
		for _, e := range events {
			writeLine(w, e.String())
		}
		return nil
	})
}

func parsePrescalers(args []string) (clock.BusPrescalers, error) {
	var div [3]uint32
	for i := range div {
		v, err := parseUint(args[i], 32)
		if err != nil {
			return clock.BusPrescalers{}, err
		}
		div[i] = uint32(v)
	}

	ahb, ok := clock.AHBPrescalerFor(div[0])
	if !ok {
		return clock.BusPrescalers{}, errors.New(ErrBadArgument.Error() + ": ahb /" + args[0])
	}
	apb1, ok := clock.APBPrescalerFor(div[1])
	if !ok {
		return clock.BusPrescalers{}, errors.New(ErrBadArgument.Error() + ": apb1 /" + args[1])
	}
	apb2, ok := clock.APBPrescalerFor(div[2])
	if !ok {
		return clock.BusPrescalers{}, errors.New(ErrBadArgument.Error() + ": apb2 /" + args[2])
	}
	return clock.BusPrescalers{AHB: ahb, APB1: apb1, APB2: apb2}, nil
}

func writeStatus(w io.Writer, c *clock.Controller) {
	writeLine(w, "sysclk "+c.SysclkSource().String()+" "+clock.FormatHz(c.EffectiveFrequency()))
	writeLine(w, "hclk "+clock.FormatHz(c.HCLK())+
		" pclk1 "+clock.FormatHz(c.PCLK1())+
		" pclk2 "+clock.FormatHz(c.PCLK2()))
	writeLine(w, "vos "+c.VoltageScaling().String()+" latency "+c.FlashLatency().String())

	oscs := "osc"
	for _, src := range []clock.Source{clock.SourceMSI, clock.SourceHSI, clock.SourceLSI, clock.SourcePLL} {
		state := "off"
		if c.IsEnabled(src) {
			state = "on"
		}
		oscs += " " + src.String() + "=" + state
	}
	writeLine(w, oscs+" msirange="+clock.FormatHz(c.MSIRange().Frequency()))

	if c.LowPowerRun() {
		writeLine(w, "lpr on")
	}
}
