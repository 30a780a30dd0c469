// Package panel registers panel commands to the shell.
package panel

import (
	"github.com/abiosoft/ishell"

	"github.com/robotalks/panel.go/pkg/cli/sh"
	"github.com/robotalks/panel.go/pkg/protocol"
)

func parsed[M protocol.Message](parse func([]string) (M, error)) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		msg, err := parse(c.Args)
		if err != nil {
			c.Err(err)
			return
		}
		sh.DoCommand(c, msg)
	})
}

var (
	// BrightnessCmd exposes SetBrightness command.
	BrightnessCmd = ishell.Cmd{
		Name:    "brightness",
		Aliases: []string{"br"},
		Help:    "LEVEL(0-255)",
		Func:    parsed(ParseBrightness),
	}

	// VolumeCmd exposes SetVolume command.
	VolumeCmd = ishell.Cmd{
		Name:    "volume",
		Aliases: []string{"vol"},
		Help:    "LEVEL(0-255)",
		Func:    parsed(ParseVolume),
	}

	// LEDCmd exposes SetLED command.
	LEDCmd = ishell.Cmd{
		Name: "led",
		Help: "R G B [solid|dial|breathing MS]",
		Func: parsed(ParseLED),
	}

	// TemperatureCmd exposes SetTemperature command.
	TemperatureCmd = ishell.Cmd{
		Name: "temp",
		Help: "TARGET VALUE",
		Func: parsed(ParseTemperature),
	}

	// PowerCmd exposes PowerCycle command.
	PowerCmd = ishell.Cmd{
		Name:    "power",
		Aliases: []string{"pwr"},
		Help:    "SLOT on|off",
		Func:    parsed(ParsePowerCycle),
	}

	// BootloadCmd exposes Bootload command.
	BootloadCmd = ishell.Cmd{
		Name: "bootload",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if sh.ShellFrom(c).Interactive && c.MultiChoice([]string{"no", "yes"}, "Reboot the panel into bootloader?") != 1 {
				return
			}
			sh.DoCommand(c, protocol.Bootload{})
		}),
	}

	// HeartbeatCmd sends a Heartbeat.
	HeartbeatCmd = ishell.Cmd{
		Name:    "heartbeat",
		Aliases: []string{"hb"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if err := sh.ShellFrom(c).Conn.Client.Link().Send(protocol.Heartbeat{}); err != nil {
				c.Err(err)
			}
		}),
	}

	// StatsCmd prints link counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			c.Println(sh.ShellFrom(c).Conn.Client.Link().Stats().String())
		}),
	}
)

func init() {
	sh.AddCmds(
		&BrightnessCmd,
		&VolumeCmd,
		&LEDCmd,
		&TemperatureCmd,
		&PowerCmd,
		&BootloadCmd,
		&HeartbeatCmd,
		&StatsCmd,
	)
}
