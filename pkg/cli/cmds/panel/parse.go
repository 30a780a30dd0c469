package panel

import (
	"fmt"
	"strconv"

	"github.com/robotalks/panel.go/pkg/protocol"
)

func parseUint(arg, name string, bits int) (uint64, error) {
	val, err := strconv.ParseUint(arg, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("Invalid %s: %q", name, arg)
	}
	return val, nil
}

func parseLevel(args []string) (byte, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("LEVEL required")
	}
	val, err := parseUint(args[0], "LEVEL", 8)
	return byte(val), err
}

// ParseBrightness parses "LEVEL".
func ParseBrightness(args []string) (protocol.SetBrightness, error) {
	level, err := parseLevel(args)
	return protocol.SetBrightness{Level: level}, err
}

// ParseVolume parses "LEVEL".
func ParseVolume(args []string) (protocol.SetVolume, error) {
	level, err := parseLevel(args)
	return protocol.SetVolume{Level: level}, err
}

// ParseLED parses "R G B [solid|dial|breathing MS]".
func ParseLED(args []string) (msg protocol.SetLED, err error) {
	if len(args) < 3 {
		return msg, fmt.Errorf("R G B required")
	}
	var rgb [3]uint64
	for n, name := range []string{"R", "G", "B"} {
		if rgb[n], err = parseUint(args[n], name, 8); err != nil {
			return
		}
	}
	msg.R, msg.G, msg.B = byte(rgb[0]), byte(rgb[1]), byte(rgb[2])
	if len(args) > 3 {
		switch args[3] {
		case "solid":
			msg.Pulse = protocol.PulseSolid
		case "dial":
			msg.Pulse = protocol.PulseDialTurn
		case "breathing":
			msg.Pulse = protocol.PulseBreathing
			if len(args) < 5 {
				return msg, fmt.Errorf("MS required for breathing")
			}
			var ms uint64
			if ms, err = parseUint(args[4], "MS", 16); err != nil {
				return
			}
			msg.IntervalMS = uint16(ms)
		default:
			return msg, fmt.Errorf("Invalid pulse mode: %q", args[3])
		}
	}
	return msg, msg.Validate()
}

// ParseTemperature parses "TARGET VALUE".
func ParseTemperature(args []string) (msg protocol.SetTemperature, err error) {
	if len(args) < 2 {
		return msg, fmt.Errorf("TARGET VALUE required")
	}
	target, err := parseUint(args[0], "TARGET", 8)
	if err != nil {
		return
	}
	value, err := parseUint(args[1], "VALUE", 16)
	if err != nil {
		return
	}
	return protocol.SetTemperature{Target: byte(target), Value: uint16(value)}, nil
}

// ParsePowerCycle parses "SLOT on|off".
func ParsePowerCycle(args []string) (msg protocol.PowerCycle, err error) {
	if len(args) < 2 {
		return msg, fmt.Errorf("SLOT on|off required")
	}
	slot, err := parseUint(args[0], "SLOT", 8)
	if err != nil {
		return
	}
	msg.Slot = byte(slot)
	switch args[1] {
	case "on":
		msg.On = true
	case "off":
	default:
		return msg, fmt.Errorf("Invalid state: %q", args[1])
	}
	return msg, nil
}
