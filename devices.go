package main

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	evdev "github.com/holoplot/go-evdev"
)

const procInputDevices = "/proc/bus/input/devices"

// Event-type bits of the EV capability bitmask, as exposed by the
// kernel in /proc/bus/input/devices.
const (
	evMaskKey = 1 << evdev.EV_KEY
	evMaskLED = 1 << evdev.EV_LED
	evMaskRep = 1 << evdev.EV_REP
)

// isKeyboardMask reports whether an EV bitmask describes a keyboard:
// key events plus LED or autorepeat support. Plain EV_KEY alone also
// matches mice and power buttons, so it is not enough.
func isKeyboardMask(mask uint64) bool {
	return mask&evMaskKey != 0 && (mask&evMaskLED != 0 || mask&evMaskRep != 0)
}

// EnumerateKeyboards takes a one-time snapshot of the keyboards
// currently attached, read from the kernel's input device table. A
// read failure is logged and yields an empty set; the hotplug listener
// can still pick devices up later.
func EnumerateKeyboards() []DeviceID {
	f, err := os.Open(procInputDevices)
	if err != nil {
		log.Warn("enumerate keyboards", "err", err)
		return nil
	}
	defer f.Close()
	return enumerateKeyboardsFrom(f)
}

// enumerateKeyboardsFrom parses an input device table. Each blank-line
// separated block describes one device; the "H:" line carries the
// eventN handler name and the "B: EV=" line its capability bitmask.
// Duplicate identifiers keep their first occurrence.
func enumerateKeyboardsFrom(r io.Reader) []DeviceID {
	var (
		ids  []DeviceID
		seen = make(map[DeviceID]bool)

		blockID   DeviceID
		blockMask uint64
	)

	flush := func() {
		if blockID != "" && isKeyboardMask(blockMask) && !seen[blockID] {
			seen[blockID] = true
			ids = append(ids, blockID)
		}
		blockID = ""
		blockMask = 0
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			flush()
			continue
		}
		switch {
		case strings.HasPrefix(line, "H: Handlers="):
			for _, h := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				if id, ok := eventID(h); ok {
					blockID = id
				}
			}
		case strings.HasPrefix(line, "B: EV="):
			mask, err := strconv.ParseUint(strings.TrimPrefix(line, "B: EV="), 16, 64)
			if err == nil {
				blockMask = mask
			}
		}
	}
	flush()

	if err := sc.Err(); err != nil {
		log.Warn("read input device table", "err", err)
	}
	return ids
}

// CapabilityProbe looks up the event types a device supports. It is
// injected into the classifier so tests can substitute fake devices.
type CapabilityProbe func(id DeviceID) ([]evdev.EvType, error)

// probeCapabilities reads the capability bits straight from the device
// node.
func probeCapabilities(id DeviceID) ([]evdev.EvType, error) {
	dev, err := evdev.Open(id.Path())
	if err != nil {
		return nil, err
	}
	defer dev.Close()
	return dev.CapableTypes(), nil
}

// IsKeyboard reports whether the device supports key events together
// with LEDs or autorepeat. A device that cannot be probed (vanished,
// inaccessible) is not a keyboard.
func IsKeyboard(id DeviceID, probe CapabilityProbe) bool {
	types, err := probe(id)
	if err != nil {
		return false
	}
	var mask uint64
	for _, t := range types {
		mask |= 1 << t
	}
	return isKeyboardMask(mask)
}
