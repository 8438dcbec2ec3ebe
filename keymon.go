package main

import (
	"fmt"
	"sync"

	evdev "github.com/holoplot/go-evdev"
)

// TriggerFunc receives candidate clip names for a key press and
// reports whether it played something, ending the candidate search.
type TriggerFunc func(name string) bool

// KeyMonitor consumes key events from a single keyboard device and
// forwards presses to the sound trigger. It implements Task.
type KeyMonitor struct {
	id      DeviceID
	dev     *evdev.InputDevice
	trigger TriggerFunc

	closeOnce sync.Once
}

// StartMonitor opens the device node for monitoring. The returned
// monitor does nothing until Run is called.
func StartMonitor(id DeviceID, trigger TriggerFunc) (*KeyMonitor, error) {
	dev, err := evdev.Open(id.Path())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id.Path(), err)
	}
	return &KeyMonitor{id: id, dev: dev, trigger: trigger}, nil
}

// Run reads events until the device goes away or Stop is called.
// Unplugging the device makes the read fail, which is the normal exit
// path after a remove notification.
func (m *KeyMonitor) Run() {
	defer m.Stop()
	for {
		ev, err := m.dev.ReadOne()
		if err != nil {
			return
		}
		if ev.Type != evdev.EV_KEY || ev.Value != 1 {
			continue
		}
		for _, name := range candidateNames(ev.Code) {
			if m.trigger(name) {
				break
			}
		}
	}
}

// Stop closes the device, which unblocks a pending read and ends Run.
func (m *KeyMonitor) Stop() {
	m.closeOnce.Do(func() {
		m.dev.Close()
	})
}
