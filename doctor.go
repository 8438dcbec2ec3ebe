package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bendahl/uinput"
	evdev "github.com/holoplot/go-evdev"
)

const doctorTimeout = 3 * time.Second

// doctorTask is a monitoring task stand-in for the hotplug round-trip
// check; it only needs to be joinable.
type doctorTask struct {
	done chan struct{}
	once sync.Once
}

func newDoctorTask() *doctorTask {
	return &doctorTask{done: make(chan struct{})}
}

func (t *doctorTask) Run()  { <-t.done }
func (t *doctorTask) Stop() { t.once.Do(func() { close(t.done) }) }

// runDoctor checks the host prerequisites: readable device table,
// accessible device nodes, a working uevent channel, and finally a
// live hotplug round-trip with a virtual keyboard. Returns a process
// exit code.
func runDoctor() int {
	failed := 0
	check := func(name string, err error) {
		if err != nil {
			failed++
			fmt.Printf("  fail  %s: %v\n", name, err)
			return
		}
		fmt.Printf("  ok    %s\n", name)
	}

	fmt.Println("keysound doctor")

	// Startup enumeration source.
	f, err := os.Open(procInputDevices)
	if err == nil {
		f.Close()
	}
	check("device table readable", err)

	keyboards := EnumerateKeyboards()
	fmt.Printf("        %d keyboard(s) in device table\n", len(keyboards))

	// Device node access; missing access means monitors cannot read
	// key events even though enumeration worked.
	if len(keyboards) > 0 {
		_, err := probeCapabilities(keyboards[0])
		if err != nil {
			err = fmt.Errorf("%w\n        join the 'input' group: sudo usermod -aG input $USER", err)
		}
		check("device node access", err)
	}

	// Kernel event channel.
	sock, err := openUeventSocket()
	if err == nil {
		sock.Close()
	}
	check("uevent channel", err)

	// Hotplug round-trip: plug in a virtual keyboard and confirm the
	// engine registers it. Virtual keyboards advertise no LEDs or
	// autorepeat, so classification here is by key capability alone.
	check("hotplug round-trip", doctorRoundTrip())

	if failed > 0 {
		fmt.Printf("%d check(s) failed\n", failed)
		return 1
	}
	fmt.Println("all checks passed")
	return 0
}

func doctorRoundTrip() error {
	engine := NewEngine(EngineConfig{
		Spawn: func(id DeviceID) (Task, error) { return newDoctorTask(), nil },
		Classify: func(id DeviceID) bool {
			types, err := probeCapabilities(id)
			if err != nil {
				return false
			}
			for _, t := range types {
				if t == evdev.EV_KEY {
					return true
				}
			}
			return false
		},
		Enumerate: func() []DeviceID { return nil },
	})
	if err := engine.Start(); err != nil {
		return err
	}
	defer engine.Stop()

	vkbd, err := uinput.CreateKeyboard("/dev/uinput", []byte("keysound-doctor"))
	if err != nil {
		return fmt.Errorf("create virtual keyboard: %w", err)
	}
	defer vkbd.Close()

	deadline := time.Now().Add(doctorTimeout)
	for time.Now().Before(deadline) {
		if engine.Registry().Len() > 0 {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("virtual keyboard not detected within %s", doctorTimeout)
}
