package main

import (
	"sync"
	"testing"
)

func TestTryRegisterOncePerDevice(t *testing.T) {
	r := NewRegistry()

	if !r.TryRegister("event3") {
		t.Fatal("first TryRegister returned false")
	}
	if r.TryRegister("event3") {
		t.Fatal("second TryRegister returned true for a registered device")
	}
	if !r.Contains("event3") {
		t.Error("Contains(event3) = false after registration")
	}
	if r.Contains("event4") {
		t.Error("Contains(event4) = true for an unknown device")
	}
}

func TestTryRegisterConcurrent(t *testing.T) {
	const n = 64
	r := NewRegistry()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if r.TryRegister("event7") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Errorf("TryRegister succeeded %d times, want exactly 1", wins)
	}
	if r.Len() != 1 {
		t.Errorf("registry holds %d entries, want 1", r.Len())
	}
}

func TestUnregisterAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Unregister("event9") // must not panic or error

	r.TryRegister("event9")
	r.Unregister("event9")
	if r.Contains("event9") {
		t.Error("device still registered after Unregister")
	}
	r.Unregister("event9")
}

func TestReleaseOnlyEvictsOwner(t *testing.T) {
	r := NewRegistry()
	old := newDoctorTask()

	r.TryRegister("event2")
	r.Attach("event2", old)

	// Device removed, then re-added and claimed by a fresh task
	// before the old one finished.
	r.Unregister("event2")
	r.TryRegister("event2")
	fresh := newDoctorTask()
	r.Attach("event2", fresh)

	// The old task's exit must not evict the fresh registration.
	r.release("event2", old)
	if !r.Contains("event2") {
		t.Fatal("release evicted an entry owned by another task")
	}

	r.release("event2", fresh)
	if r.Contains("event2") {
		t.Fatal("release did not remove the owning task's entry")
	}
}

func TestAttachAfterUnregisterIsNoop(t *testing.T) {
	r := NewRegistry()
	r.TryRegister("event1")
	r.Unregister("event1")
	r.Attach("event1", newDoctorTask())
	if r.Contains("event1") {
		t.Error("Attach resurrected an unregistered device")
	}
}

func TestDevicesSnapshot(t *testing.T) {
	r := NewRegistry()
	r.TryRegister("event0")
	r.TryRegister("event12")

	ids := r.Devices()
	if len(ids) != 2 {
		t.Fatalf("Devices() returned %d ids, want 2", len(ids))
	}
	seen := map[DeviceID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["event0"] || !seen["event12"] {
		t.Errorf("Devices() = %v, want event0 and event12", ids)
	}
}
