package main

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource scripts hotplug payloads into the listener.
type fakeSource struct {
	ch     chan []byte
	fail   chan error
	mu     sync.Mutex
	closed int
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan []byte, 16), fail: make(chan error, 1)}
}

func (s *fakeSource) emit(payload string) {
	s.ch <- []byte(payload)
}

func (s *fakeSource) Receive(timeout time.Duration) ([]byte, error) {
	select {
	case err := <-s.fail:
		return nil, err
	case b := <-s.ch:
		return b, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeTask blocks in Run until stopped, counting live instances.
type fakeTask struct {
	id   DeviceID
	done chan struct{}
	once sync.Once
	live *atomic.Int32
}

func (t *fakeTask) Run() {
	t.live.Add(1)
	<-t.done
	t.live.Add(-1)
}

func (t *fakeTask) Stop() {
	t.once.Do(func() { close(t.done) })
}

// fakeSpawner builds fakeTasks and records every spawn.
type fakeSpawner struct {
	mu      sync.Mutex
	spawned []*fakeTask
	failFor map[DeviceID]bool
	live    atomic.Int32
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{failFor: make(map[DeviceID]bool)}
}

func (s *fakeSpawner) spawn(id DeviceID) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[id] {
		return nil, errors.New("device node gone")
	}
	t := &fakeTask{id: id, done: make(chan struct{}), live: &s.live}
	s.spawned = append(s.spawned, t)
	return t, nil
}

func (s *fakeSpawner) spawnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spawned)
}

func (s *fakeSpawner) liveCount() int {
	return int(s.live.Load())
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func testEngine(t *testing.T, cfg EngineConfig) (*Engine, *fakeSource, *fakeSpawner) {
	t.Helper()
	src := newFakeSource()
	spawner := newFakeSpawner()
	cfg.Source = src
	cfg.Spawn = spawner.spawn
	if cfg.Classify == nil {
		cfg.Classify = func(DeviceID) bool { return true }
	}
	if cfg.Enumerate == nil {
		cfg.Enumerate = func() []DeviceID { return nil }
	}
	cfg.PollInterval = 5 * time.Millisecond
	return NewEngine(cfg), src, spawner
}

func addPayload(id string) string {
	return "add@/devices/pci0000:00/usb1/1-3/input/input9/" + id + "\x00ACTION=add\x00"
}

func removePayload(id string) string {
	return "remove@/devices/pci0000:00/usb1/1-3/input/input9/" + id + "\x00ACTION=remove\x00"
}

func TestStartupEnumerationSpawnsMonitors(t *testing.T) {
	e, src, spawner := testEngine(t, EngineConfig{
		Enumerate: func() []DeviceID { return []DeviceID{"event3", "event5"} },
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	if got := spawner.spawnCount(); got != 2 {
		t.Fatalf("spawned %d tasks, want 2", got)
	}
	if !e.Registry().Contains("event3") || !e.Registry().Contains("event5") {
		t.Errorf("registry = %v, want event3 and event5", e.Registry().Devices())
	}

	// Duplicate add for a monitored device is a no-op.
	src.emit(addPayload("event3"))
	// Remove withdraws membership.
	src.emit(removePayload("event5"))

	waitFor(t, func() bool { return !e.Registry().Contains("event5") },
		"event5 still registered after remove")
	if got := spawner.spawnCount(); got != 2 {
		t.Errorf("spawned %d tasks after duplicate add, want 2", got)
	}
	if !e.Registry().Contains("event3") {
		t.Error("event3 lost its registration")
	}
}

func TestEnumerationDuplicatesYieldOneTask(t *testing.T) {
	e, _, spawner := testEngine(t, EngineConfig{
		Enumerate: func() []DeviceID { return []DeviceID{"event3", "event3", "event3"} },
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	if got := spawner.spawnCount(); got != 1 {
		t.Errorf("spawned %d tasks for one device, want 1", got)
	}
}

func TestHotplugAddSpawnsKeyboardOnly(t *testing.T) {
	classified := make(chan DeviceID, 4)
	e, src, spawner := testEngine(t, EngineConfig{
		Classify: func(id DeviceID) bool {
			classified <- id
			return id == "event4"
		},
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	// Not a keyboard (or probe failed): no registration.
	src.emit(addPayload("event9"))
	waitFor(t, func() bool { return len(classified) > 0 }, "classifier never consulted")
	<-classified
	if e.Registry().Contains("event9") {
		t.Error("non-keyboard device was registered")
	}
	if spawner.spawnCount() != 0 {
		t.Error("task spawned for non-keyboard device")
	}

	src.emit(addPayload("event4"))
	waitFor(t, func() bool { return e.Registry().Contains("event4") },
		"keyboard add never registered")
	if got := spawner.spawnCount(); got != 1 {
		t.Errorf("spawned %d tasks, want 1", got)
	}
}

func TestChangeNotificationIsIgnored(t *testing.T) {
	e, src, spawner := testEngine(t, EngineConfig{})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	src.emit("change@/devices/virtual/input/input9/event8\x00ACTION=change\x00")
	src.emit("garbage that is not a uevent")

	// Give the listener time to chew through both payloads.
	src.emit(addPayload("event1"))
	waitFor(t, func() bool { return e.Registry().Contains("event1") }, "sentinel add not processed")

	if e.Registry().Contains("event8") {
		t.Error("change notification mutated the registry")
	}
	if got := spawner.spawnCount(); got != 1 {
		t.Errorf("spawned %d tasks, want only the sentinel's 1", got)
	}
}

func TestRemoveThenReAddRegistersCleanly(t *testing.T) {
	e, src, spawner := testEngine(t, EngineConfig{
		Enumerate: func() []DeviceID { return []DeviceID{"event6"} },
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	src.emit(removePayload("event6"))
	waitFor(t, func() bool { return !e.Registry().Contains("event6") },
		"remove not processed")

	// Identifier reused by a new device while the old task is still
	// winding down.
	src.emit(addPayload("event6"))
	waitFor(t, func() bool { return e.Registry().Contains("event6") },
		"re-add not processed")
	if got := spawner.spawnCount(); got != 2 {
		t.Fatalf("spawned %d tasks, want 2", got)
	}

	// The first task finishing must not evict the second registration.
	spawner.mu.Lock()
	old := spawner.spawned[0]
	spawner.mu.Unlock()
	old.Stop()

	time.Sleep(20 * time.Millisecond)
	if !e.Registry().Contains("event6") {
		t.Error("old task's exit evicted the new registration")
	}
}

func TestRemoveUnknownDeviceIsNoop(t *testing.T) {
	e, src, spawner := testEngine(t, EngineConfig{})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	src.emit(removePayload("event2"))
	src.emit(addPayload("event1")) // sentinel
	waitFor(t, func() bool { return e.Registry().Contains("event1") }, "sentinel add not processed")

	if spawner.spawnCount() != 1 {
		t.Errorf("spawned %d tasks, want 1", spawner.spawnCount())
	}
}

func TestSpawnFailureRollsBackRegistration(t *testing.T) {
	e, src, spawner := testEngine(t, EngineConfig{})
	spawner.failFor["event5"] = true
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	src.emit(addPayload("event5"))
	src.emit(addPayload("event1")) // sentinel
	waitFor(t, func() bool { return e.Registry().Contains("event1") }, "sentinel add not processed")

	if e.Registry().Contains("event5") {
		t.Error("failed spawn left a stale registration")
	}

	// The identifier is free to register again once the device works.
	spawner.mu.Lock()
	spawner.failFor["event5"] = false
	spawner.mu.Unlock()
	src.emit(addPayload("event5"))
	waitFor(t, func() bool { return e.Registry().Contains("event5") },
		"device not registered after spawn recovered")
}

func TestStopJoinsEverything(t *testing.T) {
	e, src, spawner := testEngine(t, EngineConfig{
		Enumerate: func() []DeviceID { return []DeviceID{"event1", "event2", "event3"} },
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return spawner.liveCount() == 3 }, "tasks never started")

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	if got := spawner.liveCount(); got != 0 {
		t.Errorf("%d tasks still live after Stop", got)
	}
	if got := src.closeCount(); got != 1 {
		t.Errorf("source closed %d times, want exactly 1", got)
	}

	// Stop is idempotent.
	e.Stop()
	if got := src.closeCount(); got != 1 {
		t.Errorf("second Stop closed the source again (%d closes)", got)
	}
}

func TestStopWithNoDevices(t *testing.T) {
	e, src, _ := testEngine(t, EngineConfig{})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Stop()
	if got := src.closeCount(); got != 1 {
		t.Errorf("source closed %d times, want 1", got)
	}
}

func TestFatalSourceErrorDrainsListener(t *testing.T) {
	e, src, _ := testEngine(t, EngineConfig{})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	src.fail <- errors.New("netlink buffer torn down")
	waitFor(t, func() bool { return src.closeCount() == 1 },
		"listener did not close the source after a fatal error")

	// Shutdown still completes cleanly.
	e.Stop()
	if got := src.closeCount(); got != 1 {
		t.Errorf("source closed %d times, want 1", got)
	}
}

func TestStopDuringAddStopsTheFreshTask(t *testing.T) {
	classifyEntered := make(chan struct{})
	release := make(chan struct{})
	e, src, spawner := testEngine(t, EngineConfig{
		Classify: func(DeviceID) bool {
			close(classifyEntered)
			<-release
			return true
		},
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Park the listener inside the add path, past its stop check.
	src.emit(addPayload("event3"))
	<-classifyEntered

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()

	// Let Stop snapshot the (still empty) task set and reach the join,
	// then let the add proceed.
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after an add raced shutdown")
	}
	if got := spawner.liveCount(); got != 0 {
		t.Errorf("%d tasks live after Stop", got)
	}
	if e.Registry().Len() != 0 {
		t.Errorf("registry not empty after Stop: %v", e.Registry().Devices())
	}
}

func TestNoSpawnAfterStop(t *testing.T) {
	e, src, spawner := testEngine(t, EngineConfig{})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Stop()

	src.emit(addPayload("event3"))
	time.Sleep(30 * time.Millisecond)
	if spawner.spawnCount() != 0 {
		t.Error("task spawned after Stop")
	}
	if e.Registry().Len() != 0 {
		t.Errorf("registry not empty after Stop: %v", e.Registry().Devices())
	}
}
