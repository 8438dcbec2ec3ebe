package main

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// errStopping reports a spawn refused because shutdown already began.
var errStopping = errors.New("engine is stopping")

// Task is one collaborator monitoring task bound to a single device.
// Run blocks until the device goes away or Stop is called; Stop asks
// the task to end and may be called from another goroutine.
type Task interface {
	Run()
	Stop()
}

// SpawnFunc starts a monitoring task for a device. It is the entry
// point into the key-detection collaborator.
type SpawnFunc func(id DeviceID) (Task, error)

// ClassifyFunc decides whether a device identifier refers to a
// keyboard.
type ClassifyFunc func(id DeviceID) bool

// EnumerateFunc yields the keyboards attached at startup.
type EnumerateFunc func() []DeviceID

const defaultPollInterval = 100 * time.Millisecond

// EngineConfig wires an Engine. Spawn is required; the remaining
// fields default to the real kernel-backed implementations and exist
// so tests can substitute fakes.
type EngineConfig struct {
	Spawn     SpawnFunc
	Classify  ClassifyFunc
	Enumerate EnumerateFunc
	Source    EventSource

	// PollInterval bounds how long the listener waits for a
	// notification before rechecking the stop signal, and therefore
	// the shutdown latency. Defaults to 100ms.
	PollInterval time.Duration
}

// Engine owns the device discovery and hotplug lifecycle: it seeds the
// registry from a startup scan, keeps it current from kernel uevents,
// and maintains exactly one monitoring task per attached keyboard.
type Engine struct {
	cfg      EngineConfig
	registry *Registry
	source   EventSource

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	tasks   map[Task]struct{}
	stopped bool
}

// NewEngine creates an Engine; call Start to bring it up.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Classify == nil {
		cfg.Classify = func(id DeviceID) bool {
			return IsKeyboard(id, probeCapabilities)
		}
	}
	if cfg.Enumerate == nil {
		cfg.Enumerate = EnumerateKeyboards
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Engine{
		cfg:      cfg,
		registry: NewRegistry(),
		stop:     make(chan struct{}),
		tasks:    make(map[Task]struct{}),
	}
}

// Registry exposes the monitor registry for membership queries.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Start opens the kernel event channel, spawns one monitoring task per
// keyboard present right now, and launches the hotplug listener. A
// channel open failure is fatal and leaves nothing running; a failed
// startup enumeration only logs and yields an empty initial set.
func (e *Engine) Start() error {
	src := e.cfg.Source
	if src == nil {
		s, err := openUeventSocket()
		if err != nil {
			return err
		}
		src = s
	}
	e.source = src

	for _, id := range e.cfg.Enumerate() {
		if !e.registry.TryRegister(id) {
			continue
		}
		log.Info("monitoring keyboard", "device", id)
		if err := e.spawn(id); err != nil {
			log.Warn("start monitor", "device", id, "err", err)
			e.registry.Unregister(id)
		}
	}

	e.wg.Add(1)
	go e.listen()
	return nil
}

// Stop flips the stop signal, asks every monitoring task to end, and
// blocks until the listener and all tasks have finished. The listener
// reacts within one poll slice. Later calls return immediately. A task
// that never exits blocks Stop forever; cancellation is cooperative
// throughout, nothing is force-killed.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
		e.requestStopAll()
		e.wg.Wait()
	})
}

// requestStopAll signals every live monitoring task to end. Setting
// stopped under the same lock that tracks tasks closes the window
// where a spawn in flight could slip past the snapshot and never be
// stopped.
func (e *Engine) requestStopAll() {
	e.mu.Lock()
	e.stopped = true
	tasks := make([]Task, 0, len(e.tasks))
	for t := range e.tasks {
		tasks = append(tasks, t)
	}
	e.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
}

func (e *Engine) stopping() bool {
	select {
	case <-e.stop:
		return true
	default:
		return false
	}
}

// spawn starts the collaborator task for a registered device and
// tracks its handle for joining. The task unregisters itself on exit.
// The stopped check and the tracking happen under one lock; a spawn
// losing the race against Stop stops the fresh task itself and returns
// errStopping so the caller can roll back the registration.
func (e *Engine) spawn(id DeviceID) error {
	t, err := e.cfg.Spawn(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		t.Stop()
		return errStopping
	}
	e.tasks[t] = struct{}{}
	e.wg.Add(1)
	e.mu.Unlock()

	e.registry.Attach(id, t)

	go func() {
		defer e.wg.Done()
		t.Run()
		e.registry.release(id, t)
		e.mu.Lock()
		delete(e.tasks, t)
		e.mu.Unlock()
		log.Debug("monitor exited", "device", id)
	}()
	return nil
}

// listen is the hotplug event loop. It waits in bounded slices so the
// stop signal is observed promptly, decodes each uevent, and updates
// the registry. The socket is closed here, exactly once, on the way
// out.
func (e *Engine) listen() {
	defer e.wg.Done()
	defer e.source.Close()

	for {
		select {
		case <-e.stop:
			return
		default:
		}

		payload, err := e.source.Receive(e.cfg.PollInterval)
		if err != nil {
			// Fatal channel error; transient ones are absorbed by
			// the source itself.
			log.Warn("hotplug listener stopping", "err", err)
			return
		}
		if payload == nil {
			continue
		}

		n, ok := parseUevent(payload)
		if !ok || n.Action == ActionOther {
			continue
		}
		switch n.Action {
		case ActionAdd:
			e.handleAdd(n.Device)
		case ActionRemove:
			e.handleRemove(n.Device)
		}
	}
}

func (e *Engine) handleAdd(id DeviceID) {
	if e.stopping() {
		return
	}
	if e.registry.Contains(id) {
		// Already monitored; duplicate add events are normal.
		return
	}
	if !e.cfg.Classify(id) {
		return
	}
	if !e.registry.TryRegister(id) {
		return
	}
	log.Info("keyboard attached", "device", id)
	if err := e.spawn(id); err != nil {
		if !errors.Is(err, errStopping) {
			log.Warn("start monitor", "device", id, "err", err)
		}
		e.registry.Unregister(id)
	}
}

func (e *Engine) handleRemove(id DeviceID) {
	if !e.registry.Contains(id) {
		return
	}
	log.Info("keyboard detached", "device", id)
	// Membership only. The monitoring task notices the dead node
	// itself and exits; a later add for a reused identifier can then
	// register cleanly.
	e.registry.Unregister(id)
}
