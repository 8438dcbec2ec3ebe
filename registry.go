package main

import "sync"

// DeviceID names an input device node, e.g. "event3". It is stable for
// the device's attached lifetime; the kernel may reuse it after removal.
type DeviceID string

// Path returns the device node path under /dev/input.
func (id DeviceID) Path() string {
	return "/dev/input/" + string(id)
}

// Registry tracks which devices currently have an active monitoring
// task. It is the single de-duplication gate: callers spawn a monitor
// only after TryRegister returns true. All methods are safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[DeviceID]Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[DeviceID]Task)}
}

// TryRegister inserts id if absent and reports whether insertion
// happened. False means the device is already monitored. The monitor
// handle is attached later via Attach, once the spawn succeeded.
func (r *Registry) TryRegister(id DeviceID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return false
	}
	r.entries[id] = nil
	return true
}

// Attach records the monitor handle for a registered device. No-op if
// the device was unregistered between TryRegister and Attach.
func (r *Registry) Attach(id DeviceID, m Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		r.entries[id] = m
	}
}

// release removes id only if it is still owned by t. A monitor calls
// this on exit; by then the identifier may have been removed and
// re-registered to a fresh task, which must not be evicted.
func (r *Registry) release(id DeviceID, t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[id]; ok && cur == t {
		delete(r.entries, id)
	}
}

// Unregister removes id if present; removing an absent device is not
// an error.
func (r *Registry) Unregister(id DeviceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Contains reports whether id currently has a monitoring task.
func (r *Registry) Contains(id DeviceID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Devices returns a snapshot of the registered identifiers.
func (r *Registry) Devices() []DeviceID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]DeviceID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
