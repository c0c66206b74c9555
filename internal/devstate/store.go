// v0
// internal/devstate/store.go
package devstate

import (
	"sort"
	"sync"

	"github.com/Mohammed19J/Robomo-2.0/internal/reading"
	"github.com/Mohammed19J/Robomo-2.0/internal/smoke"
)

// ring is a fixed-capacity FIFO. Pushing past capacity evicts the oldest
// item.
type ring[T any] struct {
	buf  []T
	head int
	n    int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

// items returns the buffered values in insertion order.
func (r *ring[T]) items() []T {
	out := make([]T, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// replace swaps the contents for the given items, keeping the newest ones
// when there are more than fit.
func (r *ring[T]) replace(items []T) {
	r.head = 0
	r.n = 0
	for _, v := range items {
		r.push(v)
	}
}

func (r *ring[T]) size() int { return r.n }

type deviceEntry struct {
	mu      sync.Mutex
	state   DeviceState
	history *ring[reading.Sample]
}

// Store keeps per-device context and reading history. Each device carries
// its own lock so one computation can read, resolve, and commit without
// racing concurrent submissions for the same device. Devices are never
// evicted.
type Store struct {
	mu       sync.RWMutex
	defaults Defaults
	cap      int
	devices  map[string]*deviceEntry
}

// NewStore builds a store seeding new devices from defaults and capping
// per-device history at historyCap readings.
func NewStore(defaults Defaults, historyCap int) *Store {
	if historyCap < 1 {
		historyCap = 1
	}
	return &Store{defaults: defaults, cap: historyCap, devices: make(map[string]*deviceEntry)}
}

// Device is the locked view handed to Update callbacks.
type Device struct {
	e *deviceEntry
}

// State returns a copy of the device's context.
func (d *Device) State() DeviceState { return d.e.state }

// Apply commits a patch to the device's context.
func (d *Device) Apply(p Patch) { p.Apply(&d.e.state) }

// History returns the buffered readings in chronological insertion order.
func (d *Device) History() []reading.Sample { return d.e.history.items() }

// AppendHistory records one reading, evicting the oldest at capacity.
func (d *Device) AppendHistory(s reading.Sample) { d.e.history.push(s) }

// ReplaceHistory swaps the buffer for the given readings.
func (d *Device) ReplaceHistory(samples []reading.Sample) { d.e.history.replace(samples) }

// HistoryLen reports how many readings the device has buffered.
func (d *Device) HistoryLen() int { return d.e.history.size() }

// Update runs fn with the device locked, creating the device from defaults
// on first sight. The lock spans the whole callback.
func (s *Store) Update(deviceID string, fn func(dev *Device) error) error {
	s.mu.Lock()
	e, ok := s.devices[deviceID]
	if !ok {
		e = &deviceEntry{
			state:   s.newState(deviceID),
			history: newRing[reading.Sample](s.cap),
		}
		s.devices[deviceID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&Device{e: e})
}

func (s *Store) newState(deviceID string) DeviceState {
	return DeviceState{
		DeviceID:  deviceID,
		VolumeM3:  s.defaults.VolumeM3,
		CoutPPM:   s.defaults.CoutPPM,
		ACHSource: "default",
		GPerson:   s.defaults.GPerson,
		Smoke:     smoke.NewState(),
	}
}

// Snapshot returns a copy of the device's context without creating it.
func (s *Store) Snapshot(deviceID string) (DeviceState, bool) {
	s.mu.RLock()
	e, ok := s.devices[deviceID]
	s.mu.RUnlock()
	if !ok {
		return DeviceState{}, false
	}
	e.mu.Lock()
	st := e.state
	e.mu.Unlock()
	return st, true
}

// List returns every device's context sorted by id.
func (s *Store) List() []DeviceState {
	s.mu.RLock()
	entries := make([]*deviceEntry, 0, len(s.devices))
	for _, e := range s.devices {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]DeviceState, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.state)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Len reports how many devices the store tracks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}
