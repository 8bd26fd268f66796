package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-metronome/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// DeviceEvent is emitted when tap inputs connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

type inPort struct {
	name string
	in   drivers.In
}

// DeviceManager handles hot-plug detection of MIDI tap inputs whose port name
// contains match (case-insensitive). An empty match disables scanning.
type DeviceManager struct {
	match       string
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration

	list func() []inPort
	open func(id string, in drivers.In) (Controller, error)
}

// NewDeviceManager creates a new device manager
func NewDeviceManager(match string) *DeviceManager {
	return &DeviceManager{
		match:       strings.ToLower(strings.TrimSpace(match)),
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		list:        systemInPorts,
		open: func(id string, in drivers.In) (Controller, error) {
			return NewTapInput(id, in)
		},
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected tap inputs
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		copy[k] = v
	}
	return copy
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	defer close(dm.events)
	if dm.match == "" {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			return
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func systemInPorts() []inPort {
	ins := gomidi.GetInPorts()
	ports := make([]inPort, 0, len(ins))
	for _, in := range ins {
		ports = append(ports, inPort{name: in.String(), in: in})
	}
	return ports
}

func (dm *DeviceManager) scan(ctx context.Context) {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	ch := make(chan []inPort, 1)
	go func() {
		ch <- dm.list()
	}()

	var ports []inPort
	select {
	case ports = <-ch:
	case <-time.After(3 * time.Second):
		debug.Log("midi", "port scan timed out")
		return
	}

	seenIDs := make(map[string]bool)
	for _, p := range ports {
		if !Matches(p.name, dm.match) {
			continue
		}
		id := p.name
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		c, err := dm.open(id, p.in)
		if err != nil {
			debug.Log("midi", "open %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = c
		dm.mu.Unlock()

		debug.Log("midi", "tap input connected: %s", id)
		dm.emit(ctx, DeviceEvent{Type: DeviceConnected, Controller: c, ID: id})
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.controllers {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		dm.controllers[id].Close()
		delete(dm.controllers, id)
	}
	dm.mu.Unlock()

	for _, id := range toRemove {
		debug.Log("midi", "tap input disconnected: %s", id)
		dm.emit(ctx, DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
}

func (dm *DeviceManager) emit(ctx context.Context, ev DeviceEvent) {
	select {
	case dm.events <- ev:
	case <-ctx.Done():
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

// Matches reports whether a port name selects the configured device. An
// empty pattern matches nothing.
func Matches(name, match string) bool {
	match = strings.ToLower(strings.TrimSpace(match))
	if match == "" {
		return false
	}
	return strings.Contains(strings.ToLower(name), match)
}

// InPortNames lists the system's MIDI input ports
func InPortNames() []string {
	var names []string
	for _, p := range systemInPorts() {
		names = append(names, p.name)
	}
	return names
}

// OutPortNames lists the system's MIDI output ports
func OutPortNames() []string {
	var names []string
	for _, out := range gomidi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

// CloseDriver releases the MIDI driver; call once at exit
func CloseDriver() {
	gomidi.CloseDriver()
}
