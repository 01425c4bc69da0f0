package device

import (
	"fmt"
	"strings"

	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
)

// Actions stored in the action log and sent on the control topic.
const (
	ActionOn  = "ON"
	ActionOff = "OFF"
)

// Device is one controllable relay.
type Device struct {
	// Key is the operator-facing identifier used by the toggle endpoint.
	Key string `json:"key"`

	// Name is the display name stored in the devices table.
	Name string `json:"name"`

	// Ordinal addresses the device on the control topic (LED<ordinal>).
	Ordinal int `json:"ordinal"`

	// Relay is the identifier the device reports on its status topic.
	Relay string `json:"relay"`
}

// Command returns the control payload that switches d on or off.
func (d Device) Command(on bool) string {
	return fmt.Sprintf("LED%d %s", d.Ordinal, Action(on))
}

// Action maps a desired state to its action string.
func Action(on bool) string {
	if on {
		return ActionOn
	}
	return ActionOff
}

// Catalogue is the fixed set of devices known at start.
// It is immutable and safe for concurrent use.
type Catalogue struct {
	devices []Device
	byKey   map[string]int
	byName  map[string]int
	byRelay map[string]int
}

// NewCatalogue builds a catalogue from the configured device list.
// Lookups by key, name and relay are case-insensitive.
func NewCatalogue(cfgs []config.DeviceConfig) (*Catalogue, error) {
	c := &Catalogue{
		devices: make([]Device, 0, len(cfgs)),
		byKey:   make(map[string]int, len(cfgs)),
		byName:  make(map[string]int, len(cfgs)),
		byRelay: make(map[string]int, len(cfgs)),
	}

	for _, dc := range cfgs {
		d := Device{Key: dc.Key, Name: dc.Name, Ordinal: dc.Ordinal, Relay: dc.Relay}
		if d.Key == "" || d.Name == "" || d.Relay == "" || d.Ordinal <= 0 {
			return nil, fmt.Errorf("%w: incomplete device %+v", ErrInvalidCatalogue, d)
		}

		idx := len(c.devices)
		for _, entry := range []struct {
			index map[string]int
			value string
			field string
		}{
			{c.byKey, d.Key, "key"},
			{c.byName, d.Name, "name"},
			{c.byRelay, d.Relay, "relay"},
		} {
			norm := normalise(entry.value)
			if _, dup := entry.index[norm]; dup {
				return nil, fmt.Errorf("%w: duplicate %s %q", ErrInvalidCatalogue, entry.field, entry.value)
			}
			entry.index[norm] = idx
		}
		c.devices = append(c.devices, d)
	}

	return c, nil
}

// ByKey returns the device with the operator-facing key.
func (c *Catalogue) ByKey(key string) (Device, bool) {
	return c.lookup(c.byKey, key)
}

// ByName returns the device with the stored display name.
func (c *Catalogue) ByName(name string) (Device, bool) {
	return c.lookup(c.byName, name)
}

// ByRelay returns the device that reports with the relay identifier.
func (c *Catalogue) ByRelay(relay string) (Device, bool) {
	return c.lookup(c.byRelay, relay)
}

// Find resolves either a key or a display name.
func (c *Catalogue) Find(ref string) (Device, bool) {
	if d, ok := c.ByKey(ref); ok {
		return d, true
	}
	return c.ByName(ref)
}

// Devices returns the catalogue in configured order.
func (c *Catalogue) Devices() []Device {
	out := make([]Device, len(c.devices))
	copy(out, c.devices)
	return out
}

func (c *Catalogue) lookup(index map[string]int, v string) (Device, bool) {
	i, ok := index[normalise(v)]
	if !ok {
		return Device{}, false
	}
	return c.devices[i], true
}

func normalise(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
