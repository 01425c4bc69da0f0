package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrInvalidDevice) {
//	    // reject with 400
//	}
var (
	// ErrInvalidDevice is returned when a command names a device that is
	// not in the catalogue.
	ErrInvalidDevice = errors.New("device: invalid device")

	// ErrDeviceNotFound is returned when a catalogue device has no row in
	// the store.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidCatalogue is returned when the configured device list is
	// inconsistent.
	ErrInvalidCatalogue = errors.New("device: invalid catalogue")

	// ErrMalformedMessage is returned when a status payload is not valid
	// JSON.
	ErrMalformedMessage = errors.New("device: malformed message")
)
