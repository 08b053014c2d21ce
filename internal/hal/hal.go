// Package hal provides the hardware abstraction layer for trackd.
// It defines the Driver interface consumed by the track output core and
// the helper capabilities shared by the real Linux drivers and the mock.
package hal

import "context"

// PortID identifies one physical output port (an 8-bit register hosting
// up to eight pins) on backends that expose whole-port access.
type PortID uint8

// Driver is the backend interface for one board's GPIO, ADC and PWM
// resources. Pin numbers are board-native (BCM numbers on a Pi, channel
// numbers for the ADC).
//
// Level and duty writes do not return errors: the track core runs them on
// its polling path where there is no recovery action to take. Real drivers
// log failures and carry on.
type Driver interface {
	// Init initializes the backend. Must be called before any other method.
	Init(ctx context.Context) error

	// WritePin drives an output pin high or low, configuring it as an
	// output on first use.
	WritePin(pin int, high bool)

	// ReadPin samples an input pin, configuring it as an input on first use.
	ReadPin(pin int) bool

	// InitADC prepares an ADC channel for sampling and returns its
	// zero-current offset in raw units.
	InitADC(pin int) (offset int)

	// ReadADC samples an ADC channel. fromInterrupt is true when the caller
	// runs in a preemptive context and the backend must avoid blocking.
	ReadADC(pin int, fromInterrupt bool) int

	// ADCMax returns the maximum raw value the ADC can report.
	ADCMax() int

	// SetPWMDuty sets the PWM duty ratio (0..255) on an output pin.
	SetPWMDuty(pin int, duty uint8)

	// IsReal returns true for a real hardware driver, false for a mock.
	IsReal() bool
}

// PortAccess is an optional capability of drivers whose pins are
// multiplexed onto shared output registers. The shadow registry in the
// track core uses it to commit full register images instead of per-bit
// writes, keeping multiple writers of one port consistent.
type PortAccess interface {
	// ResolvePin maps a pin to its output port and bit mask. ok is false
	// when the pin is not on a port-addressable register.
	ResolvePin(pin int) (port PortID, mask uint8, ok bool)

	// ReadPort returns the current output register image of a port.
	ReadPort(port PortID) uint8

	// WritePort replaces the full output register image of a port.
	WritePort(port PortID, value uint8)
}
