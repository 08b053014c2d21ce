// Package track implements the motor/track output driver of the command
// station: H-bridge power control, current-sense short-circuit protection
// with adaptive backoff, DC throttle signal generation, and shadow-port
// writes for signal pins that share a physical output register.
//
// Channel methods are not safe for concurrent use; the controller
// serializes all calls. The bank lock protects only the state shared with
// preemptive-context writers (port shadows and single register writes).
package track

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/open-rail/trackd-go/internal/hal"
)

// UnusedPin marks an absent optional pin in a channel configuration.
const UnusedPin = 127

// PowerMode is the runtime power state of one track output.
type PowerMode uint8

const (
	PowerOff PowerMode = iota
	PowerOn
	// PowerOverload is transient: the overload monitor always restores
	// PowerOn on the very next check.
	PowerOverload
)

func (m PowerMode) String() string {
	switch m {
	case PowerOff:
		return "off"
	case PowerOn:
		return "on"
	case PowerOverload:
		return "overload"
	default:
		return "unknown"
	}
}

// ResetSink is the programming-track waveform collaborator. Powering on a
// programming output restarts the service-mode negotiation, so accumulated
// reset-packet state must be cleared.
type ResetSink interface {
	ClearResets()
}

// Config describes one track output channel. Negative PowerPin or BrakePin
// values mean the physical line is active-low; the sign is stripped and the
// inversion remembered. Optional pins use UnusedPin.
type Config struct {
	ID          byte // ordinal; track 0 is "A", used only for diagnostics
	PowerPin    int
	SignalPin   int
	SignalPin2  int
	BrakePin    int
	CurrentPin  int // ADC channel
	FaultPin    int
	SenseFactor float64
	TripMA      int
	Prog        bool
	ResetSink   ResetSink
}

// Channel drives one H-bridge track output.
type Channel struct {
	id   byte
	drv  hal.Driver
	bank *Bank

	powerPin    int
	invertPower bool
	signalPin   int
	signalPin2  int
	dualSignal  bool
	brakePin    int
	invertBrake bool
	hasBrake    bool
	currentPin  int
	hasCurrent  bool
	faultPin    int
	hasFault    bool
	prog        bool
	resetSink   ResetSink

	// Shadow-port accelerator for the signal pin, nil when the pin is not
	// on a recognized multiplexed port.
	pa         hal.PortAccess
	shadow     *portShadow
	shadowPort hal.PortID
	signalMask uint8

	// Calibration; all integer so the polling path never touches floats.
	senseFactor int
	senseOffset int
	tripRaw     int
	progTripRaw int

	// Sampling state machine.
	powerMode      PowerMode
	lastCurrentRaw int
	lastSample     time.Time
	sampleDelay    time.Duration
	overloadWait   time.Duration
	goodSamples    int
	overloads      uint64

	// DC throttle state. lastSpeedCode is retained while powered off so
	// power-on resumes the previous speed and direction.
	dcInUse       bool
	lastSpeedCode byte

	clock     func() time.Time
	diagLimit *rate.Limiter
}

// New constructs a channel, configures its pins, and calibrates the
// current sense. The output starts powered off.
func New(cfg Config, drv hal.Driver, bank *Bank) *Channel {
	c := &Channel{
		id:        cfg.ID,
		drv:       drv,
		bank:      bank,
		prog:      cfg.Prog,
		resetSink: cfg.ResetSink,
		clock:     time.Now,
		diagLimit: rate.NewLimiter(rate.Every(time.Second), 4),
	}

	c.powerPin = cfg.PowerPin
	if c.invertPower = cfg.PowerPin < 0; c.invertPower {
		c.powerPin = -cfg.PowerPin
	}
	// Set to output and off.
	drv.WritePin(c.powerPin, c.invertPower)

	c.signalPin = cfg.SignalPin
	drv.WritePin(c.signalPin, false)
	if pa, ok := drv.(hal.PortAccess); ok {
		if port, mask, found := pa.ResolvePin(c.signalPin); found {
			c.pa = pa
			c.shadow = bank.shadowFor(port)
			c.shadowPort = port
			c.signalMask = mask
			slog.Debug("track: signal pin on shadowed port",
				"track", c.Name(), "pin", c.signalPin, "port", port)
		}
	}

	c.signalPin2 = cfg.SignalPin2
	if c.signalPin2 != UnusedPin {
		c.dualSignal = true
		drv.WritePin(c.signalPin2, true)
	}

	if cfg.BrakePin != UnusedPin {
		c.hasBrake = true
		c.brakePin = cfg.BrakePin
		if c.invertBrake = cfg.BrakePin < 0; c.invertBrake {
			c.brakePin = -cfg.BrakePin
		}
		drv.WritePin(c.brakePin, c.invertBrake)
	} else {
		c.brakePin = UnusedPin
	}

	c.currentPin = cfg.CurrentPin
	if c.currentPin != UnusedPin {
		c.hasCurrent = true
		c.senseOffset = drv.InitADC(c.currentPin)
	}

	c.faultPin = cfg.FaultPin
	c.hasFault = c.faultPin != UnusedPin

	c.calibrate(cfg.SenseFactor, cfg.TripMA)

	if !c.hasCurrent {
		slog.Warn("track: no current sense, short detection disabled", "track", c.Name())
	} else {
		slog.Info("track: current sense calibrated",
			"track", c.Name(),
			"channel", c.currentPin,
			"offset", c.senseOffset,
			"trip_raw", c.tripRaw,
		)
	}

	c.sampleDelay = 0
	c.lastSample = c.clock()
	c.overloadWait = powerSampleOverloadWait
	return c
}

// Name returns the channel's diagnostic letter ("A", "B", ...).
func (c *Channel) Name() string { return string(rune('A' + c.id)) }

// Prog reports whether this channel is the programming-track output.
func (c *Channel) Prog() bool { return c.prog }

// Power returns the current power mode.
func (c *Channel) Power() PowerMode { return c.powerMode }

// CanMeasureCurrent reports whether a current-sense channel is configured.
func (c *Channel) CanMeasureCurrent() bool { return c.hasCurrent }

// LastCurrentRaw returns the magnitude of the most recent current sample.
func (c *Channel) LastCurrentRaw() int { return c.lastCurrentRaw }

// Overloads returns the number of overload trips since construction.
func (c *Channel) Overloads() uint64 { return c.overloads }

// DCState returns the stored throttle code and whether DC drive is active.
func (c *Channel) DCState() (speedCode byte, active bool) {
	return c.lastSpeedCode, c.dcInUse
}

// SetPower switches the output stage. Turning on while DC drive is active
// re-applies the stored throttle; turning off commands a stopped output
// but keeps the stored throttle for later resumption. Powering on a
// programming output clears the waveform generator's accumulated resets.
func (c *Channel) SetPower(mode PowerMode) {
	if mode == PowerOn {
		c.bank.lock()
		c.drv.WritePin(c.powerPin, !c.invertPower)
		c.bank.unlock()
		if c.dcInUse {
			c.SetDCSignal(c.lastSpeedCode)
		}
		if c.prog && c.resetSink != nil {
			c.resetSink.ClearResets()
		}
	} else {
		c.bank.lock()
		c.drv.WritePin(c.powerPin, c.invertPower)
		c.bank.unlock()
		if c.dcInUse {
			// Remember the throttle but drive a stopped output.
			s := c.lastSpeedCode
			c.SetDCSignal(dcStopCode)
			c.lastSpeedCode = s
		}
	}
	c.powerMode = mode
}

// SetBrake applies or releases the brake. on=true always means "brake",
// regardless of the physical polarity of the pin. interruptContext must be
// true when the caller already holds the bank's critical section, so the
// nested call neither deadlocks nor releases the caller's exclusion early.
func (c *Channel) SetBrake(on bool, interruptContext bool) {
	if !c.hasBrake {
		return
	}
	if !interruptContext {
		c.bank.lock()
	}
	c.drv.WritePin(c.brakePin, on != c.invertBrake)
	if !interruptContext {
		c.bank.unlock()
	}
}

// setSignal drives the direction pin(s). Caller holds the bank lock.
// With dual signal pins the second pin always carries the complement.
func (c *Channel) setSignal(high bool) {
	c.drv.WritePin(c.signalPin, high)
	if c.dualSignal {
		c.drv.WritePin(c.signalPin2, !high)
	}
}
