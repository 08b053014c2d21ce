package track

import (
	"log/slog"
	"time"
)

// Poll intervals for power management.
const (
	powerSampleOnWait       = 100 * time.Millisecond
	powerSampleOffWait      = time.Second
	powerSampleOverloadWait = 20 * time.Millisecond
	overloadWaitCeiling     = 10 * time.Second
	goodSampleCeiling       = 100
)

// readCurrent samples the current sense and reports the magnitude in raw
// units plus whether the fault pin is signalling. Without a sense channel
// the magnitude is always 0. The fault line is active-low and only
// meaningful while the output is powered on; the offset handles shields
// whose sense output swings around a midpoint depending on direction.
func (c *Channel) readCurrent(fromInterrupt bool) (magnitude int, faultActive bool) {
	if !c.hasCurrent {
		return 0, false
	}
	magnitude = c.drv.ReadADC(c.currentPin, fromInterrupt) - c.senseOffset
	if magnitude < 0 {
		magnitude = -magnitude
	}
	faultActive = c.hasFault && !c.drv.ReadPin(c.faultPin) && c.powerMode == PowerOn
	return magnitude, faultActive
}

// CheckPowerOverload is the per-channel overload monitor. Callers may
// invoke it arbitrarily often; it is a no-op until the adaptive sample
// delay has elapsed. useProgLimit selects the programming-track trip
// threshold instead of the configured one.
func (c *Channel) CheckPowerOverload(useProgLimit bool) {
	now := c.clock()
	if now.Sub(c.lastSample) < c.sampleDelay {
		return
	}
	c.lastSample = now

	trip := c.tripRaw
	if useProgLimit {
		trip = c.progTripRaw
	}

	switch c.powerMode {
	case PowerOff:
		c.sampleDelay = powerSampleOffWait

	case PowerOn:
		mag, fault := c.readCurrent(false)
		if fault {
			// Fail safe: cut power on any fault indication, then decide
			// how to interpret it.
			c.SetPower(PowerOverload)
			if c.bank.commonFaultPin {
				// A shared fault line can be tripped by any channel, so
				// restore fast when our own current looks fine; the next
				// poll catches a real local overload.
				if mag < trip {
					c.SetPower(PowerOn)
				}
				slog.Warn("track: common fault pin active, power toggled", "track", c.Name())
			} else {
				slog.Warn("track: fault pin active, overload", "track", c.Name())
				if mag < trip {
					mag = trip // report at least a full overload
				}
			}
		}
		c.lastCurrentRaw = mag
		if mag < trip {
			c.sampleDelay = powerSampleOnWait
			if c.goodSamples < goodSampleCeiling {
				c.goodSamples++
			} else if c.overloadWait > powerSampleOverloadWait {
				// Sustained health relaxes earlier backoff escalation.
				c.overloadWait = powerSampleOverloadWait
			}
		} else {
			c.SetPower(PowerOverload)
			c.goodSamples = 0
			c.overloads++
			c.sampleDelay = c.overloadWait
			if c.diagLimit.Allow() {
				slog.Warn("track: power overload",
					"track", c.Name(),
					"ma", c.Raw2MA(mag),
					"limit_ma", c.Raw2MA(trip),
					"shutdown_for", c.sampleDelay,
				)
			}
			c.overloadWait *= 2
			if c.overloadWait > overloadWaitCeiling {
				c.overloadWait = overloadWaitCeiling
			}
		}

	case PowerOverload:
		// Overload is never a resting state: probe by restoring power. If
		// the short persists, the next ON poll re-trips and the backoff
		// keeps escalating.
		c.SetPower(PowerOn)
		c.sampleDelay = powerSampleOnWait
		slog.Info("track: power restored", "track", c.Name(), "recheck_in", c.sampleDelay)
	}
}
