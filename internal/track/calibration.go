package track

// senseScale is the fixed-point scale for the sense factor. The float
// multiply in calibrate is the only floating-point operation in the
// subsystem; every conversion after it is integer arithmetic.
const senseScale = 256

// Trip current for the programming track, 250mA per NMRA S-9.2.3.
const progTripMilliamps = 250

// calibrate derives the integer calibration from the shield's sensitivity
// factor and the configured trip current. If the nominal trip value lies
// beyond what the ADC can report after offset correction, the threshold is
// clamped to the ADC ceiling; otherwise a dead short would saturate the
// ADC below the trip point and protection would never fire.
func (c *Channel) calibrate(senseFactor float64, tripMA int) {
	c.senseFactor = int(senseFactor * senseScale)
	if c.senseFactor <= 0 {
		c.senseFactor = senseScale
	}
	c.tripRaw = c.MA2Raw(tripMA)
	if c.tripRaw+c.senseOffset > c.drv.ADCMax() {
		c.tripRaw = c.drv.ADCMax() - c.senseOffset
	}
	c.progTripRaw = c.MA2Raw(progTripMilliamps)
}

// Raw2MA converts a raw ADC magnitude to milliamps.
func (c *Channel) Raw2MA(raw int) int {
	return int(int64(raw) * int64(c.senseFactor) / senseScale)
}

// MA2Raw converts milliamps to a raw ADC magnitude.
func (c *Channel) MA2Raw(ma int) int {
	return int(int64(ma) * senseScale / int64(c.senseFactor))
}

// TripRaw returns the effective (possibly clamped) trip threshold.
func (c *Channel) TripRaw() int { return c.tripRaw }

// SetTripCurrent re-runs calibration for a new trip current, for live
// config reload. The programming-track limit is fixed and unaffected.
func (c *Channel) SetTripCurrent(tripMA int) {
	c.tripRaw = c.MA2Raw(tripMA)
	if c.tripRaw+c.senseOffset > c.drv.ADCMax() {
		c.tripRaw = c.drv.ADCMax() - c.senseOffset
	}
}
