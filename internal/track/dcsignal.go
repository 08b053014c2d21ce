package track

// dcStopCode is a throttle code commanding a stopped output: speed 0 with
// the direction bit set, matching the DCC idle direction convention.
const dcStopCode = 128

// SetDCSignal drives the output as a DC throttle. speedCode packs a 7-bit
// DCC speed (0 and 1 both mean stop, 2..127 increasing) in the low bits
// and the direction flag in the high bit. The channel stays in DC mode
// until reconfigured; power-off preserves the code for resumption.
//
// The duty ratio is independent of wiring polarity: an inverted power pin
// flips the ratio so downstream semantics stay unchanged.
func (c *Channel) SetDCSignal(speedCode byte) {
	c.lastSpeedCode = speedCode
	c.dcInUse = true

	speed := speedCode & 0x7F
	dir := speedCode&0x80 != 0

	var duty uint8
	switch {
	case speed <= 1:
		duty = 0
	case speed >= 127:
		duty = 255
	default:
		duty = 2 * speed
	}
	if c.invertPower {
		duty = 255 - duty
	}
	c.drv.SetPWMDuty(c.powerPin, duty)

	// Direction bit. When the signal pin shares a multiplexed port the
	// write must commit the full refreshed register image so interleaved
	// writers of other bits on the same port are never clobbered; a pin on
	// a private register only needs the exclusion discipline.
	c.bank.lock()
	if c.shadow != nil {
		commitShadowBit(c.pa, c.shadow, c.shadowPort, c.signalMask, dir)
		if c.dualSignal {
			c.drv.WritePin(c.signalPin2, !dir)
		}
	} else {
		c.setSignal(dir)
	}
	c.bank.unlock()
}
