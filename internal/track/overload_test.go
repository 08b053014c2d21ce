package track

import (
	"testing"
	"time"

	"github.com/open-rail/trackd-go/internal/hal"
)

// setCurrentMA scripts the mock ADC so the channel reads the given current.
func setCurrentMA(m *hal.Mock, ch *Channel, ma int) {
	m.SetADC(0, ch.senseOffset+ch.MA2Raw(ma))
}

func TestCheckRateLimited(t *testing.T) {
	m := hal.NewMock()
	ch, fc := newTestChannel(t, m, testConfig(), nil)
	ch.SetPower(PowerOn)

	fc.advance(time.Millisecond)
	ch.CheckPowerOverload(false) // runs: initial sampleDelay is zero
	if ch.sampleDelay != powerSampleOnWait {
		t.Fatalf("sampleDelay = %v, want %v", ch.sampleDelay, powerSampleOnWait)
	}

	// Within the delay nothing happens, even with a dead short applied.
	setCurrentMA(m, ch, 3000)
	fc.advance(powerSampleOnWait - time.Millisecond)
	ch.CheckPowerOverload(false)
	if ch.Power() != PowerOn {
		t.Error("check inside the sample delay must be a no-op")
	}

	fc.advance(2 * time.Millisecond)
	ch.CheckPowerOverload(false)
	if ch.Power() != PowerOverload {
		t.Error("check after the sample delay must evaluate the short")
	}
}

func TestOffStateUsesLongPollInterval(t *testing.T) {
	ch, fc := newTestChannel(t, hal.NewMock(), testConfig(), nil)

	fc.advance(time.Millisecond)
	ch.CheckPowerOverload(false)
	if ch.sampleDelay != powerSampleOffWait {
		t.Errorf("off-state sampleDelay = %v, want %v", ch.sampleDelay, powerSampleOffWait)
	}
	if ch.Power() != PowerOff {
		t.Errorf("power = %v, want off", ch.Power())
	}
}

func TestOverloadTripAndTransientRecovery(t *testing.T) {
	m := hal.NewMock()
	ch, fc := newTestChannel(t, m, testConfig(), nil)
	ch.SetPower(PowerOn)
	setCurrentMA(m, ch, 3000)

	fc.advance(time.Millisecond)
	ch.CheckPowerOverload(false)
	if ch.Power() != PowerOverload {
		t.Fatalf("power = %v, want overload", ch.Power())
	}
	if ch.sampleDelay != powerSampleOverloadWait {
		t.Errorf("first overload delay = %v, want floor %v", ch.sampleDelay, powerSampleOverloadWait)
	}

	// Overload is transient: the very next check restores power.
	fc.advance(ch.sampleDelay)
	ch.CheckPowerOverload(false)
	if ch.Power() != PowerOn {
		t.Errorf("power after overload recheck = %v, want on", ch.Power())
	}
	if ch.sampleDelay != powerSampleOnWait {
		t.Errorf("recovery probe delay = %v, want %v", ch.sampleDelay, powerSampleOnWait)
	}
}

func TestOverloadBackoffSequence(t *testing.T) {
	m := hal.NewMock()
	ch, fc := newTestChannel(t, m, testConfig(), nil)
	ch.SetPower(PowerOn)
	setCurrentMA(m, ch, 3000) // persistent short

	var delays []time.Duration
	for i := 0; i < 12; i++ {
		fc.advance(ch.sampleDelay + time.Millisecond)
		ch.CheckPowerOverload(false) // trips
		if ch.Power() != PowerOverload {
			t.Fatalf("iteration %d: power = %v, want overload", i, ch.Power())
		}
		delays = append(delays, ch.sampleDelay)

		fc.advance(ch.sampleDelay + time.Millisecond)
		ch.CheckPowerOverload(false) // transient restore
	}

	want := powerSampleOverloadWait
	for i, d := range delays {
		if d != want {
			t.Errorf("overload %d: delay = %v, want %v", i, d, want)
		}
		if i > 0 && d < delays[i-1] {
			t.Errorf("overload %d: delay %v decreased from %v", i, d, delays[i-1])
		}
		if want < overloadWaitCeiling {
			want *= 2
			if want > overloadWaitCeiling {
				want = overloadWaitCeiling
			}
		}
	}
	if delays[len(delays)-1] != overloadWaitCeiling {
		t.Errorf("final delay = %v, want ceiling %v", delays[len(delays)-1], overloadWaitCeiling)
	}
}

func TestSustainedHealthResetsBackoff(t *testing.T) {
	m := hal.NewMock()
	ch, fc := newTestChannel(t, m, testConfig(), nil)
	ch.SetPower(PowerOn)

	// Escalate the backoff with a few trips.
	setCurrentMA(m, ch, 3000)
	for i := 0; i < 4; i++ {
		fc.advance(ch.sampleDelay + time.Millisecond)
		ch.CheckPowerOverload(false)
		fc.advance(ch.sampleDelay + time.Millisecond)
		ch.CheckPowerOverload(false)
	}
	if ch.overloadWait == powerSampleOverloadWait {
		t.Fatal("backoff should be escalated before the healthy run")
	}

	// 100 healthy polls saturate the good counter; the next one relaxes the
	// backoff to its floor.
	setCurrentMA(m, ch, 100)
	for i := 0; i < goodSampleCeiling+1; i++ {
		fc.advance(ch.sampleDelay + time.Millisecond)
		ch.CheckPowerOverload(false)
	}
	if ch.overloadWait != powerSampleOverloadWait {
		t.Errorf("overloadWait after sustained health = %v, want floor %v",
			ch.overloadWait, powerSampleOverloadWait)
	}

	// The next overload starts at the floor again, not a carried-over value.
	setCurrentMA(m, ch, 3000)
	fc.advance(ch.sampleDelay + time.Millisecond)
	ch.CheckPowerOverload(false)
	if ch.sampleDelay != powerSampleOverloadWait {
		t.Errorf("post-recovery overload delay = %v, want %v", ch.sampleDelay, powerSampleOverloadWait)
	}
}

func TestCommonFaultPinRestoresFast(t *testing.T) {
	m := hal.NewMock()
	cfg := testConfig()
	cfg.FaultPin = 7
	ch, fc := newTestChannel(t, m, cfg, NewBank(true))
	ch.SetPower(PowerOn)

	// Shared fault line reads active (active-low) while our own current
	// is fine.
	m.SetPin(7, false)
	setCurrentMA(m, ch, 100)

	fc.advance(time.Millisecond)
	ch.CheckPowerOverload(false)
	if ch.Power() != PowerOn {
		t.Errorf("power = %v, want on (shared fault line, current below trip)", ch.Power())
	}
	if ch.sampleDelay != powerSampleOnWait {
		t.Errorf("sampleDelay = %v, want healthy %v", ch.sampleDelay, powerSampleOnWait)
	}
}

func TestDedicatedFaultPinIsConclusive(t *testing.T) {
	m := hal.NewMock()
	cfg := testConfig()
	cfg.FaultPin = 7
	ch, fc := newTestChannel(t, m, cfg, NewBank(false))
	ch.SetPower(PowerOn)

	m.SetPin(7, false)
	setCurrentMA(m, ch, 100)

	fc.advance(time.Millisecond)
	ch.CheckPowerOverload(false)
	if ch.Power() != PowerOverload {
		t.Errorf("power = %v, want overload (dedicated fault line)", ch.Power())
	}
	// The reported magnitude is floored at the trip threshold.
	if ch.LastCurrentRaw() != ch.TripRaw() {
		t.Errorf("LastCurrentRaw = %d, want trip threshold %d", ch.LastCurrentRaw(), ch.TripRaw())
	}
}

func TestFaultPinIgnoredWhilePoweredOff(t *testing.T) {
	m := hal.NewMock()
	cfg := testConfig()
	cfg.FaultPin = 7
	ch, _ := newTestChannel(t, m, cfg, nil)

	m.SetPin(7, false)
	if _, fault := ch.readCurrent(false); fault {
		t.Error("fault must not be reported while powered off")
	}
}

func TestNoCurrentSenseReadsZero(t *testing.T) {
	m := hal.NewMock()
	cfg := testConfig()
	cfg.CurrentPin = UnusedPin
	cfg.FaultPin = 7
	ch, fc := newTestChannel(t, m, cfg, nil)
	ch.SetPower(PowerOn)
	m.SetPin(7, false)
	m.SetADC(0, 900)

	mag, fault := ch.readCurrent(false)
	if mag != 0 || fault {
		t.Errorf("readCurrent = (%d, %v), want (0, false)", mag, fault)
	}
	if ch.CanMeasureCurrent() {
		t.Error("CanMeasureCurrent() = true, want false")
	}

	// And the monitor never trips.
	fc.advance(time.Millisecond)
	ch.CheckPowerOverload(false)
	if ch.Power() != PowerOn {
		t.Errorf("power = %v, want on", ch.Power())
	}
}

func TestProgrammingLimitSelectsLowerThreshold(t *testing.T) {
	m := hal.NewMock()
	ch, fc := newTestChannel(t, m, testConfig(), nil)
	ch.SetPower(PowerOn)

	// Between the 250mA programming trip and the 1500mA main trip.
	setCurrentMA(m, ch, 400)

	fc.advance(time.Millisecond)
	ch.CheckPowerOverload(true)
	if ch.Power() != PowerOverload {
		t.Errorf("power with prog limit = %v, want overload", ch.Power())
	}

	ch2, fc2 := newTestChannel(t, m, testConfig(), nil)
	ch2.SetPower(PowerOn)
	fc2.advance(time.Millisecond)
	ch2.CheckPowerOverload(false)
	if ch2.Power() != PowerOn {
		t.Errorf("power with main limit = %v, want on", ch2.Power())
	}
}

func TestOverloadCounter(t *testing.T) {
	m := hal.NewMock()
	ch, fc := newTestChannel(t, m, testConfig(), nil)
	ch.SetPower(PowerOn)
	setCurrentMA(m, ch, 3000)

	for i := 0; i < 3; i++ {
		fc.advance(ch.sampleDelay + time.Millisecond)
		ch.CheckPowerOverload(false)
		fc.advance(ch.sampleDelay + time.Millisecond)
		ch.CheckPowerOverload(false)
	}
	if ch.Overloads() != 3 {
		t.Errorf("Overloads() = %d, want 3", ch.Overloads())
	}
}
