package track

import (
	"testing"
	"time"

	"github.com/open-rail/trackd-go/internal/hal"
)

func testConfig() Config {
	return Config{
		ID:          0,
		PowerPin:    3,
		SignalPin:   12,
		SignalPin2:  UnusedPin,
		BrakePin:    9,
		CurrentPin:  0,
		FaultPin:    UnusedPin,
		SenseFactor: 2.99,
		TripMA:      1500,
	}
}

// fakeClock drives a channel's sampling schedule deterministically.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestChannel(t *testing.T, m *hal.Mock, cfg Config, bank *Bank) (*Channel, *fakeClock) {
	t.Helper()
	if bank == nil {
		bank = NewBank(false)
	}
	ch := New(cfg, m, bank)
	fc := &fakeClock{now: time.Unix(1000, 0)}
	ch.clock = fc.Now
	ch.lastSample = fc.now
	return ch, fc
}

func TestConversionRoundTrip(t *testing.T) {
	ch, _ := newTestChannel(t, hal.NewMock(), testConfig(), nil)

	for _, ma := range []int{100, 250, 500, 1000, 1500} {
		got := ch.Raw2MA(ch.MA2Raw(ma))
		if diff := got - ma; diff < -4 || diff > 4 {
			t.Errorf("Raw2MA(MA2Raw(%d)) = %d, want within 4", ma, got)
		}
	}
}

func TestConversionTruncatesTowardZero(t *testing.T) {
	ch, _ := newTestChannel(t, hal.NewMock(), testConfig(), nil)

	// senseFactor 2.99 → 765/256 mA per raw unit.
	if got := ch.Raw2MA(100); got != 100*765/256 {
		t.Errorf("Raw2MA(100) = %d, want %d", got, 100*765/256)
	}
	if got := ch.MA2Raw(1000); got != 1000*256/765 {
		t.Errorf("MA2Raw(1000) = %d, want %d", got, 1000*256/765)
	}
}

func TestTripValueClampedToADCRange(t *testing.T) {
	m := hal.NewMock()
	m.SetADCOffset(0, 10)

	cfg := testConfig()
	cfg.TripMA = 10000 // nominal raw trip far beyond a 10-bit ADC
	ch, _ := newTestChannel(t, m, cfg, nil)

	if want := m.ADCMax() - 10; ch.TripRaw() != want {
		t.Errorf("TripRaw() = %d, want clamped %d", ch.TripRaw(), want)
	}
}

func TestTripValueUnclampedWhenReachable(t *testing.T) {
	ch, _ := newTestChannel(t, hal.NewMock(), testConfig(), nil)

	if want := 1500 * 256 / 765; ch.TripRaw() != want {
		t.Errorf("TripRaw() = %d, want %d", ch.TripRaw(), want)
	}
}

func TestSetTripCurrentReclamps(t *testing.T) {
	m := hal.NewMock()
	m.SetADCOffset(0, 20)
	ch, _ := newTestChannel(t, m, testConfig(), nil)

	ch.SetTripCurrent(500)
	if want := 500 * 256 / 765; ch.TripRaw() != want {
		t.Errorf("TripRaw() after SetTripCurrent(500) = %d, want %d", ch.TripRaw(), want)
	}

	ch.SetTripCurrent(10000)
	if want := m.ADCMax() - 20; ch.TripRaw() != want {
		t.Errorf("TripRaw() after SetTripCurrent(10000) = %d, want clamped %d", ch.TripRaw(), want)
	}
}
