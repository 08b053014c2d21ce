//go:build linux

package hal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// DC throttle PWM carrier. The motor bridge hums audibly at this
	// frequency; ~122-131 Hz is the conventional range for DC drive.
	dcPWMFreq = 125 * physic.Hertz

	// MCP3008 on SPI0: 10-bit, max clock 1.35 MHz at 2.7V.
	adcClock    = physic.MegaHertz
	adcMaxValue = 1023

	// Cap on ADC transactions per second, shared across channels.
	maxADCOpsPerSec = 500

	// Samples averaged to establish the zero-current offset.
	adcOffsetSamples = 8
)

// Linux is the real hardware driver: periph.io GPIO/PWM for the bridge
// control pins and an MCP3008 on SPI0 for current sense.
//
// There is no PortAccess implementation: hosted GPIO controllers have no
// multiplexed 8-bit output registers, so the track core uses direct pin
// writes for direction signals.
type Linux struct {
	mu      sync.Mutex
	pins    map[int]gpio.PinIO
	inputs  map[int]bool // pins already configured as inputs
	spiPort spi.PortCloser
	spiConn spi.Conn
	limiter *rate.Limiter
}

// NewLinux creates a new Linux hardware driver.
func NewLinux() *Linux {
	return &Linux{
		pins:    make(map[int]gpio.PinIO),
		inputs:  make(map[int]bool),
		limiter: rate.NewLimiter(rate.Limit(maxADCOpsPerSec), 10),
	}
}

func (d *Linux) Init(ctx context.Context) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("hal: periph init: %w", err)
	}
	return nil
}

// pin returns the cached periph handle for a BCM pin number.
func (d *Linux) pin(n int) gpio.PinIO {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pins[n]; ok {
		return p
	}
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
	if p == nil {
		slog.Error("hal: unknown GPIO pin", "pin", n)
		return nil
	}
	d.pins[n] = p
	return p
}

func (d *Linux) WritePin(pin int, high bool) {
	p := d.pin(pin)
	if p == nil {
		return
	}
	if err := p.Out(gpio.Level(high)); err != nil {
		slog.Error("hal: gpio write failed", "pin", pin, "err", err)
	}
	d.mu.Lock()
	d.inputs[pin] = false
	d.mu.Unlock()
}

func (d *Linux) ReadPin(pin int) bool {
	p := d.pin(pin)
	if p == nil {
		return false
	}
	d.mu.Lock()
	needIn := !d.inputs[pin]
	d.mu.Unlock()
	if needIn {
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			slog.Error("hal: gpio input config failed", "pin", pin, "err", err)
			return false
		}
		d.mu.Lock()
		d.inputs[pin] = true
		d.mu.Unlock()
	}
	return bool(p.Read())
}

func (d *Linux) InitADC(pin int) int {
	if err := d.openSPI(); err != nil {
		slog.Warn("hal: no ADC available", "channel", pin, "err", err)
		return 0
	}
	// Average a handful of idle samples to find the channel's resting point.
	sum := 0
	for i := 0; i < adcOffsetSamples; i++ {
		sum += d.sample(pin)
	}
	offset := sum / adcOffsetSamples
	slog.Info("hal: ADC channel initialized", "channel", pin, "offset", offset)
	return offset
}

func (d *Linux) ReadADC(pin int, fromInterrupt bool) int {
	if !fromInterrupt {
		// Reservation-style wait keeps the polling cadence under the cap
		// without ever sleeping from a preemptive context.
		_ = d.limiter.Wait(context.Background())
	} else if !d.limiter.Allow() {
		return 0
	}
	return d.sample(pin)
}

func (d *Linux) ADCMax() int { return adcMaxValue }

func (d *Linux) SetPWMDuty(pin int, duty uint8) {
	p := d.pin(pin)
	if p == nil {
		return
	}
	scaled := gpio.Duty(uint64(duty) * uint64(gpio.DutyMax) / 255)
	if err := p.PWM(scaled, dcPWMFreq); err != nil {
		slog.Error("hal: pwm write failed", "pin", pin, "duty", duty, "err", err)
	}
}

func (d *Linux) IsReal() bool { return true }

// Close releases the SPI port.
func (d *Linux) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spiPort != nil {
		_ = d.spiPort.Close()
		d.spiPort = nil
		d.spiConn = nil
	}
}

func (d *Linux) openSPI() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spiConn != nil {
		return nil
	}
	port, err := spireg.Open("")
	if err != nil {
		return fmt.Errorf("hal: spi open: %w", err)
	}
	conn, err := port.Connect(adcClock, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return fmt.Errorf("hal: spi connect: %w", err)
	}
	d.spiPort = port
	d.spiConn = conn
	return nil
}

// sample performs one MCP3008 single-ended conversion on the given channel.
func (d *Linux) sample(channel int) int {
	d.mu.Lock()
	conn := d.spiConn
	d.mu.Unlock()
	if conn == nil || channel < 0 || channel > 7 {
		return 0
	}
	// Start bit, single-ended mode + channel, then clocks for the result.
	w := []byte{0x01, byte(0x80 | channel<<4), 0x00}
	r := make([]byte, 3)
	if err := conn.Tx(w, r); err != nil {
		slog.Error("hal: adc read failed", "channel", channel, "err", err)
		return 0
	}
	return int(r[1]&0x03)<<8 | int(r[2])
}

var _ Driver = (*Linux)(nil)
