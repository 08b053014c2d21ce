package hal

import (
	"context"
	"sync"
)

type portRef struct {
	port PortID
	mask uint8
}

// Mock is a thread-safe in-memory hardware driver for testing and --mock
// runs. Pin levels, ADC samples and PWM duties are plain maps; tests
// script inputs with the Set* helpers and inspect outputs with PinLevel,
// Duty and Port.
//
// Pins mapped onto a simulated 8-bit port with MapPort behave like AVR
// PORTx bits: their level lives in the port register image and the mock
// implements PortAccess for them.
type Mock struct {
	mu      sync.Mutex
	pins    map[int]bool
	duty    map[int]uint8
	adc     map[int]int
	adcOff  map[int]int
	adcMax  int
	ports   map[PortID]uint8
	pinPort map[int]portRef
}

// NewMock creates a new mock driver with a 10-bit ADC and no port mapping.
func NewMock() *Mock {
	return &Mock{
		pins:    make(map[int]bool),
		duty:    make(map[int]uint8),
		adc:     make(map[int]int),
		adcOff:  make(map[int]int),
		adcMax:  1023,
		ports:   make(map[PortID]uint8),
		pinPort: make(map[int]portRef),
	}
}

// MapPort assigns up to eight pins to a simulated output port. Bit i of
// the port register is pins[i]. Mapped pins resolve through PortAccess.
func (m *Mock) MapPort(port PortID, pins ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, pin := range pins {
		m.pinPort[pin] = portRef{port: port, mask: 1 << uint(i)}
	}
	if _, ok := m.ports[port]; !ok {
		m.ports[port] = 0
	}
}

func (m *Mock) Init(ctx context.Context) error { return nil }

func (m *Mock) WritePin(pin int, high bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPinLocked(pin, high)
}

func (m *Mock) setPinLocked(pin int, high bool) {
	if ref, ok := m.pinPort[pin]; ok {
		if high {
			m.ports[ref.port] |= ref.mask
		} else {
			m.ports[ref.port] &^= ref.mask
		}
		return
	}
	m.pins[pin] = high
}

func (m *Mock) ReadPin(pin int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref, ok := m.pinPort[pin]; ok {
		return m.ports[ref.port]&ref.mask != 0
	}
	return m.pins[pin]
}

func (m *Mock) InitADC(pin int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adcOff[pin]
}

func (m *Mock) ReadADC(pin int, fromInterrupt bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adc[pin]
}

func (m *Mock) ADCMax() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adcMax
}

func (m *Mock) SetPWMDuty(pin int, duty uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duty[pin] = duty
}

func (m *Mock) IsReal() bool { return false }

// ResolvePin implements PortAccess for pins assigned with MapPort.
func (m *Mock) ResolvePin(pin int) (PortID, uint8, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.pinPort[pin]
	return ref.port, ref.mask, ok
}

func (m *Mock) ReadPort(port PortID) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ports[port]
}

func (m *Mock) WritePort(port PortID, value uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ports[port] = value
}

// SetPin drives an input pin level from the test (fault lines and the like).
func (m *Mock) SetPin(pin int, high bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPinLocked(pin, high)
}

// SetADC scripts the next raw sample returned for an ADC channel.
func (m *Mock) SetADC(pin, raw int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adc[pin] = raw
}

// SetADCOffset scripts the zero-current offset InitADC reports for a channel.
func (m *Mock) SetADCOffset(pin, offset int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adcOff[pin] = offset
}

// SetADCMax overrides the maximum raw ADC value (default 1023).
func (m *Mock) SetADCMax(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adcMax = max
}

// PinLevel returns the current level of a pin for assertions.
func (m *Mock) PinLevel(pin int) bool {
	return m.ReadPin(pin)
}

// Duty returns the last PWM duty written to a pin.
func (m *Mock) Duty(pin int) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duty[pin]
}

// Port returns the current register image of a simulated port.
func (m *Mock) Port(port PortID) uint8 {
	return m.ReadPort(port)
}

var (
	_ Driver     = (*Mock)(nil)
	_ PortAccess = (*Mock)(nil)
)
