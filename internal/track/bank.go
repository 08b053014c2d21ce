package track

import (
	"sync"

	"github.com/open-rail/trackd-go/internal/hal"
)

// portShadow is the committed register image of one shadow-managed output
// port. Shared by reference between every channel whose signal pin lives on
// that port; never copied.
type portShadow struct {
	value uint8
}

// Bank groups the channels that can share output ports and therefore must
// share one exclusion domain. Its mutex stands in for interrupt masking on
// hosted targets: every access to a shadow-managed port, and every single
// register write the original firmware brackets with noInterrupts(), runs
// with the bank locked.
//
// Critical sections are kept to a handful of register operations; nothing
// inside them blocks.
type Bank struct {
	mu             sync.Mutex
	shadows        map[hal.PortID]*portShadow
	commonFaultPin bool
}

// NewBank creates a channel bank. commonFaultPin declares that a fault
// line, where present, is physically shared across every channel in the
// bank rather than dedicated per channel. It changes how a fault-pin trip
// is interpreted and must be set once, consistently, for all channels.
func NewBank(commonFaultPin bool) *Bank {
	return &Bank{
		shadows:        make(map[hal.PortID]*portShadow),
		commonFaultPin: commonFaultPin,
	}
}

// CommonFaultPin reports whether fault lines are shared across channels.
func (b *Bank) CommonFaultPin() bool { return b.commonFaultPin }

func (b *Bank) lock()   { b.mu.Lock() }
func (b *Bank) unlock() { b.mu.Unlock() }

// shadowFor returns the shadow for a port, creating it on first discovery.
// Caller need not hold the bank lock; registration happens at construction
// time before any concurrent writer exists.
func (b *Bank) shadowFor(port hal.PortID) *portShadow {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sh, ok := b.shadows[port]; ok {
		return sh
	}
	sh := &portShadow{}
	b.shadows[port] = sh
	return sh
}

// commitShadowBit performs the full shadow write protocol for one bit:
// refresh the shadow from the live register, mutate only the target bit,
// write the whole image back. Caller must hold the bank lock.
func commitShadowBit(pa hal.PortAccess, sh *portShadow, port hal.PortID, mask uint8, high bool) {
	sh.value = pa.ReadPort(port)
	if high {
		sh.value |= mask
	} else {
		sh.value &^= mask
	}
	pa.WritePort(port, sh.value)
}

// WriteSharedBit is the entry point for preemptive-context writers (the
// waveform generator's timer callback) that touch a bit on a port some
// channel's signal pin also lives on. It follows the same shadow protocol
// as the channels so interleaved writers never clobber each other's bits.
func (b *Bank) WriteSharedBit(pa hal.PortAccess, port hal.PortID, mask uint8, high bool) {
	sh := b.shadowFor(port)
	b.mu.Lock()
	commitShadowBit(pa, sh, port, mask, high)
	b.mu.Unlock()
}
