// Package controller implements the trackd state machine: it owns the
// track output channels, runs the polling loop that drives overload
// protection, and is the single entry point for power and throttle
// commands.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/open-rail/trackd-go/internal/config"
	"github.com/open-rail/trackd-go/internal/events"
	"github.com/open-rail/trackd-go/internal/hal"
	"github.com/open-rail/trackd-go/internal/models"
	"github.com/open-rail/trackd-go/internal/track"
)

// Version is the daemon version reported by the info endpoints.
const Version = "0.3.0"

// pollInterval is the host scheduler cadence. Each channel's own adaptive
// sample delay decides whether a given tick does any work.
const pollInterval = 10 * time.Millisecond

type trackEntry struct {
	id     string
	name   string
	tripMA int
	ch     *track.Channel
}

// Controller is the central state machine for trackd. All mutations go
// through its mutex; the track channels themselves are not safe for
// concurrent use.
type Controller struct {
	mu     sync.Mutex
	drv    hal.Driver
	bank   *track.Bank
	tracks []*trackEntry
	byID   map[string]*trackEntry
	store  config.Store
	bus    *events.Bus
}

// New creates a controller from the stored configuration. resetSink, which
// may be nil, is handed to programming-track channels so power-on can
// clear the waveform generator's accumulated reset-packet state.
func New(drv hal.Driver, store config.Store, bus *events.Bus, resetSink track.ResetSink) (*Controller, error) {
	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}

	c := &Controller{
		drv:   drv,
		bank:  track.NewBank(cfg.CommonFaultPin),
		store: store,
		bus:   bus,
		byID:  make(map[string]*trackEntry),
	}

	for i, tc := range cfg.Tracks {
		tcfg := track.Config{
			ID:          byte(i),
			PowerPin:    tc.PowerPin,
			SignalPin:   tc.SignalPin,
			SignalPin2:  pinOrUnused(tc.SignalPin2),
			BrakePin:    pinOrUnused(tc.BrakePin),
			CurrentPin:  pinOrUnused(tc.CurrentPin),
			FaultPin:    pinOrUnused(tc.FaultPin),
			SenseFactor: tc.SenseFactor,
			TripMA:      tc.TripMA,
			Prog:        tc.Prog,
		}
		if tc.Prog {
			tcfg.ResetSink = resetSink
		}
		entry := &trackEntry{
			id:     tc.ID,
			name:   tc.Name,
			tripMA: tc.TripMA,
			ch:     track.New(tcfg, drv, c.bank),
		}
		c.tracks = append(c.tracks, entry)
		c.byID[entry.id] = entry
	}

	slog.Info("controller: tracks configured",
		"count", len(c.tracks),
		"common_fault_pin", cfg.CommonFaultPin,
	)
	return c, nil
}

func pinOrUnused(p *int) int {
	if p == nil {
		return track.UnusedPin
	}
	return *p
}

// Run drives the overload monitors until ctx is cancelled. Each tick walks
// every channel; the channels' adaptive sample delays gate the real work.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll()
		}
	}
}

func (c *Controller) poll() {
	c.mu.Lock()
	changed := false
	for _, e := range c.tracks {
		prev := e.ch.Power()
		e.ch.CheckPowerOverload(e.ch.Prog())
		if e.ch.Power() != prev {
			changed = true
		}
	}
	var state models.State
	if changed {
		state = c.stateLocked()
	}
	c.mu.Unlock()
	if changed {
		c.bus.Publish(state)
	}
}

// State returns the current system state.
func (c *Controller) State() models.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() models.State {
	st := models.State{Tracks: make([]models.TrackStatus, 0, len(c.tracks))}
	for _, e := range c.tracks {
		code, active := e.ch.DCState()
		ts := models.TrackStatus{
			ID:        e.id,
			Name:      e.name,
			Mode:      e.ch.Power().String(),
			Prog:      e.ch.Prog(),
			DC:        active,
			CurrentMA: e.ch.Raw2MA(e.ch.LastCurrentRaw()),
			TripMA:    e.tripMA,
			Overloads: e.ch.Overloads(),
		}
		if active {
			ts.Speed = int(code & 0x7F)
			ts.Reverse = code&0x80 == 0
		}
		st.Tracks = append(st.Tracks, ts)
	}
	return st
}

// Info describes the running daemon.
func (c *Controller) Info() models.Info {
	return models.Info{
		Version:    Version,
		Mock:       !c.drv.IsReal(),
		ConfigPath: c.store.Path(),
	}
}

// SetTrackPower switches one track output on or off.
func (c *Controller) SetTrackPower(id string, on bool) (models.State, *models.AppError) {
	c.mu.Lock()
	e, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return models.State{}, models.ErrNotFound("no track " + id)
	}
	mode := track.PowerOff
	if on {
		mode = track.PowerOn
	}
	e.ch.SetPower(mode)
	state := c.stateLocked()
	c.mu.Unlock()

	slog.Info("controller: track power", "track", id, "on", on)
	c.bus.Publish(state)
	return state, nil
}

// SetAllPower switches every track output at once.
func (c *Controller) SetAllPower(on bool) models.State {
	c.mu.Lock()
	mode := track.PowerOff
	if on {
		mode = track.PowerOn
	}
	for _, e := range c.tracks {
		e.ch.SetPower(mode)
	}
	state := c.stateLocked()
	c.mu.Unlock()

	slog.Info("controller: global power", "on", on)
	c.bus.Publish(state)
	return state
}

// SetThrottle updates the DC throttle of one track. Omitted fields keep
// the track's current speed or direction.
func (c *Controller) SetThrottle(id string, upd models.ThrottleUpdate) (models.State, *models.AppError) {
	c.mu.Lock()
	e, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return models.State{}, models.ErrNotFound("no track " + id)
	}
	if upd.Speed != nil && (*upd.Speed < 0 || *upd.Speed > 127) {
		c.mu.Unlock()
		return models.State{}, models.ErrBadRequest("speed must be 0..127")
	}

	code, _ := e.ch.DCState()
	speed := int(code & 0x7F)
	reverse := code&0x80 == 0
	if upd.Speed != nil {
		speed = *upd.Speed
	}
	if upd.Reverse != nil {
		reverse = *upd.Reverse
	}
	code = byte(speed)
	if !reverse {
		code |= 0x80
	}
	e.ch.SetDCSignal(code)
	state := c.stateLocked()
	c.mu.Unlock()

	slog.Debug("controller: throttle", "track", id, "speed", speed, "reverse", reverse)
	c.bus.Publish(state)
	return state, nil
}

// SetBrake applies or releases one track's brake.
func (c *Controller) SetBrake(id string, on bool) (models.State, *models.AppError) {
	c.mu.Lock()
	e, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return models.State{}, models.ErrNotFound("no track " + id)
	}
	e.ch.SetBrake(on, false)
	state := c.stateLocked()
	c.mu.Unlock()

	c.bus.Publish(state)
	return state, nil
}

// EmergencyStop commands an immediate stop on every DC-driven track while
// preserving each track's direction.
func (c *Controller) EmergencyStop() models.State {
	c.mu.Lock()
	for _, e := range c.tracks {
		if code, active := e.ch.DCState(); active {
			e.ch.SetDCSignal(code&0x80 | 1)
		}
	}
	state := c.stateLocked()
	c.mu.Unlock()

	slog.Warn("controller: emergency stop")
	c.bus.Publish(state)
	return state
}

// UpdateTrack applies a partial track update: power, display name, or trip
// current. Name and trip changes are persisted to the config store.
func (c *Controller) UpdateTrack(id string, upd models.TrackUpdate) (models.State, *models.AppError) {
	c.mu.Lock()
	e, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return models.State{}, models.ErrNotFound("no track " + id)
	}
	persist := false
	if upd.Name != nil {
		e.name = *upd.Name
		persist = true
	}
	if upd.TripMA != nil {
		if *upd.TripMA <= 0 {
			c.mu.Unlock()
			return models.State{}, models.ErrBadRequest("trip_ma must be positive")
		}
		e.tripMA = *upd.TripMA
		e.ch.SetTripCurrent(*upd.TripMA)
		persist = true
	}
	if upd.On != nil {
		mode := track.PowerOff
		if *upd.On {
			mode = track.PowerOn
		}
		e.ch.SetPower(mode)
	}
	state := c.stateLocked()
	c.mu.Unlock()

	if persist {
		c.persistConfig()
	}
	c.bus.Publish(state)
	return state, nil
}

// ApplyConfig folds an externally reloaded configuration into the running
// channels. Only names and trip currents can change live; pin assignments
// require a restart.
func (c *Controller) ApplyConfig(cfg *config.Config) {
	c.mu.Lock()
	for _, tc := range cfg.Tracks {
		e, ok := c.byID[tc.ID]
		if !ok {
			slog.Warn("controller: reload added unknown track, restart required", "track", tc.ID)
			continue
		}
		e.name = tc.Name
		if tc.TripMA > 0 && tc.TripMA != e.tripMA {
			e.tripMA = tc.TripMA
			e.ch.SetTripCurrent(tc.TripMA)
			slog.Info("controller: trip current reloaded", "track", tc.ID, "trip_ma", tc.TripMA)
		}
	}
	state := c.stateLocked()
	c.mu.Unlock()
	c.bus.Publish(state)
}

// persistConfig writes the current names and trip currents back through
// the store, preserving the pin configuration on disk.
func (c *Controller) persistConfig() {
	cfg, err := c.store.Load()
	if err != nil {
		slog.Warn("controller: config reload for persist failed", "err", err)
		return
	}
	c.mu.Lock()
	for i := range cfg.Tracks {
		if e, ok := c.byID[cfg.Tracks[i].ID]; ok {
			cfg.Tracks[i].Name = e.name
			cfg.Tracks[i].TripMA = e.tripMA
		}
	}
	c.mu.Unlock()
	if err := c.store.Save(cfg); err != nil {
		slog.Warn("controller: config save failed", "err", err)
	}
}
