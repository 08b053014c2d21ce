// Package config handles loading and saving the trackd track configuration.
package config

// TrackConfig describes one track output channel. Negative power_pin or
// brake_pin values mean the physical line is active-low. Optional pins are
// omitted (nil) when the hardware is absent.
type TrackConfig struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PowerPin    int     `json:"power_pin"`
	SignalPin   int     `json:"signal_pin"`
	SignalPin2  *int    `json:"signal_pin2,omitempty"`
	BrakePin    *int    `json:"brake_pin,omitempty"`
	CurrentPin  *int    `json:"current_pin,omitempty"` // ADC channel
	FaultPin    *int    `json:"fault_pin,omitempty"`
	SenseFactor float64 `json:"sense_factor"`
	TripMA      int     `json:"trip_ma"`
	Prog        bool    `json:"prog,omitempty"`
}

// Config is the persisted trackd configuration.
type Config struct {
	// CommonFaultPin declares that fault-sense lines, where present, are
	// physically shared across all tracks rather than dedicated per track.
	CommonFaultPin bool          `json:"common_fault_pin"`
	Tracks         []TrackConfig `json:"tracks"`
}

// DeepCopy returns an independent copy of the configuration.
func (c Config) DeepCopy() Config {
	cp := c
	cp.Tracks = make([]TrackConfig, len(c.Tracks))
	for i, tr := range c.Tracks {
		cp.Tracks[i] = tr
		cp.Tracks[i].SignalPin2 = copyIntPtr(tr.SignalPin2)
		cp.Tracks[i].BrakePin = copyIntPtr(tr.BrakePin)
		cp.Tracks[i].CurrentPin = copyIntPtr(tr.CurrentPin)
		cp.Tracks[i].FaultPin = copyIntPtr(tr.FaultPin)
	}
	return cp
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func intPtr(v int) *int { return &v }

// DefaultConfig returns a two-track configuration matching the classic
// dual-output motor shield wiring: track A drives the main line, track B
// the programming track.
func DefaultConfig() Config {
	return Config{
		Tracks: []TrackConfig{
			{
				ID:          "A",
				Name:        "Main",
				PowerPin:    3,
				SignalPin:   12,
				BrakePin:    intPtr(9),
				CurrentPin:  intPtr(0),
				SenseFactor: 2.99,
				TripMA:      1500,
			},
			{
				ID:          "B",
				Name:        "Prog",
				PowerPin:    11,
				SignalPin:   13,
				BrakePin:    intPtr(10),
				CurrentPin:  intPtr(1),
				SenseFactor: 2.99,
				TripMA:      1500,
				Prog:        true,
			},
		},
	}
}
