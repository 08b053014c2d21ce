// Package models defines the data structures for the trackd control surface.
package models

// TrackStatus is the externally visible state of one track output.
type TrackStatus struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Mode      string `json:"mode"` // "off" | "on" | "overload"
	Prog      bool   `json:"prog"`
	DC        bool   `json:"dc"` // DC throttle drive active
	Speed     int    `json:"speed"`
	Reverse   bool   `json:"reverse"`
	CurrentMA int    `json:"current_ma"`
	TripMA    int    `json:"trip_ma"`
	Overloads uint64 `json:"overloads"`
}

// State is the full system state published to API clients and the event bus.
type State struct {
	Tracks []TrackStatus `json:"tracks"`
}

// DeepCopy returns an independent copy of the state.
func (s State) DeepCopy() State {
	cp := s
	cp.Tracks = make([]TrackStatus, len(s.Tracks))
	copy(cp.Tracks, s.Tracks)
	return cp
}

// Info describes the running daemon.
type Info struct {
	Version    string `json:"version"`
	Mock       bool   `json:"mock"`
	ConfigPath string `json:"config_path"`
}
