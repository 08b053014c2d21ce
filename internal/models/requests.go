package models

// TrackUpdate is a partial update to one track. Nil fields are unchanged.
type TrackUpdate struct {
	On     *bool   `json:"on,omitempty"`
	Name   *string `json:"name,omitempty"`
	TripMA *int    `json:"trip_ma,omitempty"`
}

// ThrottleUpdate sets the DC throttle of one track. Nil fields keep the
// track's current value.
type ThrottleUpdate struct {
	Speed   *int  `json:"speed,omitempty"` // 0..127, 0 and 1 both stop
	Reverse *bool `json:"reverse,omitempty"`
}

// BrakeUpdate applies or releases a track's brake.
type BrakeUpdate struct {
	On bool `json:"on"`
}

// GlobalPower switches every track output at once.
type GlobalPower struct {
	On bool `json:"on"`
}
