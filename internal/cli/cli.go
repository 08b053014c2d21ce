// Package cli implements the line-oriented serial command channel.
// Commands are framed in angle brackets, e.g. <1 A> to power track A or
// <t A 40 1> to run it forward at speed 40, matching the classic
// command-station console syntax throttles already speak.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/open-rail/trackd-go/internal/models"
)

// Controller is the subset of the controller the command channel drives.
type Controller interface {
	State() models.State
	Info() models.Info
	SetTrackPower(id string, on bool) (models.State, *models.AppError)
	SetAllPower(on bool) models.State
	SetThrottle(id string, upd models.ThrottleUpdate) (models.State, *models.AppError)
	SetBrake(id string, on bool) (models.State, *models.AppError)
	EmergencyStop() models.State
}

// errReply is the generic failure frame; throttles only need to know the
// command was rejected.
const errReply = "<X>"

// Execute runs one framed command (without the surrounding brackets) and
// returns the reply frame(s).
func Execute(ctrl Controller, cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return errReply
	}

	switch fields[0] {
	case "1", "0":
		return execPower(ctrl, fields)
	case "c":
		return execCurrent(ctrl)
	case "s":
		return execStatus(ctrl)
	case "t":
		return execThrottle(ctrl, fields)
	case "b":
		return execBrake(ctrl, fields)
	case "!":
		ctrl.EmergencyStop()
		return "<!>"
	default:
		return errReply
	}
}

// resolveTrack maps a command token to a track ID. Besides literal IDs the
// aliases MAIN (first non-programming track) and PROG (first programming
// track) are accepted.
func resolveTrack(ctrl Controller, token string) (string, bool) {
	st := ctrl.State()
	switch strings.ToUpper(token) {
	case "MAIN":
		for _, tr := range st.Tracks {
			if !tr.Prog {
				return tr.ID, true
			}
		}
		return "", false
	case "PROG":
		for _, tr := range st.Tracks {
			if tr.Prog {
				return tr.ID, true
			}
		}
		return "", false
	}
	for _, tr := range st.Tracks {
		if tr.ID == token {
			return tr.ID, true
		}
	}
	return "", false
}

func execPower(ctrl Controller, fields []string) string {
	on := fields[0] == "1"
	if len(fields) == 1 {
		ctrl.SetAllPower(on)
		return fmt.Sprintf("<p%s>", fields[0])
	}
	id, ok := resolveTrack(ctrl, fields[1])
	if !ok {
		return errReply
	}
	if _, appErr := ctrl.SetTrackPower(id, on); appErr != nil {
		return errReply
	}
	return fmt.Sprintf("<p%s %s>", fields[0], id)
}

// execCurrent reports the last current sample of every track in milliamps.
func execCurrent(ctrl Controller) string {
	var b strings.Builder
	for _, tr := range ctrl.State().Tracks {
		fmt.Fprintf(&b, "<a %s %d>", tr.ID, tr.CurrentMA)
	}
	return b.String()
}

func execStatus(ctrl Controller) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<iTrackd %s>", ctrl.Info().Version)
	for _, tr := range ctrl.State().Tracks {
		on := 0
		if tr.Mode == "on" {
			on = 1
		}
		fmt.Fprintf(&b, "<p%d %s>", on, tr.ID)
	}
	return b.String()
}

// execThrottle handles <t TRACK SPEED DIR>, DIR 1 forward / 0 reverse.
func execThrottle(ctrl Controller, fields []string) string {
	if len(fields) != 4 {
		return errReply
	}
	id, ok := resolveTrack(ctrl, fields[1])
	if !ok {
		return errReply
	}
	speed, err := strconv.Atoi(fields[2])
	if err != nil {
		return errReply
	}
	dir, err := strconv.Atoi(fields[3])
	if err != nil || (dir != 0 && dir != 1) {
		return errReply
	}
	reverse := dir == 0
	if _, appErr := ctrl.SetThrottle(id, models.ThrottleUpdate{Speed: &speed, Reverse: &reverse}); appErr != nil {
		return errReply
	}
	return fmt.Sprintf("<T %s %d %d>", id, speed, dir)
}

func execBrake(ctrl Controller, fields []string) string {
	if len(fields) != 3 || (fields[2] != "0" && fields[2] != "1") {
		return errReply
	}
	id, ok := resolveTrack(ctrl, fields[1])
	if !ok {
		return errReply
	}
	if _, appErr := ctrl.SetBrake(id, fields[2] == "1"); appErr != nil {
		return errReply
	}
	return fmt.Sprintf("<B %s %s>", id, fields[2])
}
