package api

import (
	"encoding/json"
	"net/http"

	"github.com/open-rail/trackd-go/internal/models"
)

func (h *Handlers) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

func (h *Handlers) getTracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": h.ctrl.State().Tracks})
}

func (h *Handlers) getTrack(w http.ResponseWriter, r *http.Request) {
	id := trackID(r)
	for _, tr := range h.ctrl.State().Tracks {
		if tr.ID == id {
			writeJSON(w, http.StatusOK, tr)
			return
		}
	}
	writeError(w, models.ErrNotFound("no track "+id))
}

func (h *Handlers) setTrack(w http.ResponseWriter, r *http.Request) {
	var upd models.TrackUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	state, appErr := h.ctrl.UpdateTrack(trackID(r), upd)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) setThrottle(w http.ResponseWriter, r *http.Request) {
	var upd models.ThrottleUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	state, appErr := h.ctrl.SetThrottle(trackID(r), upd)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) setBrake(w http.ResponseWriter, r *http.Request) {
	var req models.BrakeUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	state, appErr := h.ctrl.SetBrake(trackID(r), req.On)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) setPower(w http.ResponseWriter, r *http.Request) {
	var req models.GlobalPower
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.SetAllPower(req.On))
}

func (h *Handlers) emergencyStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.EmergencyStop())
}

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Info())
}
