// Package api implements the HTTP REST API for trackd.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/open-rail/trackd-go/internal/models"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl   Controller
	events EventBus
}

// Controller is the interface the handlers use to interact with the system state.
type Controller interface {
	State() models.State
	Info() models.Info
	SetTrackPower(id string, on bool) (models.State, *models.AppError)
	SetAllPower(on bool) models.State
	SetThrottle(id string, upd models.ThrottleUpdate) (models.State, *models.AppError)
	SetBrake(id string, on bool) (models.State, *models.AppError)
	UpdateTrack(id string, upd models.TrackUpdate) (models.State, *models.AppError)
	EmergencyStop() models.State
}

// EventBus is the interface for subscribing to state change events.
type EventBus interface {
	Subscribe(id string) <-chan models.State
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if appErr, ok := err.(*models.AppError); ok {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}

// trackID reads the track path parameter.
func trackID(r *http.Request) string {
	return chi.URLParam(r, "tid")
}
