package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and returns the main HTTP router.
func NewRouter(ctrl Controller, bus EventBus) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{ctrl: ctrl, events: bus}

	// System state
	r.Get("/api", h.getState)
	r.Get("/api/", h.getState)

	// Tracks
	r.Get("/api/tracks", h.getTracks)
	r.Get("/api/tracks/{tid}", h.getTrack)
	r.Patch("/api/tracks/{tid}", h.setTrack)
	r.Post("/api/tracks/{tid}/throttle", h.setThrottle)
	r.Post("/api/tracks/{tid}/brake", h.setBrake)

	// Global power and emergency stop
	r.Post("/api/power", h.setPower)
	r.Post("/api/estop", h.emergencyStop)

	// System
	r.Get("/api/info", h.getInfo)

	// SSE
	r.Get("/api/subscribe", h.sseEvents)

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
