package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/open-rail/trackd-go/internal/models"
)

// sseEvents streams track state as Server-Sent Events. Clients get the
// current state as their first event, then every published change; a
// dropped snapshot is recovered by the next one since each carries the
// full state.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id := uuid.New().String()
	ch := h.events.Subscribe(id)
	defer h.events.Unsubscribe(id)

	writeEvent(w, flusher, h.ctrl.State())

	for {
		select {
		case state, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, flusher, state)
		case <-r.Context().Done():
			return
		}
	}
}

// writeEvent frames one state snapshot as an SSE data event and flushes
// it to the client.
func writeEvent(w io.Writer, flusher http.Flusher, state models.State) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
