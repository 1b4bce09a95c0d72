package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"bureau.org/internal/domain"
	"bureau.org/internal/stream"
)

// events streams case file changes as Server-Sent Events. Assessor and
// witness names in the payload are disclosed per the subscribing actor.
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx)
	v := a.viewerFor(ctx, caller(r))

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for evt := range ch {
		payload, err := json.Marshal(v.event(evt))
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

func (v *viewer) event(evt stream.Event) stream.Event {
	switch data := evt.Data.(type) {
	case domain.Assessment:
		evt.Data = v.assessment(data)
	case domain.Person:
		evt.Data = v.person(data)
	case domain.Organization:
		evt.Data = v.organization(data)
	case domain.IncidentEntry:
		evt.Data = v.incident(data)
	case domain.Hearing:
		evt.Data = v.hearing(data)
	case domain.Response:
		data.WitnessName = v.name(data.WitnessID, data.WitnessName)
		evt.Data = data
	}
	return evt
}
