package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"PropDashboards/internal/domain"
)

// eventStream writes progress events as Server-Sent Events.
type eventStream struct {
	mu  sync.Mutex
	w   http.ResponseWriter
	ctl *http.ResponseController
}

func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	ctl := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := ctl.Flush(); err != nil {
		return nil, fmt.Errorf("streaming unsupported: %w", err)
	}
	return &eventStream{w: w, ctl: ctl}, nil
}

// send writes one `data: {json}` frame. Write errors mean the client went
// away; the request context cancels the batch in that case.
func (e *eventStream) send(ev domain.Progress) {
	encoded, err := json.Marshal(ev)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", encoded); err != nil {
		return
	}
	_ = e.ctl.Flush()
}
