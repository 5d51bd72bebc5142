package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/storyforge-ai/storyforge/internal/events"
)

// heartbeatInterval keeps idle SSE connections alive through proxies that
// drop quiet streams.
const heartbeatInterval = 15 * time.Second

// SSEHandler streams pipeline and gateway events to the client using
// Server-Sent Events. An optional "types" query parameter limits the stream
// to a comma-separated set of event types.
func SSEHandler(bus *events.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			jsonError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		wanted := parseTypeFilter(r.URL.Query().Get("types"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		sub := bus.Subscribe(64)
		defer bus.Unsubscribe(sub)

		_, _ = fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"ok\"}\n\n")
		flusher.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				// SSE comment line, ignored by clients.
				_, _ = fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case e := <-sub.C:
				if wanted != nil && !wanted[string(e.Type)] {
					continue
				}
				_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, e.JSON())
				flusher.Flush()
			}
		}
	}
}

// parseTypeFilter returns nil when every event type should be streamed.
func parseTypeFilter(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	wanted := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			wanted[t] = true
		}
	}
	if len(wanted) == 0 {
		return nil
	}
	return wanted
}
