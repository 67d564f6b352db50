package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const keepAliveInterval = 25 * time.Second

// HandleSessionEvents streams session snapshots as server-sent events. The
// first event is the current snapshot. Intermediate snapshots may be skipped
// for slow readers; the latest is always delivered.
func HandleSessionEvents(sessions SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		subscriber := uuid.NewString()
		log.Printf("server: session stream %s opened", subscriber)
		defer log.Printf("server: session stream %s closed", subscriber)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		updates := sessions.Watch(r.Context())
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				data, err := json.Marshal(newSessionView(snap, nil))
				if err != nil {
					log.Printf("server: encode session event: %v", err)
					return
				}
				if _, err := fmt.Fprintf(w, "id: %d\nevent: session\ndata: %s\n\n", snap.Seq, data); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}
