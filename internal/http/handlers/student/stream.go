package student

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aanand-mishra/student-archive/internal/realtime"
	"github.com/aanand-mishra/student-archive/internal/storage"
)

// Stream handles GET /api/students/stream
//
// It is a server-sent event stream of "snapshot" events. The current list
// is sent first, then a new snapshot after every change, until the client
// goes away. Each event carries the whole list.
func Stream(s storage.Storage, hub *realtime.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)

		// subscribe before reading, so no change falls between the two
		updates, cancel := hub.Subscribe()
		defer cancel()

		snap, err := realtime.Current(r.Context(), s)
		if err != nil {
			storeFailure(w, r, "list", "failed to fetch students", err)
			return
		}

		// the server's write timeout would cut the stream
		_ = rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		slog.Debug("stream opened", slog.Int("subscribers", hub.Subscribers()))
		defer slog.Debug("stream closed")

		for {
			if err := writeEvent(w, snap); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}

			var ok bool
			select {
			case <-r.Context().Done():
				return
			case snap, ok = <-updates:
				if !ok {
					return
				}
			}
		}
	}
}

func writeEvent(w io.Writer, snap realtime.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
	return err
}
