package student

import (
	"net/http"

	"github.com/aanand-mishra/student-archive/internal/photos"
	"github.com/aanand-mishra/student-archive/internal/realtime"
	"github.com/aanand-mishra/student-archive/internal/storage"
)

// Deps are the collaborators the student routes need.
type Deps struct {
	Store storage.Storage
	Hub   *realtime.Hub
	// Photos is nil when photo storage is not configured.
	Photos        photos.Uploader
	MaxPhotoBytes int64
}

// Register mounts every student route on mux.
//
// Route table:
//
//	GET    /api/students               → list all students
//	POST   /api/students               → create a student
//	GET    /api/students/search?q=     → search by name, mother or reg. number
//	GET    /api/students/export        → download a JSON backup
//	POST   /api/students/import        → restore a JSON backup
//	POST   /api/students/import/sheet  → import an .xlsx or .csv sheet
//	GET    /api/students/stream        → live snapshots (server-sent events)
//	GET    /api/students/{id}          → get one student
//	PATCH  /api/students/{id}          → change some fields
//	DELETE /api/students/{id}          → delete a student
//	POST   /api/students/{id}/photo    → attach a photo
//	GET    /healthz                    → liveness
//
// ServeMux prefers the most specific pattern, so the literal segments
// (search, export, stream) win over {id}.
func Register(mux *http.ServeMux, d Deps) {
	hub := d.Hub
	if hub == nil {
		hub = realtime.NewHub()
	}

	mux.HandleFunc("GET /api/students", GetList(d.Store))
	mux.HandleFunc("POST /api/students", New(d.Store))
	mux.HandleFunc("GET /api/students/search", Search(d.Store))
	mux.HandleFunc("GET /api/students/export", Export(d.Store))
	mux.HandleFunc("POST /api/students/import", Restore(d.Store))
	mux.HandleFunc("POST /api/students/import/sheet", ImportSheet(d.Store))
	mux.HandleFunc("GET /api/students/stream", Stream(d.Store, hub))
	mux.HandleFunc("GET /api/students/{id}", GetByID(d.Store))
	mux.HandleFunc("PATCH /api/students/{id}", Update(d.Store))
	mux.HandleFunc("DELETE /api/students/{id}", Delete(d.Store))
	mux.HandleFunc("POST /api/students/{id}/photo", UploadPhoto(d.Store, d.Photos, d.MaxPhotoBytes))
	mux.HandleFunc("GET /healthz", Health)
}

// Health reports that the process is serving requests.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
