package student

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aanand-mishra/student-archive/internal/photos"
	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/types"
	"github.com/aanand-mishra/student-archive/internal/utils/response"
)

// UploadPhoto handles POST /api/students/{id}/photo
//
// The image comes in the multipart field "photo". It is stored through
// up and the student's photoUrl is set to the returned URL. A nil
// uploader means photo storage is not configured and every call is 501.
func UploadPhoto(s storage.Storage, up photos.Uploader, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if up == nil {
			response.WriteJSON(w, http.StatusNotImplemented,
				response.Message("photo storage is not configured"))
			return
		}

		id := r.PathValue("id")
		slog.Info("uploading a photo", slog.String("id", id))

		// multipart framing needs some room on top of the image itself
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.Message("cannot read upload"))
			return
		}
		f, header, err := r.FormFile("photo")
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.Message("field photo is required"))
			return
		}
		defer f.Close()

		if header.Size > maxBytes {
			response.WriteJSON(w, http.StatusBadRequest, response.Message("photo is too large"))
			return
		}

		contentType, err := sniff(f, header.Header.Get("Content-Type"))
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.Message("cannot read upload"))
			return
		}

		_, ok, err := s.GetStudent(r.Context(), id)
		if err != nil {
			storeFailure(w, r, "get", "failed to fetch student", err)
			return
		}
		if !ok {
			notFound(w)
			return
		}

		key, err := photos.ObjectKey(id, contentType)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		url, err := up.Upload(r.Context(), key, f, header.Size, contentType)
		if err != nil {
			storeFailure(w, r, "photo_upload", "failed to store photo", err)
			return
		}

		updated, err := s.UpdateStudent(r.Context(), id, types.StudentPatch{PhotoURL: &url})
		switch {
		case errors.Is(err, storage.ErrNotFound):
			notFound(w)
			return
		case err != nil:
			storeFailure(w, r, "update", "failed to update student", err)
			return
		}

		slog.Info("photo stored", slog.String("id", id), slog.String("key", key))
		response.WriteJSON(w, http.StatusOK, updated)
	}
}

// sniff returns the declared content type, or detects one from the first
// bytes when the client sent none. f is rewound afterwards.
func sniff(f io.ReadSeeker, declared string) (string, error) {
	declared, _, _ = strings.Cut(declared, ";")
	declared = strings.TrimSpace(strings.ToLower(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
