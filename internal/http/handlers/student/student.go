// Package student contains all HTTP handlers related to the Student resource.
//
// HANDLER PATTERN USED HERE: THE CLOSURE / FACTORY PATTERN
// ────────────────────────────────────────────────────────
// Go's router expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// To inject dependencies we use a factory function that accepts the
// store and returns a function with exactly that signature:
//
//	router.HandleFunc("POST /api/students", student.New(store))
//
// New(store) runs ONCE at startup; the returned func runs on EVERY
// request.
//
// Store failures are logged with full detail and answered with a fixed
// message; the client never sees internal errors.
package student

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/aanand-mishra/student-archive/internal/http/middleware"
	"github.com/aanand-mishra/student-archive/internal/metrics"
	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/types"
	"github.com/aanand-mishra/student-archive/internal/utils/response"
)

var errEmptyBody = errors.New("request body is empty")

// validate is safe for concurrent use and caches struct metadata, so a
// single instance serves every request.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields under their JSON names: "motherName", not "MotherName"
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// decodeJSON reads the request body into dst. Unknown keys (including
// "id" and "createdAt") are ignored.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Errorf("field %s must be a %s", typeErr.Field, typeErr.Type.String())
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.New("request body is not valid JSON")
	}
	return err
}

// decodeAndValidate decodes and validates the body, writing a 400 and
// returning false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var validateErrs validator.ValidationErrors
		if errors.As(err, &validateErrs) {
			response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(validateErrs))
			return false
		}
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return false
	}
	return true
}

// storeFailure logs err and answers 500 with msg.
func storeFailure(w http.ResponseWriter, r *http.Request, op, msg string, err error) {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	slog.Error(msg,
		slog.String("op", op),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()))
	response.WriteJSON(w, http.StatusInternalServerError, response.Message(msg))
}

// nonNil makes an empty result encode as [] rather than null.
func nonNil(students []types.Student) []types.Student {
	if students == nil {
		return []types.Student{}
	}
	return students
}

func notFound(w http.ResponseWriter) {
	response.WriteJSON(w, http.StatusNotFound, response.Message(storage.ErrNotFound.Error()))
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/students
//
// Request body (JSON):
//
//	{ "name": "Ahmad", "motherName": "Fatima", "registrationNumber": "2023001", "pageNumber": "12" }
//
// Success response (201 Created): the stored student, with its id and
// createdAt.
//
// Error responses:
//
//	400 Bad Request  empty body, malformed JSON, or failed validation
//	500 Internal     store error
//
// ─────────────────────────────────────────────────────────────────────────────
func New(s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a student")

		var in types.StudentInput
		if !decodeAndValidate(w, r, &in) {
			return
		}

		created, err := s.CreateStudent(r.Context(), in)
		if err != nil {
			if errors.Is(err, storage.ErrValidation) {
				response.WriteJSON(w, http.StatusBadRequest, response.InvalidInput(err))
				return
			}
			storeFailure(w, r, "create", "failed to create student", err)
			return
		}

		slog.Info("student created", slog.String("id", created.ID))
		response.WriteJSON(w, http.StatusCreated, created)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /api/students
// Returns a JSON array of all students, newest first. Returns [] (not
// null) when there are no students.
// ─────────────────────────────────────────────────────────────────────────────
func GetList(s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("getting all students")

		students, err := s.ListStudents(r.Context())
		if err != nil {
			storeFailure(w, r, "list", "failed to fetch students", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, nonNil(students))
	}
}

// Search handles GET /api/students/search?q=
// A missing q is the same as an empty one and lists everything.
func Search(s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		slog.Debug("searching students", slog.String("q", q))

		students, err := s.SearchStudents(r.Context(), q)
		if err != nil {
			storeFailure(w, r, "search", "failed to search students", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, nonNil(students))
	}
}

// GetByID handles GET /api/students/{id}
func GetByID(s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Debug("getting a student", slog.String("id", id))

		student, ok, err := s.GetStudent(r.Context(), id)
		if err != nil {
			storeFailure(w, r, "get", "failed to fetch student", err)
			return
		}
		if !ok {
			notFound(w)
			return
		}

		response.WriteJSON(w, http.StatusOK, student)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PATCH /api/students/{id}
// Changes only the fields present in the body.
//
// Request body (JSON), any subset of the editable fields:
//
//	{ "pageNumber": "99" }
//
// Error responses:
//
//	400 Bad Request  empty body, malformed JSON, or a blank field
//	404 Not Found    no student with that id
//	500 Internal     store error
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("updating a student", slog.String("id", id))

		var patch types.StudentPatch
		if !decodeAndValidate(w, r, &patch) {
			return
		}

		updated, err := s.UpdateStudent(r.Context(), id, patch)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			notFound(w)
			return
		case errors.Is(err, storage.ErrValidation):
			response.WriteJSON(w, http.StatusBadRequest, response.InvalidInput(err))
			return
		case err != nil:
			storeFailure(w, r, "update", "failed to update student", err)
			return
		}

		slog.Info("student updated", slog.String("id", id))
		response.WriteJSON(w, http.StatusOK, updated)
	}
}

// Delete handles DELETE /api/students/{id}
// Answers 204 with an empty body, or 404 when nothing was removed.
func Delete(s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("deleting a student", slog.String("id", id))

		removed, err := s.DeleteStudent(r.Context(), id)
		if err != nil {
			storeFailure(w, r, "delete", "failed to delete student", err)
			return
		}
		if !removed {
			notFound(w)
			return
		}

		slog.Info("student deleted", slog.String("id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}
