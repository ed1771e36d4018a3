// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, storage backends, backup and realtime all import types
// without depending on each other.
package types

import (
	"fmt"
	"strings"
)

// Student represents a student record in the archive.
//
// ID and CreatedAt are owned by the store: they are assigned on creation
// and never change afterwards. CreatedAt is milliseconds since the Unix
// epoch, matching what the mobile client sorts on.
type Student struct {
	ID                 string  `json:"id"                 bson:"id"`
	Name               string  `json:"name"               bson:"name"`
	MotherName         string  `json:"motherName"         bson:"motherName"`
	RegistrationNumber string  `json:"registrationNumber" bson:"registrationNumber"`
	PageNumber         string  `json:"pageNumber"         bson:"pageNumber"`
	PhotoURL           *string `json:"photoUrl,omitempty" bson:"photoUrl,omitempty"`
	CreatedAt          int64   `json:"createdAt"          bson:"createdAt"`
}

// StudentInput is the writable part of a Student, used on creation.
// There is deliberately no ID or CreatedAt field: anything the client
// sends under those keys is dropped by the JSON decoder.
//
// validate tags are checked by go-playground/validator at the HTTP edge;
// ValidateInput enforces the same rules inside the store.
type StudentInput struct {
	Name               string  `json:"name"               validate:"required,notblank"`
	MotherName         string  `json:"motherName"         validate:"required,notblank"`
	RegistrationNumber string  `json:"registrationNumber" validate:"required,notblank"`
	PageNumber         string  `json:"pageNumber"         validate:"required,notblank"`
	PhotoURL           *string `json:"photoUrl,omitempty"`
}

// StudentPatch is a partial update. A nil field was not provided and is
// left untouched; a provided required field must not be blank.
type StudentPatch struct {
	Name               *string `json:"name,omitempty"               validate:"omitnil,notblank"`
	MotherName         *string `json:"motherName,omitempty"         validate:"omitnil,notblank"`
	RegistrationNumber *string `json:"registrationNumber,omitempty" validate:"omitnil,notblank"`
	PageNumber         *string `json:"pageNumber,omitempty"         validate:"omitnil,notblank"`
	PhotoURL           *string `json:"photoUrl,omitempty"`
}

// IsEmpty reports whether the patch carries no field at all.
func (p StudentPatch) IsEmpty() bool {
	return p.Name == nil && p.MotherName == nil && p.RegistrationNumber == nil &&
		p.PageNumber == nil && p.PhotoURL == nil
}

// Apply returns s with every provided field of p copied over.
// ID and CreatedAt are never touched.
func (p StudentPatch) Apply(s Student) Student {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.MotherName != nil {
		s.MotherName = *p.MotherName
	}
	if p.RegistrationNumber != nil {
		s.RegistrationNumber = *p.RegistrationNumber
	}
	if p.PageNumber != nil {
		s.PageNumber = *p.PageNumber
	}
	if p.PhotoURL != nil {
		photo := *p.PhotoURL
		s.PhotoURL = &photo
	}
	return s
}

// NewStudent builds the stored form of in with the store-assigned
// identity fields.
func NewStudent(id string, createdAt int64, in StudentInput) Student {
	s := Student{
		ID:                 id,
		Name:               in.Name,
		MotherName:         in.MotherName,
		RegistrationNumber: in.RegistrationNumber,
		PageNumber:         in.PageNumber,
		CreatedAt:          createdAt,
	}
	if in.PhotoURL != nil {
		photo := *in.PhotoURL
		s.PhotoURL = &photo
	}
	return s
}

// Input returns the writable fields of s.
func (s Student) Input() StudentInput {
	in := StudentInput{
		Name:               s.Name,
		MotherName:         s.MotherName,
		RegistrationNumber: s.RegistrationNumber,
		PageNumber:         s.PageNumber,
	}
	if s.PhotoURL != nil {
		photo := *s.PhotoURL
		in.PhotoURL = &photo
	}
	return in
}

// Clone returns a copy of s that shares no memory with it.
func (s Student) Clone() Student {
	if s.PhotoURL != nil {
		photo := *s.PhotoURL
		s.PhotoURL = &photo
	}
	return s
}

// ValidationError lists the fields that failed validation, using their
// JSON names so the message reads the same as the API payload.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("field %s is required", f))
	}
	return strings.Join(msgs, ", ")
}

// ValidateInput checks that all four required text fields are non-empty
// after trimming. It returns a *ValidationError, or nil.
func ValidateInput(in StudentInput) error {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("name", in.Name)
	check("motherName", in.MotherName)
	check("registrationNumber", in.RegistrationNumber)
	check("pageNumber", in.PageNumber)

	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// ValidatePatch checks that no provided required field is blank.
func ValidatePatch(p StudentPatch) error {
	var blank []string
	check := func(name string, v *string) {
		if v != nil && strings.TrimSpace(*v) == "" {
			blank = append(blank, name)
		}
	}
	check("name", p.Name)
	check("motherName", p.MotherName)
	check("registrationNumber", p.RegistrationNumber)
	check("pageNumber", p.PageNumber)

	if len(blank) > 0 {
		return &ValidationError{Fields: blank}
	}
	return nil
}
