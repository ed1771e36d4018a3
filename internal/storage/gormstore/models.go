package gormstore

import "github.com/aanand-mishra/student-archive/internal/types"

// StudentModel is the GORM model for the students table.
// created_at is milliseconds since the epoch and is always set by the
// store, so GORM's automatic timestamping is switched off.
type StudentModel struct {
	ID                 string  `gorm:"primaryKey"`
	Name               string  `gorm:"not null"`
	MotherName         string  `gorm:"not null"`
	RegistrationNumber string  `gorm:"not null"`
	PageNumber         string  `gorm:"not null"`
	PhotoURL           *string `gorm:"column:photo_url"`
	CreatedAt          int64   `gorm:"not null;index;autoCreateTime:false"`
}

func (StudentModel) TableName() string { return "students" }

func studentToModel(s types.Student) StudentModel {
	return StudentModel{
		ID:                 s.ID,
		Name:               s.Name,
		MotherName:         s.MotherName,
		RegistrationNumber: s.RegistrationNumber,
		PageNumber:         s.PageNumber,
		PhotoURL:           s.PhotoURL,
		CreatedAt:          s.CreatedAt,
	}
}

func studentFromModel(m StudentModel) types.Student {
	return types.Student{
		ID:                 m.ID,
		Name:               m.Name,
		MotherName:         m.MotherName,
		RegistrationNumber: m.RegistrationNumber,
		PageNumber:         m.PageNumber,
		PhotoURL:           m.PhotoURL,
		CreatedAt:          m.CreatedAt,
	}
}

// patchColumns maps the provided fields of p to column updates.
func patchColumns(p types.StudentPatch) map[string]any {
	cols := make(map[string]any)
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.MotherName != nil {
		cols["mother_name"] = *p.MotherName
	}
	if p.RegistrationNumber != nil {
		cols["registration_number"] = *p.RegistrationNumber
	}
	if p.PageNumber != nil {
		cols["page_number"] = *p.PageNumber
	}
	if p.PhotoURL != nil {
		cols["photo_url"] = *p.PhotoURL
	}
	return cols
}
