package models

import (
	"gorm.io/gorm"
)

// GradeSection represents a grade/section pairing (e.g. "Grade 7 - B").
// TeacherID is the teacher of record, the only non-admin user allowed to mark
// attendance for the section.
type GradeSection struct {
	ID        string `json:"id" gorm:"primaryKey"`
	Name      string `json:"name" gorm:"not null"`
	SchoolID  string `json:"schoolId" gorm:"column:school_id;index;not null"`
	TeacherID string `json:"teacherId" gorm:"column:teacher_id;index"`
	gorm.Model
}

// TableName specifies the table name for GradeSection Model
func (GradeSection) TableName() string {
	return "grade_sections"
}
