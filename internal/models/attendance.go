package models

import (
	"gorm.io/gorm"
)

// AttendanceStatus represents the attendance status of a student on a date
type AttendanceStatus string

const (
	StatusPresent  AttendanceStatus = "present"
	StatusAbsent   AttendanceStatus = "absent"
	StatusLate     AttendanceStatus = "late"
	StatusExcused  AttendanceStatus = "excused"
	StatusUnmarked AttendanceStatus = "unmarked"
)

// ValidStatus reports whether s is one of the fixed attendance statuses.
func ValidStatus(s AttendanceStatus) bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused, StatusUnmarked:
		return true
	}
	return false
}

// AttendanceRecord represents one student's status on one date in one grade
// section. Identity is the (student_id, grade_section_id, date) triple; the
// bulk-mark operation upserts on that key.
type AttendanceRecord struct {
	ID             uint             `json:"-" gorm:"primaryKey;autoIncrement"`
	StudentID      string           `json:"studentId" gorm:"column:student_id;uniqueIndex:idx_attendance_identity;not null"`
	GradeSectionID string           `json:"gradeSectionId" gorm:"column:grade_section_id;uniqueIndex:idx_attendance_identity;not null"`
	Date           string           `json:"date" gorm:"uniqueIndex:idx_attendance_identity;not null"` // ISO date YYYY-MM-DD
	Status         AttendanceStatus `json:"status" gorm:"not null;default:'unmarked'"`
	Notes          string           `json:"notes,omitempty"`
	MarkedBy       string           `json:"markedBy" gorm:"column:marked_by"`
	gorm.Model
}

// TableName specifies the table name for AttendanceRecord Model
func (AttendanceRecord) TableName() string {
	return "attendance_records"
}
