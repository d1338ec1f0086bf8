package models

import (
	"gorm.io/gorm"
)

// UserRole represents the role of a user within a school
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

// User represents a user in the system. Every user belongs to exactly one
// school; queries are scoped by SchoolID.
type User struct {
	ID             string   `json:"id" gorm:"primaryKey"`
	Username       string   `json:"username" gorm:"unique;not null"`
	Password       string   `json:"-" gorm:"not null"`
	Role           UserRole `json:"role" gorm:"not null;default:'student'"`
	SchoolID       string   `json:"schoolId" gorm:"column:school_id;index;not null"`
	GradeSectionID string   `json:"gradeSectionId" gorm:"column:grade_section_id;index"`
	gorm.Model
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}
