package models

import (
	"gorm.io/gorm"
)

// Announcement represents a school-wide announcement
type Announcement struct {
	ID       string `json:"id" gorm:"primaryKey"`
	SchoolID string `json:"schoolId" gorm:"column:school_id;index;not null"`
	Title    string `json:"title" gorm:"not null"`
	Body     string `json:"body"`
	AuthorID string `json:"authorId" gorm:"column:author_id"`
	gorm.Model
}

// TableName specifies the table name for Announcement Model
func (Announcement) TableName() string {
	return "announcements"
}
