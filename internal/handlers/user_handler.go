package handlers

import (
	"net/http"

	"school-attendance-api/internal/database"
	"school-attendance-api/internal/models"

	"github.com/gin-gonic/gin"
)

type UserResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Role           string `json:"role"`
	GradeSectionID string `json:"gradeSectionId,omitempty"`
}

// GetAllUsers returns all users of the caller's school (protected)
// GET /api/users
func GetAllUsers(c *gin.Context) {
	schoolID := c.GetString("school_id")

	var users []models.User
	if err := database.GetDB().Where("school_id = ?", schoolID).Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	// Map to safe response payload
	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, UserResponse{
			ID:             u.ID,
			Username:       u.Username,
			Role:           string(u.Role),
			GradeSectionID: u.GradeSectionID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"count": len(resp),
	})
}

// GetGradeSections returns the grade sections of the caller's school (protected)
// GET /api/grade-sections
func GetGradeSections(c *gin.Context) {
	schoolID := c.GetString("school_id")

	var sections []models.GradeSection
	if err := database.GetDB().Where("school_id = ?", schoolID).Find(&sections).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch grade sections"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"gradeSections": sections,
		"count":         len(sections),
	})
}
