package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"school-attendance-api/internal/cache"
	"school-attendance-api/internal/database"
	"school-attendance-api/internal/models"

	"github.com/gin-gonic/gin"
)

// AnnouncementHandler serves the announcements listing (a near-static,
// cacheable view) and creation, which invalidates the cached listings.
type AnnouncementHandler struct {
	Cache cache.Store
}

// CreateAnnouncementRequest represents the request payload for creating an announcement
type CreateAnnouncementRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body"`
}

// List handles GET /api/announcements
func (h *AnnouncementHandler) List(c *gin.Context) {
	schoolID := c.GetString("school_id")

	var announcements []models.Announcement
	if err := database.GetDB().
		Where("school_id = ?", schoolID).
		Order("created_at desc").
		Find(&announcements).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch announcements"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"announcements": announcements,
		"count":         len(announcements),
	})
}

// Create handles POST /api/announcements (admin/teacher only)
func (h *AnnouncementHandler) Create(c *gin.Context) {
	role := c.GetString("role")
	if role != string(models.RoleAdmin) && role != string(models.RoleTeacher) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only teachers and admins can post announcements"})
		return
	}

	var req CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	announcement := models.Announcement{
		ID:       fmt.Sprintf("ann-%d", time.Now().UnixNano()),
		SchoolID: c.GetString("school_id"),
		Title:    req.Title,
		Body:     req.Body,
		AuthorID: c.GetString("user_id"),
	}
	if err := database.GetDB().Create(&announcement).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create announcement"})
		return
	}

	// Drop every cached announcements listing, query-string variants included.
	if n := h.Cache.DeletePattern("GET:/api/announcements*"); n > 0 {
		log.Printf("announcements: invalidated %d cached listing(s)", n)
	}

	c.JSON(http.StatusCreated, announcement)
}
