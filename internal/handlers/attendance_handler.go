package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"school-attendance-api/internal/cache"
	"school-attendance-api/internal/database"
	"school-attendance-api/internal/models"
	"school-attendance-api/internal/notify"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyOverviewPath is the route path of the daily attendance overview. The
// read-through key function and the bulk-mark invalidation both reference it;
// keep them pointed at the same constant.
const DailyOverviewPath = "/api/attendance/grade-sections/daily"

const isoDate = "2006-01-02"

// now is a small indirection to allow test stubbing of "today".
var now = time.Now

// AttendanceHandler owns the attendance read and mutation routes. The cache,
// aggregator and notification dispatcher are injected at construction so
// tests can substitute fakes.
type AttendanceHandler struct {
	Cache      cache.Store
	Aggregator Aggregator
	Dispatcher *notify.Dispatcher
}

// BulkMarkRecord is one per-student entry in a bulk-mark request.
type BulkMarkRecord struct {
	StudentID string                  `json:"studentId" binding:"required"`
	Status    models.AttendanceStatus `json:"status" binding:"required"`
	Notes     string                  `json:"notes"`
}

// BulkMarkRequest represents the bulk attendance mutation payload.
type BulkMarkRequest struct {
	GradeSectionID    string           `json:"gradeSectionId" binding:"required"`
	Date              string           `json:"date" binding:"required"`
	AttendanceRecords []BulkMarkRecord `json:"attendanceRecords" binding:"required,min=1"`
}

// InvalidRecord describes one rejected entry of a bulk-mark batch.
type InvalidRecord struct {
	StudentID string `json:"studentId"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

// BulkMark handles POST /api/attendance/bulk-mark.
//
// The batch moves through validate -> authorize -> persist -> invalidate ->
// respond -> notify. Validation or authorization failures reject the whole
// batch before any write; cache and notification failures after the write are
// logged and never surface to the caller.
func (h *AttendanceHandler) BulkMark(c *gin.Context) {
	p := principalFrom(c)
	if p.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
		return
	}

	var req BulkMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := time.Parse(isoDate, req.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be formatted YYYY-MM-DD"})
		return
	}

	db := database.GetDB()

	// Validate the whole batch up front; one bad record rejects everything.
	invalid := validateRecords(db, p.SchoolID, req.AttendanceRecords)
	if len(invalid) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "Batch contains invalid records",
			"invalidRecords": invalid,
		})
		return
	}

	var section models.GradeSection
	err := db.Where("id = ? AND school_id = ?", req.GradeSectionID, p.SchoolID).First(&section).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Grade section not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch grade section"})
		}
		return
	}

	// Only an admin or the section's teacher of record may mark attendance.
	if p.Role != string(models.RoleAdmin) && section.TeacherID != p.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the teacher of record or an admin can mark attendance for this section"})
		return
	}

	records := make([]models.AttendanceRecord, 0, len(req.AttendanceRecords))
	for _, r := range req.AttendanceRecords {
		records = append(records, models.AttendanceRecord{
			StudentID:      r.StudentID,
			GradeSectionID: req.GradeSectionID,
			Date:           req.Date,
			Status:         r.Status,
			Notes:          r.Notes,
			MarkedBy:       p.ID,
		})
	}

	// Upsert the batch transactionally on (student, section, date).
	err = db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "student_id"},
				{Name: "grade_section_id"},
				{Name: "date"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"status", "notes", "marked_by", "updated_at"}),
		}).Create(&records).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist attendance records"})
		return
	}

	// Persistence succeeded; from here on nothing may fail the request.
	h.invalidateAttendance(req.GradeSectionID, req.Date, p.ID)

	markedAt := now().UTC().Format(time.RFC3339)
	c.JSON(http.StatusOK, gin.H{
		"message": "Attendance marked successfully",
		"result": gin.H{
			"gradeSectionId": req.GradeSectionID,
			"date":           req.Date,
			"marked":         len(records),
		},
		"markedAt": markedAt,
	})

	notifications := buildNotifications(section.Name, req.Date, req.AttendanceRecords)
	if h.Dispatcher != nil && len(notifications) > 0 {
		go h.Dispatcher.Dispatch(notifications)
	}
}

// validateRecords checks every entry against the status enum and the school's
// student roster. It returns the offending records, empty when the batch is
// clean.
func validateRecords(db *gorm.DB, schoolID string, recs []BulkMarkRecord) []InvalidRecord {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.StudentID)
	}

	var students []models.User
	known := make(map[string]bool, len(ids))
	if err := db.Where("id IN ? AND school_id = ? AND role = ?", ids, schoolID, models.RoleStudent).
		Find(&students).Error; err == nil {
		for _, s := range students {
			known[s.ID] = true
		}
	}

	var invalid []InvalidRecord
	for _, r := range recs {
		switch {
		case !models.ValidStatus(r.Status):
			invalid = append(invalid, InvalidRecord{
				StudentID: r.StudentID,
				Status:    string(r.Status),
				Reason:    "unknown status",
			})
		case !known[r.StudentID]:
			invalid = append(invalid, InvalidRecord{
				StudentID: r.StudentID,
				Status:    string(r.Status),
				Reason:    "unknown student",
			})
		}
	}
	return invalid
}

// invalidateAttendance removes every cache entry that could hold pre-mutation
// counts for the section/date pair. Each removal is attempted independently;
// a miss or failure is logged and never aborts the request.
//
// The overview keys are always built against today's date, not the mutated
// date: the daily overview is only ever rendered for "today", so entries for
// other dates cannot exist. If that ever changes this must change with it.
func (h *AttendanceHandler) invalidateAttendance(sectionID, date, callerID string) {
	today := now().Format(isoDate)

	keys := []string{
		cache.SectionDateKey(sectionID, date),
		cache.DateKey(today, cache.UserKey(callerID, DailyOverviewPath)),
		// Spellings older builds cached under; keep deleting them until no
		// pre-rollout entries can remain in any running process.
		cache.LegacySectionDateKey(sectionID, date),
		cache.LegacyDailyKey(date),
	}
	for _, k := range keys {
		if n := h.Cache.Delete(k); n > 0 {
			log.Printf("attendance: invalidated cache key %s", k)
		}
	}

	patterns := []string{
		// Daily overview for any user, with or without query string.
		cache.DateKey(today, cache.UserKey("*", DailyOverviewPath+"*")),
		cache.DateKey(today, cache.UserKey("*", DailyOverviewPath)),
	}
	for _, pat := range patterns {
		if n := h.Cache.DeletePattern(pat); n > 0 {
			log.Printf("attendance: invalidated %d cache entries matching %s", n, pat)
		}
	}
}

func buildNotifications(sectionName, date string, recs []BulkMarkRecord) []notify.Notification {
	out := make([]notify.Notification, 0, len(recs))
	for _, r := range recs {
		if r.Status == models.StatusUnmarked {
			continue
		}
		out = append(out, notify.Notification{
			StudentID: r.StudentID,
			Type:      "attendance_marked",
			Title:     "Attendance updated",
			Body:      fmt.Sprintf("You were marked %s in %s on %s", r.Status, sectionName, date),
			Date:      date,
		})
	}
	return out
}

// OverviewCacheKey derives the daily-overview cache key from the request:
// date-scoped around a user-scoped key, via the shared builders. The
// invalidation path reconstructs the same shape.
func OverviewCacheKey(c *gin.Context) string {
	date := c.Query("date")
	if date == "" {
		date = now().Format(isoDate)
	}
	return cache.DateKey(date, cache.UserKey(c.GetString("user_id"), c.Request.URL.RequestURI()))
}

// SectionCacheKey derives the per-section attendance cache key.
func SectionCacheKey(c *gin.Context) string {
	date := c.Query("date")
	if date == "" {
		date = now().Format(isoDate)
	}
	return cache.SectionDateKey(c.Param("id"), date)
}

// DailyOverview handles GET /api/attendance/grade-sections/daily?date=
// On a cache miss the aggregation collaborator computes fresh counts; the
// read-through middleware snapshots the response.
func (h *AttendanceHandler) DailyOverview(c *gin.Context) {
	p := principalFrom(c)
	if p.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
		return
	}

	date := c.Query("date")
	if date == "" {
		date = now().Format(isoDate)
	}
	if _, err := time.Parse(isoDate, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be formatted YYYY-MM-DD"})
		return
	}

	counts, err := h.Aggregator.CountsForDate(database.GetDB(), date, p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute attendance overview"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":          date,
		"gradeSections": counts,
		"generatedAt":   now().UTC().Format(time.RFC3339),
	})
}

// SectionAttendance handles GET /api/attendance/grade-sections/:id?date=
// Returns the raw attendance rows of one section for one date.
func (h *AttendanceHandler) SectionAttendance(c *gin.Context) {
	p := principalFrom(c)
	if p.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
		return
	}

	sectionID := c.Param("id")
	date := c.Query("date")
	if date == "" {
		date = now().Format(isoDate)
	}

	db := database.GetDB()
	var section models.GradeSection
	err := db.Where("id = ? AND school_id = ?", sectionID, p.SchoolID).First(&section).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Grade section not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch grade section"})
		}
		return
	}

	var records []models.AttendanceRecord
	if err := db.Where("grade_section_id = ? AND date = ?", sectionID, date).
		Order("student_id asc").
		Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch attendance records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"gradeSection": section,
		"date":         date,
		"records":      records,
		"count":        len(records),
	})
}
