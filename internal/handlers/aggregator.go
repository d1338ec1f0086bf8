package handlers

import (
	"school-attendance-api/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Principal is the verified identity attached to a request by the JWT
// middleware: who is asking, with what role, for which school.
type Principal struct {
	ID       string
	Role     string
	SchoolID string
}

func principalFrom(c *gin.Context) Principal {
	return Principal{
		ID:       c.GetString("user_id"),
		Role:     c.GetString("role"),
		SchoolID: c.GetString("school_id"),
	}
}

// SectionCounts holds per-grade-section attendance counts for one date.
type SectionCounts struct {
	GradeSectionID string `json:"gradeSectionId"`
	Name           string `json:"name"`
	Present        int64  `json:"present"`
	Absent         int64  `json:"absent"`
	Late           int64  `json:"late"`
	Excused        int64  `json:"excused"`
	Unmarked       int64  `json:"unmarked"`
}

// Aggregator computes per-section attendance counts for a date, scoped to the
// principal's school. The daily-overview GET invokes it on every cache miss;
// tests substitute a fake.
type Aggregator interface {
	CountsForDate(db *gorm.DB, date string, p Principal) ([]SectionCounts, error)
}

// GormAggregator is the database-backed Aggregator.
type GormAggregator struct{}

// CountsForDate implements Aggregator. Unmarked is derived: enrolled students
// minus rows marked with a real status, so sections with no attendance rows
// at all still report every student as unmarked.
func (GormAggregator) CountsForDate(db *gorm.DB, date string, p Principal) ([]SectionCounts, error) {
	var sections []models.GradeSection
	if err := db.Where("school_id = ?", p.SchoolID).Order("name asc").Find(&sections).Error; err != nil {
		return nil, err
	}

	type statusRow struct {
		GradeSectionID string
		Status         string
		Count          int64
	}
	var rows []statusRow
	if err := db.Model(&models.AttendanceRecord{}).
		Select("grade_section_id, status, COUNT(*) as count").
		Where("date = ? AND grade_section_id IN (?)", date,
			db.Model(&models.GradeSection{}).Select("id").Where("school_id = ?", p.SchoolID)).
		Group("grade_section_id, status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	type enrolledRow struct {
		GradeSectionID string
		Count          int64
	}
	var enrolled []enrolledRow
	if err := db.Model(&models.User{}).
		Select("grade_section_id, COUNT(*) as count").
		Where("school_id = ? AND role = ?", p.SchoolID, models.RoleStudent).
		Group("grade_section_id").
		Scan(&enrolled).Error; err != nil {
		return nil, err
	}
	enrolledBySection := make(map[string]int64, len(enrolled))
	for _, e := range enrolled {
		enrolledBySection[e.GradeSectionID] = e.Count
	}

	countsBySection := make(map[string]*SectionCounts, len(sections))
	result := make([]SectionCounts, 0, len(sections))
	for _, s := range sections {
		result = append(result, SectionCounts{GradeSectionID: s.ID, Name: s.Name})
		countsBySection[s.ID] = &result[len(result)-1]
	}

	for _, r := range rows {
		sc, ok := countsBySection[r.GradeSectionID]
		if !ok {
			continue
		}
		switch models.AttendanceStatus(r.Status) {
		case models.StatusPresent:
			sc.Present = r.Count
		case models.StatusAbsent:
			sc.Absent = r.Count
		case models.StatusLate:
			sc.Late = r.Count
		case models.StatusExcused:
			sc.Excused = r.Count
		}
	}

	for i := range result {
		sc := &result[i]
		marked := sc.Present + sc.Absent + sc.Late + sc.Excused
		if total := enrolledBySection[sc.GradeSectionID]; total > marked {
			sc.Unmarked = total - marked
		}
	}

	return result, nil
}
