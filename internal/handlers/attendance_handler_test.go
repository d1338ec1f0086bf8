package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"school-attendance-api/internal/auth"
	"school-attendance-api/internal/cache"
	"school-attendance-api/internal/database"
	"school-attendance-api/internal/middleware"
	"school-attendance-api/internal/models"
	"school-attendance-api/internal/notify"
	"school-attendance-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// stubPusher records deliveries for assertions about the deferred fan-out.
type stubPusher struct {
	mu        sync.Mutex
	delivered []string
}

func (p *stubPusher) Push(studentID string, n notify.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delivered = append(p.delivered, studentID)
	return nil
}

func (p *stubPusher) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.delivered...)
}

// seedSchool populates one school: a teacher of record for gs-1, a second
// teacher without a section, an admin, and nine students enrolled in gs-1.
func seedSchool(t *testing.T) {
	t.Helper()
	db := database.GetDB()

	users := []models.User{
		{ID: "t-1", Username: "ms-rivera", Password: "x", Role: models.RoleTeacher, SchoolID: "school-1"},
		{ID: "t-2", Username: "mr-okafor", Password: "x", Role: models.RoleTeacher, SchoolID: "school-1"},
		{ID: "a-1", Username: "principal", Password: "x", Role: models.RoleAdmin, SchoolID: "school-1"},
	}
	for i := 1; i <= 9; i++ {
		users = append(users, models.User{
			ID:             fmt.Sprintf("s-%d", i),
			Username:       fmt.Sprintf("student%d", i),
			Password:       "x",
			Role:           models.RoleStudent,
			SchoolID:       "school-1",
			GradeSectionID: "gs-1",
		})
	}
	require.NoError(t, db.Create(&users).Error)

	sections := []models.GradeSection{
		{ID: "gs-1", Name: "Grade 7 - B", SchoolID: "school-1", TeacherID: "t-1"},
		{ID: "gs-2", Name: "Grade 8 - A", SchoolID: "school-1", TeacherID: "t-2"},
	}
	require.NoError(t, db.Create(&sections).Error)
}

func newAttendanceRouter(t *testing.T, pusher notify.Pusher) (*gin.Engine, *cache.KeyedCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db
	seedSchool(t)

	store := cache.NewKeyedCache(cache.Options{CloneOnAccess: true})
	t.Cleanup(store.Close)

	var dispatcher *notify.Dispatcher
	if pusher != nil {
		dispatcher = notify.NewDispatcher(pusher, 10, time.Millisecond)
	}
	h := &AttendanceHandler{
		Cache:      store,
		Aggregator: GormAggregator{},
		Dispatcher: dispatcher,
	}

	r := gin.New()
	api := r.Group("/api")
	api.Use(middleware.JWTAuthMiddleware())
	api.GET("/attendance/grade-sections/daily",
		middleware.CachePage(store, middleware.CacheConfig{
			TTL:             time.Minute,
			KeyFunc:         OverviewCacheKey,
			SetCacheControl: true,
		}),
		h.DailyOverview)
	api.GET("/attendance/grade-sections/:id",
		middleware.CachePage(store, middleware.CacheConfig{
			TTL:     time.Minute,
			KeyFunc: SectionCacheKey,
		}),
		h.SectionAttendance)
	api.POST("/attendance/bulk-mark", h.BulkMark)
	return r, store
}

func tokenFor(t *testing.T, userID, username, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, username, role, "school-1")
	require.NoError(t, err)
	return token
}

func doJSON(r *gin.Engine, method, url, token string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bulkMarkPayload(sectionID, date string, marks map[string]string) map[string]any {
	records := make([]map[string]any, 0, len(marks))
	for i := 1; i <= 9; i++ {
		id := fmt.Sprintf("s-%d", i)
		if status, ok := marks[id]; ok {
			records = append(records, map[string]any{"studentId": id, "status": status})
		}
	}
	return map[string]any{
		"gradeSectionId":    sectionID,
		"date":              date,
		"attendanceRecords": records,
	}
}

func countAttendanceRows(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, database.GetDB().Model(&models.AttendanceRecord{}).Count(&n).Error)
	return n
}

func TestBulkMark_Success(t *testing.T) {
	r, _ := newAttendanceRouter(t, nil)
	token := tokenFor(t, "t-1", "ms-rivera", "teacher")

	payload := bulkMarkPayload("gs-1", "2025-03-10", map[string]string{
		"s-1": "present", "s-2": "absent", "s-3": "late",
	})
	w := doJSON(r, http.MethodPost, "/api/attendance/bulk-mark", token, payload)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Message  string `json:"message"`
		MarkedAt string `json:"markedAt"`
		Result   struct {
			Marked int    `json:"marked"`
			Date   string `json:"date"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Message)
	require.NotEmpty(t, resp.MarkedAt)
	require.Equal(t, 3, resp.Result.Marked)
	require.EqualValues(t, 3, countAttendanceRows(t))
}

func TestBulkMark_RejectsWholeBatchOnOneInvalidStatus(t *testing.T) {
	r, _ := newAttendanceRouter(t, nil)
	token := tokenFor(t, "t-1", "ms-rivera", "teacher")

	// Nine records, one carrying a status outside the enum.
	marks := map[string]string{}
	for i := 1; i <= 9; i++ {
		marks[fmt.Sprintf("s-%d", i)] = "present"
	}
	marks["s-5"] = "vanished"

	w := doJSON(r, http.MethodPost, "/api/attendance/bulk-mark", token,
		bulkMarkPayload("gs-1", "2025-03-10", marks))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		InvalidRecords []InvalidRecord `json:"invalidRecords"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.InvalidRecords, 1)
	require.Equal(t, "s-5", resp.InvalidRecords[0].StudentID)

	// No partial application: the eight valid records were not persisted.
	require.Zero(t, countAttendanceRows(t))
}

func TestBulkMark_RejectsUnknownStudent(t *testing.T) {
	r, _ := newAttendanceRouter(t, nil)
	token := tokenFor(t, "t-1", "ms-rivera", "teacher")

	payload := map[string]any{
		"gradeSectionId": "gs-1",
		"date":           "2025-03-10",
		"attendanceRecords": []map[string]any{
			{"studentId": "s-1", "status": "present"},
			{"studentId": "ghost", "status": "present"},
		},
	}
	w := doJSON(r, http.MethodPost, "/api/attendance/bulk-mark", token, payload)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, countAttendanceRows(t))
}

func TestBulkMark_RequiresTeacherOfRecord(t *testing.T) {
	r, _ := newAttendanceRouter(t, nil)

	// t-2 teaches gs-2, not gs-1.
	token := tokenFor(t, "t-2", "mr-okafor", "teacher")
	w := doJSON(r, http.MethodPost, "/api/attendance/bulk-mark", token,
		bulkMarkPayload("gs-1", "2025-03-10", map[string]string{"s-1": "present"}))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Zero(t, countAttendanceRows(t))

	// An admin is allowed regardless of section.
	admin := tokenFor(t, "a-1", "principal", "admin")
	w = doJSON(r, http.MethodPost, "/api/attendance/bulk-mark", admin,
		bulkMarkPayload("gs-1", "2025-03-10", map[string]string{"s-1": "present"}))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBulkMark_UpsertsOnRemark(t *testing.T) {
	r, _ := newAttendanceRouter(t, nil)
	token := tokenFor(t, "t-1", "ms-rivera", "teacher")

	w := doJSON(r, http.MethodPost, "/api/attendance/bulk-mark", token,
		bulkMarkPayload("gs-1", "2025-03-10", map[string]string{"s-1": "present"}))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/attendance/bulk-mark", token,
		bulkMarkPayload("gs-1", "2025-03-10", map[string]string{"s-1": "absent"}))
	require.Equal(t, http.StatusOK, w.Code)

	require.EqualValues(t, 1, countAttendanceRows(t))
	var rec models.AttendanceRecord
	require.NoError(t, database.GetDB().
		Where("student_id = ? AND grade_section_id = ? AND date = ?", "s-1", "gs-1", "2025-03-10").
		First(&rec).Error)
	require.Equal(t, models.StatusAbsent, rec.Status)
}

func TestBulkMark_NotifiesOnlyMarkedStudents(t *testing.T) {
	pusher := &stubPusher{}
	r, _ := newAttendanceRouter(t, pusher)
	token := tokenFor(t, "t-1", "ms-rivera", "teacher")

	w := doJSON(r, http.MethodPost, "/api/attendance/bulk-mark", token,
		bulkMarkPayload("gs-1", "2025-03-10", map[string]string{
			"s-1": "present",
			"s-2": "unmarked",
			"s-3": "late",
		}))
	require.Equal(t, http.StatusOK, w.Code)

	// Dispatch is deferred past the response; wait for it.
	require.Eventually(t, func() bool {
		return len(pusher.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	require.ElementsMatch(t, []string{"s-1", "s-3"}, pusher.snapshot())
}

func overviewCounts(t *testing.T, w *httptest.ResponseRecorder, sectionID string) SectionCounts {
	t.Helper()
	var resp struct {
		GradeSections []SectionCounts `json:"gradeSections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	for _, sc := range resp.GradeSections {
		if sc.GradeSectionID == sectionID {
			return sc
		}
	}
	t.Fatalf("section %s missing from overview", sectionID)
	return SectionCounts{}
}

func TestDailyOverview_InvalidationEndToEnd(t *testing.T) {
	r, _ := newAttendanceRouter(t, nil)
	teacher := tokenFor(t, "t-1", "ms-rivera", "teacher")
	admin := tokenFor(t, "a-1", "principal", "admin")
	today := time.Now().Format("2006-01-02")
	url := "/api/attendance/grade-sections/daily?date=" + today

	// First read populates the cache.
	w1 := doJSON(r, http.MethodGet, url, admin, nil)
	require.Equal(t, http.StatusOK, w1.Code)
	require.Equal(t, "MISS", w1.Header().Get(middleware.CacheHeader))
	require.Equal(t, "public, max-age=60", w1.Header().Get("Cache-Control"))
	before := overviewCounts(t, w1, "gs-1")
	require.EqualValues(t, 0, before.Present)
	require.EqualValues(t, 9, before.Unmarked)

	// Second identical read is served from cache.
	w2 := doJSON(r, http.MethodGet, url, admin, nil)
	require.Equal(t, "HIT", w2.Header().Get(middleware.CacheHeader))
	require.Equal(t, w1.Body.String(), w2.Body.String())

	// Mutating attendance for a section counted in that overview must evict
	// the entry, for every user, not just the caller.
	wm := doJSON(r, http.MethodPost, "/api/attendance/bulk-mark", teacher,
		bulkMarkPayload("gs-1", today, map[string]string{"s-1": "present", "s-2": "absent"}))
	require.Equal(t, http.StatusOK, wm.Code)

	w3 := doJSON(r, http.MethodGet, url, admin, nil)
	require.Equal(t, "MISS", w3.Header().Get(middleware.CacheHeader))
	after := overviewCounts(t, w3, "gs-1")
	require.EqualValues(t, 1, after.Present)
	require.EqualValues(t, 1, after.Absent)
	require.EqualValues(t, 7, after.Unmarked)
}

func TestSectionAttendance_InvalidatedByBulkMark(t *testing.T) {
	r, _ := newAttendanceRouter(t, nil)
	teacher := tokenFor(t, "t-1", "ms-rivera", "teacher")
	url := "/api/attendance/grade-sections/gs-1?date=2025-03-10"

	require.Equal(t, "MISS", doJSON(r, http.MethodGet, url, teacher, nil).Header().Get(middleware.CacheHeader))
	require.Equal(t, "HIT", doJSON(r, http.MethodGet, url, teacher, nil).Header().Get(middleware.CacheHeader))

	w := doJSON(r, http.MethodPost, "/api/attendance/bulk-mark", teacher,
		bulkMarkPayload("gs-1", "2025-03-10", map[string]string{"s-1": "present"}))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, url, teacher, nil)
	require.Equal(t, "MISS", w.Header().Get(middleware.CacheHeader))
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
}

func TestDailyOverview_RejectsMalformedDate(t *testing.T) {
	r, _ := newAttendanceRouter(t, nil)
	admin := tokenFor(t, "a-1", "principal", "admin")

	w := doJSON(r, http.MethodGet, "/api/attendance/grade-sections/daily?date=tomorrow", admin, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
