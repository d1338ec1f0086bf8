package routes

import (
	"time"

	"school-attendance-api/internal/cache"
	"school-attendance-api/internal/handlers"
	"school-attendance-api/internal/middleware"
	"school-attendance-api/internal/notify"
	"school-attendance-api/internal/realtime"

	"github.com/gin-gonic/gin"
)

// Deps carries the shared state the routes need: the process-wide cache, the
// websocket hub and the notification dispatcher. Everything is constructed in
// main (or a test) and injected here.
type Deps struct {
	Cache      cache.Store
	Hub        *realtime.Hub
	Dispatcher *notify.Dispatcher
}

// TTLs per cache profile: hot aggregate views refresh quickly, near-static
// listings can live longer.
const (
	AggregateTTL = 60 * time.Second
	ListingTTL   = 300 * time.Second
)

func SetupRoutes(deps Deps) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.Default()

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204) // This depends on the implementation of the frontend
			return
		}

		c.Next()
	})

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "School Attendance API is running",
		})
	})

	attendance := &handlers.AttendanceHandler{
		Cache:      deps.Cache,
		Aggregator: handlers.GormAggregator{},
		Dispatcher: deps.Dispatcher,
	}
	announcements := &handlers.AnnouncementHandler{Cache: deps.Cache}
	ws := &handlers.WSHandler{Hub: deps.Hub}

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		// Login endpoint
		api.POST("/login", handlers.Login)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	{
		// Near-static listings, cached under the default METHOD:URI key
		protectedRoutes.GET("/users",
			middleware.CachePage(deps.Cache, middleware.CacheConfig{TTL: ListingTTL}),
			handlers.GetAllUsers)
		protectedRoutes.GET("/grade-sections",
			middleware.CachePage(deps.Cache, middleware.CacheConfig{TTL: ListingTTL}),
			handlers.GetGradeSections)
		protectedRoutes.GET("/announcements",
			middleware.CachePage(deps.Cache, middleware.CacheConfig{TTL: ListingTTL}),
			announcements.List)
		protectedRoutes.POST("/announcements", announcements.Create)

		// Attendance: aggregate views keyed so the bulk-mark invalidation
		// can address them; the overview also advertises its max-age.
		protectedRoutes.GET("/attendance/grade-sections/daily",
			middleware.CachePage(deps.Cache, middleware.CacheConfig{
				TTL:             AggregateTTL,
				KeyFunc:         handlers.OverviewCacheKey,
				SetCacheControl: true,
			}),
			attendance.DailyOverview)
		protectedRoutes.GET("/attendance/grade-sections/:id",
			middleware.CachePage(deps.Cache, middleware.CacheConfig{
				TTL:     AggregateTTL,
				KeyFunc: handlers.SectionCacheKey,
			}),
			attendance.SectionAttendance)
		protectedRoutes.POST("/attendance/bulk-mark", attendance.BulkMark)

		// Notification delivery channel
		protectedRoutes.GET("/ws", ws.Handle)
	}

	return ginRouter
}
