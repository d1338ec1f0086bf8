package main

import (
	"log"

	"school-attendance-api/internal/cache"
	"school-attendance-api/internal/config"
	"school-attendance-api/internal/database"
	"school-attendance-api/internal/notify"
	"school-attendance-api/internal/realtime"
	"school-attendance-api/internal/routes"
)

func main() {
	cfg := config.Load()

	// Init database
	database.InitDB()

	// One cache per process; the middleware and the attendance handler share
	// this instance so reads and invalidations see the same entries.
	store := cache.NewKeyedCache(cache.Options{
		DefaultTTL:    cfg.CacheDefaultTTL,
		SweepInterval: cfg.CacheSweepEvery,
		CloneOnAccess: cfg.CacheCloneOnRead,
	})
	defer store.Close()

	hub := realtime.NewHub()
	dispatcher := notify.NewDispatcher(&notify.HubPusher{Hub: hub}, cfg.NotifyBatchSize, cfg.NotifyBatchWait)

	// Setup the routes (public and protected routes)
	ginRoutes := routes.SetupRoutes(routes.Deps{
		Cache:      store,
		Hub:        hub,
		Dispatcher: dispatcher,
	})

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	log.Println("API endpoints:")
	log.Println("  POST   /api/login")
	log.Println("  GET    /api/users")
	log.Println("  GET    /api/grade-sections")
	log.Println("  GET    /api/announcements")
	log.Println("  POST   /api/announcements")
	log.Println("  GET    /api/attendance/grade-sections/daily")
	log.Println("  GET    /api/attendance/grade-sections/:id")
	log.Println("  POST   /api/attendance/bulk-mark")
	log.Println("  GET    /api/ws")
	log.Println("  GET    /health")

	if err := ginRoutes.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
