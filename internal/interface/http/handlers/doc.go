// Package handlers contains HTTP health checks and reusable middleware.
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(conn))
//	checker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
//	checker.AddCheck("gpa_backend", handlers.NewBackendCheck(client))
//
//	status := checker.Check(ctx)
//
// # API Keys
//
// Keys are configured as bcrypt hashes, produced by HashAPIKey or
// `gpactl hash-key`. A verified key is remembered for a short TTL:
//
//	auth := handlers.NewAPIKeyAuth("X-API-Key", hashes, 5*time.Minute)
//	protected := auth.Middleware(runHandler)
//
// # Middleware
//
//	handler := handlers.ChainHandler(
//	    mux,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)
package handlers
