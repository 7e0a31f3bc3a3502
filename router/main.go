package router

import (
	"log"
	"os"
	"time"

	"github.com/classpilot/api/database"
	"github.com/classpilot/api/handlers"
	admin_handlers "github.com/classpilot/api/handlers/admin"
	assessment_handlers "github.com/classpilot/api/handlers/assessment"
	auth_handlers "github.com/classpilot/api/handlers/auth"
	class_handlers "github.com/classpilot/api/handlers/class"
	course_handlers "github.com/classpilot/api/handlers/course"
	institute_handlers "github.com/classpilot/api/handlers/institute"
	onboarding_handlers "github.com/classpilot/api/handlers/onboarding"
	"github.com/classpilot/api/services"
	"github.com/classpilot/api/services/identity"
	"github.com/classpilot/api/utils/auth"
	"github.com/classpilot/api/utils/cache"
	"github.com/classpilot/api/utils/middleware"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, store database.Storage) {
	// Get JWT secret from environment
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "classpilot-api"
	}

	// Initialize JWT manager with config
	jwtConfig := auth.JWTConfig{
		Secret:        jwtSecret,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Initialize Redis cache for brute force protection
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection will be disabled.", err)
	}

	// Initialize brute force protection
	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	// Identity provider client; every account mutation goes through it
	identityClient := identity.NewClient(identity.Config{
		Endpoint:  os.Getenv("IDENTITY_API_ENDPOINT"),
		APIKey:    os.Getenv("IDENTITY_API_KEY"),
		ProjectID: os.Getenv("IDENTITY_PROJECT_ID"),
	})

	provisioning := services.NewProvisioningService(db, identityClient)

	// Initialize auth middleware with DB for blacklist checking
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Initialize handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, provisioning, bruteForceProtection)
	onboardingHandler := onboarding_handlers.NewOnboardingHandler(db, provisioning)
	adminHandler := admin_handlers.NewAdminHandler(db, provisioning)
	instituteHandler := institute_handlers.NewInstituteHandler(db)
	classHandler := class_handlers.NewClassHandler(db)
	courseHandler := course_handlers.NewCourseHandler(db)
	assessmentHandler := assessment_handlers.NewAssessmentHandler(db)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/health", handlers.HandleCheckHealth(store))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.Refresh)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Get("/profile", authMiddleware.Required(), authHandler.Profile)

	// Onboarding (protected; completes the authenticated account's profile)
	api.Post("/onboarding", authMiddleware.Required(), onboardingHandler.Complete)

	// Public institute directory (used by JOIN onboarding and sign-up forms)
	institutes := api.Group("/institutes")
	institutes.Get("/", instituteHandler.List)
	institutes.Get("/:id", instituteHandler.Get)

	// Admin routes (institute admin or super admin)
	admin := api.Group("/admin", authMiddleware.Required(), middleware.RequireAdmin())

	teachers := admin.Group("/teachers")
	teachers.Get("/", adminHandler.ListTeachers)
	teachers.Get("/:id", adminHandler.GetTeacher)
	teachers.Post("/", adminHandler.CreateTeacher)
	teachers.Put("/:id", adminHandler.UpdateTeacher)
	teachers.Delete("/:id", adminHandler.DeleteTeacher)

	students := admin.Group("/students")
	students.Get("/", adminHandler.ListStudents)
	students.Get("/:id", adminHandler.GetStudent)
	students.Post("/", adminHandler.CreateStudent)
	students.Put("/:id", adminHandler.UpdateStudent)
	students.Delete("/:id", adminHandler.DeleteStudent)

	instituteAdmins := admin.Group("/institute-admins")
	instituteAdmins.Get("/", adminHandler.ListInstituteAdmins)
	instituteAdmins.Post("/", adminHandler.CreateInstituteAdmin)
	instituteAdmins.Delete("/:id", adminHandler.DeleteInstituteAdmin)

	// Institute lifecycle (super admin only)
	adminInstitutes := admin.Group("/institutes", middleware.RequireSuperAdmin())
	adminInstitutes.Post("/", instituteHandler.Create)
	adminInstitutes.Put("/:id", instituteHandler.Update)
	adminInstitutes.Post("/:id/approve", instituteHandler.Approve)
	adminInstitutes.Delete("/:id", instituteHandler.Delete)

	// Classes (admin-managed; membership endpoints replace whole sets)
	classes := api.Group("/classes", authMiddleware.Required())
	classes.Get("/", classHandler.List)
	classes.Get("/:id", classHandler.Get)
	classes.Post("/", middleware.RequireAdmin(), classHandler.Create)
	classes.Put("/:id", middleware.RequireAdmin(), classHandler.Update)
	classes.Delete("/:id", middleware.RequireAdmin(), classHandler.Delete)
	classes.Put("/:id/students", middleware.RequireAdmin(), classHandler.SetStudents)
	classes.Put("/:id/courses", middleware.RequireAdmin(), classHandler.SetCourses)
	classes.Put("/:id/teachers", middleware.RequireAdmin(), classHandler.SetTeachers)

	// Courses
	courses := api.Group("/courses", authMiddleware.Required())
	courses.Get("/", courseHandler.List)
	courses.Get("/:id", courseHandler.Get)
	courses.Post("/", middleware.RequireAdmin(), courseHandler.Create)
	courses.Put("/:id", middleware.RequireAdmin(), courseHandler.Update)
	courses.Delete("/:id", middleware.RequireAdmin(), courseHandler.Delete)
	courses.Put("/:id/teachers", middleware.RequireAdmin(), courseHandler.SetTeachers)

	// Assessments
	assessments := api.Group("/assessments", authMiddleware.Required())
	assessments.Get("/", assessmentHandler.List)
	assessments.Get("/:id", assessmentHandler.Get)
	assessments.Post("/", middleware.RequireAdmin(), assessmentHandler.Create)
	assessments.Put("/:id", middleware.RequireAdmin(), assessmentHandler.Update)
	assessments.Delete("/:id", middleware.RequireAdmin(), assessmentHandler.Delete)
}
