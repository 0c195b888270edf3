package router

import (
	"context"
	"fmt"

	"github.com/anonto42/instaverse/backend/internal/auth"
	"github.com/anonto42/instaverse/backend/internal/handlers"
	"github.com/anonto42/instaverse/backend/internal/media"
	"github.com/anonto42/instaverse/backend/internal/middleware"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"github.com/anonto42/instaverse/backend/internal/services"
	"github.com/anonto42/instaverse/backend/internal/session"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories is the storage the services run on
type Repositories struct {
	Users         repositories.UserRepository
	Posts         repositories.PostRepository
	Comments      repositories.CommentRepository
	Notifications repositories.NotificationRepository
	Reconcile     repositories.ReconcileRepository
}

// NewRepositories builds the MongoDB repositories and the SQL reconciliation
// ledger, creating indexes and tables as needed.
func NewRepositories(ctx context.Context, docs *mongo.Database, ledger *gorm.DB, log *zap.Logger) (Repositories, error) {
	users := repositories.NewMongoUserRepository(docs)
	posts := repositories.NewMongoPostRepository(docs)
	comments := repositories.NewMongoCommentRepository(docs)
	notifications := repositories.NewMongoNotificationRepository(docs)

	for name, ensure := range map[string]func(context.Context) error{
		"users":         users.EnsureIndexes,
		"posts":         posts.EnsureIndexes,
		"comments":      comments.EnsureIndexes,
		"notifications": notifications.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return Repositories{}, fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	log.Info("MongoDB indexes ensured.")

	if err := repositories.MigrateReconcile(ledger); err != nil {
		return Repositories{}, fmt.Errorf("failed to migrate reconciliation ledger: %w", err)
	}
	log.Info("Reconciliation ledger migrated.")

	return Repositories{
		Users:         users,
		Posts:         posts,
		Comments:      comments,
		Notifications: notifications,
		Reconcile:     repositories.NewSQLReconcileRepository(ledger),
	}, nil
}

// Deps are the collaborators SetupRoutes wires into the handlers
type Deps struct {
	Repos        Repositories
	Media        media.Store
	Tokens       *auth.TokenIssuer
	Sessions     session.Store
	FirebaseAuth handlers.IDTokenVerifier // nil disables firebase login
	SecureCookie bool
	PageSize     int
	Log          *zap.Logger
}

// SetupRoutes configures all application routes and injects dependencies.
// The returned reconciler is not started.
func SetupRoutes(e *echo.Echo, d Deps) *services.Reconciler {
	log := d.Log
	r := d.Repos

	e.HTTPErrorHandler = handlers.ErrorHandler(log)

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Services ---
	ledger := services.NewNotificationService(r.Notifications, r.Users, r.Posts, r.Comments, log)
	mapper := services.NewMapper(r.Users, ledger, r.Reconcile, log)
	postService := services.NewPostService(r.Posts, r.Comments, r.Users, mapper, d.Media, log)
	commentService := services.NewCommentService(r.Comments, r.Posts, r.Users, mapper, log)
	userService := services.NewUserService(r.Users, r.Posts, mapper, d.Media, log)
	reader := services.NewReader(r.Posts, r.Comments, r.Users, d.PageSize)

	requireAuth := middleware.JWTAuthMiddleware(d.Tokens)
	api := e.Group("/api/v1")

	// User routes, auth first so static paths are registered before /:username
	userGroup := api.Group("/user")
	authHandler := handlers.NewAuthHandler(r.Users, d.Tokens, d.Sessions, d.FirebaseAuth, d.SecureCookie, log)
	authHandler.RegisterAuthRoutes(userGroup, requireAuth)
	log.Info("Auth routes configured.")

	userHandler := handlers.NewUserHandler(userService, reader)
	userHandler.RegisterUserRoutes(userGroup, requireAuth)
	log.Info("User routes configured.")

	// Post and comment routes
	postGroup := api.Group("/post", requireAuth)
	postHandler := handlers.NewPostHandler(postService, reader)
	postHandler.RegisterPostRoutes(postGroup)
	log.Info("Post routes configured.")

	commentHandler := handlers.NewCommentHandler(commentService, reader)
	commentHandler.RegisterCommentRoutes(postGroup)
	log.Info("Comment routes configured.")

	// Notification routes
	notificationGroup := api.Group("/notification", requireAuth)
	notificationHandler := handlers.NewNotificationHandler(ledger)
	notificationHandler.RegisterNotificationRoutes(notificationGroup)
	log.Info("Notification routes configured.")

	log.Info("All routes configured.")
	return services.NewReconciler(r.Reconcile, ledger, log, 0)
}
