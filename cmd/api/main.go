package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/aulalink/aulalink-api/api/swagger"
	"github.com/aulalink/aulalink-api/internal/handler"
	internalmiddleware "github.com/aulalink/aulalink-api/internal/middleware"
	"github.com/aulalink/aulalink-api/internal/models"
	"github.com/aulalink/aulalink-api/internal/repository"
	"github.com/aulalink/aulalink-api/internal/service"
	"github.com/aulalink/aulalink-api/pkg/cache"
	"github.com/aulalink/aulalink-api/pkg/config"
	"github.com/aulalink/aulalink-api/pkg/database"
	"github.com/aulalink/aulalink-api/pkg/jobs"
	"github.com/aulalink/aulalink-api/pkg/logger"
	corsmiddleware "github.com/aulalink/aulalink-api/pkg/middleware/cors"
	reqidmiddleware "github.com/aulalink/aulalink-api/pkg/middleware/requestid"
	"github.com/aulalink/aulalink-api/pkg/storage"
	"github.com/aulalink/aulalink-api/pkg/thumbnail"
)

// @title AulaLink API
// @version 1.0.0
// @description School communication backend: rosters, announcements, messaging, media
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Badge counts fall back to live queries without Redis.
		logr.Sugar().Warnw("redis unavailable, badge caching disabled", "error", err)
		redisClient = nil
	}

	blobs, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init media storage", "error", err)
	}
	thumbs, err := storage.NewLocalStorage(cfg.Media.ThumbnailDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init thumbnail storage", "error", err)
	}
	previews := thumbnail.NewGenerator(cfg.Media.FFmpegPath, cfg.Media.ConvertPath, logr)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	metricsSvc := service.NewMetricsService()
	notificationSvc := service.NewNotificationService(notificationRepo, redisClient, cfg.Notifications.BadgeTTL, logr)
	dispatchSvc := service.NewDispatchService(announcementRepo, threadRepo, notificationSvc, jobs.QueueConfig{
		Workers:    cfg.Notifications.QueueWorkers,
		BufferSize: cfg.Notifications.QueueBuffer,
		Logger:     logr,
	}, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, membershipRepo, validate, logr)
	groupSvc := service.NewGroupService(groupRepo, studentRepo, userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, groupRepo, userRepo, dispatchSvc, validate, logr)
	mediaSvc := service.NewMediaService(mediaRepo, groupRepo, userRepo, blobs, thumbs, previews, cfg.Media.MaxFileSizeBytes, validate, logr)
	threadSvc := service.NewThreadService(threadRepo, userRepo, dispatchSvc, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	groupHandler := handler.NewGroupHandler(groupSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	mediaHandler := handler.NewMediaHandler(mediaSvc)
	threadHandler := handler.NewThreadHandler(threadSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchSvc.Start(ctx)
	defer dispatchSvc.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:          authSvc,
		users:         userRepo,
		authHandler:   authHandler,
		userHandler:   userHandler,
		groups:        groupHandler,
		students:      studentHandler,
		announcements: announcementHandler,
		media:         mediaHandler,
		threads:       threadHandler,
		notifications: notificationHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}

type routeDeps struct {
	auth          *service.AuthService
	users         *repository.UserRepository
	authHandler   *handler.AuthHandler
	userHandler   *handler.UserHandler
	groups        *handler.GroupHandler
	students      *handler.StudentHandler
	announcements *handler.AnnouncementHandler
	media         *handler.MediaHandler
	threads       *handler.ThreadHandler
	notifications *handler.NotificationHandler
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", deps.authHandler.Register)
		auth.POST("/login", deps.authHandler.Login)
		auth.POST("/refresh", deps.authHandler.Refresh)
	}

	authed := api.Group("")
	authed.Use(internalmiddleware.JWT(deps.auth))

	authed.POST("/auth/logout", deps.authHandler.Logout)
	authed.GET("/auth/me", deps.authHandler.Me)

	adminOnly := internalmiddleware.RequireRoles(models.RoleAdmin)
	staffOnly := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	users := authed.Group("/users")
	{
		users.GET("", adminOnly, deps.userHandler.List)
		users.POST("", adminOnly, internalmiddleware.Audit(deps.users, "CREATE", "user"), deps.userHandler.Create)
		users.GET("/:id", internalmiddleware.RBAC(string(models.RoleAdmin), "SELF"), deps.userHandler.Get)
		users.PUT("/:id", adminOnly, internalmiddleware.Audit(deps.users, "UPDATE", "user"), deps.userHandler.Update)
		users.DELETE("/:id", adminOnly, internalmiddleware.Audit(deps.users, "DELETE", "user"), deps.userHandler.Delete)
		users.GET("/:id/groups", internalmiddleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), "SELF"), deps.userHandler.Memberships)
	}

	groups := authed.Group("/groups")
	{
		groups.GET("", deps.groups.List)
		groups.POST("", adminOnly, deps.groups.Create)
		groups.GET("/:id", deps.groups.Get)
		groups.PUT("/:id", adminOnly, deps.groups.Update)
		groups.DELETE("/:id", adminOnly, deps.groups.Delete)
		groups.GET("/:id/students", staffOnly, deps.groups.ListStudents)
		groups.PUT("/:id/students/:student_id", staffOnly, deps.groups.AddStudent)
		groups.DELETE("/:id/students/:student_id", staffOnly, deps.groups.RemoveStudent)
		groups.GET("/:id/teachers", deps.groups.ListTeachers)
		groups.PUT("/:id/teachers/:user_id", adminOnly, deps.groups.AssignTeacher)
		groups.DELETE("/:id/teachers/:user_id", adminOnly, deps.groups.UnassignTeacher)
	}

	students := authed.Group("/students")
	students.Use(staffOnly)
	{
		students.GET("", deps.students.List)
		students.POST("", deps.students.Create)
		students.GET("/:id", deps.students.Get)
		students.PUT("/:id", deps.students.Update)
		students.DELETE("/:id", deps.students.Delete)
		students.GET("/:id/guardians", deps.students.ListGuardians)
		students.POST("/:id/guardians", deps.students.AddGuardian)
		students.DELETE("/:id/guardians/:user_id", deps.students.RemoveGuardian)
	}

	announcements := authed.Group("/announcements")
	{
		announcements.GET("", deps.announcements.List)
		announcements.POST("", staffOnly, deps.announcements.Create)
		announcements.GET("/history", staffOnly, deps.announcements.History)
		announcements.GET("/:id", deps.announcements.Get)
		announcements.PUT("/:id", staffOnly, deps.announcements.Update)
		announcements.DELETE("/:id", staffOnly, deps.announcements.Delete)
		announcements.POST("/:id/publish", staffOnly, deps.announcements.Publish)
		announcements.POST("/:id/archive", staffOnly, deps.announcements.Archive)
		announcements.POST("/:id/read", deps.announcements.MarkRead)
		announcements.POST("/:id/targets", staffOnly, deps.announcements.AddTarget)
		announcements.DELETE("/:id/targets/:target_id", staffOnly, deps.announcements.RemoveTarget)
	}

	media := authed.Group("/media")
	{
		media.GET("", deps.media.List)
		media.POST("", staffOnly, deps.media.Upload)
		media.GET("/:id", deps.media.Get)
		media.PUT("/:id", staffOnly, deps.media.Update)
		media.DELETE("/:id", staffOnly, deps.media.Delete)
		media.GET("/:id/download", deps.media.Download)
		media.GET("/:id/thumbnail", deps.media.Thumbnail)
		media.GET("/:id/downloads", staffOnly, deps.media.Downloads)
	}

	threads := authed.Group("/threads")
	{
		threads.GET("", deps.threads.List)
		threads.POST("", deps.threads.Create)
		threads.GET("/unread", deps.threads.Unread)
		threads.GET("/:id", deps.threads.Get)
		threads.GET("/:id/messages", deps.threads.Messages)
		threads.POST("/:id/messages", deps.threads.Send)
		threads.POST("/:id/read", deps.threads.MarkRead)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", deps.notifications.List)
		notifications.POST("", adminOnly, deps.notifications.Create)
		notifications.GET("/badge", deps.notifications.Badge)
		notifications.POST("/read-all", deps.notifications.MarkAllRead)
		notifications.GET("/:id", deps.notifications.Get)
		notifications.POST("/:id/read", deps.notifications.MarkRead)
		notifications.DELETE("/:id", deps.notifications.Delete)
	}
}
