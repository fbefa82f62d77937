// Package main runs the LMS HTTP server with WebSocket rooms and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reathuta/lms/config"
	"github.com/reathuta/lms/internal/assessment"
	"github.com/reathuta/lms/internal/auth"
	"github.com/reathuta/lms/internal/courses"
	"github.com/reathuta/lms/internal/middleware"
	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/internal/progress"
	"github.com/reathuta/lms/internal/realtime"
	"github.com/reathuta/lms/internal/worker"
	"github.com/reathuta/lms/pkg/database"
	"github.com/reathuta/lms/pkg/mailer"
	"github.com/reathuta/lms/pkg/queue"
	"github.com/reathuta/lms/pkg/redis"
	"github.com/reathuta/lms/pkg/response"
	"github.com/reathuta/lms/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := middleware.RegisterValidators(); err != nil {
		logger.Fatal("register validators", zap.Error(err))
	}

	ctx := context.Background()

	// Persistence
	var (
		courseStore   courses.Store
		progressStore progress.Store
		memProgress   *progress.MemoryStore
	)
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		courseStore, progressStore = courses.NewRepository(pool), progress.NewRepository(pool)
	default:
		memProgress = progress.NewMemoryStore()
		courseStore, progressStore = courses.NewMemoryStore(), memProgress
		logger.Warn("using in-memory storage; catalog and enrollments are lost on restart")
	}

	rdb, err := redis.FromConfig(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AssetsBucket:         cfg.AWS.AssetsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	// Realtime
	var hub *realtime.Hub
	if rdb != nil {
		redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, redisPubSub, redisPubSub)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	// Catalog and progress
	courseSvc := courses.NewService(courseStore, hub, logger)
	progressSvc := progress.NewService(progressStore, courseSvc, logger)
	courseSvc.SetEnrollments(progressSvc)
	if memProgress != nil {
		courseSvc.AfterDelete(memProgress.DeleteCourse)
	}
	if s3Client != nil {
		courseSvc.AfterDelete(func(ctx context.Context, id uuid.UUID) {
			if _, err := s3Client.DeleteCourseAssets(ctx, id); err != nil {
				logger.Warn("delete course assets failed", zap.String("course_id", id.String()), zap.Error(err))
			}
		})
	}
	if cfg.Storage.SeedCatalog {
		if n, err := courseSvc.Seed(ctx); err != nil {
			logger.Error("seed catalog", zap.Error(err))
		} else if n > 0 {
			logger.Info("seeded sample catalog", zap.Int("courses", n))
		}
	}

	var assets courses.AssetStore
	if s3Client != nil {
		assets = s3Client
	}
	courseHandler := courses.NewHandler(courseSvc, assets, logger)
	progressHandler := progress.NewHandler(progressSvc, courseSvc, courseSvc, logger)

	// Assessment
	registry := assessment.NewRegistry(logger)
	quizHandler := assessment.NewHandler(registry, courseSvc, progressSvc, logger)

	// Login: codes in Redis and mail through the job queue when Redis is up,
	// otherwise in memory with inline delivery.
	var (
		codeStore  auth.CodeStore
		memCodes   *auth.MemoryCodeStore
		codeSender auth.CodeSender
		processor  *worker.EmailProcessor
	)
	mail := mailer.New(cfg.Email, logger)
	if rdb != nil {
		jobQueue := queue.NewQueue(rdb.Client, logger)
		codeStore, codeSender = auth.NewRedisCodeStore(rdb.Client), jobQueue
		processor = worker.NewEmailProcessor(mail, jobQueue, logger)
	} else {
		memCodes = auth.NewMemoryCodeStore()
		codeStore, codeSender = memCodes, mail
	}
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	otp := auth.NewOTP(codeStore, time.Duration(cfg.OTP.TTLMinutes)*time.Minute, logger)
	authHandler := auth.NewHandler(otp, jwtService, codeSender, cfg.OTP.ExposeCode, logger)
	if cfg.OTP.ExposeCode {
		logger.Warn("OTP_EXPOSE_CODE is on: login codes are returned to the requester and do not prove email ownership")
	}

	// Housekeeping
	scheduler := cron.New()
	idle := time.Duration(cfg.Assessment.SessionIdleMinutes) * time.Minute
	if _, err := scheduler.AddFunc(cfg.Assessment.SweepSchedule, func() { registry.SweepIdle(idle) }); err != nil {
		logger.Fatal("schedule session sweep", zap.Error(err))
	}
	if memCodes != nil {
		if _, err := scheduler.AddFunc(cfg.Assessment.SweepSchedule, func() {
			if n := memCodes.Sweep(); n > 0 {
				logger.Debug("swept expired login codes", zap.Int("count", n))
			}
		}); err != nil {
			logger.Fatal("schedule code sweep", zap.Error(err))
		}
	}
	scheduler.Start()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth/2fa")
	{
		authGroup.POST("/request", authHandler.RequestCode)
		authGroup.POST("/verify", authHandler.VerifyCode)
	}

	// Protected API (verified JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/me", authHandler.Me)

		// Catalog
		api.GET("/courses", courseHandler.List)
		api.GET("/courses/:id", courseHandler.Get)
		api.GET("/courses/:id/lessons/:lessonId", courseHandler.GetLesson)

		admin := api.Group("", middleware.RequireRole(models.RoleAdmin))
		admin.POST("/courses", courseHandler.Create)
		admin.PATCH("/courses/:id", courseHandler.Update)
		admin.DELETE("/courses/:id", courseHandler.Delete)
		admin.POST("/courses/:id/lessons", courseHandler.AddLesson)
		admin.DELETE("/courses/:id/lessons/:lessonId", courseHandler.DeleteLesson)
		admin.POST("/courses/:id/assets/upload-url", courseHandler.UploadURL)
		admin.POST("/courses/:id/assets", courseHandler.UploadAsset)

		// Enrollment and progress
		api.POST("/courses/:id/enroll", progressHandler.Enroll)
		api.GET("/courses/:id/progress", progressHandler.Progress)
		api.POST("/courses/:id/lessons/:lessonId/complete", progressHandler.CompleteLesson)
		api.GET("/enrollments", progressHandler.List)

		// Quiz sessions
		api.POST("/courses/:id/lessons/:lessonId/quiz", quizHandler.Start)
		api.GET("/quiz-sessions/:id", quizHandler.Get)
		api.PUT("/quiz-sessions/:id/answers", quizHandler.Answer)
		api.POST("/quiz-sessions/:id/navigate", quizHandler.Navigate)
		api.POST("/quiz-sessions/:id/violations", quizHandler.Violation)
		api.POST("/quiz-sessions/:id/submit", quizHandler.Submit)
		api.POST("/quiz-sessions/:id/retake", quizHandler.Retake)
		api.POST("/quiz-sessions/:id/finalize", quizHandler.Finalize)
		api.DELETE("/quiz-sessions/:id", quizHandler.Discard)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", middleware.JWTQuery(jwtService), realtime.ServeWs(hub, courseSvc, quizHandler.FocusLost, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (login code emails)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if processor != nil {
		go processor.Run(workerCtx)
		logger.Info("email worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	<-scheduler.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
