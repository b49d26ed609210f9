package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"github.com/archstudio/intake/config"
	"github.com/archstudio/intake/internal/analysis"
	"github.com/archstudio/intake/internal/api/handlers"
	"github.com/archstudio/intake/internal/api/middleware"
	"github.com/archstudio/intake/internal/api/routes"
	"github.com/archstudio/intake/internal/cache"
	"github.com/archstudio/intake/internal/checklist"
	"github.com/archstudio/intake/internal/logger"
	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/pipeline"
	"github.com/archstudio/intake/internal/providers/llm"
	"github.com/archstudio/intake/internal/providers/stt"
	mongorepo "github.com/archstudio/intake/internal/repositories/mongo"
	pgrepo "github.com/archstudio/intake/internal/repositories/postgres"
	"github.com/archstudio/intake/internal/services"
	"github.com/archstudio/intake/internal/storage"
	"github.com/archstudio/intake/internal/workers"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	settings, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	log.Info("MongoDB connected")
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Fatal("MongoDB index error")
	}

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	log.Info("PostgreSQL connected")
	if err := config.MigratePostgres(log); err != nil {
		log.WithError(err).Fatal("PostgreSQL migration error")
	}

	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var gcpOpts []option.ClientOption
	if settings.CredentialsFile != "" {
		gcpOpts = append(gcpOpts, option.WithCredentialsFile(settings.CredentialsFile))
	}

	uploader, err := storage.NewGCSUploader(ctx, settings.Bucket, settings.PublicObjects, gcpOpts...)
	if err != nil {
		log.WithError(err).Fatal("GCS init error")
	}
	defer uploader.Close()

	speech, err := stt.NewGoogleSpeech(ctx, settings.Language, gcpOpts...)
	if err != nil {
		log.WithError(err).Fatal("Speech init error")
	}
	defer speech.Close()

	gemini, err := llm.NewVertexGemini(ctx, settings.GCPProject, settings.GCPLocation, settings.Model, analysis.SystemPrompt, gcpOpts...)
	if err != nil {
		log.WithError(err).Fatal("Vertex AI init error")
	}
	defer gemini.Close()

	templates, err := checklist.LoadTemplates(settings.TemplatesPath)
	if err != nil {
		log.WithError(err).Fatal("checklist templates error")
	}

	// Repositories and services
	runRepo := mongorepo.NewRunRepo(config.MongoDatabase())
	segmentRepo := mongorepo.NewSegmentRepo(config.MongoDatabase())

	queue := services.NewRedisRunQueue(config.RedisClient)
	runSvc := services.NewRunService(runRepo, queue, settings.RunLockTTL)
	checklistSvc := services.NewChecklistService(
		pgrepo.NewChecklistRepo(config.PostgresDB),
		templates,
		cache.NewRedisCache(config.RedisClient, "intake"),
		log.WithField("component", "checklist"),
	)
	recordingSvc := services.NewRecordingService(
		pgrepo.NewRecordingRepo(config.PostgresDB),
		pgrepo.NewDocumentRepo(config.PostgresDB),
		checklistSvc,
	)
	learningSvc := services.NewLearningService(pgrepo.NewLearningRepo(config.PostgresDB))

	// Pipeline
	transcoder := media.NewFFmpeg(settings.FFmpegPath, settings.Media)
	splitter := media.NewSplitter(settings.Media, transcoder, settings.StagingDir, log.WithField("component", "splitter"))
	p := pipeline.New(pipeline.Deps{
		Splitter:    splitter,
		Uploader:    uploader,
		Transcriber: speech,
		Analyzer:    analysis.NewAnalyzer(gemini, log.WithField("component", "analysis")),
		Persistence: recordingSvc,
		Log:         log,
	})

	pool := &workers.PipelineWorkerPool{
		Redis:       config.RedisClient,
		NumWorkers:  settings.Workers,
		Runs:        runSvc,
		Checklists:  checklistSvc,
		Learnings:   learningSvc,
		Segments:    segmentRepo,
		Pipeline:    p,
		Language:    settings.Language,
		Locale:      settings.Locale,
		WorkDir:     settings.StagingDir,
		CancelCheck: settings.CancelCheck,
		Logger:      log,
	}
	if err := pool.Start(ctx); err != nil {
		log.WithError(err).Fatal("worker pool error")
	}

	// HTTP
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	feed := services.NewRedisProgressFeed(config.RedisClient)
	ws := handlers.NewWSHandler(runSvc, feed, settings.StagingDir, settings.Media.LiveChunkCapBytes, log.WithField("component", "ws"))
	routes.RegisterRoutes(r, routes.Deps{
		Auth: middleware.JWTConfig{
			Secret:   settings.JWTSecret,
			Issuer:   settings.JWTIssuer,
			Audience: settings.JWTAudience,
		},
		Recordings: handlers.NewRecordingHandler(runSvc, recordingSvc, settings.StagingDir, settings.MaxUploadBytes),
		Runs:       handlers.NewRunHandler(runSvc),
		Checklists: handlers.NewChecklistHandler(checklistSvc),
		Learnings:  handlers.NewLearningHandler(learningSvc),
		WS:         ws,
	})

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", settings.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown error")
	}
}
