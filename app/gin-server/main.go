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
	"github.com/sirupsen/logrus"

	"github.com/yoockh/xiaomian/config"
	"github.com/yoockh/xiaomian/internal/api/handlers"
	"github.com/yoockh/xiaomian/internal/api/middleware"
	"github.com/yoockh/xiaomian/internal/api/routes"
	"github.com/yoockh/xiaomian/internal/auth"
	"github.com/yoockh/xiaomian/internal/cache"
	"github.com/yoockh/xiaomian/internal/logger"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/providers/llm"
	"github.com/yoockh/xiaomian/internal/providers/stt"
	mongorepo "github.com/yoockh/xiaomian/internal/repositories/mongo"
	pgrepo "github.com/yoockh/xiaomian/internal/repositories/postgres"
	"github.com/yoockh/xiaomian/internal/services"
	"github.com/yoockh/xiaomian/internal/storage"
)

type fileStore interface {
	storage.Uploader
	storage.Signer
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	// PostgreSQL
	db, err := config.InitPostgres(cfg.PostgresURI, log)
	if err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	log.Info("PostgreSQL connected")
	if cfg.AutoMigrate {
		if err := config.Migrate(ctx, db, cfg.VectorDimension, log); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
	}

	titles := pgrepo.NewTitleRepo(db)
	if seeded, err := titles.SeedIfEmpty(ctx, models.DefaultTitleBenefits()); err != nil {
		log.WithError(err).Fatal("seed title benefits")
	} else if seeded {
		log.Info("title benefits seeded")
	}

	// MongoDB: LLM call audit log, optional
	var calls mongorepo.LLMCallRepository
	if cfg.MongoURI != "" {
		mc, err := config.InitMongo(ctx, cfg.MongoURI)
		if err != nil {
			log.WithError(err).Fatal("MongoDB init error")
		}
		defer func() { _ = mc.Disconnect(context.Background()) }()

		mdb := mc.Database(cfg.MongoDB)
		if err := config.EnsureMongoIndexes(ctx, mdb); err != nil {
			log.WithError(err).Warn("mongo index setup failed")
		}
		calls = mongorepo.NewLLMCallRepo(mdb)
		log.Info("MongoDB connected")
	}

	// Redis: cache, optional
	var c cache.Cache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb, err := config.InitRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, caching disabled")
		} else {
			defer rdb.Close()
			c = cache.NewRedisCache(rdb)
			log.Info("Redis connected")
		}
	}

	provider, err := newLLMProvider(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("LLM provider init error")
	}
	defer provider.Close()

	var speech stt.Provider
	if cfg.SpeechEnabled {
		gs, err := stt.NewGoogleSpeech(ctx)
		if err != nil {
			log.WithError(err).Warn("speech client unavailable, transcription disabled")
		} else {
			defer gs.Close()
			speech = gs
		}
	}

	files, closeFiles, err := newFileStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("file storage init error")
	}
	defer closeFiles()

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenExpiresIn)
	if err != nil {
		log.WithError(err).Fatal("token issuer init error")
	}

	// Repositories
	users := pgrepo.NewUserRepo(db)
	tasks := pgrepo.NewTaskRepo(db)
	notes := pgrepo.NewTaskAnnotationRepo(db)
	interviews := pgrepo.NewInterviewRepo(db)
	chats := pgrepo.NewChatRepo(db)
	resumes := pgrepo.NewResumeRepo(db)
	prefs := pgrepo.NewPreferenceRepo(db)
	knowledge := pgrepo.NewKnowledgeRepo(db)

	// Services
	gw := services.NewLLMGateway(provider, calls, log, cfg.LLMTimeout)
	ai := services.NewInterviewAI(gw, log)
	gen := services.NewTaskGenerator(tasks, gw, log)

	authSvc := services.NewAuthService(users, titles, c, cfg.CacheTTL, tokens, log)
	taskSvc := services.NewTaskService(tasks, notes, users, gen, ai, log)
	interviewSvc := services.NewInterviewService(interviews, users, ai, gen, speech, cfg.SpeechLanguage, log)
	chatSvc := services.NewChatService(chats, users, resumes, prefs, interviews, tasks, gw, log)
	resumeSvc := services.NewResumeService(resumes, prefs, files, files, gw, log)
	ragSvc := services.NewRAGService(knowledge, users, c, gw, ai, log, services.RAGConfig{
		TopK:      cfg.TopKRetrieval,
		CacheTTL:  cfg.CacheTTL,
		VectorDim: cfg.VectorDimension,
	})
	personalSvc := services.NewPersonalizationService(prefs, chats, gw, log)

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.CORS(cfg.CORSOrigins))

	routes.RegisterRoutes(r, routes.Deps{
		Authn:     authSvc,
		System:    handlers.NewSystemHandler(cfg.Version),
		Auth:      handlers.NewAuthHandler(authSvc),
		Task:      handlers.NewTaskHandler(taskSvc),
		Interview: handlers.NewInterviewHandler(interviewSvc, cfg.MaxUploadBytes),
		Chat:      handlers.NewChatHandler(chatSvc),
		Resume:    handlers.NewResumeHandler(resumeSvc, cfg.MaxUploadBytes),
		AI:        handlers.NewAIHandler(ragSvc, personalSvc),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "llm": provider.Name(), "model": provider.Model()}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func newLLMProvider(ctx context.Context, cfg *config.AppConfig) (llm.Provider, error) {
	if cfg.LLMProvider == "vertex" {
		return llm.NewVertexGemini(ctx, cfg.VertexProject, cfg.VertexRegion, cfg.VertexModel)
	}
	return llm.NewOpenAICompat(cfg.LLMAPIBase, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout), nil
}

// newFileStore prefers GCS when a bucket is configured and falls back to the
// local upload directory.
func newFileStore(ctx context.Context, cfg *config.AppConfig) (fileStore, func(), error) {
	if cfg.GCSBucket != "" {
		g, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { _ = g.Close() }, nil
	}
	l, err := storage.NewLocalUploader(cfg.UploadDir)
	if err != nil {
		return nil, nil, err
	}
	return l, func() {}, nil
}
