package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/preicfes/preicfes-lms/internal/api/http"
	authmw "github.com/preicfes/preicfes-lms/internal/auth/middleware"

	"github.com/preicfes/preicfes-lms/internal/achievements"
	"github.com/preicfes/preicfes-lms/internal/config"
	"github.com/preicfes/preicfes-lms/internal/db"
	"github.com/preicfes/preicfes-lms/internal/enrollment"
	"github.com/preicfes/preicfes-lms/internal/exam"
	"github.com/preicfes/preicfes-lms/internal/logging"
	"github.com/preicfes/preicfes-lms/internal/notify"
	"github.com/preicfes/preicfes-lms/internal/progress"
	"github.com/preicfes/preicfes-lms/internal/quiz"
	"github.com/preicfes/preicfes-lms/internal/rbac"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger, err := logging.New(string(cfg.Mode))
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer logger.Sync()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		logger.Fatal("db open failed", "err", err)
	}
	if cfg.AdminPassHash != "" {
		if err := db.EnsureAdminUser(ctx, dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
			logger.Fatal("admin bootstrap failed", "err", err)
		}
	}

	// --- Stores and services ---
	progStore := progress.NewSQLStore(dbh, cfg.DBDriver)
	examStore := exam.NewSQLStore(dbh, cfg.DBDriver)
	outbox := notify.NewSQLOutbox(dbh)

	generator := quiz.NewGenerator(examStore, outbox, logger)
	aggregator := progress.NewAggregator(progStore, generator, logger)
	gate := enrollment.NewSQLGate(dbh)
	achiever := achievements.NewSQLChecker(dbh)
	tracker := progress.NewTracker(progStore, gate, aggregator, achiever, logger)
	resolver := exam.NewResolver(examStore)

	authSvc := authmw.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", authmw.LoginHandler(authSvc, dbh))
	}

	// Protected API (JWT -> subject+role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(authSvc))

		pr.With(rbac.Require("progress:write")).
			Post("/lesson-progress/{lessonID}", api.RecordLessonProgressHandler(tracker))

		pr.With(rbac.Require("quiz:view")).
			Get("/modules/{moduleID}/quizzes", api.ListModuleQuizzesHandler(examStore, progStore))
		pr.With(rbac.Require("quiz:generate")).
			Post("/modules/{moduleID}/quizzes", api.GenerateModuleQuizHandler(generator, examStore, progStore))

		pr.With(rbac.Require("exam:view-available")).
			Get("/exams/available", api.AvailableExamsHandler(resolver))

		pr.With(rbac.Require("progress:view-all")).
			Get("/users/{userID}/progress", api.StudentProgressHandler(progStore))

		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertStudentsHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	logger.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver)
	logger.Fatal("server exited", "err", http.ListenAndServe(cfg.HTTPAddr, r))
}
