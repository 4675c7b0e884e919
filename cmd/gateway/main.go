package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/studiva/studiva/internal/api"
	"github.com/studiva/studiva/internal/attempt"
	auth "github.com/studiva/studiva/internal/auth/middleware"
	"github.com/studiva/studiva/internal/config"
	"github.com/studiva/studiva/internal/db"
	"github.com/studiva/studiva/internal/proctor"
	"github.com/studiva/studiva/internal/quiz"
	"github.com/studiva/studiva/internal/rbac"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	database, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer database.Close()

	store := quiz.NewSQLStore(database, cfg.DBDriver)

	var loader quiz.Loader = store
	var cache api.Invalidator
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		rc := quiz.NewRedisCache(rdb, store, cfg.QuizCacheTTL)
		loader = rc
		cache = rc
		log.Printf("quiz cache enabled: %s (ttl %s)", cfg.RedisAddr, cfg.QuizCacheTTL)
	}

	events := proctor.NewEventRepo(database)
	mgr := attempt.NewManager(loader, store, events)
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL)
	checker := rbac.NewChecker(nil)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := database.PingContext(req.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Post("/auth/login", auth.LoginHandler(authSvc, database))

	r.Group(func(r chi.Router) {
		r.Use(auth.JWTMiddleware(authSvc))

		r.With(rbac.Require("quiz:view")).Get("/quizzes/{quizID}", api.GetQuizHandler(loader, checker))
		r.With(rbac.Require("quiz:view")).Get("/classes/{classID}/quizzes", api.ListClassQuizzesHandler(store, checker))
		r.With(rbac.Require("quiz:create")).Post("/quizzes", api.CreateQuizHandler(store))
		r.With(rbac.Require("quiz:update")).Put("/quizzes/{quizID}/settings", api.UpdateQuizSettingsHandler(store, cache))

		r.With(rbac.Require("attempt:start")).Post("/attempts", api.StartAttemptHandler(mgr))
		r.With(rbac.Require("attempt:start")).Get("/attempts/{sessionID}", api.GetAttemptHandler(mgr))
		r.With(rbac.Require("attempt:answer")).Post("/attempts/{sessionID}/answers", api.RecordAnswerHandler(mgr))
		r.With(rbac.Require("attempt:answer")).Post("/attempts/{sessionID}/events", api.RecordEventHandler(mgr))
		r.With(rbac.Require("attempt:submit")).Post("/attempts/{sessionID}/submit", api.SubmitAttemptHandler(mgr))

		r.With(rbac.Require("attempt:submit")).Post("/results/submit", api.SubmitResultHandler(store))
		r.With(rbac.RequireAny("result:view-own", "result:view-all")).Get("/results/history", api.ResultHistoryHandler(store, checker))
		r.With(rbac.RequireAny("result:view-own", "result:view-all")).Get("/results/{resultID}", api.GetResultHandler(store, checker))
		r.With(rbac.RequireAny("result:view-own", "result:view-all")).Get("/results/{resultID}/answers", api.ListAnswersHandler(store, checker))

		r.With(rbac.Require("result:grade")).Get("/results/{resultID}/events", api.ProctorLogHandler(store, events, checker))
		r.With(rbac.Require("result:grade")).Get("/results/{resultID}/essay-submissions", api.ListEssaySubmissionsHandler(store))
		r.With(rbac.Require("result:grade")).Put("/results/essay-submissions/{submissionID}/grade", api.GradeEssayHandler(store))
		r.With(rbac.Require("result:grade")).Post("/results/{resultID}/finalize-grading", api.FinalizeGradingHandler(store))

		r.With(rbac.Require("weights:view")).Get("/classes/{classID}/quiz-weights", api.GetWeightsHandler(store))
		r.With(rbac.Require("weights:set")).Post("/classes/{classID}/quiz-weights", api.SetWeightsHandler(store))
		r.With(rbac.Require("weights:view")).Get("/classes/{classID}/averages", api.ClassAveragesHandler(store))

		r.With(rbac.RequireAny("progress:view-own", "progress:view-all")).Get("/progress/{userID}", api.ProgressHandler(store, checker))

		r.With(rbac.Require("users:bulk_upsert")).Post("/users/bulk", api.BulkUpsertUsersHandler(database))
		r.With(rbac.Require("users:list")).Get("/users", api.ListUsersHandler(database))
		r.With(rbac.Require("user:change_password")).Post("/users/change-password", api.ChangePasswordHandler(database))
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("gateway listening on %s (db %s)", cfg.HTTPAddr, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
