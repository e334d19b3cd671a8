package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/mindengage-learn/internal/api/http"
	auth "github.com/mind-engage/mindengage-learn/internal/auth/middleware"
	"github.com/mind-engage/mindengage-learn/internal/config"
	"github.com/mind-engage/mindengage-learn/internal/db"
	"github.com/mind-engage/mindengage-learn/internal/grading"
	"github.com/mind-engage/mindengage-learn/internal/learning"
	"github.com/mind-engage/mindengage-learn/internal/logger"
	rbac "github.com/mind-engage/mindengage-learn/internal/rbac"
	storage "github.com/mind-engage/mindengage-learn/internal/storage"
	syncx "github.com/mind-engage/mindengage-learn/internal/sync"
	"github.com/mind-engage/mindengage-learn/internal/views"
)

func main() {
	cfg := config.FromEnv()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// --- Store ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		store  learning.Store
		dbh    *sql.DB
		users  *auth.SQLUsers
		events *syncx.EventRepo
	)
	if cfg.DBDriver == "memory" {
		store = learning.NewMemoryStore()
	} else {
		dbh, err = db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			log.Fatal("db open failed", "driver", cfg.DBDriver, "error", err)
		}
		defer dbh.Close()
		store = learning.NewSQLStore(dbh)
		users = auth.NewSQLUsers(dbh)
		events = syncx.NewEventRepo(dbh, cfg.SiteID)
	}

	// --- View cache ---
	var cache views.Cache = views.NewMemoryCache(cfg.ViewCacheTTL)
	if cfg.RedisAddr != "" {
		rc, err := views.NewRedisCache(ctx, log, cfg.RedisAddr, cfg.RedisChannel, cfg.ViewCacheTTL)
		if err != nil {
			log.Fatal("redis view cache", "addr", cfg.RedisAddr, "error", err)
		}
		defer rc.Close()
		cache = rc
	}
	loader := views.NewLoader(cache)

	opts := []learning.RecorderOption{learning.WithInvalidator(loader)}
	if events != nil {
		opts = append(opts, learning.WithEvents(events))
	}
	rec := learning.NewRecorder(store, log, opts...)
	grader := grading.NewGrader()

	bs, err := storage.NewFSStore(cfg.BlobBasePath, "/assets")
	if err != nil {
		log.Fatal("blob store", "path", cfg.BlobBasePath, "error", err)
	}

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		var accounts auth.UserStore // nil in memory mode: admin only
		if users != nil {
			accounts = users
		}
		admin := auth.Admin{Username: cfg.AdminUser, PasswordHash: cfg.AdminPassHash}
		r.Post("/auth/login", auth.LoginHandler(authSvc, accounts, admin))
	}

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require(rbac.PermProgressSave)).
			Post("/activities/{activityID}/progress", api.SaveProgressHandler(rec, store, grader))
		pr.With(rbac.Require(rbac.PermActivityView)).
			Get("/activities/{activityID}", api.GetActivityHandler(store, loader))
		pr.With(rbac.Require(rbac.PermActivityManage)).
			Put("/activities/{activityID}", api.PutActivityHandler(store))

		pr.With(rbac.Require(rbac.PermCourseView)).
			Get("/courses", api.ListCoursesHandler(store))
		pr.With(rbac.Require(rbac.PermCourseView)).
			Get("/courses/{courseID}", api.GetCourseHandler(store, loader))
		pr.With(rbac.Require(rbac.PermCourseManage)).
			Put("/courses/{courseID}", api.PutCourseHandler(store))

		pr.With(rbac.Require(rbac.PermDashboardView)).
			Get("/dashboard", api.DashboardHandler(store, loader))
		pr.With(rbac.Require(rbac.PermDashboardView)).
			Get("/progress", api.ProgressHandler(store, loader))

		pr.Route("/assets", func(ar chi.Router) {
			api.MountAssets(ar, store, bs)
		})

		// Local accounts and the event feed need the SQL backend.
		if users != nil {
			checker := rbac.NewChecker(nil)
			pr.With(rbac.Require(rbac.PermUsersManage)).
				Put("/users", api.BulkUpsertUsersHandler(users))
			pr.With(checker.RequireAny(rbac.PermUsersList, rbac.PermUsersManage)).
				Get("/users", api.ListUsersHandler(users))
			pr.With(rbac.Require(rbac.PermChangePassword)).
				Post("/users/change-password", api.ChangePasswordHandler(users))
			pr.With(rbac.Require(rbac.PermEventsView)).
				Get("/events", api.EventsHandler(events))
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if dbh != nil {
			pctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := dbh.PingContext(pctx); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver, "redis", cfg.RedisAddr != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", "error", err)
	}
}
