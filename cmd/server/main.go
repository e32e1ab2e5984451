package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/study-hall/studyhall-school/internal/api/http"
	"github.com/study-hall/studyhall-school/internal/attempt"
	auth "github.com/study-hall/studyhall-school/internal/auth/middleware"
	"github.com/study-hall/studyhall-school/internal/config"
	"github.com/study-hall/studyhall-school/internal/db"
	"github.com/study-hall/studyhall-school/internal/grading"
	"github.com/study-hall/studyhall-school/internal/quiz"
	"github.com/study-hall/studyhall-school/internal/rbac"
	"github.com/study-hall/studyhall-school/internal/roster"
	"github.com/study-hall/studyhall-school/internal/storage"
)

func main() {
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if err := seedAdmin(ctx, dbh, cfg); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	catalog := quiz.NewSQLCatalog(dbh)
	rst := roster.NewSQLRoster(dbh)
	attempts := attempt.NewService(dbh, catalog, rst, grading.NewDefaultGrader())

	authSvc := auth.NewAuthService(cfg.JWTSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	bs, err := storage.NewFSStore(cfg.BlobBasePath, "/assets")
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Route("/assets", func(ar chi.Router) {
			api.MountAssets(ar, bs)
		})
	})

	// Protected API (JWT -> role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		// Role changes take effect immediately instead of at token expiry.
		pr.Use(auth.AttachRoleFromDB(dbh, true))

		// Quiz catalog
		pr.With(rbac.Require("quiz:create")).
			Post("/quizzes", api.UploadQuizHandler(catalog))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes", api.ListQuizzesHandler(catalog))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", api.GetQuizHandler(catalog))

		// Attempt lifecycle
		pr.With(rbac.Require("attempt:create")).
			Post("/quizzes/{quizID}/attempts", api.StartAttemptHandler(attempts))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(attempts))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(attempts))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/responses", api.SaveResponseHandler(attempts))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(attempts))

		// Manual grading
		pr.With(rbac.Require("attempt:grade")).
			Get("/attempts/{attemptID}/grading", api.GetAttemptGradingHandler(attempts))
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/grading", api.ApplyManualGradesHandler(attempts))

		// Subjects and enrollment
		pr.With(rbac.Require("subject:create")).
			Post("/subjects", api.CreateSubjectHandler(rst))
		pr.With(rbac.Require("quiz:view")).
			Get("/subjects", api.ListSubjectsHandler(rst))
		pr.With(rbac.Require("subject:enroll")).
			Post("/subjects/{subjectID}/enrollments", api.EnrollHandler(rst))
		pr.With(rbac.Require("subject:enroll")).
			Delete("/subjects/{subjectID}/enrollments/{userID}", api.UnenrollHandler(rst))
		pr.With(rbac.Require("subject:enroll")).
			Get("/subjects/{subjectID}/enrollments", api.ListEnrolledHandler(rst))

		// Users (teacher/admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))

		// Admin
		pr.With(rbac.Require("*")).
			Patch("/admin/users/{userID}/role", api.AdminUpdateUserRoleHandler(dbh))
		pr.With(rbac.Require("*")).
			Post("/admin/pii/export", api.HandleAdminPIIExport(dbh))
		pr.With(rbac.Require("*")).
			Post("/admin/pii/delete", api.HandleAdminPIIDelete(dbh, bs))
		pr.With(rbac.Require("*")).
			Get("/admin/audit", api.HandleAdminAuditSearch(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db down", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (db=%s, site=%s)", cfg.HTTPAddr, cfg.DBDriver, cfg.SiteID)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

// seedAdmin guarantees one admin login exists so a fresh install is usable.
func seedAdmin(ctx context.Context, dbh *sql.DB, cfg config.Config) error {
	var one int
	err := dbh.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE username=$1`, cfg.AdminUser).Scan(&one)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = dbh.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at)
		 VALUES ($1,$2,$3,'admin',$4)`,
		cfg.AdminUser, cfg.AdminUser, cfg.AdminPassHash, time.Now().Unix())
	return err
}
