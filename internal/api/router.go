package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/worklens/worklens/internal/auth"
	"github.com/worklens/worklens/internal/config"
	"github.com/worklens/worklens/internal/storage"
	"github.com/worklens/worklens/internal/summarizer"
)

// SetupRoutes configures all API routes. db and narrator may be nil.
func SetupRoutes(mux *http.ServeMux, runner Runner, db *sql.DB, narrator summarizer.Narrator, authConfig config.AuthConfig, logger *slog.Logger) error {
	var repo *storage.RunRepository
	if db != nil {
		repo = storage.NewRunRepository(db)
	}

	runHandler := NewRunHandler(runner, repo, narrator, logger)
	authHandler, err := NewAuthHandler(authConfig, logger)
	if err != nil {
		return err
	}

	authMiddleware := auth.Middleware(authConfig)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.Handle("/api/auth/validate", authMiddleware(http.HandlerFunc(authHandler.Validate)))

	// Run routes: triggering a run requires auth, reading does not
	mux.Handle("/api/runs", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			authMiddleware(http.HandlerFunc(runHandler.Create)).ServeHTTP(w, r)
			return
		}
		runHandler.List(w, r)
	}))
	mux.HandleFunc("/api/summaries", runHandler.Summaries)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if db != nil {
			if err := storage.HealthCheck(r.Context(), db); err != nil {
				logger.Error("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				status["status"] = "degraded"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})

	return nil
}
