package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"log/slog"

	"github.com/worklens/worklens/internal/dates"
	"github.com/worklens/worklens/internal/models"
	"github.com/worklens/worklens/internal/storage"
	"github.com/worklens/worklens/internal/summarizer"
)

// Runner triggers one batch aggregation over a date range.
type Runner interface {
	Run(ctx context.Context, start, end time.Time) ([]models.DailySummary, error)
}

// RunHandler serves run triggering and inspection. The repository and narrator
// are optional; without a database runs execute but are not recorded.
type RunHandler struct {
	runner   Runner
	repo     *storage.RunRepository
	narrator summarizer.Narrator
	logger   *slog.Logger
}

// NewRunHandler constructs the handler.
func NewRunHandler(runner Runner, repo *storage.RunRepository, narrator summarizer.Narrator, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runner:   runner,
		repo:     repo,
		narrator: narrator,
		logger:   logger,
	}
}

type createRunRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Narrate   bool   `json:"narrate,omitempty"`
}

type createRunResponse struct {
	Run        *storage.Run          `json:"run,omitempty"`
	Summaries  []models.DailySummary `json:"summaries"`
	Narratives map[string]string     `json:"narratives,omitempty"`
}

// Create triggers an aggregation run
func (h *RunHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	start, err := dates.ParseDay(req.StartDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	end, err := dates.ParseDay(req.EndDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summaries, err := h.runner.Run(r.Context(), start, end)
	if err != nil {
		h.logger.Error("run failed", "error", err)
		writeFault(w, err)
		return
	}

	resp := createRunResponse{Summaries: summaries}

	if h.repo != nil {
		run, err := h.repo.Store(r.Context(), start, end, summaries)
		if err != nil {
			h.logger.Error("failed to store run", "error", err)
			writeFault(w, err)
			return
		}
		resp.Run = &run
	}

	if req.Narrate && h.narrator != nil {
		resp.Narratives = make(map[string]string, len(summaries))
		for _, summary := range summaries {
			narrative, err := h.narrator.Narrate(r.Context(), summary)
			if err != nil {
				// Narration is decoration; a provider failure never fails the run.
				h.logger.Warn("narration failed", "date", dates.FormatDay(summary.Date), "error", err)
				continue
			}
			resp.Narratives[dates.FormatDay(summary.Date)] = narrative
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// List returns recent runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.repo == nil {
		http.Error(w, "Run persistence is not configured", http.StatusNotImplemented)
		return
	}

	runs, err := h.repo.List(r.Context(), 50)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// Summaries returns stored summaries for one calendar day
func (h *RunHandler) Summaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.repo == nil {
		http.Error(w, "Run persistence is not configured", http.StatusNotImplemented)
		return
	}

	date, err := dates.ParseDay(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summaries, err := h.repo.SummariesForDate(r.Context(), date)
	if err != nil {
		h.logger.Error("failed to query summaries", "error", err)
		http.Error(w, "Failed to query summaries", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}
