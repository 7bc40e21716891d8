package api

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/worklens/worklens/internal/auth"
	"github.com/worklens/worklens/internal/config"
)

// AuthHandler serves login and token validation.
type AuthHandler struct {
	cfg          config.AuthConfig
	passwordHash string
	logger       *slog.Logger
}

// NewAuthHandler constructs the handler, hashing the configured admin password
// once so login comparisons never touch the plaintext.
func NewAuthHandler(cfg config.AuthConfig, logger *slog.Logger) (*AuthHandler, error) {
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{cfg: cfg, passwordHash: hash, logger: logger}, nil
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login issues a session token for the admin user
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !auth.CheckPassword(req.Password, h.passwordHash) {
		h.logger.Warn("rejected login attempt")
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken("admin", h.cfg.JWTSecret, h.cfg.TokenDuration)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{Token: token})
}

// Validate confirms the presented token is still good
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
}
