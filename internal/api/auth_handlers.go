package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/accioai/accio/internal/auth"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	config auth.Config
	logger *slog.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(config auth.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		config: config,
		logger: logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if !h.config.LoginEnabled() || !h.config.VerifyAdminPassword(req.Password) {
		h.logger.Warn("failed login attempt", "ip", r.RemoteAddr)
		writeError(w, h.logger, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
		return
	}

	expiresAt := time.Now().Add(h.config.TokenDuration)
	token, err := auth.GenerateToken(auth.AdminUserID, h.config.JWTSecret, h.config.TokenDuration)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	h.logger.Info("successful login", "ip", r.RemoteAddr)
	writeData(w, h.logger, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}
