package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/auth"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/config"
)

// AuthHandler issues JWTs for the admin events API.
type AuthHandler struct {
	cfg       config.AuthConfig
	expiresIn time.Duration
	logger    *slog.Logger
}

func NewAuthHandler(log *slog.Logger, cfg config.AuthConfig) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	expiresIn, err := time.ParseDuration(cfg.JWTExpiresIn)
	if err != nil || expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}
	return &AuthHandler{
		cfg:       cfg,
		expiresIn: expiresIn,
		logger:    log.With(slog.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
	e.POST("/auth/refresh", h.Refresh)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if h.cfg.AdminPasswordHash == "" {
		return echo.NewHTTPError(http.StatusForbidden, "login disabled")
	}
	if req.Username != h.cfg.AdminUsername {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.cfg.AdminPasswordHash), []byte(req.Password)); err != nil {
		h.logger.Warn("login rejected", slog.String("username", req.Username))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, expiresAt, err := auth.GenerateToken(req.Username, h.cfg.JWTSecret, h.expiresIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "token generation failed")
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt.Unix()})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	token, expiresAt, err := auth.RefreshTokenFromContext(c, h.cfg.JWTSecret, h.expiresIn)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt.Unix()})
}
