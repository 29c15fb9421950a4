package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gateway/internal/api/dto"
	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/service"
	apperrors "github.com/spec-kit/auth-gateway/pkg/util"
)

// AuthHandlerConfig controls how credentials are handed back to clients.
type AuthHandlerConfig struct {
	RefreshCookie string
	SecureCookie  bool
}

// AuthHandler exposes login, registration and identity endpoints.
type AuthHandler struct {
	auth *service.AuthService
	cfg  AuthHandlerConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{auth: authService, cfg: cfg}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	pair, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	if h.cfg.RefreshCookie != "" {
		c.Cookie(&fiber.Cookie{
			Name:     h.cfg.RefreshCookie,
			Value:    pair.RefreshToken,
			Path:     "/",
			Expires:  pair.RefreshExpiresAt,
			HTTPOnly: true,
			Secure:   h.cfg.SecureCookie,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}

	return c.JSON(fiber.Map{
		"data": dto.CredentialPairResponse{
			AccessToken:      pair.AccessToken,
			RefreshToken:     pair.RefreshToken,
			AccessExpiresAt:  pair.AccessExpiresAt,
			RefreshExpiresAt: pair.RefreshExpiresAt,
		},
	})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.SubjectResponse{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	ac, ok := auth.AuthContextFromFiber(c)
	if !ok {
		return apperrors.NewAuthRequired("re-authenticate")
	}
	return c.JSON(fiber.Map{"data": ac})
}
