package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/config"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/repository"
	"github.com/iliyamo/event-registration/internal/utils"
)

// UserLookup is the part of the user repository the login flow needs.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// AuthHandler signs organizers in to the admin view.
type AuthHandler struct {
	Cfg   config.Config
	Users UserLookup
}

func NewAuthHandler(cfg config.Config, u UserLookup) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Login: verify credentials and return an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body", "message": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "message": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return invalidCredentials(c)
		}
		slog.ErrorContext(ctx, "login lookup failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal server error"})
	}
	// Same answer for unknown, inactive and wrong password.
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return invalidCredentials(c)
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		slog.ErrorContext(ctx, "issue access token failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal server error"})
	}
	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me echoes the identity carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, _ := c.Get("user_id").(string)
	role, _ := c.Get("role").(string)
	return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "role": role})
}

func invalidCredentials(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials", "message": "invalid credentials"})
}
