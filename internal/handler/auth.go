package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/logging"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc *service.AuthService
	log *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

// Login godoc
// @Summary Login
// @Description Sets the access and refresh cookies. Only failed attempts count toward the login rate limit.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Username and password"
// @Success 200 {object} model.AuthUserResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 429 {object} model.RateLimitErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Username and password are required", CodeValidation)
		return
	}

	session, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	setAuthCookies(c, h.svc, session)
	c.JSON(http.StatusOK, model.AuthUserResponse{
		Success: true,
		User:    session.User,
	})
}

// Refresh godoc
// @Summary Refresh session
// @Description Rotates the refresh cookie (grubtech_refresh). A refresh token is accepted once.
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthUserResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.svc.RefreshCookie().Name)
	if refreshToken == "" {
		writeError(c, http.StatusUnauthorized, "Refresh token required", CodeNoRefreshToken)
		return
	}

	session, err := h.svc.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			clearAuthCookies(c, h.svc)
		}
		h.writeAuthError(c, err)
		return
	}

	setAuthCookies(c, h.svc, session)
	c.JSON(http.StatusOK, model.AuthUserResponse{
		Success: true,
		User:    session.User,
	})
}

// Logout godoc
// @Summary Logout
// @Description Revokes the refresh token (if present) and clears both cookies.
// @Tags auth
// @Produce json
// @Success 200 {object} model.LogoutResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.svc.RefreshCookie().Name)
	if err := h.svc.Logout(c.Request.Context(), refreshToken); err != nil {
		h.log.Warn("revoke refresh token on logout", logging.Err(err))
	}
	clearAuthCookies(c, h.svc)
	c.JSON(http.StatusOK, model.LogoutResponse{
		Success: true,
		Message: "Logged out",
	})
}

// LogoutAll godoc
// @Summary Logout from all devices
// @Description Revokes every refresh token of the current user.
// @Tags auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} model.LogoutAllResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeError(c, http.StatusUnauthorized, "Authentication required", CodeNoToken)
		return
	}

	revoked, err := h.svc.LogoutAll(c.Request.Context(), user.ID)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	clearAuthCookies(c, h.svc)
	c.JSON(http.StatusOK, model.LogoutAllResponse{
		Success: true,
		Message: "Logged out from all devices",
		Revoked: revoked,
	})
}

// Verify godoc
// @Summary Verify access token
// @Tags auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} model.VerifyResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/verify [get]
func (h *AuthHandler) Verify(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeError(c, http.StatusUnauthorized, "Authentication required", CodeNoToken)
		return
	}
	c.JSON(http.StatusOK, model.VerifyResponse{
		Success: true,
		Valid:   true,
		User:    *user,
	})
}

// Me godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} model.AuthUserResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	authUser := GetAuthUser(c)
	if authUser == nil {
		writeError(c, http.StatusUnauthorized, "Authentication required", CodeNoToken)
		return
	}

	user, err := h.svc.CurrentUser(c.Request.Context(), authUser.ID)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AuthUserResponse{
		Success: true,
		User:    user.Public(),
	})
}

func (h *AuthHandler) writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, "Invalid username or password format", CodeValidation)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, "Invalid credentials", CodeInvalidCredentials)
	case errors.Is(err, service.ErrInvalidRefreshToken):
		writeError(c, http.StatusUnauthorized, "Invalid or expired refresh token", CodeInvalidRefreshToken)
	case errors.Is(err, service.ErrTokenExpired):
		writeError(c, http.StatusUnauthorized, "Access token expired", CodeTokenExpired)
	case errors.Is(err, service.ErrInvalidToken):
		writeError(c, http.StatusUnauthorized, "Invalid access token", CodeInvalidToken)
	case errors.Is(err, service.ErrUserNotFound):
		writeError(c, http.StatusUnauthorized, "User not found", CodeUserNotFound)
	default:
		h.log.Error("auth request failed", slog.String("path", c.Request.URL.Path), logging.Err(err))
		writeError(c, http.StatusInternalServerError, "Internal server error", CodeInternal)
	}
}
