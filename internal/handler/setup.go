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

type SetupHandler struct {
	svc *service.SetupService
	log *slog.Logger
}

func NewSetupHandler(svc *service.SetupService, log *slog.Logger) *SetupHandler {
	return &SetupHandler{svc: svc, log: log}
}

// Status godoc
// @Summary First-run setup status
// @Tags setup
// @Produce json
// @Success 200 {object} model.SetupStatusResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/setup/status [get]
func (h *SetupHandler) Status(c *gin.Context) {
	status, err := h.svc.Status(c.Request.Context())
	if err != nil {
		h.log.Error("setup status", logging.Err(err))
		writeError(c, http.StatusInternalServerError, "Internal server error", CodeInternal)
		return
	}
	c.JSON(http.StatusOK, status)
}

// CreateAdmin godoc
// @Summary Create the first admin user
// @Description Requires SETUP_TOKEN and an empty user table.
// @Tags setup
// @Accept json
// @Produce json
// @Param request body model.SetupAdminRequest true "Setup token and admin credentials"
// @Success 201 {object} model.AuthUserResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 429 {object} model.RateLimitErrorResponse
// @Router /api/setup/admin [post]
func (h *SetupHandler) CreateAdmin(c *gin.Context) {
	var req model.SetupAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Username and password are required", CodeValidation)
		return
	}

	token := req.SetupToken
	if token == "" {
		token = c.GetHeader("X-Setup-Token")
	}

	user, err := h.svc.CreateAdmin(c.Request.Context(), token, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSetupDisabled):
			writeError(c, http.StatusNotFound, "Setup is disabled", CodeSetupDisabled)
		case errors.Is(err, service.ErrUnauthorized):
			writeError(c, http.StatusUnauthorized, "Invalid setup token", CodeInvalidSetupToken)
		case errors.Is(err, service.ErrInvalidInput):
			writeError(c, http.StatusBadRequest, "Username must be 3-64 characters and password 8-128 characters", CodeValidation)
		case errors.Is(err, service.ErrSetupComplete):
			writeError(c, http.StatusConflict, "Setup has already been completed", CodeSetupComplete)
		default:
			h.log.Error("create admin", logging.Err(err))
			writeError(c, http.StatusInternalServerError, "Internal server error", CodeInternal)
		}
		return
	}

	c.JSON(http.StatusCreated, model.AuthUserResponse{
		Success: true,
		User:    user.Public(),
	})
}
