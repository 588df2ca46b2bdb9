package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/symptomcheck/symptom-service/internal/api/dto"
	"github.com/symptomcheck/symptom-service/internal/auth"
	"github.com/symptomcheck/symptom-service/internal/domain"
	"github.com/symptomcheck/symptom-service/internal/service"
	apperrors "github.com/symptomcheck/symptom-service/pkg/util"
)

// UsersHandler exposes auth endpoints for end-users.
type UsersHandler struct {
	auth    *service.AuthService
	history *service.HistoryService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, historyService *service.HistoryService) *UsersHandler {
	return &UsersHandler{auth: authService, history: historyService}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, exp, err := h.auth.Register(c.UserContext(), req.Email, req.Password, req.FullName)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewAuthResponse(user, token, exp))
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Identifier()) == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	user, token, exp, err := h.auth.Login(c.UserContext(), req.Identifier(), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewAuthResponse(user, token, exp))
}

// Me handles GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}
	return c.JSON(dto.NewUserResponse(principal.User))
}

// History handles GET /auth/history?limit=N.
func (h *UsersHandler) History(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		return err
	}

	records, err := h.history.HistoryForUser(c.UserContext(), principal.User, limit)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewHistoryResponse(records))
}

// Logout handles POST /auth/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}
	if err := h.auth.Logout(c.UserContext(), principal.Token); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseLimit(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		verr := domain.NewValidationError()
		verr.Add("limit", "must be an integer")
		return 0, verr
	}
	return limit, nil
}
