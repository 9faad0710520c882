package handlers

import (
	"evade-competitive/internal/models"
	"evade-competitive/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles sign up, sign in and sign out
type AuthHandler struct {
	service   *service.AuthService
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: validator.New(),
	}
}

// SignUp handles POST /api/v1/auth/signup
// @Summary Register
// @Description Creates the account and player profile and returns a session
// @Accept json
// @Produce json
// @Param request body models.SignUpRequest true "Sign up request"
// @Success 201 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req models.SignUpRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	session, err := h.service.SignUp(c.Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// SignIn handles POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req models.SignInRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	session, err := h.service.SignIn(c.Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(session)
}

// SignOut handles POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	token, _ := c.Locals(localToken).(string)
	if err := h.service.SignOut(c.Context(), token); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Signed out"})
}

// Session handles GET /api/v1/auth/session
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"player": currentPlayer(c)})
}
