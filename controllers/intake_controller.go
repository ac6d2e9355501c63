package controller

import (
	"context"
	"errors"
	"time"

	"leadintake/models"
	"leadintake/services"
	"leadintake/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// IntakeService is the saga the public form talks to.
type IntakeService interface {
	Submit(ctx context.Context, token string, form services.FormData) (*services.SubmissionResult, error)
	CheckExisting(ctx context.Context, phone string) services.ExistingCheck
}

// TokenService issues and checks form tokens.
type TokenService interface {
	Issue(ctx context.Context, phoneNumber string) (*models.FormToken, error)
	Validate(ctx context.Context, token string) (services.TokenValidation, error)
	NormalizePhone(raw string) (string, error)
}

type IntakeController struct {
	Intake IntakeService
	Tokens TokenService
	Logger *logrus.Entry
}

func NewIntakeController(intake IntakeService, tokens TokenService, logger *logrus.Entry) *IntakeController {
	return &IntakeController{
		Intake: intake,
		Tokens: tokens,
		Logger: logger,
	}
}

type validateResponse struct {
	Valid       bool       `json:"valid"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// ValidateToken answers whether the form may be shown. It never consumes the
// token, so the page can be reloaded until the final submit.
func (ic *IntakeController) ValidateToken(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "token query parameter is required", nil)
	}

	v, err := ic.Tokens.Validate(c.UserContext(), token)
	if err != nil {
		var e *services.Error
		if errors.As(err, &e) && e.Kind == services.KindToken {
			return c.JSON(utils.SuccessResponse(validateResponse{Reason: string(e.Code)}))
		}
		ic.Logger.WithError(err).Error("Token validation failed")
		return respondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(validateResponse{
		Valid:       true,
		PhoneNumber: v.PhoneNumber,
		ExpiresAt:   &v.ExpiresAt,
	}))
}

// Submit runs the intake saga for one form post.
func (ic *IntakeController) Submit(c *fiber.Ctx) error {
	var input struct {
		Token    string            `json:"token"`
		FormData services.FormData `json:"formData"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if input.Token == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errors.New("token is required"))
	}

	result, err := ic.Intake.Submit(c.UserContext(), input.Token, input.FormData)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(result))
}

// CheckExisting tells the form whether this phone number was already onboarded.
func (ic *IntakeController) CheckExisting(c *fiber.Ctx) error {
	phone := c.Query("phone")
	if phone == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "phone query parameter is required", nil)
	}
	return c.JSON(utils.SuccessResponse(ic.Intake.CheckExisting(c.UserContext(), phone)))
}
