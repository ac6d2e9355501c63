package controller

import (
	"net/url"
	"time"

	"leadintake/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// TokenController serves the messaging collaborator that texts form links.
type TokenController struct {
	Tokens      TokenService
	FormBaseURL string
	Logger      *logrus.Entry
}

func NewTokenController(tokens TokenService, formBaseURL string, logger *logrus.Entry) *TokenController {
	return &TokenController{
		Tokens:      tokens,
		FormBaseURL: formBaseURL,
		Logger:      logger,
	}
}

type issueResponse struct {
	Token       string    `json:"token"`
	PhoneNumber string    `json:"phoneNumber"`
	ExpiresAt   time.Time `json:"expiresAt"`
	FormURL     string    `json:"formUrl"`
}

// IssueToken creates a form token for a phone number and returns the link to text.
func (tc *TokenController) IssueToken(c *fiber.Ctx) error {
	var input struct {
		PhoneNumber string `json:"phoneNumber" validate:"required,max=32"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	token, err := tc.Tokens.Issue(c.UserContext(), input.PhoneNumber)
	if err != nil {
		return respondError(c, err)
	}

	tc.Logger.WithFields(logrus.Fields{
		"service": c.Locals("service"),
		"phone":   utils.MaskPhone(token.PhoneNumber),
	}).Info("Issued form link")

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(issueResponse{
		Token:       token.Token,
		PhoneNumber: token.PhoneNumber,
		ExpiresAt:   token.ExpiresAt,
		FormURL:     FormURL(tc.FormBaseURL, token.Token, token.PhoneNumber),
	}))
}

// FormURL embeds the token and phone number as query parameters of base.
func FormURL(base, token, phone string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + url.Values{"token": {token}, "phone": {phone}}.Encode()
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("phone", phone)
	u.RawQuery = q.Encode()
	return u.String()
}
