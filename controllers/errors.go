package controller

import (
	"errors"

	"leadintake/services"
	"leadintake/utils"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps a saga error to its HTTP status.
func statusFor(e *services.Error) int {
	switch e.Code {
	case services.CodeTokenNotFound:
		return fiber.StatusUnauthorized
	case services.CodeTokenExpired:
		return fiber.StatusGone
	case services.CodeTokenAlreadyConsumed, services.CodeStoreConflict:
		return fiber.StatusConflict
	case services.CodePhoneMismatch:
		return fiber.StatusUnprocessableEntity
	case services.CodeMissingRequiredField, services.CodeInvalidField:
		return fiber.StatusBadRequest
	case services.CodeStoreUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

var errorMessages = map[services.Code]string{
	services.CodeTokenNotFound:        "Form link is not valid",
	services.CodeTokenExpired:         "Form link has expired",
	services.CodeTokenAlreadyConsumed: "Form link has already been used",
	services.CodePhoneMismatch:        "Phone number does not match the form link",
	services.CodeMissingRequiredField: "Required field missing",
	services.CodeInvalidField:         "Invalid field",
	services.CodeStoreUnavailable:     "Service temporarily unavailable",
	services.CodeStoreConflict:        "Record was changed concurrently",
	services.CodeMalformedInput:       "Stored data could not be classified",
}

// respondError writes err in the standard envelope plus the saga's
// machine-readable code, kind, stage and step.
func respondError(c *fiber.Ctx, err error) error {
	var e *services.Error
	if !errors.As(err, &e) {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", err)
	}

	body := fiber.Map{
		"success":   false,
		"error":     errorMessages[e.Code],
		"code":      e.Code,
		"kind":      e.Kind,
		"retryable": e.Retryable(),
	}
	if e.Stage != "" {
		body["stage"] = e.Stage
	}
	if e.Step != "" {
		body["step"] = e.Step
	}
	if e.Field != "" {
		body["field"] = e.Field
	}
	// Store and classification internals stay in the logs.
	if e.Err != nil && e.Kind == services.KindValidation {
		body["details"] = e.Err.Error()
	}
	return c.Status(statusFor(e)).JSON(body)
}
