package controller

import (
	"errors"
	"net/url"
	"strconv"

	"leadintake/models"
	"leadintake/store"
	"leadintake/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// QueryController serves the read side used by the dashboard and reports.
// Nothing here mutates intake state.
type QueryController struct {
	Leads           store.LeadStore
	Users           store.UserDataStore
	Classifications store.ClassificationStore
	Submissions     store.SubmissionStore
	Tokens          TokenService
	Logger          *logrus.Entry
}

func NewQueryController(
	leads store.LeadStore,
	users store.UserDataStore,
	classifications store.ClassificationStore,
	submissions store.SubmissionStore,
	tokens TokenService,
	logger *logrus.Entry,
) *QueryController {
	return &QueryController{
		Leads:           leads,
		Users:           users,
		Classifications: classifications,
		Submissions:     submissions,
		Tokens:          tokens,
		Logger:          logger,
	}
}

func (qc *QueryController) ListLeads(c *fiber.Ctx) error {
	page, limit, offset := utils.ParsePagination(c)
	leads, total, err := qc.Leads.List(c.UserContext(), store.ListOptions{Offset: offset, Limit: limit})
	if err != nil {
		return qc.storeFailure(c, "Failed to fetch leads", err)
	}
	return c.JSON(utils.PaginatedResponse{Data: leads, Total: total, Page: page, Limit: limit})
}

func (qc *QueryController) GetLead(c *fiber.Ctx) error {
	phone, err := qc.phoneParam(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid phone number", nil)
	}
	lead, err := qc.Leads.GetByPhone(c.UserContext(), phone)
	if err != nil {
		return qc.lookupFailure(c, "Lead not found", err)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

func (qc *QueryController) ListUserData(c *fiber.Ctx) error {
	page, limit, offset := utils.ParsePagination(c)
	rows, total, err := qc.Users.List(c.UserContext(), store.ListOptions{Offset: offset, Limit: limit})
	if err != nil {
		return qc.storeFailure(c, "Failed to fetch user data", err)
	}
	return c.JSON(utils.PaginatedResponse{Data: rows, Total: total, Page: page, Limit: limit})
}

func (qc *QueryController) GetUserData(c *fiber.Ctx) error {
	phone, err := qc.phoneParam(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid phone number", nil)
	}
	user, err := qc.Users.GetByPhone(c.UserContext(), phone)
	if err != nil {
		return qc.lookupFailure(c, "User data not found", err)
	}
	return c.JSON(utils.SuccessResponse(user))
}

// ListClassifications returns the current classification of every user.
func (qc *QueryController) ListClassifications(c *fiber.Ctx) error {
	page, limit, offset := utils.ParsePagination(c)
	rows, total, err := qc.Classifications.List(c.UserContext(), store.ListOptions{Offset: offset, Limit: limit})
	if err != nil {
		return qc.storeFailure(c, "Failed to fetch classifications", err)
	}
	return c.JSON(utils.PaginatedResponse{Data: rows, Total: total, Page: page, Limit: limit})
}

func (qc *QueryController) GetClassification(c *fiber.Ctx) error {
	class, err := qc.Classifications.GetCurrent(c.UserContext(), c.Params("userId"))
	if err != nil {
		return qc.lookupFailure(c, "Classification not found", err)
	}
	return c.JSON(utils.SuccessResponse(class))
}

// ClassificationHistory returns past verdicts for a user, newest first.
func (qc *QueryController) ClassificationHistory(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	rows, err := qc.Classifications.History(c.UserContext(), c.Params("userId"), limit)
	if err != nil {
		return qc.storeFailure(c, "Failed to fetch classification history", err)
	}
	if rows == nil {
		rows = []models.Classification{}
	}
	return c.JSON(utils.SuccessResponse(rows))
}

// ListSubmissions exposes the saga journal, optionally filtered by status.
func (qc *QueryController) ListSubmissions(c *fiber.Ctx) error {
	status := c.Query("status")
	switch status {
	case "", models.SubmissionInProgress, models.SubmissionDone, models.SubmissionFailed, models.SubmissionRepaired:
	default:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown submission status", nil)
	}

	page, limit, offset := utils.ParsePagination(c)
	rows, total, err := qc.Submissions.ListByStatus(c.UserContext(), status, store.ListOptions{Offset: offset, Limit: limit})
	if err != nil {
		return qc.storeFailure(c, "Failed to fetch submissions", err)
	}
	return c.JSON(utils.PaginatedResponse{Data: rows, Total: total, Page: page, Limit: limit})
}

// phoneParam reads :phone, which clients may send percent-encoded ("%2B1555...").
func (qc *QueryController) phoneParam(c *fiber.Ctx) (string, error) {
	raw, err := url.PathUnescape(c.Params("phone"))
	if err != nil {
		return "", err
	}
	return qc.Tokens.NormalizePhone(raw)
}

func (qc *QueryController) lookupFailure(c *fiber.Ctx, notFoundMsg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, notFoundMsg, nil)
	}
	return qc.storeFailure(c, "Lookup failed", err)
}

func (qc *QueryController) storeFailure(c *fiber.Ctx, msg string, err error) error {
	qc.Logger.WithError(err).WithField("path", c.Path()).Error(msg)
	return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, msg, nil)
}
