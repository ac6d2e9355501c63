package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadintake/eligibility"
	"leadintake/models"
	"leadintake/store"
	"leadintake/utils"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// FormData is what the intake form posts alongside its token.
type FormData struct {
	Name         string                 `json:"name" validate:"required,max=200"`
	PhoneNumber  string                 `json:"phoneNumber" validate:"required,max=32"`
	Email        string                 `json:"email" validate:"omitempty,max=254"`
	City         string                 `json:"city" validate:"omitempty,max=100"`
	Source       string                 `json:"source" validate:"omitempty,oneof=web_form sms_link"`
	BioData      map[string]interface{} `json:"bioData"`
	MedicareData map[string]interface{} `json:"medicareData"`
}

// SubmissionResult is the consolidated record triple written by a successful submission.
type SubmissionResult struct {
	SubmissionID   string                 `json:"submissionId,omitempty"`
	Lead           *models.Lead           `json:"lead"`
	UserData       *models.UserData       `json:"userData"`
	Classification *models.Classification `json:"classification"`
}

// ExistingCheck answers whether a phone number already went through intake.
type ExistingCheck struct {
	Found   bool   `json:"found"`
	Partial bool   `json:"partial"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

// Orchestrator runs the intake saga across the independently owned stores.
// Nothing is rolled back: a failure leaves earlier writes in place and is
// reported with the stage the saga had reached.
type Orchestrator struct {
	tokens  *TokenAuthority
	leads   store.LeadStore
	users   store.UserDataStore
	classes store.ClassificationStore
	journal store.SubmissionStore

	schema eligibility.Schema
	engine *eligibility.Engine
	now    func() time.Time
	log    *logrus.Entry
}

type OrchestratorOption func(*Orchestrator)

// WithJournal records every post-consume attempt in s.
func WithJournal(s store.SubmissionStore) OrchestratorOption {
	return func(o *Orchestrator) { o.journal = s }
}

func WithEngine(e *eligibility.Engine) OrchestratorOption {
	return func(o *Orchestrator) { o.engine = e }
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(
	tokens *TokenAuthority,
	leads store.LeadStore,
	users store.UserDataStore,
	classes store.ClassificationStore,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		tokens:  tokens,
		leads:   leads,
		users:   users,
		classes: classes,
		schema:  eligibility.MedicareSchema,
		now:     func() time.Time { return time.Now().UTC() },
		log:     utils.Logger("intake"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.engine == nil {
		o.engine = eligibility.NewEngine(o.schema)
	}
	return o
}

// normalizedForm is FormData after phone normalization and schema coercion.
type normalizedForm struct {
	FormData
	bio      map[string]interface{}
	medicare map[string]interface{}
}

// Submit runs one intake attempt for token. The token is consumed before any
// record is written, so of several concurrent submissions with the same token
// exactly one reaches the stores.
func (o *Orchestrator) Submit(ctx context.Context, token string, form FormData) (*SubmissionResult, error) {
	validation, err := o.tokens.Validate(ctx, token)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, at(e, models.StageTokenPending, StepToken)
		}
		return nil, err
	}

	nf, verr := o.normalize(form)
	if verr != nil {
		return nil, at(verr, models.StageTokenPending, StepValidation)
	}
	if nf.PhoneNumber != validation.PhoneNumber {
		return nil, at(validationError(CodePhoneMismatch, "phoneNumber", nil), models.StageTokenPending, StepValidation)
	}

	if err := o.tokens.Consume(ctx, token); err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, at(e, models.StageTokenPending, StepToken)
		}
		return nil, err
	}

	entry := o.startJournal(ctx, token, nf.PhoneNumber)
	result, serr := o.apply(ctx, nf)
	if serr != nil {
		o.failJournal(ctx, entry, serr)
		o.log.WithFields(logrus.Fields{
			"phone": utils.MaskPhone(nf.PhoneNumber),
			"stage": serr.Stage,
			"step":  serr.Step,
			"code":  serr.Code,
		}).Warn("Intake submission failed")
		return nil, serr
	}
	o.finishJournal(ctx, entry)
	if entry != nil {
		result.SubmissionID = entry.ID
	}

	utils.LogEvent("intake_submitted", map[string]interface{}{
		"lead_id":    result.Lead.LeadID,
		"user_id":    result.UserData.UserID,
		"complete":   result.UserData.IsComplete,
		"result":     result.Classification.Result,
		"score":      result.Classification.Score,
		"submission": result.SubmissionID,
	})
	return result, nil
}

// apply performs the write stages after the token has been consumed.
func (o *Orchestrator) apply(ctx context.Context, nf *normalizedForm) (*SubmissionResult, *Error) {
	var (
		g       errgroup.Group
		lead    *models.Lead
		user    *models.UserData
		leadErr error
		userErr error
	)
	// Lead and UserData are independent; both writes always run to completion.
	g.Go(func() error {
		lead, leadErr = o.upsertLead(ctx, nf)
		return leadErr
	})
	g.Go(func() error {
		user, userErr = o.upsertUserData(ctx, nf)
		return userErr
	})
	_ = g.Wait()

	if leadErr != nil {
		o.reportStoreFailure(StepLead, nf.PhoneNumber, leadErr)
		return nil, at(storeError(leadErr), models.StageTokenValidated, StepLead)
	}
	if userErr != nil {
		o.reportStoreFailure(StepUserData, nf.PhoneNumber, userErr)
		return nil, at(storeError(userErr), models.StageLeadUpserted, StepUserData)
	}

	class, cerr := o.classify(ctx, user)
	if cerr != nil {
		return nil, at(cerr, models.StageUserDataUpserted, StepClassification)
	}

	return &SubmissionResult{Lead: lead, UserData: user, Classification: class}, nil
}

func (o *Orchestrator) normalize(form FormData) (*normalizedForm, *Error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.City = strings.TrimSpace(form.City)
	if form.Name == "" {
		return nil, validationError(CodeMissingRequiredField, "name", nil)
	}
	if strings.TrimSpace(form.PhoneNumber) == "" {
		return nil, validationError(CodeMissingRequiredField, "phoneNumber", nil)
	}
	if err := utils.ValidateStruct(form); err != nil {
		return nil, validationError(CodeInvalidField, "", err)
	}

	phone, err := o.tokens.NormalizePhone(form.PhoneNumber)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, e
		}
		return nil, validationError(CodeInvalidField, "phoneNumber", err)
	}
	form.PhoneNumber = phone

	if form.Email != "" {
		if err := checkmail.ValidateFormat(form.Email); err != nil {
			return nil, validationError(CodeInvalidField, "email", err)
		}
	}
	if form.Source == "" {
		form.Source = models.LeadSourceWebForm
	}

	bio, err := o.schema.Normalize(eligibility.SectionBio, form.BioData)
	if err != nil {
		return nil, fieldError(err)
	}
	medicare, err := o.schema.Normalize(eligibility.SectionMedicare, form.MedicareData)
	if err != nil {
		return nil, fieldError(err)
	}
	return &normalizedForm{FormData: form, bio: bio, medicare: medicare}, nil
}

func fieldError(err error) *Error {
	var fe *eligibility.FieldError
	if errors.As(err, &fe) {
		return validationError(CodeInvalidField, fe.Field, err)
	}
	return validationError(CodeInvalidField, "", err)
}

func (o *Orchestrator) upsertLead(ctx context.Context, nf *normalizedForm) (*models.Lead, error) {
	return o.leads.Upsert(ctx, &models.Lead{
		LeadID:      uuid.NewString(),
		Name:        nf.Name,
		PhoneNumber: nf.PhoneNumber,
		Email:       nf.Email,
		City:        nf.City,
		Source:      nf.Source,
	})
}

// upsertUserData merges the submitted answers over the stored ones and
// recomputes completeness from the full required-field set.
func (o *Orchestrator) upsertUserData(ctx context.Context, nf *normalizedForm) (*models.UserData, error) {
	existing, err := o.users.GetByPhone(ctx, nf.PhoneNumber)
	switch {
	case errors.Is(err, store.ErrNotFound):
		existing = &models.UserData{
			UserID:       uuid.NewString(),
			PhoneNumber:  nf.PhoneNumber,
			BioData:      datatypes.JSONMap{},
			MedicareData: datatypes.JSONMap{},
		}
	case err != nil:
		return nil, err
	}

	merged := *existing
	merged.Name = nf.Name
	merged.BioData = o.mergeFields(existing.BioData, nf.bio)
	merged.MedicareData = o.mergeFields(existing.MedicareData, nf.medicare)

	c := eligibility.Evaluate(o.schema.Required(), merged.Fields())
	merged.IsComplete = c.IsComplete
	merged.MissingFields = datatypes.JSONSlice[string](c.MissingFields)

	return o.users.Upsert(ctx, &merged)
}

// mergeFields overlays submitted answers on stored ones. A blank answer never
// erases a stored one, the same rule the lead upsert applies to email and city.
func (o *Orchestrator) mergeFields(stored datatypes.JSONMap, submitted map[string]interface{}) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(stored)+len(submitted))
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range submitted {
		if _, had := out[k]; had && o.schema.IsBlank(k, v) {
			continue
		}
		out[k] = v
	}
	return out
}

// classify derives and stores the current classification for user.
func (o *Orchestrator) classify(ctx context.Context, user *models.UserData) (*models.Classification, *Error) {
	res, err := o.engine.Classify(user.Fields())
	if err != nil {
		utils.LogError("classification_failed", err, map[string]interface{}{
			"user_id": user.UserID,
		})
		return nil, classificationError(err)
	}

	factors := make(datatypes.JSONSlice[models.ClassificationFactor], 0, len(res.Factors))
	for _, f := range res.Factors {
		factors = append(factors, models.ClassificationFactor{
			Description: f.Description,
			Impact:      string(f.Impact),
			Weight:      f.Weight,
		})
	}

	stored, err := o.classes.Upsert(ctx, &models.Classification{
		ID:              uuid.NewString(),
		UserID:          user.UserID,
		PhoneNumber:     user.PhoneNumber,
		UserDataVersion: user.Version,
		Score:           res.Score,
		Result:          string(res.Verdict),
		Reason:          res.Reason,
		Factors:         factors,
		IsCurrent:       true,
		CreatedAt:       o.now(),
	})
	if err != nil {
		o.reportStoreFailure(StepClassification, user.PhoneNumber, err)
		return nil, storeError(err)
	}
	return stored, nil
}

// RefreshClassification recomputes the current classification for phone when
// it is missing or was computed from an older UserData version. It reports
// whether a new classification was written. A phone without UserData has
// nothing to classify.
func (o *Orchestrator) RefreshClassification(ctx context.Context, phone string) (bool, error) {
	user, err := o.users.GetByPhone(ctx, phone)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, at(storeError(err), models.StageUserDataUpserted, StepUserData)
	}

	current, err := o.classes.GetCurrent(ctx, user.UserID)
	switch {
	case err == nil && !current.Stale(user):
		return false, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return false, at(storeError(err), models.StageUserDataUpserted, StepClassification)
	}

	if _, cerr := o.classify(ctx, user); cerr != nil {
		return false, at(cerr, models.StageUserDataUpserted, StepClassification)
	}
	return true, nil
}

const partialMessage = "A previous submission for this number was not completed."

// CheckExisting reports whether phone's latest submission completed. A
// submission only counts when Lead, UserData and a classification computed
// from the current UserData all exist, and the journal shows no later attempt
// that stopped before the classification step. It never fails: lookup errors
// degrade to a not-found answer.
func (o *Orchestrator) CheckExisting(ctx context.Context, phone string) ExistingCheck {
	normalized, err := o.tokens.NormalizePhone(phone)
	if err != nil {
		return ExistingCheck{Message: "Phone number is not valid."}
	}
	log := o.log.WithField("phone", utils.MaskPhone(normalized))

	lead, leadErr := o.leads.GetByPhone(ctx, normalized)
	user, userErr := o.users.GetByPhone(ctx, normalized)
	for _, err := range []error{leadErr, userErr} {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.WithError(err).Warn("Existing-record lookup failed")
			return ExistingCheck{Message: "No existing record could be confirmed."}
		}
	}

	switch {
	case lead == nil && user == nil:
		return ExistingCheck{Message: "No existing record for this phone number."}
	case lead == nil || user == nil:
		return ExistingCheck{Partial: true, Name: nameOf(lead, user), Message: partialMessage}
	}

	class, err := o.classes.GetCurrent(ctx, user.UserID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.WithError(err).Warn("Classification lookup failed")
		}
		return ExistingCheck{Partial: true, Name: lead.Name, Message: partialMessage}
	}
	if class.Stale(user) {
		return ExistingCheck{Partial: true, Name: lead.Name, Message: partialMessage}
	}

	if o.journal != nil {
		latest, err := o.journal.LatestByPhone(ctx, normalized)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			log.WithError(err).Warn("Submission journal lookup failed")
			return ExistingCheck{Message: "No existing record could be confirmed."}
		case unfinished(latest):
			return ExistingCheck{Partial: true, Name: lead.Name, Message: partialMessage}
		}
	}
	return ExistingCheck{Found: true, Name: lead.Name, Message: fmt.Sprintf("Welcome back, %s.", lead.Name)}
}

// unfinished reports whether sub left Lead or UserData short of what the
// applicant submitted. A classification-step failure is settled once the
// current classification matches the stored UserData.
func unfinished(sub *models.Submission) bool {
	switch sub.Status {
	case models.SubmissionInProgress:
		return true
	case models.SubmissionFailed:
		return sub.FailedStep != StepClassification
	}
	return false
}

func nameOf(lead *models.Lead, user *models.UserData) string {
	if lead != nil {
		return lead.Name
	}
	if user != nil {
		return user.Name
	}
	return ""
}

func (o *Orchestrator) reportStoreFailure(step, phone string, err error) {
	utils.LogError("intake_store_failure", err, map[string]interface{}{
		"step":  step,
		"phone": utils.MaskPhone(phone),
	})
}

// Journal writes are best-effort: a journal outage must not fail a submission
// whose token is already consumed.

func (o *Orchestrator) startJournal(ctx context.Context, token, phone string) *models.Submission {
	if o.journal == nil {
		return nil
	}
	entry := &models.Submission{
		ID:          uuid.NewString(),
		Token:       token,
		PhoneNumber: phone,
		Stage:       models.StageTokenValidated,
		Status:      models.SubmissionInProgress,
	}
	if err := o.journal.Create(ctx, entry); err != nil {
		o.log.WithError(err).Warn("Failed to journal submission")
		return nil
	}
	return entry
}

func (o *Orchestrator) failJournal(ctx context.Context, entry *models.Submission, serr *Error) {
	if entry == nil {
		return
	}
	entry.Stage = serr.Stage
	entry.Status = models.SubmissionFailed
	entry.FailedStep = serr.Step
	entry.ErrorCode = string(serr.Code)
	entry.ErrorMessage = serr.Error()
	if err := o.journal.Update(ctx, entry); err != nil {
		o.log.WithError(err).Warn("Failed to journal submission failure")
	}
}

func (o *Orchestrator) finishJournal(ctx context.Context, entry *models.Submission) {
	if entry == nil {
		return
	}
	entry.Stage = models.StageDone
	entry.Status = models.SubmissionDone
	if err := o.journal.Update(ctx, entry); err != nil {
		o.log.WithError(err).Warn("Failed to journal submission completion")
	}
}
