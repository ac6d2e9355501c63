package worker

import (
	"context"
	"time"

	"leadintake/models"
	"leadintake/services"
	"leadintake/store"
	"leadintake/utils"

	"github.com/sirupsen/logrus"
)

// Reclassifier brings the current classification up to date with stored user data.
type Reclassifier interface {
	RefreshClassification(ctx context.Context, phone string) (bool, error)
}

// ReconcileWorker keeps classifications in step with UserData for every failed
// submission, whatever step it stopped at. Only classification-step failures
// are marked repaired: earlier failures lost part of the applicant's answers
// and stay failed until a fresh submission.
type ReconcileWorker struct {
	Journal      store.SubmissionStore
	Classifier   Reclassifier
	Interval     time.Duration
	BatchSize    int
	InitialDelay time.Duration
	Logger       *logrus.Entry
}

func NewReconcileWorker(journal store.SubmissionStore, classifier Reclassifier, interval time.Duration, logger *logrus.Entry) *ReconcileWorker {
	return &ReconcileWorker{
		Journal:      journal,
		Classifier:   classifier,
		Interval:     interval,
		BatchSize:    50,
		InitialDelay: 10 * time.Second,
		Logger:       logger,
	}
}

func (rw *ReconcileWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	select {
	case <-ctx.Done():
		return
	case <-time.After(rw.InitialDelay):
	}

	rw.Logger.Info("Reconcile worker started")

	ticker := time.NewTicker(rw.Interval)
	defer ticker.Stop()

	for {
		if _, err := rw.RunOnce(ctx); err != nil {
			rw.Logger.WithError(err).Error("Reconcile pass failed")
		}

		select {
		case <-ctx.Done():
			rw.Logger.Info("Reconcile worker shutting down...")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce scans the failed submissions once and returns how many were repaired.
func (rw *ReconcileWorker) RunOnce(ctx context.Context) (int, error) {
	batchSize := rw.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	repaired := 0
	offset := 0
	// A phone is reclassified once per pass even if several attempts failed.
	done := make(map[string]bool)

	for {
		batch, _, err := rw.Journal.ListByStatus(ctx, models.SubmissionFailed, store.ListOptions{Offset: offset, Limit: batchSize})
		if err != nil {
			return repaired, err
		}

		left := 0
		for i := range batch {
			sub := &batch[i]
			if !rw.repair(ctx, sub, done) {
				left++
				continue
			}
			repaired++
		}

		if len(batch) < batchSize || ctx.Err() != nil {
			break
		}
		offset += left
	}

	if repaired > 0 {
		utils.LogEvent("submissions_repaired", map[string]interface{}{"count": repaired})
	}
	return repaired, nil
}

func (rw *ReconcileWorker) repair(ctx context.Context, sub *models.Submission, done map[string]bool) bool {
	log := rw.Logger.WithFields(logrus.Fields{
		"submission": sub.ID,
		"phone":      utils.MaskPhone(sub.PhoneNumber),
	})

	if !done[sub.PhoneNumber] {
		refreshed, err := rw.Classifier.RefreshClassification(ctx, sub.PhoneNumber)
		if err != nil {
			log.WithError(err).Warn("Reclassification failed")
			return false
		}
		if refreshed {
			log.WithField("failed_step", sub.FailedStep).Info("Classification refreshed")
		}
		done[sub.PhoneNumber] = true
	}
	if sub.FailedStep != services.StepClassification {
		return false
	}

	sub.Stage = models.StageDone
	sub.Status = models.SubmissionRepaired
	if err := rw.Journal.Update(ctx, sub); err != nil {
		log.WithError(err).Warn("Failed to mark submission repaired")
		return false
	}
	log.Info("Submission repaired")
	return true
}
