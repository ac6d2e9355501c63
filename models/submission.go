package models

import "time"

// Saga stages, in order. A failed submission records the last stage it reached.
const (
	StageTokenPending     = "TOKEN_PENDING"
	StageTokenValidated   = "TOKEN_VALIDATED"
	StageLeadUpserted     = "LEAD_UPSERTED"
	StageUserDataUpserted = "USERDATA_UPSERTED"
	StageClassified       = "CLASSIFIED"
	StageDone             = "DONE"
)

const (
	SubmissionInProgress = "in_progress"
	SubmissionDone       = "done"
	SubmissionFailed     = "failed"
	SubmissionRepaired   = "repaired"
)

// Submission journals one intake attempt after its token was consumed, so an
// operator can see partially applied submissions.
type Submission struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Token        string    `gorm:"not null;index" json:"-"`
	PhoneNumber  string    `gorm:"not null;index" json:"phoneNumber"`
	Stage        string    `gorm:"not null" json:"stage"`
	Status       string    `gorm:"not null;index" json:"status"`
	FailedStep   string    `json:"failedStep,omitempty"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	ErrorMessage string    `gorm:"type:text" json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
