package models

import (
	"time"
)

// Lead is the sales-side record for a person who came in through the intake form.
// PhoneNumber is the natural key: a second submission for the same number updates
// the existing row instead of creating a new one.
type Lead struct {
	LeadID      string    `gorm:"primaryKey;type:varchar(36)" json:"leadId"`
	Name        string    `gorm:"not null" json:"name"`
	PhoneNumber string    `gorm:"not null;uniqueIndex" json:"phoneNumber"`
	Email       string    `json:"email"`
	City        string    `json:"city,omitempty"`
	Source      string    `gorm:"default:'web_form'" json:"source"` // web_form, sms_link, import
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

const (
	LeadSourceWebForm = "web_form"
	LeadSourceSMSLink = "sms_link"
)
