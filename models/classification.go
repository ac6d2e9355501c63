package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ClassificationAcceptable    = "ACCEPTABLE"
	ClassificationNotAcceptable = "NOT_ACCEPTABLE"
)

const (
	ImpactPositive = "positive"
	ImpactNegative = "negative"
	ImpactNeutral  = "neutral"
)

// ClassificationFactor explains one rule that fired during classification.
type ClassificationFactor struct {
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Weight      int    `json:"weight"`
}

// Classification is the eligibility verdict derived from a UserData record.
// Rows are append-only; IsCurrent marks the latest verdict for a user and the
// older rows feed the activity history. At most one row per user is current.
type Classification struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string `gorm:"not null;index;uniqueIndex:idx_classifications_current,where:is_current" json:"userId"`
	PhoneNumber string `gorm:"not null;index" json:"phoneNumber"`
	// UserDataVersion is the UserData version the verdict was computed from.
	UserDataVersion int                                       `gorm:"not null;default:0" json:"userDataVersion"`
	Score           int                                       `json:"score"`
	Result          string                                    `gorm:"not null" json:"result"`
	Reason          string                                    `gorm:"type:text" json:"reason"`
	Factors         datatypes.JSONSlice[ClassificationFactor] `json:"factors"`
	IsCurrent       bool                                      `gorm:"default:true;index" json:"isCurrent"`
	CreatedAt       time.Time                                 `gorm:"index" json:"createdAt"`
}

// Stale reports whether user has changed since c was computed.
func (c *Classification) Stale(user *UserData) bool {
	return c.UserDataVersion != user.Version
}
