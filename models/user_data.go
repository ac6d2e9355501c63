package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserData holds the medical/eligibility answers for a phone number.
// IsComplete and MissingFields are derived and recomputed on every submission.
type UserData struct {
	UserID        string                      `gorm:"primaryKey;type:varchar(36)" json:"userId"`
	PhoneNumber   string                      `gorm:"not null;uniqueIndex" json:"phoneNumber"`
	Name          string                      `json:"name"`
	BioData       datatypes.JSONMap           `json:"bioData"`
	MedicareData  datatypes.JSONMap           `json:"medicareData"`
	IsComplete    bool                        `gorm:"default:false;index" json:"isComplete"`
	MissingFields datatypes.JSONSlice[string] `json:"missingFields"`
	Version       int                         `gorm:"not null;default:0" json:"version"`
	CreatedAt     time.Time                   `json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
}

func (UserData) TableName() string { return "user_data" }

// Fields returns the union of bio and Medicare answers. Medicare keys win on collision.
func (u *UserData) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(u.BioData)+len(u.MedicareData))
	for k, v := range u.BioData {
		out[k] = v
	}
	for k, v := range u.MedicareData {
		out[k] = v
	}
	return out
}
