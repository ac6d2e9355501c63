package models

import "time"

// FormToken is the single-use credential embedded in the SMS link.
// It is bound to exactly one phone number and is kept after use so a replay
// can be rejected as already consumed.
type FormToken struct {
	Token       string     `gorm:"primaryKey;type:varchar(128)" json:"token"`
	PhoneNumber string     `gorm:"not null;index" json:"phoneNumber"`
	IssuedAt    time.Time  `gorm:"not null" json:"issuedAt"`
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expiresAt"`
	Consumed    bool       `gorm:"not null;default:false" json:"consumed"`
	ConsumedAt  *time.Time `json:"consumedAt,omitempty"`
}

// Expired reports whether the token is past its expiry at now.
func (t *FormToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
