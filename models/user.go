package models

import (
	"strings"
	"time"
)

// User is the signed-in seller as asserted by the authentication provider.
type User struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DisplayName is the greeting name: first word of the provider display
// name, else the email local part, else "User". A missing user yields " ".
func DisplayName(u *User) string {
	if u == nil {
		return " "
	}
	if fields := strings.Fields(u.Name); len(fields) > 0 {
		return fields[0]
	}
	if local, _, _ := strings.Cut(u.Email, "@"); local != "" {
		return local
	}
	return "User"
}

// Profile is the seller's onboarding document.
type Profile struct {
	DocumentId string    `gorm:"column:document_id;primaryKey;size:64" json:"$id"`
	UserId     string    `gorm:"column:user_id;size:64;uniqueIndex;not null" json:"user_id"`
	Name       string    `gorm:"column:name;size:255" json:"name"`
	PinCode    string    `gorm:"column:pin_code;size:20" json:"pinCode"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"$createdAt"`
}

func (Profile) TableName() string { return "profiles" }
