package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownGender is returned by ParseGender.
var ErrUnknownGender = errors.New("unknown gender")

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ParseGender accepts the canonical values case-insensitively plus the
// legacy client spellings HOMME and FEMME.
func ParseGender(s string) (Gender, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MALE", "HOMME":
		return GenderMale, nil
	case "FEMALE", "FEMME":
		return GenderFemale, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGender, s)
}

// User is an account. ResetCodeHash and ResetCodeExpiresAt are either both
// set or both nil.
type User struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Name               string     `gorm:"size:255;not null" json:"name"`
	Email              string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash       string     `gorm:"size:255;not null" json:"-"`
	Gender             Gender     `gorm:"size:16;not null" json:"gender"`
	ResetCodeHash      *string    `gorm:"size:64" json:"-"`
	ResetCodeExpiresAt *time.Time `json:"-"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// HasResetCode reports whether a reset is outstanding.
func (u *User) HasResetCode() bool {
	return u.ResetCodeHash != nil && u.ResetCodeExpiresAt != nil
}
