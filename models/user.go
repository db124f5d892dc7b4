package models

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User represents a registered reporter. The stats counters are denormalized
// projections kept in lockstep with report mutations; the source of truth is
// always the reports/verifications/helpful_votes tables, so they can be
// recomputed by a reconciliation query at any time.
type User struct {
	Model
	Fullname         string    `json:"fullname" binding:"required,min=2"`
	Username         string    `json:"username" gorm:"unique" binding:"required,min=2"`
	Email            string    `json:"email" gorm:"unique;not null" binding:"required,email"`
	Password         string    `json:"password,omitempty" gorm:"-"`
	HashedPassword   string    `json:"-"`
	IsEmailActive    bool      `json:"-"`
	EmailOTP         string    `json:"-"`
	ResetToken       string    `json:"-"`
	ThumbNailURL     string    `json:"thumbnail_url,omitempty"`
	AdminStatus      bool      `json:"is_admin"`
	RoleID           uuid.UUID `gorm:"type:uuid" json:"role_id"`
	Role             Role      `gorm:"foreignKey:RoleID" json:"role"`
	ReportsSubmitted int       `json:"reports_submitted" gorm:"default:0"`
	ReportsVerified  int       `json:"reports_verified" gorm:"default:0"`
	HelpfulVotes     int       `json:"helpful_votes" gorm:"default:0"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.AdminStatus || u.Role.Name == RoleAdmin
}

func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.HashedPassword = string(hashed)
	u.Password = ""
	return nil
}

func (u *User) VerifyPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password))
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID               uint   `json:"id"`
	Fullname         string `json:"fullname"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	RoleName         string `json:"role"`
	ReportsSubmitted int    `json:"reports_submitted"`
	ReportsVerified  int    `json:"reports_verified"`
	HelpfulVotes     int    `json:"helpful_votes"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	UserResponse
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Blacklist stores revoked access tokens until they would have expired anyway.
type Blacklist struct {
	Model
	Token string `gorm:"type:text"`
	Email string
}
