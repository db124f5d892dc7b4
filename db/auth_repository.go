package db

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/roadpulse/roadpulse/models"
)

type AuthRepository interface {
	CreateUser(user *models.User) (*models.User, error)
	IsEmailExist(email string) error
	IsUsernameExist(username string) error
	FindUserByEmail(email string) (*models.User, error)
	FindUserByID(id uint) (*models.User, error)
	UpdateUser(user *models.User) error
	VerifyEmailOTP(email, otp string) error
	UpdatePassword(email, hashedPassword string) error
	AddToBlackList(blacklist *models.Blacklist) error
	IsTokenInBlacklist(token string) bool
	AdjustReportsSubmitted(userID uint, delta int) error
	IncrementReportsVerified(userID uint) error
	AdjustHelpfulVotes(userID uint, delta int) error
}

type authRepo struct {
	DB *gorm.DB
}

func NewAuthRepo(db *GormDB) AuthRepository {
	return &authRepo{db.DB}
}

func (a *authRepo) CreateUser(user *models.User) (*models.User, error) {
	if user == nil {
		return nil, errors.New("user is nil")
	}

	if user.RoleID == uuid.Nil {
		var defaultRole models.Role
		if err := a.DB.Where("name = ?", models.RoleUser).First(&defaultRole).Error; err != nil {
			return nil, errors.Wrap(err, "default role lookup failed")
		}
		user.RoleID = defaultRole.ID
	}

	if err := a.DB.Create(user).Error; err != nil {
		return nil, errors.Wrap(err, "could not create user")
	}
	return user, nil
}

func (a *authRepo) IsEmailExist(email string) error {
	var count int64
	err := a.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "gorm count error")
	}
	if count > 0 {
		return errors.New("email already in use")
	}
	return nil
}

func (a *authRepo) IsUsernameExist(username string) error {
	var count int64
	err := a.DB.Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "gorm count error")
	}
	if count > 0 {
		return errors.New("username already in use")
	}
	return nil
}

func (a *authRepo) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := a.DB.Preload("Role").Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *authRepo) FindUserByID(id uint) (*models.User, error) {
	var user models.User
	err := a.DB.Preload("Role").Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *authRepo) UpdateUser(user *models.User) error {
	return a.DB.Save(user).Error
}

func (a *authRepo) VerifyEmailOTP(email, otp string) error {
	var user models.User
	if err := a.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return err
	}
	if user.EmailOTP == "" || user.EmailOTP != otp {
		return errors.New("invalid verification code")
	}
	return a.DB.Model(&user).Updates(map[string]interface{}{
		"is_email_active": true,
		"email_otp":       "",
	}).Error
}

func (a *authRepo) UpdatePassword(email, hashedPassword string) error {
	return a.DB.Model(&models.User{}).Where("email = ?", email).
		Updates(map[string]interface{}{
			"hashed_password": hashedPassword,
			"reset_token":     "",
		}).Error
}

func (a *authRepo) AddToBlackList(blacklist *models.Blacklist) error {
	return a.DB.Create(blacklist).Error
}

func (a *authRepo) IsTokenInBlacklist(token string) bool {
	var count int64
	a.DB.Model(&models.Blacklist{}).Where("token = ?", token).Count(&count)
	return count > 0
}

// AdjustReportsSubmitted moves the denormalized counter by delta (+1 on
// create, -1 on delete). GREATEST keeps a replayed decrement from going
// negative.
func (a *authRepo) AdjustReportsSubmitted(userID uint, delta int) error {
	return a.DB.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("reports_submitted", gorm.Expr("GREATEST(reports_submitted + ?, 0)", delta)).Error
}

func (a *authRepo) IncrementReportsVerified(userID uint) error {
	return a.DB.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("reports_verified", gorm.Expr("reports_verified + 1")).Error
}

func (a *authRepo) AdjustHelpfulVotes(userID uint, delta int) error {
	return a.DB.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("helpful_votes", gorm.Expr("GREATEST(helpful_votes + ?, 0)", delta)).Error
}
