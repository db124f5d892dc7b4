package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"net/http"

	passwd "github.com/go-passwd/validator"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/roadpulse/roadpulse/config"
	"github.com/roadpulse/roadpulse/db"
	errs "github.com/roadpulse/roadpulse/errors"
	"github.com/roadpulse/roadpulse/mailingservices"
	"github.com/roadpulse/roadpulse/models"
	"github.com/roadpulse/roadpulse/services/jwt"
)

// AuthService handles signup, login and the email OTP flow. It exists to
// supply the actor identity and role the report endpoints rely on.
type AuthService interface {
	SignupUser(user *models.User) (*models.UserResponse, error)
	LoginUser(req *models.LoginRequest) (*models.LoginResponse, error)
	LogoutUser(accessToken, email string) error
	VerifyEmailOTP(email, otp string) error
	RequestPasswordReset(email string) error
	ResetPassword(email, token, newPassword string) error
}

type authService struct {
	Config   *config.Config
	authRepo db.AuthRepository
	mail     *mailingservices.Mailgun
}

func NewAuthService(authRepo db.AuthRepository, mail *mailingservices.Mailgun, conf *config.Config) AuthService {
	return &authService{
		Config:   conf,
		authRepo: authRepo,
		mail:     mail,
	}
}

var passwordPolicy = passwd.New(
	passwd.MinLength(8, fmt.Errorf("password must be at least 8 characters")),
	passwd.MaxLength(72, fmt.Errorf("password must be at most 72 characters")),
)

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (a *authService) SignupUser(user *models.User) (*models.UserResponse, error) {
	if err := a.authRepo.IsEmailExist(user.Email); err != nil {
		return nil, errs.New(err.Error(), http.StatusBadRequest)
	}
	if err := a.authRepo.IsUsernameExist(user.Username); err != nil {
		return nil, errs.New(err.Error(), http.StatusBadRequest)
	}
	if err := passwordPolicy.Validate(user.Password); err != nil {
		return nil, errs.New(err.Error(), http.StatusBadRequest)
	}
	if err := user.HashPassword(); err != nil {
		return nil, errors.Wrap(err, "unable to hash password")
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, errors.Wrap(err, "unable to generate OTP")
	}
	user.EmailOTP = otp

	created, err := a.authRepo.CreateUser(user)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create user")
	}

	// OTP delivery must not block or fail the signup.
	go func() {
		if err := a.mail.SendVerificationOTP(created.Email, otp); err != nil {
			log.Printf("failed to send verification OTP to %s: %v", created.Email, err)
		}
	}()

	return toUserResponse(created), nil
}

func (a *authService) LoginUser(req *models.LoginRequest) (*models.LoginResponse, error) {
	user, err := a.authRepo.FindUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New("invalid email or password", http.StatusUnauthorized)
		}
		return nil, errors.Wrap(err, "unable to find user")
	}
	if err := user.VerifyPassword(req.Password); err != nil {
		return nil, errs.New("invalid email or password", http.StatusUnauthorized)
	}
	if !user.IsEmailActive {
		return nil, errs.ErrInactiveUser
	}

	accessToken, refreshToken, err := jwt.GenerateTokenPair(user.Email, a.Config.JWTSecret, user.IsAdmin(), user.ID, user.Role.Name)
	if err != nil {
		return nil, errors.Wrap(err, "unable to generate token pair")
	}

	return &models.LoginResponse{
		UserResponse: *toUserResponse(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (a *authService) LogoutUser(accessToken, email string) error {
	blacklist := &models.Blacklist{
		Token: accessToken,
		Email: email,
	}
	if err := a.authRepo.AddToBlackList(blacklist); err != nil {
		return errors.Wrap(err, "unable to revoke token")
	}
	return nil
}

func (a *authService) VerifyEmailOTP(email, otp string) error {
	if err := a.authRepo.VerifyEmailOTP(email, otp); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NewNotFoundError("user not found")
		}
		return errs.New("invalid verification code", http.StatusBadRequest)
	}
	return nil
}

func (a *authService) RequestPasswordReset(email string) error {
	user, err := a.authRepo.FindUserByEmail(email)
	if err != nil {
		// Don't reveal whether the address is registered.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return errors.Wrap(err, "unable to find user")
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return errors.Wrap(err, "unable to generate reset token")
	}
	user.ResetToken = hex.EncodeToString(tokenBytes)
	if err := a.authRepo.UpdateUser(user); err != nil {
		return errors.Wrap(err, "unable to store reset token")
	}

	resetLink := fmt.Sprintf("%s/password/reset/%s", a.Config.BaseUrl, user.ResetToken)
	go func() {
		if err := a.mail.SendPasswordReset(user.Email, resetLink); err != nil {
			log.Printf("failed to send password reset to %s: %v", user.Email, err)
		}
	}()
	return nil
}

func (a *authService) ResetPassword(email, token, newPassword string) error {
	user, err := a.authRepo.FindUserByEmail(email)
	if err != nil {
		return errs.NewNotFoundError("user not found")
	}
	if user.ResetToken == "" || user.ResetToken != token {
		return errs.New("invalid or expired reset token", http.StatusBadRequest)
	}
	if err := passwordPolicy.Validate(newPassword); err != nil {
		return errs.New(err.Error(), http.StatusBadRequest)
	}
	user.Password = newPassword
	if err := user.HashPassword(); err != nil {
		return errors.Wrap(err, "unable to hash password")
	}
	return a.authRepo.UpdatePassword(email, user.HashedPassword)
}

func toUserResponse(user *models.User) *models.UserResponse {
	return &models.UserResponse{
		ID:               user.ID,
		Fullname:         user.Fullname,
		Username:         user.Username,
		Email:            user.Email,
		RoleName:         user.Role.Name,
		ReportsSubmitted: user.ReportsSubmitted,
		ReportsVerified:  user.ReportsVerified,
		HelpfulVotes:     user.HelpfulVotes,
	}
}
