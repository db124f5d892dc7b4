package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	errs "github.com/roadpulse/roadpulse/errors"
	"github.com/roadpulse/roadpulse/models"
	"github.com/roadpulse/roadpulse/server/response"
)

func (s *Server) handleSignup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var user models.User
		if err := c.ShouldBindJSON(&user); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		userResponse, err := s.AuthService.SignupUser(&user)
		if err != nil {
			response.JSON(c, "unable to sign up", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "signup successful, check your email for a verification code", http.StatusCreated, userResponse, nil)
	}
}

func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		loginResponse, err := s.AuthService.LoginUser(&req)
		if err != nil {
			response.JSON(c, "unable to log in", http.StatusUnauthorized, nil, err)
			return
		}
		response.JSON(c, "login successful", http.StatusOK, loginResponse, nil)
	}
}

func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}
		accessToken := c.GetString("access_token")

		if err := s.AuthService.LogoutUser(accessToken, user.Email); err != nil {
			response.JSON(c, "unable to log out", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "logout successful", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleVerifyEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required,email"`
			OTP   string `json:"otp" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		if err := s.AuthService.VerifyEmailOTP(req.Email, req.OTP); err != nil {
			response.JSON(c, "unable to verify email", http.StatusBadRequest, nil, err)
			return
		}
		response.JSON(c, "email verified successfully", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleForgotPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		if err := s.AuthService.RequestPasswordReset(req.Email); err != nil {
			response.JSON(c, "unable to process request", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "if that address is registered, a reset link has been sent", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleResetPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email       string `json:"email" binding:"required,email"`
			Token       string `json:"token" binding:"required"`
			NewPassword string `json:"new_password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		if err := s.AuthService.ResetPassword(req.Email, req.Token, req.NewPassword); err != nil {
			response.JSON(c, "unable to reset password", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "password reset successfully", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleShowProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}

		profile := models.UserResponse{
			ID:               user.ID,
			Fullname:         user.Fullname,
			Username:         user.Username,
			Email:            user.Email,
			RoleName:         user.Role.Name,
			ReportsSubmitted: user.ReportsSubmitted,
			ReportsVerified:  user.ReportsVerified,
			HelpfulVotes:     user.HelpfulVotes,
		}
		response.JSON(c, "profile retrieved successfully", http.StatusOK, profile, nil)
	}
}
