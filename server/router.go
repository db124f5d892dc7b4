package server

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = 32 << 20
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	apirouter := router.Group("/api/v1")
	apirouter.POST("/auth/signup", s.handleSignup())
	apirouter.POST("/auth/login", s.handleLogin())
	apirouter.POST("/auth/verify-email", s.handleVerifyEmail())
	apirouter.POST("/password/forgot", s.handleForgotPassword())
	apirouter.POST("/password/reset", s.handleResetPassword())

	apirouter.GET("/reports", s.handleGetAllReports())
	apirouter.GET("/reports/nearby", s.handleGetNearbyReports())
	apirouter.GET("/reports/stats/summary", s.handleGetStatsSummary())
	apirouter.GET("/reports/:id", s.handleGetReport())
	apirouter.GET("/reports/:id/comments", s.handleGetComments())

	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())
	authorized.GET("/logout", s.handleLogout())
	authorized.GET("/me", s.handleShowProfile())
	authorized.GET("/me/reports", s.handleGetMyReports())
	authorized.POST("/reports", s.reportCreationLimiter(), s.handleCreateReport())
	authorized.PUT("/reports/:id", s.handleUpdateReport())
	authorized.DELETE("/reports/:id", s.handleDeleteReport())
	authorized.POST("/reports/:id/verify", s.handleVerifyReport())
	authorized.POST("/reports/:id/helpful", s.handleVoteHelpful())
	authorized.DELETE("/reports/:id/helpful", s.handleUnvoteHelpful())
	authorized.POST("/reports/:id/comments", s.handleAddComment())
	authorized.DELETE("/reports/:id/comments/:commentID", s.handleDeleteComment())
	authorized.POST("/reports/:id/flag", s.handleFlagReport())
}
