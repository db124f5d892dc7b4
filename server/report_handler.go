package server

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	errs "github.com/roadpulse/roadpulse/errors"
	"github.com/roadpulse/roadpulse/models"
	"github.com/roadpulse/roadpulse/server/response"
)

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}

func (s *Server) handleCreateReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}

		var req models.CreateReportRequest
		if err := c.ShouldBind(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		form, err := c.MultipartForm()
		if err != nil && err != http.ErrNotMultipart {
			response.JSON(c, "unable to parse media", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}
		var images []*multipart.FileHeader
		if form != nil {
			images = form.File["images"]
		}

		report, err := s.ReportService.CreateReport(user.ID, &req, images)
		if err != nil {
			response.JSON(c, "unable to create report", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "report submitted successfully", http.StatusCreated, report, nil)
	}
}

func (s *Server) handleGetAllReports() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit := pageParams(c)
		filter := models.ReportFilter{
			ReportType: c.Query("type"),
			Severity:   c.Query("severity"),
			Status:     c.Query("status"),
		}

		reports, pagination, err := s.ReportService.GetAllReports(filter, page, limit)
		if err != nil {
			response.JSON(c, "unable to list reports", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "reports retrieved successfully", http.StatusOK, gin.H{
			"reports":    reports,
			"pagination": pagination,
		}, nil)
	}
}

func (s *Server) handleGetNearbyReports() gin.HandlerFunc {
	return func(c *gin.Context) {
		lat, err := strconv.ParseFloat(c.Query("latitude"), 64)
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.NewValidationError("latitude", "must be a number"))
			return
		}
		lng, err := strconv.ParseFloat(c.Query("longitude"), 64)
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.NewValidationError("longitude", "must be a number"))
			return
		}
		radius := 0
		if raw := c.Query("radius"); raw != "" {
			radius, err = strconv.Atoi(raw)
			if err != nil {
				response.JSON(c, "", http.StatusBadRequest, nil, errs.NewValidationError("radius", "must be an integer number of meters"))
				return
			}
		}

		reports, err := s.ReportService.GetNearbyReports(lat, lng, radius)
		if err != nil {
			response.JSON(c, "unable to find nearby reports", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "nearby reports retrieved successfully", http.StatusOK, reports, nil)
	}
}

func (s *Server) handleGetReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := s.ReportService.GetReportByID(c.Param("id"))
		if err != nil {
			response.JSON(c, "unable to fetch report", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "report retrieved successfully", http.StatusOK, report, nil)
	}
}

func (s *Server) handleGetMyReports() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}
		page, limit := pageParams(c)

		reports, pagination, err := s.ReportService.GetUserReports(user.ID, page, limit)
		if err != nil {
			response.JSON(c, "unable to list your reports", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "reports retrieved successfully", http.StatusOK, gin.H{
			"reports":    reports,
			"pagination": pagination,
		}, nil)
	}
}

func (s *Server) handleUpdateReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}

		var patch models.UpdateReportRequest
		if err := c.ShouldBindJSON(&patch); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		report, err := s.ReportService.UpdateReport(c.Param("id"), user, &patch)
		if err != nil {
			response.JSON(c, "unable to update report", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "report updated successfully", http.StatusOK, report, nil)
	}
}

func (s *Server) handleDeleteReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}

		if err := s.ReportService.DeleteReport(c.Param("id"), user); err != nil {
			response.JSON(c, "unable to delete report", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "report deleted successfully", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleVerifyReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}

		result, err := s.ReportService.VerifyReport(c.Param("id"), user)
		if err != nil {
			response.JSON(c, "unable to verify report", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "report verified successfully", http.StatusOK, result, nil)
	}
}

func (s *Server) handleVoteHelpful() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}

		result, err := s.ReportService.VoteHelpful(c.Param("id"), user)
		if err != nil {
			response.JSON(c, "unable to record helpful vote", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "helpful vote recorded", http.StatusOK, result, nil)
	}
}

func (s *Server) handleUnvoteHelpful() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}

		result, err := s.ReportService.UnvoteHelpful(c.Param("id"), user)
		if err != nil {
			response.JSON(c, "unable to remove helpful vote", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "helpful vote removed", http.StatusOK, result, nil)
	}
}

func (s *Server) handleAddComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}

		var req models.CommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		comment, err := s.ReportService.AddComment(c.Param("id"), user, req.Content)
		if err != nil {
			response.JSON(c, "unable to add comment", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "comment added successfully", http.StatusCreated, comment, nil)
	}
}

func (s *Server) handleGetComments() gin.HandlerFunc {
	return func(c *gin.Context) {
		comments, err := s.ReportService.GetComments(c.Param("id"))
		if err != nil {
			response.JSON(c, "unable to list comments", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "comments retrieved successfully", http.StatusOK, comments, nil)
	}
}

func (s *Server) handleDeleteComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}

		if err := s.ReportService.DeleteComment(c.Param("id"), c.Param("commentID"), user); err != nil {
			response.JSON(c, "unable to delete comment", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "comment deleted successfully", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleFlagReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			response.JSON(c, "", http.StatusUnauthorized, nil, err)
			return
		}

		var req struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&req)

		if err := s.ReportService.FlagReport(c.Param("id"), user, req.Reason); err != nil {
			response.JSON(c, "unable to flag report", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "report flagged for review", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleGetStatsSummary() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := s.ReportService.GetStatsSummary()
		if err != nil {
			response.JSON(c, "unable to build stats summary", http.StatusInternalServerError, nil, err)
			return
		}
		response.JSON(c, "stats retrieved successfully", http.StatusOK, summary, nil)
	}
}
