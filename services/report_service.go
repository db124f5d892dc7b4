package services

import (
	"log"
	"math"
	"mime/multipart"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/roadpulse/roadpulse/config"
	"github.com/roadpulse/roadpulse/db"
	errs "github.com/roadpulse/roadpulse/errors"
	"github.com/roadpulse/roadpulse/models"
)

// ReportService orchestrates the report repository, the image store and the
// user stat counters behind the HTTP surface.
type ReportService interface {
	CreateReport(userID uint, req *models.CreateReportRequest, formImages []*multipart.FileHeader) (*models.ReportResponse, error)
	GetAllReports(filter models.ReportFilter, page, limit int) ([]models.ReportResponse, *models.Pagination, error)
	GetUserReports(userID uint, page, limit int) ([]models.ReportResponse, *models.Pagination, error)
	GetNearbyReports(lat, lng float64, radiusMeters int) ([]models.NearbyReportRow, error)
	GetReportByID(id string) (*models.ReportResponse, error)
	UpdateReport(id string, actor *models.User, patch *models.UpdateReportRequest) (*models.ReportResponse, error)
	DeleteReport(id string, actor *models.User) error
	VerifyReport(id string, actor *models.User) (*models.VerifyResponse, error)
	VoteHelpful(id string, actor *models.User) (*models.HelpfulResponse, error)
	UnvoteHelpful(id string, actor *models.User) (*models.HelpfulResponse, error)
	AddComment(id string, actor *models.User, content string) (*models.Comment, error)
	GetComments(id string) ([]models.Comment, error)
	DeleteComment(id, commentID string, actor *models.User) error
	FlagReport(id string, actor *models.User, reason string) error
	GetStatsSummary() (*models.StatsSummary, error)
}

type reportService struct {
	Config     *config.Config
	reportRepo db.ReportRepository
	authRepo   db.AuthRepository
	media      MediaService
}

// NewReportService instantiates a ReportService.
func NewReportService(reportRepo db.ReportRepository, authRepo db.AuthRepository, media MediaService, conf *config.Config) ReportService {
	return &reportService{
		Config:     conf,
		reportRepo: reportRepo,
		authRepo:   authRepo,
		media:      media,
	}
}

func parseReportID(id string) (uuid.UUID, error) {
	reportID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errs.NewNotFoundError("report not found")
	}
	return reportID, nil
}

// CreateReport validates everything before any side effect, uploads the
// images, then persists. If the save fails after images were stored, the
// uploads are deleted (compensating action) before the error surfaces.
func (s *reportService) CreateReport(userID uint, req *models.CreateReportRequest, formImages []*multipart.FileHeader) (*models.ReportResponse, error) {
	if req.Latitude == nil || req.Longitude == nil {
		return nil, errs.NewValidationError("location", "latitude and longitude are required")
	}

	now := time.Now()
	report := &models.Report{
		ID:             uuid.New(),
		UserID:         userID,
		ReportType:     req.ReportType,
		Severity:       req.Severity,
		Description:    req.Description,
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
		Address:        req.Address,
		DeviceInfo:     req.DeviceInfo,
		AccuracyMeters: req.AccuracyMeters,
		SpeedKmh:       req.SpeedKmh,
		Status:         models.StatusActive,
		ExpiresAt:      now.Add(models.DefaultReportTTL),
	}
	if err := report.ValidateForCreate(); err != nil {
		return nil, err
	}
	if len(formImages) > models.MaxImagesPerReport {
		return nil, errs.NewValidationError("images", "a report can carry at most 5 images")
	}

	images, err := s.media.UploadReportImages(formImages, report.ID)
	if err != nil {
		return nil, err
	}
	report.Images = images

	saved, err := s.reportRepo.SaveReport(report)
	if err != nil {
		// Images are already out on S3; clean them up so a failed create
		// leaves no orphaned objects behind.
		s.media.DeleteReportImages(images)
		return nil, errors.Wrap(err, "unable to save report")
	}

	if err := s.authRepo.AdjustReportsSubmitted(userID, 1); err != nil {
		log.Printf("failed to bump reports_submitted for user %d: %v", userID, err)
	}

	return s.toResponse(saved, time.Now()), nil
}

func (s *reportService) GetAllReports(filter models.ReportFilter, page, limit int) ([]models.ReportResponse, *models.Pagination, error) {
	if page < 1 {
		page = db.DefaultPage
	}
	if limit < 1 || limit > db.MaxPageSize {
		limit = db.DefaultPageSize
	}
	if filter.ReportType != "" && !models.ValidReportType(filter.ReportType) {
		return nil, nil, errs.NewValidationError("type", "unknown report type")
	}
	if filter.Severity != "" && !models.ValidSeverity(filter.Severity) {
		return nil, nil, errs.NewValidationError("severity", "unknown severity")
	}
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		return nil, nil, errs.NewValidationError("status", "unknown status")
	}

	reports, total, err := s.reportRepo.GetReports(filter, page, limit)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to list reports")
	}
	return s.toResponses(reports), paginate(page, limit, total), nil
}

func (s *reportService) GetUserReports(userID uint, page, limit int) ([]models.ReportResponse, *models.Pagination, error) {
	if page < 1 {
		page = db.DefaultPage
	}
	if limit < 1 || limit > db.MaxPageSize {
		limit = db.DefaultPageSize
	}
	reports, total, err := s.reportRepo.GetReportsByUserID(userID, page, limit)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to list user reports")
	}
	return s.toResponses(reports), paginate(page, limit, total), nil
}

// GetNearbyReports validates the center point, then delegates the radius
// query; rows come back distance-annotated and sorted ascending.
func (s *reportService) GetNearbyReports(lat, lng float64, radiusMeters int) ([]models.NearbyReportRow, error) {
	if err := models.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		radiusMeters = models.DefaultNearbyRadiusMeters
	}
	if radiusMeters > models.MaxNearbyRadiusMeters {
		radiusMeters = models.MaxNearbyRadiusMeters
	}
	rows, err := s.reportRepo.GetNearbyReports(lat, lng, radiusMeters)
	if err != nil {
		return nil, errors.Wrap(err, "nearby lookup failed")
	}
	return rows, nil
}

// GetReportByID fetches the report and bumps its view counter without
// blocking the response on the increment.
func (s *reportService) GetReportByID(id string) (*models.ReportResponse, error) {
	reportID, err := parseReportID(id)
	if err != nil {
		return nil, err
	}
	report, err := s.reportRepo.GetReportByID(reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewNotFoundError("report not found")
		}
		return nil, errors.Wrap(err, "unable to fetch report")
	}

	go func() {
		if err := s.reportRepo.IncrementViewCount(reportID); err != nil {
			log.Printf("failed to increment view count for %s: %v", reportID, err)
		}
	}()

	resp := s.toResponse(report, time.Now())
	resp.ViewCount++
	return resp, nil
}

// UpdateReport lets the author change description and severity. A status
// patch is applied only when the actor is an admin; for the author it is
// silently ignored rather than rejected.
func (s *reportService) UpdateReport(id string, actor *models.User, patch *models.UpdateReportRequest) (*models.ReportResponse, error) {
	reportID, err := parseReportID(id)
	if err != nil {
		return nil, err
	}
	report, err := s.reportRepo.GetReportByID(reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewNotFoundError("report not found")
		}
		return nil, errors.Wrap(err, "unable to fetch report")
	}

	isOwner := report.UserID == actor.ID
	if !isOwner && !actor.IsAdmin() {
		return nil, errs.NewAuthorizationError("you may only update your own reports")
	}

	if patch.Description != nil {
		// Same conditioning as create: trimmed first, length in characters.
		desc := strings.TrimSpace(*patch.Description)
		if n := utf8.RuneCountInString(desc); n < models.MinDescriptionLength || n > models.MaxDescriptionLength {
			return nil, errs.NewValidationError("description", "must be between 10 and 500 characters")
		}
		report.Description = desc
	}
	if patch.Severity != nil {
		if !models.ValidSeverity(*patch.Severity) {
			return nil, errs.NewValidationError("severity", "must be one of: low, medium, high")
		}
		report.Severity = *patch.Severity
	}
	if patch.Status != nil && actor.IsAdmin() {
		if !models.ValidStatus(*patch.Status) {
			return nil, errs.NewValidationError("status", "unknown status")
		}
		report.Status = *patch.Status
	}

	if err := s.reportRepo.UpdateReport(report); err != nil {
		return nil, errors.Wrap(err, "unable to update report")
	}
	return s.toResponse(report, time.Now()), nil
}

// DeleteReport removes the stored images first (best-effort), then the row,
// then decrements the author's submitted counter.
func (s *reportService) DeleteReport(id string, actor *models.User) error {
	reportID, err := parseReportID(id)
	if err != nil {
		return err
	}
	report, err := s.reportRepo.GetReportByID(reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NewNotFoundError("report not found")
		}
		return errors.Wrap(err, "unable to fetch report")
	}
	if report.UserID != actor.ID && !actor.IsAdmin() {
		return errs.NewAuthorizationError("you may only delete your own reports")
	}

	s.media.DeleteReportImages(report.Images)

	if err := s.reportRepo.DeleteReport(reportID); err != nil {
		return errors.Wrap(err, "unable to delete report")
	}

	if err := s.authRepo.AdjustReportsSubmitted(report.UserID, -1); err != nil {
		log.Printf("failed to decrement reports_submitted for user %d: %v", report.UserID, err)
	}
	return nil
}

// VerifyReport records one user's endorsement. The author cannot verify
// their own report, a duplicate vote is a conflict with no mutation, and the
// third distinct verifier flips the report to verified (one-way) and bumps
// the author's reports_verified stat.
func (s *reportService) VerifyReport(id string, actor *models.User) (*models.VerifyResponse, error) {
	reportID, err := parseReportID(id)
	if err != nil {
		return nil, err
	}
	report, err := s.reportRepo.GetReportByID(reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewNotFoundError("report not found")
		}
		return nil, errors.Wrap(err, "unable to fetch report")
	}
	if report.UserID == actor.ID {
		return nil, errs.NewAuthorizationError("you cannot verify your own report")
	}

	count, added, err := s.reportRepo.AddVerification(reportID, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "unable to add verification")
	}
	if !added {
		return nil, errs.NewConflictError("you have already verified this report")
	}

	isVerified := report.IsVerified
	if count >= models.VerificationThreshold {
		flipped, err := s.reportRepo.MarkVerified(reportID)
		if err != nil {
			return nil, errors.Wrap(err, "unable to mark report verified")
		}
		isVerified = true
		if flipped {
			if err := s.authRepo.IncrementReportsVerified(report.UserID); err != nil {
				log.Printf("failed to bump reports_verified for user %d: %v", report.UserID, err)
			}
		}
	}

	return &models.VerifyResponse{VerificationCount: count, IsVerified: isVerified}, nil
}

func (s *reportService) VoteHelpful(id string, actor *models.User) (*models.HelpfulResponse, error) {
	reportID, err := parseReportID(id)
	if err != nil {
		return nil, err
	}
	report, err := s.reportRepo.GetReportByID(reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewNotFoundError("report not found")
		}
		return nil, errors.Wrap(err, "unable to fetch report")
	}

	count, added, err := s.reportRepo.AddHelpfulVote(reportID, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "unable to add helpful vote")
	}
	if !added {
		return nil, errs.NewConflictError("you have already marked this report helpful")
	}

	if err := s.authRepo.AdjustHelpfulVotes(report.UserID, 1); err != nil {
		log.Printf("failed to bump helpful_votes for user %d: %v", report.UserID, err)
	}
	return &models.HelpfulResponse{HelpfulCount: count, Voted: true}, nil
}

func (s *reportService) UnvoteHelpful(id string, actor *models.User) (*models.HelpfulResponse, error) {
	reportID, err := parseReportID(id)
	if err != nil {
		return nil, err
	}
	report, err := s.reportRepo.GetReportByID(reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewNotFoundError("report not found")
		}
		return nil, errors.Wrap(err, "unable to fetch report")
	}

	count, removed, err := s.reportRepo.RemoveHelpfulVote(reportID, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "unable to remove helpful vote")
	}
	if !removed {
		return nil, errs.NewConflictError("you have not marked this report helpful")
	}

	if err := s.authRepo.AdjustHelpfulVotes(report.UserID, -1); err != nil {
		log.Printf("failed to decrement helpful_votes for user %d: %v", report.UserID, err)
	}
	return &models.HelpfulResponse{HelpfulCount: count, Voted: false}, nil
}

func (s *reportService) AddComment(id string, actor *models.User, content string) (*models.Comment, error) {
	reportID, err := parseReportID(id)
	if err != nil {
		return nil, err
	}
	content, err = models.ValidateComment(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.reportRepo.GetReportByID(reportID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewNotFoundError("report not found")
		}
		return nil, errors.Wrap(err, "unable to fetch report")
	}

	comment := &models.Comment{
		ID:       uuid.New(),
		ReportID: reportID,
		UserID:   actor.ID,
		Username: actor.Username,
		Content:  content,
	}
	if err := s.reportRepo.SaveComment(comment); err != nil {
		return nil, errors.Wrap(err, "unable to save comment")
	}
	return comment, nil
}

func (s *reportService) GetComments(id string) ([]models.Comment, error) {
	reportID, err := parseReportID(id)
	if err != nil {
		return nil, err
	}
	comments, err := s.reportRepo.GetComments(reportID)
	if err != nil {
		return nil, errors.Wrap(err, "unable to list comments")
	}
	return comments, nil
}

func (s *reportService) DeleteComment(id, commentID string, actor *models.User) error {
	reportID, err := parseReportID(id)
	if err != nil {
		return err
	}
	cid, err := uuid.Parse(commentID)
	if err != nil {
		return errs.NewNotFoundError("comment not found")
	}
	comment, err := s.reportRepo.GetCommentByID(cid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NewNotFoundError("comment not found")
		}
		return errors.Wrap(err, "unable to fetch comment")
	}
	if comment.ReportID != reportID {
		return errs.NewNotFoundError("comment not found")
	}
	if comment.UserID != actor.ID && !actor.IsAdmin() {
		return errs.NewAuthorizationError("you may only delete your own comments")
	}
	return s.reportRepo.DeleteComment(cid)
}

// FlagReport records flagging intent in the logs only. Status never changes
// here; admins move a report to flagged through the update path.
func (s *reportService) FlagReport(id string, actor *models.User, reason string) error {
	reportID, err := parseReportID(id)
	if err != nil {
		return err
	}
	if _, err := s.reportRepo.GetReportByID(reportID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NewNotFoundError("report not found")
		}
		return errors.Wrap(err, "unable to fetch report")
	}
	log.Printf("report %s flagged by user %d: %s", reportID, actor.ID, reason)
	return nil
}

func (s *reportService) GetStatsSummary() (*models.StatsSummary, error) {
	summary, err := s.reportRepo.GetStatsSummary()
	if err != nil {
		return nil, errors.Wrap(err, "unable to build stats summary")
	}
	return summary, nil
}

func (s *reportService) toResponse(report *models.Report, now time.Time) *models.ReportResponse {
	return &models.ReportResponse{
		Report:  *report,
		TimeAgo: models.TimeAgo(report.CreatedAt, now),
		Active:  report.IsActive(now),
	}
}

func (s *reportService) toResponses(reports []models.Report) []models.ReportResponse {
	now := time.Now()
	out := make([]models.ReportResponse, 0, len(reports))
	for i := range reports {
		out = append(out, *s.toResponse(&reports[i], now))
	}
	return out
}

func paginate(page, limit int, total int64) *models.Pagination {
	pages := int(math.Ceil(float64(total) / float64(limit)))
	return &models.Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: pages,
	}
}
