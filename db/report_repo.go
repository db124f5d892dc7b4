package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/roadpulse/roadpulse/models"
)

const (
	DefaultPageSize = 20
	DefaultPage     = 1
	MaxPageSize     = 100
)

// ReportRepository is the persistence layer for reports: inserts, the spatial
// nearby query, paged listing, the vote/verification sets and comments.
type ReportRepository interface {
	SaveReport(report *models.Report) (*models.Report, error)
	GetReportByID(id uuid.UUID) (*models.Report, error)
	GetReports(filter models.ReportFilter, page, limit int) ([]models.Report, int64, error)
	GetReportsByUserID(userID uint, page, limit int) ([]models.Report, int64, error)
	GetNearbyReports(lat, lng float64, radiusMeters int) ([]models.NearbyReportRow, error)
	UpdateReport(report *models.Report) error
	DeleteReport(id uuid.UUID) error
	IncrementViewCount(id uuid.UUID) error
	AddVerification(reportID uuid.UUID, userID uint) (int, bool, error)
	MarkVerified(reportID uuid.UUID) (bool, error)
	AddHelpfulVote(reportID uuid.UUID, userID uint) (int, bool, error)
	RemoveHelpfulVote(reportID uuid.UUID, userID uint) (int, bool, error)
	SaveComment(comment *models.Comment) error
	GetComments(reportID uuid.UUID) ([]models.Comment, error)
	GetCommentByID(id uuid.UUID) (*models.Comment, error)
	DeleteComment(id uuid.UUID) error
	GetStatsSummary() (*models.StatsSummary, error)
	PurgeExpired() (int64, error)
}

type reportRepo struct {
	DB *gorm.DB
}

func NewReportRepo(db *GormDB) ReportRepository {
	return &reportRepo{db.DB}
}

// SaveReport inserts the report and its images and materializes the geography
// point from the latitude/longitude columns in the same transaction. Any
// failure rolls the whole thing back so the caller can run its compensating
// image cleanup against a known state.
func (r *reportRepo) SaveReport(report *models.Report) (*models.Report, error) {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return errors.Wrap(err, "failed to save report")
		}
		return tx.Exec(
			`UPDATE reports SET location = ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography WHERE id = ?`,
			report.Longitude, report.Latitude, report.ID,
		).Error
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *reportRepo) GetReportByID(id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := r.DB.Preload("Images").Where("id = ?", id).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// GetReports returns one page plus the total count for the same filter.
// An empty Status means the default view: active and unexpired.
func (r *reportRepo) GetReports(filter models.ReportFilter, page, limit int) ([]models.Report, int64, error) {
	query := r.DB.Model(&models.Report{})
	if filter.Status == "" {
		query = query.Where("status = ? AND expires_at > ?", models.StatusActive, time.Now())
	} else {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ReportType != "" {
		query = query.Where("report_type = ?", filter.ReportType)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []models.Report
	err := query.Preload("Images").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&reports).Error
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (r *reportRepo) GetReportsByUserID(userID uint, page, limit int) ([]models.Report, int64, error) {
	query := r.DB.Model(&models.Report{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []models.Report
	err := query.Preload("Images").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&reports).Error
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// GetNearbyReports runs the radius query against the geography column, so the
// distance test is great-circle correct near poles and the antimeridian.
// Distance comes back in meters from the same statement, already sorted.
func (r *reportRepo) GetNearbyReports(lat, lng float64, radiusMeters int) ([]models.NearbyReportRow, error) {
	const query = `
		SELECT id, user_id, report_type, severity, description, latitude, longitude,
		       address, status, is_verified, verification_count, helpful_count,
		       expires_at, created_at,
		       ROUND(ST_Distance(location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography)) AS distance
		FROM reports
		WHERE status = ?
		  AND expires_at > NOW()
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)
		ORDER BY distance ASC`

	var rows []models.NearbyReportRow
	err := r.DB.Raw(query, lng, lat, models.StatusActive, lng, lat, radiusMeters).Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "nearby query failed")
	}
	return rows, nil
}

func (r *reportRepo) UpdateReport(report *models.Report) error {
	return r.DB.Model(&models.Report{}).Where("id = ?", report.ID).
		Updates(map[string]interface{}{
			"description": report.Description,
			"severity":    report.Severity,
			"status":      report.Status,
		}).Error
}

// DeleteReport removes the report and its child rows (votes, comments,
// images) in one transaction.
func (r *reportRepo) DeleteReport(id uuid.UUID) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", id).Delete(&models.ReportVerification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("report_id = ?", id).Delete(&models.HelpfulVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("report_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("report_id = ?", id).Delete(&models.ReportImage{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Report{}).Error
	})
}

func (r *reportRepo) IncrementViewCount(id uuid.UUID) error {
	return r.DB.Model(&models.Report{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// AddVerification inserts the verifier with ON CONFLICT DO NOTHING — the
// atomic add-if-absent that makes a duplicate vote a no-op even when two
// requests race — then recomputes the cached count from the set itself so it
// can never drift. Returns the fresh count and whether this call added a row.
func (r *reportRepo) AddVerification(reportID uuid.UUID, userID uint) (int, bool, error) {
	var count int
	var added bool
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`INSERT INTO report_verifications (report_id, user_id, created_at) VALUES (?, ?, NOW())
			 ON CONFLICT DO NOTHING`,
			reportID, userID,
		)
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected > 0
		return tx.Raw(
			`UPDATE reports
			 SET verification_count = (SELECT COUNT(*) FROM report_verifications WHERE report_id = ?)
			 WHERE id = ?
			 RETURNING verification_count`,
			reportID, reportID,
		).Scan(&count).Error
	})
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to add verification")
	}
	return count, added, nil
}

// MarkVerified flips is_verified one way. Reports whether this call did the
// flip, so the caller bumps the author's stat exactly once.
func (r *reportRepo) MarkVerified(reportID uuid.UUID) (bool, error) {
	res := r.DB.Model(&models.Report{}).
		Where("id = ? AND is_verified = ?", reportID, false).
		Update("is_verified", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *reportRepo) AddHelpfulVote(reportID uuid.UUID, userID uint) (int, bool, error) {
	var count int
	var added bool
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`INSERT INTO helpful_votes (report_id, user_id, created_at) VALUES (?, ?, NOW())
			 ON CONFLICT DO NOTHING`,
			reportID, userID,
		)
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected > 0
		return tx.Raw(
			`UPDATE reports
			 SET helpful_count = (SELECT COUNT(*) FROM helpful_votes WHERE report_id = ?)
			 WHERE id = ?
			 RETURNING helpful_count`,
			reportID, reportID,
		).Scan(&count).Error
	})
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to add helpful vote")
	}
	return count, added, nil
}

func (r *reportRepo) RemoveHelpfulVote(reportID uuid.UUID, userID uint) (int, bool, error) {
	var count int
	var removed bool
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("report_id = ? AND user_id = ?", reportID, userID).Delete(&models.HelpfulVote{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		return tx.Raw(
			`UPDATE reports
			 SET helpful_count = (SELECT COUNT(*) FROM helpful_votes WHERE report_id = ?)
			 WHERE id = ?
			 RETURNING helpful_count`,
			reportID, reportID,
		).Scan(&count).Error
	})
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to remove helpful vote")
	}
	return count, removed, nil
}

func (r *reportRepo) SaveComment(comment *models.Comment) error {
	return r.DB.Create(comment).Error
}

func (r *reportRepo) GetComments(reportID uuid.UUID) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.DB.Where("report_id = ?", reportID).Order("created_at ASC").Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *reportRepo) GetCommentByID(id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.DB.Where("id = ?", id).First(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *reportRepo) DeleteComment(id uuid.UUID) error {
	return r.DB.Where("id = ?", id).Delete(&models.Comment{}).Error
}

func (r *reportRepo) GetStatsSummary() (*models.StatsSummary, error) {
	summary := &models.StatsSummary{}

	if err := r.DB.Model(&models.Report{}).Count(&summary.Total).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&models.Report{}).
		Where("status = ? AND expires_at > ?", models.StatusActive, time.Now()).
		Count(&summary.Active).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&models.Report{}).
		Where("is_verified = ?", true).
		Count(&summary.Verified).Error; err != nil {
		return nil, err
	}

	today := time.Now().Truncate(24 * time.Hour)
	if err := r.DB.Model(&models.Report{}).
		Where("created_at >= ?", today).
		Count(&summary.Today).Error; err != nil {
		return nil, err
	}

	err := r.DB.Model(&models.Report{}).
		Select("report_type, COUNT(*) as count").
		Group("report_type").
		Order("count DESC").
		Scan(&summary.ByType).Error
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// PurgeExpired is the storage-level TTL sweep. Read paths never depend on it
// having run: every query filters on expires_at itself.
func (r *reportRepo) PurgeExpired() (int64, error) {
	var purged int64
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		if err := tx.Model(&models.Report{}).
			Where("expires_at <= ?", time.Now()).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		for _, m := range []interface{}{
			&models.ReportVerification{}, &models.HelpfulVote{}, &models.Comment{}, &models.ReportImage{},
		} {
			if err := tx.Where("report_id IN ?", ids).Delete(m).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Report{})
		purged = res.RowsAffected
		return res.Error
	})
	return purged, err
}
