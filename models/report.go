package models

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/leebenson/conform"

	errs "github.com/roadpulse/roadpulse/errors"
)

const (
	ReportTypeAccident     = "accident"
	ReportTypeHazard       = "hazard"
	ReportTypeConstruction = "construction"
	ReportTypeTraffic      = "traffic"
	ReportTypePolice       = "police"

	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"

	StatusActive   = "active"
	StatusResolved = "resolved"
	StatusExpired  = "expired"
	StatusFlagged  = "flagged"
)

const (
	// VerificationThreshold is the number of distinct verifiers that promotes
	// a report to verified. The flip is one-way.
	VerificationThreshold = 3

	// DefaultReportTTL applies to every report type.
	DefaultReportTTL = 24 * time.Hour

	MaxImagesPerReport = 5
	MaxImageSizeBytes  = 5 << 20

	MinDescriptionLength = 10
	MaxDescriptionLength = 500
	MaxCommentLength     = 200

	DefaultNearbyRadiusMeters = 5000
	MaxNearbyRadiusMeters     = 50000
)

// ReportTypes lists the accepted incident types.
var ReportTypes = []string{
	ReportTypeAccident,
	ReportTypeHazard,
	ReportTypeConstruction,
	ReportTypeTraffic,
	ReportTypePolice,
}

// Report is a single geotagged traffic incident. The location column is a
// PostGIS geography point maintained by the repository alongside the plain
// latitude/longitude columns; spatial queries go through it so radius
// semantics are great-circle correct, not bounding-box approximations.
type Report struct {
	ID                uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	UserID            uint          `json:"user_id" gorm:"index;not null"`
	ReportType        string        `json:"report_type" gorm:"index;not null"`
	Severity          string        `json:"severity" gorm:"default:medium"`
	Description       string        `json:"description" gorm:"type:varchar(500)" conform:"trim"`
	Latitude          float64       `json:"latitude"`
	Longitude         float64       `json:"longitude"`
	Address           string        `json:"address,omitempty" conform:"trim"`
	Status            string        `json:"status" gorm:"index;default:active"`
	IsVerified        bool          `json:"is_verified" gorm:"default:false"`
	VerificationCount int           `json:"verification_count" gorm:"default:0"`
	HelpfulCount      int           `json:"helpful_count" gorm:"default:0"`
	ViewCount         int           `json:"view_count" gorm:"default:0"`
	DeviceInfo        string        `json:"device_info,omitempty"`
	AccuracyMeters    *float64      `json:"accuracy_meters,omitempty"`
	SpeedKmh          *float64      `json:"speed_kmh,omitempty"`
	ExpiresAt         time.Time     `json:"expires_at" gorm:"index"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	Images            []ReportImage `json:"images" gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
	Comments          []Comment     `json:"-" gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
}

// ReportImage is one uploaded photo attached to a report. StorageKey is the
// S3 object key used for the compensating delete when a create fails partway.
type ReportImage struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	ReportID     uuid.UUID `json:"report_id" gorm:"type:uuid;index"`
	URL          string    `json:"url"`
	StorageKey   string    `json:"-"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	ThumbnailKey string    `json:"-"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ReportVerification is one user's endorsement that a report is accurate.
// The (report_id, user_id) unique index is the add-if-absent primitive that
// makes double votes impossible even under concurrent requests.
type ReportVerification struct {
	ID        uint      `gorm:"primaryKey"`
	ReportID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_report_verifier"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_report_verifier"`
	CreatedAt time.Time
}

// HelpfulVote is a reversible upvote, distinct from verification.
type HelpfulVote struct {
	ID        uint      `gorm:"primaryKey"`
	ReportID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_report_helpful_voter"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_report_helpful_voter"`
	CreatedAt time.Time
}

// Comment is a user's comment on a report. Username is denormalized onto the
// row at write time so the comment listing needs no join.
type Comment struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	ReportID  uuid.UUID `json:"report_id" gorm:"type:uuid;index"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content" gorm:"type:varchar(200)" conform:"trim"`
	CreatedAt time.Time `json:"created_at"`
}

// IsActive reports whether the report should be treated as live at the given
// instant. It is computed, never stored, so it stays correct in the window
// between expiry and the physical purge of the row.
func (r *Report) IsActive(now time.Time) bool {
	return r.Status == StatusActive && r.ExpiresAt.After(now)
}

// ValidReportType reports whether t is one of the accepted incident types.
func ValidReportType(t string) bool {
	for _, rt := range ReportTypes {
		if t == rt {
			return true
		}
	}
	return false
}

func ValidSeverity(s string) bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusResolved || s == StatusExpired || s == StatusFlagged
}

// ValidateCoordinates rejects NaN/Inf and out-of-range values before anything
// touches the store.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return errs.NewValidationError("latitude", "must be a number between -90 and 90")
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return errs.NewValidationError("longitude", "must be a number between -180 and 180")
	}
	return nil
}

// ValidateForCreate trims free-text fields and checks every invariant the
// store relies on. Called before any write or image upload.
func (r *Report) ValidateForCreate() error {
	if err := conform.Strings(r); err != nil {
		return errs.NewValidationError("report", err.Error())
	}
	if !ValidReportType(r.ReportType) {
		return errs.NewValidationError("report_type", fmt.Sprintf("must be one of: %s", strings.Join(ReportTypes, ", ")))
	}
	if r.Severity == "" {
		r.Severity = SeverityMedium
	}
	if !ValidSeverity(r.Severity) {
		return errs.NewValidationError("severity", "must be one of: low, medium, high")
	}
	// Length limits are in characters, not bytes.
	if n := utf8.RuneCountInString(r.Description); n < MinDescriptionLength || n > MaxDescriptionLength {
		return errs.NewValidationError("description", fmt.Sprintf("must be between %d and %d characters", MinDescriptionLength, MaxDescriptionLength))
	}
	if err := ValidateCoordinates(r.Latitude, r.Longitude); err != nil {
		return err
	}
	return nil
}

// ValidateComment trims the text and enforces the 1..200 length rule,
// returning the cleaned text.
func ValidateComment(text string) (string, error) {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < 1 || n > MaxCommentLength {
		return "", errs.NewValidationError("content", fmt.Sprintf("must be between 1 and %d characters", MaxCommentLength))
	}
	return text, nil
}

// TimeAgo renders the report age as a short human string for the mobile feed.
func TimeAgo(from, now time.Time) string {
	d := now.Sub(from)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
