package models

import (
	"time"

	"github.com/google/uuid"
)

// CreateReportRequest is the multipart form body for POST /reports. Images
// arrive as form files and are handled by the media service.
type CreateReportRequest struct {
	ReportType  string `form:"report_type" binding:"required"`
	Severity    string `form:"severity"`
	Description string `form:"description" binding:"required"`
	// Pointers so an omitted coordinate is a 400, not a report at (0, 0).
	Latitude       *float64 `form:"latitude" binding:"required"`
	Longitude      *float64 `form:"longitude" binding:"required"`
	Address        string   `form:"address"`
	DeviceInfo     string   `form:"device_info"`
	AccuracyMeters *float64 `form:"accuracy_meters"`
	SpeedKmh       *float64 `form:"speed_kmh"`
}

// UpdateReportRequest carries the owner/admin patch. Status is applied only
// when the actor is an admin; for everyone else it is silently ignored.
type UpdateReportRequest struct {
	Description *string `json:"description"`
	Severity    *string `json:"severity"`
	Status      *string `json:"status"`
}

type CommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// ReportFilter narrows the paged listing. Zero values mean "any"; Status
// defaults to active-and-unexpired at the repository.
type ReportFilter struct {
	ReportType string
	Severity   string
	Status     string
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// ReportResponse is a report enriched with the computed fields the mobile
// client renders directly.
type ReportResponse struct {
	Report
	TimeAgo        string   `json:"time_ago"`
	Active         bool     `json:"is_active"`
	DistanceMeters *float64 `json:"distance,omitempty"`
}

// NearbyReportRow is the flat row shape scanned from the spatial query; the
// distance column comes from ST_Distance in the same statement.
type NearbyReportRow struct {
	ID                uuid.UUID `json:"id"`
	UserID            uint      `json:"user_id"`
	ReportType        string    `json:"report_type"`
	Severity          string    `json:"severity"`
	Description       string    `json:"description"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Address           string    `json:"address,omitempty"`
	Status            string    `json:"status"`
	IsVerified        bool      `json:"is_verified"`
	VerificationCount int       `json:"verification_count"`
	HelpfulCount      int       `json:"helpful_count"`
	ExpiresAt         time.Time `json:"expires_at"`
	CreatedAt         time.Time `json:"created_at"`
	Distance          float64   `json:"distance"`
}

type VerifyResponse struct {
	VerificationCount int  `json:"verification_count"`
	IsVerified        bool `json:"is_verified"`
}

type HelpfulResponse struct {
	HelpfulCount int  `json:"helpful_count"`
	Voted        bool `json:"voted"`
}

// TypeCount is one row of the by-type stats breakdown.
type TypeCount struct {
	ReportType string `json:"report_type"`
	Count      int64  `json:"count"`
}

type StatsSummary struct {
	Total    int64       `json:"total"`
	Active   int64       `json:"active"`
	Verified int64       `json:"verified"`
	Today    int64       `json:"today"`
	ByType   []TypeCount `json:"by_type"`
}
