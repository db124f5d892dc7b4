package services

import (
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/roadpulse/roadpulse/config"
	errs "github.com/roadpulse/roadpulse/errors"
	"github.com/roadpulse/roadpulse/models"
)

// --- fakes -----------------------------------------------------------------

type fakeReportRepo struct {
	reports       map[uuid.UUID]*models.Report
	verifications map[uuid.UUID]map[uint]bool
	helpful       map[uuid.UUID]map[uint]bool
	comments      map[uuid.UUID]*models.Comment
	nearbyRows    []models.NearbyReportRow
	nearbyRadius  int
	saveErr       error
	deleted       []uuid.UUID
	views         map[uuid.UUID]int
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{
		reports:       make(map[uuid.UUID]*models.Report),
		verifications: make(map[uuid.UUID]map[uint]bool),
		helpful:       make(map[uuid.UUID]map[uint]bool),
		comments:      make(map[uuid.UUID]*models.Comment),
		views:         make(map[uuid.UUID]int),
	}
}

func (f *fakeReportRepo) SaveReport(report *models.Report) (*models.Report, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	report.CreatedAt = time.Now()
	f.reports[report.ID] = report
	return report, nil
}

func (f *fakeReportRepo) GetReportByID(id uuid.UUID) (*models.Report, error) {
	report, ok := f.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return report, nil
}

func (f *fakeReportRepo) GetReports(filter models.ReportFilter, page, limit int) ([]models.Report, int64, error) {
	var out []models.Report
	for _, r := range f.reports {
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

func (f *fakeReportRepo) GetReportsByUserID(userID uint, page, limit int) ([]models.Report, int64, error) {
	var out []models.Report
	for _, r := range f.reports {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeReportRepo) GetNearbyReports(lat, lng float64, radiusMeters int) ([]models.NearbyReportRow, error) {
	f.nearbyRadius = radiusMeters
	return f.nearbyRows, nil
}

func (f *fakeReportRepo) UpdateReport(report *models.Report) error {
	f.reports[report.ID] = report
	return nil
}

func (f *fakeReportRepo) DeleteReport(id uuid.UUID) error {
	delete(f.reports, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeReportRepo) IncrementViewCount(id uuid.UUID) error {
	f.views[id]++
	return nil
}

func (f *fakeReportRepo) AddVerification(reportID uuid.UUID, userID uint) (int, bool, error) {
	set, ok := f.verifications[reportID]
	if !ok {
		set = make(map[uint]bool)
		f.verifications[reportID] = set
	}
	if set[userID] {
		return len(set), false, nil
	}
	set[userID] = true
	if r, ok := f.reports[reportID]; ok {
		r.VerificationCount = len(set)
	}
	return len(set), true, nil
}

func (f *fakeReportRepo) MarkVerified(reportID uuid.UUID) (bool, error) {
	r, ok := f.reports[reportID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if r.IsVerified {
		return false, nil
	}
	r.IsVerified = true
	return true, nil
}

func (f *fakeReportRepo) AddHelpfulVote(reportID uuid.UUID, userID uint) (int, bool, error) {
	set, ok := f.helpful[reportID]
	if !ok {
		set = make(map[uint]bool)
		f.helpful[reportID] = set
	}
	if set[userID] {
		return len(set), false, nil
	}
	set[userID] = true
	return len(set), true, nil
}

func (f *fakeReportRepo) RemoveHelpfulVote(reportID uuid.UUID, userID uint) (int, bool, error) {
	set := f.helpful[reportID]
	if set == nil || !set[userID] {
		return len(set), false, nil
	}
	delete(set, userID)
	return len(set), true, nil
}

func (f *fakeReportRepo) SaveComment(comment *models.Comment) error {
	comment.CreatedAt = time.Now()
	f.comments[comment.ID] = comment
	return nil
}

func (f *fakeReportRepo) GetComments(reportID uuid.UUID) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range f.comments {
		if c.ReportID == reportID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeReportRepo) GetCommentByID(id uuid.UUID) (*models.Comment, error) {
	c, ok := f.comments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeReportRepo) DeleteComment(id uuid.UUID) error {
	delete(f.comments, id)
	return nil
}

func (f *fakeReportRepo) GetStatsSummary() (*models.StatsSummary, error) {
	return &models.StatsSummary{Total: int64(len(f.reports))}, nil
}

func (f *fakeReportRepo) PurgeExpired() (int64, error) { return 0, nil }

type fakeAuthRepo struct {
	reportsSubmitted map[uint]int
	reportsVerified  map[uint]int
	helpfulVotes     map[uint]int
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		reportsSubmitted: make(map[uint]int),
		reportsVerified:  make(map[uint]int),
		helpfulVotes:     make(map[uint]int),
	}
}

func (f *fakeAuthRepo) CreateUser(user *models.User) (*models.User, error) { return user, nil }
func (f *fakeAuthRepo) IsEmailExist(email string) error                    { return nil }
func (f *fakeAuthRepo) IsUsernameExist(username string) error              { return nil }
func (f *fakeAuthRepo) FindUserByEmail(email string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeAuthRepo) FindUserByID(id uint) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeAuthRepo) UpdateUser(user *models.User) error                  { return nil }
func (f *fakeAuthRepo) VerifyEmailOTP(email, otp string) error              { return nil }
func (f *fakeAuthRepo) UpdatePassword(email, hashedPassword string) error   { return nil }
func (f *fakeAuthRepo) AddToBlackList(blacklist *models.Blacklist) error    { return nil }
func (f *fakeAuthRepo) IsTokenInBlacklist(token string) bool                { return false }
func (f *fakeAuthRepo) AdjustReportsSubmitted(userID uint, delta int) error {
	f.reportsSubmitted[userID] += delta
	return nil
}
func (f *fakeAuthRepo) IncrementReportsVerified(userID uint) error {
	f.reportsVerified[userID]++
	return nil
}
func (f *fakeAuthRepo) AdjustHelpfulVotes(userID uint, delta int) error {
	f.helpfulVotes[userID] += delta
	return nil
}

type fakeMediaService struct {
	uploads []models.ReportImage
	deleted []models.ReportImage
}

func (f *fakeMediaService) UploadReportImages(formImages []*multipart.FileHeader, reportID uuid.UUID) ([]models.ReportImage, error) {
	return f.uploads, nil
}

func (f *fakeMediaService) DeleteReportImages(images []models.ReportImage) {
	f.deleted = append(f.deleted, images...)
}

// --- helpers ---------------------------------------------------------------

func newTestService(t *testing.T) (ReportService, *fakeReportRepo, *fakeAuthRepo, *fakeMediaService) {
	t.Helper()
	repo := newFakeReportRepo()
	auth := newFakeAuthRepo()
	media := &fakeMediaService{}
	svc := NewReportService(repo, auth, media, &config.Config{})
	return svc, repo, auth, media
}

func validCreateRequest() *models.CreateReportRequest {
	return &models.CreateReportRequest{
		ReportType:  models.ReportTypeAccident,
		Severity:    models.SeverityHigh,
		Description: "Major accident blocking two lanes",
		Latitude:    floatPtr(40.7128),
		Longitude:   floatPtr(-74.0060),
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	e, ok := err.(*errs.Error)
	if !ok {
		t.Fatalf("expected *errs.Error, got %T: %v", err, err)
	}
	return e.Status
}

func seedReport(repo *fakeReportRepo, authorID uint) *models.Report {
	report := &models.Report{
		ID:          uuid.New(),
		UserID:      authorID,
		ReportType:  models.ReportTypeHazard,
		Severity:    models.SeverityMedium,
		Description: "Debris scattered across the road",
		Latitude:    40.7128,
		Longitude:   -74.0060,
		Status:      models.StatusActive,
		ExpiresAt:   time.Now().Add(models.DefaultReportTTL),
		CreatedAt:   time.Now(),
	}
	repo.reports[report.ID] = report
	return report
}

// --- tests -----------------------------------------------------------------

func TestCreateReport_OK(t *testing.T) {
	svc, repo, auth, _ := newTestService(t)

	resp, err := svc.CreateReport(7, validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.Status != models.StatusActive {
		t.Fatalf("expected active status, got %q", resp.Status)
	}
	ttl := time.Until(resp.ExpiresAt)
	if ttl < 23*time.Hour || ttl > 25*time.Hour {
		t.Fatalf("expected ~24h TTL, got %v", ttl)
	}
	if !resp.Active {
		t.Fatal("fresh report should be active")
	}
	if len(repo.reports) != 1 {
		t.Fatalf("expected 1 stored report, got %d", len(repo.reports))
	}
	if auth.reportsSubmitted[7] != 1 {
		t.Fatalf("expected reports_submitted bump, got %d", auth.reportsSubmitted[7])
	}
}

func TestCreateReport_ShortDescription(t *testing.T) {
	svc, repo, auth, media := newTestService(t)

	req := validCreateRequest()
	req.Description = strings.Repeat("x", models.MinDescriptionLength-1)

	_, err := svc.CreateReport(7, req, nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := statusOf(t, err); got != 400 {
		t.Fatalf("expected 400, got %d", got)
	}
	if len(repo.reports) != 0 {
		t.Fatal("nothing should be written on validation failure")
	}
	if auth.reportsSubmitted[7] != 0 {
		t.Fatal("stats must not move on validation failure")
	}
	if len(media.deleted) != 0 {
		t.Fatal("no compensating delete expected when nothing was uploaded")
	}
}

func TestCreateReport_BadCoordinates(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	req := validCreateRequest()
	req.Latitude = floatPtr(91)

	_, err := svc.CreateReport(7, req, nil)
	if err == nil {
		t.Fatal("expected validation error for latitude 91")
	}
	if got := statusOf(t, err); got != 400 {
		t.Fatalf("expected 400, got %d", got)
	}
}

func TestCreateReport_MissingCoordinates(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	req := validCreateRequest()
	req.Latitude = nil

	_, err := svc.CreateReport(7, req, nil)
	if err == nil {
		t.Fatal("expected validation error for missing latitude")
	}
	if got := statusOf(t, err); got != 400 {
		t.Fatalf("expected 400, got %d", got)
	}
	if len(repo.reports) != 0 {
		t.Fatal("nothing should be written without coordinates")
	}
}

func TestCreateReport_MultibyteDescription(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	req := validCreateRequest()
	req.Description = strings.Repeat("д", 300)

	resp, err := svc.CreateReport(7, req, nil)
	if err != nil {
		t.Fatalf("300-character multibyte description should pass: %v", err)
	}
	if resp.Description != req.Description {
		t.Fatalf("description altered: %q", resp.Description)
	}
}

func TestCreateReport_CompensatesOnSaveFailure(t *testing.T) {
	svc, repo, auth, media := newTestService(t)

	media.uploads = []models.ReportImage{
		{ID: uuid.New(), StorageKey: "reports/a/1.jpg"},
		{ID: uuid.New(), StorageKey: "reports/a/2.jpg"},
	}
	repo.saveErr = errors.New("connection reset")

	_, err := svc.CreateReport(7, validCreateRequest(), nil)
	if err == nil {
		t.Fatal("expected save failure to surface")
	}
	if len(media.deleted) != 2 {
		t.Fatalf("expected both uploaded images deleted, got %d", len(media.deleted))
	}
	if auth.reportsSubmitted[7] != 0 {
		t.Fatal("stats must not move on failed create")
	}
}

func TestGetNearbyReports_Validation(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	if _, err := svc.GetNearbyReports(90.5, 0, 0); err == nil {
		t.Fatal("expected error for out-of-range latitude")
	}
	if _, err := svc.GetNearbyReports(0, -180.5, 0); err == nil {
		t.Fatal("expected error for out-of-range longitude")
	}

	if _, err := svc.GetNearbyReports(40.7128, -74.0060, 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if repo.nearbyRadius != models.DefaultNearbyRadiusMeters {
		t.Fatalf("expected default radius %d, got %d", models.DefaultNearbyRadiusMeters, repo.nearbyRadius)
	}

	if _, err := svc.GetNearbyReports(40.7128, -74.0060, models.MaxNearbyRadiusMeters*10); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if repo.nearbyRadius != models.MaxNearbyRadiusMeters {
		t.Fatalf("expected radius clamp to %d, got %d", models.MaxNearbyRadiusMeters, repo.nearbyRadius)
	}
}

func TestVerifyReport_SelfVerifyRejected(t *testing.T) {
	svc, repo, auth, _ := newTestService(t)
	report := seedReport(repo, 7)
	author := &models.User{Model: models.Model{ID: 7}}

	_, err := svc.VerifyReport(report.ID.String(), author)
	if err == nil {
		t.Fatal("expected self-verification to fail")
	}
	if got := statusOf(t, err); got != 403 {
		t.Fatalf("expected 403, got %d", got)
	}
	if len(repo.verifications[report.ID]) != 0 {
		t.Fatal("self-verify must not mutate the verifier set")
	}
	if auth.reportsVerified[7] != 0 {
		t.Fatal("stats must not move on rejected verification")
	}
}

func TestVerifyReport_DuplicateIsConflict(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	report := seedReport(repo, 7)
	voter := &models.User{Model: models.Model{ID: 8}}

	if _, err := svc.VerifyReport(report.ID.String(), voter); err != nil {
		t.Fatalf("first verification should succeed: %v", err)
	}
	_, err := svc.VerifyReport(report.ID.String(), voter)
	if err == nil {
		t.Fatal("expected duplicate verification to fail")
	}
	if got := statusOf(t, err); got != 400 {
		t.Fatalf("expected 400 conflict, got %d", got)
	}
	if len(repo.verifications[report.ID]) != 1 {
		t.Fatalf("verifier set mutated on duplicate: %d", len(repo.verifications[report.ID]))
	}
}

func TestVerifyReport_ThresholdFlipsOnce(t *testing.T) {
	svc, repo, auth, _ := newTestService(t)
	report := seedReport(repo, 7)

	for i, voterID := range []uint{10, 11} {
		result, err := svc.VerifyReport(report.ID.String(), &models.User{Model: models.Model{ID: voterID}})
		if err != nil {
			t.Fatalf("verification %d failed: %v", i+1, err)
		}
		if result.IsVerified {
			t.Fatalf("report verified after only %d votes", i+1)
		}
	}

	result, err := svc.VerifyReport(report.ID.String(), &models.User{Model: models.Model{ID: 12}})
	if err != nil {
		t.Fatalf("third verification failed: %v", err)
	}
	if !result.IsVerified {
		t.Fatal("third distinct verifier should flip is_verified")
	}
	if result.VerificationCount != models.VerificationThreshold {
		t.Fatalf("expected count %d, got %d", models.VerificationThreshold, result.VerificationCount)
	}
	if auth.reportsVerified[7] != 1 {
		t.Fatalf("author reports_verified should increment exactly once, got %d", auth.reportsVerified[7])
	}
}

func TestVoteHelpful_ToggleAndStats(t *testing.T) {
	svc, repo, auth, _ := newTestService(t)
	report := seedReport(repo, 7)
	voter := &models.User{Model: models.Model{ID: 9}}

	result, err := svc.VoteHelpful(report.ID.String(), voter)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !result.Voted || result.HelpfulCount != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if auth.helpfulVotes[7] != 1 {
		t.Fatalf("author helpful_votes should be 1, got %d", auth.helpfulVotes[7])
	}

	// The author may vote on their own report; only verification has a
	// self-vote restriction.
	if _, err := svc.VoteHelpful(report.ID.String(), &models.User{Model: models.Model{ID: 7}}); err != nil {
		t.Fatalf("author helpful vote should be allowed: %v", err)
	}

	if _, err := svc.VoteHelpful(report.ID.String(), voter); err == nil {
		t.Fatal("expected duplicate helpful vote to fail")
	}

	result, err = svc.UnvoteHelpful(report.ID.String(), voter)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if result.Voted {
		t.Fatal("unvote should report voted=false")
	}
	if auth.helpfulVotes[7] != 1 {
		t.Fatalf("author helpful_votes should be back to 1, got %d", auth.helpfulVotes[7])
	}

	if _, err := svc.UnvoteHelpful(report.ID.String(), voter); err == nil {
		t.Fatal("expected unvote without a vote to fail")
	}
}

func TestUpdateReport_Permissions(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	report := seedReport(repo, 7)

	stranger := &models.User{Model: models.Model{ID: 8}}
	patch := &models.UpdateReportRequest{Description: strPtr("Updated description of the incident")}
	if _, err := svc.UpdateReport(report.ID.String(), stranger, patch); err == nil {
		t.Fatal("expected non-owner update to fail")
	}

	owner := &models.User{Model: models.Model{ID: 7}}
	resolved := models.StatusResolved
	patch = &models.UpdateReportRequest{
		Description: strPtr("Updated description of the incident"),
		Status:      &resolved,
	}
	updated, err := svc.UpdateReport(report.ID.String(), owner, patch)
	if err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
	if updated.Description != "Updated description of the incident" {
		t.Fatalf("description not applied: %q", updated.Description)
	}
	if updated.Status != models.StatusActive {
		t.Fatalf("status patch must be silently ignored for non-admin owner, got %q", updated.Status)
	}

	admin := &models.User{Model: models.Model{ID: 99}, AdminStatus: true}
	updated, err = svc.UpdateReport(report.ID.String(), admin, &models.UpdateReportRequest{Status: &resolved})
	if err != nil {
		t.Fatalf("admin update failed: %v", err)
	}
	if updated.Status != models.StatusResolved {
		t.Fatalf("admin status patch should apply, got %q", updated.Status)
	}
}

func TestUpdateReport_DescriptionConditioning(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	report := seedReport(repo, 7)
	owner := &models.User{Model: models.Model{ID: 7}}

	// Padding must not buy a too-short description past the minimum.
	padded := "  " + strings.Repeat("x", models.MinDescriptionLength-1) + "  "
	if _, err := svc.UpdateReport(report.ID.String(), owner, &models.UpdateReportRequest{Description: strPtr(padded)}); err == nil {
		t.Fatal("expected padded short description to fail")
	}

	updated, err := svc.UpdateReport(report.ID.String(), owner, &models.UpdateReportRequest{Description: strPtr("  Lane reopened, traffic easing  ")})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if updated.Description != "Lane reopened, traffic easing" {
		t.Fatalf("description was not trimmed: %q", updated.Description)
	}

	cyrillic := strings.Repeat("д", 300)
	updated, err = svc.UpdateReport(report.ID.String(), owner, &models.UpdateReportRequest{Description: strPtr(cyrillic)})
	if err != nil {
		t.Fatalf("300-character multibyte description should pass on update: %v", err)
	}
	if updated.Description != cyrillic {
		t.Fatalf("description altered: %q", updated.Description)
	}
}

func TestDeleteReport_CascadesImagesAndStats(t *testing.T) {
	svc, repo, auth, media := newTestService(t)
	report := seedReport(repo, 7)
	report.Images = []models.ReportImage{
		{ID: uuid.New(), ReportID: report.ID, StorageKey: "reports/x/1.jpg"},
	}
	auth.reportsSubmitted[7] = 1

	stranger := &models.User{Model: models.Model{ID: 8}}
	if err := svc.DeleteReport(report.ID.String(), stranger); err == nil {
		t.Fatal("expected non-owner delete to fail")
	}

	owner := &models.User{Model: models.Model{ID: 7}}
	if err := svc.DeleteReport(report.ID.String(), owner); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
	if len(media.deleted) != 1 {
		t.Fatalf("expected stored image deleted, got %d", len(media.deleted))
	}
	if auth.reportsSubmitted[7] != 0 {
		t.Fatalf("expected reports_submitted decrement, got %d", auth.reportsSubmitted[7])
	}
	if len(repo.reports) != 0 {
		t.Fatal("report row should be gone")
	}
}

func TestAddComment_LengthRules(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	report := seedReport(repo, 7)
	user := &models.User{Model: models.Model{ID: 8}, Username: "beth"}

	comment, err := svc.AddComment(report.ID.String(), user, "Thanks!")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if comment.Content != "Thanks!" {
		t.Fatalf("unexpected content: %q", comment.Content)
	}
	if comment.Username != "beth" {
		t.Fatalf("commenter username not carried on the row: %q", comment.Username)
	}

	_, err = svc.AddComment(report.ID.String(), user, strings.Repeat("a", models.MaxCommentLength+1))
	if err == nil {
		t.Fatal("expected over-length comment to fail")
	}
	if got := statusOf(t, err); got != 400 {
		t.Fatalf("expected 400, got %d", got)
	}
}

func TestDeleteComment_Permissions(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	report := seedReport(repo, 7)
	author := &models.User{Model: models.Model{ID: 8}}

	comment, err := svc.AddComment(report.ID.String(), author, "I drove past, still blocked")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	stranger := &models.User{Model: models.Model{ID: 9}}
	if err := svc.DeleteComment(report.ID.String(), comment.ID.String(), stranger); err == nil {
		t.Fatal("expected stranger comment delete to fail")
	}

	admin := &models.User{Model: models.Model{ID: 99}, AdminStatus: true}
	if err := svc.DeleteComment(report.ID.String(), comment.ID.String(), admin); err != nil {
		t.Fatalf("admin comment delete failed: %v", err)
	}
	if len(repo.comments) != 0 {
		t.Fatal("comment should be gone")
	}
}

func TestGetReportByID_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.GetReportByID(uuid.New().String())
	if err == nil {
		t.Fatal("expected not found")
	}
	if got := statusOf(t, err); got != 404 {
		t.Fatalf("expected 404, got %d", got)
	}

	_, err = svc.GetReportByID("not-a-uuid")
	if err == nil {
		t.Fatal("expected not found for malformed id")
	}
	if got := statusOf(t, err); got != 404 {
		t.Fatalf("expected 404, got %d", got)
	}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
