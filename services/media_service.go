package services

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"github.com/roadpulse/roadpulse/config"
	"github.com/roadpulse/roadpulse/db"
	errs "github.com/roadpulse/roadpulse/errors"
	"github.com/roadpulse/roadpulse/models"
)

const thumbnailWidth = 320

var supportedImageExtensions = map[string]bool{
	".png":  true,
	".jpeg": true,
	".jpg":  true,
	".webp": true,
}

// MediaService handles report image uploads: validation, thumbnail
// generation, and the S3 round trip. DeleteReportImages is the compensating
// action used when a report create fails after its images already went out.
type MediaService interface {
	UploadReportImages(formImages []*multipart.FileHeader, reportID uuid.UUID) ([]models.ReportImage, error)
	DeleteReportImages(images []models.ReportImage)
}

type mediaService struct {
	Config    *config.Config
	mediaRepo db.MediaRepository
}

func NewMediaService(mediaRepo db.MediaRepository, conf *config.Config) MediaService {
	return &mediaService{
		Config:    conf,
		mediaRepo: mediaRepo,
	}
}

// UploadReportImages validates and uploads up to MaxImagesPerReport images.
// If any upload fails, the ones already stored are deleted before returning,
// so the caller never has to track half-finished batches.
func (m *mediaService) UploadReportImages(formImages []*multipart.FileHeader, reportID uuid.UUID) ([]models.ReportImage, error) {
	if len(formImages) > models.MaxImagesPerReport {
		return nil, errs.NewValidationError("images", fmt.Sprintf("a report can carry at most %d images", models.MaxImagesPerReport))
	}

	uploaded := make([]models.ReportImage, 0, len(formImages))
	for _, fileHeader := range formImages {
		img, err := m.uploadOne(fileHeader, reportID)
		if err != nil {
			m.DeleteReportImages(uploaded)
			return nil, err
		}
		uploaded = append(uploaded, *img)
	}
	return uploaded, nil
}

func (m *mediaService) uploadOne(fileHeader *multipart.FileHeader, reportID uuid.UUID) (*models.ReportImage, error) {
	if fileHeader.Size > models.MaxImageSizeBytes {
		return nil, errs.NewValidationError("images", fmt.Sprintf("%s exceeds the %dMB limit", fileHeader.Filename, models.MaxImageSizeBytes>>20))
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType := fileHeader.Header.Get("Content-Type")
	if !supportedImageExtensions[ext] || !strings.HasPrefix(contentType, "image/") {
		return nil, errs.NewValidationError("images", fmt.Sprintf("%s is not a supported image type", fileHeader.Filename))
	}

	imageID := uuid.New()
	key := fmt.Sprintf("reports/%s/%s%s", reportID, imageID, ext)

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %v", err)
	}
	defer file.Close()

	url, err := m.mediaRepo.UploadImage(file, key)
	if err != nil {
		return nil, err
	}

	image := &models.ReportImage{
		ID:         imageID,
		ReportID:   reportID,
		URL:        url,
		StorageKey: key,
		UploadedAt: time.Now(),
	}

	// Thumbnail upload is best-effort; the full-size URL is what matters.
	if thumbURL, thumbKey, err := m.uploadThumbnail(fileHeader, reportID, imageID); err != nil {
		log.Printf("thumbnail generation failed for %s: %v", fileHeader.Filename, err)
	} else {
		image.ThumbnailURL = thumbURL
		image.ThumbnailKey = thumbKey
	}

	return image, nil
}

func (m *mediaService) uploadThumbnail(fileHeader *multipart.FileHeader, reportID, imageID uuid.UUID) (string, string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", "", err
	}
	defer file.Close()

	src, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		return "", "", fmt.Errorf("failed to decode image: %v", err)
	}

	thumb := resize.Resize(thumbnailWidth, 0, src, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return "", "", fmt.Errorf("failed to encode thumbnail: %v", err)
	}

	key := fmt.Sprintf("reports/%s/thumbs/%s.jpg", reportID, imageID)
	url, err := m.mediaRepo.UploadImage(nopCloser{&buf}, key)
	if err != nil {
		return "", "", err
	}
	return url, key, nil
}

// DeleteReportImages removes the stored objects, best-effort: failures are
// logged and the rest of the batch still gets attempted.
func (m *mediaService) DeleteReportImages(images []models.ReportImage) {
	for _, img := range images {
		if err := m.mediaRepo.DeleteImage(img.StorageKey); err != nil {
			log.Printf("failed to delete image %s from storage: %v", img.StorageKey, err)
		}
		if img.ThumbnailKey != "" {
			if err := m.mediaRepo.DeleteImage(img.ThumbnailKey); err != nil {
				log.Printf("failed to delete thumbnail %s from storage: %v", img.ThumbnailKey, err)
			}
		}
	}
}

// nopCloser adapts an in-memory buffer to the multipart.File the repository
// accepts.
type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

func (n nopCloser) ReadAt(p []byte, off int64) (int, error) {
	data := n.Bytes()
	if off >= int64(len(data)) {
		return 0, fmt.Errorf("read past end of buffer")
	}
	return copy(p, data[off:]), nil
}

func (n nopCloser) Seek(offset int64, whence int) (int64, error) {
	return 0, fmt.Errorf("seek not supported")
}
