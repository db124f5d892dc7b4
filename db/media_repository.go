package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/roadpulse/roadpulse/config"
)

// MediaRepository is the external image store: upload returns the public URL
// plus the object key kept for compensating deletes.
type MediaRepository interface {
	UploadImage(file multipart.File, key string) (string, error)
	DeleteImage(key string) error
}

type mediaRepo struct {
	conf *config.Config
}

func NewMediaRepo(conf *config.Config) MediaRepository {
	return &mediaRepo{conf: conf}
}

func (m *mediaRepo) createS3Client() (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(m.conf.AwsRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			m.conf.AwsAccessKey,
			m.conf.AwsSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %v", err)
	}

	return s3.NewFromConfig(cfg), nil
}

func (m *mediaRepo) UploadImage(file multipart.File, key string) (string, error) {
	defer file.Close()

	client, err := m.createS3Client()
	if err != nil {
		return "", fmt.Errorf("failed to create S3 client: %v", err)
	}

	fileContent, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file content: %v", err)
	}

	_, err = client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: aws.String(m.conf.AwsBucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(fileContent),
		ACL:    types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %v", err)
	}

	fileURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.conf.AwsBucket, m.conf.AwsRegion, key)
	return fileURL, nil
}

func (m *mediaRepo) DeleteImage(key string) error {
	client, err := m.createS3Client()
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %v", err)
	}

	_, err = client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
		Bucket: aws.String(m.conf.AwsBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %v", key, err)
	}
	return nil
}
