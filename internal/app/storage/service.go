/*
Package storage provides the object store used for image message uploads.

Clients never stream file bytes through the chat server: they request a
presigned URL, upload directly, and send the resulting key inside an image
message.
*/
package storage

import (
	"context"
	"io"
	"time"
)

// ServiceConfig holds the credentials and endpoint for the object store.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Service is the file storage interface consumed by the handlers.
type Service interface {
	// Upload streams a file to the object store from the server side.
	Upload(ctx context.Context, key, mimeType string, body io.Reader) error

	// PresignUpload generates a time-limited URL for uploading a file.
	PresignUpload(ctx context.Context, key, mimeType string, fileSize int64, duration time.Duration) (string, error)

	// PresignDownload generates a time-limited URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the file with the given key.
	Delete(ctx context.Context, key string) error
}

// NewService returns the S3-compatible implementation.
func NewService(cfg ServiceConfig) (Service, error) {
	return newS3Client(cfg)
}
