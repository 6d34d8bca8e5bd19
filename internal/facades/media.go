package facades

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-account-service/internal/config"
	"github.com/sbilibin2017/gw-account-service/internal/logger"
)

var (
	// ErrNoLocalFile is returned when Upload is called without a file path.
	ErrNoLocalFile = errors.New("no local file to upload")
	// ErrForeignURL is returned when Delete gets a URL this store did not issue.
	ErrForeignURL = errors.New("url does not belong to the media store")
)

// S3API is the subset of the S3 client used by the media facade.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// NewS3Client builds an S3 client for an S3-compatible endpoint using static credentials.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	}), nil
}

// MediaS3Facade uploads local files to an S3 bucket and returns their public URLs.
type MediaS3Facade struct {
	client    S3API
	bucket    string
	publicURL string
	now       func() time.Time
}

// NewMediaS3Facade creates a facade storing objects in bucket and
// building URLs under publicURL.
func NewMediaS3Facade(client S3API, bucket, publicURL string) *MediaS3Facade {
	return &MediaS3Facade{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// Upload stores the file at localPath and returns its URL.
// The local file is removed whether or not the upload succeeds.
func (f *MediaS3Facade) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", ErrNoLocalFile
	}
	defer removeLocal(localPath)

	file, err := os.Open(localPath)
	if err != nil {
		logger.Log.Errorw("failed to open upload", "path", localPath, "error", err)
		return "", err
	}
	defer file.Close()

	contentType, err := sniffContentType(file)
	if err != nil {
		logger.Log.Errorw("failed to read upload", "path", localPath, "error", err)
		return "", err
	}

	key := f.objectKey(localPath)
	_, err = f.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(f.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		logger.Log.Errorw("failed to upload object", "bucket", f.bucket, "key", key, "error", err)
		return "", err
	}

	url := f.publicURL + "/" + key
	logger.Log.Infow("object uploaded", "bucket", f.bucket, "key", key, "content_type", contentType)

	return url, nil
}

// Delete removes the object behind a URL previously returned by Upload.
func (f *MediaS3Facade) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, f.publicURL+"/")
	if !ok || key == "" {
		return fmt.Errorf("%w: %s", ErrForeignURL, url)
	}

	_, err := f.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		logger.Log.Errorw("failed to delete object", "bucket", f.bucket, "key", key, "error", err)
		return err
	}

	logger.Log.Infow("object deleted", "bucket", f.bucket, "key", key)
	return nil
}

func (f *MediaS3Facade) objectKey(localPath string) string {
	d := f.now()
	ext := strings.ToLower(filepath.Ext(localPath))
	return fmt.Sprintf("users/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

func sniffContentType(file *os.File) (string, error) {
	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

func removeLocal(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Log.Errorw("failed to remove local file", "path", path, "error", err)
	}
}
