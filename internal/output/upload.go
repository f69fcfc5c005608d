package output

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore is the subset of the S3 client the uploader uses.
type ObjectStore interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	client ObjectStore
	bucket string
}

func NewUploader(client ObjectStore, bucket string) *Uploader {
	return &Uploader{client: client, bucket: bucket}
}

// NewUploaderFromEnv builds an R2 uploader from R2_ENDPOINT, R2_ACCESS_KEY_ID,
// R2_SECRET_ACCESS_KEY and R2_BUCKET. It returns nil when R2 is not configured.
func NewUploaderFromEnv() *Uploader {
	endpoint := os.Getenv("R2_ENDPOINT")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	secretAccessKey := os.Getenv("R2_SECRET_ACCESS_KEY")

	if endpoint == "" || accessKeyID == "" || secretAccessKey == "" {
		return nil
	}

	bucket := os.Getenv("R2_BUCKET")
	if bucket == "" {
		bucket = "npmrds-measures"
	}

	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       "auto",
		Credentials:  credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
	})
	return NewUploader(client, bucket)
}

var contentTypes = map[string]string{
	".csv":     "text/csv",
	".json":    "application/json",
	".ndjson":  "application/x-ndjson",
	".parquet": "application/vnd.apache.parquet",
}

// UploadDir puts every regular file of dir under <base name of dir>/.
// Objects that already exist are left alone.
func (u *Uploader) UploadDir(ctx context.Context, dir string) (int, error) {
	startTime := time.Now()
	prefix := filepath.Base(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read output dir: %w", err)
	}

	var uploaded int
	var totalBytes int64
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		key := path.Join(prefix, e.Name())
		if _, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(u.bucket), Key: aws.String(key)}); err == nil {
			log.Infof("%s already exists, skipping", key)
			continue
		}

		n, err := u.putFile(ctx, filepath.Join(dir, e.Name()), key)
		if err != nil {
			return uploaded, err
		}
		uploaded++
		totalBytes += n
	}
	log.Infof("Uploaded %d files (%.2f MB) to %s/%s in %s",
		uploaded, float64(totalBytes)/1024/1024, u.bucket, prefix, time.Since(startTime))
	return uploaded, nil
}

func (u *Uploader) putFile(ctx context.Context, filePath, key string) (int64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", filePath, err)
	}

	contentType, ok := contentTypes[strings.ToLower(filepath.Ext(filePath))]
	if !ok {
		contentType = "application/octet-stream"
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	return info.Size(), nil
}
