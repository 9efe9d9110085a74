package domain

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const (
	maxS3DownloadRetries = 3
	initialS3Backoff     = 1 * time.Second
	maxS3Backoff         = 8 * time.Second
)

// S3Fetcher pulls a subscription bundle down from an S3 bucket/prefix into
// a local subscription directory, retrying transient failures with
// exponential backoff. It is grounded on the teacher's upload-side retry
// loop, run here in reverse (download instead of upload).
type S3Fetcher struct {
	downloader *s3manager.Downloader
	lister     *s3.S3
	bucket     string
	prefix     string
}

// NewS3Fetcher initializes an AWS session and an S3 downloader for bucket.
// Credentials and region come from the environment or an attached IAM role,
// per the aws-sdk-go default credential chain.
func NewS3Fetcher(bucket, prefix string) (*S3Fetcher, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Fetcher{
		downloader: s3manager.NewDownloader(sess),
		lister:     s3.New(sess),
		bucket:     bucket,
		prefix:     prefix,
	}, nil
}

// Sync lists every object under the fetcher's bucket/prefix and mirrors it
// into destDir, retrying each object's download independently. destDir is
// created if it does not already exist.
func (f *S3Fetcher) Sync(ctx context.Context, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create subscription directory %s: %w", destDir, err)
	}

	log.Printf("domain: syncing s3://%s/%s to %s", f.bucket, f.prefix, destDir)

	keys := []string{}
	err := f.lister.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(f.bucket),
		Prefix: aws.String(f.prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to list s3://%s/%s: %w", f.bucket, f.prefix, err)
	}

	for _, key := range keys {
		relPath := strings.TrimPrefix(key, f.prefix)
		relPath = strings.TrimPrefix(relPath, "/")
		if relPath == "" {
			continue
		}
		destPath := filepath.Join(destDir, filepath.FromSlash(relPath))

		if err := f.downloadWithRetry(ctx, key, destPath); err != nil {
			return err
		}
	}

	log.Printf("domain: sync of s3://%s/%s complete (%d objects)", f.bucket, f.prefix, len(keys))
	return nil
}

func (f *S3Fetcher) downloadWithRetry(ctx context.Context, key, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory for %s: %w", destPath, err)
	}

	var downloadErr error
	for attempt := 0; attempt < maxS3DownloadRetries; attempt++ {
		downloadErr = f.downloadOnce(ctx, key, destPath)
		if downloadErr == nil {
			return nil
		}

		log.Printf("domain: attempt %d/%d failed to download s3://%s/%s: %v", attempt+1, maxS3DownloadRetries, f.bucket, key, downloadErr)
		if attempt < maxS3DownloadRetries-1 {
			backoff := time.Duration(1<<attempt) * initialS3Backoff
			if backoff > maxS3Backoff {
				backoff = maxS3Backoff
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed to download s3://%s/%s after %d attempts: %w", f.bucket, key, maxS3DownloadRetries, downloadErr)
}

func (f *S3Fetcher) downloadOnce(ctx context.Context, key, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer out.Close()

	_, err = f.downloader.DownloadWithContext(ctx, out, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	return err
}
