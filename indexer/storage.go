package indexer

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const (
	maxS3UploadRetries = 3               // Total number of upload attempts per file
	initialS3Backoff   = 1 * time.Second // Initial backoff duration
	maxS3Backoff       = 8 * time.Second // Maximum backoff duration
)

// ShardStorage publishes a built shard directory (cmd/shardgen's output:
// records.bolt, content.blob) to whichever object storage a domain's
// subscriptions are configured to sync from.
type ShardStorage interface {
	UploadShard(shardDir string) error
}

// S3Storage implements ShardStorage for AWS S3. Uploaded keys are flat
// under bucket/prefix, with no extra nesting, matching the layout
// domain.S3Fetcher.Sync expects to mirror back into a subscription
// directory: a shard published to prefix "myapp" lands at
// s3://bucket/myapp/records.bolt and s3://bucket/myapp/content.blob, and
// Sync downloads them to the same relative paths under destDir.
type S3Storage struct {
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Storage creates a new S3Storage instance targeting bucket/prefix.
// AWS credentials and region are configured via environment variables
// (e.g., AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_REGION) or IAM roles.
func NewS3Storage(bucket, prefix string) (*S3Storage, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	uploader := s3manager.NewUploader(sess)

	log.Printf("indexer: initialized S3Storage for bucket %s, prefix %s", bucket, prefix)
	return &S3Storage{
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

// UploadShard uploads every file under shardDir to S3, keyed by prefix plus
// the file's path relative to shardDir.
func (s *S3Storage) UploadShard(shardDir string) error {
	info, err := os.Stat(shardDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("shard directory %s does not exist", shardDir)
		}
		return fmt.Errorf("failed to stat shard directory %s: %w", shardDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("shard path %s is not a directory", shardDir)
	}

	log.Printf("indexer: publishing shard %s to s3://%s/%s", shardDir, s.bucket, s.prefix)

	err = filepath.WalkDir(shardDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err // Return error if walking fails
		}

		if d.IsDir() {
			return nil // Skip directories, we only upload files
		}

		relPath, err := filepath.Rel(shardDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}

		// S3 uses forward slashes, ensure that even on Windows
		s3Key := filepath.ToSlash(filepath.Join(s.prefix, relPath))

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", path, err)
		}
		defer file.Close() // Ensure file is closed after upload

		log.Printf("Uploading %s to s3://%s/%s", path, s.bucket, s3Key)

		var uploadErr error
		for attempt := 0; attempt < maxS3UploadRetries; attempt++ {
			// We need to seek to the beginning of the file for each retry attempt
			// because S3 uploader consumes the reader.
			_, err := file.Seek(0, io.SeekStart)
			if err != nil {
				// This is a non-recoverable error for this file, so we fail fast.
				return fmt.Errorf("failed to seek file %s to start for retry: %w", path, err)
			}

			_, uploadErr = s.uploader.Upload(&s3manager.UploadInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(s3Key),
				Body:   file,
			})

			if uploadErr == nil {
				break // Success
			}

			log.Printf("Attempt %d/%d failed to upload file %s to S3: %v", attempt+1, maxS3UploadRetries, path, uploadErr)
			if attempt < maxS3UploadRetries-1 {
				backoff := time.Duration(1<<attempt) * initialS3Backoff
				if backoff > maxS3Backoff {
					backoff = maxS3Backoff
				}
				log.Printf("Retrying in %v...", backoff)
				time.Sleep(backoff)
			}
		}

		if uploadErr != nil {
			return fmt.Errorf("failed to upload file %s to S3 after %d attempts: %w", path, maxS3UploadRetries, uploadErr)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("error publishing shard to s3://%s/%s: %w", s.bucket, s.prefix, err)
	}

	log.Printf("indexer: published shard %s to s3://%s/%s", shardDir, s.bucket, s.prefix)
	return nil
}

// LocalFileStorage implements ShardStorage for the local filesystem.
// This is a stand-in for cloud storage like S3, kept for local testing/development purposes.
type LocalFileStorage struct {
	storageDir string
}

// NewLocalFileStorage creates a new LocalFileStorage instance, ensuring the directory exists.
func NewLocalFileStorage(dir string) (*LocalFileStorage, error) {
	// Check if the directory exists. If not, attempt to create it.
	// If it exists, check if it's a directory and if we have write permissions.
	fileInfo, err := os.Stat(dir)

	if err != nil {
		if os.IsNotExist(err) {
			// Directory does not exist, attempt to create it.
			// Before creating, check if the parent directory has write permissions.
			parentDir := filepath.Dir(dir)
			parentInfo, permErr := os.Stat(parentDir)
			if permErr != nil {
				// If we can't even stat the parent, something is wrong.
				return nil, fmt.Errorf("failed to access parent directory %s: %w", parentDir, permErr)
			}
			// Check if parent is a directory and has write permission for the owner.
			if !parentInfo.IsDir() || parentInfo.Mode().Perm()&0200 == 0 {
				return nil, fmt.Errorf("parent directory %s lacks write permissions", parentDir)
			}

			// Attempt to create the directory.
			if err := os.MkdirAll(dir, 0755); err != nil {
				// MkdirAll might fail for reasons other than permissions, but if it fails and the error indicates permission issues, surface that.
				// A common way to check this is if the error message contains "permission denied" or similar.
				// For simplicity, we'll return the error from MkdirAll. If it's permission related, the error message should indicate it.
				return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
			}
		} else {
			// An error occurred that is not 'not exists'. Return it.
			return nil, fmt.Errorf("failed to stat directory %s: %w", dir, err)
		}
	} else {
		// Directory exists. Check if it's a directory and if we have write permissions.
		if !fileInfo.IsDir() {
			return nil, fmt.Errorf("path %s exists but is not a directory", dir)
		}
		// Check for write permission for the owner.
		if fileInfo.Mode().Perm()&0200 == 0 {
			return nil, fmt.Errorf("directory %s does not have write permissions", dir)
		}
	}

	return &LocalFileStorage{storageDir: dir}, nil
}

// UploadShard copies the contents of the shard directory to the local storage directory.
// It creates a subdirectory within storageDir that mirrors the structure of the segmentPath.
func (s *LocalFileStorage) UploadShard(segmentPath string) error {
	log.Printf("Uploading index segment from %s to local storage %s", segmentPath, s.storageDir)

	info, err := os.Stat(segmentPath)
	if err != nil {
		// Check if the error is because the path does not exist and adjust the error message.
		if os.IsNotExist(err) {
			return fmt.Errorf("segment path %s does not exist", segmentPath)
		}
		return fmt.Errorf("failed to stat segment path %s: %w", segmentPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("segment path %s is not a directory", segmentPath)
	}

	// Create a subdirectory within the storage directory that matches the base name of the segment path.
	// This keeps uploads organized, especially if multiple segments are uploaded.
	destSegmentDir := filepath.Join(s.storageDir, filepath.Base(segmentPath))
	if err := os.MkdirAll(destSegmentDir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory %s: %w", destSegmentDir, err)
	}

	// Walk the source segment directory and copy files to the destination.
	err = filepath.WalkDir(segmentPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err // Propagate errors during walk
		}

		// Skip the source segment directory itself, as we've already created its counterpart.
		if path == segmentPath {
			return nil
		}

		// Calculate the relative path to determine the destination within destSegmentDir.
		relPath, err := filepath.Rel(segmentPath, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		destPath := filepath.Join(destSegmentDir, relPath)

		if d.IsDir() {
			// Create subdirectory in the destination.
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return fmt.Errorf("failed to create destination subdirectory %s: %w", destPath, err)
			}
		} else {
			// Copy the file.
			if err := copyFile(path, destPath); err != nil {
				return fmt.Errorf("failed to copy file from %s to %s: %w", path, destPath, err)
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("error during local segment upload: %w", err)
	}

	log.Printf("Successfully 'uploaded' index segment from %s to local storage %s", segmentPath, destSegmentDir)
	return nil
}

// copyFile is a helper function to copy a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer sourceFile.Close()

	// Ensure destination directory exists
	destDir := filepath.Dir(dst)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory %s: %w", destDir, err)
	}

	destinationFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", dst, err)
	}
	defer destinationFile.Close()

	_, err = io.Copy(destinationFile, sourceFile)
	if err != nil {
		return fmt.Errorf("failed to copy content from %s to %s: %w", src, dst, err)
	}

	// Copy file permissions
	sourceInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source file %s for permissions: %w", src, err)
	}
	if err := os.Chmod(dst, sourceInfo.Mode()); err != nil {
		return fmt.Errorf("failed to set permissions on destination file %s: %w", dst, err)
	}

	return nil
}
