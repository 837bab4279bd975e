package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"

	"beacon/internal/config"
	"beacon/internal/domain/models"
	"beacon/pkg/logger"
)

// Store saves one evidence upload and describes where it went
type Store interface {
	Save(ctx context.Context, complaintID uuid.UUID, upload models.EvidenceUpload) (models.EvidenceFile, error)
	Remove(ctx context.Context, complaintID uuid.UUID, file models.EvidenceFile) error
}

// New builds the evidence store selected by cfg.Backend
func New(cfg config.EvidenceConfig, maxFileSize int64, log *logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "disk":
		return NewDiskStore(cfg.LocalDir, maxFileSize, log)
	case "s3":
		return NewS3Store(cfg, maxFileSize, log)
	default:
		return nil, fmt.Errorf("unknown evidence backend %q", cfg.Backend)
	}
}

// storedName is <unix ms>-<random>-<client file name>. Phones upload
// several files named image.jpg within the same millisecond.
func storedName(now time.Time, unique, original string) string {
	name := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), unique, name)
}

func randomPart() string {
	return uuid.NewString()[:8]
}

// DiskStore writes evidence below a local directory
type DiskStore struct {
	dir     string
	maxSize int64
	logger  *logger.Logger
	now     func() time.Time
	unique  func() string
}

// NewDiskStore creates the directory if needed
func NewDiskStore(dir string, maxSize int64, log *logger.Logger) (*DiskStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory: %w", err)
	}
	return &DiskStore{
		dir:     dir,
		maxSize: maxSize,
		logger:  log.WithComponent("evidence-disk"),
		now:     time.Now,
		unique:  randomPart,
	}, nil
}

// Save copies the upload to disk
func (s *DiskStore) Save(ctx context.Context, complaintID uuid.UUID, upload models.EvidenceUpload) (models.EvidenceFile, error) {
	name := storedName(s.now(), s.unique(), upload.OriginalName)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return models.EvidenceFile{}, fmt.Errorf("failed to create evidence file: %w", err)
	}

	n, err := io.Copy(f, limitReader(upload.Body, s.maxSize))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = fmt.Errorf("%s exceeds %d bytes", upload.OriginalName, s.maxSize)
	}
	if err != nil {
		_ = os.Remove(path)
		return models.EvidenceFile{}, fmt.Errorf("failed to write evidence file: %w", err)
	}

	s.logger.Debug().
		Str("complaint_id", complaintID.String()).
		Str("file", name).
		Int64("size", n).
		Msg("evidence stored")

	return models.EvidenceFile{
		Filename:     name,
		OriginalName: upload.OriginalName,
		Path:         filepath.ToSlash(path),
		ContentType:  upload.ContentType,
		Size:         n,
	}, nil
}

// Remove deletes a stored file; a file that is already gone is not an error
func (s *DiskStore) Remove(ctx context.Context, complaintID uuid.UUID, file models.EvidenceFile) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(file.Filename)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove evidence file: %w", err)
	}
	return nil
}

// S3Store uploads evidence to an S3 compatible bucket
type S3Store struct {
	client    s3iface.S3API
	bucket    string
	publicURL string
	maxSize   int64
	logger    *logger.Logger
	now       func() time.Time
	unique    func() string
}

// NewS3Store creates an S3 client from static credentials when given,
// otherwise from the default AWS credential chain.
func NewS3Store(cfg config.EvidenceConfig, maxSize int64, log *logger.Logger) (*S3Store, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return NewS3StoreWithClient(s3.New(sess), cfg.Bucket, cfg.PublicURL, maxSize, log), nil
}

// NewS3StoreWithClient wraps an existing S3 client
func NewS3StoreWithClient(client s3iface.S3API, bucket, publicURL string, maxSize int64, log *logger.Logger) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxSize:   maxSize,
		logger:    log.WithComponent("evidence-s3"),
		now:       time.Now,
		unique:    randomPart,
	}
}

// Save uploads one file under evidence/<complaint id>/
func (s *S3Store) Save(ctx context.Context, complaintID uuid.UUID, upload models.EvidenceUpload) (models.EvidenceFile, error) {
	body, err := io.ReadAll(limitReader(upload.Body, s.maxSize))
	if err != nil {
		return models.EvidenceFile{}, fmt.Errorf("failed to read evidence: %w", err)
	}
	if s.maxSize > 0 && int64(len(body)) > s.maxSize {
		return models.EvidenceFile{}, fmt.Errorf("%s exceeds %d bytes", upload.OriginalName, s.maxSize)
	}

	name := storedName(s.now(), s.unique(), upload.OriginalName)
	key := objectKey(complaintID, name)

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return models.EvidenceFile{}, fmt.Errorf("unable to upload evidence to S3: %w", err)
	}

	s.logger.Debug().
		Str("complaint_id", complaintID.String()).
		Str("key", key).
		Int("size", len(body)).
		Msg("evidence uploaded")

	return models.EvidenceFile{
		Filename:     name,
		OriginalName: upload.OriginalName,
		Path:         s.location(key),
		ContentType:  contentType,
		Size:         int64(len(body)),
	}, nil
}

// Remove deletes an uploaded object
func (s *S3Store) Remove(ctx context.Context, complaintID uuid.UUID, file models.EvidenceFile) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(complaintID, file.Filename)),
	})
	if err != nil {
		return fmt.Errorf("unable to delete evidence from S3: %w", err)
	}
	return nil
}

func objectKey(complaintID uuid.UUID, name string) string {
	return fmt.Sprintf("evidence/%s/%s", complaintID, name)
}

func (s *S3Store) location(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + key
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

// limitReader reads one byte past max so oversize bodies are detectable
func limitReader(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}
	return io.LimitReader(r, max+1)
}
