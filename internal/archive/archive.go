package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"jamesfarrell.me/vidextract/internal/analysis"
	"jamesfarrell.me/vidextract/internal/storage/models"
)

// Sink keeps a copy of every assembled analysis document.
type Sink interface {
	Store(ctx context.Context, doc *analysis.Document) (string, error)
}

// ObjectName is "<video id>_analysis.json", using the same id the event
// store derives from the filename.
func ObjectName(videoName string) string {
	return models.VideoIDFromFilename(filepath.Base(videoName)) + "_analysis.json"
}

// Nop discards documents.
type Nop struct{}

func (Nop) Store(context.Context, *analysis.Document) (string, error) {
	return "", nil
}

// Local writes documents into a directory.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Store(_ context.Context, doc *analysis.Document) (string, error) {
	data, err := analysis.MarshalIndent(doc)
	if err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}

	out := filepath.Join(l.dir, ObjectName(doc.VideoName))
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("write analysis: %w", err)
	}
	return out, nil
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads documents to a bucket under an optional prefix.
type S3 struct {
	client objectPutter
	bucket string
	prefix string
}

type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	UsePathStyle bool
}

// NewS3 uses the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3) Store(ctx context.Context, doc *analysis.Document) (string, error) {
	data, err := analysis.MarshalIndent(doc)
	if err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}

	key := path.Join(s.prefix, ObjectName(doc.VideoName))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload analysis: %w", err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
