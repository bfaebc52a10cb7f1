package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/danielbwilkinson/jargon-rag/internal/vault"
)

// S3SourceConfig holds configuration for S3Source
type S3SourceConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Prefix is the vault root inside the bucket
	Prefix string
}

// S3Source reads a vault mirrored into S3-compatible object storage. The
// bucket uses the same category layout as a vault directory.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Source creates a new S3Source. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain.
func NewS3Source(ctx context.Context, cfg S3SourceConfig) (*S3Source, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Source{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Files returns every note under the bucket prefix in layout order, then by
// key. Objects in nested "folders" are ignored.
func (s *S3Source) Files(ctx context.Context) ([]vault.File, error) {
	var files []vault.File
	for _, cat := range vault.Layout {
		dirPrefix := categoryPrefix(s.prefix, cat.Dir)

		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(s.bucket),
			Prefix:    aws.String(dirPrefix),
			Delimiter: aws.String("/"),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s: %w", dirPrefix, err)
			}

			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				title, ok := vault.TitleFromName(strings.TrimPrefix(key, dirPrefix))
				if !ok {
					continue
				}

				content, err := s.getObject(ctx, key)
				if err != nil {
					return nil, err
				}

				files = append(files, vault.File{Title: title, Type: cat.Type, Content: content})
			}
		}
	}
	return files, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *S3Source) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// PutNote uploads a note into its category folder
func (s *S3Source) PutNote(ctx context.Context, cat vault.Category, title string, content []byte) error {
	key := categoryPrefix(s.prefix, cat.Dir) + title + ".md"

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("text/markdown"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return nil
}

func (s *S3Source) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	return content, nil
}

func categoryPrefix(root, dir string) string {
	if root == "" {
		return dir + "/"
	}
	return path.Join(root, dir) + "/"
}
