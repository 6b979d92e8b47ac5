// Package bucket pushes the generated datasets to object storage so the
// public map serves from a bucket instead of this machine. Comparison
// follows the aws cli: a file uploads when the remote copy is missing,
// differs in size, or is older than the local one.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/williamstreaties/atlas/internal/layers"
)

type objectStore interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Syncer uploads a directory tree into a bucket under an optional key
// prefix.
type Syncer struct {
	store objectStore

	Bucket string
	Prefix string
	DryRun bool
}

// Result tallies one sync run. DryRun counts would-be uploads as
// uploaded.
type Result struct {
	Uploaded int
	Skipped  int
	Failed   int
	Bytes    int64
}

// ParseBucketURL splits s3://bucket/prefix into its parts. A bare
// bucket name is accepted.
func ParseBucketURL(raw string) (bucket, prefix string, err error) {
	s := strings.TrimPrefix(raw, "s3://")
	s = strings.Trim(s, "/")
	if s == "" {
		return "", "", fmt.Errorf("bucket URL %q has no bucket name", raw)
	}
	bucket, prefix, _ = strings.Cut(s, "/")
	return bucket, prefix, nil
}

// New builds a Syncer against S3, with region and credentials from the
// default chain.
func New(ctx context.Context, bucketURL string) (*Syncer, error) {
	b, p, err := ParseBucketURL(bucketURL)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return &Syncer{store: s3.NewFromConfig(awsCfg), Bucket: b, Prefix: p}, nil
}

// Sync walks the directory and uploads what the bucket is missing.
// Individual upload failures are logged and counted rather than
// aborting the walk.
func (s *Syncer) Sync(ctx context.Context, dir string) (Result, error) {
	var res Result
	logger := log.With().Str("bucket", s.Bucket).Str("prefix", s.Prefix).Logger()

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := path.Join(s.Prefix, filepath.ToSlash(rel))

		need, err := s.needsUpload(ctx, key, info)
		if err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("head request failed; uploading anyway")
			need = true
		}
		if !need {
			res.Skipped++
			return nil
		}

		if s.DryRun {
			logger.Info().Str("key", key).Int64("bytes", info.Size()).Msg("would upload")
			res.Uploaded++
			res.Bytes += info.Size()
			return nil
		}

		if err := s.upload(ctx, p, key, info.Size()); err != nil {
			logger.Error().Err(err).Str("key", key).Msg("upload failed")
			res.Failed++
			return nil
		}
		res.Uploaded++
		res.Bytes += info.Size()
		logger.Info().Str("key", key).Int64("bytes", info.Size()).Msg("uploaded")
		return nil
	})
	if err != nil {
		return res, err
	}

	if res.Failed > 0 {
		return res, fmt.Errorf("%d of %d uploads failed", res.Failed, res.Failed+res.Uploaded)
	}

	logger.Info().
		Int("uploaded", res.Uploaded).
		Int("skipped", res.Skipped).
		Int64("bytes", res.Bytes).
		Bool("dry_run", s.DryRun).
		Msg("sync complete")
	return res, nil
}

func (s *Syncer) needsUpload(ctx context.Context, key string, info fs.FileInfo) (bool, error) {
	head, err := s.store.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NotFound
		if errors.As(err, &missing) {
			return true, nil
		}
		return true, err
	}

	if aws.ToInt64(head.ContentLength) != info.Size() {
		return true, nil
	}
	if info.ModTime().After(aws.ToTime(head.LastModified)) {
		return true, nil
	}
	return false, nil
}

func (s *Syncer) upload(ctx context.Context, p, key string, size int64) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(layers.ContentType(p)),
	})
	return err
}
