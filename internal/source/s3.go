package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"snapsync/internal/backup"
	"snapsync/internal/config"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Source keeps archives as objects in a bucket:
//
//	<prefix><slug>.tar     (the archive, uploaded in parts when large)
//	<prefix><slug>.toml    (its metadata sidecar)
//
// Only archives with a sidecar and a name no ignore pattern matches are listed.
type S3Source struct {
	id       string
	bucket   string
	prefix   string
	client   S3API
	uploader *manager.Uploader
	ignore   *IgnoreMatcher
}

// NewS3Source creates a source over bucket using client.
func NewS3Source(id, bucket, prefix string, client S3API) *S3Source {
	return &S3Source{
		id:       id,
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

// NewS3ClientFromConfig builds an S3 client from the default AWS chain,
// overridden by any region, endpoint or static keys set in cfg.
func NewS3ClientFromConfig(ctx context.Context, cfg config.SourceConfig) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3PathStyle
	}), nil
}

func (s *S3Source) ID() string { return s.id }

// SetIgnore sets the patterns of archive names to skip when listing.
func (s *S3Source) SetIgnore(patterns []string) {
	s.ignore = NewIgnoreMatcher(patterns)
}

// List reads the sidecar of every archive under the prefix.
func (s *S3Source) List(ctx context.Context) ([]*backup.Record, error) {
	archives := make(map[string]bool)
	var sidecars []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if strings.Contains(name, "/") {
				continue
			}
			switch {
			case strings.HasSuffix(name, archiveExt) && !s.ignore.Match(name):
				archives[strings.TrimSuffix(name, archiveExt)] = true
			case strings.HasSuffix(name, metadataExt):
				sidecars = append(sidecars, strings.TrimSuffix(name, metadataExt))
			}
		}
	}

	var records []*backup.Record
	for _, slug := range sidecars {
		if !archives[slug] {
			continue
		}
		rec, err := s.readMetadata(ctx, slug)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Slug() < records[j].Slug() })
	return records, nil
}

func (s *S3Source) Open(ctx context.Context, rec *backup.Record) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(rec.Slug(), archiveExt)),
	})
	if err != nil {
		return nil, s.wrapNotFound(err, rec.Slug(), "opening archive")
	}
	return out.Body, nil
}

// Put uploads the archive, then its sidecar. The uploader switches to a
// multipart upload for large archives.
func (s *S3Source) Put(ctx context.Context, info backup.RecordInfo, r io.Reader) (*backup.Record, error) {
	if !validSlug(info.Slug) {
		return nil, fmt.Errorf("invalid slug %q", info.Slug)
	}

	body := &countingReader{r: r}
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(info.Slug, archiveExt)),
		Body:   body,
	}); err != nil {
		return nil, fmt.Errorf("uploading archive %s: %w", info.Slug, err)
	}

	info.SourceID = s.id
	info = withSize(info, body.n)
	if err := s.writeMetadata(ctx, info); err != nil {
		return nil, err
	}
	return backup.NewRecord(info), nil
}

// Update rewrites the sidecar for rec.
func (s *S3Source) Update(ctx context.Context, rec *backup.Record) error {
	return s.writeMetadata(ctx, rec.Info())
}

// Delete removes the archive, then the sidecar.
func (s *S3Source) Delete(ctx context.Context, rec *backup.Record) error {
	for _, ext := range []string{archiveExt, metadataExt} {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(rec.Slug(), ext)),
		}); err != nil {
			return fmt.Errorf("deleting %s%s: %w", rec.Slug(), ext, err)
		}
	}
	return nil
}

// ValidateSetup verifies the bucket exists and is reachable.
func (s *S3Source) ValidateSetup(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Source) key(slug, ext string) string {
	return s.prefix + slug + ext
}

func (s *S3Source) readMetadata(ctx context.Context, slug string) (*backup.Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(slug, metadataExt)),
	})
	if err != nil {
		return nil, s.wrapNotFound(err, slug, "reading metadata")
	}
	defer out.Body.Close()

	rec, err := decodeMetadata(out.Body, s.id)
	if err != nil {
		return nil, fmt.Errorf("reading metadata for %s: %w", slug, err)
	}
	return rec, nil
}

func (s *S3Source) writeMetadata(ctx context.Context, info backup.RecordInfo) error {
	data, err := encodeMetadata(info)
	if err != nil {
		return err
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(info.Slug, metadataExt)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", info.Slug, err)
	}
	return nil
}

func (s *S3Source) wrapNotFound(err error, slug, doing string) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %s", backup.ErrRecordNotFound, slug)
	}
	return fmt.Errorf("%s %s: %w", doing, slug, err)
}

var _ backup.Source = (*S3Source)(nil)
