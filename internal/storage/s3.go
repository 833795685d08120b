package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for the object-store backend.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
	// SignedURLTTL bounds how long a presigned URL stays valid.
	// Defaults to one hour.
	SignedURLTTL time.Duration
}

// Compile-time check that S3Backend implements Backend.
var _ Backend = (*S3Backend)(nil)

// S3Backend implements Backend against an S3 bucket. URLs are presigned
// GETs with a fixed TTL, recomputed on every URLFor call.
type S3Backend struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	urlTTL  time.Duration
	logger  *slog.Logger
}

// NewS3Backend creates an S3Backend from the given configuration.
func NewS3Backend(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Backend{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		urlTTL:  cfg.SignedURLTTL,
		logger:  logger,
	}, nil
}

// Store uploads the original and, best-effort, the thumbnail.
func (b *S3Backend) Store(ctx context.Context, topic, artifactID string, original Object, thumbnail *Object) (StoredKeys, error) {
	keys := StoredKeys{
		OriginalKey: Key(topic, artifactID, VariantOriginal, original.Ext),
	}
	if err := b.put(ctx, keys.OriginalKey, original); err != nil {
		return StoredKeys{}, &WriteError{Key: keys.OriginalKey, Err: err}
	}

	if thumbnail != nil {
		thumbKey := Key(topic, artifactID, VariantThumb, thumbnail.Ext)
		if err := b.put(ctx, thumbKey, *thumbnail); err != nil {
			b.logger.Warn("thumbnail upload failed",
				slog.String("key", thumbKey),
				slog.String("error", err.Error()),
			)
		} else {
			keys.ThumbnailKey = thumbKey
		}
	}

	return keys, nil
}

func (b *S3Backend) put(ctx context.Context, key string, obj Object) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(obj.Data),
		ContentType: aws.String(obj.ContentType),
	})
	return err
}

// List paginates over the topic prefix and rebuilds entries from key
// names, newest first.
func (b *S3Backend) List(ctx context.Context, topic string) ([]Entry, error) {
	byID := make(map[string]*Entry)

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(topic + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			parsed, ok := ParseKey(key)
			if !ok || parsed.Topic != topic {
				continue
			}

			entry, exists := byID[parsed.ArtifactID]
			if !exists {
				entry = &Entry{ArtifactID: parsed.ArtifactID}
				byID[parsed.ArtifactID] = entry
			}

			switch parsed.Variant {
			case VariantOriginal:
				entry.OriginalKey = key
				entry.ModifiedAt = aws.ToTime(obj.LastModified)
			case VariantThumb:
				entry.ThumbnailKey = key
			}
		}
	}

	entries := make([]Entry, 0, len(byID))
	for _, e := range byID {
		if e.OriginalKey == "" {
			continue
		}
		entries = append(entries, *e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ModifiedAt.Equal(entries[j].ModifiedAt) {
			return entries[i].ModifiedAt.After(entries[j].ModifiedAt)
		}
		return entries[i].ArtifactID > entries[j].ArtifactID
	})

	return entries, nil
}

// URLFor presigns a GET for the key. The URL expires after the
// configured TTL, so callers must resolve it fresh on every read.
func (b *S3Backend) URLFor(ctx context.Context, key string) (string, error) {
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(b.urlTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Fetch downloads the original bytes of an artifact. The key is located
// by prefix because the extension is not part of the artifact ID.
func (b *S3Backend) Fetch(ctx context.Context, topic, artifactID string) (Object, error) {
	prefix := originalPrefix(topic, artifactID)

	listed, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return Object{}, fmt.Errorf("locate original: %w", err)
	}
	if len(listed.Contents) == 0 {
		return Object{}, ErrNotFound
	}

	key := aws.ToString(listed.Contents[0].Key)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Object{}, fmt.Errorf("get object %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Object{}, fmt.Errorf("read object %s: %w", key, err)
	}

	parsed, _ := ParseKey(key)
	return Object{
		Data:        data,
		ContentType: ContentTypeForExt(parsed.Ext),
		Ext:         parsed.Ext,
	}, nil
}
