package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/fhirkeeper/internal/common"
)

// deleteBatchSize is the S3 limit for a single DeleteObjects call.
const deleteBatchSize = 1000

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Config addresses a bucket on AWS S3 or an S3 compatible server such as
// MinIO. Every name is stored under Prefix.
type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	Prefix       string
}

// S3 is a blob store kept in an S3 bucket.
type S3 struct {
	cfg S3Config
}

var _ Store = &S3{}

func NewS3(cfg S3Config) *S3 {
	return &S3{cfg: cfg}
}

// Open builds a client for this connection.
func (s *S3) Open(ctx context.Context) (Conn, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.cfg.AccessKey,
			s.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %w", common.ErrStorage, err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if s.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Conn{client: client, bucket: s.cfg.Bucket, prefix: s.cfg.Prefix}, nil
}

type s3Conn struct {
	client s3API
	bucket string
	prefix string
}

func (c *s3Conn) Close() error { return nil }

func (c *s3Conn) key(name string) string {
	return c.prefix + name
}

func (c *s3Conn) Store(ctx context.Context, name string, b Blob) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(c.key(name)),
		Body:          bytes.NewReader(b.Data),
		ContentLength: aws.Int64(int64(len(b.Data))),
	}
	if b.ContentType != "" {
		in.ContentType = aws.String(b.ContentType)
	}
	if _, err := c.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("%w: put %s: %w", common.ErrStorage, name, err)
	}
	return nil
}

func (c *s3Conn) Fetch(ctx context.Context, name string) (*Blob, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: blob %s", common.ErrorNotFound, name)
		}
		return nil, fmt.Errorf("%w: get %s: %w", common.ErrStorage, name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrStorage, name, err)
	}
	return &Blob{ContentType: aws.ToString(out.ContentType), Data: data}, nil
}

func (c *s3Conn) Delete(ctx context.Context, names ...string) error {
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = c.key(n)
	}
	return c.deleteKeys(ctx, keys)
}

// DeleteAll removes every object under the prefix.
func (c *s3Conn) DeleteAll(ctx context.Context) error {
	var keys []string
	p := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("%w: list %s: %w", common.ErrStorage, c.prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return c.deleteKeys(ctx, keys)
}

func (c *s3Conn) deleteKeys(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("%w: delete objects: %w", common.ErrStorage, err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("%w: delete %s: %s", common.ErrStorage,
				strings.TrimPrefix(aws.ToString(e.Key), c.prefix), aws.ToString(e.Message))
		}
	}
	return nil
}
