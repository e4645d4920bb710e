package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBucket 生成的导览音频上传到这里
	DefaultBucket = "guide-voices"
	// ExpectedBucket 存储检查时期望存在的桶
	ExpectedBucket = "guide-audios"
)

var (
	ErrObjectExists = errors.New("storage: object already exists")
	ErrUnauthorized = errors.New("storage: unauthorized")
)

// Client s3.Client 满足这个接口
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

type Config struct {
	// Endpoint S3 兼容地址，例如 https://<project>.supabase.co/storage/v1/s3
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

type Bucket struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Store 上传和删除导览音频文件
type Store struct {
	client Client
	bucket string
}

func New(cfg Config) *Store {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	id, secret := cfg.AccessKeyID, cfg.SecretAccessKey
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: nilIfEmpty(cfg.Endpoint),
		UsePathStyle: cfg.UsePathStyle,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: id, SecretAccessKey: secret, Source: "tourguide"}, nil
		}),
	})
	return NewWithClient(client, cfg.Bucket)
}

func NewWithClient(client Client, bucket string) *Store {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Store{client: client, bucket: bucket}
}

func (s *Store) Bucket() string { return s.bucket }

// Upload 写入新对象，已存在时返回 ErrObjectExists，不覆盖
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return "", fmt.Errorf("%w: %s", ErrObjectExists, key)
	}
	if !isNotFound(err) {
		return "", wrap("head "+key, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", wrap("upload "+key, err)
	}

	logrus.WithField("bucket", s.bucket).Infof("storage: uploaded %s (%d bytes)", key, len(data))
	return key, nil
}

// Remove 删除对象，不存在的 key 不算错误
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]s3types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(k)})
	}
	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return wrap("remove", err)
	}
	for _, e := range out.Errors {
		if aws.ToString(e.Code) == "NoSuchKey" {
			continue
		}
		return fmt.Errorf("storage: remove %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
	}
	return nil
}

func (s *Store) ListBuckets(ctx context.Context) ([]Bucket, error) {
	out, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, wrap("list buckets", err)
	}
	buckets := make([]Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, Bucket{
			Name:      aws.ToString(b.Name),
			CreatedAt: aws.ToTime(b.CreationDate),
		})
	}
	return buckets, nil
}

func wrap(op string, err error) error {
	if isUnauthorized(err) {
		return fmt.Errorf("storage: %s: %w: %v", op, ErrUnauthorized, err)
	}
	return fmt.Errorf("storage: %s: %w", op, err)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func isUnauthorized(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "Unauthorized":
			return true
		}
	}
	return false
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
