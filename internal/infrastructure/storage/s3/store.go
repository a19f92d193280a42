// Package s3store keeps the position collection as one JSON object in an
// S3-compatible bucket (AWS, MinIO, R2).
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
)

var _ port.PositionStore = (*PositionStore)(nil)

type Config struct {
	Bucket       string
	Key          string
	Region       string
	Endpoint     string // 空为 AWS 官方
	UsePathStyle bool
	AccessKey    string
	SecretKey    string
}

// objectAPI s3.Client 的子集
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type PositionStore struct {
	client objectAPI
	bucket string
	key    string
}

func New(ctx context.Context, cfg Config) (*PositionStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3store: bucket is required")
	}
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, errors.New("s3store: key is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	// 未配置静态密钥时走默认凭证链
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newWithClient(client, cfg.Bucket, cfg.Key), nil
}

func newWithClient(client objectAPI, bucket, key string) *PositionStore {
	return &PositionStore{client: client, bucket: bucket, key: key}
}

// Load 对象不存在时返回空集合
func (s *PositionStore) Load(ctx context.Context) ([]*model.Position, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			return []*model.Position{}, nil
		}
		return nil, fmt.Errorf("s3store: get %s: %w", s.key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3store: read %s: %w", s.key, err)
	}
	positions := make([]*model.Position, 0)
	if len(bytes.TrimSpace(b)) == 0 {
		return positions, nil
	}
	if err := json.Unmarshal(b, &positions); err != nil {
		return nil, fmt.Errorf("s3store: decode %s: %w", s.key, err)
	}
	return positions, nil
}

// Save PutObject 单次写入，对象级原子
func (s *PositionStore) Save(ctx context.Context, positions []*model.Position) error {
	if positions == nil {
		positions = []*model.Position{}
	}
	b, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("s3store: encode: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3store: put %s: %w", s.key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	// 兼容服务商直接返回 404
	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	if errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404 {
		return true
	}
	return false
}
