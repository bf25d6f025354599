package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultPresignExpiry is how long a presigned upload URL stays valid.
const DefaultPresignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

type S3Config struct {
	Region       string
	Bucket       string
	BaseEndpoint string
	RootUser     string
	RootPassword string
	Expiry       time.Duration
}

// S3TargetReserver reserves targets by presigning PUT URLs against an
// S3-compatible bucket. The object key is returned as the target token.
type S3TargetReserver struct {
	cfg S3Config

	mu        sync.Mutex
	presigner *s3.PresignClient
}

func NewS3TargetReserver(cfg S3Config) *S3TargetReserver {
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultPresignExpiry
	}
	return &S3TargetReserver{cfg: cfg}
}

// BlockKey returns a fresh object key for a block. Every reservation gets a
// new key so an expired URL never collides with its replacement.
func BlockKey(revisionID string, index int) string {
	return fmt.Sprintf("revisions/%s/blocks/%d/%v", revisionID, index, uuid.New())
}

func ThumbnailKey(revisionID string, thumbnailType int) string {
	return fmt.Sprintf("revisions/%s/thumbnails/%d/%v", revisionID, thumbnailType, uuid.New())
}

// getPresignClient builds the presign client on first use. A failed attempt
// is not cached.
func (r *S3TargetReserver) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.presigner != nil {
		return r.presigner, nil
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(r.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			r.cfg.RootUser,     // MINIO_ROOT_USER
			r.cfg.RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if r.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(r.cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	r.presigner = newS3PresignClient(client)

	return r.presigner, nil
}

func (r *S3TargetReserver) presign(ctx context.Context, pc *s3.PresignClient, key string) (models.UploadTarget, error) {
	bucket := r.cfg.Bucket

	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(r.cfg.Expiry))
	if err != nil {
		return models.UploadTarget{}, fmt.Errorf("presign %s: %w", key, err)
	}

	return models.UploadTarget{URL: req.URL, Token: key}, nil
}

func (r *S3TargetReserver) ReserveTargets(ctx context.Context, req models.ReserveRequest) (*models.ReserveResponse, error) {
	pc, err := r.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.ReserveResponse{
		Blocks:     make(map[int]models.UploadTarget, len(req.Blocks)),
		Thumbnails: make(map[int]models.UploadTarget, len(req.Thumbnails)),
	}

	revID := req.Identity.RevisionID

	for _, b := range req.Blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := r.presign(ctx, pc, BlockKey(revID, b.Index))
		if err != nil {
			return nil, err
		}
		resp.Blocks[b.Index] = t
	}

	for _, th := range req.Thumbnails {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := r.presign(ctx, pc, ThumbnailKey(revID, th.Type))
		if err != nil {
			return nil, err
		}
		resp.Thumbnails[th.Type] = t
	}

	return resp, nil
}
