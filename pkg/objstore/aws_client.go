package objstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const s3MaxKeys = 1000

// S3API is the subset of the S3 client used by AWSClient.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// AWSClient stores objects in S3 buckets. A container is a bucket.
type AWSClient struct {
	client   S3API
	uploader uploader
	region   string
	endpoint string
}

// NewAWSClient builds a client from cfg. A non-empty endpoint targets an
// S3-compatible service instead of AWS.
func NewAWSClient(cfg aws.Config, endpoint string, usePathStyle bool) *AWSClient {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = usePathStyle
	})

	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
	}

	return &AWSClient{
		client:   client,
		uploader: manager.NewUploader(client),
		region:   cfg.Region,
		endpoint: endpoint,
	}
}

func (c *AWSClient) URL() string {
	return c.endpoint
}

func (c *AWSClient) MaxPageSize() int {
	return s3MaxKeys
}

func (c *AWSClient) CreateContainer(ctx context.Context, container string) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(container)})
	if err == nil {
		return nil
	}
	if !isAWSNotFound(err) {
		return newError("head bucket", container, "", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(container)}
	// us-east-1 rejects an explicit location constraint
	if c.region != "" && c.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}

	_, err = c.client.CreateBucket(ctx, input)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return newError("create bucket", container, "", err)
	}
	return nil
}

func (c *AWSClient) PutObject(ctx context.Context, req *PutObjectRequest) error {
	input := &s3.PutObjectInput{
		Bucket:            aws.String(req.Container),
		Key:               aws.String(req.Name),
		Body:              req.Body,
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}
	// a full-object checksum is only valid for single part uploads
	if req.SHA256 != "" && req.Size < manager.DefaultUploadPartSize {
		input.ChecksumSHA256 = aws.String(req.SHA256)
	}

	if _, err := c.uploader.Upload(ctx, input); err != nil {
		return newError("put object", req.Container, req.Name, err)
	}
	return nil
}

func (c *AWSClient) DeleteObject(ctx context.Context, container, name string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
	})
	if err != nil {
		if isAWSNotFound(err) {
			return newError("delete object", container, name, fmt.Errorf("%w: %v", ErrNotFound, err))
		}
		return newError("delete object", container, name, err)
	}
	return nil
}

func (c *AWSClient) ListPage(ctx context.Context, container, marker string, limit int) ([]ObjectRecord, error) {
	if limit <= 0 || limit > s3MaxKeys {
		limit = s3MaxKeys
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(container),
		MaxKeys: aws.Int32(int32(limit)),
	}
	if marker != "" {
		input.StartAfter = aws.String(marker)
	}

	output, err := c.client.ListObjectsV2(ctx, input)
	if err != nil {
		if isAWSNotFound(err) {
			return nil, newError("list objects", container, "", fmt.Errorf("%w: %v", ErrNotFound, err))
		}
		return nil, newError("list objects", container, "", err)
	}

	records := make([]ObjectRecord, 0, len(output.Contents))
	for _, obj := range output.Contents {
		if obj.Key == nil {
			continue
		}
		records = append(records, ObjectRecord{
			Name:         aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			Hash:         aws.ToString(obj.ETag),
		})
	}
	return records, nil
}

func isAWSNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket", "NoSuchKey":
			return true
		}
	}
	return false
}
