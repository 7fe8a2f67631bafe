package objstore

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const minioMaxKeys = 1000

// MinioClient stores objects on MinIO or any S3-compatible service reachable
// through minio-go. A container is a bucket.
type MinioClient struct {
	client   *minio.Client
	endpoint string
	region   string
}

func NewMinioClient(endpoint, accessKey, secretKey, region string, secure bool) (*MinioClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioClient{
		client:   client,
		endpoint: client.EndpointURL().String(),
		region:   region,
	}, nil
}

func (c *MinioClient) URL() string {
	return c.endpoint
}

func (c *MinioClient) MaxPageSize() int {
	return minioMaxKeys
}

func (c *MinioClient) CreateContainer(ctx context.Context, container string) error {
	exists, err := c.client.BucketExists(ctx, container)
	if err != nil {
		return newError("bucket exists", container, "", err)
	}
	if exists {
		return nil
	}

	err = c.client.MakeBucket(ctx, container, minio.MakeBucketOptions{Region: c.region})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return newError("make bucket", container, "", err)
	}
	return nil
}

func (c *MinioClient) PutObject(ctx context.Context, req *PutObjectRequest) error {
	_, err := c.client.PutObject(ctx, req.Container, req.Name, req.Body, req.Size, minio.PutObjectOptions{
		ContentType: req.ContentType,
	})
	if err != nil {
		return newError("put object", req.Container, req.Name, err)
	}
	return nil
}

func (c *MinioClient) DeleteObject(ctx context.Context, container, name string) error {
	err := c.client.RemoveObject(ctx, container, name, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return newError("remove object", container, name, ErrNotFound)
		}
		return newError("remove object", container, name, err)
	}
	return nil
}

// ListPage reads at most limit entries from minio's streaming listing and
// stops the stream once the page is full.
func (c *MinioClient) ListPage(ctx context.Context, container, marker string, limit int) ([]ObjectRecord, error) {
	if limit <= 0 || limit > minioMaxKeys {
		limit = minioMaxKeys
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := c.client.ListObjects(listCtx, container, minio.ListObjectsOptions{
		Recursive:  true,
		StartAfter: marker,
		MaxKeys:    limit,
	})

	records := make([]ObjectRecord, 0, limit)
	for obj := range objects {
		if obj.Err != nil {
			if minio.ToErrorResponse(obj.Err).Code == "NoSuchBucket" {
				return nil, newError("list objects", container, "", ErrNotFound)
			}
			return nil, newError("list objects", container, "", obj.Err)
		}
		records = append(records, ObjectRecord{
			Name:         obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			Hash:         obj.ETag,
			ContentType:  obj.ContentType,
		})
		if len(records) == limit {
			break
		}
	}
	return records, nil
}
