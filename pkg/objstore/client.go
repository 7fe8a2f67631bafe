package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotFound is returned when a container or object does not exist.
var ErrNotFound = errors.New("not found")

// ObjectRecord is one entry of a remote container listing.
type ObjectRecord struct {
	Name         string
	Size         int64
	LastModified time.Time
	Hash         string
	ContentType  string
}

// NewObjectRecord validates the name and builds a record.
func NewObjectRecord(name string, size int64, lastModified time.Time) (ObjectRecord, error) {
	if name == "" {
		return ObjectRecord{}, fmt.Errorf("object name cannot be empty")
	}
	if size < 0 {
		return ObjectRecord{}, fmt.Errorf("object %s: negative size %d", name, size)
	}
	return ObjectRecord{Name: name, Size: size, LastModified: lastModified}, nil
}

type PutObjectRequest struct {
	Container   string
	Name        string
	Body        io.Reader
	Size        int64
	ContentType string
	// MD5 is the hex digest sent as ETag by backends that verify it.
	MD5 string
	// SHA256 is the base64 digest sent as a flexible checksum by S3.
	SHA256 string
}

// Client performs single-object operations against a remote object store.
type Client interface {
	// CreateContainer is idempotent: an existing container is not an error.
	CreateContainer(ctx context.Context, container string) error
	PutObject(ctx context.Context, req *PutObjectRequest) error
	DeleteObject(ctx context.Context, container, name string) error
	// ListPage returns at most limit records whose names sort after marker.
	ListPage(ctx context.Context, container, marker string, limit int) ([]ObjectRecord, error)
	// MaxPageSize is the largest limit the backend honors in one ListPage call.
	MaxPageSize() int
	// URL identifies the endpoint for reporting.
	URL() string
}

// Error describes a failed store operation.
type Error struct {
	Op        string
	Container string
	Name      string
	Err       error
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Container, e.Name, e.Err)
	}
	if e.Container != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Container, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, container, name string, err error) error {
	return &Error{Op: op, Container: container, Name: name, Err: err}
}

// IsNotFound reports whether err means the addressed resource is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
