package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync/atomic"

	"github.com/yuya-takeyama/bulklift/internal/checksum"
	"github.com/yuya-takeyama/bulklift/pkg/logger"
	"github.com/yuya-takeyama/bulklift/pkg/objstore"
	"github.com/yuya-takeyama/bulklift/pkg/planner"
	"github.com/yuya-takeyama/bulklift/pkg/worker"
)

// Payload is the read-only context shared by every worker of a run.
type Payload struct {
	Container string
	URL       string
	Source    string
	DryRun    bool
}

// Recorder receives per-item events, typically for metrics.
type Recorder interface {
	ObserveUpload(bytes int64)
	ObserveDelete()
	ObserveFailure(action string)
	ObserveRetry(action string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveUpload(int64)   {}
func (nopRecorder) ObserveDelete()        {}
func (nopRecorder) ObserveFailure(string) {}
func (nopRecorder) ObserveRetry(string)   {}

// Stats are updated concurrently by workers.
type Stats struct {
	uploaded      atomic.Int64
	deleted       atomic.Int64
	failed        atomic.Int64
	retries       atomic.Int64
	bytesUploaded atomic.Int64
}

type StatsSnapshot struct {
	Uploaded      int64 `json:"uploaded"`
	Deleted       int64 `json:"deleted"`
	Failed        int64 `json:"failed"`
	Retries       int64 `json:"retries"`
	BytesUploaded int64 `json:"bytes_uploaded"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Uploaded:      s.uploaded.Load(),
		Deleted:       s.deleted.Load(),
		Failed:        s.failed.Load(),
		Retries:       s.retries.Load(),
		BytesUploaded: s.bytesUploaded.Load(),
	}
}

type Executor struct {
	client   objstore.Client
	logger   logger.Logger
	payload  Payload
	retry    RetryPolicy
	recorder Recorder
	stats    Stats
}

func NewExecutor(client objstore.Client, logger logger.Logger, payload Payload, retry RetryPolicy) *Executor {
	return &Executor{
		client:   client,
		logger:   logger,
		payload:  payload,
		retry:    retry,
		recorder: nopRecorder{},
	}
}

// WithRecorder sets the recorder for per-item events.
func (e *Executor) WithRecorder(r Recorder) *Executor {
	if r != nil {
		e.recorder = r
	}
	return e
}

func (e *Executor) Stats() StatsSnapshot {
	return e.stats.Snapshot()
}

// EnsureContainer creates the payload container unless it already exists.
func (e *Executor) EnsureContainer(ctx context.Context) error {
	if e.payload.DryRun {
		return nil
	}
	_, err := e.retry.do(ctx, func() error {
		return e.client.CreateContainer(ctx, e.payload.Container)
	}, func(attempt int, err error) {
		e.logger.Debug(fmt.Sprintf("create container %s: attempt %d failed: %v", e.payload.Container, attempt, err))
	})
	if err != nil {
		return fmt.Errorf("ensure container %s: %w", e.payload.Container, err)
	}
	return nil
}

// Execute performs one item and records its outcome. It matches
// worker.Operation.
func (e *Executor) Execute(ctx context.Context, item planner.Item) error {
	var err error
	switch item.Action {
	case planner.ActionUpload:
		e.logger.Upload(item.LocalPath, e.remotePath(item.Name))
		err = e.uploadFile(ctx, item)
	case planner.ActionDelete:
		e.logger.Delete(e.remotePath(item.Name))
		err = e.deleteObject(ctx, item)
	default:
		err = fmt.Errorf("unknown action %q for %s", item.Action, item.Name)
	}

	if err != nil {
		// an abort in progress is not an item failure
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return err
		}
		e.stats.failed.Add(1)
		e.recorder.ObserveFailure(string(item.Action))
		e.logger.Error(string(item.Action), item.Name, err)
		return err
	}

	switch item.Action {
	case planner.ActionUpload:
		e.stats.uploaded.Add(1)
		e.stats.bytesUploaded.Add(item.Size)
		e.recorder.ObserveUpload(item.Size)
	case planner.ActionDelete:
		e.stats.deleted.Add(1)
		e.recorder.ObserveDelete()
	}
	return nil
}

func (e *Executor) uploadFile(ctx context.Context, item planner.Item) error {
	file, err := os.Open(item.LocalPath)
	if err != nil {
		if e.sourceGone() {
			return worker.FatalInput(fmt.Errorf("source %s is no longer readable: %w", e.payload.Source, err))
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	digests, err := checksum.Calculate(file)
	if err != nil {
		return fmt.Errorf("failed to checksum file: %w", err)
	}

	if e.payload.DryRun {
		return nil
	}

	contentType := guessContentType(item.LocalPath)
	attempts, err := e.retry.do(ctx, func() error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return worker.FatalInput(fmt.Errorf("rewind %s: %w", item.LocalPath, err))
		}
		return e.client.PutObject(ctx, &objstore.PutObjectRequest{
			Container:   e.payload.Container,
			Name:        item.Name,
			Body:        file,
			Size:        digests.Size,
			ContentType: contentType,
			MD5:         digests.MD5,
			SHA256:      digests.SHA256,
		})
	}, e.onRetry(item))
	if err != nil {
		return fmt.Errorf("failed to upload after %d attempt(s): %w", attempts, err)
	}

	return nil
}

func (e *Executor) deleteObject(ctx context.Context, item planner.Item) error {
	if e.payload.DryRun {
		return nil
	}

	attempts, err := e.retry.do(ctx, func() error {
		return e.client.DeleteObject(ctx, e.payload.Container, item.Name)
	}, e.onRetry(item))
	if err != nil {
		if objstore.IsNotFound(err) {
			// already gone
			return nil
		}
		return fmt.Errorf("failed to delete after %d attempt(s): %w", attempts, err)
	}

	return nil
}

func (e *Executor) onRetry(item planner.Item) func(int, error) {
	return func(attempt int, err error) {
		e.stats.retries.Add(1)
		e.recorder.ObserveRetry(string(item.Action))
		e.logger.Debug(fmt.Sprintf("%s %s: attempt %d failed, retrying: %v", item.Action, item.Name, attempt, err))
	}
}

func (e *Executor) sourceGone() bool {
	if e.payload.Source == "" {
		return false
	}
	_, err := os.Stat(e.payload.Source)
	return errors.Is(err, fs.ErrNotExist)
}

func (e *Executor) remotePath(name string) string {
	return fmt.Sprintf("%s/%s/%s", e.payload.URL, e.payload.Container, name)
}
