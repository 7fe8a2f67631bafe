package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/bulklift/internal/storetest"
	"github.com/yuya-takeyama/bulklift/internal/walker"
	"github.com/yuya-takeyama/bulklift/pkg/executor"
	"github.com/yuya-takeyama/bulklift/pkg/logger"
	"github.com/yuya-takeyama/bulklift/pkg/objstore"
	"github.com/yuya-takeyama/bulklift/pkg/worker"
)

const testContainer = "backups"

type failingIndexer struct {
	err error
}

func (f failingIndexer) Root() string {
	return "/nonexistent"
}

func (f failingIndexer) Walk() ([]walker.FileInfo, error) {
	return nil, f.err
}

func makeSource(t *testing.T, names ...string) *walker.Walker {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0o644))
	}
	w, err := walker.NewWalker(root, nil)
	require.NoError(t, err)
	return w
}

func manyNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("f%04d.txt", i)
	}
	return names
}

func defaultOptions() Options {
	return Options{
		Container:   testContainer,
		Concurrency: 2,
		Retry:       executor.RetryPolicy{Attempts: 2},
	}
}

func newController(t *testing.T) *worker.Controller {
	t.Helper()
	ctrl := worker.NewController(context.Background())
	t.Cleanup(ctrl.Release)
	return ctrl
}

func runAsync(o *Orchestrator, ctrl *worker.Controller) <-chan runOutcome {
	out := make(chan runOutcome, 1)
	go func() {
		report, err := o.Run(ctrl)
		out <- runOutcome{report: report, err: err}
	}()
	return out
}

type runOutcome struct {
	report *Report
	err    error
}

func waitRun(t *testing.T, ch <-chan runOutcome) runOutcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish in time")
		return runOutcome{}
	}
}

// three files, concurrency two: one container create, one batch, three puts
func TestRunUploadsEveryFile(t *testing.T) {
	source := makeSource(t, "a.txt", "b.txt", "dir/c.txt")
	store := storetest.New()

	var states []State
	o := New(store, source, logger.NullLogger{}, defaultOptions()).
		OnStateChange(func(s State) { states = append(states, s) })

	report, err := o.Run(newController(t))
	require.NoError(t, err)

	counts := store.Counts()
	assert.Equal(t, 1, counts.CreateContainer)
	assert.Equal(t, 3, counts.Put)
	assert.Equal(t, 0, counts.List)
	assert.Equal(t, []string{"a.txt", "b.txt", "dir/c.txt"}, store.Names(testContainer))

	require.Len(t, report.Batches, 1)
	assert.Equal(t, 3, report.Batches[0].Items)
	assert.Equal(t, 2, report.Batches[0].Workers)
	assert.Equal(t, int64(2), report.Batches[0].Stats.SentinelsConsumed)

	assert.Equal(t, 3, report.Indexed)
	assert.Len(t, report.Succeeded(), 3)
	assert.Empty(t, report.Failed())
	assert.Equal(t, int64(3), report.Stats.Uploaded)

	want := []State{StateIndexing, StatePlanning, StateTransferring, StateDone}
	assert.Equal(t, want, report.Transitions)
	assert.Equal(t, want, states)
	assert.Equal(t, StateDone, report.State())
	assert.Equal(t, StateDone, o.State())
	assert.Equal(t, worker.AbortNone, report.AbortMode)
}

// remote {a, b, c}, local {a, c}: only b is deleted
func TestRunReconcilesRemote(t *testing.T) {
	source := makeSource(t, "a", "c")
	store := storetest.New()
	store.Seed(testContainer, "a", "b", "c")

	opts := defaultOptions()
	opts.DeleteRemote = true
	report, err := New(store, source, logger.NullLogger{}, opts).Run(newController(t))
	require.NoError(t, err)

	require.Len(t, report.Deletes, 1)
	assert.Equal(t, "b", report.Deletes[0].Item.Name)
	assert.Equal(t, worker.StatusSucceeded, report.Deletes[0].Status)
	assert.Equal(t, []string{"a", "c"}, store.Names(testContainer))

	require.Len(t, report.Batches, 2)
	assert.Equal(t, "upload", report.Batches[0].Phase)
	assert.Equal(t, "delete", report.Batches[1].Phase)
	assert.Equal(t, 1, report.Batches[1].Items)
	assert.Equal(t, 1, report.Batches[1].Workers)

	require.NotNil(t, report.Listing)
	assert.Equal(t, 3, report.Listing.Count)
	assert.Equal(t, "c", report.Listing.LastName)

	assert.Equal(t, []State{
		StateIndexing, StatePlanning, StateTransferring,
		StateListing, StateDiffing, StateDeleting, StateDone,
	}, report.Transitions)
}

func TestRunReconcileNothingToDelete(t *testing.T) {
	source := makeSource(t, "a", "b")
	store := storetest.New()
	store.Seed(testContainer, "a", "keep.tmp")

	opts := defaultOptions()
	opts.DeleteRemote = true
	opts.Excludes = []string{"*.tmp"}
	report, err := New(store, source, logger.NullLogger{}, opts).Run(newController(t))
	require.NoError(t, err)

	assert.Empty(t, report.Deletes)
	assert.Equal(t, 0, store.Counts().Delete)
	assert.Equal(t, []string{"a", "b", "keep.tmp"}, store.Names(testContainer))
	assert.Equal(t, []State{
		StateIndexing, StatePlanning, StateTransferring,
		StateListing, StateDiffing, StateDone,
	}, report.Transitions)
}

func TestRunKeepsRemoteObjectsUnderExcludedDirectory(t *testing.T) {
	source := makeSource(t, "keep.txt", "logs/app.log")
	excludes := []string{"logs/"}
	indexer, err := walker.NewWalker(source.Root(), excludes)
	require.NoError(t, err)

	store := storetest.New()
	store.Seed(testContainer, "keep.txt", "logs/app.log", "stale.txt")

	opts := defaultOptions()
	opts.DeleteRemote = true
	opts.Excludes = excludes
	report, err := New(store, indexer, logger.NullLogger{}, opts).Run(newController(t))
	require.NoError(t, err)

	require.Len(t, report.Uploads, 1)
	assert.Equal(t, "keep.txt", report.Uploads[0].Item.Name)
	require.Len(t, report.Deletes, 1)
	assert.Equal(t, "stale.txt", report.Deletes[0].Item.Name)
	assert.Equal(t, []string{"keep.txt", "logs/app.log"}, store.Names(testContainer))
}

// one put keeps failing: it is recorded after two attempts and siblings succeed
func TestRunRecordsPartialFailure(t *testing.T) {
	source := makeSource(t, "bad.txt", "good1.txt", "good2.txt")
	store := storetest.New()
	store.PutFunc = func(_ context.Context, req *objstore.PutObjectRequest) error {
		if req.Name == "bad.txt" {
			return errors.New("500 internal server error")
		}
		return nil
	}

	report, err := New(store, source, logger.NullLogger{}, defaultOptions()).Run(newController(t))
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State())
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "bad.txt", failed[0].Item.Name)
	assert.Contains(t, failed[0].Error.Error(), "2 attempt")
	assert.Len(t, report.Succeeded(), 2)
	assert.Equal(t, 4, store.Counts().Put)
	assert.Equal(t, []string{"good1.txt", "good2.txt"}, store.Names(testContainer))
}

func TestRunEmptySource(t *testing.T) {
	source := makeSource(t)
	store := storetest.New()
	store.Seed(testContainer, "orphan")

	opts := defaultOptions()
	opts.DeleteRemote = true
	report, err := New(store, source, logger.NullLogger{}, opts).Run(newController(t))
	require.NoError(t, err)

	assert.Equal(t, []State{StateIndexing, StateDone}, report.Transitions)
	assert.Empty(t, report.Batches)
	assert.Equal(t, storetest.Counts{}, store.Counts())
	assert.Equal(t, []string{"orphan"}, store.Names(testContainer))
}

func TestRunIndexerFailureIsFatal(t *testing.T) {
	boom := errors.New("permission denied")
	store := storetest.New()

	report, err := New(store, failingIndexer{err: boom}, logger.NullLogger{}, defaultOptions()).Run(newController(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateFailed, report.State())
	assert.Equal(t, storetest.Counts{}, store.Counts())
}

func TestRunListingFailureIsFatal(t *testing.T) {
	source := makeSource(t, "a")
	store := storetest.New()
	store.Seed(testContainer, "a", "stale")
	boom := errors.New("listing unavailable")
	store.ListFunc = func(context.Context, string, string, int) error {
		return boom
	}

	opts := defaultOptions()
	opts.DeleteRemote = true
	report, err := New(store, source, logger.NullLogger{}, opts).Run(newController(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateFailed, report.State())
	assert.Empty(t, report.Deletes)
	assert.Equal(t, 0, store.Counts().Delete)
	assert.Equal(t, []string{"a", "stale"}, store.Names(testContainer))
}

func TestRunContainerFailureIsFatal(t *testing.T) {
	source := makeSource(t, "a", "b")
	store := storetest.New()
	store.CreateFunc = func(context.Context, string) error {
		return errors.New("403 forbidden")
	}

	report, err := New(store, source, logger.NullLogger{}, defaultOptions()).Run(newController(t))
	require.Error(t, err)
	assert.Equal(t, StateFailed, report.State())
	assert.Len(t, report.NotAttempted(), 2)
	assert.Equal(t, 0, store.Counts().Put)
}

func TestRunDryRun(t *testing.T) {
	source := makeSource(t, "a", "b")
	store := storetest.New()

	opts := defaultOptions()
	opts.DryRun = true
	opts.DeleteRemote = true
	report, err := New(store, source, logger.NullLogger{}, opts).Run(newController(t))
	require.NoError(t, err)

	counts := store.Counts()
	assert.Equal(t, 0, counts.CreateContainer)
	assert.Equal(t, 0, counts.Put)
	// the missing container lists as empty
	assert.Equal(t, 1, counts.List)
	assert.Equal(t, StateDone, report.State())
	assert.Len(t, report.Succeeded(), 2)
}

func TestRunSplitsIntoBatches(t *testing.T) {
	// concurrency 1 gives 64 items per batch
	source := makeSource(t, manyNames(130)...)
	store := storetest.New()

	opts := defaultOptions()
	opts.Concurrency = 1
	report, err := New(store, source, logger.NullLogger{}, opts).Run(newController(t))
	require.NoError(t, err)

	require.Len(t, report.Batches, 3)
	assert.Equal(t, []int{64, 64, 2}, []int{report.Batches[0].Items, report.Batches[1].Items, report.Batches[2].Items})
	for i, b := range report.Batches {
		assert.Equal(t, i+1, b.Index)
		assert.Equal(t, 3, b.Total)
	}
	// the container is ensured before every batch
	assert.Equal(t, 3, store.Counts().CreateContainer)
	assert.Len(t, store.Names(testContainer), 130)
}

// reclaim during the first batch: in-flight puts finish, no new batch starts
func TestRunReclaimAborts(t *testing.T) {
	source := makeSource(t, manyNames(130)...)
	store := storetest.New()

	started := make(chan struct{}, 130)
	release := make(chan struct{})
	store.PutFunc = func(context.Context, *objstore.PutObjectRequest) error {
		started <- struct{}{}
		<-release
		return nil
	}

	opts := defaultOptions()
	opts.Concurrency = 1
	opts.DeleteRemote = true
	ctrl := newController(t)
	out := runAsync(New(store, source, logger.NullLogger{}, opts), ctrl)

	<-started
	ctrl.Reclaim()
	close(release)

	res := waitRun(t, out)
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, ErrAborted)

	report := res.report
	assert.Equal(t, StateAborted, report.State())
	assert.Equal(t, worker.AbortReclaim, report.AbortMode)
	assert.Len(t, report.Batches, 1)
	assert.Len(t, report.Succeeded(), 1)
	assert.Len(t, report.NotAttempted(), 129)
	assert.Empty(t, report.Failed())
	assert.Equal(t, 0, store.Counts().List)
}

func TestRunKillAborts(t *testing.T) {
	source := makeSource(t, "a", "b", "c", "d")
	store := storetest.New()

	var once sync.Once
	started := make(chan struct{})
	store.PutFunc = func(ctx context.Context, _ *objstore.PutObjectRequest) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}

	ctrl := newController(t)
	out := runAsync(New(store, source, logger.NullLogger{}, defaultOptions()), ctrl)

	<-started
	ctrl.Kill()

	res := waitRun(t, out)
	assert.ErrorIs(t, res.err, ErrAborted)
	assert.Equal(t, StateAborted, res.report.State())
	assert.Equal(t, worker.AbortImmediate, res.report.AbortMode)
	assert.Empty(t, res.report.Succeeded())
	assert.Empty(t, res.report.Failed())
}
