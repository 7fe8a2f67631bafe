// Package orchestrator sequences a transfer run: index local files, upload
// them in batches, then optionally reconcile the remote container by
// deleting objects that no longer exist locally.
package orchestrator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yuya-takeyama/bulklift/internal/walker"
	"github.com/yuya-takeyama/bulklift/pkg/executor"
	"github.com/yuya-takeyama/bulklift/pkg/lister"
	"github.com/yuya-takeyama/bulklift/pkg/logger"
	"github.com/yuya-takeyama/bulklift/pkg/objstore"
	"github.com/yuya-takeyama/bulklift/pkg/planner"
	"github.com/yuya-takeyama/bulklift/pkg/worker"
)

type State string

const (
	StateIdle         State = "idle"
	StateIndexing     State = "indexing"
	StatePlanning     State = "planning"
	StateTransferring State = "transferring"
	StateListing      State = "listing"
	StateDiffing      State = "diffing"
	StateDeleting     State = "deleting"
	StateDone         State = "done"
	StateAborted      State = "aborted"
	StateFailed       State = "failed"
)

// ErrAborted is returned when a run ends because of a cancellation request.
var ErrAborted = errors.New("transfer aborted")

// Indexer enumerates the local files of a run.
type Indexer interface {
	Root() string
	Walk() ([]walker.FileInfo, error)
}

type Options struct {
	Container    string
	Concurrency  int
	Retry        executor.RetryPolicy
	DeleteRemote bool
	Excludes     []string
	PageSize     int
	DryRun       bool
}

type Orchestrator struct {
	store   objstore.Client
	indexer Indexer
	logger  logger.Logger
	opts    Options
	exec    *executor.Executor

	mu      sync.Mutex
	state   State
	onState func(State)
}

// New builds the run payload from the store and the indexer root. The payload
// is not modified afterwards.
func New(store objstore.Client, indexer Indexer, log logger.Logger, opts Options) *Orchestrator {
	payload := executor.Payload{
		Container: opts.Container,
		URL:       store.URL(),
		Source:    indexer.Root(),
		DryRun:    opts.DryRun,
	}

	return &Orchestrator{
		store:   store,
		indexer: indexer,
		logger:  log,
		opts:    opts,
		exec:    executor.NewExecutor(store, log, payload, opts.Retry),
		state:   StateIdle,
	}
}

// WithRecorder forwards per-item events to r.
func (o *Orchestrator) WithRecorder(r executor.Recorder) *Orchestrator {
	o.exec.WithRecorder(r)
	return o
}

// OnStateChange registers fn to be called on every transition.
func (o *Orchestrator) OnStateChange(fn func(State)) *Orchestrator {
	o.onState = fn
	return o
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(report *Report, s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()

	report.Transitions = append(report.Transitions, s)
	if o.onState != nil {
		o.onState(s)
	}
}

// Run executes one transfer. Item failures are recorded in the report and do
// not stop the run; indexing, container and listing failures do.
func (o *Orchestrator) Run(ctrl *worker.Controller) (*Report, error) {
	start := time.Now()
	report := &Report{
		Container: o.opts.Container,
		Uploads:   []worker.Result[planner.Item]{},
		Deletes:   []worker.Result[planner.Item]{},
	}
	defer func() {
		report.Stats = o.exec.Stats()
		report.AbortMode = ctrl.Mode()
		report.Duration = time.Since(start)
	}()

	o.setState(report, StateIndexing)
	files, err := o.indexer.Walk()
	if err != nil {
		return o.fail(report, fmt.Errorf("index local files: %w", err))
	}
	report.Indexed = len(files)
	o.logger.Info("%d files have been found in %s", len(files), o.indexer.Root())

	if len(files) == 0 {
		o.setState(report, StateDone)
		return report, nil
	}

	o.setState(report, StatePlanning)
	uploads := make([]planner.Item, 0, len(files))
	for _, f := range files {
		item, err := planner.NewUploadItem(f.Path, f.Name, f.Size)
		if err != nil {
			return o.fail(report, fmt.Errorf("plan upload: %w", err))
		}
		uploads = append(uploads, item)
	}

	o.setState(report, StateTransferring)
	results, err := o.runBatches(ctrl, report, "upload", uploads, true)
	report.Uploads = results
	// reconciliation only runs after every upload batch completed
	if err != nil || ctrl.Aborted() || !o.opts.DeleteRemote {
		return o.finish(ctrl, report, err)
	}

	o.setState(report, StateListing)
	listing, err := o.listRemote(ctrl)
	if err != nil {
		return o.finish(ctrl, report, err)
	}
	report.Listing = &ListingSummary{Count: listing.Count, LastName: listing.LastName, Pages: listing.Pages}

	o.setState(report, StateDiffing)
	stale, err := planner.Diff(listing.Records, walker.Paths(files), o.indexer.Root(), o.opts.Excludes)
	if err != nil {
		return o.fail(report, fmt.Errorf("diff remote listing: %w", err))
	}
	if len(stale) == 0 {
		o.logger.Info("No difference between remote and local directories")
		return o.finish(ctrl, report, nil)
	}
	if ctrl.Aborted() {
		return o.finish(ctrl, report, nil)
	}
	o.logger.Info("%d objects have been found to be removed from the remote container", len(stale))

	deletes := make([]planner.Item, 0, len(stale))
	for _, rec := range stale {
		item, err := planner.NewDeleteItem(rec.Name)
		if err != nil {
			return o.fail(report, fmt.Errorf("plan delete: %w", err))
		}
		deletes = append(deletes, item)
	}

	o.setState(report, StateDeleting)
	results, err = o.runBatches(ctrl, report, "delete", deletes, false)
	report.Deletes = results
	return o.finish(ctrl, report, err)
}

// runBatches feeds items to a fresh pool one batch at a time. A batch starts
// only after the previous pool has fully joined.
func (o *Orchestrator) runBatches(ctrl *worker.Controller, report *Report, phase string, items []planner.Item, ensureContainer bool) ([]worker.Result[planner.Item], error) {
	concurrency := planner.Concurrency(o.opts.Concurrency, len(items))
	batcher := planner.NewBatcher(items, planner.BatchSize(concurrency))
	total := batcher.Count()

	results := make([]worker.Result[planner.Item], 0, len(items))
	index := 0
	for {
		batch, ok := batcher.Next()
		if !ok {
			break
		}
		index++

		if ctrl.Aborted() {
			results = append(results, notAttempted(batch)...)
			continue
		}

		if ensureContainer {
			if err := o.exec.EnsureContainer(ctrl.Context()); err != nil {
				results = append(results, notAttempted(batch)...)
				for {
					rest, ok := batcher.Next()
					if !ok {
						break
					}
					results = append(results, notAttempted(rest)...)
				}
				return results, err
			}
		}

		workers := planner.Concurrency(o.opts.Concurrency, len(batch))
		o.logger.Debug(fmt.Sprintf("%s batch %d/%d: %d items, %d workers", phase, index, total, len(batch), workers))

		pool := worker.NewPool[planner.Item](workers, ctrl)
		batchResults, stats := pool.Run(batch, o.exec.Execute)
		results = append(results, batchResults...)
		report.Batches = append(report.Batches, BatchReport{
			Phase:   phase,
			Index:   index,
			Total:   total,
			Items:   len(batch),
			Workers: stats.Workers,
			Stats:   stats,
		})
	}
	return results, nil
}

func (o *Orchestrator) listRemote(ctrl *worker.Controller) (*lister.Listing, error) {
	l := lister.New(o.store, o.opts.PageSize)
	listing, err := l.List(ctrl.Context(), o.opts.Container)
	if err != nil {
		// nothing was created in dry-run mode
		if o.opts.DryRun && objstore.IsNotFound(err) {
			return &lister.Listing{}, nil
		}
		return nil, fmt.Errorf("list remote objects: %w", err)
	}
	return listing, nil
}

func (o *Orchestrator) finish(ctrl *worker.Controller, report *Report, err error) (*Report, error) {
	if ctrl.Aborted() {
		o.setState(report, StateAborted)
		return report, fmt.Errorf("%w (%s)", ErrAborted, ctrl.Mode())
	}
	if err != nil {
		return o.fail(report, err)
	}
	o.setState(report, StateDone)
	return report, nil
}

func (o *Orchestrator) fail(report *Report, err error) (*Report, error) {
	o.setState(report, StateFailed)
	report.Err = err
	return report, err
}

func notAttempted(items []planner.Item) []worker.Result[planner.Item] {
	results := make([]worker.Result[planner.Item], len(items))
	for i, item := range items {
		results[i] = worker.Result[planner.Item]{Item: item, Status: worker.StatusNotAttempted}
	}
	return results
}
