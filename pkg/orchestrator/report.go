package orchestrator

import (
	"time"

	"github.com/yuya-takeyama/bulklift/pkg/executor"
	"github.com/yuya-takeyama/bulklift/pkg/planner"
	"github.com/yuya-takeyama/bulklift/pkg/worker"
)

type BatchReport struct {
	Phase   string
	Index   int
	Total   int
	Items   int
	Workers int
	Stats   worker.RunStats
}

type ListingSummary struct {
	Count    int
	LastName string
	Pages    int
}

// Report describes a finished run. Uploads and Deletes hold one result per
// planned item.
type Report struct {
	Container   string
	Indexed     int
	Transitions []State
	Uploads     []worker.Result[planner.Item]
	Deletes     []worker.Result[planner.Item]
	Batches     []BatchReport
	Listing     *ListingSummary
	Stats       executor.StatsSnapshot
	AbortMode   worker.AbortMode
	Duration    time.Duration
	Err         error
}

// State is the final state of the run.
func (r *Report) State() State {
	if len(r.Transitions) == 0 {
		return StateIdle
	}
	return r.Transitions[len(r.Transitions)-1]
}

func (r *Report) Failed() []worker.Result[planner.Item] {
	return r.filter(worker.StatusFailed)
}

func (r *Report) NotAttempted() []worker.Result[planner.Item] {
	return r.filter(worker.StatusNotAttempted)
}

func (r *Report) Succeeded() []worker.Result[planner.Item] {
	return r.filter(worker.StatusSucceeded)
}

func (r *Report) filter(status worker.Status) []worker.Result[planner.Item] {
	var out []worker.Result[planner.Item]
	for _, res := range r.Uploads {
		if res.Status == status {
			out = append(out, res)
		}
	}
	for _, res := range r.Deletes {
		if res.Status == status {
			out = append(out, res)
		}
	}
	return out
}
