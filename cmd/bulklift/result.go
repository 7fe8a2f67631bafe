package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"

	"github.com/yuya-takeyama/bulklift/pkg/logger"
	"github.com/yuya-takeyama/bulklift/pkg/orchestrator"
	"github.com/yuya-takeyama/bulklift/pkg/planner"
	"github.com/yuya-takeyama/bulklift/pkg/worker"
)

// SyncResult represents the outcome of every planned item
type SyncResult struct {
	RunID        string        `json:"run_id"`
	State        string        `json:"state"`
	Files        []ResultFile  `json:"files"`
	Errors       []ErrorFile   `json:"errors"`
	NotAttempted []ResultFile  `json:"not_attempted"`
	Summary      ResultSummary `json:"summary"`
}

type ResultFile struct {
	Action string `json:"action"` // "uploaded", "deleted", "upload", "delete"
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
	Reason string `json:"reason,omitempty"`
}

type ErrorFile struct {
	Action string `json:"action"` // "upload", "delete"
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
	Error  string `json:"error"`
}

type ResultSummary struct {
	Indexed       int    `json:"indexed"`
	Uploaded      int    `json:"uploaded"`
	Deleted       int    `json:"deleted"`
	Failed        int    `json:"failed"`
	NotAttempted  int    `json:"not_attempted"`
	Retries       int64  `json:"retries"`
	BytesUploaded int64  `json:"bytes_uploaded"`
	Batches       int    `json:"batches"`
	Duration      string `json:"duration"`
}

func buildSyncResult(runID, baseURL string, report *orchestrator.Report) SyncResult {
	result := SyncResult{
		RunID:        runID,
		State:        string(report.State()),
		Files:        []ResultFile{},
		Errors:       []ErrorFile{},
		NotAttempted: []ResultFile{},
	}

	all := make([]worker.Result[planner.Item], 0, len(report.Uploads)+len(report.Deletes))
	all = append(all, report.Uploads...)
	all = append(all, report.Deletes...)

	for _, res := range all {
		target := formatRemotePath(baseURL, report.Container, res.Item.Name)
		source := ""
		if res.Item.Action == planner.ActionUpload {
			source = getAbsolutePath(res.Item.LocalPath)
		}

		switch res.Status {
		case worker.StatusSucceeded:
			action := "uploaded"
			if res.Item.Action == planner.ActionDelete {
				action = "deleted"
				result.Summary.Deleted++
			} else {
				result.Summary.Uploaded++
			}
			result.Files = append(result.Files, ResultFile{Action: action, Source: source, Target: target})
		case worker.StatusFailed:
			errMsg := ""
			if res.Error != nil {
				errMsg = res.Error.Error()
			}
			result.Errors = append(result.Errors, ErrorFile{
				Action: string(res.Item.Action),
				Source: source,
				Target: target,
				Error:  errMsg,
			})
			result.Summary.Failed++
		default:
			reason := ""
			if res.Error != nil {
				reason = res.Error.Error()
			}
			result.NotAttempted = append(result.NotAttempted, ResultFile{
				Action: string(res.Item.Action),
				Source: source,
				Target: target,
				Reason: reason,
			})
			result.Summary.NotAttempted++
		}
	}

	result.Summary.Indexed = report.Indexed
	result.Summary.Retries = report.Stats.Retries
	result.Summary.BytesUploaded = report.Stats.BytesUploaded
	result.Summary.Batches = len(report.Batches)
	result.Summary.Duration = report.Duration.Round(time.Millisecond).String()
	return result
}

func writeSyncResult(path string, result SyncResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// printSummary counts items from the per-item results so that the totals
// always add up to the planned items.
func printSummary(log logger.Logger, report *orchestrator.Report) {
	var uploaded, deleted int
	for _, res := range report.Succeeded() {
		if res.Item.Action == planner.ActionDelete {
			deleted++
		} else {
			uploaded++
		}
	}

	log.Info("%s: %d uploaded (%s), %d deleted, %d failed, %d not attempted in %s",
		report.State(),
		uploaded,
		units.HumanSize(float64(report.Stats.BytesUploaded)),
		deleted,
		len(report.Failed()),
		len(report.NotAttempted()),
		units.HumanDuration(report.Duration),
	)
	if report.Listing != nil {
		log.Info("remote listing: %d objects in %d pages, last object %q",
			report.Listing.Count, report.Listing.Pages, report.Listing.LastName)
	}
}

func getAbsolutePath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func formatRemotePath(baseURL, container, name string) string {
	return fmt.Sprintf("%s/%s/%s", baseURL, container, name)
}
