// Copyright 2025 Complyd Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retention

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/complyd/complyd/internal/ledger"
	"github.com/complyd/complyd/internal/metrics"
)

const (
	// archiveDateLayout keys archive subdirectories by execution date
	archiveDateLayout = "2006-01-02"
	// engineActorID identifies the engine in ledger events
	engineActorID = "retention-engine"
)

// filenameDatePattern extracts the logical period embedded in rotated log
// and event filenames. Dated files expire by that period, not by mtime, so
// a backup tool touching mtimes cannot reset their retention.
var filenameDatePattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

// Result is the outcome of one (policy, data_type) execution. Item-level
// failures never escape the engine; they show up only as items missing from
// the counters.
type Result struct {
	PolicyID       string `json:"policy_id"`
	PolicyName     string `json:"policy_name"`
	DataType       string `json:"data_type"`
	ItemsProcessed int    `json:"items_processed"`
	BytesFreed     int64  `json:"bytes_freed"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// Engine evaluates due policies, scans their storage locations, disposes of
// expired items, and records each execution in the ledger. Constructed
// explicitly and injected where needed; there are no package-level
// singletons.
type Engine struct {
	store       *Store
	runs        *RunRecords
	resolver    LocationResolver
	archiveRoot string
	ledger      *ledger.Ledger
	logger      *zap.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewEngine wires the engine to its collaborators
func NewEngine(
	store *Store,
	runs *RunRecords,
	resolver LocationResolver,
	archiveRoot string,
	auditLedger *ledger.Ledger,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:       store,
		runs:        runs,
		resolver:    resolver,
		archiveRoot: archiveRoot,
		ledger:      auditLedger,
		logger:      logger,
		now:         time.Now,
	}
}

// RunDuePolicies executes every policy whose schedule interval has elapsed
// since its last recorded run. Disposal is idempotent, so a crash mid-run
// simply makes the policy due again (at-least-once semantics).
func (e *Engine) RunDuePolicies(ctx context.Context) []Result {
	now := e.now().UTC()

	var results []Result
	for _, policy := range e.store.List() {
		var lastRun *time.Time
		if t, ok := e.runs.LastRun(policy.ID); ok {
			lastRun = &t
		}
		if !isDue(policy.Schedule, lastRun, now) {
			continue
		}
		results = append(results, e.runPolicy(ctx, policy, now)...)
	}
	return results
}

// ForceRunPolicy executes one policy immediately, bypassing the due check.
// Intended for manual administrative invocation.
func (e *Engine) ForceRunPolicy(ctx context.Context, id string) ([]Result, error) {
	policy, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	return e.runPolicy(ctx, policy, e.now().UTC()), nil
}

// runPolicy scans and disposes for every data type the policy governs, then
// appends the summary event and, only after that succeeds, records the run.
func (e *Engine) runPolicy(ctx context.Context, policy *Policy, now time.Time) []Result {
	cutoff := now.AddDate(0, 0, -policy.RetentionDays)

	e.logger.Info("Running retention policy",
		zap.String("policy_id", policy.ID),
		zap.String("policy_name", policy.Name),
		zap.String("action", string(policy.Action)),
		zap.Time("cutoff", cutoff),
	)

	results := make([]Result, 0, len(policy.DataTypes))
	totalItems := 0
	var totalBytes int64
	for _, dataType := range policy.DataTypes {
		result := e.runDataType(policy, dataType, cutoff, now)
		totalItems += result.ItemsProcessed
		totalBytes += result.BytesFreed
		metrics.RecordRetention(policy.ID, dataType, string(policy.Action), result.ItemsProcessed, result.BytesFreed)
		results = append(results, result)
	}

	// The summary event must be in the ledger before the run is recorded;
	// a crash between the two leaves the policy due, never unlogged.
	_, err := e.ledger.Append(ctx,
		ledger.CategoryRetention,
		"retention.policy_executed",
		ledger.Actor{Type: ledger.ActorSystem, ID: engineActorID},
		ledger.OutcomeSuccess,
		ledger.WithDetails(map[string]any{
			"policy_id":       policy.ID,
			"policy_name":     policy.Name,
			"action":          string(policy.Action),
			"items_processed": totalItems,
			"bytes_freed":     totalBytes,
		}),
	)
	if err != nil {
		e.logger.Error("Failed to log retention execution; run left unrecorded",
			zap.String("policy_id", policy.ID),
			zap.Error(err),
		)
		return results
	}

	if err := e.runs.RecordRun(policy.ID, now); err != nil {
		e.logger.Error("Failed to record retention run",
			zap.String("policy_id", policy.ID),
			zap.Error(err),
		)
	}
	return results
}

// runDataType scans one storage location and disposes of its expired items
func (e *Engine) runDataType(policy *Policy, dataType string, cutoff, now time.Time) Result {
	result := Result{
		PolicyID:   policy.ID,
		PolicyName: policy.Name,
		DataType:   dataType,
		Success:    true,
	}

	location, ok := e.resolver.Resolve(dataType)
	if !ok {
		return result
	}
	info, err := os.Stat(location)
	if err != nil {
		// A missing location is a zero-item success, not a failure
		if !os.IsNotExist(err) {
			result.Success = false
			result.Error = err.Error()
		}
		return result
	}

	if !info.IsDir() {
		if info.ModTime().Before(cutoff) {
			e.disposeItem(policy, dataType, location, info.Size(), now, &result)
		}
		return result
	}

	entries, err := os.ReadDir(location)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		return result
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Vanished between enumeration and stat; skip
			continue
		}
		if !e.isExpired(dataType, entry.Name(), info.ModTime(), cutoff) {
			continue
		}
		e.disposeItem(policy, dataType, filepath.Join(location, entry.Name()), info.Size(), now, &result)
	}
	return result
}

// isExpired applies the filename-first rule: for dated log or event data
// types, an embedded YYYY-MM-DD date wins over mtime. Expiry is a strict
// comparison; an item aged exactly retention_days is kept.
func (e *Engine) isExpired(dataType, name string, mtime, cutoff time.Time) bool {
	if isDatedDataType(dataType) {
		if match := filenameDatePattern.FindString(name); match != "" {
			if fileDate, err := time.Parse(archiveDateLayout, match); err == nil {
				return fileDate.Before(cutoff)
			}
		}
	}
	return mtime.Before(cutoff)
}

// isDatedDataType reports whether a data type's files are rotated by period
func isDatedDataType(dataType string) bool {
	return strings.Contains(dataType, "log") ||
		strings.Contains(dataType, "event") ||
		strings.Contains(dataType, "audit")
}

// disposeItem applies the policy action to one expired item. Failures are
// logged and omitted from the counters; they never abort the batch.
func (e *Engine) disposeItem(policy *Policy, dataType, path string, size int64, now time.Time, result *Result) {
	var err error
	freed := size

	switch policy.Action {
	case ActionDelete:
		err = removeIdempotent(path)
	case ActionArchive:
		err = e.archiveItem(dataType, path, now)
	case ActionAnonymize:
		// Declared but deliberately unimplemented: the item is counted and
		// left in place, never silently deleted or archived
		freed = 0
	}

	if err != nil {
		e.logger.Warn("Failed to dispose of expired item",
			zap.String("policy_id", policy.ID),
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}

	result.ItemsProcessed++
	result.BytesFreed += freed
}

// archiveItem copies the file into the archive tree and then removes the
// original. Copy-then-delete ordering is required: failing after the copy
// leaves a duplicate in the live location, which is safer than data loss.
func (e *Engine) archiveItem(dataType, path string, now time.Time) error {
	archiveDir := filepath.Join(e.archiveRoot, dataType, now.Format(archiveDateLayout))
	if err := os.MkdirAll(archiveDir, policyDirMode); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	dst := filepath.Join(archiveDir, filepath.Base(path))
	if err := copyFile(path, dst); err != nil {
		return err
	}
	return removeIdempotent(path)
}

// copyFile copies src to dst, overwriting any earlier archive of the same
// name so re-archiving stays idempotent.
func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // src comes from a resolved storage location
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, policyFileMode) //nolint:gosec // dst is under the archive root
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to flush %s: %w", dst, err)
	}
	return out.Close()
}

// removeIdempotent deletes a file, treating an already-deleted file as done
func removeIdempotent(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// NextDue is one entry of the operator-facing schedule report
type NextDue struct {
	PolicyID  string   `json:"policy_id"`
	Name      string   `json:"name"`
	Schedule  Schedule `json:"schedule"`
	DueInDays float64  `json:"due_in_days"`
}

// Status is the operator-facing view of the retention engine
type Status struct {
	PolicyCount int                  `json:"policy_count"`
	LastRuns    map[string]time.Time `json:"last_runs"`
	NextDue     []NextDue            `json:"next_due"`
}

// GetStatus reports policy count, last runs, and upcoming due times sorted
// soonest first.
func (e *Engine) GetStatus() *Status {
	now := e.now().UTC()
	policies := e.store.List()

	status := &Status{
		PolicyCount: len(policies),
		LastRuns:    e.runs.All(),
		NextDue:     make([]NextDue, 0, len(policies)),
	}

	for _, policy := range policies {
		var lastRun *time.Time
		if t, ok := e.runs.LastRun(policy.ID); ok {
			lastRun = &t
		}
		status.NextDue = append(status.NextDue, NextDue{
			PolicyID:  policy.ID,
			Name:      policy.Name,
			Schedule:  policy.Schedule,
			DueInDays: dueInDays(policy.Schedule, lastRun, now),
		})
	}
	sort.Slice(status.NextDue, func(i, j int) bool {
		return status.NextDue[i].DueInDays < status.NextDue[j].DueInDays
	})
	return status
}
