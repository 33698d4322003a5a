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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// runsFile is the persisted last-run document. It lives apart from the
// policy definitions so policy edits do not reset scheduling.
type runsFile struct {
	Runs map[string]time.Time `json:"runs"`
}

// RunRecords tracks the last successful execution time per policy
type RunRecords struct {
	path string

	mu   sync.RWMutex
	runs map[string]time.Time
}

// NewRunRecords loads run bookkeeping from path, starting empty if the file
// does not exist.
func NewRunRecords(path string) (*RunRecords, error) {
	r := &RunRecords{
		path: path,
		runs: make(map[string]time.Time),
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read run records: %w", err)
	}

	var file runsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse run records: %w", err)
	}
	if file.Runs != nil {
		r.runs = file.Runs
	}
	return r, nil
}

// LastRun returns the last successful run time of a policy, if any
func (r *RunRecords) LastRun(policyID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.runs[policyID]
	return t, ok
}

// All returns a copy of the full last-run map
func (r *RunRecords) All() map[string]time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make(map[string]time.Time, len(r.runs))
	for id, t := range r.runs {
		runs[id] = t
	}
	return runs
}

// RecordRun persists the last-run time of a policy. Called exactly once per
// successful policy execution, after its summary event is in the ledger.
func (r *RunRecords) RecordRun(policyID string, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[policyID] = t.UTC()

	data, err := json.MarshalIndent(runsFile{Runs: r.runs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run records: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), policyDirMode); err != nil {
		return fmt.Errorf("failed to create run records directory: %w", err)
	}
	if err := os.WriteFile(r.path, data, policyFileMode); err != nil {
		return fmt.Errorf("failed to write run records: %w", err)
	}
	return nil
}
