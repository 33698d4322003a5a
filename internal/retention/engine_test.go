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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/complyd/complyd/internal/ledger"
)

// testNow is a fixed clock so expiry arithmetic is reproducible
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type engineFixture struct {
	engine   *Engine
	ledger   *ledger.Ledger
	store    *Store
	runs     *RunRecords
	dataDir  string
	archives string
}

func newEngineFixture(t *testing.T, dataType string) *engineFixture {
	t.Helper()
	root := t.TempDir()

	auditLedger, err := ledger.New(ledger.Config{BaseDir: filepath.Join(root, "ledger")}, zap.NewNop())
	require.NoError(t, err)

	store, err := NewStore(filepath.Join(root, "policies.json"))
	require.NoError(t, err)
	runs, err := NewRunRecords(filepath.Join(root, "runs.json"))
	require.NoError(t, err)

	dataDir := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o700))

	f := &engineFixture{
		ledger:   auditLedger,
		store:    store,
		runs:     runs,
		dataDir:  dataDir,
		archives: filepath.Join(root, "archives"),
	}
	f.engine = NewEngine(store, runs, StaticResolver{dataType: dataDir}, f.archives, auditLedger, zap.NewNop())
	f.engine.now = func() time.Time { return testNow }
	return f
}

// writeAgedFile creates a file under the fixture data dir with the given age
func (f *engineFixture) writeAgedFile(t *testing.T, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(f.dataDir, name)
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))
	mtime := testNow.Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func (f *engineFixture) addPolicy(t *testing.T, p *Policy) *Policy {
	t.Helper()
	added, err := f.store.Add(p)
	require.NoError(t, err)
	return added
}

func TestEngine_DeletesExpiredKeepsFresh(t *testing.T) {
	f := newEngineFixture(t, "temp_data")
	policy := f.addPolicy(t, &Policy{
		Name:          "Temp cleanup",
		DataTypes:     []string{"temp_data"},
		RetentionDays: 1,
		Action:        ActionDelete,
		Schedule:      ScheduleDaily,
	})

	expired := f.writeAgedFile(t, "old.tmp", 2*24*time.Hour)
	fresh := f.writeAgedFile(t, "new.tmp", time.Hour)

	results, err := f.engine.ForceRunPolicy(context.Background(), policy.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Success)
	assert.Equal(t, 1, results[0].ItemsProcessed)
	assert.Equal(t, int64(len("payload")), results[0].BytesFreed)

	assert.NoFileExists(t, expired)
	assert.FileExists(t, fresh)
}

func TestEngine_ExactAgeBoundaryIsKept(t *testing.T) {
	f := newEngineFixture(t, "temp_data")
	policy := f.addPolicy(t, &Policy{
		Name:          "Temp cleanup",
		DataTypes:     []string{"temp_data"},
		RetentionDays: 7,
		Action:        ActionDelete,
		Schedule:      ScheduleDaily,
	})

	// Exactly at the cutoff: strict comparison keeps it
	boundary := f.writeAgedFile(t, "boundary.tmp", 7*24*time.Hour)
	over := f.writeAgedFile(t, "over.tmp", 7*24*time.Hour+time.Second)

	results, err := f.engine.ForceRunPolicy(context.Background(), policy.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, results[0].ItemsProcessed)
	assert.FileExists(t, boundary)
	assert.NoFileExists(t, over)
}

func TestEngine_FilenameDateWinsOverMtime(t *testing.T) {
	f := newEngineFixture(t, "app_logs")
	policy := f.addPolicy(t, &Policy{
		Name:          "Log cleanup",
		DataTypes:     []string{"app_logs"},
		RetentionDays: 30,
		Action:        ActionDelete,
		Schedule:      ScheduleDaily,
	})

	// Old period, freshly touched: a backup run must not reset retention
	staleByName := f.writeAgedFile(t, "app-2025-01-02.log", time.Hour)
	// Current period, ancient mtime: the embedded date keeps it alive
	freshByName := f.writeAgedFile(t, "app-2025-06-14.log", 90*24*time.Hour)
	// No embedded date: mtime decides
	staleByMtime := f.writeAgedFile(t, "app.log", 45*24*time.Hour)

	results, err := f.engine.ForceRunPolicy(context.Background(), policy.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, results[0].ItemsProcessed)
	assert.NoFileExists(t, staleByName)
	assert.FileExists(t, freshByName)
	assert.NoFileExists(t, staleByMtime)
}

func TestEngine_ArchiveCopiesThenDeletes(t *testing.T) {
	f := newEngineFixture(t, "reports")
	policy := f.addPolicy(t, &Policy{
		Name:          "Report archival",
		DataTypes:     []string{"reports"},
		RetentionDays: 1,
		Action:        ActionArchive,
		Schedule:      ScheduleWeekly,
	})

	expired := f.writeAgedFile(t, "q1.pdf", 48*time.Hour)

	results, err := f.engine.ForceRunPolicy(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].ItemsProcessed)

	assert.NoFileExists(t, expired)

	archived := filepath.Join(f.archives, "reports", testNow.Format("2006-01-02"), "q1.pdf")
	data, err := os.ReadFile(archived)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestEngine_ArchiveIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, "reports")
	policy := f.addPolicy(t, &Policy{
		Name:          "Report archival",
		DataTypes:     []string{"reports"},
		RetentionDays: 1,
		Action:        ActionArchive,
		Schedule:      ScheduleWeekly,
	})

	f.writeAgedFile(t, "q1.pdf", 48*time.Hour)
	_, err := f.engine.ForceRunPolicy(context.Background(), policy.ID)
	require.NoError(t, err)

	// Same file reappears (crash replay); the second run overwrites the
	// earlier archive copy instead of failing
	f.writeAgedFile(t, "q1.pdf", 48*time.Hour)
	results, err := f.engine.ForceRunPolicy(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].ItemsProcessed)
}

func TestEngine_AnonymizeCountsWithoutRemoving(t *testing.T) {
	f := newEngineFixture(t, "profiles")
	policy := f.addPolicy(t, &Policy{
		Name:          "Profile anonymization",
		DataTypes:     []string{"profiles"},
		RetentionDays: 1,
		Action:        ActionAnonymize,
		Schedule:      ScheduleDaily,
	})

	expired := f.writeAgedFile(t, "u1.json", 48*time.Hour)

	results, err := f.engine.ForceRunPolicy(context.Background(), policy.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, results[0].ItemsProcessed)
	assert.Equal(t, int64(0), results[0].BytesFreed)
	assert.FileExists(t, expired)
}

func TestEngine_MissingLocationIsZeroItemSuccess(t *testing.T) {
	f := newEngineFixture(t, "temp_data")
	require.NoError(t, os.RemoveAll(f.dataDir))

	policy := f.addPolicy(t, &Policy{
		Name:          "Temp cleanup",
		DataTypes:     []string{"temp_data", "unresolved_type"},
		RetentionDays: 1,
		Action:        ActionDelete,
		Schedule:      ScheduleDaily,
	})

	results, err := f.engine.ForceRunPolicy(context.Background(), policy.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Success)
		assert.Equal(t, 0, r.ItemsProcessed)
	}
}

func TestEngine_ExecutionLoggedThenRunRecorded(t *testing.T) {
	f := newEngineFixture(t, "temp_data")
	policy := f.addPolicy(t, &Policy{
		Name:          "Temp cleanup",
		DataTypes:     []string{"temp_data"},
		RetentionDays: 1,
		Action:        ActionDelete,
		Schedule:      ScheduleDaily,
	})
	f.writeAgedFile(t, "old.tmp", 48*time.Hour)

	_, err := f.engine.ForceRunPolicy(context.Background(), policy.ID)
	require.NoError(t, err)

	lastRun, ok := f.runs.LastRun(policy.ID)
	require.True(t, ok, "run must be recorded")
	assert.Equal(t, testNow, lastRun)

	events, err := f.ledger.Read(context.Background(), ledger.Filter{Category: ledger.CategoryRetention})
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "retention.policy_executed", e.EventType)
	assert.Equal(t, ledger.ActorSystem, e.Actor.Type)
	assert.Equal(t, "retention-engine", e.Actor.ID)
	assert.Equal(t, policy.ID, e.Details["policy_id"])
	assert.Equal(t, float64(1), e.Details["items_processed"])
}

func TestEngine_RunDuePoliciesHonorsSchedule(t *testing.T) {
	f := newEngineFixture(t, "temp_data")

	// Builtins are all satisfied so only the test policy can be due
	for _, p := range f.store.List() {
		require.NoError(t, f.runs.RecordRun(p.ID, testNow.Add(-time.Hour)))
	}

	policy := f.addPolicy(t, &Policy{
		Name:          "Temp cleanup",
		DataTypes:     []string{"temp_data"},
		RetentionDays: 1,
		Action:        ActionDelete,
		Schedule:      ScheduleDaily,
	})

	// Never run: due immediately
	results := f.engine.RunDuePolicies(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, policy.ID, results[0].PolicyID)

	// Just ran: nothing due
	results = f.engine.RunDuePolicies(context.Background())
	assert.Empty(t, results)
}

func TestEngine_GetStatusSortsSoonestFirst(t *testing.T) {
	f := newEngineFixture(t, "temp_data")

	daily := f.addPolicy(t, &Policy{
		Name:          "Daily",
		DataTypes:     []string{"temp_data"},
		RetentionDays: 1,
		Action:        ActionDelete,
		Schedule:      ScheduleDaily,
	})
	weekly := f.addPolicy(t, &Policy{
		Name:          "Weekly",
		DataTypes:     []string{"temp_data"},
		RetentionDays: 1,
		Action:        ActionDelete,
		Schedule:      ScheduleWeekly,
	})
	require.NoError(t, f.runs.RecordRun(daily.ID, testNow.Add(-6*time.Hour)))
	require.NoError(t, f.runs.RecordRun(weekly.ID, testNow.Add(-6*time.Hour)))

	status := f.engine.GetStatus()
	assert.Equal(t, 6, status.PolicyCount)

	last := -1.0
	for _, due := range status.NextDue {
		require.GreaterOrEqual(t, due.DueInDays, last, "next_due must be sorted ascending")
		last = due.DueInDays
	}

	// Never-run builtins are due now; the weekly policy trails the daily one
	assert.Equal(t, float64(0), status.NextDue[0].DueInDays)
	var dailyDue, weeklyDue float64
	for _, due := range status.NextDue {
		switch due.PolicyID {
		case daily.ID:
			dailyDue = due.DueInDays
		case weekly.ID:
			weeklyDue = due.DueInDays
		}
	}
	assert.Less(t, dailyDue, weeklyDue)
}
