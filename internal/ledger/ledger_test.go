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

package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(Config{BaseDir: t.TempDir()}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	return l
}

func mustAppend(t *testing.T, l *Ledger, category Category, eventType string, opts ...AppendOption) *Event {
	t.Helper()
	e, err := l.Append(context.Background(), category, eventType,
		Actor{Type: ActorSystem, ID: "test"}, OutcomeSuccess, opts...)
	if err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	return e
}

func TestLedger_GenesisInvariant(t *testing.T) {
	l := newTestLedger(t)

	if l.Tip() != GenesisHash {
		t.Errorf("Empty ledger tip = %s, expected genesis", l.Tip())
	}

	first := mustAppend(t, l, CategoryConsent, "consent.granted")
	if first.PreviousHash != GenesisHash {
		t.Errorf("First event previous_hash = %s, expected genesis", first.PreviousHash)
	}
}

func TestLedger_LinkageInvariant(t *testing.T) {
	l := newTestLedger(t)

	var previous *Event
	for i := 0; i < 5; i++ {
		e := mustAppend(t, l, CategoryDataAccess, "user.read")
		if previous != nil && e.PreviousHash != previous.Hash {
			t.Errorf("Event %d previous_hash = %s, expected %s", i, e.PreviousHash, previous.Hash)
		}
		if l.Tip() != e.Hash {
			t.Errorf("Tip = %s, expected %s", l.Tip(), e.Hash)
		}
		previous = e
	}
}

func TestLedger_AppendRejectsUnknownCategory(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Append(context.Background(), Category("bogus"), "x",
		Actor{Type: ActorSystem}, OutcomeSuccess)
	if err == nil {
		t.Error("Expected unknown category to be rejected")
	}
}

func TestLedger_AppendRejectsUnknownOutcomeAndActorType(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Append(context.Background(), CategoryDataAccess, "x",
		Actor{Type: ActorSystem}, Outcome("maybe"))
	if err == nil {
		t.Error("Expected unknown outcome to be rejected")
	}

	_, err = l.Append(context.Background(), CategoryDataAccess, "x",
		Actor{Type: ActorType("robot")}, OutcomeSuccess)
	if err == nil {
		t.Error("Expected unknown actor type to be rejected")
	}

	if l.Tip() != GenesisHash {
		t.Errorf("Rejected appends must not advance the chain, tip = %s", l.Tip())
	}
}

func TestLedger_AppendRejectsOversizedEvent(t *testing.T) {
	l := newTestLedger(t)

	// Many keys, each value under the redaction cap, together past the
	// record size limit
	details := make(map[string]any, 3000)
	value := strings.Repeat("v", 400)
	for i := 0; i < 3000; i++ {
		details[fmt.Sprintf("field_%04d", i)] = value
	}

	_, err := l.Append(context.Background(), CategoryDataAccess, "bulk.write",
		Actor{Type: ActorSystem, ID: "test"}, OutcomeSuccess, WithDetails(details))
	if err == nil {
		t.Fatal("Expected oversized event to be rejected")
	}
	if l.Tip() != GenesisHash {
		t.Errorf("Rejected append must not advance the chain, tip = %s", l.Tip())
	}

	// The ledger stays fully usable afterwards
	e := mustAppend(t, l, CategoryDataAccess, "normal.write")
	events, err := l.Read(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if len(events) != 1 || events[0].ID != e.ID {
		t.Errorf("Expected the one accepted event, got %+v", events)
	}
	report, err := l.Verify(context.Background())
	if err != nil {
		t.Fatalf("Failed to verify: %v", err)
	}
	if !report.Valid || report.TotalEvents != 1 {
		t.Errorf("Report = %+v, expected valid 1/1", report)
	}
}

func TestLedger_ReadSkipsOversizedForeignLine(t *testing.T) {
	l := newTestLedger(t)

	first := mustAppend(t, l, CategoryDataAccess, "first")

	// A foreign multi-megabyte line lands in the segment (hand-edit, another
	// tool's output); it must not make the segment unreadable
	paths, err := l.store.listSegments()
	if err != nil || len(paths) != 1 {
		t.Fatalf("Expected one segment, got %v (%v)", paths, err)
	}
	f, err := os.OpenFile(paths[0], os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("Failed to open segment: %v", err)
	}
	if _, err := f.WriteString(strings.Repeat("x", maxLineSize+1024) + "\n"); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	_ = f.Close()

	second := mustAppend(t, l, CategoryDataAccess, "second")

	events, err := l.Read(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Read failed on segment with oversized line: %v", err)
	}
	if len(events) != 2 || events[0].ID != second.ID || events[1].ID != first.ID {
		t.Errorf("Expected both chained events, got %d", len(events))
	}

	report, err := l.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify failed on segment with oversized line: %v", err)
	}
	if !report.Valid || report.TotalEvents != 2 || report.ValidEvents != 2 {
		t.Errorf("Report = %+v, expected valid 2/2", report)
	}
}

func TestLedger_AppendRedactsBeforeChaining(t *testing.T) {
	l := newTestLedger(t)

	e := mustAppend(t, l, CategorySecurityIncident, "incident.noted",
		WithDetails(map[string]any{"password": "hunter2", "kind": "login"}),
	)

	if e.Details["password"] != RedactionMarker {
		t.Errorf("Expected stored event redacted, got %v", e.Details["password"])
	}

	// The redacted form is what was hashed, so the chain must verify
	report, err := l.Verify(context.Background())
	if err != nil {
		t.Fatalf("Failed to verify: %v", err)
	}
	if !report.Valid {
		t.Error("Chain over redacted event does not verify")
	}
}

func TestLedger_AppendMasksActorIP(t *testing.T) {
	l := newTestLedger(t)

	e, err := l.Append(context.Background(), CategoryAccessControl, "login.success",
		Actor{Type: ActorUser, ID: "u1", IP: "198.51.100.23"}, OutcomeSuccess)
	if err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	if e.Actor.IP != "198.51.100.0" {
		t.Errorf("Actor IP = %s, expected masked", e.Actor.IP)
	}
}

func TestLedger_TipRecoveredOnReopen(t *testing.T) {
	dir := t.TempDir()

	l1, err := New(Config{BaseDir: dir}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	first := mustAppend(t, l1, CategoryConsent, "consent.granted")
	second := mustAppend(t, l1, CategoryConsent, "consent.withdrawn")

	l2, err := New(Config{BaseDir: dir}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to reopen ledger: %v", err)
	}
	if l2.Tip() != second.Hash {
		t.Errorf("Recovered tip = %s, expected %s", l2.Tip(), second.Hash)
	}

	third := mustAppend(t, l2, CategoryConsent, "consent.granted")
	if third.PreviousHash != second.Hash {
		t.Errorf("Chain broken across reopen: previous_hash = %s", third.PreviousHash)
	}

	report, err := l2.Verify(context.Background())
	if err != nil {
		t.Fatalf("Failed to verify: %v", err)
	}
	if !report.Valid || report.TotalEvents != 3 {
		t.Errorf("Expected valid 3-event chain, got %+v", report)
	}
	_ = first
}

func TestLedger_ReadNewestFirst(t *testing.T) {
	l := newTestLedger(t)

	mustAppend(t, l, CategoryDataAccess, "first")
	mustAppend(t, l, CategoryDataAccess, "second")
	mustAppend(t, l, CategoryDataAccess, "third")

	events, err := l.Read(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].EventType != "third" || events[2].EventType != "first" {
		t.Errorf("Events not newest first: %s, %s, %s",
			events[0].EventType, events[1].EventType, events[2].EventType)
	}
}

func TestLedger_ReadFilters(t *testing.T) {
	l := newTestLedger(t)

	mustAppend(t, l, CategoryDataAccess, "read")
	mustAppend(t, l, CategoryPolicyChange, "changed")
	mustAppend(t, l, CategoryDataAccess, "read-again")

	events, err := l.Read(context.Background(), Filter{Category: CategoryPolicyChange})
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if len(events) != 1 || events[0].EventType != "changed" {
		t.Errorf("Category filter failed: %+v", events)
	}

	events, err = l.Read(context.Background(), Filter{Limit: 2})
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("Limit not honored: got %d events", len(events))
	}
}

func TestLedger_ReadSkipsCorruptedLines(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{BaseDir: dir}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}

	mustAppend(t, l, CategoryDataAccess, "good")

	// Simulate a partially-written trailing line
	paths, err := l.store.listSegments()
	if err != nil || len(paths) != 1 {
		t.Fatalf("Expected one segment, got %v (%v)", paths, err)
	}
	f, err := os.OpenFile(paths[0], os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("Failed to open segment: %v", err)
	}
	if _, err := f.WriteString(`{"id":"trunc`); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	_ = f.Close()

	events, err := l.Read(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Read failed on corrupted segment: %v", err)
	}
	if len(events) != 1 || events[0].EventType != "good" {
		t.Errorf("Expected the one intact event, got %+v", events)
	}
}

func TestLedger_SegmentNamingAndPermissions(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{BaseDir: filepath.Join(dir, "ledger"), FilePrefix: "audit"}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	mustAppend(t, l, CategoryDataAccess, "read")

	paths, err := l.store.listSegments()
	if err != nil || len(paths) != 1 {
		t.Fatalf("Expected one segment, got %v (%v)", paths, err)
	}

	name := filepath.Base(paths[0])
	if !strings.HasPrefix(name, "audit-") || !strings.HasSuffix(name, ".jsonl") {
		t.Errorf("Unexpected segment name: %s", name)
	}

	info, err := os.Stat(paths[0])
	if err != nil {
		t.Fatalf("Failed to stat segment: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Segment mode = %o, expected 600", info.Mode().Perm())
	}

	dirInfo, err := os.Stat(filepath.Join(dir, "ledger"))
	if err != nil {
		t.Fatalf("Failed to stat ledger dir: %v", err)
	}
	if dirInfo.Mode().Perm() != 0o700 {
		t.Errorf("Directory mode = %o, expected 700", dirInfo.Mode().Perm())
	}
}
