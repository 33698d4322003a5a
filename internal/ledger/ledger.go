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
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/complyd/complyd/internal/metrics"
)

const (
	// defaultFilePrefix names segment files when no prefix is configured
	defaultFilePrefix = "ledger"
	// defaultRedactionMaxLen is the default maximum detail string length
	defaultRedactionMaxLen = 500
	// defaultRetentionDays is the default event retention (7 years)
	defaultRetentionDays = 7 * 365
	// defaultReadLimit bounds Read when the caller passes no limit
	defaultReadLimit = 100
)

// Config configures a Ledger instance. All values are read once at
// construction; there is no hot reload.
type Config struct {
	// BaseDir is the directory holding the segment files
	BaseDir string
	// FilePrefix names the segment files (default "ledger")
	FilePrefix string
	// RedactionMaxLen is the longest detail string stored unredacted
	RedactionMaxLen int
	// DefaultRetentionDays is applied to events appended without an explicit
	// retention period
	DefaultRetentionDays int
}

// Ledger is the append-only, hash-chained event log. A single Ledger
// instance assumes it is the only writer to its directory; concurrent
// writers from other processes would corrupt the chain and are not
// supported. A differently-scoped trail should be a second Ledger instance
// with its own directory, not a second chaining implementation.
type Ledger struct {
	store         *segmentStore
	logger        *zap.Logger
	redactMaxLen  int
	retentionDays int

	mu  sync.Mutex
	tip string
}

// New constructs a Ledger and recovers the in-memory tip hash from disk:
// the last parsable event of the most recent segment, or the genesis hash
// for an empty ledger.
func New(cfg Config, logger *zap.Logger) (*Ledger, error) {
	prefix := cfg.FilePrefix
	if prefix == "" {
		prefix = defaultFilePrefix
	}
	redactMaxLen := cfg.RedactionMaxLen
	if redactMaxLen <= 0 {
		redactMaxLen = defaultRedactionMaxLen
	}
	retentionDays := cfg.DefaultRetentionDays
	if retentionDays == 0 {
		retentionDays = defaultRetentionDays
	}

	store, err := newSegmentStore(cfg.BaseDir, prefix)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		store:         store,
		logger:        logger,
		redactMaxLen:  redactMaxLen,
		retentionDays: retentionDays,
	}

	tip, err := l.recoverTip()
	if err != nil {
		return nil, err
	}
	l.tip = tip

	logger.Info("Ledger initialized",
		zap.String("base_dir", cfg.BaseDir),
		zap.Bool("empty", tip == GenesisHash),
	)
	return l, nil
}

// recoverTip walks segments newest first and adopts the hash of the last
// parsable event. Walking past the newest segment covers a restart right
// after a month rotation, before the new segment has its first line.
func (l *Ledger) recoverTip() (string, error) {
	paths, err := l.store.listSegmentsDesc()
	if err != nil {
		return "", err
	}

	for _, path := range paths {
		lines, err := l.store.readLines(path)
		if err != nil {
			return "", err
		}
		for i := len(lines) - 1; i >= 0; i-- {
			var e Event
			if json.Unmarshal([]byte(lines[i]), &e) == nil && e.Hash != "" {
				return e.Hash, nil
			}
		}
	}
	return GenesisHash, nil
}

// AppendOption customizes an appended event
type AppendOption func(*Event)

// WithResource records the object acted upon
func WithResource(resourceType, id string) AppendOption {
	return func(e *Event) {
		e.Resource = &Resource{Type: resourceType, ID: id}
	}
}

// WithDetails attaches free-form details; sensitive keys and over-long
// string values are redacted before the event is hashed
func WithDetails(details map[string]any) AppendOption {
	return func(e *Event) {
		e.Details = details
	}
}

// WithRetentionDays overrides the ledger default retention period. Use
// RetentionIndefinite for events that must be kept forever.
func WithRetentionDays(days int) AppendOption {
	return func(e *Event) {
		e.RetentionDays = days
	}
}

// Append builds, chains, and durably writes one event. The returned event is
// the stored record, redaction already applied. The line is flushed to disk
// before the in-memory tip advances, so a failed write never detaches the
// chain.
//
//nolint:revive // ctx reserved for network-backed segment stores
func (l *Ledger) Append(
	ctx context.Context,
	category Category,
	eventType string,
	actor Actor,
	outcome Outcome,
	opts ...AppendOption,
) (*Event, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return nil, err
	}
	if _, err := ParseOutcome(string(outcome)); err != nil {
		return nil, err
	}
	if _, err := ParseActorType(string(actor.Type)); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	now := start.UTC()

	event := &Event{
		ID:            uuid.NewString(),
		Timestamp:     now,
		Category:      category,
		EventType:     eventType,
		Actor:         actor,
		Outcome:       outcome,
		RetentionDays: l.retentionDays,
	}
	for _, opt := range opts {
		opt(event)
	}

	// Irreversible, pre-chaining sanitization
	event.Actor.IP = maskIP(event.Actor.IP)
	event.Details = redactDetails(event.Details, l.redactMaxLen)

	hash, err := computeHash(event, l.tip)
	if err != nil {
		return nil, err
	}
	event.PreviousHash = l.tip
	event.Hash = hash

	line, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event %s: %w", event.ID, err)
	}
	// Never persist a line the read path would refuse
	if len(line) >= maxLineSize {
		return nil, fmt.Errorf("event %s exceeds the maximum record size of %d bytes", event.ID, maxLineSize)
	}

	path := l.store.segmentPath(now)
	if err := l.store.appendLine(path, string(line)); err != nil {
		return nil, err
	}
	l.tip = event.Hash

	metrics.EventsAppended.WithLabelValues(string(category), string(outcome)).Inc()
	metrics.AppendDuration.Observe(time.Since(start).Seconds())

	l.logger.Debug("Event appended",
		zap.String("event_id", event.ID),
		zap.String("category", string(category)),
		zap.String("event_type", eventType),
	)
	return event, nil
}

// Tip returns the hash of the most recently appended event, or the genesis
// hash for an empty ledger.
func (l *Ledger) Tip() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tip
}

// Filter selects events for Read. Zero values match everything.
type Filter struct {
	Category Category
	From     time.Time
	To       time.Time
	Limit    int
}

// Read returns events most recent first: segments newest to oldest, lines
// within a segment newest to oldest. Unparsable lines are skipped, never
// fatal.
//
//nolint:revive // ctx reserved for network-backed segment stores
func (l *Ledger) Read(ctx context.Context, filter Filter) ([]*Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultReadLimit
	}

	paths, err := l.store.listSegmentsDesc()
	if err != nil {
		return nil, err
	}

	events := make([]*Event, 0, limit)
	for _, path := range paths {
		lines, err := l.store.readLines(path)
		if err != nil {
			return nil, err
		}
		for i := len(lines) - 1; i >= 0 && len(events) < limit; i-- {
			var e Event
			if json.Unmarshal([]byte(lines[i]), &e) != nil {
				continue
			}
			if filter.Category != "" && e.Category != filter.Category {
				continue
			}
			if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && e.Timestamp.After(filter.To) {
				continue
			}
			events = append(events, &e)
		}
		if len(events) >= limit {
			break
		}
	}
	return events, nil
}
