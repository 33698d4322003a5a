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

	"go.uber.org/zap"

	"github.com/complyd/complyd/internal/metrics"
)

// Report is the result of an integrity verification. Chain breaks are
// reported here as data, never as errors: the verifier's job is to describe
// damage, not to treat its discovery as abnormal termination.
type Report struct {
	Valid               bool   `json:"valid"`
	TotalEvents         int    `json:"total_events"`
	ValidEvents         int    `json:"valid_events"`
	LastValidEventID    string `json:"last_valid_event_id,omitempty"`
	FirstInvalidEventID string `json:"first_invalid_event_id,omitempty"`

	// TipHash is the hash of the last valid event this scan observed, or the
	// genesis hash for an empty ledger. Consistent with ValidEvents by
	// construction, so the pair can be attested together.
	TipHash string `json:"tip_hash"`
}

// Verify replays every segment oldest to newest, recomputing each hash and
// checking the previous-hash linkage from the genesis value forward. A
// broken event does not advance the expected hash and does not stop the
// scan, so the report covers the full extent of any damage. Read-only and
// safe to run concurrently with appends to the current segment; a trailing
// partially-written line is skipped like any malformed line.
//
//nolint:revive // ctx reserved for network-backed segment stores
func (l *Ledger) Verify(ctx context.Context) (*Report, error) {
	paths, err := l.store.listSegments()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	expected := GenesisHash

	for _, path := range paths {
		lines, err := l.store.readLines(path)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			var e Event
			if json.Unmarshal([]byte(line), &e) != nil {
				// Corrupted or in-flight line: skipped, not counted
				continue
			}
			report.TotalEvents++

			if e.PreviousHash != expected {
				if report.FirstInvalidEventID == "" {
					report.FirstInvalidEventID = e.ID
				}
				continue
			}

			recomputed, err := computeHash(&e, e.PreviousHash)
			if err != nil || recomputed != e.Hash {
				if report.FirstInvalidEventID == "" {
					report.FirstInvalidEventID = e.ID
				}
				continue
			}

			report.ValidEvents++
			report.LastValidEventID = e.ID
			expected = e.Hash
		}
	}

	report.Valid = report.ValidEvents == report.TotalEvents
	report.TipHash = expected

	result := "valid"
	if !report.Valid {
		result = "invalid"
		l.logger.Warn("Ledger integrity check failed",
			zap.Int("total_events", report.TotalEvents),
			zap.Int("valid_events", report.ValidEvents),
			zap.String("first_invalid_event_id", report.FirstInvalidEventID),
		)
	}
	metrics.VerifyRuns.WithLabelValues(result).Inc()

	return report, nil
}
