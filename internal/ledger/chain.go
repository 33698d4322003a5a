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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// GenesisHash is the previous_hash of the very first event in a ledger
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// canonicalEvent is the serialization the chain hash is computed over. Field
// order is fixed by struct declaration order and map keys are sorted by
// encoding/json, so the byte stream is reproducible across runs and
// processes. The stored hash itself is excluded.
type canonicalEvent struct {
	ID            string         `json:"id"`
	Timestamp     string         `json:"timestamp"`
	Category      Category       `json:"category"`
	EventType     string         `json:"event_type"`
	Actor         Actor          `json:"actor"`
	Resource      *Resource      `json:"resource,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Outcome       Outcome        `json:"outcome"`
	RetentionDays int            `json:"retention_days"`
	PreviousHash  string         `json:"previous_hash"`
}

// computeHash chains an event to its predecessor: SHA-256 over the canonical
// serialization of every event field plus previousHash. Pure function; the
// same inputs always yield the same digest.
func computeHash(e *Event, previousHash string) (string, error) {
	canonical := canonicalEvent{
		ID:            e.ID,
		Timestamp:     e.Timestamp.UTC().Format(timestampFormat),
		Category:      e.Category,
		EventType:     e.EventType,
		Actor:         e.Actor,
		Resource:      e.Resource,
		Details:       e.Details,
		Outcome:       e.Outcome,
		RetentionDays: e.RetentionDays,
		PreviousHash:  previousHash,
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize event %s: %w", e.ID, err)
	}

	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:]), nil
}

// timestampFormat is the canonical on-disk timestamp layout (ISO-8601, UTC)
const timestampFormat = "2006-01-02T15:04:05.000000Z"
