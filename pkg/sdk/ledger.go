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

package sdk

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Actor identifies who performed a recorded action
type Actor struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	IP   string `json:"ip,omitempty"`
}

// Resource describes the object acted upon
type Resource struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// Event is one ledger record as stored on the server
type Event struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Category      string         `json:"category"`
	EventType     string         `json:"event_type"`
	Actor         Actor          `json:"actor"`
	Resource      *Resource      `json:"resource,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Outcome       string         `json:"outcome"`
	RetentionDays int            `json:"retention_days"`
	Hash          string         `json:"hash"`
	PreviousHash  string         `json:"previous_hash"`
}

// AppendEventRequest represents an event append request
type AppendEventRequest struct {
	Category      string         `json:"category"`
	EventType     string         `json:"event_type"`
	Actor         Actor          `json:"actor"`
	Resource      *Resource      `json:"resource,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Outcome       string         `json:"outcome,omitempty"`
	RetentionDays *int           `json:"retention_days,omitempty"`
}

// ReadEventsRequest filters a ledger read
type ReadEventsRequest struct {
	Category string
	From     time.Time
	To       time.Time
	Limit    int
}

// ReadEventsResponse represents a ledger read response
type ReadEventsResponse struct {
	Events []*Event `json:"events"`
	Count  int      `json:"count"`
}

// VerifyReport represents an integrity verification report
type VerifyReport struct {
	Valid               bool   `json:"valid"`
	TotalEvents         int    `json:"total_events"`
	ValidEvents         int    `json:"valid_events"`
	LastValidEventID    string `json:"last_valid_event_id,omitempty"`
	FirstInvalidEventID string `json:"first_invalid_event_id,omitempty"`
	TipHash             string `json:"tip_hash"`
}

// Checkpoint is a signed snapshot of the chain head
type Checkpoint struct {
	TipHash     string    `json:"tip_hash"`
	TotalEvents int       `json:"total_events"`
	Timestamp   time.Time `json:"timestamp"`
	KeyID       string    `json:"key_id"`
	Signature   string    `json:"signature"`
}

// CheckpointResponse represents a checkpoint response
type CheckpointResponse struct {
	Checkpoint *Checkpoint `json:"checkpoint"`
	PublicKey  string      `json:"public_key"`
}

// AppendEvent appends one event to the ledger. Appends are not idempotent,
// so the request is never retried.
func (c *Client) AppendEvent(ctx context.Context, req AppendEventRequest) (*Event, error) {
	resp, err := c.doRequest(ctx, "POST", "/v1/events", req)
	if err != nil {
		return nil, err
	}

	var event Event
	if err := c.parseResponse(resp, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// ReadEvents reads ledger events, most recent first
func (c *Client) ReadEvents(ctx context.Context, req ReadEventsRequest) (*ReadEventsResponse, error) {
	query := url.Values{}
	if req.Category != "" {
		query.Set("category", req.Category)
	}
	if !req.From.IsZero() {
		query.Set("from", req.From.Format(time.RFC3339))
	}
	if !req.To.IsZero() {
		query.Set("to", req.To.Format(time.RFC3339))
	}
	if req.Limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", req.Limit))
	}

	path := "/v1/events"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	resp, err := c.doRequestWithRetry(ctx, "GET", path, nil, defaultMaxRetries)
	if err != nil {
		return nil, err
	}

	var events ReadEventsResponse
	if err := c.parseResponse(resp, &events); err != nil {
		return nil, err
	}
	return &events, nil
}

// VerifyLedger runs an integrity verification on the server
func (c *Client) VerifyLedger(ctx context.Context) (*VerifyReport, error) {
	resp, err := c.doRequestWithRetry(ctx, "GET", "/v1/ledger/verify", nil, defaultMaxRetries)
	if err != nil {
		return nil, err
	}

	var report VerifyReport
	if err := c.parseResponse(resp, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetCheckpoint returns a signed checkpoint of the current chain head
func (c *Client) GetCheckpoint(ctx context.Context) (*CheckpointResponse, error) {
	resp, err := c.doRequestWithRetry(ctx, "GET", "/v1/ledger/checkpoint", nil, defaultMaxRetries)
	if err != nil {
		return nil, err
	}

	var checkpoint CheckpointResponse
	if err := c.parseResponse(resp, &checkpoint); err != nil {
		return nil, err
	}
	return &checkpoint, nil
}
