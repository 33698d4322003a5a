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

package server

import (
	"github.com/complyd/complyd/internal/ledger"
	"github.com/complyd/complyd/internal/retention"
)

// AppendEventRequest is the request body for appending a ledger event
type AppendEventRequest struct {
	Category      string           `json:"category"`
	EventType     string           `json:"event_type"`
	Actor         ledger.Actor     `json:"actor"`
	Resource      *ledger.Resource `json:"resource,omitempty"`
	Details       map[string]any   `json:"details,omitempty"`
	Outcome       string           `json:"outcome,omitempty"`
	RetentionDays *int             `json:"retention_days,omitempty"`
}

// ReadEventsResponse is the response body for reading ledger events
type ReadEventsResponse struct {
	Events []*ledger.Event `json:"events"`
	Count  int             `json:"count"`
}

// CheckpointResponse is the response body for a signed chain checkpoint
type CheckpointResponse struct {
	Checkpoint *ledger.Checkpoint `json:"checkpoint"`
	PublicKey  string             `json:"public_key"`
}

// RunResponse is the response body for retention run endpoints
type RunResponse struct {
	Results []retention.Result `json:"results"`
}

// ListPoliciesResponse is the response body for listing retention policies
type ListPoliciesResponse struct {
	Policies []*retention.Policy `json:"policies"`
	Count    int                 `json:"count"`
}

// RemovePolicyResponse is the response body for removing a retention policy
type RemovePolicyResponse struct {
	Removed bool `json:"removed"`
}

// ErrorResponse is the generic error response body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
