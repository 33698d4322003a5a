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
	"time"
)

// Policy represents a retention policy
type Policy struct {
	ID                    string   `json:"id,omitempty"`
	Name                  string   `json:"name"`
	DataTypes             []string `json:"data_types"`
	Classifications       []string `json:"classifications,omitempty"`
	RetentionDays         int      `json:"retention_days"`
	Action                string   `json:"action"`
	Schedule              string   `json:"schedule"`
	RegulatoryRequirement string   `json:"regulatory_requirement,omitempty"`
}

// ListPoliciesResponse represents a policy list response
type ListPoliciesResponse struct {
	Policies []*Policy `json:"policies"`
	Count    int       `json:"count"`
}

// RemovePolicyResponse represents a policy removal response
type RemovePolicyResponse struct {
	Removed bool `json:"removed"`
}

// RunResult represents one (policy, data type) retention outcome
type RunResult struct {
	PolicyID       string `json:"policy_id"`
	PolicyName     string `json:"policy_name"`
	DataType       string `json:"data_type"`
	ItemsProcessed int    `json:"items_processed"`
	BytesFreed     int64  `json:"bytes_freed"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// RunResponse represents a retention run response
type RunResponse struct {
	Results []RunResult `json:"results"`
}

// NextDue is one entry of the retention schedule report
type NextDue struct {
	PolicyID  string  `json:"policy_id"`
	Name      string  `json:"name"`
	Schedule  string  `json:"schedule"`
	DueInDays float64 `json:"due_in_days"`
}

// RetentionStatus represents the retention engine status report
type RetentionStatus struct {
	PolicyCount int                  `json:"policy_count"`
	LastRuns    map[string]time.Time `json:"last_runs"`
	NextDue     []NextDue            `json:"next_due"`
}

// ListPolicies lists retention policies, built-ins included
func (c *Client) ListPolicies(ctx context.Context) (*ListPoliciesResponse, error) {
	resp, err := c.doRequestWithRetry(ctx, "GET", "/v1/retention/policies", nil, defaultMaxRetries)
	if err != nil {
		return nil, err
	}

	var policies ListPoliciesResponse
	if err := c.parseResponse(resp, &policies); err != nil {
		return nil, err
	}
	return &policies, nil
}

// AddPolicy adds a user retention policy. Creates are not idempotent (the
// server generates the policy id), so the request is never retried.
func (c *Client) AddPolicy(ctx context.Context, policy Policy) (*Policy, error) {
	resp, err := c.doRequest(ctx, "POST", "/v1/retention/policies", policy)
	if err != nil {
		return nil, err
	}

	var added Policy
	if err := c.parseResponse(resp, &added); err != nil {
		return nil, err
	}
	return &added, nil
}

// UpdatePolicy updates a user retention policy
func (c *Client) UpdatePolicy(ctx context.Context, id string, partial Policy) (*Policy, error) {
	path := fmt.Sprintf("/v1/retention/policies/%s", id)
	resp, err := c.doRequestWithRetry(ctx, "PUT", path, partial, defaultMaxRetries)
	if err != nil {
		return nil, err
	}

	var updated Policy
	if err := c.parseResponse(resp, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// RemovePolicy removes a user retention policy
func (c *Client) RemovePolicy(ctx context.Context, id string) (bool, error) {
	path := fmt.Sprintf("/v1/retention/policies/%s", id)
	resp, err := c.doRequestWithRetry(ctx, "DELETE", path, nil, defaultMaxRetries)
	if err != nil {
		return false, err
	}

	var removed RemovePolicyResponse
	if err := c.parseResponse(resp, &removed); err != nil {
		return false, err
	}
	return removed.Removed, nil
}

// RunDuePolicies executes all due retention policies
func (c *Client) RunDuePolicies(ctx context.Context) (*RunResponse, error) {
	resp, err := c.doRequestWithRetry(ctx, "POST", "/v1/retention/run", nil, defaultMaxRetries)
	if err != nil {
		return nil, err
	}

	var run RunResponse
	if err := c.parseResponse(resp, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ForceRunPolicy executes one policy regardless of its schedule
func (c *Client) ForceRunPolicy(ctx context.Context, id string) (*RunResponse, error) {
	path := fmt.Sprintf("/v1/retention/run/%s", id)
	resp, err := c.doRequestWithRetry(ctx, "POST", path, nil, defaultMaxRetries)
	if err != nil {
		return nil, err
	}

	var run RunResponse
	if err := c.parseResponse(resp, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRetentionStatus returns the retention engine status report
func (c *Client) GetRetentionStatus(ctx context.Context) (*RetentionStatus, error) {
	resp, err := c.doRequestWithRetry(ctx, "GET", "/v1/retention/status", nil, defaultMaxRetries)
	if err != nil {
		return nil, err
	}

	var status RetentionStatus
	if err := c.parseResponse(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
