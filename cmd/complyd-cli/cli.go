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

// Package main provides the Complyd CLI tool for interacting with the
// Complyd server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/complyd/complyd/internal/version"
	"github.com/complyd/complyd/pkg/sdk"
)

const (
	// defaultClientTimeout is the default timeout for HTTP client requests
	defaultClientTimeout = 30 * time.Second
)

// CLI represents the root CLI structure
type CLI struct {
	ServerURL string `flag:"server" env:"COMPLYD_SERVER_URL" default:"http://localhost:8080" help:"Complyd server URL"`
	Token     string `flag:"token" env:"COMPLYD_TOKEN" help:"Authentication token"`

	Version    VersionCmd    `cmd:"" help:"Show version information"`
	Append     AppendCmd     `cmd:"" help:"Append an event to the ledger"`
	Read       ReadCmd       `cmd:"" help:"Read ledger events, most recent first"`
	Verify     VerifyCmd     `cmd:"" help:"Verify ledger chain integrity"`
	Checkpoint CheckpointCmd `cmd:"" help:"Fetch a signed checkpoint of the chain head"`
	Retention  RetentionCmd  `cmd:"" help:"Retention engine commands"`
	Policy     PolicyCmd     `cmd:"" help:"Retention policy management commands"`
}

// getClient creates an SDK client from CLI configuration
func (c *CLI) getClient() (*sdk.Client, error) {
	config := sdk.Config{
		BaseURL: c.ServerURL,
		Token:   c.Token,
		Timeout: defaultClientTimeout,
	}
	return sdk.NewClient(config)
}

// printJSON renders a response as indented JSON
func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	fmt.Println(string(output))
	return nil
}

// VersionCmd shows version information
type VersionCmd struct{}

// Run executes the version command
//
//nolint:unparam // error return is required by kong.Cmd interface
func (v *VersionCmd) Run() error {
	info := version.Info()
	fmt.Println("complyd-cli version", info["version"])
	fmt.Println("commit:", info["commit"])
	fmt.Println("date:", info["date"])
	return nil
}

// AppendCmd appends one event to the ledger
type AppendCmd struct {
	CLI *CLI `kong:"-"`

	Category      string            `arg:"" required:"" help:"Event category (consent, data_access, retention, ...)"`
	EventType     string            `arg:"" required:"" help:"Event type, e.g. user.data_export"`
	ActorType     string            `flag:"actor-type" default:"system" help:"Actor type (user, system, admin)"`
	ActorID       string            `flag:"actor-id" help:"Actor identifier"`
	ActorIP       string            `flag:"actor-ip" help:"Actor IP (masked before storage)"`
	ResourceType  string            `flag:"resource-type" help:"Resource type"`
	ResourceID    string            `flag:"resource-id" help:"Resource identifier"`
	Outcome       string            `flag:"outcome" default:"success" help:"Outcome (success, failure, pending)"`
	RetentionDays *int              `flag:"retention-days" help:"Retention period override in days"`
	Details       map[string]string `flag:"detail" help:"Detail key=value pairs"`
}

// Run executes the append command
func (a *AppendCmd) Run() error {
	client, err := a.CLI.getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	req := sdk.AppendEventRequest{
		Category:      a.Category,
		EventType:     a.EventType,
		Actor:         sdk.Actor{Type: a.ActorType, ID: a.ActorID, IP: a.ActorIP},
		Outcome:       a.Outcome,
		RetentionDays: a.RetentionDays,
	}
	if a.ResourceType != "" {
		req.Resource = &sdk.Resource{Type: a.ResourceType, ID: a.ResourceID}
	}
	if len(a.Details) > 0 {
		details := make(map[string]any, len(a.Details))
		for k, v := range a.Details {
			details[k] = v
		}
		req.Details = details
	}

	event, err := client.AppendEvent(context.Background(), req)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return printJSON(event)
}

// ReadCmd reads ledger events
type ReadCmd struct {
	CLI *CLI `kong:"-"`

	Category string `flag:"category" help:"Filter by category"`
	From     string `flag:"from" help:"Only events at or after this RFC3339 timestamp"`
	To       string `flag:"to" help:"Only events at or before this RFC3339 timestamp"`
	Limit    int    `flag:"limit" default:"20" help:"Maximum number of events"`
}

// Run executes the read command
func (r *ReadCmd) Run() error {
	client, err := r.CLI.getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	req := sdk.ReadEventsRequest{Category: r.Category, Limit: r.Limit}
	if r.From != "" {
		if req.From, err = time.Parse(time.RFC3339, r.From); err != nil {
			return fmt.Errorf("invalid --from timestamp: %w", err)
		}
	}
	if r.To != "" {
		if req.To, err = time.Parse(time.RFC3339, r.To); err != nil {
			return fmt.Errorf("invalid --to timestamp: %w", err)
		}
	}

	events, err := client.ReadEvents(context.Background(), req)
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	return printJSON(events)
}

// VerifyCmd verifies chain integrity
type VerifyCmd struct {
	CLI *CLI `kong:"-"`
}

// Run executes the verify command
func (v *VerifyCmd) Run() error {
	client, err := v.CLI.getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	report, err := client.VerifyLedger(context.Background())
	if err != nil {
		return fmt.Errorf("failed to verify ledger: %w", err)
	}
	if err := printJSON(report); err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("ledger integrity check failed")
	}
	return nil
}

// CheckpointCmd fetches a signed chain checkpoint
type CheckpointCmd struct {
	CLI *CLI `kong:"-"`
}

// Run executes the checkpoint command
func (c *CheckpointCmd) Run() error {
	client, err := c.CLI.getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	checkpoint, err := client.GetCheckpoint(context.Background())
	if err != nil {
		return fmt.Errorf("failed to fetch checkpoint: %w", err)
	}
	return printJSON(checkpoint)
}

// RetentionCmd groups retention engine commands
type RetentionCmd struct {
	Status RetentionStatusCmd `cmd:"" help:"Show retention engine status"`
	Run    RetentionRunCmd    `cmd:"" help:"Run retention policies"`
}

// RetentionStatusCmd shows the retention engine status
type RetentionStatusCmd struct {
	CLI *CLI `kong:"-"`
}

// Run executes the retention status command
func (s *RetentionStatusCmd) Run() error {
	client, err := s.CLI.getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	status, err := client.GetRetentionStatus(context.Background())
	if err != nil {
		return fmt.Errorf("failed to fetch retention status: %w", err)
	}
	return printJSON(status)
}

// RetentionRunCmd runs due policies, or one policy regardless of schedule
type RetentionRunCmd struct {
	CLI *CLI `kong:"-"`

	ID string `arg:"" optional:"" help:"Policy id to force-run (default: all due policies)"`
}

// Run executes the retention run command
func (r *RetentionRunCmd) Run() error {
	client, err := r.CLI.getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	var run *sdk.RunResponse
	if r.ID != "" {
		run, err = client.ForceRunPolicy(context.Background(), r.ID)
	} else {
		run, err = client.RunDuePolicies(context.Background())
	}
	if err != nil {
		return fmt.Errorf("failed to run retention: %w", err)
	}
	return printJSON(run)
}

// PolicyCmd groups retention policy management commands
type PolicyCmd struct {
	List   PolicyListCmd   `cmd:"" help:"List retention policies"`
	Add    PolicyAddCmd    `cmd:"" help:"Add a retention policy"`
	Remove PolicyRemoveCmd `cmd:"" help:"Remove a user retention policy"`
}

// PolicyListCmd lists retention policies
type PolicyListCmd struct {
	CLI *CLI `kong:"-"`
}

// Run executes the policy list command
func (l *PolicyListCmd) Run() error {
	client, err := l.CLI.getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	policies, err := client.ListPolicies(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list policies: %w", err)
	}
	return printJSON(policies)
}

// PolicyAddCmd adds a user retention policy
type PolicyAddCmd struct {
	CLI *CLI `kong:"-"`

	Name          string   `arg:"" required:"" help:"Policy name"`
	DataTypes     []string `flag:"data-type" required:"" help:"Data types the policy governs"`
	RetentionDays int      `flag:"retention-days" required:"" help:"Retention period in days"`
	Action        string   `flag:"action" default:"delete" help:"Disposal action (delete, archive, anonymize)"`
	Schedule      string   `flag:"schedule" default:"daily" help:"Run schedule (daily, weekly, monthly)"`
	Regulatory    string   `flag:"regulatory" help:"Regulatory requirement citation"`
}

// Run executes the policy add command
func (a *PolicyAddCmd) Run() error {
	client, err := a.CLI.getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	policy, err := client.AddPolicy(context.Background(), sdk.Policy{
		Name:                  a.Name,
		DataTypes:             a.DataTypes,
		RetentionDays:         a.RetentionDays,
		Action:                a.Action,
		Schedule:              a.Schedule,
		RegulatoryRequirement: a.Regulatory,
	})
	if err != nil {
		return fmt.Errorf("failed to add policy: %w", err)
	}
	return printJSON(policy)
}

// PolicyRemoveCmd removes a user retention policy
type PolicyRemoveCmd struct {
	CLI *CLI `kong:"-"`

	ID string `arg:"" required:"" help:"Policy id"`
}

// Run executes the policy remove command
func (r *PolicyRemoveCmd) Run() error {
	client, err := r.CLI.getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	removed, err := client.RemovePolicy(context.Background(), r.ID)
	if err != nil {
		return fmt.Errorf("failed to remove policy: %w", err)
	}
	if !removed {
		fmt.Println("Policy was not removed (unknown id or built-in policy)")
		return nil
	}
	fmt.Println("Policy removed")
	return nil
}
