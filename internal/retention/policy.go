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

// Package retention provides declarative time-based disposal of stored data:
// a durable policy store, a pure due-check scheduler, and the engine that
// scans storage locations and deletes or archives expired items.
package retention

import "fmt"

// Action is the disposal applied to expired items
type Action string

const (
	// ActionDelete removes expired items
	ActionDelete Action = "delete"
	// ActionArchive copies expired items into the archive root, then removes
	// the originals
	ActionArchive Action = "archive"
	// ActionAnonymize is declared for policy authoring but is a documented
	// no-op: items are counted, nothing is removed or rewritten
	ActionAnonymize Action = "anonymize"
)

// Schedule is the minimum interval between policy runs
type Schedule string

const (
	// ScheduleDaily runs at most once per day
	ScheduleDaily Schedule = "daily"
	// ScheduleWeekly runs at most once per week
	ScheduleWeekly Schedule = "weekly"
	// ScheduleMonthly runs at most once per month
	ScheduleMonthly Schedule = "monthly"
)

// Policy is a declarative retention rule: which data types it governs, how
// long items live, and what happens to them afterwards.
type Policy struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	DataTypes             []string `json:"data_types"`
	Classifications       []string `json:"classifications,omitempty"`
	RetentionDays         int      `json:"retention_days"`
	Action                Action   `json:"action"`
	Schedule              Schedule `json:"schedule"`
	RegulatoryRequirement string   `json:"regulatory_requirement,omitempty"`
}

// Validate checks a policy definition for well-formedness
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if len(p.DataTypes) == 0 {
		return fmt.Errorf("policy must govern at least one data type")
	}
	if p.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive, got %d", p.RetentionDays)
	}
	switch p.Action {
	case ActionDelete, ActionArchive, ActionAnonymize:
	default:
		return fmt.Errorf("unknown action: %q", p.Action)
	}
	switch p.Schedule {
	case ScheduleDaily, ScheduleWeekly, ScheduleMonthly:
	default:
		return fmt.Errorf("unknown schedule: %q", p.Schedule)
	}
	return nil
}

const (
	// auditLogRetentionDays keeps audit segments for 7 years
	auditLogRetentionDays = 2555
	// sessionStateRetentionDays keeps session state for 30 days
	sessionStateRetentionDays = 30
	// exportRetentionDays keeps generated exports for 90 days
	exportRetentionDays = 90
	// tempFileRetentionDays keeps temporary files for 7 days
	tempFileRetentionDays = 7
)

// builtinPolicies are always present, immutable, and take precedence over
// user policies on id collision. Their ids are reserved.
var builtinPolicies = []*Policy{
	{
		ID:                    "builtin-audit-logs",
		Name:                  "Audit log retention",
		DataTypes:             []string{"audit_logs"},
		RetentionDays:         auditLogRetentionDays,
		Action:                ActionArchive,
		Schedule:              ScheduleMonthly,
		RegulatoryRequirement: "GDPR Art. 30; SOC 2 CC7.3",
	},
	{
		ID:            "builtin-session-state",
		Name:          "Session state cleanup",
		DataTypes:     []string{"session_state"},
		RetentionDays: sessionStateRetentionDays,
		Action:        ActionDelete,
		Schedule:      ScheduleDaily,
	},
	{
		ID:                    "builtin-exports",
		Name:                  "Export retention",
		DataTypes:             []string{"exports"},
		RetentionDays:         exportRetentionDays,
		Action:                ActionDelete,
		Schedule:              ScheduleWeekly,
		RegulatoryRequirement: "GDPR Art. 5(1)(e)",
	},
	{
		ID:            "builtin-temp-files",
		Name:          "Temporary file cleanup",
		DataTypes:     []string{"temp_files"},
		RetentionDays: tempFileRetentionDays,
		Action:        ActionDelete,
		Schedule:      ScheduleDaily,
	},
}

// BuiltinPolicies returns copies of the built-in policies
func BuiltinPolicies() []*Policy {
	policies := make([]*Policy, 0, len(builtinPolicies))
	for _, p := range builtinPolicies {
		clone := *p
		policies = append(policies, &clone)
	}
	return policies
}

// IsBuiltin reports whether id belongs to a built-in policy
func IsBuiltin(id string) bool {
	for _, p := range builtinPolicies {
		if p.ID == id {
			return true
		}
	}
	return false
}
