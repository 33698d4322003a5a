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

// Package ledger provides the tamper-evident, hash-chained compliance event
// ledger: append-only monthly segment files, chain verification, and signed
// tip checkpoints.
package ledger

import (
	"fmt"
	"net"
	"regexp"
	"time"
)

const (
	// RetentionIndefinite is the retention_days sentinel for events that must
	// never be disposed of automatically
	RetentionIndefinite = -1

	// RedactionMarker replaces sensitive detail values before hashing
	RedactionMarker = "[REDACTED]"
)

// sensitiveKeyPattern matches detail keys that must never be stored in clear
var sensitiveKeyPattern = regexp.MustCompile(`(?i)password|secret|token|key|credential|auth`)

// Category classifies a ledger event for filtering and retention
type Category string

const (
	// CategoryConsent covers consent grants and withdrawals
	CategoryConsent Category = "consent"
	// CategoryDataAccess covers reads of stored personal data
	CategoryDataAccess Category = "data_access"
	// CategoryDataExport covers exports of stored data
	CategoryDataExport Category = "data_export"
	// CategoryDataDeletion covers deletions of stored data
	CategoryDataDeletion Category = "data_deletion"
	// CategorySecurityIncident covers detected security incidents
	CategorySecurityIncident Category = "security_incident"
	// CategoryPolicyChange covers changes to policies and configuration
	CategoryPolicyChange Category = "policy_change"
	// CategoryAccessControl covers authentication and authorization decisions
	CategoryAccessControl Category = "access_control"
	// CategoryRetention covers retention engine executions
	CategoryRetention Category = "retention"
	// CategoryBreach covers confirmed data breaches
	CategoryBreach Category = "breach"
	// CategoryDataProcessing covers general processing activity
	CategoryDataProcessing Category = "data_processing"
)

// categories is the set of valid event categories
var categories = map[Category]bool{
	CategoryConsent:          true,
	CategoryDataAccess:       true,
	CategoryDataExport:       true,
	CategoryDataDeletion:     true,
	CategorySecurityIncident: true,
	CategoryPolicyChange:     true,
	CategoryAccessControl:    true,
	CategoryRetention:        true,
	CategoryBreach:           true,
	CategoryDataProcessing:   true,
}

// ParseCategory validates a category string
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !categories[c] {
		return "", fmt.Errorf("unknown event category: %q", s)
	}
	return c, nil
}

// Outcome is the result of the recorded action
type Outcome string

const (
	// OutcomeSuccess indicates the action completed
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure indicates the action failed
	OutcomeFailure Outcome = "failure"
	// OutcomePending indicates the action is still in progress
	OutcomePending Outcome = "pending"
)

// outcomes is the set of valid event outcomes
var outcomes = map[Outcome]bool{
	OutcomeSuccess: true,
	OutcomeFailure: true,
	OutcomePending: true,
}

// ParseOutcome validates an outcome string
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if !outcomes[o] {
		return "", fmt.Errorf("unknown event outcome: %q", s)
	}
	return o, nil
}

// ActorType identifies the kind of principal behind an event
type ActorType string

const (
	// ActorUser is an end user
	ActorUser ActorType = "user"
	// ActorSystem is an automated component
	ActorSystem ActorType = "system"
	// ActorAdmin is an administrative operator
	ActorAdmin ActorType = "admin"
)

// actorTypes is the set of valid actor types
var actorTypes = map[ActorType]bool{
	ActorUser:   true,
	ActorSystem: true,
	ActorAdmin:  true,
}

// ParseActorType validates an actor type string
func ParseActorType(s string) (ActorType, error) {
	t := ActorType(s)
	if !actorTypes[t] {
		return "", fmt.Errorf("unknown actor type: %q", s)
	}
	return t, nil
}

// Actor identifies who performed the recorded action. The IP, when present,
// is masked before storage; masking is irreversible.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id,omitempty"`
	IP   string    `json:"ip,omitempty"`
}

// Resource describes the object acted upon
type Resource struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// Event is one immutable record in the hash chain. Events are created by
// Ledger.Append and never mutated afterwards.
type Event struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Category      Category       `json:"category"`
	EventType     string         `json:"event_type"`
	Actor         Actor          `json:"actor"`
	Resource      *Resource      `json:"resource,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Outcome       Outcome        `json:"outcome"`
	RetentionDays int            `json:"retention_days"`
	Hash          string         `json:"hash"`
	PreviousHash  string         `json:"previous_hash"`
}

// maskIP zeroes the last IPv4 octet or the last IPv6 group. Strings that do
// not parse as an IP are returned unchanged.
func maskIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	if v4 := parsed.To4(); v4 != nil {
		masked := make(net.IP, len(v4))
		copy(masked, v4)
		masked[3] = 0
		return masked.String()
	}
	masked := make(net.IP, len(parsed))
	copy(masked, parsed)
	masked[14] = 0
	masked[15] = 0
	return masked.String()
}

// redactDetails returns a copy of details with sensitive keys and over-long
// string values replaced by RedactionMarker. Applied before hashing, so the
// redaction is part of the chained record. Redacting an already redacted
// value is a no-op.
func redactDetails(details map[string]any, maxValueLen int) map[string]any {
	if details == nil {
		return nil
	}
	redacted := make(map[string]any, len(details))
	for k, v := range details {
		if sensitiveKeyPattern.MatchString(k) {
			redacted[k] = RedactionMarker
			continue
		}
		redacted[k] = redactValue(v, maxValueLen)
	}
	return redacted
}

// redactValue applies the string-length and recursion rules to one detail
// value. Maps and slices are copied, never mutated in place.
func redactValue(v any, maxValueLen int) any {
	switch value := v.(type) {
	case string:
		if maxValueLen > 0 && len(value) > maxValueLen {
			return RedactionMarker
		}
		return value
	case map[string]any:
		return redactDetails(value, maxValueLen)
	case []any:
		redacted := make([]any, len(value))
		for i, elem := range value {
			redacted[i] = redactValue(elem, maxValueLen)
		}
		return redacted
	default:
		return v
	}
}
