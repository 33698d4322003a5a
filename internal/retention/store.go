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

package retention

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPolicyNotFound is returned when a policy id is unknown
	ErrPolicyNotFound = errors.New("policy not found")
	// ErrBuiltinPolicy is returned when a mutation targets a built-in policy
	ErrBuiltinPolicy = errors.New("built-in policies cannot be modified")
)

const (
	// policyFileVersion is the on-disk schema version of the policy store
	policyFileVersion = 1
	// policyFileMode restricts the policy file to its owner
	policyFileMode = 0o600
	// policyDirMode restricts containing directories to their owner
	policyDirMode = 0o700
)

// policyFile is the persisted document. Only user-added policies are
// persisted; built-ins are merged in at load time.
type policyFile struct {
	Version     int       `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
	Policies    []*Policy `json:"policies"`
}

// Store is the durable set of retention policies: the immutable built-ins
// plus a persisted user list. Mutations operate on the user list only and
// persist immediately.
type Store struct {
	path string

	mu   sync.RWMutex
	user map[string]*Policy
}

// NewStore loads the user policy list from path, creating an empty store if
// the file does not exist yet.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path: path,
		user: make(map[string]*Policy),
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read policy store: %w", err)
	}

	var file policyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy store: %w", err)
	}
	for _, p := range file.Policies {
		// Built-in ids in a hand-edited file lose to the built-ins
		if IsBuiltin(p.ID) {
			continue
		}
		s.user[p.ID] = p
	}
	return s, nil
}

// List returns built-ins followed by user policies, each group sorted by id
func (s *Store) List() []*Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policies := BuiltinPolicies()
	user := make([]*Policy, 0, len(s.user))
	for _, p := range s.user {
		clone := *p
		user = append(user, &clone)
	}
	sort.Slice(user, func(i, j int) bool { return user[i].ID < user[j].ID })
	return append(policies, user...)
}

// Get returns the policy with the given id, built-in or user-added
func (s *Store) Get(id string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range BuiltinPolicies() {
		if p.ID == id {
			return p, nil
		}
	}
	if p, ok := s.user[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, ErrPolicyNotFound
}

// Add validates and persists a new user policy, generating its id. Reserved
// built-in ids are rejected.
func (s *Store) Add(policy *Policy) (*Policy, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.ID != "" && IsBuiltin(policy.ID) {
		return nil, ErrBuiltinPolicy
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *policy
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if _, exists := s.user[clone.ID]; exists {
		return nil, fmt.Errorf("policy %s already exists", clone.ID)
	}

	s.user[clone.ID] = &clone
	if err := s.persist(); err != nil {
		delete(s.user, clone.ID)
		return nil, err
	}

	result := clone
	return &result, nil
}

// Update applies non-zero fields of partial to a user policy and persists.
// Built-ins cannot be updated.
func (s *Store) Update(id string, partial *Policy) (*Policy, error) {
	if IsBuiltin(id) {
		return nil, ErrBuiltinPolicy
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.user[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}

	updated := *existing
	if partial.Name != "" {
		updated.Name = partial.Name
	}
	if len(partial.DataTypes) > 0 {
		updated.DataTypes = partial.DataTypes
	}
	if partial.Classifications != nil {
		updated.Classifications = partial.Classifications
	}
	if partial.RetentionDays > 0 {
		updated.RetentionDays = partial.RetentionDays
	}
	if partial.Action != "" {
		updated.Action = partial.Action
	}
	if partial.Schedule != "" {
		updated.Schedule = partial.Schedule
	}
	if partial.RegulatoryRequirement != "" {
		updated.RegulatoryRequirement = partial.RegulatoryRequirement
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	s.user[id] = &updated
	if err := s.persist(); err != nil {
		s.user[id] = existing
		return nil, err
	}

	result := updated
	return &result, nil
}

// Remove deletes a user policy and persists. Returns false for built-in or
// unknown ids; these are expected management-API conditions, not errors.
func (s *Store) Remove(id string) bool {
	if IsBuiltin(id) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.user[id]
	if !ok {
		return false
	}

	delete(s.user, id)
	if err := s.persist(); err != nil {
		s.user[id] = existing
		return false
	}
	return true
}

// persist writes the user policy list. Callers hold s.mu.
func (s *Store) persist() error {
	policies := make([]*Policy, 0, len(s.user))
	for _, p := range s.user {
		policies = append(policies, p)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].ID < policies[j].ID })

	file := policyFile{
		Version:     policyFileVersion,
		LastUpdated: time.Now().UTC(),
		Policies:    policies,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal policy store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), policyDirMode); err != nil {
		return fmt.Errorf("failed to create policy store directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, policyFileMode); err != nil {
		return fmt.Errorf("failed to write policy store: %w", err)
	}
	return nil
}
