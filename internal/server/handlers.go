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

// Package server provides the HTTP API over the ledger and retention engine.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/complyd/complyd/internal/ledger"
	"github.com/complyd/complyd/internal/retention"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	logger   *zap.Logger
	ledger   *ledger.Ledger
	signer   *ledger.Signer
	policies *retention.Store
	engine   *retention.Engine
}

// NewHandlers creates new HTTP handlers
func NewHandlers(
	logger *zap.Logger,
	auditLedger *ledger.Ledger,
	signer *ledger.Signer,
	policies *retention.Store,
	engine *retention.Engine,
) *Handlers {
	return &Handlers{
		logger:   logger,
		ledger:   auditLedger,
		signer:   signer,
		policies: policies,
		engine:   engine,
	}
}

// AppendEvent handles appending one event to the ledger
func (h *Handlers) AppendEvent(w http.ResponseWriter, r *http.Request) {
	var req AppendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	category, err := ledger.ParseCategory(req.Category)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid category", err)
		return
	}
	if req.EventType == "" {
		h.respondError(w, http.StatusBadRequest, "event_type is required", nil)
		return
	}
	if req.Actor.Type == "" {
		req.Actor.Type = ledger.ActorSystem
	}
	if _, err := ledger.ParseActorType(string(req.Actor.Type)); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid actor type", err)
		return
	}
	outcome := ledger.OutcomeSuccess
	if req.Outcome != "" {
		outcome, err = ledger.ParseOutcome(req.Outcome)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid outcome", err)
			return
		}
	}

	opts := []ledger.AppendOption{}
	if req.Resource != nil {
		opts = append(opts, ledger.WithResource(req.Resource.Type, req.Resource.ID))
	}
	if req.Details != nil {
		opts = append(opts, ledger.WithDetails(req.Details))
	}
	if req.RetentionDays != nil {
		opts = append(opts, ledger.WithRetentionDays(*req.RetentionDays))
	}

	event, err := h.ledger.Append(r.Context(), category, req.EventType, req.Actor, outcome, opts...)
	if err != nil {
		h.logger.Error("Failed to append event", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to append event", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, event)
}

// ReadEvents handles reading ledger events, most recent first
func (h *Handlers) ReadEvents(w http.ResponseWriter, r *http.Request) {
	filter := ledger.Filter{}

	if category := r.URL.Query().Get("category"); category != "" {
		parsed, err := ledger.ParseCategory(category)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid category", err)
			return
		}
		filter.Category = parsed
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid from timestamp", err)
			return
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid to timestamp", err)
			return
		}
		filter.To = t
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		filter.Limit = n
	}

	events, err := h.ledger.Read(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to read events", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to read events", err)
		return
	}

	h.respondJSON(w, http.StatusOK, ReadEventsResponse{Events: events, Count: len(events)})
}

// VerifyLedger handles on-demand chain integrity verification
func (h *Handlers) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.Verify(r.Context())
	if err != nil {
		h.logger.Error("Failed to verify ledger", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to verify ledger", err)
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}

// Checkpoint handles signing the current chain head
func (h *Handlers) Checkpoint(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.Verify(r.Context())
	if err != nil {
		h.logger.Error("Failed to verify ledger for checkpoint", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to verify ledger", err)
		return
	}

	// Sign the tip and count the same scan observed; reading the live tip
	// here could attest a head the count does not cover
	checkpoint, err := h.signer.Sign(report.TipHash, report.ValidEvents)
	if err != nil {
		h.logger.Error("Failed to sign checkpoint", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to sign checkpoint", err)
		return
	}

	h.respondJSON(w, http.StatusOK, CheckpointResponse{
		Checkpoint: checkpoint,
		PublicKey:  base64.StdEncoding.EncodeToString(h.signer.GetPublicKey()),
	})
}

// ListPolicies handles listing retention policies, built-ins included
func (h *Handlers) ListPolicies(w http.ResponseWriter, _ *http.Request) {
	policies := h.policies.List()
	h.respondJSON(w, http.StatusOK, ListPoliciesResponse{Policies: policies, Count: len(policies)})
}

// AddPolicy handles adding a user retention policy
func (h *Handlers) AddPolicy(w http.ResponseWriter, r *http.Request) {
	var policy retention.Policy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	added, err := h.policies.Add(&policy)
	if err != nil {
		if errors.Is(err, retention.ErrBuiltinPolicy) {
			h.respondError(w, http.StatusForbidden, "policy id is reserved", err)
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid policy", err)
		return
	}

	h.appendPolicyChange(r, "retention_policy.added", added.ID, added.Name)
	h.respondJSON(w, http.StatusCreated, added)
}

// UpdatePolicy handles updating a user retention policy
func (h *Handlers) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var partial retention.Policy
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	updated, err := h.policies.Update(id, &partial)
	if err != nil {
		switch {
		case errors.Is(err, retention.ErrBuiltinPolicy):
			h.respondError(w, http.StatusForbidden, "built-in policies cannot be updated", err)
		case errors.Is(err, retention.ErrPolicyNotFound):
			h.respondError(w, http.StatusNotFound, "policy not found", err)
		default:
			h.respondError(w, http.StatusBadRequest, "invalid policy", err)
		}
		return
	}

	h.appendPolicyChange(r, "retention_policy.updated", updated.ID, updated.Name)
	h.respondJSON(w, http.StatusOK, updated)
}

// RemovePolicy handles removing a user retention policy. Built-in and
// unknown ids report removed=false rather than an error.
func (h *Handlers) RemovePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	removed := h.policies.Remove(id)
	if removed {
		h.appendPolicyChange(r, "retention_policy.removed", id, "")
	}
	h.respondJSON(w, http.StatusOK, RemovePolicyResponse{Removed: removed})
}

// RunDuePolicies handles executing all due retention policies
func (h *Handlers) RunDuePolicies(w http.ResponseWriter, r *http.Request) {
	results := h.engine.RunDuePolicies(r.Context())
	h.respondJSON(w, http.StatusOK, RunResponse{Results: results})
}

// ForceRunPolicy handles executing one policy regardless of its schedule
func (h *Handlers) ForceRunPolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	results, err := h.engine.ForceRunPolicy(r.Context(), id)
	if err != nil {
		if errors.Is(err, retention.ErrPolicyNotFound) {
			h.respondError(w, http.StatusNotFound, "policy not found", err)
			return
		}
		h.logger.Error("Failed to run policy", zap.String("policy_id", id), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to run policy", err)
		return
	}

	h.respondJSON(w, http.StatusOK, RunResponse{Results: results})
}

// RetentionStatus handles the operator-facing retention status report
func (h *Handlers) RetentionStatus(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.engine.GetStatus())
}

// appendPolicyChange records a policy mutation in the ledger. Best effort:
// a logging failure must not fail the management operation itself.
func (h *Handlers) appendPolicyChange(r *http.Request, eventType, policyID, policyName string) {
	details := map[string]any{"policy_id": policyID}
	if policyName != "" {
		details["policy_name"] = policyName
	}

	_, err := h.ledger.Append(r.Context(),
		ledger.CategoryPolicyChange,
		eventType,
		ledger.Actor{Type: ledger.ActorAdmin, IP: clientIP(r)},
		ledger.OutcomeSuccess,
		ledger.WithResource("retention_policy", policyID),
		ledger.WithDetails(details),
	)
	if err != nil {
		h.logger.Error("Failed to record policy change", zap.Error(err))
	}
}

// clientIP returns the request IP without the port
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// respondJSON writes a JSON response
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError writes a JSON error response
func (h *Handlers) respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Message = err.Error()
	}
	h.respondJSON(w, status, resp)
}
