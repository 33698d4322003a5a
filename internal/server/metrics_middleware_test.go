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
	"net/http/httptest"
	"testing"
)

func TestExtractOperation(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{"GET", "/health", "health_check"},
		{"GET", "/metrics", "metrics"},
		{"POST", "/v1/events", "POST_events"},
		{"GET", "/v1/events", "GET_events"},
		{"GET", "/v1/ledger/verify", "GET_verify"},
		{"GET", "/v1/retention/policies", "GET_policies"},
		{"PUT", "/v1/retention/policies/4f1c2d", "PUT_policies"},
		{"DELETE", "/v1/retention/policies/builtin-exports", "DELETE_policies"},
		{"POST", "/v1/retention/run", "POST_run"},
		{"POST", "/v1/retention/run/4f1c2d", "POST_run"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			if got := extractOperation(r); got != tt.want {
				t.Errorf("extractOperation(%s %s) = %s, expected %s", tt.method, tt.path, got, tt.want)
			}
		})
	}
}
