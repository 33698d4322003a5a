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
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

// failingServer always responds 500 and counts the requests it saw
func failingServer(t *testing.T) (*Client, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return client, &requests
}

func TestAppendEvent_NeverRetried(t *testing.T) {
	client, requests := failingServer(t)

	_, err := client.AppendEvent(context.Background(), AppendEventRequest{
		Category:  "data_access",
		EventType: "user.read",
	})
	require.Error(t, err)

	// A retried append could land twice; the failure must surface after
	// exactly one attempt
	assert.Equal(t, int64(1), requests.Load())
}

func TestAddPolicy_NeverRetried(t *testing.T) {
	client, requests := failingServer(t)

	_, err := client.AddPolicy(context.Background(), Policy{
		Name:          "Debug logs",
		DataTypes:     []string{"debug_logs"},
		RetentionDays: 14,
		Action:        "delete",
		Schedule:      "daily",
	})
	require.Error(t, err)

	// A create that persisted before a 500 would duplicate the policy under
	// a second generated id if the request were replayed
	assert.Equal(t, int64(1), requests.Load())
}
