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
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/complyd/complyd/internal/metrics"
)

const (
	// httpStatusClientError is the minimum HTTP status code for client errors
	httpStatusClientError = 400
	// httpStatusServerError is the minimum HTTP status code for server errors
	httpStatusServerError = 500
)

// MetricsMiddleware records metrics for HTTP requests
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		operation := extractOperation(r)
		status := strconv.Itoa(ww.statusCode)
		statusLabel := "success"
		if ww.statusCode >= httpStatusClientError {
			statusLabel = "error"
		}

		metrics.RecordOperation(operation, statusLabel, duration)
		metrics.OperationTotal.WithLabelValues(operation, status).Inc()

		if ww.statusCode >= httpStatusClientError {
			errorType := "client_error"
			if ww.statusCode >= httpStatusServerError {
				errorType = "server_error"
			}
			metrics.RecordError(operation, errorType)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// extractOperation extracts an operation name from the request path
func extractOperation(r *http.Request) string {
	path := r.URL.Path
	if path == "/health" {
		return "health_check"
	}
	if path == "/metrics" {
		return "metrics"
	}

	path = strings.TrimPrefix(path, "/v1")
	parts := strings.FieldsFunc(path, func(c rune) bool { return c == '/' })
	if len(parts) == 0 {
		return r.Method + "_" + path
	}

	last := parts[len(parts)-1]
	// Trailing path segments that are ids add nothing; name the operation
	// after the collection they act on
	if len(parts) > 1 && (parts[len(parts)-2] == "policies" || parts[len(parts)-2] == "run") {
		last = parts[len(parts)-2]
	}
	return r.Method + "_" + last
}
