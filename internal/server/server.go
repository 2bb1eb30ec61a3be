/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server exposes the guard over HTTP: raw SQL goes through the
// validator, questions go through the nl2sql engine, and neither reaches the
// database without an accepting verdict.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/executor"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/nl2sql"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/validator"
)

// SchemaSource produces a fresh schema snapshot. *schema.Builder satisfies
// it; tests substitute a fixed descriptor.
type SchemaSource interface {
	Build(ctx context.Context) (schema.Descriptor, error)
}

// QueryAnswerer runs the question-to-result pipeline. Nil disables /v1/query/nl.
type QueryAnswerer interface {
	Answer(ctx context.Context, question string, descriptor schema.Descriptor) (*nl2sql.Outcome, error)
}

// Dependencies holds everything the handler needs. All fields except Engine
// are required.
type Dependencies struct {
	Logger    *zap.Logger
	Validator *validator.Validator
	Executor  *executor.Executor
	Schema    SchemaSource
	Engine    QueryAnswerer
}

type sqlRequest struct {
	SQL string `json:"sql"`
}

type nlRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	SQL     string           `json:"sql"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// NewHandler builds the HTTP routing table.
func NewHandler(deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})
	mux.HandleFunc("POST /v1/query/sql", func(w http.ResponseWriter, r *http.Request) {
		handleQuerySQL(deps, w, r)
	})
	mux.HandleFunc("POST /v1/query/nl", func(w http.ResponseWriter, r *http.Request) {
		handleQueryNL(deps, w, r)
	})

	return withRequestLogging(deps.Logger, mux)
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	descriptor, err := deps.Schema.Build(r.Context())
	if err != nil {
		deps.Logger.Error("schema introspection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SCHEMA_UNAVAILABLE", "failed to read database schema")
		return
	}

	tables := make(map[string][]string, len(descriptor))
	for _, table := range descriptor.Tables() {
		columns, _ := descriptor.Columns(table)
		tables[table] = columns
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func handleQuerySQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SQL == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "request body must be JSON with a non-empty 'sql' field")
		return
	}

	descriptor, err := deps.Schema.Build(r.Context())
	if err != nil {
		deps.Logger.Error("schema introspection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SCHEMA_UNAVAILABLE", "failed to read database schema")
		return
	}

	verdict := deps.Validator.Validate(req.SQL, descriptor)
	if !verdict.Accepted() {
		validationRejectionsTotal.WithLabelValues(string(verdict.Kind)).Inc()
		deps.Logger.Info("statement rejected",
			zap.String("kind", string(verdict.Kind)),
			zap.String("detail", verdict.Detail))
		writeError(w, http.StatusForbidden, "REJECTED", verdict.Message)
		return
	}

	result, err := deps.Executor.Execute(r.Context(), req.SQL)
	if err != nil {
		deps.Logger.Error("query execution failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "EXECUTION_FAILED", "query execution failed")
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		SQL:     deps.Validator.Normalize(req.SQL),
		Columns: result.Columns,
		Rows:    result.Rows,
	})
}

func handleQueryNL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Engine == nil {
		writeError(w, http.StatusNotImplemented, "NL_DISABLED", "natural language querying is not configured")
		return
	}

	var req nlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "request body must be JSON with a non-empty 'question' field")
		return
	}

	descriptor, err := deps.Schema.Build(r.Context())
	if err != nil {
		deps.Logger.Error("schema introspection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SCHEMA_UNAVAILABLE", "failed to read database schema")
		return
	}

	outcome, err := deps.Engine.Answer(r.Context(), req.Question, descriptor)
	if err != nil {
		var rejected *nl2sql.RejectedError
		if errors.As(err, &rejected) {
			validationRejectionsTotal.WithLabelValues(string(rejected.Verdict.Kind)).Inc()
			deps.Logger.Info("generated statement rejected",
				zap.String("kind", string(rejected.Verdict.Kind)),
				zap.String("detail", rejected.Verdict.Detail))
			writeError(w, http.StatusForbidden, "REJECTED", rejected.Verdict.Message)
			return
		}
		deps.Logger.Error("question answering failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "NL_QUERY_FAILED", "failed to answer the question")
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		SQL:     outcome.SQL,
		Columns: outcome.Result.Columns,
		Rows:    outcome.Result.Rows,
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withRequestLogging(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		elapsed := time.Since(start)

		status := strconv.Itoa(recorder.status)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, r.URL.Path, status).Observe(elapsed.Seconds())

		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", elapsed))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits a stable error shape. Messages are written for API
// consumers; internal error details stay in the logs.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
	})
}
