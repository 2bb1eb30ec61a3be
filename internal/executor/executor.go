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

// Package executor runs validated SELECT statements and materializes their
// results. It performs no safety checks of its own; callers must gate every
// statement through the validator first.
package executor

import (
	"context"
	"database/sql"
	"fmt"
)

// Result holds a fully materialized result set. Columns preserves the order
// the database returned; Rows maps column name to a driver-agnostic value.
// An empty Rows slice is a successful result, not an error.
type Result struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// ExecutionError wraps a failure from the database during query execution.
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Executor runs statements against a connection pool. It never retries: a
// failed statement surfaces immediately, and the caller decides what to do.
type Executor struct {
	pool *sql.DB
}

func New(pool *sql.DB) *Executor {
	return &Executor{pool: pool}
}

// Execute runs query and materializes every row before returning, so the
// connection is always released by the time the caller sees the result.
// []byte cell values are copied into strings; the driver may reuse the
// backing array between scans.
func (e *Executor) Execute(ctx context.Context, query string) (*Result, error) {
	rows, err := e.pool.QueryContext(ctx, query)
	if err != nil {
		return nil, &ExecutionError{Query: query, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{Query: query, Err: err}
	}

	result := &Result{
		Columns: columns,
		Rows:    []map[string]any{},
	}

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, &ExecutionError{Query: query, Err: err}
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Query: query, Err: err}
	}

	return result, nil
}
