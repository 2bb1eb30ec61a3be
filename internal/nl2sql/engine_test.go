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
package nl2sql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/executor"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/validator"
)

// fakeLLM returns scripted responses in order and records the prompts it saw.
// errs, when set, fails the matching call instead.
type fakeLLM struct {
	responses []string
	errs      []error
	err       error
	prompts   []string
}

func (f *fakeLLM) GenerateSQL(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	idx := len(f.prompts) - 1
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func (f *fakeLLM) IsAPIKeyValid(ctx context.Context) error { return nil }
func (f *fakeLLM) Close() error                            { return nil }

func testDescriptor() schema.Descriptor {
	return schema.Descriptor{
		"products": {
			"id":   {DataType: "integer"},
			"name": {DataType: "text"},
		},
	}
}

func newTestEngine(t *testing.T, llm *fakeLLM) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	v := validator.NewWithAnalyzer(validator.StructuralAnalyzer{})
	return NewEngine(llm, v, executor.New(db)), mock
}

func TestCleanSQLResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"bare sql", "SELECT 1", "SELECT 1"},
		{"trailing semicolon", "SELECT 1;", "SELECT 1"},
		{"fenced", "```sql\nSELECT id FROM products\n```", "SELECT id FROM products"},
		{"fenced uppercase marker", "```SQL\nSELECT 1\n```", "SELECT 1"},
		{"surrounding whitespace", "\n  SELECT 1 ;\n", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanSQLResponse(tt.response))
		})
	}
}

func TestAnswerHappyPath(t *testing.T) {
	llm := &fakeLLM{responses: []string{"```sql\nSELECT id, name FROM products;\n```"}}
	engine, mock := newTestEngine(t, llm)

	mock.ExpectQuery("SELECT id, name FROM products").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "widget"))

	outcome, err := engine.Answer(context.Background(), "show all products", testDescriptor())
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name FROM products", outcome.SQL)
	require.Len(t, outcome.Result.Rows, 1)
	assert.Equal(t, "widget", outcome.Result.Rows[0]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerRejectsUnsafeSQLWithoutRePrompt(t *testing.T) {
	llm := &fakeLLM{responses: []string{"DROP TABLE products"}}
	engine, _ := newTestEngine(t, llm)

	_, err := engine.Answer(context.Background(), "delete everything", testDescriptor())
	require.Error(t, err)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, validator.KindNotReadOnly, rejected.Verdict.Kind)
	assert.Len(t, llm.prompts, 1, "unsafe rejections must not trigger a re-prompt")
}

func TestAnswerRePromptsOnceOnSchemaRejection(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"SELECT id FROM prodcuts",
		"SELECT id FROM products",
	}}
	engine, mock := newTestEngine(t, llm)

	mock.ExpectQuery("SELECT id FROM products").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	outcome, err := engine.Answer(context.Background(), "product ids", testDescriptor())
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM products", outcome.SQL)
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "unknown table: prodcuts")
	assert.Contains(t, llm.prompts[1], "SELECT id FROM prodcuts")
}

func TestAnswerSecondRejectionIsFinal(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"SELECT id FROM prodcuts",
		"SELECT id FROM inventory",
	}}
	engine, _ := newTestEngine(t, llm)

	_, err := engine.Answer(context.Background(), "product ids", testDescriptor())
	require.Error(t, err)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, validator.KindUnknownTable, rejected.Verdict.Kind)
	assert.Equal(t, "inventory", rejected.Verdict.Detail)
	assert.Len(t, llm.prompts, 2, "only one corrective re-prompt is allowed")
}

// Propose must never reach the database; only Answer executes. The sqlmock
// pool is configured with zero expectations, so any query would fail the test.
func TestProposeDoesNotExecute(t *testing.T) {
	llm := &fakeLLM{responses: []string{"SELECT id FROM products"}}
	engine, mock := newTestEngine(t, llm)

	sql, err := engine.Propose(context.Background(), "product ids", testDescriptor())
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM products", sql)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// When the corrective re-prompt itself fails, the caller gets the original
// rejection, not the model failure, and no execution happens.
func TestProposeRetryFailureKeepsOriginalRejection(t *testing.T) {
	llm := &fakeLLM{
		responses: []string{"SELECT id FROM prodcuts", ""},
		errs:      []error{nil, errors.New("model unavailable")},
	}
	engine, _ := newTestEngine(t, llm)

	_, err := engine.Propose(context.Background(), "product ids", testDescriptor())
	require.Error(t, err)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, validator.KindUnknownTable, rejected.Verdict.Kind)
	assert.Equal(t, "SELECT id FROM prodcuts", rejected.SQL)
	assert.Len(t, llm.prompts, 2)
}

func TestAnswerPropagatesModelFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model unavailable")}
	engine, _ := newTestEngine(t, llm)

	_, err := engine.Answer(context.Background(), "anything", testDescriptor())
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to generate SQL")
}

func TestGenerateSQLEmptyQuestion(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeLLM{responses: []string{"SELECT 1"}})

	_, err := engine.GenerateSQL(context.Background(), "   ", testDescriptor())
	require.Error(t, err)
}

func TestGenerateSQLPromptContainsSchemaAndRules(t *testing.T) {
	llm := &fakeLLM{responses: []string{"SELECT 1"}}
	engine, _ := newTestEngine(t, llm)

	_, err := engine.GenerateSQL(context.Background(), "how many products are there?", testDescriptor())
	require.NoError(t, err)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "CREATE TABLE products")
	assert.Contains(t, prompt, "Only use SELECT queries")
	assert.Contains(t, prompt, "how many products are there?")
	assert.True(t, strings.HasSuffix(prompt, "SQL:"))
	assert.NotContains(t, prompt, "Additional context about the data")
}

func TestGenerateSQLPromptIncludesGrounding(t *testing.T) {
	llm := &fakeLLM{responses: []string{"SELECT 1"}}
	engine, _ := newTestEngine(t, llm)
	engine.SetGrounding("-- Context from file: glossary.txt --\nA widget is any product under 1kg.")

	_, err := engine.GenerateSQL(context.Background(), "how many widgets?", testDescriptor())
	require.NoError(t, err)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Additional context about the data")
	assert.Contains(t, llm.prompts[0], "A widget is any product under 1kg.")
}
