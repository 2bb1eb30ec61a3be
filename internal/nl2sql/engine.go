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

// Package nl2sql turns natural-language questions into validated, executed
// SQL. Every generated candidate passes through the validator before it can
// touch the database; the model is never trusted.
package nl2sql

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/executor"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/genai"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/validator"
)

// RejectedError reports that a generated candidate failed validation, after
// any correction attempt. The SQL is included for display; it was never
// executed.
type RejectedError struct {
	SQL     string
	Verdict validator.Verdict
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("generated SQL rejected: %s", e.Verdict.Message)
}

// Engine converts questions to SQL, validates the result, and executes it.
type Engine struct {
	llm       genai.LLMClient
	validator *validator.Validator
	executor  *executor.Executor
	retry     genai.RetryOptions
	grounding string
}

// Outcome carries the SQL that was finally executed alongside its result.
type Outcome struct {
	SQL    string
	Result *executor.Result
}

func NewEngine(llm genai.LLMClient, v *validator.Validator, exec *executor.Executor) *Engine {
	return &Engine{
		llm:       llm,
		validator: v,
		executor:  exec,
		retry:     genai.DefaultRetryOptions,
	}
}

// SetGrounding supplies extra domain context (glossaries, column notes) that
// is embedded in every generation prompt. Grounding text never reaches the
// validator or the database.
func (e *Engine) SetGrounding(context string) {
	e.grounding = context
}

var codeFencePattern = regexp.MustCompile("(?im)^```sql")

// cleanSQLResponse strips markdown code fences and a trailing statement
// terminator from raw model output.
func cleanSQLResponse(response string) string {
	cleaned := strings.TrimSpace(response)
	cleaned = codeFencePattern.ReplaceAllString(cleaned, "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSuffix(cleaned, ";")
	return strings.TrimSpace(cleaned)
}

// GenerateSQL asks the model for a candidate statement. The returned SQL is
// cleaned but NOT validated.
func (e *Engine) GenerateSQL(ctx context.Context, question string, descriptor schema.Descriptor) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", &genai.ErrInvalidInput{Msg: "question is empty"}
	}

	prompt := buildPrompt(question, descriptor.Describe(), e.grounding)
	response, err := genai.WithRetry(ctx, e.retry, func(ctx context.Context) (string, error) {
		return e.llm.GenerateSQL(ctx, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate SQL: %w", err)
	}
	return cleanSQLResponse(response), nil
}

// Propose generates a candidate and runs it through the validator without
// executing it. When the first candidate is rejected for referencing unknown
// tables or columns, the model gets one corrective re-prompt carrying the
// rejection message; any second rejection is final. Rejections for unsafe
// statements are never re-prompted.
func (e *Engine) Propose(ctx context.Context, question string, descriptor schema.Descriptor) (string, error) {
	candidate, err := e.GenerateSQL(ctx, question, descriptor)
	if err != nil {
		return "", err
	}

	verdict := e.validator.Validate(candidate, descriptor)
	if !verdict.Accepted() && isSchemaRejection(verdict.Kind) {
		log.Printf("INFO: Candidate rejected (%s), re-prompting once: %s", verdict.Kind, verdict.Message)
		corrected, retryErr := e.regenerate(ctx, question, descriptor, candidate, verdict.Message)
		if retryErr != nil {
			log.Printf("WARN: Corrective re-prompt failed: %v. Reporting the original rejection.", retryErr)
		} else {
			candidate = corrected
			verdict = e.validator.Validate(candidate, descriptor)
		}
	}
	if !verdict.Accepted() {
		return "", &RejectedError{SQL: candidate, Verdict: verdict}
	}
	return candidate, nil
}

// Answer runs the full question-to-result pipeline: Propose, then execute.
func (e *Engine) Answer(ctx context.Context, question string, descriptor schema.Descriptor) (*Outcome, error) {
	candidate, err := e.Propose(ctx, question, descriptor)
	if err != nil {
		return nil, err
	}

	result, err := e.executor.Execute(ctx, candidate)
	if err != nil {
		return nil, err
	}
	return &Outcome{SQL: candidate, Result: result}, nil
}

func (e *Engine) regenerate(ctx context.Context, question string, descriptor schema.Descriptor, rejectedSQL, rejectionMessage string) (string, error) {
	prompt := buildRetryPrompt(question, descriptor.Describe(), e.grounding, rejectedSQL, rejectionMessage)
	response, err := genai.WithRetry(ctx, e.retry, func(ctx context.Context) (string, error) {
		return e.llm.GenerateSQL(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return cleanSQLResponse(response), nil
}

func isSchemaRejection(kind validator.Kind) bool {
	return kind == validator.KindUnknownTable || kind == validator.KindUnknownColumn
}
