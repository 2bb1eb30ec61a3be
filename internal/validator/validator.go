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

// Package validator is the safety gate between untrusted candidate SQL and a
// live database connection. It admits only single, side-effect-free,
// schema-conformant SELECT statements and rejects everything else.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/config"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/schema"
)

// Kind classifies why a candidate query was rejected.
type Kind string

const (
	KindNotReadOnly      Kind = "not_read_only"
	KindForbiddenKeyword Kind = "forbidden_keyword"
	KindUnknownTable     Kind = "unknown_table"
	KindUnknownColumn    Kind = "unknown_column"
)

// Verdict is the discriminated result of a validation. A rejected verdict
// carries the rejection kind, the offending keyword or identifier, and a
// human-readable message. Verdicts are returned, never raised; no error
// crosses the validator's boundary.
type Verdict struct {
	OK      bool
	Kind    Kind
	Detail  string
	Message string
}

// Accepted reports whether the candidate passed both validation phases.
func (v Verdict) Accepted() bool {
	return v.OK
}

func accept() Verdict {
	return Verdict{OK: true}
}

func reject(kind Kind, detail, message string) Verdict {
	return Verdict{Kind: kind, Detail: detail, Message: message}
}

// ForbiddenKeywords lists SQL keywords capable of mutating data or schema, or
// altering session/connection state. Matching is case-insensitive on whole
// tokens only, so identifiers that merely contain a keyword (PRODUCTUPDATED)
// do not trigger a rejection.
var ForbiddenKeywords = []string{
	"INSERT",
	"UPDATE",
	"DELETE",
	"DROP",
	"ALTER",
	"TRUNCATE",
	"ATTACH",
	"DETACH",
	"CREATE",
	"REPLACE",
	"PRAGMA",
}

var forbiddenPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(ForbiddenKeywords, "|") + `)\b`)

// Validator statically checks candidate SQL against a fixed safety policy and
// a schema descriptor. It is pure and safe for concurrent use.
type Validator struct {
	analyzer Analyzer
}

// New creates a Validator with the analyzer strategy named in cfg.
func New(cfg config.ValidatorConfig) (*Validator, error) {
	switch cfg.Strategy {
	case config.StrategyStructural, "":
		return &Validator{analyzer: StructuralAnalyzer{}}, nil
	case config.StrategyLexical:
		return &Validator{analyzer: LexicalAnalyzer{}}, nil
	default:
		return nil, fmt.Errorf("unsupported validation strategy: %s", cfg.Strategy)
	}
}

// NewWithAnalyzer creates a Validator with an explicit analyzer.
func NewWithAnalyzer(analyzer Analyzer) *Validator {
	return &Validator{analyzer: analyzer}
}

// Validate decides whether candidate is a single, side-effect-free,
// schema-conformant SELECT. It rejects by default: empty input, parse
// failures, and unrecognized constructs are all rejections, never silent
// acceptance. The descriptor is read-only; Validate never touches the
// network or the database.
func (v *Validator) Validate(candidate string, descriptor schema.Descriptor) Verdict {
	// Phase A: structural/lexical safety.
	if !v.analyzer.IsSingleSelect(candidate) {
		return reject(KindNotReadOnly, "", "only a single SELECT statement is allowed")
	}
	if match := forbiddenPattern.FindString(candidate); match != "" {
		keyword := strings.ToUpper(match)
		return reject(KindForbiddenKeyword, keyword,
			fmt.Sprintf("query contains forbidden keyword: %s", keyword))
	}

	// Phase B: schema conformance. Extraction is best effort; when the
	// analyzer cannot determine structure it returns an empty set and the
	// phase passes vacuously. That is a documented limitation, not a bug fix
	// waiting to happen.
	identifiers := v.analyzer.ExtractIdentifiers(candidate)
	for _, table := range identifiers.Tables {
		if !descriptor.HasTable(table) {
			return reject(KindUnknownTable, table,
				fmt.Sprintf("query references unknown table: %s", table))
		}
	}
	if len(identifiers.Tables) > 0 && len(identifiers.Columns) > 0 {
		for _, column := range identifiers.Columns {
			known := false
			for _, table := range identifiers.Tables {
				if descriptor.HasColumn(table, column) {
					known = true
					break
				}
			}
			if !known {
				return reject(KindUnknownColumn, column,
					fmt.Sprintf("query references unknown column: %s", column))
			}
		}
	}

	return accept()
}

// Normalize cleans candidate SQL for display: surrounding whitespace is
// trimmed, a single trailing statement terminator is stripped, and keyword
// casing is canonicalized when the candidate parses. Normalization is
// cosmetic only and must never be used as a security control; Validate
// always sees the raw candidate.
func (v *Validator) Normalize(candidate string) string {
	return v.analyzer.Normalize(strings.TrimSuffix(strings.TrimSpace(candidate), ";"))
}
