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
package validator

import (
	"regexp"
	"strings"
)

// IdentifierSet holds the table names and qualified column names extracted
// from a candidate query. It exists only for the duration of one validation.
type IdentifierSet struct {
	Tables  []string
	Columns []string
}

// Analyzer is the strategy behind the leading-statement check and identifier
// extraction. Two implementations exist: StructuralAnalyzer backed by a full
// SQL parser, and LexicalAnalyzer which inspects tokens only. The strategy is
// chosen at configuration time, never discovered at runtime. Implementations
// must be pure and safe for concurrent use.
type Analyzer interface {
	// IsSingleSelect reports whether candidate reads as exactly one
	// statement whose leading keyword is SELECT.
	IsSingleSelect(candidate string) bool

	// ExtractIdentifiers returns the tables referenced in FROM/JOIN clauses
	// and the columns referenced with an explicit table or alias qualifier.
	// Extraction is best effort: an empty set means nothing could be
	// determined, not that the query is table-free.
	ExtractIdentifiers(candidate string) IdentifierSet

	// Normalize canonicalizes candidate for display purposes only.
	Normalize(candidate string) string
}

var leadingSelectPattern = regexp.MustCompile(`(?i)^\s*SELECT\b`)

// LexicalAnalyzer is the degraded strategy: it checks only that the candidate
// lexically starts with SELECT and extracts no identifiers, so schema
// conformance passes vacuously. It exists for deployments where the
// structural parser cannot be trusted with a dialect's syntax.
type LexicalAnalyzer struct{}

var _ Analyzer = LexicalAnalyzer{}

func (LexicalAnalyzer) IsSingleSelect(candidate string) bool {
	return leadingSelectPattern.MatchString(candidate)
}

func (LexicalAnalyzer) ExtractIdentifiers(candidate string) IdentifierSet {
	return IdentifierSet{}
}

func (LexicalAnalyzer) Normalize(candidate string) string {
	return strings.Join(strings.Fields(candidate), " ")
}
