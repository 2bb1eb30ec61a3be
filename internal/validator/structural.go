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
	"sort"

	"github.com/xwb1989/sqlparser"
)

// StructuralAnalyzer is the full-parse strategy. It parses the candidate into
// an AST, accepts only SELECT statements (including UNIONs of SELECTs, whose
// leading keyword is still SELECT), and walks the tree to collect FROM/JOIN
// tables and qualifier-prefixed columns.
type StructuralAnalyzer struct{}

var _ Analyzer = StructuralAnalyzer{}

func (StructuralAnalyzer) IsSingleSelect(candidate string) bool {
	stmt, err := sqlparser.Parse(candidate)
	if err != nil {
		// Parse failure includes empty input, comments-only input, and
		// multi-statement batches. All are rejections.
		return false
	}
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return true
	default:
		return false
	}
}

func (StructuralAnalyzer) ExtractIdentifiers(candidate string) IdentifierSet {
	stmt, err := sqlparser.Parse(candidate)
	if err != nil {
		// Unparseable structure: nothing to check. Schema conformance is
		// vacuously satisfied by design; see the validator package notes.
		return IdentifierSet{}
	}

	tables := make(map[string]struct{})
	columns := make(map[string]struct{})

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case *sqlparser.AliasedTableExpr:
			if tableName, ok := n.Expr.(sqlparser.TableName); ok {
				if name := tableName.Name.String(); name != "" {
					tables[name] = struct{}{}
				}
			}
		case *sqlparser.ColName:
			// Only qualifier-prefixed columns are checked against the
			// schema; bare columns, expressions, and aliases are not.
			if !n.Qualifier.IsEmpty() {
				columns[n.Name.String()] = struct{}{}
			}
		}
		return true, nil
	}, stmt)

	return IdentifierSet{
		Tables:  sortedKeys(tables),
		Columns: sortedKeys(columns),
	}
}

func (StructuralAnalyzer) Normalize(candidate string) string {
	stmt, err := sqlparser.Parse(candidate)
	if err != nil {
		return LexicalAnalyzer{}.Normalize(candidate)
	}
	return sqlparser.String(stmt)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
