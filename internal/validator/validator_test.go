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
	"testing"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/config"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/schema"
)

func testDescriptor() schema.Descriptor {
	return schema.Descriptor{
		"products": {
			"id":    {DataType: "integer"},
			"name":  {DataType: "text"},
			"price": {DataType: "numeric", Nullable: true},
		},
		"orders": {
			"id":         {DataType: "integer"},
			"product_id": {DataType: "integer"},
			"quantity":   {DataType: "integer"},
		},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		wantErr  bool
	}{
		{"structural", config.StrategyStructural, false},
		{"lexical", config.StrategyLexical, false},
		{"empty defaults to structural", "", false},
		{"unknown strategy", "heuristic", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New(config.ValidatorConfig{Strategy: tt.strategy})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && v == nil {
				t.Fatal("New() returned nil validator without error")
			}
		})
	}
}

func TestValidateAcceptsWellFormedSelects(t *testing.T) {
	descriptor := testDescriptor()
	queries := []string{
		"SELECT id, name FROM products",
		"select price from products where price > 10",
		"  SELECT p.name, o.quantity FROM products p JOIN orders o ON o.product_id = p.id",
		"SELECT count(*) FROM orders",
	}

	for _, analyzer := range []Analyzer{StructuralAnalyzer{}, LexicalAnalyzer{}} {
		v := NewWithAnalyzer(analyzer)
		for _, q := range queries {
			verdict := v.Validate(q, descriptor)
			if !verdict.Accepted() {
				t.Errorf("Validate(%q) with %T rejected: kind=%s message=%s",
					q, analyzer, verdict.Kind, verdict.Message)
			}
		}
	}
}

func TestValidateRejectsNonSelect(t *testing.T) {
	descriptor := testDescriptor()
	tests := []struct {
		name      string
		candidate string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t"},
		{"insert", "INSERT INTO products (name) VALUES ('x')"},
		{"bare identifier", "products"},
		{"with clause", "WITH t AS (SELECT 1) SELECT * FROM t WHERE 0 = 1 OR 1 = DELETE"},
	}

	for _, analyzer := range []Analyzer{StructuralAnalyzer{}, LexicalAnalyzer{}} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				v := NewWithAnalyzer(analyzer)
				verdict := v.Validate(tt.candidate, descriptor)
				if verdict.Accepted() {
					t.Fatalf("Validate(%q) with %T accepted, want rejection", tt.candidate, analyzer)
				}
			})
		}
	}
}

func TestValidateForbiddenKeywords(t *testing.T) {
	descriptor := testDescriptor()
	v := NewWithAnalyzer(LexicalAnalyzer{})

	tests := []struct {
		name      string
		candidate string
		wantKind  Kind
		wantWord  string
	}{
		{
			"embedded drop",
			"SELECT name FROM products; DROP TABLE products",
			KindForbiddenKeyword,
			"DROP",
		},
		{
			"lowercase delete",
			"SELECT 1 WHERE delete IS NOT NULL",
			KindForbiddenKeyword,
			"DELETE",
		},
		{
			"pragma",
			"SELECT 1 UNION SELECT pragma FROM t",
			KindForbiddenKeyword,
			"PRAGMA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := v.Validate(tt.candidate, descriptor)
			if verdict.Accepted() {
				t.Fatalf("Validate(%q) accepted, want rejection", tt.candidate)
			}
			if verdict.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", verdict.Kind, tt.wantKind)
			}
			if verdict.Detail != tt.wantWord {
				t.Errorf("detail = %q, want %q", verdict.Detail, tt.wantWord)
			}
		})
	}
}

// Keyword matching is on whole tokens only; identifiers that merely contain a
// forbidden keyword must not trip the scan.
func TestValidateKeywordWordBoundaries(t *testing.T) {
	descriptor := schema.Descriptor{
		"updates": {
			"id":          {DataType: "integer"},
			"created_at":  {DataType: "timestamp"},
			"dropshipped": {DataType: "boolean"},
		},
	}

	for _, analyzer := range []Analyzer{StructuralAnalyzer{}, LexicalAnalyzer{}} {
		v := NewWithAnalyzer(analyzer)
		q := "SELECT dropshipped, created_at FROM updates"
		verdict := v.Validate(q, descriptor)
		if !verdict.Accepted() {
			t.Errorf("Validate(%q) with %T rejected: kind=%s detail=%s",
				q, analyzer, verdict.Kind, verdict.Detail)
		}
	}
}

// A multi-statement batch must never reach execution. The structural parser
// rejects the batch as not-read-only; the lexical analyzer sees the leading
// SELECT but catches the trailing DROP in the keyword scan. Either kind is a
// safe outcome; acceptance is not.
func TestValidateMultiStatementBatch(t *testing.T) {
	descriptor := testDescriptor()
	batch := "SELECT 1; DROP TABLE products"

	structural := NewWithAnalyzer(StructuralAnalyzer{}).Validate(batch, descriptor)
	if structural.Accepted() {
		t.Fatal("structural analyzer accepted a multi-statement batch")
	}

	lexical := NewWithAnalyzer(LexicalAnalyzer{}).Validate(batch, descriptor)
	if lexical.Accepted() {
		t.Fatal("lexical analyzer accepted a multi-statement batch")
	}
	if lexical.Kind != KindForbiddenKeyword {
		t.Errorf("lexical kind = %s, want %s", lexical.Kind, KindForbiddenKeyword)
	}
}

func TestValidateSchemaConformance(t *testing.T) {
	descriptor := testDescriptor()
	v := NewWithAnalyzer(StructuralAnalyzer{})

	tests := []struct {
		name       string
		candidate  string
		wantKind   Kind
		wantDetail string
	}{
		{
			"unknown table",
			"SELECT id FROM customers",
			KindUnknownTable,
			"customers",
		},
		{
			"unknown table in join",
			"SELECT p.id FROM products p JOIN shipments s ON s.product_id = p.id",
			KindUnknownTable,
			"shipments",
		},
		{
			"unknown qualified column",
			"SELECT p.discount FROM products p",
			KindUnknownColumn,
			"discount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := v.Validate(tt.candidate, descriptor)
			if verdict.Accepted() {
				t.Fatalf("Validate(%q) accepted, want rejection", tt.candidate)
			}
			if verdict.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", verdict.Kind, tt.wantKind)
			}
			if verdict.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", verdict.Detail, tt.wantDetail)
			}
		})
	}
}

// A qualified column is accepted when it exists in any referenced table. The
// check does not resolve aliases to their tables; that looseness is part of
// the contract.
func TestValidateColumnExistsInAnyReferencedTable(t *testing.T) {
	descriptor := testDescriptor()
	v := NewWithAnalyzer(StructuralAnalyzer{})

	// quantity belongs to orders, not products, but both tables are in scope.
	q := "SELECT p.quantity FROM products p JOIN orders o ON o.product_id = p.id"
	if verdict := v.Validate(q, descriptor); !verdict.Accepted() {
		t.Errorf("Validate(%q) rejected: kind=%s detail=%s", q, verdict.Kind, verdict.Detail)
	}
}

// The lexical analyzer extracts no identifiers, so Phase B passes vacuously
// even for a query that names a table the schema has never heard of.
func TestValidateLexicalVacuousPass(t *testing.T) {
	descriptor := testDescriptor()
	v := NewWithAnalyzer(LexicalAnalyzer{})

	verdict := v.Validate("SELECT id FROM no_such_table", descriptor)
	if !verdict.Accepted() {
		t.Fatalf("lexical analyzer rejected: kind=%s, want vacuous acceptance", verdict.Kind)
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	descriptor := testDescriptor()
	v := NewWithAnalyzer(StructuralAnalyzer{})
	q := "SELECT p.name FROM products p JOIN orders o ON o.product_id = p.id"

	first := v.Validate(q, descriptor)
	for i := 0; i < 20; i++ {
		if got := v.Validate(q, descriptor); got != first {
			t.Fatalf("verdict changed across calls: %+v vs %+v", got, first)
		}
	}
}

func TestValidateEmptyDescriptor(t *testing.T) {
	v := NewWithAnalyzer(StructuralAnalyzer{})

	verdict := v.Validate("SELECT id FROM products", schema.Descriptor{})
	if verdict.Accepted() {
		t.Fatal("accepted a table reference against an empty descriptor")
	}
	if verdict.Kind != KindUnknownTable {
		t.Errorf("kind = %s, want %s", verdict.Kind, KindUnknownTable)
	}

	// A table-free SELECT is fine even with no schema at all.
	if verdict := v.Validate("SELECT 1", schema.Descriptor{}); !verdict.Accepted() {
		t.Errorf("rejected table-free SELECT: kind=%s", verdict.Kind)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		analyzer  Analyzer
		candidate string
		want      string
	}{
		{
			"lexical collapses whitespace",
			LexicalAnalyzer{},
			"  SELECT   id\nFROM products  ;  ",
			"SELECT id FROM products",
		},
		{
			"structural canonical form",
			StructuralAnalyzer{},
			"SELECT id FROM products;",
			"select id from products",
		},
		{
			"structural falls back on parse failure",
			StructuralAnalyzer{},
			"not   sql   at all",
			"not sql at all",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewWithAnalyzer(tt.analyzer)
			if got := v.Normalize(tt.candidate); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.candidate, got, tt.want)
			}
		})
	}
}

// Normalization never changes a verdict: the raw candidate is what Validate
// judges, and a rejected raw candidate stays rejected no matter how its
// display form is cleaned up.
func TestNormalizeIsNotASecurityControl(t *testing.T) {
	descriptor := testDescriptor()
	v := NewWithAnalyzer(LexicalAnalyzer{})

	raw := "SELECT 1; DROP TABLE products;"
	if v.Validate(raw, descriptor).Accepted() {
		t.Fatal("raw candidate accepted")
	}
	_ = v.Normalize(raw)
	if v.Validate(raw, descriptor).Accepted() {
		t.Fatal("verdict changed after Normalize")
	}
}
