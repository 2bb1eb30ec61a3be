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
package schema

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/config"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/database"
)

type fakeAdapter struct {
	tables  []string
	columns map[string][]database.ColumnInfo
	listErr error
	colErr  error
}

var _ database.DBAdapter = (*fakeAdapter)(nil)

func (f *fakeAdapter) ListTables(ctx context.Context) ([]string, error) {
	return f.tables, f.listErr
}

func (f *fakeAdapter) ListColumns(ctx context.Context, tableName string) ([]database.ColumnInfo, error) {
	if f.colErr != nil {
		return nil, f.colErr
	}
	return f.columns[tableName], nil
}

func (f *fakeAdapter) QuoteIdentifier(name string) string { return name }
func (f *fakeAdapter) Pool() *sql.DB                      { return nil }
func (f *fakeAdapter) Ping(ctx context.Context) error     { return nil }
func (f *fakeAdapter) Close() error                       { return nil }
func (f *fakeAdapter) GetConfig() config.DatabaseConfig   { return config.DatabaseConfig{} }

func TestBuild(t *testing.T) {
	adapter := &fakeAdapter{
		tables: []string{"products"},
		columns: map[string][]database.ColumnInfo{
			"products": {
				{Name: "id", DataType: "integer"},
				{Name: "name", DataType: "text", Nullable: true},
				{Name: "price", DataType: "numeric", Nullable: true, Default: sql.NullString{String: "0", Valid: true}},
			},
		},
	}

	descriptor, err := NewBuilder(adapter).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !descriptor.HasColumn("products", "price") {
		t.Fatal("descriptor missing products.price")
	}
	meta := descriptor["products"]["price"]
	if meta.Default == nil || *meta.Default != "0" {
		t.Errorf("price default = %v, want 0", meta.Default)
	}
	if !meta.Nullable {
		t.Error("price should be nullable")
	}
	if id := descriptor["products"]["id"]; id.Nullable || id.Default != nil {
		t.Errorf("id meta = %+v, want NOT NULL without default", id)
	}
}

func TestBuildEmptyDatabase(t *testing.T) {
	descriptor, err := NewBuilder(&fakeAdapter{}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(descriptor) != 0 {
		t.Errorf("descriptor = %v, want empty", descriptor)
	}
}

func TestBuildPropagatesErrors(t *testing.T) {
	listErr := errors.New("catalog unavailable")
	if _, err := NewBuilder(&fakeAdapter{listErr: listErr}).Build(context.Background()); !errors.Is(err, listErr) {
		t.Errorf("Build() error = %v, want wrapped %v", err, listErr)
	}

	colErr := errors.New("permission denied")
	adapter := &fakeAdapter{tables: []string{"products"}, colErr: colErr}
	if _, err := NewBuilder(adapter).Build(context.Background()); !errors.Is(err, colErr) {
		t.Errorf("Build() error = %v, want wrapped %v", err, colErr)
	}
}
