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
	"fmt"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/database"
)

// Builder produces schema snapshots by introspecting the live database
// through its dialect handler.
type Builder struct {
	db database.DBAdapter
}

func NewBuilder(db database.DBAdapter) *Builder {
	return &Builder{db: db}
}

// Build enumerates all user tables and their columns and returns an
// independent snapshot. A database with zero tables yields an empty
// descriptor, not an error. Build may be called repeatedly; each call
// re-reads the catalog.
func (b *Builder) Build(ctx context.Context) (Descriptor, error) {
	tables, err := b.db.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	descriptor := make(Descriptor, len(tables))
	for _, table := range tables {
		columns, err := b.db.ListColumns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to list columns for table %s: %w", table, err)
		}
		td := make(TableDescriptor, len(columns))
		for _, col := range columns {
			meta := ColumnMeta{
				DataType: col.DataType,
				Nullable: col.Nullable,
			}
			if col.Default.Valid {
				value := col.Default.String
				meta.Default = &value
			}
			td[col.Name] = meta
		}
		descriptor[table] = td
	}
	return descriptor, nil
}
