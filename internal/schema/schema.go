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
	"fmt"
	"sort"
	"strings"
)

// ColumnMeta describes a single column as reported by the database catalog.
type ColumnMeta struct {
	DataType string
	Nullable bool
	Default  *string
}

// TableDescriptor maps column names to their metadata.
type TableDescriptor map[string]ColumnMeta

// Descriptor is a snapshot of the tables and columns known to the database at
// build time. Names are stored exactly as the catalog reports them. The
// descriptor is read-only after Build and safe to share across concurrent
// validations; rebuild it when the underlying schema changes.
type Descriptor map[string]TableDescriptor

// HasTable reports whether the descriptor contains the given table.
func (d Descriptor) HasTable(name string) bool {
	_, ok := d[name]
	return ok
}

// HasColumn reports whether the given table contains the given column.
func (d Descriptor) HasColumn(table, column string) bool {
	td, ok := d[table]
	if !ok {
		return false
	}
	_, ok = td[column]
	return ok
}

// Tables returns the table names in the descriptor, sorted.
func (d Descriptor) Tables() []string {
	tables := make([]string, 0, len(d))
	for table := range d {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}

// Columns returns the column names of a table, sorted. The second return
// value is false if the table is unknown.
func (d Descriptor) Columns(table string) ([]string, bool) {
	td, ok := d[table]
	if !ok {
		return nil, false
	}
	columns := make([]string, 0, len(td))
	for column := range td {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns, true
}

// Filter returns a descriptor restricted to the given tables and columns,
// using the same filter shape as the --tables flag: a table mapped to a nil
// or empty column list keeps all of its columns. An empty filter map returns
// the descriptor unchanged.
func (d Descriptor) Filter(tableFilters map[string][]string) Descriptor {
	if len(tableFilters) == 0 {
		return d
	}
	filtered := make(Descriptor, len(tableFilters))
	for table, columns := range tableFilters {
		td, ok := d[table]
		if !ok {
			continue
		}
		if len(columns) == 0 {
			filtered[table] = td
			continue
		}
		filteredTable := make(TableDescriptor, len(columns))
		for _, column := range columns {
			if meta, ok := td[column]; ok {
				filteredTable[column] = meta
			}
		}
		filtered[table] = filteredTable
	}
	return filtered
}

// Describe renders the descriptor as a CREATE TABLE-style listing suitable
// for embedding in a generation prompt.
func (d Descriptor) Describe() string {
	if len(d) == 0 {
		return "-- No tables found in the database."
	}

	var sb strings.Builder
	for i, table := range d.Tables() {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", table))
		columns, _ := d.Columns(table)
		for j, column := range columns {
			meta := d[table][column]
			sb.WriteString(fmt.Sprintf("  %s %s", column, meta.DataType))
			if !meta.Nullable {
				sb.WriteString(" NOT NULL")
			}
			if meta.Default != nil {
				sb.WriteString(fmt.Sprintf(" DEFAULT %s", *meta.Default))
			}
			if j < len(columns)-1 {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
		}
		sb.WriteString(");\n")
	}
	return sb.String()
}
