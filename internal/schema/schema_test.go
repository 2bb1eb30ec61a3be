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
	"reflect"
	"strings"
	"testing"
)

func sampleDescriptor() Descriptor {
	dflt := "0"
	return Descriptor{
		"products": {
			"id":    {DataType: "integer"},
			"name":  {DataType: "text", Nullable: true},
			"price": {DataType: "numeric", Nullable: true, Default: &dflt},
		},
		"orders": {
			"id":         {DataType: "integer"},
			"product_id": {DataType: "integer"},
		},
	}
}

func TestHasTable(t *testing.T) {
	d := sampleDescriptor()
	if !d.HasTable("products") {
		t.Error("HasTable(products) = false, want true")
	}
	if d.HasTable("customers") {
		t.Error("HasTable(customers) = true, want false")
	}
	if d.HasTable("PRODUCTS") {
		t.Error("HasTable(PRODUCTS) = true; lookup must be exact, not case-folded")
	}
}

func TestHasColumn(t *testing.T) {
	d := sampleDescriptor()
	tests := []struct {
		table, column string
		want          bool
	}{
		{"products", "name", true},
		{"products", "product_id", false},
		{"orders", "product_id", true},
		{"customers", "id", false},
	}
	for _, tt := range tests {
		if got := d.HasColumn(tt.table, tt.column); got != tt.want {
			t.Errorf("HasColumn(%s, %s) = %v, want %v", tt.table, tt.column, got, tt.want)
		}
	}
}

func TestTablesAndColumnsSorted(t *testing.T) {
	d := sampleDescriptor()

	if got := d.Tables(); !reflect.DeepEqual(got, []string{"orders", "products"}) {
		t.Errorf("Tables() = %v, want sorted [orders products]", got)
	}

	columns, ok := d.Columns("products")
	if !ok {
		t.Fatal("Columns(products) ok = false")
	}
	if !reflect.DeepEqual(columns, []string{"id", "name", "price"}) {
		t.Errorf("Columns(products) = %v, want sorted [id name price]", columns)
	}

	if _, ok := d.Columns("customers"); ok {
		t.Error("Columns(customers) ok = true, want false")
	}
}

func TestFilter(t *testing.T) {
	d := sampleDescriptor()

	t.Run("empty filter returns descriptor unchanged", func(t *testing.T) {
		if got := d.Filter(nil); !reflect.DeepEqual(got, d) {
			t.Error("Filter(nil) changed the descriptor")
		}
	})

	t.Run("table with nil columns keeps all columns", func(t *testing.T) {
		got := d.Filter(map[string][]string{"orders": nil})
		if len(got) != 1 {
			t.Fatalf("filtered descriptor has %d tables, want 1", len(got))
		}
		columns, _ := got.Columns("orders")
		if !reflect.DeepEqual(columns, []string{"id", "product_id"}) {
			t.Errorf("Columns(orders) = %v", columns)
		}
	})

	t.Run("explicit column list restricts", func(t *testing.T) {
		got := d.Filter(map[string][]string{"products": {"id", "price"}})
		if got.HasColumn("products", "name") {
			t.Error("filtered descriptor kept an unlisted column")
		}
		if !got.HasColumn("products", "price") {
			t.Error("filtered descriptor dropped a listed column")
		}
	})

	t.Run("unknown table is skipped", func(t *testing.T) {
		got := d.Filter(map[string][]string{"customers": nil})
		if len(got) != 0 {
			t.Errorf("filtered descriptor = %v, want empty", got)
		}
	})
}

func TestDescribe(t *testing.T) {
	d := sampleDescriptor()
	out := d.Describe()

	for _, want := range []string{
		"CREATE TABLE orders (",
		"CREATE TABLE products (",
		"id integer NOT NULL",
		"name text,",
		"price numeric DEFAULT 0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Describe() missing %q in:\n%s", want, out)
		}
	}

	// orders sorts before products.
	if strings.Index(out, "orders") > strings.Index(out, "products") {
		t.Error("Describe() tables are not sorted")
	}
}

func TestDescribeEmpty(t *testing.T) {
	got := Descriptor{}.Describe()
	if got != "-- No tables found in the database." {
		t.Errorf("Describe() on empty descriptor = %q", got)
	}
}
