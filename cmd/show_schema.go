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
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/utils"
)

var showSchemaTables string

var showSchemaCmd = &cobra.Command{
	Use:   "show-schema",
	Short: "Print the schema snapshot the validator checks queries against",
	RunE: func(cmd *cobra.Command, args []string) error {
		tableFilters, err := utils.ParseTablesFlag(showSchemaTables)
		if err != nil {
			return fmt.Errorf("invalid --tables flag: %w", err)
		}

		db, err := setupDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		descriptor, err := schema.NewBuilder(db).Build(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to build schema snapshot: %w", err)
		}

		fmt.Println(descriptor.Filter(tableFilters).Describe())
		return nil
	},
}

func init() {
	showSchemaCmd.Flags().StringVar(&showSchemaTables, "tables", "", "Tables to include, e.g. 'orders,products[id,name]' (default all)")
}
