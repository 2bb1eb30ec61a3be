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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/executor"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/validator"
)

var queryOutputJSON bool

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Validate a SQL statement and execute it if it passes",
	Long: `Validate a SQL statement against the read-only policy and the live
schema, and execute it if it passes. With no argument, starts an interactive
shell; quit with 'q', 'quit' or EOF.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := setupDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		gate, err := validator.New(cfg.Validator)
		if err != nil {
			return err
		}

		descriptor, err := schema.NewBuilder(db).Build(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to build schema snapshot: %w", err)
		}
		exec := executor.New(db.Pool())

		runOne := func(candidate string) error {
			verdict := gate.Validate(candidate, descriptor)
			if !verdict.Accepted() {
				return fmt.Errorf("statement rejected (%s): %s", verdict.Kind, verdict.Message)
			}

			result, err := exec.Execute(cmd.Context(), candidate)
			if err != nil {
				return err
			}

			fmt.Printf("-- %s\n", gate.Normalize(candidate))
			return printResult(result, queryOutputJSON)
		}

		if len(args) == 1 {
			return runOne(args[0])
		}
		runREPL(os.Stdin, "SQL> ", runOne)
		return nil
	},
}

func printResult(result *executor.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			cells[i] = fmt.Sprintf("%v", row[col])
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
	fmt.Printf("(%d rows)\n", len(result.Rows))
	return nil
}

func init() {
	queryCmd.Flags().BoolVar(&queryOutputJSON, "json", false, "Print results as JSON")
}
