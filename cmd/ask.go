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
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/executor"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/genai"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/nl2sql"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/utils"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/validator"
)

var (
	askOutputJSON   bool
	askAutoApprove  bool
	askContextFiles string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a natural language question with a validated SQL query",
	Long: `Generate a SQL query for a natural language question, validate it, and
execute it after confirmation. With no argument, starts an interactive shell;
quit with 'q', 'quit' or EOF.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grounding, err := utils.ReadContextFiles(askContextFiles)
		if err != nil {
			return err
		}

		llm, err := genai.NewClient(cmd.Context(), cfg.GenAI)
		if err != nil {
			return err
		}
		defer llm.Close()

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
		engine := nl2sql.NewEngine(llm, gate, exec)
		engine.SetGrounding(grounding)

		askOne := func(question string) error {
			sql, err := engine.Propose(cmd.Context(), question, descriptor)
			if err != nil {
				var rejected *nl2sql.RejectedError
				if errors.As(err, &rejected) {
					return fmt.Errorf("generated SQL was rejected (%s): %s\n  candidate: %s",
						rejected.Verdict.Kind, rejected.Verdict.Message, rejected.SQL)
				}
				return err
			}

			fmt.Printf("-- %s\n", sql)
			if !askAutoApprove && !utils.ConfirmAction(os.Stdin, fmt.Sprintf("SQL for %q", question)) {
				fmt.Println("Query not executed.")
				return nil
			}

			result, err := exec.Execute(cmd.Context(), sql)
			if err != nil {
				return err
			}
			return printResult(result, askOutputJSON)
		}

		if len(args) == 1 {
			return askOne(args[0])
		}
		runREPL(os.Stdin, "NL> ", askOne)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askOutputJSON, "json", false, "Print results as JSON")
	askCmd.Flags().BoolVar(&askAutoApprove, "yes", false, "Execute validated queries without asking for confirmation")
	askCmd.Flags().StringVar(&askContextFiles, "context-files", "", "Comma-separated files whose content grounds the generation prompt")
}
