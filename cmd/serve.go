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
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/executor"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/genai"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/nl2sql"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/server"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/validator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the validator and query endpoints over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cfg.Server.LogJSON)
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := setupDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		gate, err := validator.New(cfg.Validator)
		if err != nil {
			return err
		}
		exec := executor.New(db.Pool())

		// The NL endpoint is optional; without an API key the server still
		// validates and executes raw SQL.
		var engine server.QueryAnswerer
		if cfg.GenAI.APIKey != "" {
			llm, err := genai.NewClient(cmd.Context(), cfg.GenAI)
			if err != nil {
				return err
			}
			defer llm.Close()
			engine = nl2sql.NewEngine(llm, gate, exec)
		} else {
			log.Println("WARN: No Gemini API key configured; /v1/query/nl is disabled.")
		}

		handler := server.NewHandler(server.Dependencies{
			Logger:    logger,
			Validator: gate,
			Executor:  exec,
			Schema:    schema.NewBuilder(db),
			Engine:    engine,
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return server.Run(ctx, cfg.Server.ListenAddr, handler, logger)
	},
}

func newLogger(jsonOutput bool) (*zap.Logger, error) {
	if jsonOutput {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func init() {
	serveCmd.Flags().String("listen-addr", "", "Address to listen on (default :8080)")
	serveCmd.Flags().Bool("log-json", false, "Emit structured JSON logs")
}
