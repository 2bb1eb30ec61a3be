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
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GoogleCloudPlatform/db-query-guard/internal/config"
	"github.com/GoogleCloudPlatform/db-query-guard/internal/database"
	_ "github.com/GoogleCloudPlatform/db-query-guard/internal/database/duckdb"
	_ "github.com/GoogleCloudPlatform/db-query-guard/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/db-query-guard/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/db-query-guard/internal/database/sqlserver"
)

var supportedDialects = []string{
	"postgres", "mysql", "sqlserver", "duckdb",
	"cloudsqlpostgres", "cloudsqlmysql", "cloudsqlmssql",
}

// cfg is assembled once in PersistentPreRunE and passed explicitly to
// everything the subcommands construct.
var cfg *config.Config

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "db_query_guard",
	Short: "A safety gate between questions, generated SQL, and your database",
	Long: `db_query_guard validates SQL statements against a read-only safety
policy and a live schema snapshot before executing them. It can also turn
natural language questions into SQL with Gemini, gating every generated
statement through the same validator.`,
	PersistentPreRunE: initConfig,
	SilenceUsage:      true,
}

// initConfig assembles the explicit configuration object from flags and
// environment variables. Flags win over environment, environment over
// defaults.
func initConfig(cmd *cobra.Command, args []string) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	loaded, err := config.FromViper(v)
	if err != nil {
		return err
	}
	if err := validateDialect(loaded.Database.Dialect); err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func validateDialect(dialect string) error {
	for _, supported := range supportedDialects {
		if dialect == supported {
			return nil
		}
	}
	return fmt.Errorf("unsupported dialect: %s (only %s are supported)", dialect, strings.Join(supportedDialects, ", "))
}

func setupDatabase() (*database.DB, error) {
	db, err := database.New(cfg.Database)
	if err != nil {
		log.Println("ERROR: Failed to connect to database:", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	v.SetEnvPrefix("DBQG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// The conventional variable name, without the prefix.
	_ = v.BindEnv("gemini-api-key", "GEMINI_API_KEY", "DBQG_GEMINI_API_KEY")

	// Database connection flags
	rootCmd.PersistentFlags().String("dialect", "", fmt.Sprintf("Database dialect (%s)", strings.Join(supportedDialects, ", ")))
	rootCmd.PersistentFlags().String("host", "", "Database host")
	rootCmd.PersistentFlags().Int("port", 0, "Database port")
	rootCmd.PersistentFlags().String("username", "", "Database username")
	rootCmd.PersistentFlags().String("password", "", "Database password")
	rootCmd.PersistentFlags().String("database", "", "Database name")
	rootCmd.PersistentFlags().String("db-path", "", "Database file path (duckdb only; empty for in-memory)")
	rootCmd.PersistentFlags().String("sslmode", "", "SSL mode for postgres connections")
	rootCmd.PersistentFlags().String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	rootCmd.PersistentFlags().Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection")

	// Validation flags
	rootCmd.PersistentFlags().String("validation-strategy", "", "SQL analysis strategy: 'structural' (full parse) or 'lexical' (token scan)")

	// Gemini flags
	rootCmd.PersistentFlags().String("gemini-api-key", "", "Gemini API key (can also be set via GEMINI_API_KEY environment variable)")
	rootCmd.PersistentFlags().String("model", "", "Gemini model name")

	// Add subcommands
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(showSchemaCmd)
	rootCmd.AddCommand(serveCmd)
}
