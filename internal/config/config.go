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
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Validation strategies for the SQL safety gate.
const (
	StrategyStructural = "structural"
	StrategyLexical    = "lexical"
)

// Config holds all configuration for the application. It is assembled once at
// process start and passed down explicitly; there is no package-level state.
type Config struct {
	Database  DatabaseConfig
	GenAI     GenAIConfig
	Validator ValidatorConfig
	Server    ServerConfig
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Dialect                        string
	Host                           string
	Port                           int
	User                           string
	Password                       string
	DBName                         string
	SSLMode                        string
	Path                           string // file path for embedded dialects (duckdb)
	CloudSQLInstanceConnectionName string
	UsePrivateIP                   bool
}

// GenAIConfig holds settings for the SQL generation collaborator.
type GenAIConfig struct {
	APIKey string
	Model  string
}

// ValidatorConfig selects the analyzer strategy for the safety gate.
type ValidatorConfig struct {
	Strategy string
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	ListenAddr string
	LogJSON    bool
}

// Default returns a configuration with sensible defaults. Values are
// overridden by flags and environment variables in cmd.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect: "postgres",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		GenAI: GenAIConfig{
			Model: "gemini-1.5-flash-latest",
		},
		Validator: ValidatorConfig{
			Strategy: StrategyStructural,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// FromViper assembles a Config from a viper instance that has flags bound and
// environment variables enabled (flag > env > default precedence).
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := Default()

	if dialect := v.GetString("dialect"); dialect != "" {
		cfg.Database.Dialect = dialect
	}
	if host := v.GetString("host"); host != "" {
		cfg.Database.Host = host
	}
	if port := v.GetInt("port"); port != 0 {
		cfg.Database.Port = port
	}
	cfg.Database.User = v.GetString("username")
	cfg.Database.Password = v.GetString("password")
	cfg.Database.DBName = v.GetString("database")
	cfg.Database.Path = v.GetString("db-path")
	if sslMode := v.GetString("sslmode"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}
	cfg.Database.CloudSQLInstanceConnectionName = v.GetString("cloudsql-instance-connection-name")
	cfg.Database.UsePrivateIP = v.GetBool("cloudsql-use-private-ip")

	cfg.GenAI.APIKey = v.GetString("gemini-api-key")
	if model := v.GetString("model"); model != "" {
		cfg.GenAI.Model = model
	}

	if strategy := v.GetString("validation-strategy"); strategy != "" {
		cfg.Validator.Strategy = strings.ToLower(strategy)
	}
	if err := validateStrategy(cfg.Validator.Strategy); err != nil {
		return nil, err
	}

	if addr := v.GetString("listen-addr"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	cfg.Server.LogJSON = v.GetBool("log-json")

	return cfg, nil
}

func validateStrategy(strategy string) error {
	switch strategy {
	case StrategyStructural, StrategyLexical:
		return nil
	default:
		return fmt.Errorf("unsupported validation strategy: %s (only %s and %s are supported)",
			strategy, StrategyStructural, StrategyLexical)
	}
}
