// manifold/config.go

package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v2"
)

// DatabaseConfig holds the connection string for the user-account database
// backing auth_handlers.go/user_auth.go.
type DatabaseConfig struct {
	ConnectionString string `yaml:"connection_string"`
}

// AuthConfig holds the JWT signing secret and token lifetime used by
// configureJWTMiddleware and loginHandler.
type AuthConfig struct {
	SecretKey   string `yaml:"secret_key"`
	TokenExpiry int    `yaml:"token_expiry_hours"`
}

// Config is the top-level application configuration for the diving-manual
// ingestion/RAG service: where it binds, where it stores uploaded documents,
// and how it authenticates operators. Document-ingestion and RAG-specific
// settings (chunking, embeddings, graph store, LLM provider) live in their
// own config.yaml sections and are loaded separately by
// manifold/internal/config, mirroring how this file never grew ingestion
// concerns under the teacher's original all-in-one Config.
type Config struct {
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	DataPath string         `yaml:"data_path"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
}

// LoadConfig reads the configuration from a YAML file, unmarshals it into a Config struct,
// and logs the outcome using pterm.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		pterm.Error.Printf("Error reading config file: %v\n", err)
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		pterm.Error.Printf("Error unmarshaling config: %v\n", err)
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	pterm.Success.Println("Configuration loaded successfully.")
	return &config, nil
}
