// Package config resolves code-search configuration from defaults, an
// optional per-repository YAML file, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	cserrors "github.com/Anabaai/code-search/internal/errors"
)

// EnvLimit is the environment variable holding the default result limit.
const EnvLimit = "CODE_SEARCH_LIMIT"

// IndexDirName is the per-repository directory holding the persisted index.
const IndexDirName = ".code-search"

// Config represents the complete code-search configuration.
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Server     ServerConfig     `yaml:"server"`
}

// SearchConfig configures scanning and retrieval parameters.
type SearchConfig struct {
	// MaxLines is the heuristic chunk ceiling.
	MaxLines int `yaml:"max_lines"`
	// Limit is the default result cap.
	Limit int `yaml:"limit"`
	// Exclude holds glob patterns excluded from scanning.
	Exclude []string `yaml:"exclude"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	// Offline selects the deterministic hash embedder instead of the model.
	Offline bool `yaml:"offline"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Search: SearchConfig{
			MaxLines: 60,
			Limit:    10,
		},
		Embeddings: EmbeddingsConfig{
			Model:      "sentence-transformers/all-MiniLM-L6-v2",
			Dimensions: 384,
			BatchSize:  32,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// Load resolves the configuration for a repository root.
// Precedence: defaults, then <root>/.code-search/config.yaml, then env.
// Flags are applied by the caller on top of the returned value.
func Load(repoRoot string) (Config, error) {
	cfg := Default()

	path := filepath.Join(repoRoot, IndexDirName, "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, cserrors.New(cserrors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid config file %s: %v", path, err), err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, cserrors.New(cserrors.ErrCodeConfigPermission,
			fmt.Sprintf("cannot read config file %s: %v", path, err), err)
	}

	if v := os.Getenv(EnvLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, cserrors.New(cserrors.ErrCodeConfigInvalid,
				fmt.Sprintf("%s must be a non-negative integer, got %q", EnvLimit, v), err)
		}
		cfg.Search.Limit = n
	}

	return cfg, cfg.Validate()
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.Search.MaxLines < 1 {
		return cserrors.New(cserrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search.max_lines must be >= 1, got %d", c.Search.MaxLines), nil)
	}
	if c.Search.Limit < 0 {
		return cserrors.New(cserrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search.limit must be >= 0, got %d", c.Search.Limit), nil)
	}
	if c.Embeddings.Dimensions < 1 {
		return cserrors.New(cserrors.ErrCodeConfigInvalid,
			fmt.Sprintf("embeddings.dimensions must be >= 1, got %d", c.Embeddings.Dimensions), nil)
	}
	if c.Embeddings.BatchSize < 1 {
		return cserrors.New(cserrors.ErrCodeConfigInvalid,
			fmt.Sprintf("embeddings.batch_size must be >= 1, got %d", c.Embeddings.BatchSize), nil)
	}
	return nil
}

// IndexDir returns the index directory for a repository root.
func IndexDir(repoRoot string) string {
	return filepath.Join(repoRoot, IndexDirName)
}

// EnsureGitignore appends the index directory to the repository's
// .gitignore if it is not already listed, creating the file if needed.
func EnsureGitignore(repoRoot string) error {
	path := filepath.Join(repoRoot, ".gitignore")

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	entry := IndexDirName + "/"
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == entry || trimmed == IndexDirName {
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	prefix := ""
	if len(data) > 0 && data[len(data)-1] != '\n' {
		prefix = "\n"
	}
	_, err = fmt.Fprintf(f, "%s%s\n", prefix, entry)
	return err
}
