// Package config provides configuration loading and structs for digest.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/digest/internal/tagging"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets in the config file.
const (
	EnvResultsWebhook = "DIGEST_RESULTS_WEBHOOK"
	EnvTokenWebhook   = "DIGEST_TOKEN_WEBHOOK"
	EnvSpreadsheetID  = "DIGEST_SPREADSHEET_ID"
)

// Gate strategies for budget enforcement.
const (
	GateLive    = "live"
	GatePrePass = "prepass"
)

// Config holds all configuration for the application.
type Config struct {
	Debug           bool           `yaml:"debug"`
	Budget          BudgetConfig   `yaml:"budget"`
	Extract         ExtractConfig  `yaml:"extract"`
	Match           MatchConfig    `yaml:"match"`
	Categories      []tagging.Rule `yaml:"categories"`
	DefaultCategory string         `yaml:"default_category"`
	Storage         StorageConfig  `yaml:"storage"`
	Sheets          SheetsConfig   `yaml:"sheets"`
	Workbook        WorkbookConfig `yaml:"workbook"`
	Notify          NotifyConfig   `yaml:"notify"`
	Publish         PublishConfig  `yaml:"publish"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	MaxTokenBudget        int     `yaml:"max_token_budget"`
	TokenWarningThreshold float64 `yaml:"token_warning_threshold"`
	TokensPerWord         float64 `yaml:"tokens_per_word"`
	// Gate is "prepass" (estimate everything first, ask before exceeding) or "live".
	Gate                  string  `yaml:"gate"`
}

// ExtractConfig holds segmentation settings.
type ExtractConfig struct {
	MaxSegmentChars int `yaml:"max_segment_chars"`
}

// MatchConfig holds keyword matching settings.
type MatchConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
	Transpositions *bool   `yaml:"transpositions"`
}

// TranspositionsOrDefault returns whether adjacent swaps count as one edit; defaults to true when unset.
func (m *MatchConfig) TranspositionsOrDefault() bool {
	if m.Transpositions != nil {
		return *m.Transpositions
	}
	return true
}

// StorageConfig holds the local ledger location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SheetsConfig holds Google Sheets settings. An empty SpreadsheetID disables the sheet sink.
type SheetsConfig struct {
	SpreadsheetID     string  `yaml:"spreadsheet_id"`
	SheetName         string  `yaml:"sheet_name"`
	CredentialsPath   string  `yaml:"credentials_path"`
	TokenPath         string  `yaml:"token_path"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Enabled reports whether a spreadsheet is configured.
func (s *SheetsConfig) Enabled() bool { return s.SpreadsheetID != "" }

// WorkbookConfig holds the local .xlsx output. An empty Path disables it.
type WorkbookConfig struct {
	Path      string `yaml:"path"`
	SheetName string `yaml:"sheet_name"`
}

// NotifyConfig holds webhook settings for the two notification channels.
type NotifyConfig struct {
	ResultsWebhook  string `yaml:"results_webhook"`
	TokenWebhook    string `yaml:"token_webhook"`
	ResultsThreadID string `yaml:"results_thread_id"`
	TokenThreadID   string `yaml:"token_thread_id"`
}

// PublishConfig bounds every network call made while publishing.
type PublishConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Load reads and parses the config file at path, applies env overrides and defaults,
// expands paths, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Sheets.CredentialsPath = expandPath(cfg.Sheets.CredentialsPath, configDir)
	cfg.Sheets.TokenPath = expandPath(cfg.Sheets.TokenPath, configDir)
	cfg.Workbook.Path = expandPath(cfg.Workbook.Path, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides secrets from the environment when the variables are set.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvResultsWebhook); v != "" {
		cfg.Notify.ResultsWebhook = v
	}
	if v := os.Getenv(EnvTokenWebhook); v != "" {
		cfg.Notify.TokenWebhook = v
	}
	if v := os.Getenv(EnvSpreadsheetID); v != "" {
		cfg.Sheets.SpreadsheetID = v
	}
}

// Validate checks the budget and matching settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Budget.MaxTokenBudget <= 0 {
		errs = append(errs, fmt.Errorf("budget.max_token_budget must be > 0, got %d", c.Budget.MaxTokenBudget))
	}
	if t := c.Budget.TokenWarningThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("budget.token_warning_threshold must be in (0,1], got %v", t))
	}
	if c.Budget.Gate != GateLive && c.Budget.Gate != GatePrePass {
		errs = append(errs, fmt.Errorf("budget.gate must be %q or %q, got %q", GateLive, GatePrePass, c.Budget.Gate))
	}
	if t := c.Match.FuzzyThreshold; t < 0 || t >= 1 {
		errs = append(errs, fmt.Errorf("match.fuzzy_threshold must be in [0,1), got %v", t))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" is the home directory; other relative paths are relative to the home directory.
// Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
