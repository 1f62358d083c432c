package config

import "github.com/hyperjump/digest/internal/tagging"

// Defaults mirror the values the tool has always shipped with.
const (
	DefaultMaxTokenBudget        = 50000
	DefaultTokenWarningThreshold = 0.8
	DefaultMaxSegmentChars       = 1200
	DefaultSheetName             = "Sheet1"
	DefaultRequestsPerSecond     = 1.0
	DefaultPublishTimeoutSeconds = 10
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Budget.MaxTokenBudget == 0 {
		cfg.Budget.MaxTokenBudget = DefaultMaxTokenBudget
	}
	if cfg.Budget.TokenWarningThreshold == 0 {
		cfg.Budget.TokenWarningThreshold = DefaultTokenWarningThreshold
	}
	if cfg.Budget.Gate == "" {
		cfg.Budget.Gate = GatePrePass
	}
	if cfg.Extract.MaxSegmentChars == 0 {
		cfg.Extract.MaxSegmentChars = DefaultMaxSegmentChars
	}
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = tagging.DefaultCategory
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".local/share/digest/ledger.db"
	}
	if cfg.Sheets.SheetName == "" {
		cfg.Sheets.SheetName = DefaultSheetName
	}
	if cfg.Sheets.CredentialsPath == "" {
		cfg.Sheets.CredentialsPath = ".config/digest/credentials.json"
	}
	if cfg.Sheets.TokenPath == "" {
		cfg.Sheets.TokenPath = ".config/digest/token.json"
	}
	if cfg.Sheets.RequestsPerSecond == 0 {
		cfg.Sheets.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Workbook.Path != "" && cfg.Workbook.SheetName == "" {
		cfg.Workbook.SheetName = DefaultSheetName
	}
	if cfg.Publish.TimeoutSeconds == 0 {
		cfg.Publish.TimeoutSeconds = DefaultPublishTimeoutSeconds
	}
}

// Default returns a fully defaulted config with home-relative paths expanded, for runs without a config file.
func Default() *Config {
	cfg := &Config{}
	ApplyEnv(cfg)
	ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, ".")
	cfg.Sheets.CredentialsPath = expandPath(cfg.Sheets.CredentialsPath, ".")
	cfg.Sheets.TokenPath = expandPath(cfg.Sheets.TokenPath, ".")
	return cfg
}
