package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
budget:
  max_token_budget: 1000
  token_warning_threshold: 0.5
  gate: live
match:
  fuzzy_threshold: 0.2
categories:
  - name: Creatures
    keywords: [dragon, wyvern]
    tags: [myth]
sheets:
  spreadsheet_id: "abc123"
notify:
  results_webhook: "https://example.com/hook"
  results_thread_id: "42"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Budget.MaxTokenBudget != 1000 || cfg.Budget.TokenWarningThreshold != 0.5 {
		t.Errorf("unexpected budget config: %+v", cfg.Budget)
	}
	if cfg.Budget.Gate != GateLive {
		t.Errorf("gate = %q", cfg.Budget.Gate)
	}
	if len(cfg.Categories) != 1 || cfg.Categories[0].Name != "Creatures" || len(cfg.Categories[0].Keywords) != 2 {
		t.Errorf("unexpected categories: %+v", cfg.Categories)
	}
	if !cfg.Sheets.Enabled() || cfg.Sheets.SheetName != DefaultSheetName {
		t.Errorf("unexpected sheets config: %+v", cfg.Sheets)
	}
	if cfg.Notify.ResultsThreadID != "42" {
		t.Errorf("thread id = %q", cfg.Notify.ResultsThreadID)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/ledger.db"
workbook:
  path: "./out/digest.xlsx"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if want := filepath.Join(dir, "data", "ledger.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "out", "digest.xlsx"); cfg.Workbook.Path != want {
		t.Errorf("workbook path = %s, want %s", cfg.Workbook.Path, want)
	}
	if cfg.Workbook.SheetName != DefaultSheetName {
		t.Errorf("workbook sheet = %q", cfg.Workbook.SheetName)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"negative budget", "budget:\n  max_token_budget: -5\n", "max_token_budget"},
		{"threshold above one", "budget:\n  token_warning_threshold: 1.5\n", "token_warning_threshold"},
		{"unknown gate", "budget:\n  gate: sometimes\n", "budget.gate"},
		{"fuzzy threshold", "match:\n  fuzzy_threshold: 1\n", "fuzzy_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_malformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "budget: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv(EnvResultsWebhook, "https://env.example/results")
	t.Setenv(EnvSpreadsheetID, "from-env")
	cfg, err := Load(writeConfig(t, "notify:\n  results_webhook: https://file.example\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Notify.ResultsWebhook != "https://env.example/results" {
		t.Errorf("results webhook = %q", cfg.Notify.ResultsWebhook)
	}
	if cfg.Sheets.SpreadsheetID != "from-env" {
		t.Errorf("spreadsheet id = %q", cfg.Sheets.SpreadsheetID)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Budget.MaxTokenBudget != DefaultMaxTokenBudget {
		t.Errorf("default budget: got %d", cfg.Budget.MaxTokenBudget)
	}
	if cfg.Budget.TokenWarningThreshold != 0.8 {
		t.Errorf("default threshold: got %v", cfg.Budget.TokenWarningThreshold)
	}
	if cfg.Budget.Gate != GatePrePass {
		t.Errorf("default gate: got %q", cfg.Budget.Gate)
	}
	if cfg.DefaultCategory != "General" {
		t.Errorf("default category: got %q", cfg.DefaultCategory)
	}
	if cfg.Workbook.SheetName != "" {
		t.Error("workbook sheet name should stay empty when the workbook is disabled")
	}
	if cfg.Publish.TimeoutSeconds != DefaultPublishTimeoutSeconds {
		t.Errorf("publish timeout: got %d", cfg.Publish.TimeoutSeconds)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestMatchConfig_TranspositionsOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		m := &MatchConfig{}
		if !m.TranspositionsOrDefault() {
			t.Error("want true")
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		m := &MatchConfig{Transpositions: &f}
		if m.TranspositionsOrDefault() {
			t.Error("want false")
		}
	})
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := Default()
	cfg.Budget.MaxTokenBudget = 1234
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Budget.MaxTokenBudget != 1234 {
		t.Errorf("loaded budget: got %d", loaded.Budget.MaxTokenBudget)
	}
}
