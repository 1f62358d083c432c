// Package main is the digest CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/digest/internal/config"
)

var version = "dev"

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := newRunCmd(g)
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file path (default ./config.yaml, then ~/.config/digest/config.yaml)")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")
	root.AddCommand(newAuthCmd(g), newRunsCmd(g), newVersionCmd())
	return root
}

// defaultConfigPath is where the config lives when --config is not given.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "digest", "config.yaml")
	}
	return filepath.Join(home, ".config", "digest", "config.yaml")
}

// loadConfig loads the config at path. Without an explicit path it first looks for
// config.yaml in the current directory (for development), then the default path, and
// finally falls back to built-in defaults. Returns the config and the path that was
// actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	candidates := []string{defaultConfigPath()}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append([]string{filepath.Join(cwd, "config.yaml")}, candidates...)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			cfg, err := config.Load(c)
			if err != nil {
				return nil, "", err
			}
			return cfg, c, nil
		}
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, "", nil
}
