package main

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/hyperjump/digest/internal/sheets"
)

func newAuthCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize digest to edit your Google sheet",
		Long: `auth prints the Google consent URL for the OAuth client in credentials_path,
reads the authorization code and saves the token to token_path.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(g.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			oauthCfg, err := sheets.OAuthConfig(cfg.Sheets.CredentialsPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Open this URL in your browser and authorize access:\n\n%s\n\n", sheets.AuthCodeURL(oauthCfg))

			prompt := promptui.Prompt{
				Label: "Authorization code",
				Validate: func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("code is required")
					}
					return nil
				},
			}
			code, err := prompt.Run()
			if err != nil {
				return fmt.Errorf("authorization code: %w", err)
			}
			if _, err := sheets.Exchange(cmd.Context(), oauthCfg, strings.TrimSpace(code), cfg.Sheets.TokenPath); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token saved to %s\n", cfg.Sheets.TokenPath)
			return nil
		},
	}
}
