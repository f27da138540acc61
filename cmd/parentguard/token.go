package main

import (
	"fmt"

	"github.com/goodtune/parentguard/internal/admin"
	"github.com/goodtune/parentguard/internal/config"
	"github.com/spf13/cobra"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin API token",
	Long:  `Sign a bearer token for the admin API with the configured admin.jwt_secret.`,
	Example: `  parentguard -c config.yaml token --subject parent
  curl -H "Authorization: Bearer $(parentguard token)" http://localhost:8097/api/requests`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "Subject recorded in the token")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Admin.JWTSecret == "" {
		return fmt.Errorf("admin.jwt_secret is not set")
	}

	issuer := admin.NewTokenIssuer(cfg.Admin.JWTSecret, parseDuration(cfg.Admin.TokenExpiration, admin.DefaultTokenExpiration))
	token, expiresAt, err := issuer.Issue(tokenSubject)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
