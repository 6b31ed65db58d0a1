package main

import (
	"fmt"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/auth"
	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Issue an API token for a user",
	Long: `Sign a bearer token for the API with JWT_SECRET.

The token is printed to stdout and is not stored anywhere.`,
	Example: `  crop-notifier token alice
  crop-notifier token alice --ttl 24h`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		token, expiresAt, err := auth.NewTokenIssuer(cfg.JWT.Secret).Issue(args[0], tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "Token lifetime")
}
