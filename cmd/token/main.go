package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"progresshub/pkg/config"
	"progresshub/pkg/util"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with the server's JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return errors.New("--user is required")
			}
			cfg, err := config.Load(config.GetConfigEnv(), os.Getenv("CONFIG_DIR"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			token, err := util.GenerateJWT(user, cfg.JWT.Secret, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User ID to put in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
