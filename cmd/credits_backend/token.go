package main

import (
	"fmt"
	"time"

	"github.com/SscSPs/deck_credits/internal/utils"
	"github.com/spf13/cobra"
)

func newTokenCmd(a *app) *cobra.Command {
	var accountID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		Long:  "token signs an access token with JWT_SECRET so the API can be called locally without the identity provider. Refused in production.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.IsProduction {
				return fmt.Errorf("refusing to mint tokens when IS_PRODUCTION is set")
			}
			token, err := utils.GenerateJWT(accountID, a.cfg.JWTSecret, ttl, a.cfg.JWTIssuer)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID to put in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}
