package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	portsrepo "github.com/SscSPs/deck_credits/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
	"github.com/SscSPs/deck_credits/internal/core/services"
	"github.com/spf13/cobra"
)

type grantOptions struct {
	accountID      string
	amount         int64
	reason         string
	idempotencyKey string
	create         bool
}

func newGrantCmd(a *app) *cobra.Command {
	var opts grantOptions

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Add credits to an account by hand",
		Long:  "grant records a credit_grant ledger entry through the credit service, e.g. for support compensation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd.Context(), a.cfg, a.logger, false)
			if err != nil {
				return err
			}
			defer store.Close()

			creditService := services.NewCreditService(store.repos.CreditRepo)
			return runGrant(cmd.Context(), cmd.OutOrStdout(), creditService, store.repos.CreditRepo, opts, a.logger)
		},
	}

	cmd.Flags().StringVar(&opts.accountID, "account", "", "Account ID (identity provider user id)")
	cmd.Flags().Int64Var(&opts.amount, "amount", 0, "Credits to add")
	cmd.Flags().StringVar(&opts.reason, "reason", "", "Free-text reason stored in the transaction metadata")
	cmd.Flags().StringVar(&opts.idempotencyKey, "idempotency-key", "", "Apply the grant at most once for this key")
	cmd.Flags().BoolVar(&opts.create, "create", false, "Create the account on the free plan if it does not exist")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runGrant(ctx context.Context, out io.Writer, credits portssvc.CreditWriterSvc, accounts portsrepo.AccountBillingWriter, opts grantOptions, logger *slog.Logger) error {
	if opts.amount <= 0 {
		return fmt.Errorf("--amount must be positive, got %d", opts.amount)
	}

	if opts.create {
		now := time.Now().UTC()
		err := accounts.SaveAccount(ctx, domain.Account{
			AccountID:          opts.accountID,
			SubscriptionStatus: domain.StatusFree,
			AuditFields:        domain.AuditFields{CreatedAt: now, LastUpdatedAt: now},
		})
		if err != nil && !errors.Is(err, apperrors.ErrDuplicate) {
			return fmt.Errorf("create account %s: %w", opts.accountID, err)
		}
	}

	metadata := map[string]any{"source": "cli"}
	if opts.reason != "" {
		metadata["reason"] = opts.reason
	}

	outcome, err := credits.Add(ctx, domain.AddCreditsInput{
		AccountID:      opts.accountID,
		Amount:         opts.amount,
		ActionType:     domain.ActionCreditGrant,
		Metadata:       metadata,
		IdempotencyKey: opts.idempotencyKey,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("account %s does not exist (pass --create to provision it): %w", opts.accountID, err)
		}
		return fmt.Errorf("grant credits: %w", err)
	}

	if outcome.Duplicate {
		logger.Info("Grant already applied", slog.String("account_id", opts.accountID), slog.String("idempotency_key", opts.idempotencyKey))
		_, err = fmt.Fprintf(out, "grant already applied, balance %d\n", outcome.NewBalance)
		return err
	}

	logger.Info("Credits granted", slog.String("account_id", opts.accountID), slog.Int64("amount", opts.amount), slog.Int64("new_balance", outcome.NewBalance))
	_, err = fmt.Fprintf(out, "granted %d credits to %s, balance %d\n", opts.amount, opts.accountID, outcome.NewBalance)
	return err
}
