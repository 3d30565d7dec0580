package pgsql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	portsrepo "github.com/SscSPs/deck_credits/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxCreditRepository stores balances and the transaction log in PostgreSQL.
// Every balance mutation is one statement: the UPDATE takes the account's row
// lock, so concurrent writers for the same account are serialized by the database.
type PgxCreditRepository struct {
	BaseRepository
}

func newPgxCreditRepository(pool *pgxpool.Pool) portsrepo.CreditRepositoryFacade {
	return &PgxCreditRepository{BaseRepository: BaseRepository{Pool: pool}}
}

// Ensure PgxCreditRepository implements portsrepo.CreditRepositoryFacade
var _ portsrepo.CreditRepositoryFacade = (*PgxCreditRepository)(nil)

const accountColumns = `account_id, credits_balance, credits_total_used, subscription_status,
	billing_subscription_id, billing_price_id, current_period_end, cancel_at, created_at, last_updated_at`

const debitQuery = `
	WITH debited AS (
		UPDATE accounts
		SET credits_balance = credits_balance - $2::bigint,
		    credits_total_used = credits_total_used + $2::bigint,
		    last_updated_at = $6::timestamptz
		WHERE account_id = $1::text AND credits_balance >= $2::bigint
		RETURNING credits_balance
	)
	INSERT INTO credit_transactions (transaction_id, account_id, action_type, credits_used, credits_before, credits_after, metadata, created_at)
	SELECT $3::uuid, $1::text, $4::text, $2::bigint, debited.credits_balance + $2::bigint, debited.credits_balance, $5::jsonb, $6::timestamptz
	FROM debited
	RETURNING sequence, credits_before, credits_after;
`

const creditQuery = `
	WITH credited AS (
		UPDATE accounts
		SET credits_balance = credits_balance + $2::bigint,
		    last_updated_at = $6::timestamptz
		WHERE account_id = $1::text
		RETURNING credits_balance
	)
	INSERT INTO credit_transactions (transaction_id, account_id, action_type, credits_used, credits_before, credits_after, metadata, created_at)
	SELECT $3::uuid, $1::text, $4::text, -$2::bigint, credited.credits_balance - $2::bigint, credited.credits_balance, $5::jsonb, $6::timestamptz
	FROM credited
	RETURNING sequence, credits_before, credits_after;
`

// DebitCredits implements the conditional decrement.
func (r *PgxCreditRepository) DebitCredits(ctx context.Context, entry domain.LedgerEntry) (*domain.Transaction, error) {
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return nil, err
	}

	txn, err := r.applyEntry(ctx, r.Pool, debitQuery, entry, metadata, entry.Amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrInsufficientCredits
	}
	if err != nil {
		return nil, apperrors.Unavailable(fmt.Sprintf("debit credits for account %s", entry.AccountID), err)
	}
	return txn, nil
}

// CreditCredits implements the increment, claiming entry.IdempotencyKey in the same
// database transaction when one is given.
func (r *PgxCreditRepository) CreditCredits(ctx context.Context, entry domain.LedgerEntry) (*domain.Transaction, error) {
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return nil, err
	}

	if entry.IdempotencyKey == "" {
		txn, err := r.applyEntry(ctx, r.Pool, creditQuery, entry, metadata, -entry.Amount)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		if err != nil {
			return nil, apperrors.Unavailable(fmt.Sprintf("credit account %s", entry.AccountID), err)
		}
		return txn, nil
	}

	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(ctx, tx)

	// A concurrent claim of the same key blocks on the primary key until the
	// first transaction finishes, then sees the conflict.
	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_billing_events (idempotency_key, account_id, transaction_id, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key) DO NOTHING;
	`, entry.IdempotencyKey, entry.AccountID, entry.TransactionID, entry.CreatedAt)
	if err != nil {
		return nil, apperrors.Unavailable("claim idempotency key "+entry.IdempotencyKey, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperrors.ErrDuplicate
	}

	txn, err := r.applyEntry(ctx, tx, creditQuery, entry, metadata, -entry.Amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(fmt.Sprintf("credit account %s", entry.AccountID), err)
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, err
	}
	return txn, nil
}

// RefundDebit gives back a debit of this account exactly once.
func (r *PgxCreditRepository) RefundDebit(ctx context.Context, debitTransactionID string, action domain.ActionType, entry domain.LedgerEntry) (*domain.Transaction, error) {
	op := fmt.Sprintf("refund transaction %s for account %s", debitTransactionID, entry.AccountID)

	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(ctx, tx)

	var debit domain.Transaction
	var debitAction string
	err = tx.QueryRow(ctx, `
		SELECT account_id, action_type, credits_used
		FROM credit_transactions
		WHERE transaction_id = $1::uuid;
	`, debitTransactionID).Scan(&debit.AccountID, &debitAction, &debit.CreditsUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: debit transaction %s", apperrors.ErrNotFound, debitTransactionID)
	}
	if err != nil {
		return nil, apperrors.Unavailable(op, err)
	}
	// Another account's debit is reported as missing.
	if debit.AccountID != entry.AccountID {
		return nil, fmt.Errorf("%w: debit transaction %s", apperrors.ErrNotFound, debitTransactionID)
	}
	debit.ActionType = domain.ActionType(debitAction)
	if !debit.IsRefundableDebit(action) {
		return nil, fmt.Errorf("%w: transaction %s is not a %s charge", apperrors.ErrValidation, debitTransactionID, action)
	}

	entry.Amount = debit.CreditsUsed
	entry.IdempotencyKey = domain.RefundKey(debitTransactionID)
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_billing_events (idempotency_key, account_id, transaction_id, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key) DO NOTHING;
	`, entry.IdempotencyKey, entry.AccountID, entry.TransactionID, entry.CreatedAt)
	if err != nil {
		return nil, apperrors.Unavailable("claim idempotency key "+entry.IdempotencyKey, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperrors.ErrDuplicate
	}

	txn, err := r.applyEntry(ctx, tx, creditQuery, entry, metadata, -entry.Amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(op, err)
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *PgxCreditRepository) applyEntry(ctx context.Context, q rowQuerier, query string, entry domain.LedgerEntry, metadata []byte, creditsUsed int64) (*domain.Transaction, error) {
	txn := domain.Transaction{
		TransactionID: entry.TransactionID,
		AccountID:     entry.AccountID,
		ActionType:    entry.ActionType,
		CreditsUsed:   creditsUsed,
		Metadata:      entry.Metadata,
		CreatedAt:     entry.CreatedAt,
	}
	err := q.QueryRow(ctx, query,
		entry.AccountID,
		entry.Amount,
		entry.TransactionID,
		string(entry.ActionType),
		metadata,
		entry.CreatedAt,
	).Scan(&txn.Sequence, &txn.CreditsBefore, &txn.CreditsAfter)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindAccountByID retrieves an account by its ID.
func (r *PgxCreditRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1;`

	var acc domain.Account
	var status string
	err := r.Pool.QueryRow(ctx, query, accountID).Scan(
		&acc.AccountID,
		&acc.CreditsBalance,
		&acc.CreditsTotalUsed,
		&status,
		&acc.BillingSubscriptionID,
		&acc.BillingPriceID,
		&acc.CurrentPeriodEnd,
		&acc.CancelAt,
		&acc.CreatedAt,
		&acc.LastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Unavailable("find account "+accountID, err)
	}
	acc.SubscriptionStatus = domain.SubscriptionStatus(status)
	return &acc, nil
}

// ListTransactions retrieves an account's history, newest first.
func (r *PgxCreditRepository) ListTransactions(ctx context.Context, accountID string, limit int, beforeSequence int64) ([]domain.Transaction, error) {
	query := `
		SELECT sequence, transaction_id::text, account_id, action_type, credits_used, credits_before, credits_after, metadata, created_at
		FROM credit_transactions
		WHERE account_id = $1 AND ($2::bigint <= 0 OR sequence < $2::bigint)
		ORDER BY sequence DESC
		LIMIT $3;
	`
	rows, err := r.Pool.Query(ctx, query, accountID, beforeSequence, limit)
	if err != nil {
		return nil, apperrors.Unavailable("list transactions for account "+accountID, err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		var txn domain.Transaction
		var action string
		var metadata []byte
		if err := rows.Scan(
			&txn.Sequence,
			&txn.TransactionID,
			&txn.AccountID,
			&action,
			&txn.CreditsUsed,
			&txn.CreditsBefore,
			&txn.CreditsAfter,
			&metadata,
			&txn.CreatedAt,
		); err != nil {
			return nil, apperrors.Unavailable("scan transaction row", err)
		}
		txn.ActionType = domain.ActionType(action)
		if txn.Metadata, err = unmarshalMetadata(metadata); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Unavailable("iterate transaction rows", err)
	}
	return txns, nil
}

// SaveAccount inserts a new account.
func (r *PgxCreditRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	query := `
		INSERT INTO accounts (account_id, credits_balance, credits_total_used, subscription_status, created_at, last_updated_at)
		VALUES ($1, 0, 0, $2, $3, $4);
	`
	status := account.SubscriptionStatus
	if status == "" {
		status = domain.StatusFree
	}
	_, err := r.Pool.Exec(ctx, query, account.AccountID, string(status), account.CreatedAt, account.LastUpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			return fmt.Errorf("%w: account with ID %s already exists", apperrors.ErrDuplicate, account.AccountID)
		}
		return apperrors.Unavailable("save account "+account.AccountID, err)
	}
	return nil
}

// UpdateSubscription applies the non-nil fields of update.
func (r *PgxCreditRepository) UpdateSubscription(ctx context.Context, accountID string, update domain.SubscriptionUpdate) error {
	query := `
		UPDATE accounts
		SET subscription_status = COALESCE(NULLIF($2::text, ''), subscription_status),
		    billing_subscription_id = COALESCE($3::text, billing_subscription_id),
		    billing_price_id = COALESCE($4::text, billing_price_id),
		    current_period_end = COALESCE($5::timestamptz, current_period_end),
		    cancel_at = COALESCE($6::timestamptz, cancel_at),
		    last_updated_at = $7
		WHERE account_id = $1;
	`
	tag, err := r.Pool.Exec(ctx, query,
		accountID,
		string(update.Status),
		update.BillingSubscriptionID,
		update.BillingPriceID,
		update.CurrentPeriodEnd,
		update.CancelAt,
		time.Now().UTC(),
	)
	if err != nil {
		return apperrors.Unavailable("update subscription of account "+accountID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata is not JSON serializable: %v", apperrors.ErrValidation, err)
	}
	return b, nil
}

func unmarshalMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, apperrors.Unavailable("decode transaction metadata", err)
	}
	return metadata, nil
}
