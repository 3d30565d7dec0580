package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	portsrepo "github.com/SscSPs/deck_credits/internal/core/ports/repositories"
)

// SQLiteCreditRepository stores balances and the transaction log in SQLite.
// The database must be opened with a single connection (see database.NewSQLiteDB):
// each mutation runs in its own transaction on that connection, so writers are
// serialized and the conditional UPDATE sees the latest committed balance.
type SQLiteCreditRepository struct {
	db *sql.DB
}

// NewRepositoryProvider wires the SQLite-backed repositories.
func NewRepositoryProvider(db *sql.DB) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		CreditRepo: NewSQLiteCreditRepository(db),
	}
}

func NewSQLiteCreditRepository(db *sql.DB) *SQLiteCreditRepository {
	return &SQLiteCreditRepository{db: db}
}

// Ensure SQLiteCreditRepository implements portsrepo.CreditRepositoryFacade
var _ portsrepo.CreditRepositoryFacade = (*SQLiteCreditRepository)(nil)

const timeLayout = time.RFC3339Nano

const insertTransactionQuery = `
	INSERT INTO credit_transactions (transaction_id, account_id, action_type, credits_used, credits_before, credits_after, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`

// DebitCredits implements the conditional decrement.
func (r *SQLiteCreditRepository) DebitCredits(ctx context.Context, entry domain.LedgerEntry) (*domain.Transaction, error) {
	op := fmt.Sprintf("debit credits for account %s", entry.AccountID)
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Unavailable(op, err)
	}
	defer tx.Rollback()

	var after int64
	err = tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET credits_balance = credits_balance - ?,
		    credits_total_used = credits_total_used + ?,
		    last_updated_at = ?
		WHERE account_id = ? AND credits_balance >= ?
		RETURNING credits_balance;
	`, entry.Amount, entry.Amount, formatTime(entry.CreatedAt), entry.AccountID, entry.Amount).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrInsufficientCredits
	}
	if err != nil {
		return nil, apperrors.Unavailable(op, err)
	}

	txn, err := insertTransaction(ctx, tx, entry, metadata, entry.Amount, after+entry.Amount, after)
	if err != nil {
		return nil, apperrors.Unavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Unavailable(op, err)
	}
	return txn, nil
}

// CreditCredits implements the increment, claiming entry.IdempotencyKey in the same
// transaction when one is given.
func (r *SQLiteCreditRepository) CreditCredits(ctx context.Context, entry domain.LedgerEntry) (*domain.Transaction, error) {
	op := fmt.Sprintf("credit account %s", entry.AccountID)
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Unavailable(op, err)
	}
	defer tx.Rollback()

	if entry.IdempotencyKey != "" {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO processed_billing_events (idempotency_key, account_id, transaction_id, processed_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (idempotency_key) DO NOTHING;
		`, entry.IdempotencyKey, entry.AccountID, entry.TransactionID, formatTime(entry.CreatedAt))
		if err != nil {
			return nil, apperrors.Unavailable("claim idempotency key "+entry.IdempotencyKey, err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return nil, apperrors.Unavailable("claim idempotency key "+entry.IdempotencyKey, err)
		}
		if claimed == 0 {
			return nil, apperrors.ErrDuplicate
		}
	}

	var after int64
	err = tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET credits_balance = credits_balance + ?,
		    last_updated_at = ?
		WHERE account_id = ?
		RETURNING credits_balance;
	`, entry.Amount, formatTime(entry.CreatedAt), entry.AccountID).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(op, err)
	}

	txn, err := insertTransaction(ctx, tx, entry, metadata, -entry.Amount, after-entry.Amount, after)
	if err != nil {
		return nil, apperrors.Unavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Unavailable(op, err)
	}
	return txn, nil
}

// RefundDebit gives back a debit of this account exactly once.
func (r *SQLiteCreditRepository) RefundDebit(ctx context.Context, debitTransactionID string, action domain.ActionType, entry domain.LedgerEntry) (*domain.Transaction, error) {
	op := fmt.Sprintf("refund transaction %s for account %s", debitTransactionID, entry.AccountID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Unavailable(op, err)
	}
	defer tx.Rollback()

	var debit domain.Transaction
	var debitAction string
	err = tx.QueryRowContext(ctx, `
		SELECT account_id, action_type, credits_used
		FROM credit_transactions
		WHERE transaction_id = ?;
	`, debitTransactionID).Scan(&debit.AccountID, &debitAction, &debit.CreditsUsed)
	if errors.Is(err, sql.ErrNoRows) {
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

	res, err := tx.ExecContext(ctx, `
		INSERT INTO processed_billing_events (idempotency_key, account_id, transaction_id, processed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (idempotency_key) DO NOTHING;
	`, entry.IdempotencyKey, entry.AccountID, entry.TransactionID, formatTime(entry.CreatedAt))
	if err != nil {
		return nil, apperrors.Unavailable("claim idempotency key "+entry.IdempotencyKey, err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return nil, apperrors.Unavailable("claim idempotency key "+entry.IdempotencyKey, err)
	}
	if claimed == 0 {
		return nil, apperrors.ErrDuplicate
	}

	var after int64
	err = tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET credits_balance = credits_balance + ?,
		    last_updated_at = ?
		WHERE account_id = ?
		RETURNING credits_balance;
	`, entry.Amount, formatTime(entry.CreatedAt), entry.AccountID).Scan(&after)
	if err != nil {
		return nil, apperrors.Unavailable(op, err)
	}

	txn, err := insertTransaction(ctx, tx, entry, metadata, -entry.Amount, after-entry.Amount, after)
	if err != nil {
		return nil, apperrors.Unavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Unavailable(op, err)
	}
	return txn, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, entry domain.LedgerEntry, metadata string, creditsUsed, before, after int64) (*domain.Transaction, error) {
	res, err := tx.ExecContext(ctx, insertTransactionQuery,
		entry.TransactionID,
		entry.AccountID,
		string(entry.ActionType),
		creditsUsed,
		before,
		after,
		metadata,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return nil, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Transaction{
		TransactionID: entry.TransactionID,
		Sequence:      seq,
		AccountID:     entry.AccountID,
		ActionType:    entry.ActionType,
		CreditsUsed:   creditsUsed,
		CreditsBefore: before,
		CreditsAfter:  after,
		Metadata:      entry.Metadata,
		CreatedAt:     entry.CreatedAt,
	}, nil
}

// FindAccountByID retrieves an account by its ID.
func (r *SQLiteCreditRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	var (
		acc                      domain.Account
		status                   string
		subscriptionID, priceID  sql.NullString
		periodEnd, cancelAt      sql.NullString
		createdAt, lastUpdatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, credits_balance, credits_total_used, subscription_status,
		       billing_subscription_id, billing_price_id, current_period_end, cancel_at,
		       created_at, last_updated_at
		FROM accounts
		WHERE account_id = ?;
	`, accountID).Scan(
		&acc.AccountID,
		&acc.CreditsBalance,
		&acc.CreditsTotalUsed,
		&status,
		&subscriptionID,
		&priceID,
		&periodEnd,
		&cancelAt,
		&createdAt,
		&lastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Unavailable("find account "+accountID, err)
	}

	acc.SubscriptionStatus = domain.SubscriptionStatus(status)
	acc.BillingSubscriptionID = nullableString(subscriptionID)
	acc.BillingPriceID = nullableString(priceID)
	if acc.CurrentPeriodEnd, err = nullableTime(periodEnd); err != nil {
		return nil, apperrors.Unavailable("parse current_period_end", err)
	}
	if acc.CancelAt, err = nullableTime(cancelAt); err != nil {
		return nil, apperrors.Unavailable("parse cancel_at", err)
	}
	if acc.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, apperrors.Unavailable("parse created_at", err)
	}
	if acc.LastUpdatedAt, err = time.Parse(timeLayout, lastUpdatedAt); err != nil {
		return nil, apperrors.Unavailable("parse last_updated_at", err)
	}
	return &acc, nil
}

// ListTransactions retrieves an account's history, newest first.
func (r *SQLiteCreditRepository) ListTransactions(ctx context.Context, accountID string, limit int, beforeSequence int64) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence, transaction_id, account_id, action_type, credits_used, credits_before, credits_after, metadata, created_at
		FROM credit_transactions
		WHERE account_id = ? AND (? <= 0 OR sequence < ?)
		ORDER BY sequence DESC
		LIMIT ?;
	`, accountID, beforeSequence, beforeSequence, limit)
	if err != nil {
		return nil, apperrors.Unavailable("list transactions for account "+accountID, err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		var (
			txn       domain.Transaction
			action    string
			metadata  string
			createdAt string
		)
		if err := rows.Scan(
			&txn.Sequence,
			&txn.TransactionID,
			&txn.AccountID,
			&action,
			&txn.CreditsUsed,
			&txn.CreditsBefore,
			&txn.CreditsAfter,
			&metadata,
			&createdAt,
		); err != nil {
			return nil, apperrors.Unavailable("scan transaction row", err)
		}
		txn.ActionType = domain.ActionType(action)
		if txn.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, apperrors.Unavailable("parse transaction created_at", err)
		}
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
func (r *SQLiteCreditRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	status := account.SubscriptionStatus
	if status == "" {
		status = domain.StatusFree
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (account_id, credits_balance, credits_total_used, subscription_status, created_at, last_updated_at)
		VALUES (?, 0, 0, ?, ?, ?);
	`, account.AccountID, string(status), formatTime(account.CreatedAt), formatTime(account.LastUpdatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: account with ID %s already exists", apperrors.ErrDuplicate, account.AccountID)
		}
		return apperrors.Unavailable("save account "+account.AccountID, err)
	}
	return nil
}

// UpdateSubscription applies the non-nil fields of update.
func (r *SQLiteCreditRepository) UpdateSubscription(ctx context.Context, accountID string, update domain.SubscriptionUpdate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET subscription_status = COALESCE(NULLIF(?, ''), subscription_status),
		    billing_subscription_id = COALESCE(?, billing_subscription_id),
		    billing_price_id = COALESCE(?, billing_price_id),
		    current_period_end = COALESCE(?, current_period_end),
		    cancel_at = COALESCE(?, cancel_at),
		    last_updated_at = ?
		WHERE account_id = ?;
	`,
		string(update.Status),
		toNullString(update.BillingSubscriptionID),
		toNullString(update.BillingPriceID),
		toNullTime(update.CurrentPeriodEnd),
		toNullTime(update.CancelAt),
		formatTime(time.Now()),
		accountID,
	)
	if err != nil {
		return apperrors.Unavailable("update subscription of account "+accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Unavailable("update subscription of account "+accountID, err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func toNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func marshalMetadata(metadata map[string]any) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("%w: metadata is not JSON serializable: %v", apperrors.ErrValidation, err)
	}
	return string(b), nil
}

func unmarshalMetadata(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, apperrors.Unavailable("decode transaction metadata", err)
	}
	return metadata, nil
}
