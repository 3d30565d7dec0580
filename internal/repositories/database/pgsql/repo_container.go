package pgsql

import (
	portsrepo "github.com/SscSPs/deck_credits/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		CreditRepo: newPgxCreditRepository(dbPool),
	}
}
