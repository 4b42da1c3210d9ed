package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"advisor-marketplace-backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// psql builds statements with Postgres-style $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const uniqueViolation = "23505"

type Store struct {
	db           *sql.DB
	Invites      repository.InviteRepository
	Negotiations repository.NegotiationRepository
	Proposals    repository.ProposalRepository
	Activity     repository.ActivityLogRepository
	Directory    repository.DirectoryRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		Invites:      NewInviteRepository(db),
		Negotiations: NewNegotiationRepository(db),
		Proposals:    NewProposalRepository(db),
		Activity:     NewActivityLogRepository(db),
		Directory:    NewDirectoryRepository(db),
	}
}

// Ping checks the connection for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
