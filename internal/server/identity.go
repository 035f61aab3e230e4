package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnknownToken rejects a connection whose token matches no user.
var ErrUnknownToken = errors.New("UNKNOWN_TOKEN: no user for token")

// User is a resolved identity.
type User struct {
	ID   uuid.UUID
	Name string
}

// IdentityProvider resolves a connection token to a user.
type IdentityProvider interface {
	Resolve(ctx context.Context, token string) (User, error)
}

// PGIdentity resolves tokens against the users table.
type PGIdentity struct {
	pool *pgxpool.Pool
}

func NewPGIdentity(pool *pgxpool.Pool) *PGIdentity {
	return &PGIdentity{pool: pool}
}

func (p *PGIdentity) Resolve(ctx context.Context, token string) (User, error) {
	var user User
	err := p.pool.QueryRow(ctx,
		`SELECT id, name FROM users WHERE token = $1`, token,
	).Scan(&user.ID, &user.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUnknownToken
	}
	if err != nil {
		return User{}, fmt.Errorf("resolving token: %w", err)
	}
	return user, nil
}
