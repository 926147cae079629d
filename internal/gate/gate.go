// Package gate resolves a bearer credential to a stored user profile and
// enforces role-based permission before mutating operations proceed.
package gate

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"secularreview/api/internal/auth"
	"secularreview/api/internal/docstore"
	"secularreview/api/internal/store"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Gate looks the caller up on every request; role changes take effect
// immediately at the cost of one store read per mutating call.
type Gate struct {
	secret []byte
	users  *store.Controller
}

func New(secret []byte, users *store.Controller) *Gate {
	return &Gate{secret: secret, users: users}
}

// RequireAuthenticated resolves the token's subject claim and loads the
// matching profile. A bad token and a missing profile are both
// ErrUnauthorized.
func (g *Gate) RequireAuthenticated(ctx context.Context, token string) (store.User, error) {
	email, err := auth.Subject(g.secret, token)
	if err != nil {
		return store.User{}, ErrUnauthorized
	}

	doc, err := g.users.FindOne(ctx, store.UsersCollection, bson.M{"email": email})
	if errors.Is(err, docstore.ErrNotFound) {
		return store.User{}, ErrUnauthorized
	}
	if err != nil {
		return store.User{}, fmt.Errorf("load profile: %w", err)
	}

	var user store.User
	if err := store.FromDocument(doc, &user); err != nil {
		return store.User{}, fmt.Errorf("decode profile: %w", err)
	}
	return user, nil
}

// RequireRole additionally checks the profile's role; the admin role is
// always sufficient.
func (g *Gate) RequireRole(ctx context.Context, token string, role store.Role) (store.User, error) {
	user, err := g.RequireAuthenticated(ctx, token)
	if err != nil {
		return store.User{}, err
	}
	if user.Role != role && user.Role != store.RoleAdmin {
		return store.User{}, ErrForbidden
	}
	return user, nil
}
